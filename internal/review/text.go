package review

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PlainText renders stored description markup as readable text: block
// elements end a line, list items get a bullet, runs of whitespace collapse.
func PlainText(markup string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return strings.Join(strings.Fields(markup), " ")
	}
	doc.Find("li").Each(func(_ int, s *goquery.Selection) {
		s.PrependHtml("• ")
	})
	doc.Find("br, p, li, div, h1, h2, h3, h4, h5, h6, ul, ol").Each(func(_ int, s *goquery.Selection) {
		s.AfterHtml("\n")
	})

	var lines []string
	blank := false
	for _, l := range strings.Split(doc.Text(), "\n") {
		l = strings.Join(strings.Fields(l), " ")
		if l == "" {
			if !blank && len(lines) > 0 {
				lines = append(lines, "")
			}
			blank = true
			continue
		}
		blank = false
		lines = append(lines, l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
