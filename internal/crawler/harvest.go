package crawler

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/amishk599/jobscout/internal/canon"
	"github.com/amishk599/jobscout/internal/model"
)

// HarvestLinks returns the canonical detail links found under the results
// container markup. Relative hrefs resolve against pageURL; duplicates are
// dropped, first occurrence wins.
func HarvestLinks(containerHTML, pageURL string, sel Selectors) ([]model.JobLink, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(containerHTML))
	if err != nil {
		return nil, fmt.Errorf("parse results markup: %w", err)
	}
	base, _ := url.Parse(pageURL)

	var links []model.JobLink
	seen := make(map[model.JobLink]bool)
	doc.Find(sel.ResultAnchors).Each(func(_ int, a *goquery.Selection) {
		href, ok := a.Attr("href")
		if !ok || !strings.Contains(href, sel.DetailMarker) {
			return
		}
		if base != nil {
			if ref, err := url.Parse(strings.TrimSpace(href)); err == nil {
				href = base.ResolveReference(ref).String()
			}
		}
		link := canon.Canonicalize(href)
		if !seen[link] {
			seen[link] = true
			links = append(links, link)
		}
	})
	return links, nil
}

// linkSet is the per-search ordered, de-duplicated set of harvested links.
type linkSet struct {
	order []model.JobLink
	seen  map[model.JobLink]bool
}

func newLinkSet() *linkSet {
	return &linkSet{seen: make(map[model.JobLink]bool)}
}

func (s *linkSet) add(links ...model.JobLink) {
	for _, l := range links {
		if !s.seen[l] {
			s.seen[l] = true
			s.order = append(s.order, l)
		}
	}
}

func (s *linkSet) links() []model.JobLink {
	return s.order
}

func (s *linkSet) len() int {
	return len(s.order)
}

func (s *linkSet) clear() {
	s.order = nil
	s.seen = make(map[model.JobLink]bool)
}
