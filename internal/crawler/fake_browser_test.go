package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/amishk599/jobscout/internal/model"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakePage is the scripted state of one URL.
type fakePage struct {
	text      map[string]string // selector -> Text / InnerHTML / OuterHTML result
	clickable map[string]bool
	failText  map[string]int // selector -> number of lookups that fail first
}

// fakeBrowser serves scripted pages keyed by exact URL and records every
// interaction.
type fakeBrowser struct {
	mu      sync.Mutex
	pages   map[string]*fakePage
	current string

	heights []int // successive ScrollHeight results; the last one repeats

	navigations []string
	reloads     int
	clicks      []string
	inputs      map[string]string
	scrolls     int
	panicOn     string // selector whose Has call panics
}

func newFakeBrowser() *fakeBrowser {
	return &fakeBrowser{pages: make(map[string]*fakePage), inputs: make(map[string]string)}
}

func (f *fakeBrowser) page(url string) *fakePage {
	p, ok := f.pages[url]
	if !ok {
		p = &fakePage{text: map[string]string{}, clickable: map[string]bool{}, failText: map[string]int{}}
		f.pages[url] = p
	}
	return p
}

func (f *fakeBrowser) cur() *fakePage { return f.page(f.current) }

func (f *fakeBrowser) Navigate(_ context.Context, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.current = url
	f.navigations = append(f.navigations, url)
	return nil
}

func (f *fakeBrowser) Reload(ctx context.Context) error {
	f.mu.Lock()
	f.reloads++
	f.mu.Unlock()
	return f.Navigate(ctx, f.current)
}

func (f *fakeBrowser) Maximize(context.Context) error { return nil }

func (f *fakeBrowser) Has(_ context.Context, selector string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.panicOn != "" && selector == f.panicOn {
		panic("browser crashed")
	}
	p := f.cur()
	_, hasText := p.text[selector]
	return hasText || p.clickable[selector], nil
}

func (f *fakeBrowser) Click(_ context.Context, selector string, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.cur().clickable[selector] {
		return fmt.Errorf("%s: %w", selector, model.ErrElementNotFound)
	}
	f.clicks = append(f.clicks, selector)
	return nil
}

func (f *fakeBrowser) Input(_ context.Context, selector, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inputs[selector] = text
	return nil
}

func (f *fakeBrowser) lookup(selector string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.cur()
	if p.failText[selector] > 0 {
		p.failText[selector]--
		return "", fmt.Errorf("%s: %w", selector, model.ErrElementNotFound)
	}
	v, ok := p.text[selector]
	if !ok {
		return "", fmt.Errorf("%s: %w", selector, model.ErrElementNotFound)
	}
	return v, nil
}

func (f *fakeBrowser) Text(_ context.Context, selector string, _ time.Duration) (string, error) {
	return f.lookup(selector)
}

func (f *fakeBrowser) InnerHTML(_ context.Context, selector string, _ time.Duration) (string, error) {
	return f.lookup(selector)
}

func (f *fakeBrowser) OuterHTML(_ context.Context, selector string, _ time.Duration) (string, error) {
	return f.lookup(selector)
}

func (f *fakeBrowser) ScrollBy(context.Context, int) error {
	f.mu.Lock()
	f.scrolls++
	f.mu.Unlock()
	return nil
}

func (f *fakeBrowser) ScrollToBottom(context.Context) error {
	f.mu.Lock()
	f.scrolls++
	f.mu.Unlock()
	return nil
}

func (f *fakeBrowser) ScrollHeight(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.heights) == 0 {
		return 1000, nil
	}
	h := f.heights[0]
	if len(f.heights) > 1 {
		f.heights = f.heights[1:]
	}
	return h, nil
}

func (f *fakeBrowser) URL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.current
}

func (f *fakeBrowser) countNavigations(url string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.navigations {
		if u == url {
			n++
		}
	}
	return n
}

func (f *fakeBrowser) countClicks(selector string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.clicks {
		if c == selector {
			n++
		}
	}
	return n
}

// recordingSleep replaces real waits and remembers what was asked for.
type recordingSleep struct {
	mu    sync.Mutex
	calls []time.Duration
}

func (r *recordingSleep) sleep(ctx context.Context, d time.Duration) error {
	r.mu.Lock()
	r.calls = append(r.calls, d)
	r.mu.Unlock()
	return ctx.Err()
}

func (r *recordingSleep) count(d time.Duration) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, c := range r.calls {
		if c == d {
			n++
		}
	}
	return n
}

// detailPage scripts a complete, extractable detail page.
func detailPage(f *fakeBrowser, sel Selectors, url, title string) *fakePage {
	p := f.page(url)
	p.text[sel.Title] = title
	p.text[sel.Description] = "<p>" + title + " needs 4 years of experience</p>"
	p.text[sel.Organization] = "Acme"
	p.text[sel.Location] = "Berlin, Germany"
	p.text[sel.Criteria] = "Seniority level\n  Mid-Senior level\n\nEmployment type\nFull-time\nJob function\nEngineering\nIndustries\nSoftware Development\n"
	return p
}
