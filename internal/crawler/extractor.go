package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"

	"github.com/amishk599/jobscout/internal/canon"
	"github.com/amishk599/jobscout/internal/model"
)

// criteriaKeys renames the well-known criteria labels to their column names.
var criteriaKeys = map[string]string{
	"seniority level": model.CriteriaSeniorityLevel,
	"employment type": model.CriteriaEmploymentType,
	"job function":    model.CriteriaJobFunction,
}

// ParseCriteria pairs the non-empty trimmed lines of a criteria block as
// label/value. Known labels are renamed; the rest are lower-cased. An
// unpaired trailing label is an error.
func ParseCriteria(text string) (map[string]string, error) {
	var lines []string
	for _, l := range strings.Split(text, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	if len(lines)%2 != 0 {
		return nil, fmt.Errorf("criteria label %q has no value", lines[len(lines)-1])
	}

	out := make(map[string]string, len(lines)/2)
	for i := 0; i < len(lines); i += 2 {
		key := strings.ToLower(lines[i])
		if canonical, ok := criteriaKeys[key]; ok {
			key = canonical
		}
		out[key] = lines[i+1]
	}
	return out, nil
}

// NotParsed collects links whose extraction attempts failed during one run.
// A link appears once per failed attempt.
type NotParsed struct {
	mu    sync.Mutex
	links []model.JobLink
}

func (n *NotParsed) add(link model.JobLink) {
	n.mu.Lock()
	n.links = append(n.links, link)
	n.mu.Unlock()
}

// Len returns the number of failed attempts recorded.
func (n *NotParsed) Len() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.links)
}

// Unique returns each recorded link once, in first-failure order.
func (n *NotParsed) Unique() []model.JobLink {
	n.mu.Lock()
	defer n.mu.Unlock()
	seen := make(map[model.JobLink]bool, len(n.links))
	var out []model.JobLink
	for _, l := range n.links {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	return out
}

// Extractor reads a job detail page into a posting.
type Extractor struct {
	browser   Browser
	cfg       Config
	rng       *rand.Rand
	sleep     sleepFunc
	notParsed *NotParsed
	logger    *slog.Logger
}

func newExtractor(b Browser, cfg Config, rng *rand.Rand, sleep sleepFunc, notParsed *NotParsed, logger *slog.Logger) *Extractor {
	return &Extractor{browser: b, cfg: cfg, rng: rng, sleep: sleep, notParsed: notParsed, logger: logger}
}

// Extract reads the page the browser is on, reloading it between failed
// attempts. It returns nil when every attempt failed; the only
// error is ctx's.
func (e *Extractor) Extract(ctx context.Context, link model.JobLink, keyword string) (*model.JobPosting, error) {
	attempts := e.cfg.ExtractAttempts.Draw(e.rng)
	for attempt := 1; attempt <= attempts; attempt++ {
		p, err := e.attempt(ctx, link, keyword)
		if err == nil {
			return p, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}

		e.notParsed.add(link)
		e.logger.Warn("extraction attempt failed",
			"link", string(link),
			"attempt", attempt,
			"max_attempts", attempts,
			"error", err,
		)
		if attempt == attempts {
			break
		}
		if err := e.browser.Reload(ctx); err != nil {
			e.logger.Debug("reload failed", "link", string(link), "error", err)
		}
		if err := e.sleep(ctx, e.cfg.Timing.ReloadSettle); err != nil {
			return nil, err
		}
	}
	e.logger.Warn("max retries reached, unable to scrape", "link", string(link), "attempts", attempts)
	return nil, nil
}

func (e *Extractor) attempt(ctx context.Context, link model.JobLink, keyword string) (*model.JobPosting, error) {
	sel, timeout := e.cfg.Selectors, e.cfg.Timing.ElementTimeout

	title, err := e.browser.Text(ctx, sel.Title, timeout)
	if err != nil {
		return nil, fmt.Errorf("title: %w", err)
	}
	description, err := e.browser.InnerHTML(ctx, sel.Description, timeout)
	if err != nil {
		return nil, fmt.Errorf("description: %w", err)
	}
	org, err := e.browser.Text(ctx, sel.Organization, timeout)
	if err != nil {
		return nil, fmt.Errorf("organization: %w", err)
	}
	location, err := e.browser.Text(ctx, sel.Location, timeout)
	if err != nil {
		return nil, fmt.Errorf("location: %w", err)
	}
	criteriaText, err := e.browser.Text(ctx, sel.Criteria, timeout)
	if err != nil {
		return nil, fmt.Errorf("criteria: %w", err)
	}
	criteria, err := ParseCriteria(criteriaText)
	if err != nil {
		return nil, errors.Join(model.ErrUnparseable, err)
	}

	return &model.JobPosting{
		Link:            canon.Canonicalize(string(link)),
		Title:           strings.TrimSpace(title),
		Description:     description,
		Organization:    strings.TrimSpace(org),
		Location:        strings.TrimSpace(location),
		Criteria:        criteria,
		Source:          e.cfg.Source,
		SearchedKeyword: keyword,
	}, nil
}
