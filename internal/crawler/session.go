// Package crawler drives a browser through job searches, harvests detail
// links and stores every posting it has not seen before.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"runtime/debug"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/amishk599/jobscout/internal/metrics"
	"github.com/amishk599/jobscout/internal/model"
	"github.com/amishk599/jobscout/internal/ratelimit"
	"github.com/amishk599/jobscout/internal/retry"
)

// Report summarizes one crawl run.
type Report struct {
	RunID     string
	Searches  int // (location, keyword) pairs attempted
	Exhausted int // pairs abandoned after every attempt failed
	Harvested int
	Stored    int
	Skipped   int // links already in the store
	NotParsed []model.JobLink
	Duration  time.Duration
}

// Session is one browser working through every (location, keyword) pair.
// It is not safe for concurrent use.
type Session struct {
	browser  Browser
	store    model.JobStore
	cfg      Config
	logger   *slog.Logger
	rng      *rand.Rand
	sleep    sleepFunc
	throttle *ratelimit.Throttle

	nav       *Navigator
	extractor *Extractor
	notParsed *NotParsed
	links     *linkSet

	// Notifier receives the postings stored by each search. Optional.
	Notifier model.Notifier
	// Metrics counts harvested and stored postings. Optional.
	Metrics *metrics.Metrics
}

// NewSession creates a session. The link threshold and pause duration are
// drawn once here and hold for the whole session.
func NewSession(b Browser, st model.JobStore, cfg Config, logger *slog.Logger) *Session {
	rng := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(time.Now().Unix())))
	return newSession(b, st, cfg, logger, rng, retry.Sleep)
}

func newSession(b Browser, st model.JobStore, cfg Config, logger *slog.Logger, rng *rand.Rand, sleep sleepFunc) *Session {
	threshold := cfg.LinkThreshold.Draw(rng)
	pause := cfg.Pause.Draw(rng)
	throttle := ratelimit.NewThrottle(threshold, pause, logger)
	throttle.SetSleep(sleep)

	notParsed := &NotParsed{}
	return &Session{
		browser:   b,
		store:     st,
		cfg:       cfg,
		logger:    logger,
		rng:       rng,
		sleep:     sleep,
		throttle:  throttle,
		nav:       newNavigator(b, cfg, rng, sleep, logger),
		extractor: newExtractor(b, cfg, rng, sleep, notParsed, logger),
		notParsed: notParsed,
		links:     newLinkSet(),
	}
}

// Run searches every keyword in every location. A pair whose attempts are
// all used up is skipped; only ctx cancellation stops the run early.
func (s *Session) Run(ctx context.Context, keywords, locations []string) (Report, error) {
	start := time.Now()
	report := Report{RunID: ulid.Make().String()}
	logger := s.logger.With("run_id", report.RunID)
	logger.Info("crawl started",
		"keywords", len(keywords),
		"locations", len(locations),
		"link_threshold", s.cfg.LinkThreshold.String(),
		"pause", s.throttle.PauseDuration().String(),
	)

	var err error
	for _, loc := range locations {
		for _, kw := range keywords {
			report.Searches++
			if err = s.runPair(ctx, logger, loc, kw, &report); err != nil {
				break
			}
		}
		if err != nil {
			break
		}
	}

	report.NotParsed = s.notParsed.Unique()
	report.Duration = time.Since(start)
	for _, l := range report.NotParsed {
		logger.Warn("not parsed", "link", string(l))
	}
	logger.Info("crawl finished",
		"searches", report.Searches,
		"exhausted", report.Exhausted,
		"harvested", report.Harvested,
		"stored", report.Stored,
		"skipped", report.Skipped,
		"not_parsed", len(report.NotParsed),
		"duration", report.Duration.Round(time.Second).String(),
	)
	return report, err
}

// runPair retries one search until it succeeds or its budget runs out.
func (s *Session) runPair(ctx context.Context, logger *slog.Logger, loc, kw string, report *Report) error {
	logger = logger.With("keyword", kw, "location", loc)
	attempts := s.cfg.SearchAttempts.Draw(s.rng)
	for attempt := 1; attempt <= attempts; attempt++ {
		err := s.safeSearch(ctx, logger, loc, kw, report)
		if err == nil {
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		logger.Warn("search attempt failed", "attempt", attempt, "max_attempts", attempts, "error", err)
	}
	logger.Warn("search abandoned", "attempts", attempts)
	report.Exhausted++
	s.Metrics.IncSearchExhausted()
	s.links.clear()
	return nil
}

// safeSearch turns a panic anywhere in a search attempt into an error
// carrying the stack.
func (s *Session) safeSearch(ctx context.Context, logger *slog.Logger, loc, kw string, report *Report) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("search panicked: %v\n%s", r, debug.Stack())
		}
	}()
	return s.search(ctx, logger, loc, kw, report)
}

func (s *Session) search(ctx context.Context, logger *slog.Logger, loc, kw string, report *Report) error {
	b, sel, timing := s.browser, s.cfg.Selectors, s.cfg.Timing

	if err := b.Navigate(ctx, s.cfg.BaseURL); err != nil {
		return fmt.Errorf("open search page: %w", err)
	}
	logger.Info("started search")
	if err := b.Maximize(ctx); err != nil {
		logger.Debug("maximize failed", "error", err)
	}
	if err := s.sleep(ctx, timing.PageLoad); err != nil {
		return err
	}
	s.bestEffortClick(ctx, sel.SecondaryDismiss)
	s.bestEffortClick(ctx, sel.SignInDismiss)

	if err := s.findSearchInput(ctx, logger); err != nil {
		return err
	}
	if err := b.Input(ctx, sel.KeywordInput, kw); err != nil {
		return fmt.Errorf("enter keyword: %w", err)
	}
	if err := b.Input(ctx, sel.LocationInput, loc); err != nil {
		return fmt.Errorf("enter location: %w", err)
	}
	if err := b.Click(ctx, sel.SearchSubmit, timing.ElementTimeout); err != nil {
		return fmt.Errorf("submit search: %w", err)
	}
	if err := s.sleep(ctx, timing.AfterSubmit); err != nil {
		return err
	}
	if err := b.ScrollBy(ctx, scrollNudge); err != nil {
		return fmt.Errorf("scroll results: %w", err)
	}

	if err := s.paginate(ctx, logger); err != nil {
		return err
	}

	if err := s.sleep(ctx, timing.BeforeHarvest); err != nil {
		return err
	}
	container, err := b.OuterHTML(ctx, sel.ResultsList, timing.ElementTimeout)
	if err != nil {
		return fmt.Errorf("results list: %w", err)
	}
	harvested, err := HarvestLinks(container, b.URL(), sel)
	if err != nil {
		return err
	}
	s.links.add(harvested...)
	report.Harvested += len(harvested)
	s.Metrics.IncHarvested(len(harvested))
	logger.Info("harvested links", "count", s.links.len())

	var stored []model.JobPosting
	for _, link := range s.links.links() {
		p, err := s.processLink(ctx, logger, link, kw, report)
		if err != nil {
			return err
		}
		if p != nil {
			stored = append(stored, *p)
		}
	}

	s.links.clear()
	if s.Notifier != nil && len(stored) > 0 {
		if err := s.Notifier.Notify(stored); err != nil {
			logger.Error("notifying new postings", "count", len(stored), "error", err)
		}
	}
	logger.Info("search complete, pausing", "stored", len(stored), "pause", s.throttle.PauseDuration().String())
	return s.throttle.Pause(ctx)
}

// findSearchInput waits for the keyword input to mount.
func (s *Session) findSearchInput(ctx context.Context, logger *slog.Logger) error {
	attempts := s.cfg.InputAttempts.Draw(s.rng)
	return retry.Do(ctx, attempts, s.cfg.Timing.InputRetry, func(int) error {
		ok, err := s.browser.Has(ctx, s.cfg.Selectors.KeywordInput)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("keyword input: %w", model.ErrElementNotFound)
		}
		return nil
	}, func(attempt int, err error) {
		logger.Debug("search bar not found, retrying", "attempt", attempt, "max_attempts", attempts)
	})
}

// paginate scrolls and clicks "show more" until the page stops growing or
// the page bound is reached.
func (s *Session) paginate(ctx context.Context, logger *slog.Logger) error {
	b, timing := s.browser, s.cfg.Timing
	last, err := b.ScrollHeight(ctx)
	if err != nil {
		return fmt.Errorf("scroll height: %w", err)
	}
	for page := 0; page < s.cfg.Pages; page++ {
		if err := b.ScrollToBottom(ctx); err != nil {
			return fmt.Errorf("scroll to bottom: %w", err)
		}
		if err := s.sleep(ctx, timing.ScrollWait); err != nil {
			return err
		}
		if err := b.Click(ctx, s.cfg.Selectors.ShowMore, timing.ElementTimeout); err == nil {
			if err := s.sleep(ctx, timing.ScrollWait); err != nil {
				return err
			}
		}
		height, err := b.ScrollHeight(ctx)
		if err != nil {
			return fmt.Errorf("scroll height: %w", err)
		}
		if height == last {
			logger.Debug("results stopped growing", "page", page+1)
			break
		}
		last = height
	}
	return nil
}

// processLink skips known links and otherwise opens, extracts and stores
// one posting. Per-link failures are logged and swallowed; only ctx errors
// are returned.
func (s *Session) processLink(ctx context.Context, logger *slog.Logger, link model.JobLink, kw string, report *Report) (*model.JobPosting, error) {
	known, err := s.store.Touch(ctx, link)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Error("touch failed", "link", string(link), "error", err)
		return nil, nil
	}
	if known {
		report.Skipped++
		s.Metrics.IncSkipped()
		return nil, nil
	}

	p, err := s.scrape(ctx, link, kw)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.Error("error while scraping", "link", string(link), "error", err)
		return nil, nil
	}

	var stored *model.JobPosting
	if p == nil {
		s.Metrics.IncExtractionFailed()
	} else {
		inserted, err := s.store.InsertIfAbsent(ctx, *p)
		switch {
		case err != nil && ctx.Err() != nil:
			return nil, ctx.Err()
		case err != nil:
			logger.Error("insert failed", "link", string(link), "error", err)
		case inserted:
			report.Stored++
			s.Metrics.IncStored()
			stored = p
		}
	}

	if err := s.throttle.Tick(ctx); err != nil {
		return stored, err
	}
	return stored, nil
}

func (s *Session) scrape(ctx context.Context, link model.JobLink, kw string) (*model.JobPosting, error) {
	if err := s.browser.Navigate(ctx, string(link)); err != nil {
		return nil, fmt.Errorf("open detail page: %w", err)
	}
	if err := s.browser.Maximize(ctx); err != nil {
		s.logger.Debug("maximize failed", "error", err)
	}
	if err := s.sleep(ctx, s.cfg.Timing.DetailLoad); err != nil {
		return nil, err
	}
	if _, err := s.nav.Run(ctx); err != nil {
		return nil, err
	}
	return s.extractor.Extract(ctx, link, kw)
}

func (s *Session) bestEffortClick(ctx context.Context, selector string) {
	if err := s.browser.Click(ctx, selector, s.cfg.Timing.ElementTimeout); err != nil && !errors.Is(err, model.ErrElementNotFound) {
		s.logger.Debug("best-effort click failed", "selector", selector, "error", err)
	}
}
