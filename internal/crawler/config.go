package crawler

import (
	"time"

	"github.com/amishk599/jobscout/internal/retry"
)

// DefaultBaseURL is the public job search page every search starts from.
const DefaultBaseURL = "https://www.linkedin.com/jobs/search/?position=1&pageNum=0"

// DefaultSource tags every posting scraped from DefaultBaseURL.
const DefaultSource = "linkedin"

// Selectors are the CSS selectors the crawler drives the site with.
type Selectors struct {
	SignInDismiss    string // dismiss button of the sign-in modal; its presence selects the modal variant
	SecondaryDismiss string // dismiss button of the call-to-action modal
	SeeFullJob       string // "see full job" call to action
	KeywordInput     string
	LocationInput    string
	SearchSubmit     string
	ShowMore         string // "see more jobs" button at the end of the results
	ResultsList      string // container holding result anchors
	ResultAnchors    string // anchors below ResultsList, relative to it
	DetailMarker     string // path fragment identifying a detail page link

	Title        string
	Description  string
	Organization string
	Location     string
	Criteria     string
}

// DefaultSelectors match the public (signed-out) LinkedIn jobs UI.
func DefaultSelectors() Selectors {
	return Selectors{
		SignInDismiss:    ".contextual-sign-in-modal__modal-dismiss",
		SecondaryDismiss: ".cta-modal__dismiss-btn",
		SeeFullJob:       ".top-card-layout__cta",
		KeywordInput:     "#job-search-bar-keywords",
		LocationInput:    "#job-search-bar-location",
		SearchSubmit:     "button[data-tracking-control-name='public_jobs_jobs-search-bar_base-search-bar-search-submit']",
		ShowMore:         ".infinite-scroller__show-more-button--visible",
		ResultsList:      ".jobs-search__results-list",
		ResultAnchors:    "div a",
		DetailMarker:     "/jobs/view/",

		Title:        "h2.top-card-layout__title, h1.top-card-layout__title",
		Description:  "div.show-more-less-html__markup",
		Organization: "a.topcard__org-name-link.topcard__flavor--black-link",
		Location:     "span.topcard__flavor.topcard__flavor--bullet",
		Criteria:     ".description__job-criteria-list",
	}
}

// Timing holds the fixed waits between browser steps.
type Timing struct {
	PageLoad       time.Duration // after opening the search page
	AfterSubmit    time.Duration // after submitting a search
	ScrollWait     time.Duration // after each scroll or "show more" click
	BeforeHarvest  time.Duration // before reading the results list
	DetailLoad     time.Duration // after opening a detail page
	StepPause      time.Duration // between navigator steps
	CTASettle      time.Duration // after the call-to-action variant is handled
	ReloadSettle   time.Duration // after reloading a detail page between extract attempts
	ElementTimeout time.Duration // how long to wait for a single element
	InputRetry     time.Duration // between attempts to find the search inputs
}

// DefaultTiming mirrors the pacing the site tolerates from a signed-out browser.
func DefaultTiming() Timing {
	return Timing{
		PageLoad:       2 * time.Second,
		AfterSubmit:    8 * time.Second,
		ScrollWait:     7 * time.Second,
		BeforeHarvest:  2 * time.Second,
		DetailLoad:     5 * time.Second,
		StepPause:      2 * time.Second,
		CTASettle:      3 * time.Second,
		ReloadSettle:   2 * time.Second,
		ElementTimeout: 2 * time.Second,
		InputRetry:     3 * time.Second,
	}
}

// Config is everything a crawl session needs besides its collaborators.
// The ranges are drawn from per session, per search or per call as noted.
type Config struct {
	BaseURL   string
	Source    string
	Pages     int // upper bound of "show more" rounds per search
	Selectors Selectors
	Timing    Timing

	SearchAttempts  retry.Range         // per (location, keyword) pair
	InputAttempts   retry.Range         // per search attempt
	ExtractAttempts retry.Range         // per detail page
	LinkThreshold   retry.Range         // per session: links between throttle pauses
	Pause           retry.DurationRange // per session: throttle and between-search pause
	ModalSettle     retry.DurationRange // per detail page in the modal variant
}

// DefaultConfig returns the tuned defaults for pages rounds of "show more".
func DefaultConfig(pages int) Config {
	return Config{
		BaseURL:         DefaultBaseURL,
		Source:          DefaultSource,
		Pages:           pages,
		Selectors:       DefaultSelectors(),
		Timing:          DefaultTiming(),
		SearchAttempts:  retry.Range{Min: 4, Max: 7},
		InputAttempts:   retry.Range{Min: 5, Max: 7},
		ExtractAttempts: retry.Range{Min: 5, Max: 8},
		LinkThreshold:   retry.Range{Min: 520, Max: 680},
		Pause:           retry.DurationRange{Min: time.Minute, Max: 3 * time.Minute},
		ModalSettle:     retry.DurationRange{Min: 7 * time.Second, Max: 25 * time.Second},
	}
}
