package crawler

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"
)

// Variant is the detail-page layout the navigator detected.
type Variant int

const (
	VariantUnknown Variant = iota
	// VariantModal shows the full detail behind a dismissible sign-in modal.
	VariantModal
	// VariantCTA shows a summary; the full detail sits behind a call to action.
	VariantCTA
)

func (v Variant) String() string {
	switch v {
	case VariantModal:
		return "modal"
	case VariantCTA:
		return "cta"
	default:
		return "unknown"
	}
}

// scrollNudge is how far the navigator scrolls to trigger lazy content.
const scrollNudge = 50

// Navigator clears the overlays of a freshly opened detail page so the
// extractor can read it. Every step is best-effort.
type Navigator struct {
	browser Browser
	sel     Selectors
	timing  Timing
	settle  func() time.Duration // drawn per page in the modal variant
	sleep   sleepFunc
	logger  *slog.Logger
}

func newNavigator(b Browser, cfg Config, rng *rand.Rand, sleep sleepFunc, logger *slog.Logger) *Navigator {
	return &Navigator{
		browser: b,
		sel:     cfg.Selectors,
		timing:  cfg.Timing,
		settle:  func() time.Duration { return cfg.ModalSettle.Draw(rng) },
		sleep:   sleep,
		logger:  logger,
	}
}

// Detect probes for the sign-in modal: present means VariantModal,
// absent (or unknowable) means VariantCTA.
func (n *Navigator) Detect(ctx context.Context) Variant {
	ok, err := n.browser.Has(ctx, n.sel.SignInDismiss)
	if err == nil && ok {
		return VariantModal
	}
	return VariantCTA
}

// Run detects the variant and walks its transitions. Interaction failures
// are swallowed; the only error is ctx's.
func (n *Navigator) Run(ctx context.Context) (Variant, error) {
	v := n.Detect(ctx)
	n.logger.Debug("detail page variant", "variant", v.String(), "url", n.browser.URL())

	var err error
	switch v {
	case VariantModal:
		err = n.runModal(ctx)
	case VariantCTA:
		err = n.runCTA(ctx)
	}
	return v, err
}

func (n *Navigator) runModal(ctx context.Context) error {
	n.dismiss(ctx, n.sel.SignInDismiss)
	if err := n.sleep(ctx, n.timing.StepPause); err != nil {
		return err
	}
	n.nudge(ctx)
	if err := n.sleep(ctx, n.timing.StepPause); err != nil {
		return err
	}
	n.dismiss(ctx, n.sel.SecondaryDismiss)
	return n.sleep(ctx, n.settle())
}

func (n *Navigator) runCTA(ctx context.Context) error {
	n.dismiss(ctx, n.sel.SignInDismiss)
	n.nudge(ctx)
	n.dismiss(ctx, n.sel.SeeFullJob)
	if err := n.sleep(ctx, n.timing.StepPause); err != nil {
		return err
	}
	n.dismiss(ctx, n.sel.SecondaryDismiss)
	return n.sleep(ctx, n.timing.CTASettle)
}

// dismiss clicks selector if it shows up within the element timeout.
func (n *Navigator) dismiss(ctx context.Context, selector string) {
	if err := n.browser.Click(ctx, selector, n.timing.ElementTimeout); err != nil {
		n.logger.Debug("best-effort click skipped", "selector", selector, "error", err)
	}
}

func (n *Navigator) nudge(ctx context.Context) {
	if err := n.browser.ScrollBy(ctx, scrollNudge); err != nil {
		n.logger.Debug("scroll nudge failed", "error", err)
	}
}
