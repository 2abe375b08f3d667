package crawler

import (
	"context"
	"time"
)

// Browser is the small set of page operations the crawler needs. Lookups
// that time out return an error wrapping model.ErrElementNotFound.
type Browser interface {
	Navigate(ctx context.Context, url string) error
	Reload(ctx context.Context) error
	Maximize(ctx context.Context) error

	// Has reports whether selector matches right now, without waiting.
	Has(ctx context.Context, selector string) (bool, error)
	Click(ctx context.Context, selector string, timeout time.Duration) error
	Input(ctx context.Context, selector, text string) error

	Text(ctx context.Context, selector string, timeout time.Duration) (string, error)
	InnerHTML(ctx context.Context, selector string, timeout time.Duration) (string, error)
	OuterHTML(ctx context.Context, selector string, timeout time.Duration) (string, error)

	ScrollBy(ctx context.Context, dy int) error
	ScrollToBottom(ctx context.Context) error
	ScrollHeight(ctx context.Context) (int, error)
	URL() string
}

type sleepFunc func(ctx context.Context, d time.Duration) error
