// Package browser drives a stealth-patched Chromium through go-rod. It is
// the production implementation of crawler.Browser.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"

	"github.com/amishk599/jobscout/internal/model"
)

// inputTimeout bounds the lookup of a text input before typing into it.
const inputTimeout = 5 * time.Second

// Options configures the launched browser.
type Options struct {
	Headless   bool
	ChromePath string // empty uses the Chromium rod downloads
}

// Rod is a single stealth page in a launched browser.
type Rod struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page
	logger   *slog.Logger
}

// Launch starts Chromium and opens one stealth page.
func Launch(ctx context.Context, opts Options, logger *slog.Logger) (*Rod, error) {
	l := launcher.New().Context(ctx)
	if opts.ChromePath != "" {
		l = l.Bin(opts.ChromePath)
	}
	l = l.
		Headless(opts.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Set("disable-dev-shm-usage").
		Set("no-sandbox").
		Set("disable-infobars").
		Set("disable-extensions").
		Set("window-size", "1920,1080").
		Set("lang", "en-US,en")

	u, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch browser: %w", err)
	}

	b := rod.New().ControlURL(u)
	if err := b.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect browser: %w", err)
	}

	page, err := stealth.Page(b)
	if err != nil {
		_ = b.Close()
		l.Kill()
		return nil, fmt.Errorf("open stealth page: %w", err)
	}

	logger.Info("browser launched", "headless", opts.Headless)
	return &Rod{launcher: l, browser: b, page: page, logger: logger}, nil
}

// Close shuts the browser down and removes its process.
func (r *Rod) Close() error {
	err := r.browser.Close()
	r.launcher.Kill()
	return err
}

func (r *Rod) Navigate(ctx context.Context, url string) error {
	p := r.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("wait load %s: %w", url, err)
	}
	return nil
}

func (r *Rod) Reload(ctx context.Context) error {
	p := r.page.Context(ctx)
	if err := p.Reload(); err != nil {
		return fmt.Errorf("reload: %w", err)
	}
	return p.WaitLoad()
}

func (r *Rod) Maximize(ctx context.Context) error {
	return r.page.Context(ctx).SetWindow(&proto.BrowserBounds{
		WindowState: proto.BrowserWindowStateMaximized,
	})
}

func (r *Rod) Has(ctx context.Context, selector string) (bool, error) {
	ok, _, err := r.page.Context(ctx).Has(selector)
	return ok, err
}

func (r *Rod) Click(ctx context.Context, selector string, timeout time.Duration) error {
	el, err := r.element(ctx, selector, timeout)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func (r *Rod) Input(ctx context.Context, selector, text string) error {
	el, err := r.element(ctx, selector, inputTimeout)
	if err != nil {
		return err
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("select %s: %w", selector, err)
	}
	if err := el.Input(text); err != nil {
		return fmt.Errorf("input %s: %w", selector, err)
	}
	return nil
}

func (r *Rod) Text(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	el, err := r.element(ctx, selector, timeout)
	if err != nil {
		return "", err
	}
	return el.Text()
}

func (r *Rod) InnerHTML(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	el, err := r.element(ctx, selector, timeout)
	if err != nil {
		return "", err
	}
	v, err := el.Property("innerHTML")
	if err != nil {
		return "", fmt.Errorf("innerHTML %s: %w", selector, err)
	}
	return v.Str(), nil
}

func (r *Rod) OuterHTML(ctx context.Context, selector string, timeout time.Duration) (string, error) {
	el, err := r.element(ctx, selector, timeout)
	if err != nil {
		return "", err
	}
	return el.HTML()
}

func (r *Rod) ScrollBy(ctx context.Context, dy int) error {
	_, err := r.page.Context(ctx).Eval(`(dy) => window.scrollBy(0, dy)`, dy)
	return err
}

func (r *Rod) ScrollToBottom(ctx context.Context) error {
	_, err := r.page.Context(ctx).Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	return err
}

func (r *Rod) ScrollHeight(ctx context.Context) (int, error) {
	res, err := r.page.Context(ctx).Eval(`() => document.body.scrollHeight`)
	if err != nil {
		return 0, err
	}
	return res.Value.Int(), nil
}

func (r *Rod) URL() string {
	info, err := r.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// element waits up to timeout for selector and rebinds the match to ctx.
func (r *Rod) element(ctx context.Context, selector string, timeout time.Duration) (*rod.Element, error) {
	el, err := r.page.Context(ctx).Timeout(timeout).Element(selector)
	if err != nil {
		return nil, lookupError(ctx, selector, err)
	}
	return el.Context(ctx), nil
}

// lookupError maps a lookup that ran out of time to model.ErrElementNotFound.
// Cancellation of ctx itself is passed through unchanged.
func lookupError(ctx context.Context, selector string, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var notFound *rod.ElementNotFoundError
	if errors.Is(err, context.DeadlineExceeded) || errors.As(err, &notFound) {
		return fmt.Errorf("%s: %w", selector, model.ErrElementNotFound)
	}
	return fmt.Errorf("%s: %w", selector, err)
}
