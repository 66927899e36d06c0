package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/chromedp/cdproto/input"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/ppiankov/feedharvest/internal/logger"
	"github.com/ppiankov/feedharvest/internal/model"
)

// Browser owns one Chrome tab. It is not safe for concurrent use: callers
// hand it from one operation to the next.
type Browser struct {
	ctx    context.Context // chromedp tab context
	cancel context.CancelFunc
	opts   Options
	log    logger.Logger
}

// New launches Chrome and opens a tab. Cancelling parent or calling Close
// shuts the browser down.
func New(parent context.Context, opts Options, log logger.Logger) (*Browser, error) {
	allocCtx, cancelAlloc := chromedp.NewExecAllocator(parent, BuildChromeOptions(opts)...)
	tabCtx, cancelTab := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		log.Debug(fmt.Sprintf(format, args...))
	}))

	// First Run starts the browser process
	if err := chromedp.Run(tabCtx); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("start browser: %w", err)
	}

	return &Browser{
		ctx: tabCtx,
		cancel: func() {
			cancelTab()
			cancelAlloc()
		},
		opts: opts,
		log:  log,
	}, nil
}

// Close shuts down the tab and the browser process
func (b *Browser) Close() {
	b.cancel()
}

// run executes actions on the tab, bounded by ctx and an optional timeout
func (b *Browser) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := b.scope(ctx, timeout)
	defer cancel()
	return chromedp.Run(runCtx, actions...)
}

// scope derives a context from the tab context that is also cancelled
// when ctx is done
func (b *Browser) scope(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	var runCtx context.Context
	var cancel context.CancelFunc
	if timeout > 0 {
		runCtx, cancel = context.WithTimeout(b.ctx, timeout)
	} else {
		runCtx, cancel = context.WithCancel(b.ctx)
	}

	stop := context.AfterFunc(ctx, cancel)
	return runCtx, func() {
		stop()
		cancel()
	}
}

// InjectCredentials installs cookies into the browsing context
func (b *Browser) InjectCredentials(ctx context.Context, creds []model.NormalizedCredential) error {
	if len(creds) == 0 {
		return nil
	}
	params := CookieParams(creds)
	err := b.run(ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(params).Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("set cookies: %w", err)
	}
	return nil
}

// Navigate loads url and waits for the document body
func (b *Browser) Navigate(ctx context.Context, url string, timeout time.Duration) error {
	err := b.run(ctx, timeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

// WaitVisible blocks until selector matches a visible element
func (b *Browser) WaitVisible(ctx context.Context, selector string, timeout time.Duration) error {
	if err := b.run(ctx, timeout, chromedp.WaitVisible(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("wait for %s: %w", selector, err)
	}
	return nil
}

// HTML returns the current document markup and URL
func (b *Browser) HTML(ctx context.Context) (string, string, error) {
	var html, location string
	err := b.run(ctx, 0,
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", "", fmt.Errorf("snapshot document: %w", err)
	}
	return html, location, nil
}

// QueryText returns the text content of every element matching selector.
// No match yields an empty slice.
func (b *Browser) QueryText(ctx context.Context, selector string) ([]string, error) {
	sel, err := json.Marshal(selector)
	if err != nil {
		return nil, fmt.Errorf("encode selector: %w", err)
	}

	script := fmt.Sprintf(
		`Array.from(document.querySelectorAll(%s)).map(function (el) { return (el.textContent || "").trim(); })`,
		sel,
	)

	var texts []string
	if err := b.run(ctx, 0, chromedp.Evaluate(script, &texts)); err != nil {
		return nil, fmt.Errorf("query %s: %w", selector, err)
	}
	return texts, nil
}

// QueryFirstText reads the first element matching selector, waiting at most
// timeout for it to appear. Absence is NotFound, not an error; only a done
// ctx is reported.
func (b *Browser) QueryFirstText(ctx context.Context, selector string, timeout time.Duration) (model.Lookup, error) {
	var text string
	err := b.run(ctx, timeout, chromedp.TextContent(selector, &text, chromedp.ByQuery))
	if err != nil {
		if ctx.Err() != nil {
			return model.NotFound, ctx.Err()
		}
		b.log.Debug("element not found", logger.String("selector", selector), logger.Error(err))
		return model.NotFound, nil
	}
	return model.Found(strings.TrimSpace(text)), nil
}

// Click clicks the first element matching selector within timeout
func (b *Browser) Click(ctx context.Context, selector string, timeout time.Duration) error {
	if err := b.run(ctx, timeout, chromedp.Click(selector, chromedp.ByQuery)); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

// ScrollBy dispatches a mouse wheel event at the centre of the viewport so
// that the scrollable panel under the pointer moves, not only the window
func (b *Browser) ScrollBy(ctx context.Context, dy float64) error {
	x := float64(b.opts.WindowWidth) / 2
	y := float64(b.opts.WindowHeight) / 2

	err := b.run(ctx, 0, chromedp.ActionFunc(func(ctx context.Context) error {
		return input.DispatchMouseEvent(input.MouseWheel, x, y).
			WithDeltaX(0).
			WithDeltaY(dy).
			Do(ctx)
	}))
	if err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

// Wait suspends the caller for d or until ctx is done
func (b *Browser) Wait(ctx context.Context, d time.Duration) error {
	return Sleep(ctx, d)
}

// Sleep waits for d unless ctx finishes first
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
