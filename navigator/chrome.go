package navigator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
)

// DefaultSettleTimeout bounds how long a click waits for the page location
// to change before assuming the click did not navigate.
const DefaultSettleTimeout = 2 * time.Second

// ChromeOptions configures a headless Chrome session.
type ChromeOptions struct {
	Headless      bool
	ExecPath      string // Empty uses the first Chrome found on PATH
	NoSandbox     bool   // Needed when running as root, e.g. in containers
	SettleTimeout time.Duration
}

// Chrome is a Navigator backed by a Chrome process driven over the DevTools
// protocol.
type Chrome struct {
	tab         context.Context
	cancelTab   context.CancelFunc
	cancelAlloc context.CancelFunc
	settle      time.Duration
	closeOnce   sync.Once
	closeErr    error
}

// ChromeLauncher returns a Launcher that starts a new Chrome process per
// session.
func ChromeLauncher(opts ChromeOptions) Launcher {
	return func(ctx context.Context) (Navigator, error) {
		return NewChrome(ctx, opts)
	}
}

// NewChrome starts Chrome and opens a tab. The session lives until Close or
// until ctx ends.
func NewChrome(ctx context.Context, opts ChromeOptions) (*Chrome, error) {
	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	if !opts.Headless {
		allocOpts = append(allocOpts, chromedp.Flag("headless", false))
	}
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.NoSandbox {
		allocOpts = append(allocOpts, chromedp.NoSandbox)
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	tab, cancelTab := chromedp.NewContext(allocCtx)

	// The first Run starts the browser.
	if err := chromedp.Run(tab); err != nil {
		cancelTab()
		cancelAlloc()
		return nil, fmt.Errorf("failed to start chrome: %w", err)
	}

	settle := opts.SettleTimeout
	if settle <= 0 {
		settle = DefaultSettleTimeout
	}

	return &Chrome{
		tab:         tab,
		cancelTab:   cancelTab,
		cancelAlloc: cancelAlloc,
		settle:      settle,
	}, nil
}

// run executes actions on the tab, aborting early if ctx ends.
func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	if c.tab.Err() != nil {
		return ErrClosed
	}

	runCtx, cancel := context.WithCancel(c.tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	return chromedp.Run(runCtx, actions...)
}

// Visit implements Navigator.
func (c *Chrome) Visit(ctx context.Context, url string) error {
	if err := c.run(ctx, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("failed to visit %s: %w", url, err)
	}
	return nil
}

// WaitFor implements Navigator.
func (c *Chrome) WaitFor(ctx context.Context, sel Selector, timeout time.Duration) bool {
	return poll(ctx, timeout, func() bool {
		n, err := c.count(ctx, sel)
		return err == nil && n > 0
	})
}

func (c *Chrome) count(ctx context.Context, sel Selector) (int, error) {
	var n int
	err := c.run(ctx, chromedp.Evaluate(elementsScript(sel)+".length", &n))
	return n, err
}

// Click implements Navigator. The element list is looked up again on every
// call, so no handle from an earlier page is ever reused.
func (c *Chrome) Click(ctx context.Context, sel Selector, index int) error {
	var before string
	if err := c.run(ctx, chromedp.Location(&before)); err != nil {
		return fmt.Errorf("click %s[%d]: %w", sel, index, err)
	}

	var clicked bool
	if err := c.run(ctx, chromedp.Evaluate(clickScript(sel, index), &clicked)); err != nil {
		return fmt.Errorf("click %s[%d]: %w", sel, index, err)
	}
	if !clicked {
		return fmt.Errorf("click %s[%d]: %w", sel, index, ErrNoElement)
	}

	c.awaitNavigation(ctx, before)
	return nil
}

// awaitNavigation gives a click the chance to start a navigation and, if it
// did, waits for the new document to finish loading.
func (c *Chrome) awaitNavigation(ctx context.Context, before string) {
	moved := poll(ctx, c.settle, func() bool {
		var now string
		err := c.run(ctx, chromedp.Location(&now))
		return err == nil && now != before
	})
	if moved {
		c.awaitLoad(ctx)
	}
}

// awaitLoad waits, at most the settle timeout, for the current document to
// reach readyState complete.
func (c *Chrome) awaitLoad(ctx context.Context) bool {
	return poll(ctx, c.settle, func() bool {
		var ready bool
		err := c.run(ctx, chromedp.Evaluate(loadedScript, &ready))
		return err == nil && ready
	})
}

const loadedScript = `document.readyState === "complete" && document.body !== null`

// HTML implements Navigator.
func (c *Chrome) HTML(ctx context.Context) (string, error) {
	var markup string
	if err := c.run(ctx, chromedp.OuterHTML("html", &markup, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("failed to read page: %w", err)
	}
	return markup, nil
}

// Back implements Navigator.
func (c *Chrome) Back(ctx context.Context) error {
	if err := c.run(ctx, chromedp.NavigateBack()); err != nil {
		return fmt.Errorf("failed to go back: %w", err)
	}
	c.awaitLoad(ctx)
	return nil
}

// Close implements Navigator.
func (c *Chrome) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = chromedp.Cancel(c.tab)
		c.cancelTab()
		c.cancelAlloc()
	})
	return c.closeErr
}

// elementsScript returns a JavaScript expression evaluating to the array of
// elements matching sel.
func elementsScript(sel Selector) string {
	if sel.LinkText != "" {
		return fmt.Sprintf(
			"Array.from(document.querySelectorAll('a')).filter(a => a.textContent.includes(%s))",
			jsString(sel.LinkText),
		)
	}
	return fmt.Sprintf("Array.from(document.querySelectorAll(%s))", jsString(sel.CSS))
}

// clickScript returns a JavaScript expression that clicks the element at
// index and evaluates to whether it existed.
func clickScript(sel Selector, index int) string {
	return fmt.Sprintf(
		"(() => { const els = %s; if (els.length <= %d) { return false; } els[%d].click(); return true; })()",
		elementsScript(sel), index, index,
	)
}

func jsString(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}
