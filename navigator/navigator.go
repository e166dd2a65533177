// Package navigator drives a page session: visiting pages, waiting for
// elements, clicking and going back. Two sessions are provided, a headless
// Chrome session and a browser-less one that follows links over HTTP.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	ErrNoElement = errors.New("no matching element")
	ErrNoPage    = errors.New("no page loaded")
	ErrNoHistory = errors.New("no previous page")
	ErrClosed    = errors.New("navigator closed")
)

// pollInterval is how often WaitFor re-checks the page.
const pollInterval = 50 * time.Millisecond

// Navigator is one page session. Implementations are not safe for concurrent
// use.
type Navigator interface {
	// Visit loads url, replacing the current page.
	Visit(ctx context.Context, url string) error
	// WaitFor polls for sel for at most timeout and reports whether it is
	// present. It never fails; absence is reported as false.
	WaitFor(ctx context.Context, sel Selector, timeout time.Duration) bool
	// Click resolves sel against the live page and clicks the element at
	// index. Returns ErrNoElement when fewer elements match.
	Click(ctx context.Context, sel Selector, index int) error
	// HTML returns the markup of the current page.
	HTML(ctx context.Context) (string, error)
	// Back returns to the previous page.
	Back(ctx context.Context) error
	// Close releases the session. Calling Close more than once is safe.
	Close() error
}

// Launcher opens a new Navigator session.
type Launcher func(ctx context.Context) (Navigator, error)

// Selector identifies elements either by CSS selector or by partial link
// text.
type Selector struct {
	CSS      string
	LinkText string
}

// CSS selects elements matching a CSS selector.
func CSS(selector string) Selector {
	return Selector{CSS: selector}
}

// LinkText selects anchors whose text contains text.
func LinkText(text string) Selector {
	return Selector{LinkText: text}
}

func (s Selector) String() string {
	if s.LinkText != "" {
		return fmt.Sprintf("link text %q", s.LinkText)
	}
	return s.CSS
}

// poll calls check until it reports true, timeout elapses or ctx ends.
func poll(ctx context.Context, timeout time.Duration, check func() bool) bool {
	if check() {
		return true
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return check()
		case <-ticker.C:
			if check() {
				return true
			}
		}
	}
}
