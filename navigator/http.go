package navigator

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/pevans/marsfed/fetch"
)

// linkAttrs are consulted, in order, when a clicked element is not inside an
// anchor.
var linkAttrs = []string{"href", "data-href", "data-link", "data-fancybox-href"}

type httpPage struct {
	url string
	doc *goquery.Document
	raw string
}

// HTTP is a browser-less Navigator. Pages are fetched with resty and a click
// follows the link target of the clicked element. It runs no scripts, so it
// suits pages whose content is present in the served markup.
type HTTP struct {
	client  *resty.Client
	current *httpPage
	history []*httpPage
	closed  bool
}

// NewHTTP creates an HTTP navigator using client.
func NewHTTP(client *resty.Client) *HTTP {
	return &HTTP{client: client}
}

// HTTPLauncher returns a Launcher that opens HTTP navigators sharing client.
func HTTPLauncher(client *resty.Client) Launcher {
	return func(ctx context.Context) (Navigator, error) {
		return NewHTTP(client), nil
	}
}

func (h *HTTP) load(ctx context.Context, target string) (*httpPage, error) {
	page, err := fetch.Get(ctx, h.client, target)
	if err != nil {
		return nil, err
	}
	doc, err := page.Document()
	if err != nil {
		return nil, err
	}
	return &httpPage{url: page.URL, doc: doc, raw: string(page.Body)}, nil
}

// Visit implements Navigator.
func (h *HTTP) Visit(ctx context.Context, target string) error {
	if h.closed {
		return ErrClosed
	}

	page, err := h.load(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to visit %s: %w", target, err)
	}

	if h.current != nil {
		h.history = append(h.history, h.current)
	}
	h.current = page
	return nil
}

// WaitFor implements Navigator. Static pages do not change once fetched, so
// this reports presence on the current page once the poll settles.
func (h *HTTP) WaitFor(ctx context.Context, sel Selector, timeout time.Duration) bool {
	if h.closed || h.current == nil {
		return false
	}
	return poll(ctx, timeout, func() bool {
		return resolve(h.current.doc, sel).Length() > 0
	})
}

// Click implements Navigator.
func (h *HTTP) Click(ctx context.Context, sel Selector, index int) error {
	if h.closed {
		return ErrClosed
	}
	if h.current == nil {
		return ErrNoPage
	}

	matches := resolve(h.current.doc, sel)
	if index < 0 || index >= matches.Length() {
		return fmt.Errorf("click %s[%d]: %w", sel, index, ErrNoElement)
	}

	href := linkTarget(matches.Eq(index))
	if href == "" {
		return fmt.Errorf("click %s[%d]: element does not link anywhere: %w", sel, index, ErrNoElement)
	}

	base, err := url.Parse(h.current.url)
	if err != nil {
		return fmt.Errorf("invalid page URL: %w", err)
	}
	ref, err := url.Parse(href)
	if err != nil {
		return fmt.Errorf("invalid link %q: %w", href, err)
	}

	return h.Visit(ctx, base.ResolveReference(ref).String())
}

// HTML implements Navigator.
func (h *HTTP) HTML(ctx context.Context) (string, error) {
	if h.closed {
		return "", ErrClosed
	}
	if h.current == nil {
		return "", ErrNoPage
	}
	return h.current.raw, nil
}

// Back implements Navigator.
func (h *HTTP) Back(ctx context.Context) error {
	if h.closed {
		return ErrClosed
	}
	if len(h.history) == 0 {
		return ErrNoHistory
	}

	last := len(h.history) - 1
	h.current = h.history[last]
	h.history = h.history[:last]
	return nil
}

// Close implements Navigator.
func (h *HTTP) Close() error {
	h.closed = true
	h.current = nil
	h.history = nil
	return nil
}

// resolve finds every element matching sel in doc.
func resolve(doc *goquery.Document, sel Selector) *goquery.Selection {
	if sel.LinkText != "" {
		return doc.Find("a").FilterFunction(func(_ int, s *goquery.Selection) bool {
			return strings.Contains(s.Text(), sel.LinkText)
		})
	}
	return doc.Find(sel.CSS)
}

// linkTarget returns where clicking s would lead: the enclosing anchor's
// href, or one of linkAttrs on the element itself.
func linkTarget(s *goquery.Selection) string {
	anchor := s
	if goquery.NodeName(s) != "a" {
		anchor = s.Closest("a")
	}
	if href, ok := anchor.Attr("href"); ok && href != "" {
		return href
	}

	for _, attr := range linkAttrs {
		if value, ok := s.Attr(attr); ok && value != "" {
			return value
		}
	}
	return ""
}
