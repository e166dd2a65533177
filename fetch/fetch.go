// Package fetch builds the HTTP client shared by the facts fetcher and the
// browser-less navigator, and turns responses into goquery documents.
package fetch

import (
	"bytes"
	"context"
	"fmt"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
)

// UserAgent identifies marsfed to upstream servers.
const UserAgent = "marsfed/1.0 (Mars data scraper)"

// ClientOptions configures NewClient.
type ClientOptions struct {
	Timeout time.Duration
	// Wrap the transport so requests look like a regular browser to
	// Cloudflare-fronted hosts.
	CloudflareBypass bool
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	URL    string
	Code   int
	Status string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP error fetching %s: %s", e.URL, e.Status)
}

// NewClient creates a resty client with the marsfed user agent.
func NewClient(opts ClientOptions) *resty.Client {
	client := resty.New()
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	client.SetHeader("User-Agent", UserAgent)
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	return client
}

// Page is a fetched HTML page.
type Page struct {
	URL  string // Final URL after redirects
	Body []byte
}

// Document parses the page body.
func (p *Page) Document() (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// Get fetches url and returns the raw page. Non-2xx statuses are reported as
// a *StatusError.
func Get(ctx context.Context, client *resty.Client, url string) (*Page, error) {
	res, err := client.R().
		SetContext(ctx).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch URL: %w", err)
	}
	if res.IsError() {
		return nil, &StatusError{URL: url, Code: res.StatusCode(), Status: res.Status()}
	}

	final := url
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		final = res.RawResponse.Request.URL.String()
	}

	return &Page{URL: final, Body: res.Body()}, nil
}

// HTML fetches url and parses it with goquery.
func HTML(ctx context.Context, client *resty.Client, url string) (*goquery.Document, error) {
	page, err := Get(ctx, client, url)
	if err != nil {
		return nil, err
	}
	return page.Document()
}
