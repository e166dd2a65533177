package navigator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pevans/marsfed/fetch"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test helper: a small site with a listing page linking to two detail pages
func newTestSite(t *testing.T) *httptest.Server {
	pages := map[string]string{
		"/list": `<html><body>
			<a class="item" href="/detail/1"><h3>First</h3></a>
			<a class="item" href="detail/2"><h3>Second</h3></a>
			<button id="full" data-fancybox-href="/detail/1">FULL IMAGE</button>
			<span class="orphan">nowhere</span>
			<a href="/detail/2">more info</a>
		</body></html>`,
		"/detail/1": `<html><body><h2>Detail One</h2></body></html>`,
		"/detail/2": `<html><body><h2>Detail Two</h2></body></html>`,
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, ok := pages[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

// Test helper: an HTTP navigator on the listing page
func newTestNavigator(t *testing.T) (*HTTP, *httptest.Server) {
	server := newTestSite(t)
	nav := NewHTTP(fetch.NewClient(fetch.ClientOptions{Timeout: 5 * time.Second}))
	t.Cleanup(func() { nav.Close() })

	require.NoError(t, nav.Visit(context.Background(), server.URL+"/list"))
	return nav, server
}

// TestHTTP_VisitAndHTML verifies the current page markup is returned
func TestHTTP_VisitAndHTML(t *testing.T) {
	nav, _ := newTestNavigator(t)

	markup, err := nav.HTML(context.Background())
	require.NoError(t, err)
	assert.Contains(t, markup, "First")
}

// TestHTTP_HTMLBeforeVisit verifies reading with no page loaded
func TestHTTP_HTMLBeforeVisit(t *testing.T) {
	nav := NewHTTP(fetch.NewClient(fetch.ClientOptions{}))

	_, err := nav.HTML(context.Background())
	assert.ErrorIs(t, err, ErrNoPage)
}

// TestHTTP_VisitNotFound verifies a failed visit is an error
func TestHTTP_VisitNotFound(t *testing.T) {
	nav, server := newTestNavigator(t)

	err := nav.Visit(context.Background(), server.URL+"/nope")
	assert.Error(t, err)

	markup, err := nav.HTML(context.Background())
	require.NoError(t, err)
	assert.Contains(t, markup, "First", "failed visit should keep the current page")
}

// TestHTTP_ClickByIndex verifies clicking the n-th match and going back
func TestHTTP_ClickByIndex(t *testing.T) {
	nav, _ := newTestNavigator(t)
	ctx := context.Background()

	for i, want := range []string{"Detail One", "Detail Two"} {
		require.NoError(t, nav.Click(ctx, CSS("a.item h3"), i))

		markup, err := nav.HTML(ctx)
		require.NoError(t, err)
		assert.Contains(t, markup, want)

		require.NoError(t, nav.Back(ctx))
	}

	markup, err := nav.HTML(ctx)
	require.NoError(t, err)
	assert.Contains(t, markup, "First", "should be back on the listing page")
}

// TestHTTP_ClickOutOfRange verifies missing elements are reported
func TestHTTP_ClickOutOfRange(t *testing.T) {
	nav, _ := newTestNavigator(t)

	err := nav.Click(context.Background(), CSS("a.item h3"), 2)
	assert.ErrorIs(t, err, ErrNoElement)

	err = nav.Click(context.Background(), CSS("span.orphan"), 0)
	assert.ErrorIs(t, err, ErrNoElement, "element without a link target cannot navigate")
}

// TestHTTP_ClickDataAttribute verifies buttons with a data link are followed
func TestHTTP_ClickDataAttribute(t *testing.T) {
	nav, _ := newTestNavigator(t)

	require.NoError(t, nav.Click(context.Background(), CSS("#full"), 0))

	markup, err := nav.HTML(context.Background())
	require.NoError(t, err)
	assert.Contains(t, markup, "Detail One")
}

// TestHTTP_ClickLinkText verifies partial link text selection
func TestHTTP_ClickLinkText(t *testing.T) {
	nav, _ := newTestNavigator(t)

	require.NoError(t, nav.Click(context.Background(), LinkText("more"), 0))

	markup, err := nav.HTML(context.Background())
	require.NoError(t, err)
	assert.Contains(t, markup, "Detail Two")
}

// TestHTTP_WaitFor verifies presence and bounded absence
func TestHTTP_WaitFor(t *testing.T) {
	nav, _ := newTestNavigator(t)
	ctx := context.Background()

	assert.True(t, nav.WaitFor(ctx, CSS("a.item"), 500*time.Millisecond))
	assert.True(t, nav.WaitFor(ctx, LinkText("more info"), 500*time.Millisecond))

	start := time.Now()
	assert.False(t, nav.WaitFor(ctx, CSS("div.never"), 100*time.Millisecond))
	assert.Less(t, time.Since(start), 2*time.Second, "wait should be bounded")
}

// TestHTTP_BackWithoutHistory verifies going back from the first page
func TestHTTP_BackWithoutHistory(t *testing.T) {
	nav, _ := newTestNavigator(t)

	assert.ErrorIs(t, nav.Back(context.Background()), ErrNoHistory)
}

// TestHTTP_Close verifies a closed navigator refuses work
func TestHTTP_Close(t *testing.T) {
	nav, server := newTestNavigator(t)
	ctx := context.Background()

	require.NoError(t, nav.Close())
	require.NoError(t, nav.Close(), "closing twice should be safe")

	assert.ErrorIs(t, nav.Visit(ctx, server.URL+"/list"), ErrClosed)
	assert.ErrorIs(t, nav.Click(ctx, CSS("a"), 0), ErrClosed)
	assert.ErrorIs(t, nav.Back(ctx), ErrClosed)
	assert.False(t, nav.WaitFor(ctx, CSS("a"), 10*time.Millisecond))

	_, err := nav.HTML(ctx)
	assert.ErrorIs(t, err, ErrClosed)
}

// TestHTTPLauncher verifies launched sessions are independent
func TestHTTPLauncher(t *testing.T) {
	server := newTestSite(t)
	launch := HTTPLauncher(fetch.NewClient(fetch.ClientOptions{}))
	ctx := context.Background()

	first, err := launch(ctx)
	require.NoError(t, err)
	second, err := launch(ctx)
	require.NoError(t, err)

	require.NoError(t, first.Visit(ctx, server.URL+"/detail/1"))
	_, err = second.HTML(ctx)
	assert.ErrorIs(t, err, ErrNoPage, "sessions should not share pages")
}
