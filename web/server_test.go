package web

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pevans/marsfed/aggregator"
	"github.com/pevans/marsfed/facts"
	"github.com/pevans/marsfed/fetch"
	"github.com/pevans/marsfed/internal/marstest"
	"github.com/pevans/marsfed/marsdata"
	"github.com/pevans/marsfed/navigator"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeScraper returns a fixed record or error and tracks overlapping calls.
type fakeScraper struct {
	record *marsdata.Record
	err    error
	delay  time.Duration

	calls   atomic.Int32
	running atomic.Int32
	peak    atomic.Int32
}

func (f *fakeScraper) Scrape(ctx context.Context) (*marsdata.Record, error) {
	f.calls.Add(1)
	n := f.running.Add(1)
	defer f.running.Add(-1)
	for {
		peak := f.peak.Load()
		if n <= peak || f.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return nil, f.err
	}
	return f.record, nil
}

// Test helper: create a store in a temporary directory
func setupTestStore(t *testing.T) *marsdata.Store {
	store, err := marsdata.NewStore(filepath.Join(t.TempDir(), "mars.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

// Test helper: create a router over store and scraper
func setupTestRouter(t *testing.T, store RecordStore, scraper Scraper) (*gin.Engine, *test.Hook) {
	logger, hook := test.NewNullLogger()
	server := NewServer(store, scraper, logrus.NewEntry(logger))
	return server.SetupRouter(), hook
}

func sampleRecord() *marsdata.Record {
	return &marsdata.Record{
		NewsTitle:        marsdata.String("Dust Storm Season Begins"),
		NewsParagraph:    marsdata.String("Orbiters are watching the southern hemisphere."),
		FeaturedImageURL: marsdata.String("https://images.example/mars.jpg"),
		Hemispheres: []marsdata.Hemisphere{
			{Title: marsdata.String("Cerberus Hemisphere Enhanced"), ImageURL: marsdata.String("https://images.example/cerberus.tif")},
			{},
			{Title: marsdata.String("Syrtis Major Hemisphere Enhanced"), ImageURL: marsdata.String("https://images.example/syrtis.tif")},
			{Title: marsdata.String("Valles Marineris Hemisphere Enhanced"), ImageURL: marsdata.String("https://images.example/valles.tif")},
		},
		WeatherText: "Sol 1801 (Aug 30, 2017), Sunny, high -21C/-5F, low -80C/-112F",
		FactsTable:  marsdata.String(`<table class="table table-striped"><tr><td>Moons:</td><td>2</td></tr></table>`),
		LastUpdated: time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
	}
}

func get(router http.Handler, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) (string, string) {
	var body struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code, body.Error.Message
}

// TestHandleIndex_Empty verifies the page renders a placeholder before any
// scrape
func TestHandleIndex_Empty(t *testing.T) {
	router, _ := setupTestRouter(t, setupTestStore(t), &fakeScraper{})

	w := get(router, "/")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, w.Body.String(), `id="empty"`)
	assert.Contains(t, w.Body.String(), `href="/scrape"`)
	assert.NotContains(t, w.Body.String(), `id="news"`)
}

// TestHandleIndex_Record verifies the stored record is rendered
func TestHandleIndex_Record(t *testing.T) {
	store := setupTestStore(t)
	require.NoError(t, store.Upsert(sampleRecord()))
	router, _ := setupTestRouter(t, store, &fakeScraper{})

	w := get(router, "/")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()

	assert.Contains(t, body, "Dust Storm Season Begins")
	assert.Contains(t, body, "Orbiters are watching the southern hemisphere.")
	assert.Contains(t, body, `src="https://images.example/mars.jpg"`)
	assert.Contains(t, body, "Sol 1801 (Aug 30, 2017)")
	assert.Contains(t, body, `<table class="table table-striped">`, "facts table should not be escaped")
	assert.Contains(t, body, "Cerberus Hemisphere Enhanced")
	assert.Contains(t, body, "Valles Marineris Hemisphere Enhanced")
	assert.Contains(t, body, "Hemisphere unavailable")
	assert.Contains(t, body, "2026-10-01 12:00:00 UTC")
	assert.NotContains(t, body, `id="empty"`)
}

// TestHandleIndex_NullFields verifies null fields render as unavailable
// rather than failing the page
func TestHandleIndex_NullFields(t *testing.T) {
	store := setupTestStore(t)
	record := sampleRecord()
	record.NewsTitle = nil
	record.NewsParagraph = nil
	record.FeaturedImageURL = nil
	record.FactsTable = nil
	require.NoError(t, store.Upsert(record))
	router, _ := setupTestRouter(t, store, &fakeScraper{})

	w := get(router, "/")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()

	assert.Contains(t, body, "News unavailable")
	assert.Contains(t, body, "Featured image unavailable")
	assert.Contains(t, body, "Facts unavailable")
	assert.Contains(t, body, record.WeatherText)
}

// TestHandleScrape_Success verifies a successful scrape replaces the record
func TestHandleScrape_Success(t *testing.T) {
	store := setupTestStore(t)
	scraper := &fakeScraper{record: sampleRecord()}
	router, _ := setupTestRouter(t, store, scraper)

	w := get(router, "/scrape")

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, ScrapeSuccess, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	stored, err := store.Get()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Dust Storm Season Begins", *stored.NewsTitle)
	assert.EqualValues(t, 1, scraper.calls.Load())
}

// TestHandleScrape_Failure verifies a failed scrape reports an error and
// leaves the previous record untouched
func TestHandleScrape_Failure(t *testing.T) {
	store := setupTestStore(t)
	previous := sampleRecord()
	require.NoError(t, store.Upsert(previous))

	router, hook := setupTestRouter(t, store, &fakeScraper{err: errors.New("weather: element not found")})

	w := get(router, "/scrape")

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	code, message := decodeError(t, w)
	assert.Equal(t, "scrape_failed", code)
	assert.Contains(t, message, "weather")

	stored, err := store.Get()
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.True(t, previous.LastUpdated.Equal(stored.LastUpdated))
	assert.Equal(t, *previous.NewsTitle, *stored.NewsTitle)

	var logged bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel && entry.Message == "scrape failed" {
			logged = true
		}
	}
	assert.True(t, logged, "failure should be logged")
}

// TestHandleScrape_Serialized verifies concurrent refreshes never overlap
func TestHandleScrape_Serialized(t *testing.T) {
	scraper := &fakeScraper{record: sampleRecord(), delay: 20 * time.Millisecond}
	router, _ := setupTestRouter(t, setupTestStore(t), scraper)

	var wg sync.WaitGroup
	codes := make([]int, 4)
	for i := range codes {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i] = get(router, "/scrape").Code
		}(i)
	}
	wg.Wait()

	for _, code := range codes {
		assert.Equal(t, http.StatusOK, code)
	}
	assert.EqualValues(t, 4, scraper.calls.Load())
	assert.EqualValues(t, 1, scraper.peak.Load())
}

// TestHandleGetRecord_Empty verifies the API returns 404 before any scrape
func TestHandleGetRecord_Empty(t *testing.T) {
	router, _ := setupTestRouter(t, setupTestStore(t), &fakeScraper{})

	w := get(router, "/api/v1/mars")

	assert.Equal(t, http.StatusNotFound, w.Code)
	code, _ := decodeError(t, w)
	assert.Equal(t, "not_found", code)
}

// TestHandleGetRecord verifies the API returns the stored record with nulls
// preserved
func TestHandleGetRecord(t *testing.T) {
	store := setupTestStore(t)
	record := sampleRecord()
	record.FactsTable = nil
	require.NoError(t, store.Upsert(record))
	router, _ := setupTestRouter(t, store, &fakeScraper{})

	w := get(router, "/api/v1/mars")
	require.Equal(t, http.StatusOK, w.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &raw))
	assert.Equal(t, "Dust Storm Season Begins", raw["news_title"])
	assert.Contains(t, raw, "facts_table")
	assert.Nil(t, raw["facts_table"])

	hemispheres, ok := raw["hemispheres"].([]any)
	require.True(t, ok)
	assert.Len(t, hemispheres, 4)
}

// TestRequestID verifies request ids are generated or echoed back
func TestRequestID(t *testing.T) {
	router, _ := setupTestRouter(t, setupTestStore(t), &fakeScraper{})

	w := get(router, "/api/v1/mars")
	assert.NotEmpty(t, w.Header().Get(RequestIDHeader))

	w = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/mars", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(RequestIDHeader))
}

// TestRequestLogging verifies each request is logged with its id
func TestRequestLogging(t *testing.T) {
	router, hook := setupTestRouter(t, setupTestStore(t), &fakeScraper{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/mars", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	router.ServeHTTP(httptest.NewRecorder(), req)

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, "request", entry.Message)
	assert.Equal(t, "req-1", entry.Data["request_id"])
	assert.Equal(t, http.StatusNotFound, entry.Data["status"])
	assert.Equal(t, "/api/v1/mars", entry.Data["path"])
	assert.Equal(t, "web", entry.Data["component"])
}

// TestScrapeEndToEnd verifies a scrape of the local site is stored and shown
func TestScrapeEndToEnd(t *testing.T) {
	site := marstest.NewSite(t)
	sources := site.Sources()
	client := fetch.NewClient(fetch.ClientOptions{Timeout: 5 * time.Second})
	agg := aggregator.New(
		navigator.HTTPLauncher(client),
		facts.NewFetcher(client, sources.FactsURL, nil),
		aggregator.WithSources(sources),
		aggregator.WithWaitTimeout(10*time.Millisecond),
	)
	store := setupTestStore(t)
	router, _ := setupTestRouter(t, store, agg)

	w := get(router, "/scrape")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, ScrapeSuccess, w.Body.String())

	w = get(router, "/")
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, template.HTMLEscapeString(marstest.NewsTitle))
	assert.Contains(t, body, marstest.HemisphereTitle(0))
	assert.Contains(t, body, "Equatorial Diameter:")

	// A broken upstream leaves the stored record in place.
	site.Set(marstest.WeatherPath, `<html><body></body></html>`)
	w = get(router, "/scrape")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = get(router, "/api/v1/mars")
	require.Equal(t, http.StatusOK, w.Code)
	var record marsdata.Record
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &record))
	assert.Equal(t, marstest.WeatherText, record.WeatherText)
}
