// Package aggregator runs one full scrape: it drives a navigator through the
// news, featured image, hemisphere and weather pages, fetches the facts
// table and assembles a marsdata.Record.
package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/pevans/marsfed/marsdata"
	"github.com/pevans/marsfed/navigator"
	"github.com/pevans/marsfed/scraper"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer the aggregator records spans with.
const TracerName = "marsfed/aggregator"

// FactsFetcher returns the rendered facts table, or nil when it is
// unavailable.
type FactsFetcher interface {
	FetchOptional(ctx context.Context) *string
}

// Aggregator assembles records. A single Aggregator may be reused for many
// scrapes; each Scrape opens and closes its own navigator session.
type Aggregator struct {
	launch  navigator.Launcher
	facts   FactsFetcher
	sources scraper.Sources
	wait    time.Duration
	now     func() time.Time
	log     *logrus.Entry
	tracer  trace.Tracer
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithSources overrides the upstream pages and selectors.
func WithSources(sources scraper.Sources) Option {
	return func(a *Aggregator) {
		a.sources = sources
	}
}

// WithWaitTimeout overrides the best-effort element wait.
func WithWaitTimeout(wait time.Duration) Option {
	return func(a *Aggregator) {
		a.wait = wait
	}
}

// WithClock overrides the clock used for last_updated.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		a.now = now
	}
}

// WithLogger sets the log entry used by the aggregator.
func WithLogger(log *logrus.Entry) Option {
	return func(a *Aggregator) {
		a.log = log
	}
}

// WithTracerProvider records spans with tp instead of the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(a *Aggregator) {
		a.tracer = tp.Tracer(TracerName)
	}
}

// New creates an aggregator that opens sessions with launch and reads the
// facts table through facts.
func New(launch navigator.Launcher, facts FactsFetcher, opts ...Option) *Aggregator {
	a := &Aggregator{
		launch:  launch,
		facts:   facts,
		sources: scraper.DefaultSources(),
		wait:    scraper.DefaultWaitTimeout,
		now:     func() time.Time { return time.Now().UTC() },
		log:     logrus.NewEntry(logrus.StandardLogger()),
		tracer:  otel.Tracer(TracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.log = a.log.WithField("component", "aggregator")
	return a
}

// Scrape visits every source in turn and returns the assembled record. The
// navigator session is closed before Scrape returns, whether or not a
// source failed. Missing news, image, hemisphere and facts content yields
// null fields; a missing weather report or any navigation failure aborts the
// scrape.
func (a *Aggregator) Scrape(ctx context.Context) (*marsdata.Record, error) {
	ctx, span := a.tracer.Start(ctx, "Scrape")
	defer span.End()

	start := time.Now()
	a.log.Info("scrape starting")

	nav, err := a.launch(ctx)
	if err != nil {
		return nil, fail(span, fmt.Errorf("failed to launch navigator: %w", err))
	}
	defer func() {
		if err := nav.Close(); err != nil {
			a.log.WithError(err).Warn("failed to close navigator")
		}
	}()

	newsTitle, newsParagraph, err := a.news(ctx, nav)
	if err != nil {
		return nil, fail(span, fmt.Errorf("news: %w", err))
	}

	image, err := a.featuredImage(ctx, nav)
	if err != nil {
		return nil, fail(span, fmt.Errorf("featured image: %w", err))
	}

	hemispheres, err := a.hemispheres(ctx, nav)
	if err != nil {
		return nil, fail(span, fmt.Errorf("hemispheres: %w", err))
	}

	weather, err := a.weather(ctx, nav)
	if err != nil {
		return nil, fail(span, fmt.Errorf("weather: %w", err))
	}

	factsCtx, factsSpan := a.tracer.Start(ctx, "facts")
	factsTable := a.facts.FetchOptional(factsCtx)
	factsSpan.End()

	record := &marsdata.Record{
		NewsTitle:        newsTitle,
		NewsParagraph:    newsParagraph,
		FeaturedImageURL: image,
		Hemispheres:      hemispheres,
		WeatherText:      weather,
		FactsTable:       factsTable,
		LastUpdated:      a.now(),
	}

	a.log.WithField("elapsed", time.Since(start)).Info("scrape finished")
	return record, nil
}

// fail records err on span and returns it.
func fail(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// absent logs a field that came back null.
func (a *Aggregator) absent(field string, err error) {
	a.log.WithField("field", field).WithError(err).Warn("field not found, storing null")
}
