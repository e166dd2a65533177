package aggregator

import (
	"context"

	"github.com/pevans/marsfed/extract"
	"github.com/pevans/marsfed/navigator"
	"github.com/pevans/marsfed/scraper"
)

// weather reads the latest weather report. Unlike the other sources a
// missing report is an error.
func (a *Aggregator) weather(ctx context.Context, nav navigator.Navigator) (string, error) {
	ctx, span := a.tracer.Start(ctx, "weather")
	defer span.End()

	cfg := a.sources.Weather
	if err := nav.Visit(ctx, cfg.URL); err != nil {
		return "", fail(span, err)
	}

	markup, err := nav.HTML(ctx)
	if err != nil {
		return "", fail(span, err)
	}

	text, err := ParseWeather(markup, cfg)
	if err != nil {
		return "", fail(span, err)
	}
	return text, nil
}

// ParseWeather extracts the text of the weather account's tweet.
func ParseWeather(markup string, cfg scraper.WeatherConfig) (string, error) {
	doc, err := extract.Parse(markup)
	if err != nil {
		return "", err
	}

	tweet, err := extract.Find(doc.Selection, "weather_text", cfg.TweetSelector)
	if err != nil {
		return "", err
	}

	return extract.Text(tweet, "weather_text", cfg.TextSelector)
}
