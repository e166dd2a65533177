package aggregator

import (
	"context"
	"errors"

	"github.com/pevans/marsfed/extract"
	"github.com/pevans/marsfed/navigator"
	"github.com/pevans/marsfed/scraper"
)

// news reads the headline and teaser of the newest story. Both are nil when
// either is missing.
func (a *Aggregator) news(ctx context.Context, nav navigator.Navigator) (title, paragraph *string, err error) {
	ctx, span := a.tracer.Start(ctx, "news")
	defer span.End()

	cfg := a.sources.News
	if err := nav.Visit(ctx, cfg.URL); err != nil {
		return nil, nil, fail(span, err)
	}

	// The list is rendered client side; give it a moment but read the page
	// either way.
	nav.WaitFor(ctx, navigator.CSS(cfg.SlideSelector), a.wait)

	markup, err := nav.HTML(ctx)
	if err != nil {
		return nil, nil, fail(span, err)
	}

	t, p, err := ParseNews(markup, cfg)
	if errors.Is(err, extract.ErrAbsent) {
		a.absent("news", err)
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fail(span, err)
	}

	return &t, &p, nil
}

// ParseNews extracts the title and teaser of the first slide on the news
// listing.
func ParseNews(markup string, cfg scraper.NewsConfig) (title, paragraph string, err error) {
	doc, err := extract.Parse(markup)
	if err != nil {
		return "", "", err
	}

	slide, err := extract.Find(doc.Selection, "news", cfg.SlideSelector)
	if err != nil {
		return "", "", err
	}

	title, err = extract.Text(slide, "news_title", cfg.TitleSelector)
	if err != nil {
		return "", "", err
	}

	paragraph, err = extract.Text(slide, "news_paragraph", cfg.ParagraphSelector)
	if err != nil {
		return "", "", err
	}

	return title, paragraph, nil
}
