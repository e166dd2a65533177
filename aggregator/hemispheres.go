package aggregator

import (
	"context"
	"errors"
	"fmt"

	"github.com/pevans/marsfed/extract"
	"github.com/pevans/marsfed/marsdata"
	"github.com/pevans/marsfed/navigator"
	"github.com/pevans/marsfed/scraper"
)

// hemispheres opens each hemisphere from the listing page in turn and reads
// its title and sample image. The listing is re-queried on every iteration
// because elements from before a navigation are gone afterwards.
func (a *Aggregator) hemispheres(ctx context.Context, nav navigator.Navigator) ([]marsdata.Hemisphere, error) {
	ctx, span := a.tracer.Start(ctx, "hemispheres")
	defer span.End()

	cfg := a.sources.Hemispheres
	count := cfg.Count
	if count <= 0 {
		count = scraper.HemisphereCount
	}

	if err := nav.Visit(ctx, cfg.URL); err != nil {
		return nil, fail(span, err)
	}

	item := navigator.CSS(cfg.ItemSelector)
	result := make([]marsdata.Hemisphere, 0, count)
	for i := 0; i < count; i++ {
		if err := nav.Click(ctx, item, i); err != nil {
			return nil, fail(span, fmt.Errorf("hemisphere %d: %w", i, err))
		}

		markup, err := nav.HTML(ctx)
		if err != nil {
			return nil, fail(span, fmt.Errorf("hemisphere %d: %w", i, err))
		}

		hemisphere, err := ParseHemisphere(markup, cfg)
		if errors.Is(err, extract.ErrAbsent) {
			a.absent(fmt.Sprintf("hemispheres[%d]", i), err)
			hemisphere = marsdata.Hemisphere{}
		} else if err != nil {
			return nil, fail(span, fmt.Errorf("hemisphere %d: %w", i, err))
		}
		result = append(result, hemisphere)

		if err := nav.Back(ctx); err != nil {
			return nil, fail(span, fmt.Errorf("hemisphere %d: %w", i, err))
		}
	}

	return result, nil
}

// ParseHemisphere extracts the title and sample image link from a hemisphere
// detail page. If either is missing neither is returned.
func ParseHemisphere(markup string, cfg scraper.HemisphereConfig) (marsdata.Hemisphere, error) {
	doc, err := extract.Parse(markup)
	if err != nil {
		return marsdata.Hemisphere{}, err
	}

	title, err := extract.Text(doc.Selection, "hemisphere_title", cfg.TitleSelector)
	if err != nil {
		return marsdata.Hemisphere{}, err
	}

	image, err := extract.LinkByText(doc.Selection, "hemisphere_image_url", cfg.SampleText)
	if err != nil {
		return marsdata.Hemisphere{}, err
	}

	return marsdata.Hemisphere{Title: &title, ImageURL: &image}, nil
}
