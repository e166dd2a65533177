package aggregator

import (
	"context"
	"errors"
	"net/url"

	"github.com/pevans/marsfed/extract"
	"github.com/pevans/marsfed/navigator"
	"github.com/pevans/marsfed/scraper"
)

// featuredImage clicks through to the featured image detail page and returns
// the absolute image URL.
func (a *Aggregator) featuredImage(ctx context.Context, nav navigator.Navigator) (*string, error) {
	ctx, span := a.tracer.Start(ctx, "featured_image")
	defer span.End()

	cfg := a.sources.Image
	if err := nav.Visit(ctx, cfg.URL); err != nil {
		return nil, fail(span, err)
	}

	if err := nav.Click(ctx, navigator.CSS(cfg.FullImageButton), 0); err != nil {
		return nil, fail(span, err)
	}

	moreInfo := navigator.LinkText(cfg.MoreInfoText)
	nav.WaitFor(ctx, moreInfo, a.wait)
	if err := nav.Click(ctx, moreInfo, 0); err != nil {
		return nil, fail(span, err)
	}

	markup, err := nav.HTML(ctx)
	if err != nil {
		return nil, fail(span, err)
	}

	src, err := ParseFeaturedImage(markup, cfg)
	image, err := a.optional("featured_image_url", src, err)
	if err != nil {
		return nil, fail(span, err)
	}
	return image, nil
}

// ParseFeaturedImage extracts the image source from the detail page and
// resolves it against the image base URL.
func ParseFeaturedImage(markup string, cfg scraper.ImageConfig) (string, error) {
	doc, err := extract.Parse(markup)
	if err != nil {
		return "", err
	}

	src, err := extract.Attr(doc.Selection, "featured_image_url", cfg.ImageSelector, "src")
	if err != nil {
		return "", err
	}

	return absoluteURL(cfg.BaseURL, src), nil
}

// absoluteURL resolves ref against base. When either does not parse, ref is
// appended to base as-is.
func absoluteURL(base, ref string) string {
	b, err := url.Parse(base)
	if err != nil {
		return base + ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return base + ref
	}
	return b.ResolveReference(r).String()
}

// optional applies the null-on-absence policy to one field, logging the
// absence.
func (a *Aggregator) optional(field, value string, err error) (*string, error) {
	if errors.Is(err, extract.ErrAbsent) {
		a.absent(field, err)
	}
	return extract.Optional(value, err)
}
