package scraper

import (
	"net/url"
	"time"
)

// HemisphereCount is the number of hemisphere entries visited on the listing
// page.
const HemisphereCount = 4

// DefaultWaitTimeout bounds the best-effort wait before reading a page.
const DefaultWaitTimeout = 500 * time.Millisecond

// Sources holds the upstream pages marsfed scrapes and the selectors used to
// pull each field out of them. The production values come from
// DefaultSources; everything else exists so tests can point the pipeline at
// local fixtures.
type Sources struct {
	News        NewsConfig
	Image       ImageConfig
	Hemispheres HemisphereConfig
	Weather     WeatherConfig
	FactsURL    string
}

// NewsConfig describes the news listing page.
type NewsConfig struct {
	URL               string
	SlideSelector     string
	TitleSelector     string
	ParagraphSelector string
}

// ImageConfig describes the two-click path to the featured image.
type ImageConfig struct {
	URL             string
	BaseURL         string // The relative src is resolved against this
	FullImageButton string
	MoreInfoText    string
	ImageSelector   string
}

// HemisphereConfig describes the hemisphere listing page and the detail pages
// it links to.
type HemisphereConfig struct {
	URL           string
	ItemSelector  string
	TitleSelector string
	SampleText    string
	Count         int
}

// WeatherConfig describes the profile page carrying the weather report.
type WeatherConfig struct {
	URL           string
	TweetSelector string
	TextSelector  string
}

// DefaultSources returns the fixed upstream pages.
func DefaultSources() Sources {
	return Sources{
		News: NewsConfig{
			URL:               "https://mars.nasa.gov/news/",
			SlideSelector:     "ul.item_list li.slide",
			TitleSelector:     "div.content_title",
			ParagraphSelector: "div.article_teaser_body",
		},
		Image: ImageConfig{
			URL:             "https://www.jpl.nasa.gov/spaceimages/?search=&category=Mars",
			BaseURL:         "https://www.jpl.nasa.gov",
			FullImageButton: "#full_image",
			MoreInfoText:    "more info",
			ImageSelector:   "figure.lede a img",
		},
		Hemispheres: NewHemisphereConfig(
			"https://astrogeology.usgs.gov/search/results?q=hemisphere+enhanced&k1=target&v1=Mars",
		),
		Weather: WeatherConfig{
			URL:           "https://twitter.com/marswxreport?lang=en",
			TweetSelector: `div.tweet[data-name="Mars Weather"]`,
			TextSelector:  "p.tweet-text",
		},
		FactsURL: "http://space-facts.com/mars/",
	}
}

// NewHemisphereConfig creates a hemisphere configuration for the given
// listing page with default selectors.
func NewHemisphereConfig(url string) HemisphereConfig {
	return HemisphereConfig{
		URL:           url,
		ItemSelector:  "a.product-item h3",
		TitleSelector: "h2.title",
		SampleText:    "Sample",
		Count:         HemisphereCount,
	}
}

// WithBaseURL rewrites every source URL so that it points at base while
// keeping its path and query. The image base URL becomes base itself.
func (s Sources) WithBaseURL(base string) Sources {
	s.News.URL = rebase(base, s.News.URL)
	s.Image.URL = rebase(base, s.Image.URL)
	s.Image.BaseURL = base
	s.Hemispheres.URL = rebase(base, s.Hemispheres.URL)
	s.Weather.URL = rebase(base, s.Weather.URL)
	s.FactsURL = rebase(base, s.FactsURL)
	return s
}

// rebase swaps the scheme and host of rawURL for those of base. Unparseable
// input is returned unchanged.
func rebase(base, rawURL string) string {
	b, err := url.Parse(base)
	if err != nil {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.Scheme = b.Scheme
	u.Host = b.Host
	return u.String()
}
