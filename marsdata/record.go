package marsdata

import "time"

// Record is the aggregate of one scrape. Pointer fields are nil when the
// upstream page did not carry them; they serialize as null, never omitted.
type Record struct {
	NewsTitle        *string      `json:"news_title"`
	NewsParagraph    *string      `json:"news_paragraph"`
	FeaturedImageURL *string      `json:"featured_image_url"`
	Hemispheres      []Hemisphere `json:"hemispheres"`
	WeatherText      string       `json:"weather_text"`
	FactsTable       *string      `json:"facts_table"`
	LastUpdated      time.Time    `json:"last_updated"`
}

// Hemisphere is one hemisphere image. Both fields are nil together when the
// detail page could not be read.
type Hemisphere struct {
	Title    *string `json:"title"`
	ImageURL *string `json:"image_url"`
}

// Complete reports whether both fields are present.
func (h Hemisphere) Complete() bool {
	return h.Title != nil && h.ImageURL != nil
}

// String returns a pointer to s, for populating optional fields.
func String(s string) *string {
	return &s
}
