// Package marstest serves local copies of the upstream Mars pages so the
// scrape pipeline can be exercised without the network.
package marstest

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/pevans/marsfed/scraper"
)

// Paths of the pages served by Site, matching scraper.DefaultSources once
// rebased onto the site URL.
const (
	NewsPath        = "/news/"
	ImagePath       = "/spaceimages/"
	FancyboxPath    = "/spaceimages/fancybox"
	ImageDetailPath = "/spaceimages/details.php"
	HemispherePath  = "/search/results"
	WeatherPath     = "/marswxreport"
	FactsPath       = "/mars/"
)

// Expected values extracted from the default pages.
const (
	NewsTitle     = "NASA's Mars 2020 Rover Closer to Getting Its Name"
	NewsParagraph = "155 students from across the U.S. have been chosen as semifinalists."
	ImageSrc      = "/spaceimages/images/largesize/PIA16883_hires.jpg"
	WeatherText   = "InSight sol 497 (2020-04-14) low -93.9ºC (-137.0ºF) high -12.4ºC (9.6ºF)"
)

// HemisphereNames are the four hemispheres listed, in page order.
var HemisphereNames = []string{"Cerberus", "Schiaparelli", "Syrtis Major", "Valles Marineris"}

// HemisphereTitle returns the detail page title for hemisphere i.
func HemisphereTitle(i int) string {
	return HemisphereNames[i] + " Hemisphere Enhanced"
}

// HemisphereImage returns the sample image URL for hemisphere i.
func HemisphereImage(i int) string {
	return fmt.Sprintf("https://astropedia.astrogeology.usgs.gov/download/Mars/Viking/hemisphere_%d.tif/full.jpg", i)
}

// HemisphereDetailPath returns the path of the detail page for hemisphere i.
func HemisphereDetailPath(i int) string {
	return fmt.Sprintf("/search/map/Mars/Viking/hemisphere_%d", i)
}

// Site is a local stand-in for every upstream page. Pages can be replaced or
// removed while the server runs.
type Site struct {
	Server *httptest.Server

	mu    sync.Mutex
	pages map[string]string
	hits  map[string]int
}

// NewSite starts a site with the default pages. It is closed when the test
// ends.
func NewSite(t testing.TB) *Site {
	site := &Site{
		pages: DefaultPages(),
		hits:  map[string]int{},
	}
	site.Server = httptest.NewServer(http.HandlerFunc(site.serve))
	t.Cleanup(site.Server.Close)
	return site
}

func (s *Site) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	body, ok := s.pages[r.URL.Path]
	s.hits[r.URL.Path]++
	s.mu.Unlock()

	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write([]byte(body))
}

// Sources returns the default sources rebased onto the site.
func (s *Site) Sources() scraper.Sources {
	return scraper.DefaultSources().WithBaseURL(s.Server.URL)
}

// Set replaces the page at path.
func (s *Site) Set(path, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[path] = body
}

// Remove makes path answer 404.
func (s *Site) Remove(path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pages, path)
}

// Hits returns how many requests path received.
func (s *Site) Hits(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[path]
}

// DefaultPages returns the full set of well-formed pages keyed by path.
func DefaultPages() map[string]string {
	pages := map[string]string{
		NewsPath: `<html><body>
			<ul class="item_list">
				<li class="slide">
					<div class="content_title"><a href="/news/8436/">` + NewsTitle + `</a></div>
					<div class="article_teaser_body">` + NewsParagraph + `</div>
				</li>
				<li class="slide">
					<div class="content_title"><a href="/news/8435/">Older story</a></div>
					<div class="article_teaser_body">Older teaser.</div>
				</li>
			</ul>
		</body></html>`,
		ImagePath: `<html><body>
			<a class="button fancybox" id="full_image" href="` + FancyboxPath + `">FULL IMAGE</a>
		</body></html>`,
		FancyboxPath: `<html><body>
			<div class="fancybox-title"><a href="` + ImageDetailPath + `?id=PIA16883">more info</a></div>
		</body></html>`,
		ImageDetailPath: `<html><body>
			<figure class="lede"><a href="` + ImageSrc + `"><img src="` + ImageSrc + `" alt="Mars"></a></figure>
		</body></html>`,
		WeatherPath: `<html><body>
			<div class="tweet" data-name="Someone Else"><p class="tweet-text">Not the weather</p></div>
			<div class="tweet" data-name="Mars Weather"><p class="tweet-text">` + WeatherText + `</p></div>
		</body></html>`,
		FactsPath: `<html><body>
			<table id="tablepress-p-mars">
				<tr><td>Equatorial Diameter:</td><td>6,792 km</td></tr>
				<tr><td>Polar Diameter:</td><td>6,752 km</td></tr>
				<tr><td>Moons:</td><td>2 (Phobos &amp; Deimos)</td></tr>
			</table>
		</body></html>`,
	}

	listing := `<html><body><div class="collapsible results">`
	for i, name := range HemisphereNames {
		listing += fmt.Sprintf(
			`<div class="item"><a href="%s" class="product-item"><h3>%s Hemisphere Enhanced</h3></a></div>`,
			HemisphereDetailPath(i), name,
		)
		pages[HemisphereDetailPath(i)] = HemisphereDetail(HemisphereTitle(i), HemisphereImage(i))
	}
	listing += `</div></body></html>`
	pages[HemispherePath] = listing

	return pages
}

// HemisphereDetail renders a hemisphere detail page. An empty title or image
// leaves that element out.
func HemisphereDetail(title, image string) string {
	body := `<html><body><section class="block metadata">`
	if title != "" {
		body += `<h2 class="title">` + title + `</h2>`
	}
	body += `<div class="downloads"><ul>`
	if image != "" {
		body += `<li><a href="` + image + `" target="_blank">Sample</a> (jpg) 1024px wide</li>`
	}
	body += `<li><a href="/original.tif">Original</a></li></ul></div></section></body></html>`
	return body
}
