// Package web serves the stored Mars record and the route that refreshes it.
package web

import (
	"context"
	"embed"
	"html/template"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/pevans/marsfed/marsdata"
	"github.com/sirupsen/logrus"
)

//go:embed templates/*.html
var templatesFS embed.FS

// ScrapeSuccess is the body returned by a successful refresh.
const ScrapeSuccess = "Scraping Successful!"

// RequestIDHeader carries the request id in both directions.
const RequestIDHeader = "X-Request-ID"

// RecordStore reads and replaces the stored record.
type RecordStore interface {
	Get() (*marsdata.Record, error)
	Upsert(record *marsdata.Record) error
}

// Scraper produces a fresh record.
type Scraper interface {
	Scrape(ctx context.Context) (*marsdata.Record, error)
}

// Server represents the HTTP server for the Mars page.
type Server struct {
	store   RecordStore
	scraper Scraper
	log     *logrus.Entry
	tmpl    *template.Template

	// Held for the whole of a refresh so scrapes never overlap.
	scrapeMu sync.Mutex
}

// NewServer creates a new server reading from store and refreshing it with
// scraper.
func NewServer(store RecordStore, scraper Scraper, log *logrus.Entry) *Server {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Server{
		store:   store,
		scraper: scraper,
		log:     log.WithField("component", "web"),
		tmpl:    template.Must(template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")),
	}
}

var templateFuncs = template.FuncMap{
	// text renders an optional field, empty when null.
	"text": func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	},
	// fragment marks markup rendered by marsfed itself as safe.
	"fragment": func(s *string) template.HTML {
		if s == nil {
			return ""
		}
		return template.HTML(*s)
	},
}

// SetupRouter configures the Gin router with all routes.
func (s *Server) SetupRouter() *gin.Engine {
	router := gin.New()
	router.Use(requestID(), s.logRequests(), gin.Recovery())
	router.SetHTMLTemplate(s.tmpl)

	router.GET("/", s.HandleIndex)
	router.GET("/scrape", s.HandleScrape)
	router.GET("/api/v1/mars", s.HandleGetRecord)

	return router
}

// errorResponse creates a standardized error response.
func errorResponse(code, message string) gin.H {
	return gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	}
}

// HandleIndex handles GET /.
func (s *Server) HandleIndex(c *gin.Context) {
	record, err := s.store.Get()
	if err != nil {
		s.requestLog(c).WithError(err).Error("failed to read record")
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to retrieve Mars data"))
		return
	}

	c.HTML(http.StatusOK, "index.html", gin.H{"mars": record})
}

// HandleScrape handles GET /scrape. The stored record is only replaced when
// the whole scrape succeeds.
func (s *Server) HandleScrape(c *gin.Context) {
	s.scrapeMu.Lock()
	defer s.scrapeMu.Unlock()

	log := s.requestLog(c)

	record, err := s.scraper.Scrape(c.Request.Context())
	if err != nil {
		log.WithError(err).Error("scrape failed")
		c.JSON(http.StatusInternalServerError, errorResponse("scrape_failed", err.Error()))
		return
	}

	if err := s.store.Upsert(record); err != nil {
		log.WithError(err).Error("failed to store record")
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to store Mars data"))
		return
	}

	log.WithField("last_updated", record.LastUpdated).Info("record updated")
	c.String(http.StatusOK, ScrapeSuccess)
}

// HandleGetRecord handles GET /api/v1/mars.
func (s *Server) HandleGetRecord(c *gin.Context) {
	record, err := s.store.Get()
	if err != nil {
		s.requestLog(c).WithError(err).Error("failed to read record")
		c.JSON(http.StatusInternalServerError, errorResponse("internal_error", "Failed to retrieve Mars data"))
		return
	}
	if record == nil {
		c.JSON(http.StatusNotFound, errorResponse("not_found", "No Mars data has been scraped yet"))
		return
	}

	c.JSON(http.StatusOK, record)
}

// requestID tags every request with an id, reusing one supplied by the
// client.
func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set("request_id", id)
		c.Header(RequestIDHeader, id)
		c.Next()
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		s.requestLog(c).WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start),
		}).Info("request")
	}
}

func (s *Server) requestLog(c *gin.Context) *logrus.Entry {
	return s.log.WithField("request_id", c.GetString("request_id"))
}
