// Package facts fetches the Mars facts page and renders its first table as
// a description/value HTML fragment.
package facts

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/pevans/marsfed/fetch"
	"github.com/sirupsen/logrus"
)

// TableClass is the CSS class set on the rendered table.
const TableClass = "table table-striped"

var (
	ErrNoTable        = errors.New("no table on page")
	ErrMalformedTable = errors.New("table does not have two columns")
)

// Row is one description/value pair.
type Row struct {
	Description string
	Value       string
}

// Fetcher fetches and renders the facts table.
type Fetcher struct {
	client *resty.Client
	url    string
	log    *logrus.Entry
}

// NewFetcher creates a fetcher for the page at url.
func NewFetcher(client *resty.Client, url string, log *logrus.Entry) *Fetcher {
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Fetcher{
		client: client,
		url:    url,
		log:    log.WithField("component", "facts"),
	}
}

// Fetch fetches the page and returns the rendered table fragment.
func (f *Fetcher) Fetch(ctx context.Context) (string, error) {
	doc, err := fetch.HTML(ctx, f.client, f.url)
	if err != nil {
		return "", err
	}

	rows, err := ParseTable(doc)
	if err != nil {
		return "", err
	}

	return Render(rows), nil
}

// FetchOptional is Fetch with every failure reported as a nil fragment. The
// facts table is best effort, so nothing is propagated.
func (f *Fetcher) FetchOptional(ctx context.Context) *string {
	fragment, err := f.Fetch(ctx)
	if err != nil {
		f.log.WithError(err).WithField("url", f.url).Warn("facts table unavailable")
		return nil
	}
	return &fragment
}

// ParseTable reads the first table in doc as two-column rows. Rows made up
// only of header cells are skipped since the columns are renamed anyway.
func ParseTable(doc *goquery.Document) ([]Row, error) {
	tbl := doc.Find("table").First()
	if tbl.Length() == 0 {
		return nil, ErrNoTable
	}

	rows := []Row{}
	var parseErr error
	tbl.Find("tr").EachWithBreak(func(i int, tr *goquery.Selection) bool {
		// Rows of nested tables belong to those tables.
		if tr.Closest("table").Get(0) != tbl.Get(0) {
			return true
		}

		cells := tr.ChildrenFiltered("td, th")
		if cells.Length() == 0 || cells.Length() == cells.Filter("th").Length() {
			return true
		}
		if cells.Length() != 2 {
			parseErr = fmt.Errorf("row %d has %d cells: %w", i, cells.Length(), ErrMalformedTable)
			return false
		}

		rows = append(rows, Row{
			Description: cellText(cells.Eq(0)),
			Value:       cellText(cells.Eq(1)),
		})
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("table has no data rows: %w", ErrMalformedTable)
	}

	return rows, nil
}

// Render renders rows as an HTML table fragment with description and value
// columns. Cell text is escaped.
func Render(rows []Row) string {
	tw := table.NewWriter()
	tw.AppendHeader(table.Row{"description", "value"})
	for _, row := range rows {
		tw.AppendRow(table.Row{row.Description, row.Value})
	}

	style := tw.Style()
	style.Format.Header = text.FormatDefault
	style.HTML = table.HTMLOptions{
		CSSClass:    TableClass,
		EmptyColumn: "&nbsp;",
		EscapeText:  true,
		Newline:     "<br/>",
	}

	return tw.RenderHTML()
}

func cellText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}
