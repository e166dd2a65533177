// Package extract pulls single fields out of page markup with CSS selectors.
// A selector that matches nothing is reported as a *FieldError wrapping
// ErrAbsent so callers can turn it into a null field explicitly.
package extract

import (
	"errors"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrAbsent marks an expected element or attribute that is not on the page.
var ErrAbsent = errors.New("element not present")

// FieldError describes a structural mismatch while extracting one field.
type FieldError struct {
	Field    string
	Selector string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: no match for %q", e.Field, e.Selector)
}

// Unwrap lets errors.Is match ErrAbsent.
func (e *FieldError) Unwrap() error {
	return ErrAbsent
}

func absent(field, selector string) error {
	return &FieldError{Field: field, Selector: selector}
}

// Parse parses raw markup into a document.
func Parse(markup string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}
	return doc, nil
}

// Find returns the first element under sel matching selector.
func Find(sel *goquery.Selection, field, selector string) (*goquery.Selection, error) {
	found := sel.Find(selector).First()
	if found.Length() == 0 {
		return nil, absent(field, selector)
	}
	return found, nil
}

// Text returns the whitespace-normalised text of the first element matching
// selector.
func Text(sel *goquery.Selection, field, selector string) (string, error) {
	found, err := Find(sel, field, selector)
	if err != nil {
		return "", err
	}
	return normalize(found.Text()), nil
}

// Attr returns attribute attr of the first element matching selector.
func Attr(sel *goquery.Selection, field, selector, attr string) (string, error) {
	found, err := Find(sel, field, selector)
	if err != nil {
		return "", err
	}
	value, ok := found.Attr(attr)
	if !ok {
		return "", absent(field, selector+"["+attr+"]")
	}
	return value, nil
}

// LinkByText returns the href of the first anchor whose text is exactly text
// once surrounding whitespace is trimmed.
func LinkByText(sel *goquery.Selection, field, text string) (string, error) {
	selector := fmt.Sprintf("a:text(%q)", text)

	anchor := sel.Find("a").FilterFunction(func(_ int, s *goquery.Selection) bool {
		return strings.TrimSpace(s.Text()) == text
	}).First()
	if anchor.Length() == 0 {
		return "", absent(field, selector)
	}

	href, ok := anchor.Attr("href")
	if !ok {
		return "", absent(field, selector+"[href]")
	}
	return href, nil
}

// Optional converts a structural absence into a nil value. Any other error is
// returned unchanged.
func Optional(value string, err error) (*string, error) {
	if errors.Is(err, ErrAbsent) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &value, nil
}

// normalize collapses runs of whitespace into single spaces.
func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
