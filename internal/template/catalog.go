// Package template implements field discovery, logical role mapping, and
// validation for certificate templates (PDFs carrying AcroForm text
// fields). Discovery is driven entirely by field names; no external
// manifest is consulted.
package template

import (
	"github.com/certforge/certforge/internal/errors"
	"github.com/certforge/certforge/internal/pdf"
)

// Default font bounds applied to discovered fields unless configured
// otherwise.
const (
	DefaultMaxFontSize = 48.0
	DefaultMinFontSize = 24.0
)

// FontBounds carries the configured font size window for discovered fields.
type FontBounds struct {
	Max float64
	Min float64
}

// DefaultFontBounds returns the stock 24–48pt window.
func DefaultFontBounds() FontBounds {
	return FontBounds{Max: DefaultMaxFontSize, Min: DefaultMinFontSize}
}

// Discover opens the template and enumerates its text fields. A template
// that opens but contains no text fields yields an empty catalog, not an
// error; mapping validation rejects it downstream. The document handle is
// released before Discover returns on every path.
func Discover(templatePath string, bounds FontBounds) (*Catalog, error) {
	doc, err := pdf.Open(templatePath)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTemplateUnreadable.Code, errors.ErrTemplateUnreadable.Message)
	}

	widgets, err := doc.TextWidgets()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrTemplateUnreadable.Code, errors.ErrTemplateUnreadable.Message)
	}

	cat := &Catalog{
		Fields:    make(map[string]Field, len(widgets)),
		PageCount: doc.PageCount(),
	}
	for _, w := range widgets {
		// A field may surface through several widgets; the first wins.
		if _, seen := cat.Fields[w.Name]; seen {
			continue
		}
		cat.Fields[w.Name] = Field{
			Name:        w.Name,
			Rect:        w.Rect,
			Page:        w.Page,
			MaxFontSize: bounds.Max,
			MinFontSize: bounds.Min,
		}
		cat.Order = append(cat.Order, w.Name)
	}

	return cat, nil
}
