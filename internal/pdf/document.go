// Package pdf wraps the pdfcpu library with the small surface the
// certificate engine needs: AcroForm text-widget discovery, field fill,
// and flattening filled fields into static page content.
package pdf

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Rect is an axis-aligned bounding box in PDF user space.
type Rect struct {
	X0, Y0, X1, Y1 float64
}

func (r Rect) Width() float64 {
	return r.X1 - r.X0
}

func (r Rect) Height() float64 {
	return r.Y1 - r.Y0
}

// Widget describes one text-type AcroForm widget found in a document.
type Widget struct {
	Name string
	Rect Rect
	Page int
}

// Document is a single in-memory PDF instance. Each render opens its own
// Document; instances are not safe for concurrent use and must not be
// shared across goroutines.
type Document struct {
	ctx    *model.Context
	path   string
	placed []placement
}

type placement struct {
	page int
	rect Rect
	fill TextFill
}

// Open reads and validates a PDF file into memory. The underlying file
// handle is closed before Open returns, on success and on failure.
func Open(path string) (*Document, error) {
	ctx, err := api.ReadContextFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to validate %s: %w", path, err)
	}
	return &Document{ctx: ctx, path: path}, nil
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	return d.ctx.PageCount
}

// WriteFile serializes the document to path.
func (d *Document) WriteFile(path string) error {
	return api.WriteContextFile(d.ctx, path)
}

// forEachPage walks the page tree in document order, invoking fn with the
// zero-based page index and the dereferenced page dict.
func (d *Document) forEachPage(fn func(pageIndex int, pd types.Dict) error) error {
	xref := d.ctx.XRefTable

	root, err := xref.Catalog()
	if err != nil {
		return fmt.Errorf("missing document catalog: %w", err)
	}

	pagesObj, ok := root["Pages"]
	if !ok {
		return fmt.Errorf("document catalog has no page tree")
	}

	pageIndex := -1

	var walk func(obj types.Object) error
	walk = func(obj types.Object) error {
		nd, err := xref.DereferenceDict(obj)
		if err != nil {
			return err
		}
		if nd == nil {
			return nil
		}

		if kidsObj, ok := nd["Kids"]; ok {
			kids, err := xref.DereferenceArray(kidsObj)
			if err != nil {
				return err
			}
			for _, kid := range kids {
				if err := walk(kid); err != nil {
					return err
				}
			}
			return nil
		}

		pageIndex++
		return fn(pageIndex, nd)
	}

	return walk(pagesObj)
}

// deref helpers keep the type plumbing around pdfcpu objects in one place.

func (d *Document) derefName(obj types.Object) string {
	o, err := d.ctx.XRefTable.Dereference(obj)
	if err != nil {
		return ""
	}
	if n, ok := o.(types.Name); ok {
		return n.Value()
	}
	return ""
}

func (d *Document) derefString(obj types.Object) string {
	o, err := d.ctx.XRefTable.Dereference(obj)
	if err != nil {
		return ""
	}
	switch s := o.(type) {
	case types.StringLiteral:
		v, err := types.StringLiteralToString(s)
		if err != nil {
			return ""
		}
		return v
	case types.HexLiteral:
		v, err := types.HexLiteralToString(s)
		if err != nil {
			return ""
		}
		return v
	}
	return ""
}

func (d *Document) derefFloat(obj types.Object) (float64, bool) {
	o, err := d.ctx.XRefTable.Dereference(obj)
	if err != nil {
		return 0, false
	}
	switch n := o.(type) {
	case types.Integer:
		return float64(n.Value()), true
	case types.Float:
		return n.Value(), true
	}
	return 0, false
}

func (d *Document) derefRect(obj types.Object) (Rect, bool) {
	arr, err := d.ctx.XRefTable.DereferenceArray(obj)
	if err != nil || len(arr) != 4 {
		return Rect{}, false
	}
	vals := make([]float64, 4)
	for i, o := range arr {
		v, ok := d.derefFloat(o)
		if !ok {
			return Rect{}, false
		}
		vals[i] = v
	}
	r := Rect{X0: vals[0], Y0: vals[1], X1: vals[2], Y1: vals[3]}
	// Normalize: Rect entries may have swapped corners.
	if r.X0 > r.X1 {
		r.X0, r.X1 = r.X1, r.X0
	}
	if r.Y0 > r.Y1 {
		r.Y0, r.Y1 = r.Y1, r.Y0
	}
	return r, true
}
