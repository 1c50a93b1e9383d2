package pdf

import (
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// TextWidgets enumerates every text-type form widget in page order. The
// returned slice preserves discovery order; widgets without a resolvable
// field name are skipped.
func (d *Document) TextWidgets() ([]Widget, error) {
	var widgets []Widget

	err := d.forEachPage(func(pageIndex int, pd types.Dict) error {
		annotsObj, ok := pd["Annots"]
		if !ok {
			return nil
		}
		annots, err := d.ctx.XRefTable.DereferenceArray(annotsObj)
		if err != nil {
			return err
		}

		for _, a := range annots {
			ad, err := d.ctx.XRefTable.DereferenceDict(a)
			if err != nil || ad == nil {
				continue
			}
			if !d.isTextWidget(ad) {
				continue
			}
			name := d.fieldName(ad)
			if name == "" {
				continue
			}
			rectObj, ok := ad["Rect"]
			if !ok {
				continue
			}
			rect, ok := d.derefRect(rectObj)
			if !ok {
				continue
			}
			widgets = append(widgets, Widget{Name: name, Rect: rect, Page: pageIndex})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return widgets, nil
}

// isTextWidget reports whether ad is a widget annotation for a text field.
// The field type may live on the widget itself or on its parent field dict.
func (d *Document) isTextWidget(ad types.Dict) bool {
	if sub, ok := ad["Subtype"]; !ok || d.derefName(sub) != "Widget" {
		return false
	}
	return d.fieldType(ad) == "Tx"
}

func (d *Document) fieldType(ad types.Dict) string {
	for ad != nil {
		if ft, ok := ad["FT"]; ok {
			return d.derefName(ft)
		}
		parentObj, ok := ad["Parent"]
		if !ok {
			break
		}
		parent, err := d.ctx.XRefTable.DereferenceDict(parentObj)
		if err != nil {
			break
		}
		ad = parent
	}
	return ""
}

// fieldName resolves the fully-qualified field name by joining partial
// names up the Parent chain with dots, per the AcroForm naming scheme.
func (d *Document) fieldName(ad types.Dict) string {
	var parts []string
	for ad != nil {
		if t, ok := ad["T"]; ok {
			if part := d.derefString(t); part != "" {
				parts = append([]string{part}, parts...)
			}
		}
		parentObj, ok := ad["Parent"]
		if !ok {
			break
		}
		parent, err := d.ctx.XRefTable.DereferenceDict(parentObj)
		if err != nil {
			break
		}
		ad = parent
	}
	return strings.Join(parts, ".")
}
