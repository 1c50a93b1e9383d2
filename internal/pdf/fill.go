package pdf

import (
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// Alignment is the quadding value of a text field (PDF /Q entry).
type Alignment int

const (
	AlignLeft   Alignment = 0
	AlignCenter Alignment = 1
	AlignRight  Alignment = 2
)

// TextFill holds the value and presentation for one text field.
type TextFill struct {
	Value    string
	FontSize float64
	Align    Alignment
	FontName string
}

// fontResourceName is the resource key used for the fill font in both the
// field DA strings and the flattened page content.
const fontResourceName = "Helv"

// FillTextFields walks every text widget, strips its visual decoration so
// the template artwork shows through, and applies the matching fill (by
// fully-qualified field name) where one is given. Unmatched fields are
// left blank. Applied fills are remembered for a later Flatten call.
func (d *Document) FillTextFields(fills map[string]TextFill) error {
	filled := 0

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

			// No background fill, no border: the certificate artwork
			// underneath is the visual.
			delete(ad, "MK")
			delete(ad, "Border")
			delete(ad, "BS")

			fill, ok := fills[d.fieldName(ad)]
			if !ok {
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

			ad["V"] = types.StringLiteral(fill.Value)
			ad["DA"] = types.StringLiteral(fmt.Sprintf("/%s %.1f Tf 0 g", fontResourceName, fill.FontSize))
			ad["Q"] = types.Integer(int(fill.Align))
			// Drop stale appearance streams so viewers regenerate them
			// from V/DA when the form stays interactive.
			delete(ad, "AP")

			d.placed = append(d.placed, placement{page: pageIndex, rect: rect, fill: fill})
			filled++
		}
		return nil
	})
	if err != nil {
		return err
	}

	if filled > 0 {
		if err := d.setNeedAppearances(); err != nil {
			return err
		}
	}
	return nil
}

func (d *Document) setNeedAppearances() error {
	root, err := d.ctx.XRefTable.Catalog()
	if err != nil {
		return err
	}
	acroObj, ok := root["AcroForm"]
	if !ok {
		return nil
	}
	acro, err := d.ctx.XRefTable.DereferenceDict(acroObj)
	if err != nil || acro == nil {
		return err
	}
	acro["NeedAppearances"] = types.Boolean(true)
	return nil
}
