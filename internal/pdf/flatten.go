package pdf

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// glyphWidthRatio is the average glyph width relative to font size used to
// place flattened text. It matches the fitter's approximation so flattened
// output agrees with the size the fitter chose.
const glyphWidthRatio = 0.6

// Flatten bakes the fills applied by FillTextFields into static page
// content and removes the interactive form: widget annotations are
// dropped and the AcroForm entry is deleted from the catalog. The result
// renders identically everywhere and is no longer editable.
func (d *Document) Flatten() error {
	byPage := make(map[int][]placement)
	for _, p := range d.placed {
		byPage[p.page] = append(byPage[p.page], p)
	}

	err := d.forEachPage(func(pageIndex int, pd types.Dict) error {
		if err := d.stripWidgets(pd); err != nil {
			return err
		}

		placements := byPage[pageIndex]
		if len(placements) == 0 {
			return nil
		}

		if err := d.ensureFillFont(pd); err != nil {
			return err
		}

		content := renderPlacements(placements)
		return d.appendContent(pd, content)
	})
	if err != nil {
		return err
	}

	root, err := d.ctx.XRefTable.Catalog()
	if err != nil {
		return err
	}
	delete(root, "AcroForm")
	d.placed = nil
	return nil
}

// stripWidgets removes widget annotations from a page, keeping any other
// annotation types intact.
func (d *Document) stripWidgets(pd types.Dict) error {
	annotsObj, ok := pd["Annots"]
	if !ok {
		return nil
	}
	annots, err := d.ctx.XRefTable.DereferenceArray(annotsObj)
	if err != nil {
		return err
	}

	kept := types.Array{}
	for _, a := range annots {
		ad, err := d.ctx.XRefTable.DereferenceDict(a)
		if err != nil || ad == nil {
			continue
		}
		if sub, ok := ad["Subtype"]; ok && d.derefName(sub) == "Widget" {
			continue
		}
		kept = append(kept, a)
	}

	if len(kept) == 0 {
		delete(pd, "Annots")
		return nil
	}
	pd["Annots"] = kept
	return nil
}

// ensureFillFont guarantees the page resources expose the fill font under
// fontResourceName so the generated content stream can reference it.
func (d *Document) ensureFillFont(pd types.Dict) error {
	xref := d.ctx.XRefTable

	var res types.Dict
	if resObj, ok := pd["Resources"]; ok {
		var err error
		res, err = xref.DereferenceDict(resObj)
		if err != nil {
			return err
		}
	}
	if res == nil {
		res = types.Dict{}
		pd["Resources"] = res
	}

	var fonts types.Dict
	if fontObj, ok := res["Font"]; ok {
		var err error
		fonts, err = xref.DereferenceDict(fontObj)
		if err != nil {
			return err
		}
	}
	if fonts == nil {
		fonts = types.Dict{}
		res["Font"] = fonts
	}

	if _, ok := fonts[fontResourceName]; ok {
		return nil
	}

	helv := types.Dict{
		"Type":     types.Name("Font"),
		"Subtype":  types.Name("Type1"),
		"BaseFont": types.Name("Helvetica"),
		"Encoding": types.Name("WinAnsiEncoding"),
	}
	ir, err := xref.IndRefForNewObject(helv)
	if err != nil {
		return err
	}
	fonts[fontResourceName] = *ir
	return nil
}

// appendContent adds a new content stream after the page's existing ones.
func (d *Document) appendContent(pd types.Dict, content []byte) error {
	xref := d.ctx.XRefTable

	sd, err := xref.NewStreamDictForBuf(content)
	if err != nil {
		return err
	}
	if err := sd.Encode(); err != nil {
		return err
	}
	ir, err := xref.IndRefForNewObject(*sd)
	if err != nil {
		return err
	}

	switch contents := pd["Contents"].(type) {
	case types.Array:
		pd["Contents"] = append(contents, *ir)
	case types.IndirectRef:
		pd["Contents"] = types.Array{contents, *ir}
	default:
		pd["Contents"] = *ir
	}
	return nil
}

// renderPlacements produces the page content operators drawing each placed
// field value at its alignment-resolved position inside the field box.
func renderPlacements(placements []placement) []byte {
	var buf bytes.Buffer
	buf.WriteString("q\n")
	for _, p := range placements {
		size := p.fill.FontSize
		textWidth := float64(utf8.RuneCountInString(p.fill.Value)) * size * glyphWidthRatio

		var tx float64
		switch p.fill.Align {
		case AlignRight:
			tx = p.rect.X1 - 2 - textWidth
		case AlignCenter:
			tx = p.rect.X0 + (p.rect.Width()-textWidth)/2
		default:
			tx = p.rect.X0 + 2
		}
		if tx < p.rect.X0 {
			tx = p.rect.X0
		}
		// Vertical centering with an approximate baseline offset.
		ty := p.rect.Y0 + (p.rect.Height()-size)/2 + size*0.25

		fmt.Fprintf(&buf, "BT /%s %.2f Tf 0 g %.2f %.2f Td (%s) Tj ET\n",
			fontResourceName, size, tx, ty, escapeText(p.fill.Value))
	}
	buf.WriteString("Q\n")
	return buf.Bytes()
}

// escapeText escapes a string for inclusion in a PDF literal string.
// Runes outside WinAnsi range degrade to '?' rather than corrupting the
// content stream.
func escapeText(s string) string {
	var buf bytes.Buffer
	for _, r := range s {
		switch r {
		case '\\':
			buf.WriteString(`\\`)
		case '(':
			buf.WriteString(`\(`)
		case ')':
			buf.WriteString(`\)`)
		default:
			if r < 256 {
				buf.WriteByte(byte(r))
			} else {
				buf.WriteByte('?')
			}
		}
	}
	return buf.String()
}
