// Package render turns recipient data plus a mapped template into finished
// certificate PDFs.
package render

// Width estimation uses a flat per-glyph advance. Exact metrics would need
// the embedded font program; for certificate-length names the approximation
// stays within the safety margin.
const (
	glyphWidthRatio  = 0.6
	usableRectRatio  = 0.9
	fontSizeStepDown = 0.5
)

// FitFontSize picks the largest font size within [minSize, maxSize] whose
// estimated text width fits inside 90% of rectWidth. Text that cannot fit
// even at minSize gets minSize; overflow is accepted rather than shrinking
// below the readability floor. Pure and deterministic.
func FitFontSize(text string, rectWidth, maxSize, minSize float64) float64 {
	if maxSize < minSize {
		maxSize = minSize
	}

	runeCount := float64(len([]rune(text)))
	usable := rectWidth * usableRectRatio

	size := maxSize
	for size > minSize && runeCount*size*glyphWidthRatio > usable {
		size -= fontSizeStepDown
	}
	if size < minSize {
		size = minSize
	}
	return size
}
