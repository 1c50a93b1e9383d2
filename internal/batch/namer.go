package batch

import (
	"fmt"
	"strings"
	"sync"
)

// Namer hands out unique output filenames within one batch run. The base
// form is First_Last.pdf; later recipients with the same name get _1, _2
// suffixes in first-come order.
type Namer struct {
	mu   sync.Mutex
	seen map[string]int
}

func NewNamer() *Namer {
	return &Namer{seen: make(map[string]int)}
}

// BaseFilename returns the First_Last stem for a recipient, sanitized for
// filesystem use, without extension or collision suffix.
func BaseFilename(first, last string) string {
	return fmt.Sprintf("%s_%s", sanitizeNamePart(first), sanitizeNamePart(last))
}

// Filename returns the unique output name for a recipient.
func (n *Namer) Filename(first, last string) string {
	base := BaseFilename(first, last)

	n.mu.Lock()
	defer n.mu.Unlock()

	count := n.seen[base]
	n.seen[base] = count + 1
	if count == 0 {
		return base + ".pdf"
	}
	return fmt.Sprintf("%s_%d.pdf", base, count)
}

// sanitizeNamePart makes a name safe to embed in a filename: whitespace
// and path separators collapse to underscores.
func sanitizeNamePart(s string) string {
	s = strings.TrimSpace(s)
	replacer := strings.NewReplacer(
		" ", "_",
		"\t", "_",
		"/", "_",
		"\\", "_",
	)
	return replacer.Replace(s)
}
