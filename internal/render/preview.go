package render

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/certforge/certforge/internal/template"
)

// previewRecipient is the sample identity used for template previews.
var previewRecipient = template.Recipient{FirstName: "John", LastName: "Doe"}

// Preview renders a sample certificate and returns its bytes. The
// intermediate file lives in the OS temp dir and is removed before
// returning, success or not.
func (r *Renderer) Preview() ([]byte, error) {
	path := filepath.Join(os.TempDir(), fmt.Sprintf("certforge-preview-%s.pdf", uuid.NewString()))
	defer os.Remove(path)

	if err := r.Render(previewRecipient, path); err != nil {
		return nil, err
	}
	return os.ReadFile(path)
}
