package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/certforge/certforge/internal/errors"
	"github.com/certforge/certforge/internal/pdf"
	"github.com/certforge/certforge/internal/template"
)

// dateFormat is the stamp written into a mapped date field when the
// recipient carries no explicit date value.
const dateFormat = "January 02, 2006"

// Options configure presentation aspects of rendering.
type Options struct {
	// Flatten bakes filled values into page content and removes the form,
	// producing a non-editable certificate. On by default.
	Flatten bool
	// FontName is an optional display font name. The built-in Helvetica is
	// used when empty.
	FontName string
}

// DefaultOptions returns the stock rendering options.
func DefaultOptions() Options {
	return Options{Flatten: true}
}

// Renderer produces certificates from one template plus one role mapping.
// Safe for concurrent use: every Render call opens its own document
// instance and touches no shared mutable state.
type Renderer struct {
	templatePath string
	catalog      *template.Catalog
	mapping      template.Mapping
	opts         Options
	logger       *zap.Logger
	now          func() time.Time
}

// New builds a Renderer. The catalog and mapping must describe the
// template at templatePath.
func New(templatePath string, cat *template.Catalog, mapping template.Mapping, opts Options, logger *zap.Logger) *Renderer {
	return &Renderer{
		templatePath: templatePath,
		catalog:      cat,
		mapping:      mapping,
		opts:         opts,
		logger:       logger,
		now:          time.Now,
	}
}

// Render fills the template for one recipient and writes the result to
// outputPath atomically: the document is serialized to a sibling temp file
// and renamed into place, so readers never observe a partial certificate.
func (r *Renderer) Render(rec template.Recipient, outputPath string) error {
	if strings.TrimSpace(rec.FirstName) == "" || strings.TrimSpace(rec.LastName) == "" {
		return errors.ErrMissingName
	}

	start := time.Now()

	doc, err := pdf.Open(r.templatePath)
	if err != nil {
		return errors.Wrap(err, errors.ErrRenderGeneration.Code, errors.ErrRenderGeneration.Message)
	}

	if err := doc.FillTextFields(r.buildFills(rec)); err != nil {
		return errors.Wrap(err, errors.ErrRenderGeneration.Code, errors.ErrRenderGeneration.Message)
	}

	if r.opts.Flatten {
		if err := doc.Flatten(); err != nil {
			return errors.Wrap(err, errors.ErrRenderGeneration.Code, errors.ErrRenderGeneration.Message)
		}
	}

	if err := r.writeAtomic(doc, outputPath); err != nil {
		return errors.Wrap(err, errors.ErrRenderGeneration.Code, errors.ErrRenderGeneration.Message)
	}

	r.logger.Debug("certificate rendered",
		zap.String("output", outputPath),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// buildFills resolves each mapped role to a concrete value, font size, and
// alignment. Roles with no value are skipped and their fields stay blank.
func (r *Renderer) buildFills(rec template.Recipient) map[string]pdf.TextFill {
	values := map[string]string{
		template.RoleFirstName: strings.TrimSpace(rec.FirstName),
		template.RoleLastName:  strings.TrimSpace(rec.LastName),
	}
	for role, v := range rec.ExtraFields {
		values[role] = strings.TrimSpace(v)
	}
	if _, mapped := r.mapping[template.RoleDate]; mapped && values[template.RoleDate] == "" {
		values[template.RoleDate] = r.now().Format(dateFormat)
	}

	fills := make(map[string]pdf.TextFill, len(r.mapping))
	for role, fieldName := range r.mapping {
		val := values[role]
		if val == "" {
			continue
		}
		field, ok := r.catalog.Fields[fieldName]
		if !ok {
			continue
		}
		fills[fieldName] = pdf.TextFill{
			Value:    val,
			FontSize: FitFontSize(val, field.Rect.Width(), field.MaxFontSize, field.MinFontSize),
			Align:    alignmentFor(role),
			FontName: r.opts.FontName,
		}
	}
	return fills
}

// alignmentFor encodes the certificate layout convention: the first name
// sits right-aligned toward the page center, everything else left-aligned.
func alignmentFor(role string) pdf.Alignment {
	if role == template.RoleFirstName {
		return pdf.AlignRight
	}
	return pdf.AlignLeft
}

func (r *Renderer) writeAtomic(doc *pdf.Document, outputPath string) error {
	dir := filepath.Dir(outputPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	tmp := filepath.Join(dir, fmt.Sprintf(".%s.%s.tmp", filepath.Base(outputPath), uuid.NewString()[:8]))
	if err := doc.WriteFile(tmp); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, outputPath); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
