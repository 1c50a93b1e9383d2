package template

import (
	"fmt"
	"os"
)

// Report is the outcome of template validation. FieldsFound is populated
// even when the template is invalid so authoring problems can be
// diagnosed.
type Report struct {
	Valid         bool     `json:"valid"`
	FieldsFound   []string `json:"fields_found"`
	PageCount     int      `json:"page_count"`
	FileSizeBytes int64    `json:"file_size_bytes"`
	Errors        []string `json:"errors"`
}

// Validate runs discovery plus default role inference against a template
// and reports whether it is usable for certificate generation.
func Validate(templatePath string, bounds FontBounds) Report {
	report := Report{FieldsFound: []string{}, Errors: []string{}}

	info, err := os.Stat(templatePath)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("cannot stat template: %v", err))
		return report
	}
	report.FileSizeBytes = info.Size()

	cat, err := Discover(templatePath, bounds)
	if err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report
	}
	report.PageCount = cat.PageCount
	report.FieldsFound = append(report.FieldsFound, cat.Order...)

	if len(cat.Fields) == 0 {
		report.Errors = append(report.Errors, "template contains no fillable text fields")
		return report
	}

	if _, err := BuildMapping(cat, nil); err != nil {
		report.Errors = append(report.Errors, err.Error())
		return report
	}

	report.Valid = true
	return report
}
