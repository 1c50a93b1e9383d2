package render

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/certforge/certforge/internal/errors"
	"github.com/certforge/certforge/internal/pdf"
	"github.com/certforge/certforge/internal/template"
)

func testRenderer(cat *template.Catalog, mapping template.Mapping) *Renderer {
	r := New("unused.pdf", cat, mapping, DefaultOptions(), zap.NewNop())
	r.now = func() time.Time { return time.Date(2026, time.March, 14, 12, 0, 0, 0, time.UTC) }
	return r
}

func testCatalog() *template.Catalog {
	fields := map[string]template.Field{
		"FirstName": {Name: "FirstName", Rect: pdf.Rect{X0: 100, Y0: 400, X1: 300, Y1: 440}, MaxFontSize: 48, MinFontSize: 24},
		"LastName":  {Name: "LastName", Rect: pdf.Rect{X0: 320, Y0: 400, X1: 520, Y1: 440}, MaxFontSize: 48, MinFontSize: 24},
		"Date":      {Name: "Date", Rect: pdf.Rect{X0: 100, Y0: 100, X1: 400, Y1: 130}, MaxFontSize: 48, MinFontSize: 24},
	}
	return &template.Catalog{
		Fields:    fields,
		Order:     []string{"FirstName", "LastName", "Date"},
		PageCount: 1,
	}
}

func fullMapping() template.Mapping {
	return template.Mapping{
		template.RoleFirstName: "FirstName",
		template.RoleLastName:  "LastName",
		template.RoleDate:      "Date",
	}
}

func TestRenderRejectsBlankNames(t *testing.T) {
	r := testRenderer(testCatalog(), fullMapping())

	for _, rec := range []template.Recipient{
		{FirstName: "", LastName: "Doe"},
		{FirstName: "John", LastName: ""},
		{FirstName: "   ", LastName: "Doe"},
	} {
		err := r.Render(rec, "out.pdf")
		require.Error(t, err)
		assert.Equal(t, errors.ErrMissingName.Code, errors.GetCode(err))
	}
}

func TestBuildFillsMappedRoles(t *testing.T) {
	r := testRenderer(testCatalog(), fullMapping())

	fills := r.buildFills(template.Recipient{FirstName: "  John ", LastName: "Doe"})

	require.Len(t, fills, 3)
	assert.Equal(t, "John", fills["FirstName"].Value)
	assert.Equal(t, "Doe", fills["LastName"].Value)
	assert.Equal(t, "March 14, 2026", fills["Date"].Value)
}

func TestBuildFillsAlignment(t *testing.T) {
	r := testRenderer(testCatalog(), fullMapping())

	fills := r.buildFills(template.Recipient{FirstName: "John", LastName: "Doe"})

	assert.Equal(t, pdf.AlignRight, fills["FirstName"].Align)
	assert.Equal(t, pdf.AlignLeft, fills["LastName"].Align)
	assert.Equal(t, pdf.AlignLeft, fills["Date"].Align)
}

func TestBuildFillsExplicitDateWins(t *testing.T) {
	r := testRenderer(testCatalog(), fullMapping())

	fills := r.buildFills(template.Recipient{
		FirstName:   "John",
		LastName:    "Doe",
		ExtraFields: map[string]string{template.RoleDate: "July 04, 2025"},
	})

	assert.Equal(t, "July 04, 2025", fills["Date"].Value)
}

func TestBuildFillsSkipsUnmappedDate(t *testing.T) {
	mapping := template.Mapping{
		template.RoleFirstName: "FirstName",
		template.RoleLastName:  "LastName",
	}
	r := testRenderer(testCatalog(), mapping)

	fills := r.buildFills(template.Recipient{FirstName: "John", LastName: "Doe"})

	require.Len(t, fills, 2)
	_, hasDate := fills["Date"]
	assert.False(t, hasDate)
}

func TestBuildFillsFitsLongNames(t *testing.T) {
	r := testRenderer(testCatalog(), fullMapping())

	fills := r.buildFills(template.Recipient{FirstName: "Maximiliana Wilhelmina", LastName: "Doe"})

	assert.Less(t, fills["FirstName"].FontSize, 48.0)
	assert.GreaterOrEqual(t, fills["FirstName"].FontSize, 24.0)
	assert.Equal(t, 48.0, fills["LastName"].FontSize)
}
