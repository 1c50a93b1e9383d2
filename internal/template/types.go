package template

import "github.com/certforge/certforge/internal/pdf"

// Logical roles recognized by the default inference rules. Any other role
// can be bound through an explicit override.
const (
	RoleFirstName = "first_name"
	RoleLastName  = "last_name"
	RoleDate      = "date"
)

// Field is one named fillable text region discovered in a template.
// Immutable once discovered.
type Field struct {
	Name        string
	Rect        pdf.Rect
	Page        int
	MaxFontSize float64
	MinFontSize float64
}

// Catalog is the result of field discovery for one template snapshot.
// Order preserves discovery order, which the inference rules depend on.
type Catalog struct {
	Fields    map[string]Field
	Order     []string
	PageCount int
}

// Mapping binds logical roles to concrete field names. Read-only after
// construction.
type Mapping map[string]string

// HasNameRole reports whether at least one of the two name roles is bound.
func (m Mapping) HasNameRole() bool {
	_, first := m[RoleFirstName]
	_, last := m[RoleLastName]
	return first || last
}

// Recipient is one certificate's worth of input data.
type Recipient struct {
	FirstName   string            `json:"first_name"`
	LastName    string            `json:"last_name"`
	ExtraFields map[string]string `json:"extra_fields,omitempty"`
}
