package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certforge/certforge/internal/errors"
)

func catalogOf(names ...string) *Catalog {
	cat := &Catalog{Fields: make(map[string]Field, len(names)), PageCount: 1}
	for _, n := range names {
		cat.Fields[n] = Field{Name: n, MaxFontSize: DefaultMaxFontSize, MinFontSize: DefaultMinFontSize}
		cat.Order = append(cat.Order, n)
	}
	return cat
}

func TestInferHumanReadableNames(t *testing.T) {
	cat := catalogOf("FirstName", "LastName", "Date")

	m := DefaultRules().Infer(cat)

	assert.Equal(t, "FirstName", m[RoleFirstName])
	assert.Equal(t, "LastName", m[RoleLastName])
	assert.Equal(t, "Date", m[RoleDate])
}

func TestInferCaseInsensitive(t *testing.T) {
	cat := catalogOf("GIVEN_NAME", "surname_field", "completion day")

	m := DefaultRules().Infer(cat)

	assert.Equal(t, "GIVEN_NAME", m[RoleFirstName])
	assert.Equal(t, "surname_field", m[RoleLastName])
	assert.Equal(t, "completion day", m[RoleDate])
}

func TestInferPlaceholderFallbackForLastName(t *testing.T) {
	// "Name" is claimed by first_name, leaving last_name to fall back to
	// the auto-generated placeholder.
	cat := catalogOf("Name", "Text1")

	m := DefaultRules().Infer(cat)

	assert.Equal(t, "Name", m[RoleFirstName])
	assert.Equal(t, "Text1", m[RoleLastName])
}

func TestInferFieldClaimedOnce(t *testing.T) {
	// A single "name" field must not serve both roles.
	cat := catalogOf("name")

	m := DefaultRules().Infer(cat)

	assert.Equal(t, "name", m[RoleFirstName])
	_, hasLast := m[RoleLastName]
	assert.False(t, hasLast)
}

func TestInferDiscoveryOrderWins(t *testing.T) {
	cat := catalogOf("fname_2", "fname_1")

	m := DefaultRules().Infer(cat)

	assert.Equal(t, "fname_2", m[RoleFirstName])
}

func TestBuildMappingOverridesVerbatim(t *testing.T) {
	cat := catalogOf("weird_a", "weird_b")

	m, err := BuildMapping(cat, map[string]string{
		RoleFirstName: "weird_a",
		RoleLastName:  "weird_b",
	})
	require.NoError(t, err)
	assert.Equal(t, "weird_a", m[RoleFirstName])
	assert.Equal(t, "weird_b", m[RoleLastName])
}

func TestBuildMappingOverrideUnknownField(t *testing.T) {
	cat := catalogOf("FirstName")

	_, err := BuildMapping(cat, map[string]string{RoleFirstName: "nope"})
	require.Error(t, err)
	assert.Equal(t, errors.ErrMappingUnknownField.Code, errors.GetCode(err))
}

func TestBuildMappingNoNameField(t *testing.T) {
	cat := catalogOf("Signature", "Score")

	_, err := BuildMapping(cat, nil)
	require.Error(t, err)
	assert.Equal(t, errors.ErrMappingNoNameField.Code, errors.GetCode(err))
}

func TestBuildMappingOverridesSkipInference(t *testing.T) {
	// Overrides are used as given even when inference would have found
	// more roles.
	cat := catalogOf("FirstName", "LastName", "Date")

	m, err := BuildMapping(cat, map[string]string{RoleLastName: "LastName"})
	require.NoError(t, err)
	assert.Len(t, m, 1)
	assert.Equal(t, "LastName", m[RoleLastName])
}

func TestHasNameRole(t *testing.T) {
	assert.False(t, Mapping{}.HasNameRole())
	assert.False(t, Mapping{RoleDate: "Date"}.HasNameRole())
	assert.True(t, Mapping{RoleFirstName: "a"}.HasNameRole())
	assert.True(t, Mapping{RoleLastName: "b"}.HasNameRole())
}
