package template

import (
	"regexp"
	"strings"

	"github.com/certforge/certforge/internal/errors"
)

// Rule maps one logical role to the case-insensitive substrings that
// suggest it. Rules are evaluated in slice order; within a rule, fields
// are scanned in discovery order and the first unclaimed match wins.
type Rule struct {
	Role     string
	Patterns []string
}

// RuleSet is an ordered, pluggable inference strategy. Templates with
// unusual field names bypass inference entirely via explicit overrides.
type RuleSet []Rule

// DefaultRules returns the stock certificate heuristics. This is a lossy,
// template-dependent best effort: it guesses well for templates authored
// with human-readable field names and is always overridable.
func DefaultRules() RuleSet {
	return RuleSet{
		{Role: RoleFirstName, Patterns: []string{"first", "fname", "given", "fullname", "name"}},
		{Role: RoleLastName, Patterns: []string{"last", "lname", "surname", "family"}},
		{Role: RoleDate, Patterns: []string{"date", "day", "time"}},
	}
}

// placeholderRe matches opaque auto-generated field identifiers
// (e.g. "Text1", "dhFormfield-123"), used as the last_name fallback when
// no name-like pattern matched.
var placeholderRe = regexp.MustCompile(`^(?i)(text|field|untitled|formfield|dhformfield)[\w-]*$`)

// Infer applies the rule set to a catalog, claiming each field for at most
// one role. A missing role is simply absent from the result.
func (rs RuleSet) Infer(cat *Catalog) Mapping {
	m := Mapping{}
	claimed := map[string]bool{}

	for _, rule := range rs {
		name, ok := firstMatch(cat.Order, claimed, rule.Patterns)
		if !ok && rule.Role == RoleLastName {
			name, ok = firstPlaceholder(cat.Order, claimed)
		}
		if ok {
			m[rule.Role] = name
			claimed[name] = true
		}
	}
	return m
}

func firstMatch(order []string, claimed map[string]bool, patterns []string) (string, bool) {
	for _, name := range order {
		if claimed[name] {
			continue
		}
		lower := strings.ToLower(name)
		for _, p := range patterns {
			if strings.Contains(lower, p) {
				return name, true
			}
		}
	}
	return "", false
}

func firstPlaceholder(order []string, claimed map[string]bool) (string, bool) {
	for _, name := range order {
		if claimed[name] {
			continue
		}
		if placeholderRe.MatchString(name) {
			return name, true
		}
	}
	return "", false
}

// BuildMapping produces the role→field mapping for a catalog. Overrides,
// when non-empty, are used verbatim after validation against the catalog;
// otherwise the default rules infer one. A mapping binding neither name
// role is rejected.
func BuildMapping(cat *Catalog, overrides map[string]string) (Mapping, error) {
	return BuildMappingWithRules(cat, overrides, DefaultRules())
}

// BuildMappingWithRules is BuildMapping with a caller-supplied strategy.
func BuildMappingWithRules(cat *Catalog, overrides map[string]string, rules RuleSet) (Mapping, error) {
	var m Mapping

	if len(overrides) > 0 {
		m = Mapping{}
		for role, fieldName := range overrides {
			if _, ok := cat.Fields[fieldName]; !ok {
				return nil, errors.New(errors.ErrMappingUnknownField.Code,
					"field "+fieldName+" (role "+role+") not present in template")
			}
			m[role] = fieldName
		}
	} else {
		m = rules.Infer(cat)
	}

	if !m.HasNameRole() {
		return nil, errors.ErrMappingNoNameField
	}
	return m, nil
}
