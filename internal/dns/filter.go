package dns

import (
	"fmt"
	"strings"

	"k8s.io/apimachinery/pkg/util/sets"
)

const apex = "@"

// Filter selects records by type and name. Matching is case-insensitive and
// exact. An empty list matches every record; several values match any of them.
// The name "@" selects the apex record. The zero Filter matches everything.
type Filter struct {
	types sets.Set[string]
	names sets.Set[string]
}

// NewFilter builds a Filter from record types and names. Blank values are
// ignored, so a list holding only blanks matches every record like an empty one.
func NewFilter(types, names []string) Filter {
	return Filter{types: lowerSet(types), names: lowerSet(names)}
}

func lowerSet(values []string) sets.Set[string] {
	s := sets.New[string]()
	for _, v := range values {
		switch v = strings.TrimSpace(v); v {
		case "":
		case apex:
			s.Insert("")
		default:
			s.Insert(strings.ToLower(v))
		}
	}
	return s
}

// Match reports whether r satisfies the filter.
func (f Filter) Match(r Record) bool {
	if f.types.Len() > 0 && !f.types.Has(strings.ToLower(r.Type)) {
		return false
	}
	if f.names.Len() > 0 && !f.names.Has(strings.ToLower(r.Name)) {
		return false
	}
	return true
}

func (f Filter) String() string {
	return fmt.Sprintf("type=%s name=%s", describe(f.types), describe(f.names))
}

func describe(s sets.Set[string]) string {
	if s.Len() == 0 {
		return "*"
	}
	values := sets.List(s)
	for i, v := range values {
		if v == "" {
			values[i] = apex
		}
	}
	return strings.Join(values, ",")
}
