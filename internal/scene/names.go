package scene

import (
	"fmt"
	"path"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// RemoveDiacritics removes diacritical marks from a string (e.g., "Kostka.Žlutá" -> "Kostka.Zluta").
func RemoveDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, _ := transform.String(t, s)
	return result
}

// NormalizeObjectName normalizes an object name for comparison (lowercase, no diacritics).
func NormalizeObjectName(name string) string {
	return strings.ToLower(RemoveDiacritics(strings.TrimSpace(name)))
}

// NameFilter selects objects by name. Patterns use path.Match syntax and are
// compared after normalization. An empty filter matches every object.
type NameFilter []string

// Match reports whether name is selected by the filter
func (f NameFilter) Match(name string) bool {
	if len(f) == 0 {
		return true
	}
	n := NormalizeObjectName(name)
	for _, pattern := range f {
		p := NormalizeObjectName(pattern)
		if p == n {
			return true
		}
		if ok, err := path.Match(p, n); err == nil && ok {
			return true
		}
	}
	return false
}

// uniqueName returns name, or name with a numeric suffix if it is taken,
// the way duplicated objects are named in modelling tools ("Cube.001").
func uniqueName(name string, taken map[string]bool) string {
	if !taken[name] {
		return name
	}
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s.%03d", name, i)
		if !taken[candidate] {
			return candidate
		}
	}
}
