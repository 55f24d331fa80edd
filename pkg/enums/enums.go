// Package enums holds the closed string sets exchanged with the storefront and the
// commerce API.
package enums

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

func known[T ~string](value T, set []T) bool {
	return slices.Contains(set, value)
}

// parse matches value against set after trimming. Gateway-reported values are matched
// case-insensitively since the providers disagree on casing.
func parse[T ~string](kind, value string, set []T, foldCase bool) (T, error) {
	value = strings.TrimSpace(value)
	for _, candidate := range set {
		if string(candidate) == value || (foldCase && strings.EqualFold(string(candidate), value)) {
			return candidate, nil
		}
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, value)
}

// decodeCanonical reads a JSON string into dst, replacing it with the canonical spelling
// when it names a member of set. Unknown values are kept verbatim so callers can decide.
func decodeCanonical[T ~string](data []byte, dst *T, set []T) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	if canonical, err := parse("", raw, set, true); err == nil {
		*dst = canonical
		return nil
	}
	*dst = T(raw)
	return nil
}
