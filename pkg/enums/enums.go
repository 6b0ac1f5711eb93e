// Package enums holds the string enums stored in Postgres and carried on
// events and API responses.
package enums

import (
	"fmt"
	"slices"
	"strings"
)

func oneOf[T ~string](v T, set []T) bool {
	return slices.Contains(set, v)
}

func parse[T ~string](what, raw string, set []T) (T, error) {
	v := T(strings.TrimSpace(raw))
	if oneOf(v, set) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", what, raw)
}
