package domain

import (
	"strings"
	"unicode"
)

// ValidID reports whether id can name a farm, worker or driver. IDs are
// used as message subject tokens, so separators, wildcards and whitespace
// are not allowed.
func ValidID(id string) bool {
	if id == "" || len(id) > 128 {
		return false
	}
	return !strings.ContainsAny(id, ".*>") && strings.IndexFunc(id, unicode.IsSpace) < 0
}
