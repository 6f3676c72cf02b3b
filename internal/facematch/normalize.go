package facematch

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeUserID trims surrounding whitespace and applies Unicode NFC so that
// visually identical identifiers typed on different keyboards map to the same key.
// Case is preserved: "Alice" and "alice" are distinct users.
func NormalizeUserID(id string) string {
	return norm.NFC.String(strings.TrimSpace(id))
}
