package ledger

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText returns s in Unicode NFC with surrounding whitespace removed.
// Every user-supplied string is normalized before it is stored so that
// visually identical descriptions compare equal.
func NormalizeText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
