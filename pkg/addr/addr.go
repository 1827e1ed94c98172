// Package addr validates and normalizes address tokens.
package addr

import (
	"strings"

	"github.com/grafana/regexp"
)

var literal = regexp.MustCompile(`^0[xX][0-9a-fA-F]+$`)

// Valid reports whether s is a hexadecimal address literal such as 0x71ABCD.
func Valid(s string) bool {
	return literal.MatchString(s)
}

// Normalize strips prefix from raw and re-adds the 0x marker, turning
// 0x00000071ABCD into 0xABCD for the prefix 0x00000071. It fails when raw does
// not carry the prefix or nothing remains after it.
func Normalize(raw, prefix string) (string, bool) {
	if prefix == "" || !strings.HasPrefix(raw, prefix) {
		return "", false
	}
	rest := raw[len(prefix):]
	if rest == "" {
		return "", false
	}
	return "0x" + rest, true
}
