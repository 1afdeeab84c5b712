// Package sanitize bounds and cleans untrusted strings and structures
// before they are handed to application callbacks.
package sanitize

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// maxStringLen caps any single sanitized string. Host payloads are
// already size-limited at the transport, so this only guards against a
// single pathological field.
const maxStringLen = 4096

// String normalizes s to NFC, strips markup-triggering and control
// characters, and truncates to maxStringLen.
func String(s string) string {
	s = norm.NFC.String(s)

	var b strings.Builder
	b.Grow(len(s))

	for _, r := range s {
		switch {
		case r == '<' || r == '>' || r == '`':
			// Dropped outright: these are what turns injected text
			// into markup on the receiving side.
		case unicode.IsControl(r) && r != '\t' && r != '\n' && r != '\r':
		default:
			b.WriteRune(r)
		}
	}

	out := b.String()
	if len(out) > maxStringLen {
		out = truncate(out, maxStringLen)
	}

	return out
}

// truncate cuts s at the last rune boundary at or before limit bytes.
func truncate(s string, limit int) string {
	for limit > 0 && !isRuneStart(s[limit]) {
		limit--
	}
	return s[:limit]
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// Value sanitizes a decoded JSON value recursively: strings are cleaned,
// maps and slices are sanitized element-wise (map keys included), and
// every other type passes through unchanged.
func Value(v any) any {
	switch x := v.(type) {
	case string:
		return String(x)
	case map[string]any:
		out := make(map[string]any, len(x))
		for k, val := range x {
			out[String(k)] = Value(val)
		}
		return out
	case []any:
		out := make([]any, len(x))
		for i, val := range x {
			out[i] = Value(val)
		}
		return out
	default:
		return v
	}
}
