package sanitize

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString_StripsMarkupCharacters(t *testing.T) {
	assert.Equal(t, "scriptalert(1)/script", String("<script>alert(1)</script>"))
	assert.Equal(t, "plain text", String("plain text"))
	assert.Equal(t, "ab", String("a`b"))
}

func TestString_StripsControlCharacters(t *testing.T) {
	assert.Equal(t, "ab", String("a\x00\x1bb"))
	// Whitespace controls survive.
	assert.Equal(t, "a\tb\nc\r", String("a\tb\nc\r"))
}

func TestString_NormalizesNFC(t *testing.T) {
	// e + combining acute accent composes to a single rune.
	assert.Equal(t, "é", String("e\u0301"))
}

func TestString_TruncatesAtRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", maxStringLen) // 2 bytes per rune

	out := String(long)
	assert.LessOrEqual(t, len(out), maxStringLen)
	assert.True(t, strings.HasSuffix(out, "é"), "must not cut a rune in half")
}

func TestValue_RecursesIntoMapsAndSlices(t *testing.T) {
	in := map[string]any{
		"msg": "<b>hi</b>",
		"nested": map[string]any{
			"items": []any{"<i>one</i>", 2, true},
		},
	}

	out := Value(in).(map[string]any)
	assert.Equal(t, "bhi/b", out["msg"])

	nested := out["nested"].(map[string]any)
	items := nested["items"].([]any)
	assert.Equal(t, "ione/i", items[0])
	assert.Equal(t, 2, items[1])
	assert.Equal(t, true, items[2])
}

func TestValue_SanitizesMapKeys(t *testing.T) {
	in := map[string]any{"<key>": "v"}
	out := Value(in).(map[string]any)
	assert.Contains(t, out, "key")
	assert.NotContains(t, out, "<key>")
}

func TestValue_NonContainerTypesPassThrough(t *testing.T) {
	assert.Equal(t, 42, Value(42))
	assert.Equal(t, 4.2, Value(4.2))
	assert.Equal(t, true, Value(true))
	assert.Nil(t, Value(nil))
}
