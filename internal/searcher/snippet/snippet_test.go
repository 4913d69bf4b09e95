package snippet

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestHighlightsWholeWordsCaseInsensitive(t *testing.T) {
	got := Generate("The Quick fox jumps over quickly", []string{"quick", "fox"}, DefaultOptions())
	assert.Equal(t, "The 【Quick】 【fox】 jumps over quickly", got)
}

func TestCollapsesWhitespace(t *testing.T) {
	got := Generate("  hurricane\n\n  relief\t effort ", []string{"relief"}, DefaultOptions())
	assert.Equal(t, "hurricane 【relief】 effort", got)
}

func TestNoMatchReturnsPrefix(t *testing.T) {
	opts := Options{MaxLength: 10}
	assert.Equal(t, "abcdefghij...", Generate("abcdefghijklmnop", []string{"zzz"}, opts))
	assert.Equal(t, "short text", Generate("short text", nil, opts))
}

func TestEmptyText(t *testing.T) {
	assert.Equal(t, "", Generate("   ", []string{"x"}, DefaultOptions()))
}

func TestWindowCentredOnFirstMatch(t *testing.T) {
	text := strings.Repeat("filler ", 40) + "target word " + strings.Repeat("tail ", 40)
	opts := Options{MaxLength: 40}
	got := Generate(text, []string{"target"}, opts)

	assert.True(t, strings.HasPrefix(got, "..."))
	assert.True(t, strings.HasSuffix(got, "..."))
	assert.Contains(t, got, "【target】")
	body := strip(strings.TrimSuffix(strings.TrimPrefix(got, "..."), "..."), opts)
	assert.Equal(t, 40, utf8.RuneCountInString(body))
	assert.Equal(t, 20, strings.Index(body, "target"))
}

func TestMatchCutByWindowNotHighlighted(t *testing.T) {
	got := Generate("fox abcdefgh fox", []string{"fox"}, Options{MaxLength: 40})
	assert.Equal(t, "【fox】 abcdefgh 【fox】", got)

	// The second "fox" straddles the window end.
	got = Generate("fox abcdefgh fox", []string{"fox"}, Options{MaxLength: 30})
	assert.Equal(t, "【fox】 abcdefgh fo...", got)
}

func TestBoundedLength(t *testing.T) {
	text := strings.Repeat("lorem ipsum dolor sit amet ", 30)
	for _, l := range []int{1, 7, 50, 250, 1000} {
		opts := Options{MaxLength: l}
		got := strip(Generate(text, []string{"dolor", "amet"}, opts), opts)
		assert.LessOrEqual(t, utf8.RuneCountInString(got), l+2*len("..."), "L=%d", l)
	}
}

func TestHighlightPreservesText(t *testing.T) {
	text := "Storm damage in Honduras; the storm hit Honduras hard."
	opts := DefaultOptions()
	got := Generate(text, []string{"storm", "honduras"}, opts)
	assert.Equal(t, text, strip(got, opts))
	assert.Equal(t, 4, strings.Count(got, "【"))
}

func TestUnicodeRunes(t *testing.T) {
	got := Generate("Café São Paulo café", []string{"café"}, DefaultOptions())
	assert.Equal(t, "【Café】 São Paulo 【café】", got)
}

func TestCustomDelimiters(t *testing.T) {
	got := Generate("red fox", []string{"fox"}, Options{Open: "<b>", Close: "</b>"})
	assert.Equal(t, "red <b>fox</b>", got)
}

func strip(s string, opts Options) string {
	opts = opts.withDefaults()
	return strings.ReplaceAll(strings.ReplaceAll(s, opts.Open, ""), opts.Close, "")
}
