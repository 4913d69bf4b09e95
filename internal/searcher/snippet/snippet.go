// Package snippet cuts a bounded excerpt around the first query-term match
// in a document and wraps every whole-word match inside it.
package snippet

import (
	"sort"
	"strings"
	"unicode"
)

type Options struct {
	// MaxLength is the window size in runes.
	MaxLength int
	Ellipsis  string
	Open      string
	Close     string
}

func DefaultOptions() Options {
	return Options{
		MaxLength: 250,
		Ellipsis:  "...",
		Open:      "【",
		Close:     "】",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxLength <= 0 {
		o.MaxLength = d.MaxLength
	}
	if o.Ellipsis == "" {
		o.Ellipsis = d.Ellipsis
	}
	if o.Open == "" && o.Close == "" {
		o.Open, o.Close = d.Open, d.Close
	}
	return o
}

type span struct {
	start, end int
}

// Generate returns the snippet for text. Matching is case-insensitive and
// whole-word; terms are literal surface forms, not stems. Whitespace runs
// are collapsed to single spaces first. When no term occurs, the first
// MaxLength runes are returned unhighlighted.
func Generate(text string, terms []string, opts Options) string {
	opts = opts.withDefaults()
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return ""
	}
	runes := []rune(text)
	matches := findMatches(runes, terms)

	if len(matches) == 0 {
		if len(runes) <= opts.MaxLength {
			return text
		}
		return string(runes[:opts.MaxLength]) + opts.Ellipsis
	}

	first := matches[0].start
	half := opts.MaxLength / 2
	start := max(0, first-half)
	end := min(len(runes), first+half)

	var b strings.Builder
	if start > 0 {
		b.WriteString(opts.Ellipsis)
	}
	cursor := start
	for _, m := range matches {
		if m.start < cursor || m.end > end {
			continue
		}
		b.WriteString(string(runes[cursor:m.start]))
		b.WriteString(opts.Open)
		b.WriteString(string(runes[m.start:m.end]))
		b.WriteString(opts.Close)
		cursor = m.end
	}
	b.WriteString(string(runes[cursor:end]))
	if end < len(runes) {
		b.WriteString(opts.Ellipsis)
	}
	return b.String()
}

// findMatches returns non-overlapping whole-word matches of any term,
// ordered by start. At one start the longest term wins.
func findMatches(runes []rune, terms []string) []span {
	lower := make([]rune, len(runes))
	for i, r := range runes {
		lower[i] = unicode.ToLower(r)
	}
	needles := make([][]rune, 0, len(terms))
	for _, t := range terms {
		t = strings.Join(strings.Fields(t), " ")
		if t == "" {
			continue
		}
		needles = append(needles, []rune(strings.ToLower(t)))
	}
	sort.Slice(needles, func(i, j int) bool { return len(needles[i]) > len(needles[j]) })

	var out []span
	for i := 0; i < len(lower); {
		if i > 0 && isWordRune(lower[i-1]) {
			i++
			continue
		}
		matched := 0
		for _, n := range needles {
			if hasWordAt(lower, i, n) {
				matched = len(n)
				break
			}
		}
		if matched == 0 {
			i++
			continue
		}
		out = append(out, span{start: i, end: i + matched})
		i += matched
	}
	return out
}

func hasWordAt(text []rune, at int, needle []rune) bool {
	end := at + len(needle)
	if end > len(text) {
		return false
	}
	for k, r := range needle {
		if text[at+k] != r {
			return false
		}
	}
	return end == len(text) || !isWordRune(text[end])
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
