// Package tokenizer turns raw text into the normalised term stream shared by
// the indexer and the query parser. It splits on non-alphanumeric
// boundaries, lower-cases, removes stop-words, and reduces every surviving
// word with the Snowball English stemmer.
package tokenizer

import (
	"iter"
	"strings"
	"unicode"
	"unicode/utf8"

	snowballeng "github.com/kljensen/snowball/english"
)

// stopWords is the fixed English list the index has always been built
// with. Changing it invalidates every existing index.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "can": {}, "for": {}, "from": {}, "have": {},
	"if": {}, "in": {}, "is": {}, "it": {}, "may": {}, "not": {},
	"of": {}, "on": {}, "or": {}, "tbd": {}, "that": {}, "the": {},
	"this": {}, "to": {}, "us": {}, "we": {}, "when": {}, "will": {},
	"with": {}, "yet": {}, "you": {}, "your": {},
}

// minLength is part of the index vocabulary, like the stop list.
const minLength = 2

// Token represents a single normalised term and its position among the
// surviving tokens of the original text.
type Token struct {
	Term     string
	Position int
}

// Analyzer holds the normalisation pipeline. The zero value is not usable;
// use New or Default.
type Analyzer struct {
	stopWords map[string]struct{}
	stem      func(string) string
}

// Option customises an Analyzer.
type Option func(*Analyzer)

// WithStemmer replaces the Snowball stemmer, e.g. with an identity function
// in tests that want to reason about surface forms.
func WithStemmer(stem func(string) string) Option {
	return func(a *Analyzer) { a.stem = stem }
}

// New builds an Analyzer with the built-in stop list and stemmer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		stopWords: stopWords,
		stem:      snowballStem,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Default is the analyzer used for both index building and query parsing.
var Default = New()

func snowballStem(word string) string {
	return snowballeng.Stem(word, false)
}

// Analyze returns the lazily computed term sequence for text. Ranging over
// the result more than once re-tokenizes from the start.
func (a *Analyzer) Analyze(text string) iter.Seq[Token] {
	return func(yield func(Token) bool) {
		pos := 0
		for word := range Words(text) {
			term, ok := a.Normalize(word)
			if !ok {
				continue
			}
			if !yield(Token{Term: term, Position: pos}) {
				return
			}
			pos++
		}
	}
}

// Tokens collects Analyze into a slice.
func (a *Analyzer) Tokens(text string) []Token {
	tokens := make([]Token, 0, len(text)/6)
	for tok := range a.Analyze(text) {
		tokens = append(tokens, tok)
	}
	return tokens
}

// Terms returns only the normalised term strings of text, in order.
func (a *Analyzer) Terms(text string) []string {
	terms := make([]string, 0, len(text)/6)
	for tok := range a.Analyze(text) {
		terms = append(terms, tok.Term)
	}
	return terms
}

// Normalize runs a single word through the filter chain. It reports false
// when the word is dropped.
func (a *Analyzer) Normalize(word string) (string, bool) {
	word = strings.ToLower(word)
	if utf8.RuneCountInString(word) < minLength {
		return "", false
	}
	if a.IsStopWord(word) {
		return "", false
	}
	stemmed := a.stem(word)
	if stemmed == "" {
		return "", false
	}
	return stemmed, true
}

// IsStopWord reports whether the lower-cased word is on the stop list.
func (a *Analyzer) IsStopWord(word string) bool {
	_, ok := a.stopWords[word]
	return ok
}

// Tokenize analyses text with the Default analyzer.
func Tokenize(text string) []Token {
	return Default.Tokens(text)
}

// Words yields the maximal runs of letters and digits in text, unmodified.
func Words(text string) iter.Seq[string] {
	return func(yield func(string) bool) {
		start := -1
		for i, r := range text {
			if isWordRune(r) {
				if start < 0 {
					start = i
				}
				continue
			}
			if start >= 0 {
				if !yield(text[start:i]) {
					return
				}
				start = -1
			}
		}
		if start >= 0 {
			yield(text[start:])
		}
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
