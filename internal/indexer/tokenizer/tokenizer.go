// Package tokenizer provides text tokenisation for the search engine.
// It NFC-normalises and lower-cases input, splits on non-alphanumeric
// boundaries, removes stop-words, and applies Porter stemming.
package tokenizer

import (
	"strings"
	"unicode"

	"github.com/reiver/go-porterstemmer"
	"golang.org/x/text/unicode/norm"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {},
}

// Token represents a single normalised term and its position in the
// original text. Positions count kept tokens, so consecutive positions
// mean consecutive terms after filtering.
type Token struct {
	Term     string
	Position int
}

// Tokenize breaks text into a slice of stemmed, lowercased Tokens with
// stop-words removed.
func Tokenize(text string) []Token {
	text = norm.NFC.String(text)
	text = strings.ToLower(text)
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]Token, 0, len(words)/2)
	pos := 0
	for _, word := range words {
		if len(word) < 2 {
			continue
		}
		if _, isStop := stopWords[word]; isStop {
			continue
		}
		stemmed := porterstemmer.StemString(word)
		if stemmed == "" {
			continue
		}
		tokens = append(tokens, Token{
			Term:     stemmed,
			Position: pos,
		})
		pos++
	}
	return tokens
}

// TermCounts aggregates tokens into per-term occurrence counts.
func TermCounts(tokens []Token) map[string]uint32 {
	counts := make(map[string]uint32, len(tokens))
	for _, tok := range tokens {
		counts[tok.Term]++
	}
	return counts
}

// entityPrefix namespaces document tags in the index so they never collide
// with body terms and stay exempt from stemming and stop-word removal.
const entityPrefix = "entity:"

// entityWords lower-cases s and splits it on every non-alphanumeric rune.
// Both sides of a tag lookup run through it, so the term built at index
// time and the one parsed from a query always agree.
func entityWords(s string) []string {
	s = strings.ToLower(norm.NFC.String(s))
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// EntityTerm returns the index term a document tag is posted under:
// "New York" becomes "entity:new_york". Tags normalizing to nothing
// return "".
func EntityTerm(tag string) string {
	words := entityWords(tag)
	if len(words) == 0 {
		return ""
	}
	return entityPrefix + strings.Join(words, "_")
}

// ParseEntityTerm reports whether a query word addresses a tag directly
// and, if so, returns its canonical term. The prefix matches
// case-insensitively and separators inside the tag are interchangeable, so
// entity:New-York and entity:new_york resolve to the same term.
func ParseEntityTerm(word string) (string, bool) {
	rest, ok := strings.CutPrefix(strings.ToLower(word), entityPrefix)
	if !ok {
		return "", false
	}
	words := entityWords(rest)
	if len(words) == 0 {
		return "", false
	}
	return entityPrefix + strings.Join(words, "_"), true
}
