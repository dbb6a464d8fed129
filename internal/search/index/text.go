package index

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Phrase n-gram bounds for trigger phrases and queries.
const (
	MinGram = 2
	MaxGram = 6
)

var folder = cases.Fold()

// Tokenize normalises s (NFKC, case folding) and splits it on every rune
// that is not a letter or digit. Indexing and querying share it.
func Tokenize(s string) []string {
	if s == "" {
		return nil
	}
	s = folder.String(norm.NFKC.String(s))
	return strings.FieldsFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// NGrams returns every run of MinGram..MaxGram consecutive tokens joined by a
// single space, shortest first then left to right.
func NGrams(tokens []string) []string {
	var out []string
	for n := MinGram; n <= MaxGram && n <= len(tokens); n++ {
		for i := 0; i+n <= len(tokens); i++ {
			out = append(out, strings.Join(tokens[i:i+n], " "))
		}
	}
	return out
}

// QueryTerms returns the unique tokens of a query in first-occurrence order
// followed by its unique n-grams, and the unique tokens on their own.
func QueryTerms(query string) (terms, tokens []string) {
	all := Tokenize(query)
	seen := make(map[string]bool, len(all))
	for _, t := range all {
		if !seen[t] {
			seen[t] = true
			tokens = append(tokens, t)
		}
	}
	terms = append(terms, tokens...)
	for _, g := range NGrams(all) {
		if !seen[g] {
			seen[g] = true
			terms = append(terms, g)
		}
	}
	return terms, tokens
}
