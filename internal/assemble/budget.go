package assemble

import "unicode/utf8"

// charsPerToken is the estimation ratio between characters and tokens.
const charsPerToken = 4

// EstimateTokens approximates the token count of s as ceil(runes/4).
func EstimateTokens(s string) int {
	return tokensForRunes(utf8.RuneCountInString(s))
}

func tokensForRunes(n int) int {
	return (n + charsPerToken - 1) / charsPerToken
}

// minTokensForBytes is a lower bound on the tokens of a UTF-8 text of n bytes.
func minTokensForBytes(n int64) int {
	runes := (n + utf8.UTFMax - 1) / utf8.UTFMax
	return tokensForRunes(int(runes))
}

// Budget is the token budget of one query. It is never shared between
// queries.
type Budget struct {
	limit int
	used  int
}

// NewBudget returns a budget of limit tokens. Negative limits count as zero.
func NewBudget(limit int) *Budget {
	if limit < 0 {
		limit = 0
	}
	return &Budget{limit: limit}
}

// Limit returns the total budget.
func (b *Budget) Limit() int { return b.limit }

// Used returns the tokens spent so far.
func (b *Budget) Used() int { return b.used }

// Remaining returns the tokens still available.
func (b *Budget) Remaining() int {
	if b.used >= b.limit {
		return 0
	}
	return b.limit - b.used
}

// Fits reports whether n more tokens stay within the limit.
func (b *Budget) Fits(n int) bool { return n <= b.Remaining() }

// Spend records n tokens as used.
func (b *Budget) Spend(n int) { b.used += n }
