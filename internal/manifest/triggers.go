package manifest

import (
	"strings"
	"unicode/utf8"
)

const maxTriggerRunes = 200

// quoteSpan is one double-quoted region of a description, quotes excluded.
type quoteSpan struct {
	start, end int
}

// quoteSpans pairs double quotes left to right. A stray trailing quote is
// ignored.
func quoteSpans(desc string) []quoteSpan {
	var out []quoteSpan
	i := 0
	for {
		open := strings.IndexByte(desc[i:], '"')
		if open < 0 {
			return out
		}
		open += i
		close := strings.IndexByte(desc[open+1:], '"')
		if close < 0 {
			return out
		}
		close += open + 1
		out = append(out, quoteSpan{start: open + 1, end: close})
		i = close + 1
	}
}

func validTrigger(s string) bool {
	if strings.ContainsAny(s, "\r\n") {
		return false
	}
	n := utf8.RuneCountInString(s)
	return n >= 1 && n <= maxTriggerRunes
}

// ExtractTriggers returns the double-quoted phrases of a description in
// declaration order, without duplicates. Phrases that span lines, are empty
// or longer than 200 characters are not triggers.
func ExtractTriggers(desc string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, sp := range quoteSpans(desc) {
		t := strings.TrimSpace(desc[sp.start:sp.end])
		if !validTrigger(t) || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// Narrative returns the description with its trigger phrases blanked out.
// Quoted text that is not a valid trigger stays in the narrative.
func Narrative(desc string) string {
	var b strings.Builder
	last := 0
	for _, sp := range quoteSpans(desc) {
		if !validTrigger(strings.TrimSpace(desc[sp.start:sp.end])) {
			continue
		}
		b.WriteString(desc[last : sp.start-1])
		b.WriteByte(' ')
		last = sp.end + 1
	}
	b.WriteString(desc[last:])
	return b.String()
}
