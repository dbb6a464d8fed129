package assemble

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const trailingSpace = " \t\r\n"

// Truncate returns the longest prefix of body that fits maxTokens and ends
// on a boundary. Markdown heading boundaries are preferred, then paragraph
// breaks, then sentence ends; a cut never falls inside a word. The prefix is
// always body[:cut]. truncated is false when body fits as a whole.
func Truncate(body string, maxTokens int) (prefix string, cut int, truncated bool) {
	if EstimateTokens(body) <= maxTokens {
		return body, len(body), false
	}
	if maxTokens <= 0 {
		return "", 0, true
	}
	limit := maxTokens * charsPerToken

	headings, paragraphs, sentences := boundaries(body)
	for _, cands := range [][]int{headings, paragraphs, sentences} {
		best := 0
		for _, c := range cands {
			p := strings.TrimRight(body[:c], trailingSpace)
			if p == "" {
				continue
			}
			if utf8.RuneCountInString(p) > limit {
				break
			}
			best = len(p)
		}
		if best > 0 {
			return body[:best], best, true
		}
	}
	return "", 0, true
}

// boundaries returns candidate cut offsets in ascending order. Heading and
// paragraph offsets are line starts; sentence offsets follow the punctuation.
// Lines inside fenced code blocks offer no boundaries.
func boundaries(body string) (headings, paragraphs, sentences []int) {
	inFence := false
	prevBlank := false
	off := 0
	for off < len(body) {
		end := strings.IndexByte(body[off:], '\n')
		next := len(body)
		if end >= 0 {
			end += off
			next = end + 1
		} else {
			end = len(body)
		}
		line := body[off:end]
		trimmed := strings.TrimSpace(line)

		switch {
		case strings.HasPrefix(trimmed, "```") || strings.HasPrefix(trimmed, "~~~"):
			if !inFence && off > 0 {
				if prevBlank {
					paragraphs = append(paragraphs, off)
				}
			}
			inFence = !inFence
		case inFence:
		case trimmed == "":
		default:
			if off > 0 && isHeading(line) {
				headings = append(headings, off)
			}
			if off > 0 && prevBlank {
				paragraphs = append(paragraphs, off)
			}
			for i := 0; i < len(line); i++ {
				if sentenceEnd(line, i) {
					sentences = append(sentences, off+i+1)
				}
			}
		}
		prevBlank = trimmed == "" && !inFence
		off = next
	}
	return headings, paragraphs, sentences
}

// abbreviations end in a period without ending the sentence.
var abbreviations = map[string]bool{
	"eg": true, "ie": true, "vs": true, "cf": true, "etc": true, "approx": true,
	"incl": true, "fig": true, "no": true, "mr": true, "mrs": true, "ms": true,
	"dr": true, "st": true,
}

// sentenceEnd reports whether the punctuation at line[i] closes a sentence.
// Abbreviations, single letters, numbered list markers and punctuation
// followed by a lowercase word do not.
func sentenceEnd(line string, i int) bool {
	switch line[i] {
	case '.', '!', '?':
	default:
		return false
	}
	if i+1 < len(line) && line[i+1] != ' ' && line[i+1] != '\t' && line[i+1] != '\r' {
		return false
	}
	if rest := strings.TrimLeft(line[i+1:], " \t\r"); rest != "" {
		if r, _ := utf8.DecodeRuneInString(rest); unicode.IsLower(r) {
			return false
		}
	}
	if line[i] != '.' {
		return true
	}

	start := strings.LastIndexAny(line[:i], " \t(") + 1
	word := line[start:i]
	if word == "" {
		return true
	}
	if strings.TrimLeft(line[:start], " \t") == "" && isDigits(word) {
		return false
	}
	if strings.Contains(word, ".") || utf8.RuneCountInString(word) == 1 {
		return false
	}
	return !abbreviations[strings.ToLower(word)]
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return s != ""
}

func isHeading(line string) bool {
	s := strings.TrimLeft(line, " ")
	if len(line)-len(s) > 3 {
		return false
	}
	n := 0
	for n < len(s) && s[n] == '#' {
		n++
	}
	return n >= 1 && n <= 6 && (n == len(s) || s[n] == ' ' || s[n] == '\t')
}
