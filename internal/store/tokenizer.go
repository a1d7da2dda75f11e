package store

import (
	"regexp"
	"strings"
)

// legalTokenRe matches alphanumeric sequences. Section references like
// "19(4)" split into "19" and "4", which keeps exact-number term matching
// working for both base sections and sub-sections.
var legalTokenRe = regexp.MustCompile(`[a-zA-Z0-9]+`)

// DefaultLegalStopWords contains function words and statutory boilerplate
// that would otherwise dominate term-frequency scores in legal text.
var DefaultLegalStopWords = []string{
	"the", "of", "and", "or", "to", "in", "a", "an", "by", "for",
	"shall", "may", "be", "is", "are", "such", "any", "under", "as",
	"with", "hereby", "herein", "thereof", "thereto", "said",
	"provided", "pursuant", "act", "section", "clause",
}

// TokenizeLegal splits statute or clause text into lowercase tokens,
// filtering single-character noise.
func TokenizeLegal(text string) []string {
	words := legalTokenRe.FindAllString(text, -1)
	tokens := make([]string, 0, len(words))
	for _, w := range words {
		lower := strings.ToLower(w)
		if len(lower) >= 2 || isDigits(lower) {
			tokens = append(tokens, lower)
		}
	}
	return tokens
}

// isDigits reports whether s is entirely numeric. Single-digit tokens are
// kept: "(4)" in "19(4)" must remain searchable.
func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// BuildStopWordMap converts a stop-word list into a lookup set.
func BuildStopWordMap(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[strings.ToLower(w)] = struct{}{}
	}
	return m
}
