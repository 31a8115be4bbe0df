package compliance

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeText joins the given fragments, applies NFKC normalization and
// lower-cases the result. All pattern and keyword matching runs over text
// prepared this way, so matching is case-insensitive by construction.
func NormalizeText(parts ...string) string {
	joined := strings.Join(parts, " ")
	return strings.ToLower(norm.NFKC.String(joined))
}

// matchPatterns evaluates every pattern against text and returns the number
// of patterns that matched plus the matching patterns in catalog order.
// A pattern contributes at most once no matter how often it occurs.
func matchPatterns(text string, patterns []Pattern) (int, []Pattern) {
	var matched []Pattern
	for _, p := range patterns {
		if p.Match(text) {
			matched = append(matched, p)
		}
	}
	return len(matched), matched
}

// countMatches is matchPatterns without evidence collection, for callers
// that only need the count.
func countMatches(text string, patterns []Pattern) int {
	n := 0
	for _, p := range patterns {
		if p.Match(text) {
			n++
		}
	}
	return n
}
