// Package message compares commit messages exactly, after issue-key
// normalization, and by Jaro-Winkler similarity.
package message

import (
	"regexp"
	"strings"

	"github.com/xrash/smetrics"
)

const (
	// DefaultRatioThreshold is the similarity above which two messages are considered similar
	DefaultRatioThreshold = 0.7

	// Jaro-Winkler prefix boost parameters
	boostThreshold = 0.7
	prefixSize     = 4
)

// issueKeyPattern matches bracketed tracker references like [PROJECT-1234].
// Greedy on purpose: "[A-1][B-2] msg" collapses to "msg".
var issueKeyPattern = regexp.MustCompile(`\[[^\n]+-[0-9]+\]`)

// Same reports whether two messages are identical
func Same(a, b string) bool {
	return a == b
}

// Normalize strips issue keys and surrounding whitespace from a message
func Normalize(msg string) string {
	return strings.TrimSpace(issueKeyPattern.ReplaceAllString(msg, ""))
}

// Similarity returns the Jaro-Winkler similarity of a and b in [0,1]
func Similarity(a, b string) float64 {
	return smetrics.JaroWinkler(a, b, boostThreshold, prefixSize)
}

// Similar reports whether two messages differ only by issue keys or score
// above threshold. It does not check exact equality.
func Similar(a, b string, threshold float64) bool {
	if Normalize(a) == Normalize(b) {
		return true
	}
	return Similarity(a, b) > threshold
}
