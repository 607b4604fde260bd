package message

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"leading key", "[UNDERTOW-1657] Fix issue with 100-continue and h2", "Fix issue with 100-continue and h2"},
		{"two keys", "[JBEAP-18580][UNDERTOW-1774] Treat whitespace as illegal", "Treat whitespace as illegal"},
		{"no key", "Fix bug", "Fix bug"},
		{"surrounding space", "  Fix bug \n", "Fix bug"},
		{"brackets without number", "[WIP] Fix bug", "[WIP] Fix bug"},
		{"key only", "[PROJ-1]", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	messages := []string{
		"[PROJ-1] Fix bug",
		"[JBEAP-19266] NullPointerException when calling the AJP port with invalid request",
		"[UNDERTOW-1709][JBEAP-19266] NullPointerException",
		"plain message",
		"  [X-12]  padded  ",
		"multi\nline [A-1]\nmessage",
		"",
	}
	for _, m := range messages {
		once := Normalize(m)
		assert.Equal(t, once, Normalize(once), "message %q", m)
	}
}

func TestMessagesWithIssueKeys(t *testing.T) {
	pairs := [][2]string{
		{"Fix issue with 100-continue and h2", "[UNDERTOW-1657] Fix issue with 100-continue and h2"},
		{"[JBEAP-18580] Treat whitespace as illegal in header field-name", "[JBEAP-18580][UNDERTOW-1774] Treat whitespace as illegal in header field-name"},
		{"[JBEAP-19266] NullPointerException when calling the AJP port with invalid request", "[UNDERTOW-1709][JBEAP-19266] NullPointerException when calling the AJP port with invalid request"},
	}
	for _, p := range pairs {
		assert.Greater(t, Similarity(p[0], p[1]), DefaultRatioThreshold, "%q vs %q", p[0], p[1])
		assert.Equal(t, Normalize(p[0]), Normalize(p[1]))
		assert.True(t, Similar(p[0], p[1], DefaultRatioThreshold))
	}
}

func TestSimilarity(t *testing.T) {
	assert.Equal(t, 1.0, Similarity("same", "same"))
	assert.Equal(t, 1.0, Similarity("", ""))
	assert.Equal(t, 0.0, Similarity("abc", ""))
	assert.Equal(t, 0.0, Similarity("aaaa", "zzzz"))

	s := Similarity("Fix bug in parser", "Fix bug in printer")
	assert.True(t, s > 0 && s < 1, "similarity %f out of range", s)
}

func TestSameAndSimilar(t *testing.T) {
	assert.True(t, Same("Fix bug", "Fix bug"))
	assert.False(t, Same("Fix bug", "Fix bug "))

	assert.True(t, Similar("[PROJ-1] Fix bug", "Fix bug", 0.99))
	assert.False(t, Similar("aaaa", "zzzz", DefaultRatioThreshold))
}
