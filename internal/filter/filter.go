// Package filter decides which commits are release or merge boilerplate and
// therefore never take part in reconciliation.
package filter

import (
	"strings"

	"github.com/gitrevmissing/pkg/models"
)

// DefaultPrefixes are the message prefixes of merge and release-preparation commits
var DefaultPrefixes = []string{
	"Merge branch ",
	"Merge pull request ",
	"Next is ",
	"Prepare ",
}

// DefaultMarkers are full messages written by release tooling
var DefaultMarkers = []string{
	"[maven-release-plugin] prepare for next development iteration",
}

// Filter omits commits whose message starts with a prefix or equals a marker
type Filter struct {
	prefixes []string
	markers  map[string]struct{}
}

// New creates a filter from the given prefixes and literal markers
func New(prefixes, markers []string) *Filter {
	f := &Filter{
		prefixes: append([]string(nil), prefixes...),
		markers:  make(map[string]struct{}, len(markers)),
	}
	for _, m := range markers {
		f.markers[m] = struct{}{}
	}
	return f
}

// Default returns a filter using DefaultPrefixes and DefaultMarkers
func Default() *Filter {
	return New(DefaultPrefixes, DefaultMarkers)
}

// ShouldOmit reports whether the commit is excluded from reconciliation
func (f *Filter) ShouldOmit(c models.Commit) bool {
	if f == nil {
		return false
	}
	if _, ok := f.markers[c.Message]; ok {
		return true
	}
	for _, p := range f.prefixes {
		if strings.HasPrefix(c.Message, p) {
			return true
		}
	}
	return false
}
