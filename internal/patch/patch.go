// Package patch decides whether two commits carry the same change by
// comparing their per-file patches positionally.
package patch

import (
	"context"
	"fmt"
	"regexp"

	"github.com/rs/zerolog"

	"github.com/gitrevmissing/internal/message"
	"github.com/gitrevmissing/pkg/models"
)

// DefaultRatioThreshold is the patch similarity above which a differing patch is suspicious
const DefaultRatioThreshold = 0.9

// hunkHeaderPattern matches "@@ -a,b +c,d @@" location headers
var hunkHeaderPattern = regexp.MustCompile(`@@ [^\n]+ @@`)

// DiffSource returns the ordered file changes of a commit
type DiffSource interface {
	Get(ctx context.Context, repoID, sha string) ([]models.FileChange, error)
}

// Comparator compares the patches of two commits of one repository
type Comparator struct {
	diffs     DiffSource
	threshold float64
	logger    zerolog.Logger
}

// NewComparator creates a comparator reading diffs from src
func NewComparator(src DiffSource, threshold float64, logger zerolog.Logger) *Comparator {
	return &Comparator{
		diffs:     src,
		threshold: threshold,
		logger:    logger,
	}
}

// StripLocation removes hunk headers so that line offset shifts do not count as changes
func StripLocation(patch string) string {
	return hunkHeaderPattern.ReplaceAllString(patch, "")
}

// Compare classifies commit shaA against shaB. Only the first positionally
// differing file is inspected.
func (c *Comparator) Compare(ctx context.Context, repoID, shaA, shaB string) (models.MatchKind, error) {
	filesA, err := c.diffs.Get(ctx, repoID, shaA)
	if err != nil {
		return "", fmt.Errorf("failed to get diff of commit %s: %w", shaA, err)
	}
	filesB, err := c.diffs.Get(ctx, repoID, shaB)
	if err != nil {
		return "", fmt.Errorf("failed to get diff of commit %s: %w", shaB, err)
	}
	return c.CompareFiles(shaA, shaB, filesA, filesB), nil
}

// CompareFiles is Compare over already fetched file changes
func (c *Comparator) CompareFiles(shaA, shaB string, filesA, filesB []models.FileChange) models.MatchKind {
	if len(filesA) != len(filesB) {
		return models.MatchDifferent
	}
	for i := range filesA {
		if filesA[i].Patch == filesB[i].Patch {
			continue
		}
		p1 := StripLocation(filesA[i].Patch)
		p2 := StripLocation(filesB[i].Patch)
		if p1 == p2 {
			return models.MatchSame
		}
		// conflicts resolved differently or small edits around the change
		similar := message.Similarity(p1, p2)
		c.logger.Debug().
			Str("sha", shaA).
			Str("target_sha", shaB).
			Str("path", filesA[i].Path).
			Float64("similarity", similar).
			Msg("Patch differs")
		if similar > c.threshold {
			return models.MatchSuspicious
		}
		return models.MatchDifferent
	}
	return models.MatchSame
}
