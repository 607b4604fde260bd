package patch

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gitrevmissing/pkg/models"
)

type staticDiffs map[string][]models.FileChange

func (s staticDiffs) Get(ctx context.Context, repoID, sha string) ([]models.FileChange, error) {
	files, ok := s[sha]
	if !ok {
		return nil, fmt.Errorf("%w: no commit %s in %s", models.ErrLookup, sha, repoID)
	}
	return files, nil
}

const asyncPatch = "@@ -191,6 +191,9 @@ public class AsyncContextImpl implements AsyncContext {\n" +
	"                 Connectors.executeRootHandler(new HttpHandler() {\n" +
	"                     @Override\n" +
	"                     public void handleRequest(final HttpServerExchange exchange) throws Exception {\n" +
	"+                        ServletRequestContext src = exchange.getAttachment(ServletRequestContext.ATTACHMENT_KEY);\n" +
	"+                        src.setServletRequest(servletRequest);\n" +
	"+                        src.setServletResponse(servletResponse);\n" +
	"                         servletDispatcher.dispatchToPath(exchange, pathInfo, DispatcherType.ASYNC);\n" +
	"                     }\n" +
	"                 }, exchange);\n"

func TestStripLocation(t *testing.T) {
	want := strings.TrimPrefix(asyncPatch, "@@ -191,6 +191,9 @@")
	assert.Equal(t, want, StripLocation(asyncPatch))
}

func TestStripLocationIdempotent(t *testing.T) {
	patches := []string{
		asyncPatch,
		"@@ -1 +1 @@\n-a\n+b\n@@ -10,2 +10,3 @@ func x() {\n+c\n",
		"no headers here\n",
		"@@ only one marker\n",
		"",
	}
	for _, p := range patches {
		once := StripLocation(p)
		assert.Equal(t, once, StripLocation(once))
		assert.False(t, hunkHeaderPattern.MatchString(once), "header left in %q", once)
	}
}

func newComparator(diffs staticDiffs, threshold float64) *Comparator {
	return NewComparator(diffs, threshold, zerolog.Nop())
}

func TestCompare(t *testing.T) {
	shifted := strings.Replace(asyncPatch, "-191,6 +191,9", "-201,6 +201,9", 1)
	// one extra trailing character: every byte of the original still matches in place
	touched := asyncPatch + "x"

	diffs := staticDiffs{
		"orig":      {{Path: "A.java", Patch: asyncPatch}},
		"copy":      {{Path: "A.java", Patch: asyncPatch}},
		"shifted":   {{Path: "A.java", Patch: shifted}},
		"touched":   {{Path: "A.java", Patch: touched}},
		"unrelated": {{Path: "A.java", Patch: "+zzzz"}},
		"two":       {{Path: "A.java", Patch: asyncPatch}, {Path: "B.java", Patch: "+b"}},
		"empty":     {},
	}
	c := newComparator(diffs, DefaultRatioThreshold)

	tests := []struct {
		a, b string
		want models.MatchKind
	}{
		{"orig", "copy", models.MatchSame},
		{"orig", "shifted", models.MatchSame},
		{"orig", "touched", models.MatchSuspicious},
		{"orig", "unrelated", models.MatchDifferent},
		{"orig", "two", models.MatchDifferent},
		{"empty", "empty", models.MatchSame},
	}
	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			got, err := c.Compare(context.Background(), "owner/repo", tt.a, tt.b)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCompare_FirstDifferingFileDecides(t *testing.T) {
	diffs := staticDiffs{
		"a": {{Path: "x", Patch: "+same"}, {Path: "y", Patch: "@@ -1 +1 @@\n+moved"}, {Path: "z", Patch: "+aaaa"}},
		"b": {{Path: "x", Patch: "+same"}, {Path: "y", Patch: "@@ -9 +9 @@\n+moved"}, {Path: "z", Patch: "-zzzz"}},
	}
	got, err := newComparator(diffs, DefaultRatioThreshold).Compare(context.Background(), "r", "a", "b")
	require.NoError(t, err)
	assert.Equal(t, models.MatchSame, got)
}

func TestCompare_ThresholdMonotonic(t *testing.T) {
	diffs := staticDiffs{
		"a": {{Path: "A.java", Patch: asyncPatch}},
		"b": {{Path: "A.java", Patch: asyncPatch + "x"}},
		"c": {{Path: "A.java", Patch: strings.Replace(asyncPatch, "ASYNC", "FORWARD", 1)}},
	}
	rank := map[models.MatchKind]int{models.MatchSame: 0, models.MatchSuspicious: 1, models.MatchDifferent: 2}

	for _, target := range []string{"b", "c"} {
		prev := -1
		for _, th := range []float64{0, 0.5, 0.8, 0.9, 0.95, 0.99, 0.999, 1} {
			got, err := newComparator(diffs, th).Compare(context.Background(), "r", "a", target)
			require.NoError(t, err)
			assert.GreaterOrEqual(t, rank[got], prev, "threshold %v moved %s back", th, target)
			prev = rank[got]
		}
		assert.Equal(t, rank[models.MatchDifferent], prev, "threshold 1 must never be exceeded")
	}
}

func TestCompare_LookupFailure(t *testing.T) {
	diffs := staticDiffs{"a": {{Path: "x", Patch: "+x"}}}
	c := newComparator(diffs, DefaultRatioThreshold)

	_, err := c.Compare(context.Background(), "r", "a", "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrLookup))

	_, err = c.Compare(context.Background(), "r", "missing", "a")
	assert.ErrorIs(t, err, models.ErrLookup)
}
