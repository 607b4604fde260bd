// Package reconcile classifies the commits of a source revision against the
// commits of a target revision and assembles the missing-commit report.
package reconcile

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gitrevmissing/internal/diffcache"
	"github.com/gitrevmissing/internal/filter"
	"github.com/gitrevmissing/internal/message"
	"github.com/gitrevmissing/internal/patch"
	"github.com/gitrevmissing/pkg/models"
)

// DiffFetcher loads the ordered file changes of a commit
type DiffFetcher interface {
	GetDiff(ctx context.Context, repoID, sha string) ([]models.FileChange, error)
}

// LinkFormatter builds the web link of a commit
type LinkFormatter interface {
	FormatCommitLink(sha string) string
}

// Options tunes one engine
type Options struct {
	PatchRatioThreshold   float64
	MessageRatioThreshold float64
	// Filter drops boilerplate source commits. Nil keeps every commit.
	Filter *filter.Filter
	// Workers above 1 classifies source commits concurrently
	Workers int
	Logger  zerolog.Logger
	// RunID tags every log of the engine. Empty gives each Reconcile call a fresh id.
	RunID string
}

// DefaultOptions returns the thresholds and filter used by the command line tool
func DefaultOptions() Options {
	return Options{
		PatchRatioThreshold:   patch.DefaultRatioThreshold,
		MessageRatioThreshold: message.DefaultRatioThreshold,
		Filter:                filter.Default(),
		Workers:               1,
		Logger:                zerolog.Nop(),
	}
}

// Validate checks the thresholds and worker count
func (o Options) Validate() error {
	if o.PatchRatioThreshold < 0 || o.PatchRatioThreshold > 1 {
		return fmt.Errorf("%w: patch ratio threshold %v is outside [0,1]", models.ErrConfiguration, o.PatchRatioThreshold)
	}
	if o.MessageRatioThreshold < 0 || o.MessageRatioThreshold > 1 {
		return fmt.Errorf("%w: message ratio threshold %v is outside [0,1]", models.ErrConfiguration, o.MessageRatioThreshold)
	}
	if o.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", models.ErrConfiguration, o.Workers)
	}
	return nil
}

// Engine reconciles commits of one repository. Diffs fetched while
// comparing patches are cached until Close.
type Engine struct {
	repoID  string
	links   LinkFormatter
	opts    Options
	cache   *diffcache.Cache
	patches *patch.Comparator
	logger  zerolog.Logger
}

// New creates an engine reading diffs from repo
func New(repo DiffFetcher, repoID string, links LinkFormatter, opts Options) (*Engine, error) {
	if repo == nil {
		return nil, fmt.Errorf("%w: no repository to read diffs from", models.ErrConfiguration)
	}
	if links == nil {
		return nil, fmt.Errorf("%w: no link formatter", models.ErrConfiguration)
	}
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	logctx := opts.Logger.With().Str("repo", repoID)
	if opts.RunID != "" {
		logctx = logctx.Str("run_id", opts.RunID)
	}
	logger := logctx.Logger()
	cache := diffcache.New(repo.GetDiff)
	return &Engine{
		repoID:  repoID,
		links:   links,
		opts:    opts,
		cache:   cache,
		patches: patch.NewComparator(cache, opts.PatchRatioThreshold, logger),
		logger:  logger,
	}, nil
}

// targetIndex is built once per reconciliation
type targetIndex struct {
	shas    map[string]struct{}
	commits []models.Commit
}

func newTargetIndex(target []models.Commit) *targetIndex {
	idx := &targetIndex{
		shas:    make(map[string]struct{}, len(target)),
		commits: target,
	}
	for _, t := range target {
		idx.shas[t.SHA] = struct{}{}
	}
	return idx
}

// Reconcile reports the source commits that are missing from, or only
// suspiciously present in, target. Records keep source order.
func (e *Engine) Reconcile(ctx context.Context, source, target []models.Commit) (*models.Report, error) {
	logger := e.logger
	if e.opts.RunID == "" {
		logger = e.logger.With().Str("run_id", uuid.NewString()).Logger()
	}

	if len(source) == 0 {
		logger.Warn().Msg("EmptyResultWarning: no commits found in source revision")
	}
	if len(target) == 0 {
		logger.Warn().Msg("EmptyResultWarning: no commits found in target revision")
	}

	candidates := make([]models.Commit, 0, len(source))
	for _, c := range source {
		if e.opts.Filter.ShouldOmit(c) {
			logger.Debug().Str("sha", c.SHA).Msg("Skipping boilerplate commit")
			continue
		}
		candidates = append(candidates, c)
	}

	idx := newTargetIndex(target)
	outcomes := make([]models.MatchOutcome, len(candidates))

	if e.opts.Workers > 1 {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.opts.Workers)
		for i, c := range candidates {
			g.Go(func() error {
				outcome, err := e.classify(gctx, c, idx)
				if err != nil {
					return err
				}
				outcomes[i] = outcome
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	} else {
		for i, c := range candidates {
			outcome, err := e.classify(ctx, c, idx)
			if err != nil {
				return nil, err
			}
			outcomes[i] = outcome
		}
	}

	report := &models.Report{}
	for i, outcome := range outcomes {
		switch outcome.Kind {
		case models.MatchDifferent:
			report.Missing = append(report.Missing, models.CommitRecord{
				Commit: candidates[i],
				Link:   e.links.FormatCommitLink(candidates[i].SHA),
			})
		case models.MatchSuspicious:
			report.Suspicious = append(report.Suspicious, models.CommitRecord{
				Commit:     candidates[i],
				Link:       e.links.FormatCommitLink(candidates[i].SHA),
				TargetLink: e.links.FormatCommitLink(outcome.MatchedTargetSHA),
			})
		}
	}

	logger.Info().
		Int("source", len(source)).
		Int("target", len(target)).
		Int("candidates", len(candidates)).
		Int("missing", len(report.Missing)).
		Int("suspicious", len(report.Suspicious)).
		Int64("diff_fetches", e.cache.Fetches()).
		Msg("Reconciliation finished")
	return report, nil
}

// Classify returns the outcome of one source commit against target
func (e *Engine) Classify(ctx context.Context, commit models.Commit, target []models.Commit) (models.MatchOutcome, error) {
	return e.classify(ctx, commit, newTargetIndex(target))
}

func (e *Engine) classify(ctx context.Context, c models.Commit, idx *targetIndex) (models.MatchOutcome, error) {
	if err := ctx.Err(); err != nil {
		return models.MatchOutcome{}, err
	}
	if _, ok := idx.shas[c.SHA]; ok {
		return same(c), nil
	}

	// same message, possibly rebased
	matched, err := e.scan(ctx, c, idx, func(t models.Commit) bool {
		return message.Same(t.Message, c.Message)
	})
	if err != nil || matched.Kind == models.MatchSame || matched.Kind == models.MatchSuspicious {
		return matched, err
	}

	// amended message
	matched, err = e.scan(ctx, c, idx, func(t models.Commit) bool {
		return !message.Same(t.Message, c.Message) && message.Similar(t.Message, c.Message, e.opts.MessageRatioThreshold)
	})
	if err != nil || matched.Kind == models.MatchSame || matched.Kind == models.MatchSuspicious {
		return matched, err
	}

	return models.MatchOutcome{Kind: models.MatchDifferent, SourceSHA: c.SHA}, nil
}

// scan compares the patch of c with every target accepted by match. It stops
// at the first SAME; otherwise the last SUSPICIOUS target is reported.
func (e *Engine) scan(ctx context.Context, c models.Commit, idx *targetIndex, match func(models.Commit) bool) (models.MatchOutcome, error) {
	out := models.MatchOutcome{Kind: models.MatchDifferent, SourceSHA: c.SHA}
	for _, t := range idx.commits {
		if !match(t) {
			continue
		}
		kind, err := e.patches.Compare(ctx, e.repoID, c.SHA, t.SHA)
		if err != nil {
			return models.MatchOutcome{}, fmt.Errorf("failed to compare commit %s with %s: %w", c.SHA, t.SHA, err)
		}
		switch kind {
		case models.MatchSame:
			e.logger.Debug().Str("sha", c.SHA).Str("target_sha", t.SHA).Msg("Found equivalent commit")
			return same(c), nil
		case models.MatchSuspicious:
			out.Kind = models.MatchSuspicious
			out.MatchedTargetSHA = t.SHA
		}
	}
	return out, nil
}

func same(c models.Commit) models.MatchOutcome {
	return models.MatchOutcome{Kind: models.MatchSame, SourceSHA: c.SHA}
}

// Close drops every cached diff
func (e *Engine) Close() {
	e.cache.Clear()
}
