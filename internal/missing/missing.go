// Package missing runs one reconciliation end to end: it resolves a compare
// URL to a repository and credentials, lists the commits of both revisions
// and hands them to the reconciliation engine.
package missing

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/gitrevmissing/internal/config"
	"github.com/gitrevmissing/internal/filter"
	"github.com/gitrevmissing/internal/logging"
	"github.com/gitrevmissing/internal/providers"
	"github.com/gitrevmissing/internal/reconcile"
	"github.com/gitrevmissing/internal/retry"
	"github.com/gitrevmissing/internal/transport"
	"github.com/gitrevmissing/pkg/models"
)

// Month is the length of the months-back window unit
const Month = 2629800000 * time.Millisecond

// Session is an open provider connection
type Session interface {
	GetCommitsSince(ctx context.Context, repoID, revision string, since time.Time) ([]models.Commit, error)
	GetDiff(ctx context.Context, repoID, sha string) ([]models.FileChange, error)
	Close() error
}

// Opener opens a provider session
type Opener func(ctx context.Context, cfg providers.SessionConfig) (Session, error)

// Request describes one run
type Request struct {
	CompareURL string
	// Token overrides configured credentials
	Token string
	// Months overrides general.months when positive
	Months int
	// Since overrides the months window when set
	Since time.Time
	// RunID tags the run's logs. Empty gets a fresh id.
	RunID string
}

// Service runs requests against configured providers
type Service struct {
	cfg    *config.Config
	logger zerolog.Logger
	open   Opener
	now    func() time.Time
}

func openProvider(ctx context.Context, cfg providers.SessionConfig) (Session, error) {
	s, err := providers.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// NewService creates a service using cfg. A nil cfg uses config.Default().
func NewService(cfg *config.Config, logger zerolog.Logger) *Service {
	if cfg == nil {
		cfg = config.Default()
	}
	return &Service{
		cfg:    cfg,
		logger: logger,
		open:   openProvider,
		now:    time.Now,
	}
}

// WithOpener replaces how provider sessions are opened
func (s *Service) WithOpener(open Opener) *Service {
	s.open = open
	return s
}

// Resolve parses the compare URL of req, using the provider type of a
// matching configured repository when there is one.
func (s *Service) Resolve(req Request) (*providers.Target, error) {
	if req.CompareURL == "" {
		return nil, fmt.Errorf("%w: compare URL is required", models.ErrConfiguration)
	}

	var kind providers.Kind
	if repo := s.cfg.RepositoryFor(req.CompareURL); repo != nil && repo.Type != "" {
		var err error
		kind, err = providers.ParseKind(repo.Type)
		if err != nil {
			return nil, err
		}
	}
	return providers.ParseCompareURL(req.CompareURL, kind)
}

// token picks the request token, then the matching repository's, then the global one
func (s *Service) token(req Request, target *providers.Target) (string, error) {
	if req.Token != "" {
		return req.Token, nil
	}
	if repo := s.cfg.RepositoryFor(target.RepoURL); repo != nil && repo.Token != "" {
		return repo.Token, nil
	}
	if s.cfg.Token != "" {
		return s.cfg.Token, nil
	}
	return "", fmt.Errorf("%w: no token given and no repository configured for %s", models.ErrConfiguration, target.RepoURL)
}

func (s *Service) since(req Request) time.Time {
	if !req.Since.IsZero() {
		return req.Since
	}
	months := req.Months
	if months <= 0 {
		months = s.cfg.General.Months
	}
	return s.now().Add(-time.Duration(months) * Month)
}

// EngineOptions maps the configuration onto engine options
func (s *Service) EngineOptions() reconcile.Options {
	g := s.cfg.General
	return reconcile.Options{
		PatchRatioThreshold:   g.PatchRatio,
		MessageRatioThreshold: g.MessageRatio,
		Filter:                filter.New(s.cfg.Filter.Prefixes, s.cfg.Filter.Markers),
		Workers:               g.Workers,
		Logger:                s.logger,
	}
}

// Run resolves req and reports the source commits missing from the target revision
func (s *Service) Run(ctx context.Context, req Request) (*models.Report, error) {
	target, err := s.Resolve(req)
	if err != nil {
		return nil, err
	}
	return s.RunTarget(ctx, target, req)
}

// RunTarget is Run for an already resolved target
func (s *Service) RunTarget(ctx context.Context, target *providers.Target, req Request) (*models.Report, error) {
	token, err := s.token(req, target)
	if err != nil {
		return nil, err
	}
	opts := s.EngineOptions()
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	opts.RunID = req.RunID
	if opts.RunID == "" {
		opts.RunID = logging.NewRunID()
	}
	logger := logging.WithRunID(s.logger, opts.RunID)

	session, err := s.open(ctx, providers.SessionConfig{
		Kind:    target.Kind,
		RootURL: target.RootURL,
		Token:   token,
		Transport: transport.Options{
			RequestsPerSecond: s.cfg.HTTP.RequestsPerSecond,
			Burst:             s.cfg.HTTP.Burst,
			Timeout:           s.cfg.HTTP.Timeout,
		},
		Retry:  retry.ProviderRetryConfig(s.cfg.HTTP.MaxRetries),
		Logger: logger,
	})
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close provider session")
		}
	}()

	since := s.since(req)
	logger.Info().
		Str("repo", target.RepoID).
		Str("source", target.Source).
		Str("target", target.TargetRev).
		Time("since", since).
		Msg("Listing commits")

	var sourceCommits, targetCommits []models.Commit
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sourceCommits, err = session.GetCommitsSince(gctx, target.RepoID, target.Source, since)
		if err != nil {
			return fmt.Errorf("failed to list commits of %s: %w", target.Source, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		targetCommits, err = session.GetCommitsSince(gctx, target.RepoID, target.TargetRev, since)
		if err != nil {
			return fmt.Errorf("failed to list commits of %s: %w", target.TargetRev, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	engine, err := reconcile.New(session, target.RepoID, target.Links(), opts)
	if err != nil {
		return nil, err
	}
	defer engine.Close()

	return engine.Reconcile(ctx, sourceCommits, targetCommits)
}
