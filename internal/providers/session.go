package providers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/gitrevmissing/internal/providers/github"
	"github.com/gitrevmissing/internal/providers/gitlab"
	"github.com/gitrevmissing/internal/retry"
	"github.com/gitrevmissing/internal/transport"
	"github.com/gitrevmissing/pkg/models"
)

// SessionConfig describes how to reach one hosting provider
type SessionConfig struct {
	Kind      Kind
	RootURL   string
	Token     string
	Transport transport.Options
	Retry     retry.RetryConfig
	Logger    zerolog.Logger
}

// ProviderRepository is a Repository that holds resources until closed
type ProviderRepository interface {
	Repository
	Close() error
}

// Session is an open connection to a hosting provider. It is owned by the
// caller and must be closed when the reconciliation is done.
type Session struct {
	kind Kind
	repo ProviderRepository
	once sync.Once
}

// Open validates cfg and creates the provider client for cfg.Kind
func Open(ctx context.Context, cfg SessionConfig) (*Session, error) {
	if cfg.RootURL == "" {
		return nil, fmt.Errorf("%w: missing git root URL", models.ErrConfiguration)
	}
	if cfg.Token == "" {
		return nil, fmt.Errorf("%w: no token configured for %s", models.ErrConfiguration, cfg.RootURL)
	}

	var (
		repo ProviderRepository
		err  error
	)
	switch cfg.Kind {
	case KindGitHub:
		repo, err = github.New(github.GitHubConfig{
			RootURL:   cfg.RootURL,
			Token:     cfg.Token,
			Transport: cfg.Transport,
			Retry:     cfg.Retry,
			Logger:    cfg.Logger,
		})
	case KindGitLab:
		repo, err = gitlab.New(gitlab.GitLabConfig{
			URL:       cfg.RootURL,
			Token:     cfg.Token,
			Transport: cfg.Transport,
			Retry:     cfg.Retry,
			Logger:    cfg.Logger,
		})
	default:
		return nil, fmt.Errorf("%w: unsupported provider %q", models.ErrConfiguration, cfg.Kind)
	}
	if err != nil {
		return nil, err
	}

	cfg.Logger.Debug().Str("kind", string(cfg.Kind)).Str("root_url", cfg.RootURL).Msg("Opened provider session")
	return NewSession(cfg.Kind, repo), nil
}

// NewSession wraps an already constructed repository
func NewSession(kind Kind, repo ProviderRepository) *Session {
	return &Session{kind: kind, repo: repo}
}

// Kind returns the provider type of the session
func (s *Session) Kind() Kind {
	return s.kind
}

func (s *Session) GetCommitsSince(ctx context.Context, repoID, revision string, since time.Time) ([]models.Commit, error) {
	return s.repo.GetCommitsSince(ctx, repoID, revision, since)
}

func (s *Session) GetDiff(ctx context.Context, repoID, sha string) ([]models.FileChange, error) {
	return s.repo.GetDiff(ctx, repoID, sha)
}

// Close releases the provider client. Calling it more than once is a no-op.
func (s *Session) Close() error {
	var err error
	s.once.Do(func() {
		err = s.repo.Close()
	})
	return err
}
