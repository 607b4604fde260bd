package gitlab

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/gitrevmissing/internal/retry"
	"github.com/gitrevmissing/internal/transport"
	"github.com/gitrevmissing/pkg/models"
)

const pageSize = 100

// GitLabConfig contains configuration for the GitLab provider
type GitLabConfig struct {
	URL       string `koanf:"url"`
	Token     string `koanf:"token"`
	Transport transport.Options
	Retry     retry.RetryConfig
	Logger    zerolog.Logger
}

// GitLabProvider reads commits and diffs through the GitLab v4 API
type GitLabProvider struct {
	client     *gitlab.Client
	httpClient *http.Client
	retry      retry.RetryConfig
	logger     zerolog.Logger
}

// New creates a GitLab provider for the instance at config.URL
func New(config GitLabConfig) (*GitLabProvider, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("%w: GitLab URL is required", models.ErrConfiguration)
	}

	// Pacing goes through client-go's limiter hook and retries through
	// our backoff, so the library's own retry loop is switched off.
	httpClient := transport.NewClient(config.Transport, nil)
	client, err := gitlab.NewClient(config.Token,
		gitlab.WithBaseURL(fmt.Sprintf("%s/api/v4", strings.TrimRight(config.URL, "/"))),
		gitlab.WithHTTPClient(httpClient),
		gitlab.WithCustomLimiter(transport.NewLimiter(config.Transport)),
		gitlab.WithoutRetries(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create GitLab client: %v", models.ErrConfiguration, err)
	}

	config.Logger.Debug().Str("url", config.URL).Msg("Initialized GitLab client")

	return &GitLabProvider{
		client:     client,
		httpClient: httpClient,
		retry:      config.Retry,
		logger:     config.Logger.With().Str("provider", "gitlab").Logger(),
	}, nil
}

// GetCommitsSince lists commits reachable from revision authored at or after since
func (p *GitLabProvider) GetCommitsSince(ctx context.Context, repoID, revision string, since time.Time) ([]models.Commit, error) {
	opt := &gitlab.ListCommitsOptions{
		ListOptions: gitlab.ListOptions{PerPage: pageSize, Page: 1},
		RefName:     gitlab.Ptr(revision),
		Since:       gitlab.Ptr(since),
	}

	var commits []models.Commit
	for {
		var page []*gitlab.Commit
		var resp *gitlab.Response
		err := p.call(ctx, fmt.Sprintf("list commits of %s@%s", repoID, revision), func() (*gitlab.Response, error) {
			var err error
			page, resp, err = p.client.Commits.ListCommits(repoID, opt, gitlab.WithContext(ctx))
			return resp, err
		})
		if err != nil {
			return nil, err
		}

		for _, c := range page {
			commits = append(commits, ConvertCommit(c))
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}

	p.logger.Debug().
		Str("project", repoID).
		Str("revision", revision).
		Int("commits", len(commits)).
		Msg("Listed commits")
	return commits, nil
}

// GetDiff returns the per-file diffs of sha in API order
func (p *GitLabProvider) GetDiff(ctx context.Context, repoID, sha string) ([]models.FileChange, error) {
	opt := &gitlab.GetCommitDiffOptions{
		ListOptions: gitlab.ListOptions{PerPage: pageSize, Page: 1},
	}

	var files []models.FileChange
	for {
		var diffs []*gitlab.Diff
		var resp *gitlab.Response
		err := p.call(ctx, fmt.Sprintf("get diff of commit %s in %s", sha, repoID), func() (*gitlab.Response, error) {
			var err error
			diffs, resp, err = p.client.Commits.GetCommitDiff(repoID, sha, opt, gitlab.WithContext(ctx))
			return resp, err
		})
		if err != nil {
			return nil, err
		}

		for _, d := range diffs {
			files = append(files, ConvertDiff(d))
		}
		if resp.NextPage == 0 {
			break
		}
		opt.Page = resp.NextPage
	}
	return files, nil
}

// Close releases idle connections
func (p *GitLabProvider) Close() error {
	transport.CloseIdle(p.httpClient)
	return nil
}

// ConvertCommit converts a GitLab commit to the internal model
func ConvertCommit(c *gitlab.Commit) models.Commit {
	commit := models.Commit{
		SHA:     c.ID,
		Message: c.Message,
		Author:  c.AuthorName,
	}
	if c.AuthoredDate != nil {
		commit.Timestamp = *c.AuthoredDate
	}
	return commit
}

// ConvertDiff converts a GitLab diff to the internal model
func ConvertDiff(d *gitlab.Diff) models.FileChange {
	path := d.NewPath
	if d.DeletedFile || path == "" {
		path = d.OldPath
	}
	return models.FileChange{Path: path, Patch: d.Diff}
}

func (p *GitLabProvider) call(ctx context.Context, what string, op func() (*gitlab.Response, error)) error {
	result := retry.RetryWithBackoff(ctx, p.retry, func() error {
		resp, err := op()
		if err == nil {
			return nil
		}
		if !retryable(resp, err) {
			return retry.Permanent(err)
		}
		return err
	}, p.logger)
	if !result.Success {
		return fmt.Errorf("%w: failed to %s: %w", models.ErrLookup, what, result.LastError)
	}
	return nil
}

func retryable(resp *gitlab.Response, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if resp != nil && resp.Response != nil {
		return retry.IsRetryableStatus(resp.StatusCode)
	}
	return retry.IsRetryableError(err)
}
