package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gh "github.com/google/go-github/v75/github"
	"github.com/rs/zerolog"

	"github.com/gitrevmissing/internal/retry"
	"github.com/gitrevmissing/internal/transport"
	"github.com/gitrevmissing/pkg/models"
)

const (
	publicHost = "github.com"
	pageSize   = 100
)

// GitHubConfig contains configuration for the GitHub provider
type GitHubConfig struct {
	// RootURL is the web root, https://github.com or an Enterprise host
	RootURL   string
	Token     string
	Transport transport.Options
	Retry     retry.RetryConfig
	Logger    zerolog.Logger
}

// GitHubProvider reads commits and diffs through the GitHub REST API
type GitHubProvider struct {
	client     *gh.Client
	httpClient *http.Client
	retry      retry.RetryConfig
	logger     zerolog.Logger
}

// New creates a GitHub provider. Hosts other than github.com are treated as
// GitHub Enterprise with the API under /api/v3/.
func New(config GitHubConfig) (*GitHubProvider, error) {
	httpClient := transport.NewClient(config.Transport, transport.NewLimiter(config.Transport))
	client := gh.NewClient(httpClient)
	if config.Token != "" {
		client = client.WithAuthToken(config.Token)
	}

	root := strings.TrimRight(config.RootURL, "/")
	if root != "" && !isPublicGitHub(root) {
		var err error
		client, err = client.WithEnterpriseURLs(root+"/", root+"/")
		if err != nil {
			return nil, fmt.Errorf("%w: invalid GitHub Enterprise URL %q: %v", models.ErrConfiguration, root, err)
		}
	}

	config.Logger.Debug().Str("root_url", root).Msg("Initialized GitHub client")

	return &GitHubProvider{
		client:     client,
		httpClient: httpClient,
		retry:      config.Retry,
		logger:     config.Logger.With().Str("provider", "github").Logger(),
	}, nil
}

func isPublicGitHub(root string) bool {
	host := strings.TrimPrefix(strings.TrimPrefix(root, "https://"), "http://")
	return host == publicHost || host == "www."+publicHost
}

func splitRepoID(repoID string) (string, string, error) {
	owner, repo, ok := strings.Cut(repoID, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("%w: invalid GitHub repository %q, expected owner/repo", models.ErrConfiguration, repoID)
	}
	return owner, repo, nil
}

// GetCommitsSince lists commits reachable from revision authored at or after since
func (p *GitHubProvider) GetCommitsSince(ctx context.Context, repoID, revision string, since time.Time) ([]models.Commit, error) {
	owner, repo, err := splitRepoID(repoID)
	if err != nil {
		return nil, err
	}

	opts := &gh.CommitsListOptions{
		SHA:         revision,
		Since:       since,
		ListOptions: gh.ListOptions{PerPage: pageSize},
	}

	var commits []models.Commit
	for {
		var page []*gh.RepositoryCommit
		var resp *gh.Response
		err := p.call(ctx, fmt.Sprintf("list commits of %s@%s", repoID, revision), func() (*gh.Response, error) {
			var err error
			page, resp, err = p.client.Repositories.ListCommits(ctx, owner, repo, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}

		for _, rc := range page {
			commits = append(commits, convertCommit(rc))
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	p.logger.Debug().
		Str("repo", repoID).
		Str("revision", revision).
		Int("commits", len(commits)).
		Msg("Listed commits")
	return commits, nil
}

// GetDiff returns the per-file patches of sha in API order
func (p *GitHubProvider) GetDiff(ctx context.Context, repoID, sha string) ([]models.FileChange, error) {
	owner, repo, err := splitRepoID(repoID)
	if err != nil {
		return nil, err
	}

	opts := &gh.ListOptions{PerPage: pageSize}
	var files []models.FileChange
	for {
		var rc *gh.RepositoryCommit
		var resp *gh.Response
		err := p.call(ctx, fmt.Sprintf("get commit %s in %s", sha, repoID), func() (*gh.Response, error) {
			var err error
			rc, resp, err = p.client.Repositories.GetCommit(ctx, owner, repo, sha, opts)
			return resp, err
		})
		if err != nil {
			return nil, err
		}

		for _, f := range rc.Files {
			files = append(files, models.FileChange{
				Path:  f.GetFilename(),
				Patch: f.GetPatch(),
			})
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return files, nil
}

// Close releases idle connections
func (p *GitHubProvider) Close() error {
	transport.CloseIdle(p.httpClient)
	return nil
}

func convertCommit(rc *gh.RepositoryCommit) models.Commit {
	author := rc.GetCommit().GetAuthor()
	name := author.GetName()
	if name == "" {
		name = rc.GetAuthor().GetLogin()
	}
	return models.Commit{
		SHA:       rc.GetSHA(),
		Message:   rc.GetCommit().GetMessage(),
		Timestamp: author.GetDate().Time,
		Author:    name,
	}
}

// call runs op with retries on rate limits and server errors. Anything
// else, a 404 included, fails at once as a lookup failure.
func (p *GitHubProvider) call(ctx context.Context, what string, op func() (*gh.Response, error)) error {
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

func retryable(resp *gh.Response, err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var rateErr *gh.RateLimitError
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &rateErr) || errors.As(err, &abuseErr) {
		return true
	}
	if resp != nil && resp.Response != nil {
		return retry.IsRetryableStatus(resp.StatusCode)
	}
	return retry.IsRetryableError(err)
}
