package providers

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gitrevmissing/pkg/models"
)

// Kind identifies a hosting provider type
type Kind string

const (
	KindGitHub Kind = "github"
	KindGitLab Kind = "gitlab"
)

// Repository is the read-only view of a hosting provider the engine needs
type Repository interface {
	// GetCommitsSince lists commits reachable from revision authored at or after since
	GetCommitsSince(ctx context.Context, repoID, revision string, since time.Time) ([]models.Commit, error)
	// GetDiff returns the ordered per-file patches of one commit
	GetDiff(ctx context.Context, repoID, sha string) ([]models.FileChange, error)
}

// ParseKind validates an explicit provider type from configuration
func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindGitHub:
		return KindGitHub, nil
	case KindGitLab:
		return KindGitLab, nil
	}
	return "", fmt.Errorf("%w: unsupported provider type %q", models.ErrConfiguration, s)
}

// DetectKind guesses the provider from the host name
func DetectKind(host string) (Kind, error) {
	h := strings.ToLower(host)
	switch {
	case strings.Contains(h, "github"):
		return KindGitHub, nil
	case strings.Contains(h, "gitlab"):
		return KindGitLab, nil
	}
	return "", fmt.Errorf("%w: not supported for git service %q", models.ErrConfiguration, host)
}

// FormatCommitLink builds the web link of a commit under repoURL
func FormatCommitLink(kind Kind, repoURL, sha string) string {
	repoURL = strings.TrimRight(repoURL, "/")
	if kind == KindGitLab {
		return repoURL + "/-/commit/" + sha
	}
	return repoURL + "/commit/" + sha
}

// Links formats commit links for one repository
type Links struct {
	Kind    Kind
	RepoURL string
}

func (l Links) FormatCommitLink(sha string) string {
	return FormatCommitLink(l.Kind, l.RepoURL, sha)
}
