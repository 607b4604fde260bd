package providers

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gitrevmissing/pkg/models"
)

// Target is the repository and the two revisions named by a compare URL
type Target struct {
	Kind    Kind
	Host    string
	RootURL string // scheme://host
	RepoURL string // RootURL/owner/repo
	RepoID  string // owner/repo, or group/subgroup/repo on GitLab

	// Source is the revision whose commits must be present in TargetRev
	Source    string
	TargetRev string
}

// ParseCompareURL parses a GitHub or GitLab compare URL:
//
//	https://github.com/owner/repo/compare/1.0...1.1
//	https://gitlab.example.com/group/repo/-/compare/1.1...1.0
//
// GitLab lists the revisions the other way round, so they are swapped to
// keep Source as the revision being checked. An empty override detects the
// provider from the host.
func ParseCompareURL(raw string, override Kind) (*Target, error) {
	dots := strings.Index(raw, "...")
	if dots == -1 {
		return nil, fmt.Errorf("%w: cannot parse compare URL %q", models.ErrConfiguration, raw)
	}
	head, revB := raw[:dots], raw[dots+3:]

	marker := "/-/compare/"
	idx := strings.Index(head, marker)
	if idx == -1 {
		marker = "/compare/"
		idx = strings.Index(head, marker)
	}
	if idx == -1 {
		return nil, fmt.Errorf("%w: no compare path in %q", models.ErrConfiguration, raw)
	}
	repoLink, revA := head[:idx], head[idx+len(marker):]
	if revA == "" || revB == "" {
		return nil, fmt.Errorf("%w: both revisions are required in %q", models.ErrConfiguration, raw)
	}

	u, err := url.Parse(repoLink)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid repository URL: %v", models.ErrConfiguration, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("%w: repository URL %q has no scheme or host", models.ErrConfiguration, repoLink)
	}
	repoID := strings.Trim(u.Path, "/")
	if strings.Count(repoID, "/") < 1 {
		return nil, fmt.Errorf("%w: expected owner/repo in %q", models.ErrConfiguration, repoLink)
	}

	kind := override
	if kind == "" {
		kind, err = DetectKind(u.Host)
		if err != nil {
			return nil, err
		}
	}

	t := &Target{
		Kind:      kind,
		Host:      u.Host,
		RootURL:   u.Scheme + "://" + u.Host,
		RepoID:    repoID,
		Source:    revA,
		TargetRev: revB,
	}
	t.RepoURL = t.RootURL + "/" + repoID
	if kind == KindGitLab {
		t.Source, t.TargetRev = revB, revA
	}
	return t, nil
}

// Links returns the link formatter for the target repository
func (t *Target) Links() Links {
	return Links{Kind: t.Kind, RepoURL: t.RepoURL}
}
