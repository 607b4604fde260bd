package models

import (
	"encoding/json"
	"errors"
	"time"
)

var (
	// ErrConfiguration marks problems detected before any reconciliation starts:
	// bad root URL, unsupported hosting provider, missing credentials, bad thresholds.
	ErrConfiguration = errors.New("configuration error")

	// ErrLookup marks a repository, commit or diff that could not be fetched.
	ErrLookup = errors.New("lookup failure")
)

// Commit is a single commit as returned by a hosting provider
type Commit struct {
	SHA       string    `json:"sha"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	Author    string    `json:"author"`
}

// FileChange is one file's patch within a commit
type FileChange struct {
	Path  string `json:"path"`
	Patch string `json:"patch"`
}

// MatchKind classifies a source commit against the target revision
type MatchKind string

const (
	// MatchSame means an equivalent commit exists in the target
	MatchSame MatchKind = "SAME"
	// MatchDifferent means no equivalent commit exists in the target
	MatchDifferent MatchKind = "DIFFERENT"
	// MatchSuspicious means a target commit looks like the source one but is altered
	MatchSuspicious MatchKind = "SUSPICIOUS"
)

func (k MatchKind) String() string {
	return string(k)
}

// MatchOutcome is the classification of one source commit
type MatchOutcome struct {
	Kind             MatchKind `json:"kind"`
	SourceSHA        string    `json:"source_sha"`
	MatchedTargetSHA string    `json:"matched_target_sha,omitempty"`
}

// CommitRecord is a reported source commit with its link and, for suspicious
// commits, the link of the target commit it most resembles.
type CommitRecord struct {
	Commit     Commit
	Link       string
	TargetLink string
}

// Equal reports whether two records point at the same commit through the same link
func (r CommitRecord) Equal(other CommitRecord) bool {
	return r.Commit.SHA == other.Commit.SHA && r.Link == other.Link
}

type commitRecordWire struct {
	SHA        string `json:"sha" yaml:"sha"`
	Message    string `json:"message" yaml:"message"`
	Link       string `json:"link" yaml:"link"`
	TargetLink string `json:"targetLink,omitempty" yaml:"targetLink,omitempty"`
}

func (r CommitRecord) wire() commitRecordWire {
	return commitRecordWire{
		SHA:        r.Commit.SHA,
		Message:    r.Commit.Message,
		Link:       r.Link,
		TargetLink: r.TargetLink,
	}
}

func (r CommitRecord) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.wire())
}

func (r CommitRecord) MarshalYAML() (interface{}, error) {
	return r.wire(), nil
}

func (r *CommitRecord) UnmarshalJSON(data []byte) error {
	var raw commitRecordWire
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	r.Commit = Commit{SHA: raw.SHA, Message: raw.Message}
	r.Link = raw.Link
	r.TargetLink = raw.TargetLink
	return nil
}

// Report lists source commits that are missing from, or only suspiciously
// present in, the target revision. Both lists keep source order.
type Report struct {
	Missing    []CommitRecord `json:"commits"`
	Suspicious []CommitRecord `json:"suspiciousCommits,omitempty"`
}

// IsClean reports whether nothing is missing and nothing is suspicious
func (r *Report) IsClean() bool {
	return r == nil || (len(r.Missing) == 0 && len(r.Suspicious) == 0)
}

func (r Report) MarshalJSON() ([]byte, error) {
	type plain Report
	out := plain(r)
	if out.Missing == nil {
		out.Missing = []CommitRecord{}
	}
	return json.Marshal(out)
}

func (r Report) MarshalYAML() (interface{}, error) {
	out := struct {
		Missing    []CommitRecord `yaml:"commits"`
		Suspicious []CommitRecord `yaml:"suspiciousCommits,omitempty"`
	}{r.Missing, r.Suspicious}
	if out.Missing == nil {
		out.Missing = []CommitRecord{}
	}
	return out, nil
}
