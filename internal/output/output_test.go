package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/gitrevmissing/pkg/models"
)

var comparison = Comparison{
	RepoURL: "https://github.com/ihomeland/prtest",
	Source:  "1.0.0",
	Target:  "1.0.2",
}

func sampleReport() *models.Report {
	return &models.Report{
		Missing: []models.CommitRecord{
			{
				Commit: models.Commit{SHA: "0123456789abcdef", Message: "Add router tests\n\nLonger body"},
				Link:   "https://github.com/ihomeland/prtest/commit/0123456789abcdef",
			},
		},
		Suspicious: []models.CommitRecord{
			{
				Commit:     models.Commit{SHA: "fedcba9876543210", Message: "Fix NPE"},
				Link:       "https://github.com/ihomeland/prtest/commit/fedcba9876543210",
				TargetLink: "https://github.com/ihomeland/prtest/commit/aaaa",
			},
		},
	}
}

func TestGetWriter(t *testing.T) {
	w, err := GetWriter("json")
	require.NoError(t, err)
	assert.IsType(t, &JSONWriter{}, w)

	w, err = GetWriter("")
	require.NoError(t, err)
	assert.IsType(t, &TextWriter{}, w)

	w, err = GetWriter("yaml")
	require.NoError(t, err)
	assert.IsType(t, &YAMLWriter{}, w)

	_, err = GetWriter("sarif")
	assert.ErrorIs(t, err, models.ErrConfiguration)
}

func TestJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONWriter{}).Write(&buf, comparison, sampleReport()))

	var parsed struct {
		Commits []struct {
			SHA        string `json:"sha"`
			Message    string `json:"message"`
			Link       string `json:"link"`
			TargetLink string `json:"targetLink"`
		} `json:"commits"`
		SuspiciousCommits []struct {
			SHA        string `json:"sha"`
			TargetLink string `json:"targetLink"`
		} `json:"suspiciousCommits"`
	}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &parsed))
	require.Len(t, parsed.Commits, 1)
	assert.Equal(t, "0123456789abcdef", parsed.Commits[0].SHA)
	assert.Empty(t, parsed.Commits[0].TargetLink)
	require.Len(t, parsed.SuspiciousCommits, 1)
	assert.Equal(t, "https://github.com/ihomeland/prtest/commit/aaaa", parsed.SuspiciousCommits[0].TargetLink)
	assert.NotContains(t, buf.String(), `"targetLink": ""`)
}

func TestJSONWriter_Clean(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONWriter{}).Write(&buf, comparison, &models.Report{}))
	assert.JSONEq(t, `{"commits": []}`, buf.String())

	buf.Reset()
	require.NoError(t, (&JSONWriter{}).Write(&buf, comparison, nil))
	assert.JSONEq(t, `{"commits": []}`, buf.String())
}

func TestTextWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&TextWriter{}).Write(&buf, comparison, sampleReport()))

	want := "Repository: https://github.com/ihomeland/prtest (1.0.0 -> 1.0.2)\n" +
		"1 commit was missing in 1.0.2\n" +
		"  0123456789  Add router tests\n" +
		"              https://github.com/ihomeland/prtest/commit/0123456789abcdef\n" +
		"1 commit looks suspicious in 1.0.2\n" +
		"  fedcba9876  Fix NPE\n" +
		"              https://github.com/ihomeland/prtest/commit/fedcba9876543210\n" +
		"              similar to https://github.com/ihomeland/prtest/commit/aaaa\n"
	assert.Equal(t, want, buf.String())
}

func TestTextWriter_Counts(t *testing.T) {
	report := sampleReport()
	report.Missing = append(report.Missing, report.Missing[0])
	report.Suspicious = nil

	var buf bytes.Buffer
	require.NoError(t, (&TextWriter{}).Write(&buf, Comparison{Target: "2.x"}, report))
	assert.Contains(t, buf.String(), "2 commits were missing in 2.x\n")
	assert.NotContains(t, buf.String(), "suspicious")
	assert.NotContains(t, buf.String(), "Repository:")
}

func TestTextWriter_Clean(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&TextWriter{}).Write(&buf, comparison, &models.Report{}))
	assert.Contains(t, buf.String(), "Great, no missing commits found\n")
}

func TestYAMLWriter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&YAMLWriter{}).Write(&buf, comparison, sampleReport()))

	var parsed struct {
		Commits []struct {
			SHA        string `yaml:"sha"`
			Link       string `yaml:"link"`
			TargetLink string `yaml:"targetLink"`
		} `yaml:"commits"`
		SuspiciousCommits []struct {
			SHA        string `yaml:"sha"`
			TargetLink string `yaml:"targetLink"`
		} `yaml:"suspiciousCommits"`
	}
	require.NoError(t, yaml.Unmarshal(buf.Bytes(), &parsed))
	require.Len(t, parsed.Commits, 1)
	assert.Equal(t, "0123456789abcdef", parsed.Commits[0].SHA)
	assert.Empty(t, parsed.Commits[0].TargetLink)
	require.Len(t, parsed.SuspiciousCommits, 1)
	assert.Equal(t, "https://github.com/ihomeland/prtest/commit/aaaa", parsed.SuspiciousCommits[0].TargetLink)
	assert.NotContains(t, buf.String(), "targetLink: \"\"")
}

func TestYAMLWriter_Clean(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&YAMLWriter{}).Write(&buf, comparison, nil))
	assert.Equal(t, "commits: []\n", buf.String())
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriters_PropagateWriteErrors(t *testing.T) {
	for _, w := range []Writer{&TextWriter{}, &JSONWriter{}, &YAMLWriter{}} {
		err := w.Write(failingWriter{}, comparison, sampleReport())
		assert.Error(t, err)
	}
}
