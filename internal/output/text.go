package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/gitrevmissing/pkg/models"
)

const shortSHA = 10

// TextWriter outputs a human-readable text report.
type TextWriter struct{}

func (t *TextWriter) Write(w io.Writer, cmp Comparison, report *models.Report) error {
	ew := &errWriter{w: w}

	if cmp.RepoURL != "" {
		ew.printf("Repository: %s (%s -> %s)\n", cmp.RepoURL, cmp.Source, cmp.Target)
	}

	if report.IsClean() {
		ew.println("Great, no missing commits found")
		return ew.err
	}

	if n := len(report.Missing); n > 0 {
		ew.printf("%d %s missing in %s\n", n, plural(n, "commit was", "commits were"), cmp.Target)
		for _, r := range report.Missing {
			ew.printf("  %s  %s\n", abbrev(r.Commit.SHA), subject(r.Commit.Message))
			ew.printf("  %s  %s\n", strings.Repeat(" ", shortSHA), r.Link)
		}
	}

	if n := len(report.Suspicious); n > 0 {
		ew.printf("%d %s suspicious in %s\n", n, plural(n, "commit looks", "commits look"), cmp.Target)
		for _, r := range report.Suspicious {
			ew.printf("  %s  %s\n", abbrev(r.Commit.SHA), subject(r.Commit.Message))
			ew.printf("  %s  %s\n", strings.Repeat(" ", shortSHA), r.Link)
			ew.printf("  %s  similar to %s\n", strings.Repeat(" ", shortSHA), r.TargetLink)
		}
	}

	return ew.err
}

func abbrev(sha string) string {
	if len(sha) > shortSHA {
		return sha[:shortSHA]
	}
	return sha + strings.Repeat(" ", shortSHA-len(sha))
}

// subject is the first line of a commit message
func subject(msg string) string {
	if i := strings.IndexByte(msg, '\n'); i >= 0 {
		msg = msg[:i]
	}
	return strings.TrimSpace(msg)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// errWriter wraps an io.Writer and captures the first error.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...interface{}) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func (ew *errWriter) println(s string) {
	if ew.err != nil {
		return
	}
	_, ew.err = fmt.Fprintln(ew.w, s)
}
