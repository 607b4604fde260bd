// Package output formats a missing-commit report for the terminal or for
// machine consumption. Use GetWriter to pick a format.
package output

import (
	"fmt"
	"io"

	"github.com/gitrevmissing/pkg/models"
)

// Comparison names what was compared, for headers in human readable output
type Comparison struct {
	RepoURL string
	Source  string
	Target  string
}

// Writer writes a report in a specific format.
type Writer interface {
	Write(w io.Writer, cmp Comparison, report *models.Report) error
}

// GetWriter returns a writer for the specified format.
func GetWriter(format string) (Writer, error) {
	switch format {
	case "", "text":
		return &TextWriter{}, nil
	case "json":
		return &JSONWriter{}, nil
	case "yaml":
		return &YAMLWriter{}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported output format: %s", models.ErrConfiguration, format)
	}
}
