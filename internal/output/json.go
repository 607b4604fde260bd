package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gitrevmissing/pkg/models"
)

// JSONWriter outputs the report as {"commits": [...], "suspiciousCommits": [...]}.
type JSONWriter struct{}

func (j *JSONWriter) Write(w io.Writer, _ Comparison, report *models.Report) error {
	if report == nil {
		report = &models.Report{}
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = w.Write(data)
	if err != nil {
		return fmt.Errorf("writing JSON: %w", err)
	}
	_, err = fmt.Fprintln(w)
	return err
}
