package output

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"github.com/gitrevmissing/pkg/models"
)

// YAMLWriter outputs the report with the same keys as JSONWriter.
type YAMLWriter struct{}

func (y *YAMLWriter) Write(w io.Writer, _ Comparison, report *models.Report) error {
	if report == nil {
		report = &models.Report{}
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("writing YAML: %w", err)
	}
	return enc.Close()
}
