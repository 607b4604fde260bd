package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gitrevmissing/internal/config"
)

// PrintConfig prints the effective configuration with tokens masked
func PrintConfig(w io.Writer, cfg *config.Config) {
	fmt.Fprintln(w, "=== Configuration ===")

	g := cfg.General
	fmt.Fprintf(w, "months:         %d\n", g.Months)
	fmt.Fprintf(w, "patch_ratio:    %v\n", g.PatchRatio)
	fmt.Fprintf(w, "message_ratio:  %v\n", g.MessageRatio)
	fmt.Fprintf(w, "workers:        %d\n", g.Workers)
	fmt.Fprintf(w, "log:            %s (%s)\n", g.LogLevel, g.LogFormat)
	if g.LogDir != "" {
		fmt.Fprintf(w, "log_dir:        %s\n", g.LogDir)
	}
	if cfg.Token != "" {
		fmt.Fprintf(w, "token:          %s\n", maskSecret(cfg.Token))
	}

	fmt.Fprintln(w, "")
	fmt.Fprintln(w, "Ignored commit prefixes:")
	for _, p := range cfg.Filter.Prefixes {
		fmt.Fprintf(w, "   - %q\n", p)
	}
	fmt.Fprintln(w, "Ignored commit messages:")
	for _, m := range cfg.Filter.Markers {
		fmt.Fprintf(w, "   - %q\n", m)
	}

	if len(cfg.Repositories) > 0 {
		fmt.Fprintln(w, "")
		fmt.Fprintln(w, "Repositories:")
		for _, r := range cfg.Repositories {
			kind := r.Type
			if kind == "" {
				kind = "auto"
			}
			fmt.Fprintf(w, "   - %s [%s] token=%s\n", r.URL, kind, maskSecret(r.Token))
		}
	}

	fmt.Fprintln(w, "")
	fmt.Fprintf(w, "http: %v req/s, burst %d, %d retries, timeout %s\n",
		cfg.HTTP.RequestsPerSecond, cfg.HTTP.Burst, cfg.HTTP.MaxRetries, cfg.HTTP.Timeout)
	fmt.Fprintln(w, "=====================")
}

// maskSecret masks a secret value for display, showing only first and last 2 chars
func maskSecret(value string) string {
	if len(value) <= 8 {
		return "****"
	}
	return value[:2] + "****" + value[len(value)-2:]
}

// LoadEnvFile loads environment variables from a file, overwriting existing ones.
func LoadEnvFile(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		line = strings.TrimPrefix(line, "export ")

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 && ((value[0] == '"' && value[len(value)-1] == '"') || (value[0] == '\'' && value[len(value)-1] == '\'')) {
			value = value[1 : len(value)-1]
		}

		if err := os.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to set env var %s: %w", key, err)
		}
	}

	return scanner.Err()
}
