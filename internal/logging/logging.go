// Package logging configures zerolog for the command line tool and the API server.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Setup builds a logger writing to w and installs it as the global logger.
// format "text" selects the console writer, anything else writes JSON lines.
func Setup(level, format string, w io.Writer) (zerolog.Logger, error) {
	if w == nil {
		w = os.Stderr
	}

	lvl := zerolog.InfoLevel
	if strings.TrimSpace(level) != "" {
		var err error
		lvl, err = zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
		}
	}

	switch strings.ToLower(format) {
	case "text", "console":
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly, NoColor: !isTerminal(w)}
	case "", "json":
	default:
		return zerolog.Nop(), fmt.Errorf("invalid log format %q, expected json or text", format)
	}

	logger := zerolog.New(w).Level(lvl).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(lvl)
	log.Logger = logger
	return logger, nil
}

// NewRunID returns an id naming one run in logs and run log files
func NewRunID() string {
	return uuid.NewString()
}

// WithRunID tags logger with id
func WithRunID(logger zerolog.Logger, id string) zerolog.Logger {
	return logger.With().Str("run_id", id).Logger()
}

// RunLog is a per-run log file under a log directory
type RunLog struct {
	Path string
	file *os.File
}

// OpenRunLog creates dir/run_<id>_<timestamp>.log
func OpenRunLog(dir, runID string) (*RunLog, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	name := fmt.Sprintf("run_%s_%s.log", runID, time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create log file: %w", err)
	}
	return &RunLog{Path: path, file: f}, nil
}

func (r *RunLog) Write(p []byte) (int, error) {
	return r.file.Write(p)
}

// Close flushes and closes the log file. Safe on a nil RunLog.
func (r *RunLog) Close() error {
	if r == nil || r.file == nil {
		return nil
	}
	_ = r.file.Sync()
	err := r.file.Close()
	r.file = nil
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}
