package log

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
)

var (
	// Logger is the global logger instance
	Logger = zerolog.Nop()

	// raw receives unstructured subprocess output; the log file when one is open
	raw io.Writer = io.Discard
)

// Level represents log level
type Level string

const (
	DebugLevel Level = "debug"
	InfoLevel  Level = "info"
	WarnLevel  Level = "warn"
	ErrorLevel Level = "error"
)

// Config holds logging configuration
type Config struct {
	Level      Level
	JSONOutput bool
	Output     io.Writer

	// FilePath, when set, receives every line in addition to Output
	FilePath string
}

// Init initializes the global logger. The returned closer releases the log
// file and must be called before the process exits.
func Init(cfg Config) (io.Closer, error) {
	var level zerolog.Level
	switch cfg.Level {
	case DebugLevel:
		level = zerolog.DebugLevel
	case InfoLevel:
		level = zerolog.InfoLevel
	case WarnLevel:
		level = zerolog.WarnLevel
	case ErrorLevel:
		level = zerolog.ErrorLevel
	default:
		level = zerolog.InfoLevel
	}

	zerolog.SetGlobalLevel(level)

	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}

	writers := []io.Writer{consoleOrJSON(output, cfg.JSONOutput, !isTerminal(output))}

	var closer io.Closer = nopCloser{}
	if cfg.FilePath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.FilePath), 0755); err != nil {
			return closer, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0640)
		if err != nil {
			return closer, fmt.Errorf("failed to open log file: %w", err)
		}
		writers = append(writers, consoleOrJSON(f, cfg.JSONOutput, true))
		closer = f
		raw = NewRedactingWriter(f)
	} else {
		raw = io.Discard
	}

	Logger = zerolog.New(&redactWriter{out: zerolog.MultiLevelWriter(writers...)}).
		With().Timestamp().Logger()
	return closer, nil
}

func consoleOrJSON(w io.Writer, jsonOutput, noColor bool) io.Writer {
	if jsonOutput {
		return w
	}
	return zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: time.RFC3339,
		NoColor:    noColor,
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// RawOutput returns a redacting writer over the log file for subprocess
// output that should be kept verbatim rather than as log events
func RawOutput() io.Writer {
	return raw
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// WithComponent creates a child logger with component field
func WithComponent(component string) zerolog.Logger {
	return Logger.With().Str("component", component).Logger()
}

// WithRunID creates a child logger with run_id field
func WithRunID(runID string) zerolog.Logger {
	return Logger.With().Str("run_id", runID).Logger()
}

// Helper functions for common logging patterns
func Info(msg string) {
	Logger.Info().Msg(msg)
}

func Debug(msg string) {
	Logger.Debug().Msg(msg)
}

func Warn(msg string) {
	Logger.Warn().Msg(msg)
}

func Error(msg string) {
	Logger.Error().Msg(msg)
}

func Errorf(format string, err error) {
	Logger.Error().Err(err).Msg(format)
}

// Success logs a completed step at info level tagged outcome=success
func Success(msg string) {
	Logger.Info().Str("outcome", "success").Msg(msg)
}
