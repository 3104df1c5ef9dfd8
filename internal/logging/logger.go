package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Level is the minimum severity a logger emits.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
)

func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "debug"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return "unknown"
	}
}

func (l Level) zerolog() zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// ParseLevel parses a level name. Unknown names yield LevelInfo.
func ParseLevel(s string) Level {
	switch strings.ToLower(s) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// Format is the output encoding.
type Format int

const (
	// FormatText writes human-readable lines.
	FormatText Format = iota
	// FormatJSON writes one JSON object per line.
	FormatJSON
)

// ParseFormat parses a format name. Unknown names yield FormatText.
func ParseFormat(s string) Format {
	if strings.EqualFold(s, "json") {
		return FormatJSON
	}
	return FormatText
}

// Logger is the structured logging interface used across obacore.
// Arguments after msg are alternating keys and values.
type Logger interface {
	Debug(msg string, keysAndValues ...interface{})
	Info(msg string, keysAndValues ...interface{})
	Warn(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
	// WithFields returns a logger that adds the given pairs to every line.
	WithFields(keysAndValues ...interface{}) Logger
	// Close releases a log file opened by New. Loggers writing to stdout,
	// stderr or a caller's Writer, and loggers from WithFields, own
	// nothing and return nil.
	Close() error
}

// Config holds the logger configuration.
type Config struct {
	Level  string
	Format string
	// Output is "stdout", "stderr" (the default) or a file path.
	Output string
	// Writer overrides Output when set.
	Writer io.Writer
}

type logger struct {
	zl zerolog.Logger
	f  *os.File
}

// New creates a Logger. A file Output that cannot be opened falls back to
// stderr.
func New(cfg Config) Logger {
	var (
		w io.Writer = cfg.Writer
		f *os.File
	)
	if w == nil {
		f = openOutput(cfg.Output)
		w = f
		if f == os.Stdout || f == os.Stderr {
			f = nil
		}
	}
	if ParseFormat(cfg.Format) == FormatText {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}
	zl := zerolog.New(w).Level(ParseLevel(cfg.Level).zerolog()).With().Timestamp().Logger()
	return &logger{zl: zl, f: f}
}

func openOutput(output string) *os.File {
	switch output {
	case "", "stderr":
		return os.Stderr
	case "stdout":
		return os.Stdout
	}
	f, err := os.OpenFile(output, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return os.Stderr
	}
	return f
}

// NewDefault returns an info-level text logger on stderr.
func NewDefault() Logger {
	return New(Config{})
}

// NewNop returns a logger that discards everything.
func NewNop() Logger {
	return &logger{zl: zerolog.Nop()}
}

func (l *logger) Debug(msg string, keysAndValues ...interface{}) {
	l.zl.Debug().Fields(keysAndValues).Msg(msg)
}

func (l *logger) Info(msg string, keysAndValues ...interface{}) {
	l.zl.Info().Fields(keysAndValues).Msg(msg)
}

func (l *logger) Warn(msg string, keysAndValues ...interface{}) {
	l.zl.Warn().Fields(keysAndValues).Msg(msg)
}

func (l *logger) Error(msg string, keysAndValues ...interface{}) {
	l.zl.Error().Fields(keysAndValues).Msg(msg)
}

func (l *logger) WithFields(keysAndValues ...interface{}) Logger {
	return &logger{zl: l.zl.With().Fields(keysAndValues).Logger()}
}

func (l *logger) Close() error {
	if l.f == nil {
		return nil
	}
	return l.f.Close()
}
