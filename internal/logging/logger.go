// Package logging provides structured logging for CLI and dashboard modes.
package logging

import (
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/blackdropbox/blackdropbox/internal/events"
)

// Modes
const (
	ModeCLI       = "cli"
	ModeDashboard = "dashboard"
)

// Logger wraps zerolog with mode-specific behavior.
type Logger struct {
	zlog     zerolog.Logger
	mode     string // "cli" or "dashboard"
	eventBus *events.EventBus
	output   io.Writer // current output writer
}

// NewLogger creates a new logger for the specified mode.
// Logs go to stderr so stdout stays clean for json/yaml output.
// In dashboard mode warnings and errors are also forwarded to the event bus.
func NewLogger(mode string, eventBus *events.EventBus) *Logger {
	l := &Logger{
		mode:     mode,
		eventBus: eventBus,
	}
	l.SetOutput(os.Stderr)
	return l
}

// NewDefaultCLILogger creates a default CLI logger.
func NewDefaultCLILogger() *Logger {
	return NewLogger(ModeCLI, nil)
}

// NewNopLogger creates a logger that discards everything. Used by tests.
func NewNopLogger() *Logger {
	return &Logger{zlog: zerolog.Nop(), mode: ModeCLI, output: io.Discard}
}

// Info returns an info level event.
func (l *Logger) Info() *zerolog.Event {
	return l.zlog.Info()
}

// Error returns an error level event.
func (l *Logger) Error() *zerolog.Event {
	return l.zlog.Error()
}

// Debug returns a debug level event.
func (l *Logger) Debug() *zerolog.Event {
	return l.zlog.Debug()
}

// Warn returns a warn level event.
func (l *Logger) Warn() *zerolog.Event {
	return l.zlog.Warn()
}

// With creates a child logger context with additional fields.
func (l *Logger) With() zerolog.Context {
	return l.zlog.With()
}

// Component returns a child logger tagged with a component name.
func (l *Logger) Component(name string) *Logger {
	child := *l
	child.zlog = l.zlog.With().Str("component", name).Logger()
	return &child
}

// SetOutput changes the output writer for the logger.
// This is useful for redirecting logs through progress bars.
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
	zl := zerolog.New(zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "15:04:05",
	}).With().Timestamp().Logger()

	if l.mode == ModeDashboard && l.eventBus != nil {
		zl = zl.Hook(busHook{bus: l.eventBus})
	}
	l.zlog = zl
}

// Output returns the current output writer.
func (l *Logger) Output() io.Writer {
	return l.output
}

// Debugf logs a debug message with printf-style formatting.
// This is only shown when verbose mode is enabled.
func (l *Logger) Debugf(format string, args ...interface{}) {
	l.zlog.Debug().Msgf(format, args...)
}

// Infof logs an info message with printf-style formatting.
func (l *Logger) Infof(format string, args ...interface{}) {
	l.zlog.Info().Msgf(format, args...)
}

// Errorf logs an error message with printf-style formatting.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zlog.Error().Msgf(format, args...)
}

// Warnf logs a warning message with printf-style formatting.
func (l *Logger) Warnf(format string, args ...interface{}) {
	l.zlog.Warn().Msgf(format, args...)
}

// busHook forwards warn and error lines to the event bus.
type busHook struct {
	bus *events.EventBus
}

func (h busHook) Run(_ *zerolog.Event, level zerolog.Level, msg string) {
	switch level {
	case zerolog.WarnLevel:
		h.bus.PublishLog(events.WarnLevel, msg, "", nil)
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		h.bus.PublishLog(events.ErrorLevel, msg, "", nil)
	}
}

// SetGlobalLevel sets the global log level.
func SetGlobalLevel(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)
}

func init() {
	// Set default log level to info
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Configure global logger
	log.Logger = log.Output(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: "15:04:05",
	})
}
