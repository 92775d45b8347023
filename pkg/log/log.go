// Package log is the structured logger of every fleetpeer binary. It wraps
// zap behind a small interface and exposes a process-wide logger that is
// configured once from Options.
package log

import (
	"fmt"
	"sync/atomic"

	"github.com/go-logr/logr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger takes logr-style key/value pairs after the message.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Warn(msg string, keysAndValues ...any)
	Error(err error, msg string, keysAndValues ...any)

	// WithName appends a dot-separated segment to the logger name.
	WithName(name string) Logger

	// WithValues attaches key/value pairs to every entry of the returned logger.
	WithValues(keysAndValues ...any) Logger

	// Logr adapts the logger for libraries that expect a logr.Logger.
	Logr() logr.Logger
}

// global is the process logger and its copy used by the package-level
// helpers, which sit one frame further from the caller.
type global struct {
	logger  *zapLogger
	helpers *zapLogger
}

var (
	initialized atomic.Bool
	current     atomic.Pointer[global]
)

func init() {
	install(newNop())
}

func install(l *zapLogger) {
	current.Store(&global{
		logger:  l,
		helpers: &zapLogger{core: l.core.WithOptions(zap.AddCallerSkip(1)), level: l.level},
	})
}

// Init replaces the process logger. Only the first call has an effect, so
// loggers derived afterwards share one configuration.
func Init(opts *Options) {
	if initialized.CompareAndSwap(false, true) {
		install(NewLogger(opts).(*zapLogger))
	}
}

// Std returns the process logger.
func Std() Logger {
	return current.Load().logger
}

func Debug(msg string, keysAndValues ...any) { current.Load().helpers.Debug(msg, keysAndValues...) }
func Info(msg string, keysAndValues ...any)  { current.Load().helpers.Info(msg, keysAndValues...) }
func Warn(msg string, keysAndValues ...any)  { current.Load().helpers.Warn(msg, keysAndValues...) }

func Error(err error, msg string, keysAndValues ...any) {
	current.Load().helpers.Error(err, msg, keysAndValues...)
}

func WithName(name string) Logger            { return Std().WithName(name) }
func WithValues(keysAndValues ...any) Logger { return Std().WithValues(keysAndValues...) }
func Logr() logr.Logger                      { return Std().Logr() }

// SetLevel changes the minimum level of the process logger and every logger
// derived from it. It is applied when the config file is reloaded.
func SetLevel(level string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}
	current.Load().logger.level.SetLevel(l)
	return nil
}

// Sync flushes buffered entries of the process logger.
func Sync() {
	_ = current.Load().logger.core.Sync()
}
