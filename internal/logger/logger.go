// Package logger wraps zerolog behind the small Logger contract every
// component in this repository depends on, so call sites never import
// zerolog directly and tests can substitute a no-op implementation.
package logger

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger is the structured logging contract used across the core. Fields
// are passed as alternating key/value pairs, mirroring zerolog's own
// variadic convention.
type Logger interface {
	Debug(msg string, fields ...interface{})
	Info(msg string, fields ...interface{})
	Warn(msg string, fields ...interface{})
	Error(msg string, fields ...interface{})
	Fatal(msg string, fields ...interface{})
	With(component string) Logger
}

// Zerolog is the production Logger, backed by a zerolog.Logger.
type Zerolog struct {
	log zerolog.Logger
}

// New builds a console-friendly Zerolog logger at the given level
// ("debug", "info", "warn", "error"). Unknown levels default to info.
func New(component, level string) *Zerolog {
	zerolog.TimeFieldFormat = time.RFC3339

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}

	z := zerolog.New(os.Stdout).
		Level(lvl).
		With().
		Timestamp().
		Str("component", component).
		Logger()

	return &Zerolog{log: z}
}

func (l *Zerolog) With(component string) Logger {
	return &Zerolog{log: l.log.With().Str("component", component).Logger()}
}

func (l *Zerolog) Debug(msg string, fields ...interface{}) { l.event(l.log.Debug(), msg, fields) }
func (l *Zerolog) Info(msg string, fields ...interface{})  { l.event(l.log.Info(), msg, fields) }
func (l *Zerolog) Warn(msg string, fields ...interface{})  { l.event(l.log.Warn(), msg, fields) }
func (l *Zerolog) Error(msg string, fields ...interface{}) { l.event(l.log.Error(), msg, fields) }
func (l *Zerolog) Fatal(msg string, fields ...interface{}) { l.event(l.log.Fatal(), msg, fields) }

// event applies key/value pairs to a zerolog.Event and fires it. An odd
// number of fields drops the dangling key rather than panicking.
func (l *Zerolog) event(e *zerolog.Event, msg string, fields []interface{}) {
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		e = e.Interface(key, fields[i+1])
	}
	e.Msg(msg)
}

// Noop discards everything; useful in tests that don't care about logs.
type Noop struct{}

func (Noop) Debug(string, ...interface{}) {}
func (Noop) Info(string, ...interface{})  {}
func (Noop) Warn(string, ...interface{})  {}
func (Noop) Error(string, ...interface{}) {}
func (Noop) Fatal(string, ...interface{}) {}
func (Noop) With(string) Logger           { return Noop{} }
