package console

import (
	"log"
	"os"
)

// Logger is the minimal structured-warning sink every layer of the core
// logs through. The propagation policy (§7) never lets an FFI usage error
// or a non-fatal desync reach the caller as a Go error — it is logged here
// instead, matching the teacher's habit of fmt.Printf-ing a fixed-format
// warning at the point of detection rather than bubbling it.
type Logger interface {
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

// StdLogger adapts the standard library's *log.Logger to the Logger
// interface, prefixing each line with its severity.
type StdLogger struct {
	*log.Logger
}

// NewStdLogger returns a Logger that writes to stderr with a "nczx: " prefix.
func NewStdLogger() *StdLogger {
	return &StdLogger{Logger: log.New(os.Stderr, "nczx: ", log.LstdFlags)}
}

func (l *StdLogger) Warnf(format string, args ...any) {
	l.Printf("WARN "+format, args...)
}

func (l *StdLogger) Errorf(format string, args ...any) {
	l.Printf("ERROR "+format, args...)
}

// NopLogger discards everything. Used by tests and by components that were
// not given an explicit Logger.
type NopLogger struct{}

func (NopLogger) Warnf(string, ...any)  {}
func (NopLogger) Errorf(string, ...any) {}
