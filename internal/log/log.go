// Package log provides the small logging abstraction used throughout blit.
package log

import (
	"io"
	stdlog "log"
)

// Logger is the logging contract used by sessions, the receiver, and the
// daemon. It is intentionally narrow: a single varargs sink with no levels,
// so call sites stay terse without pulling in a structured-logging
// dependency for what is, in this codebase, mostly connection-lifecycle
// narration.
type Logger interface {
	Printf(format string, args ...any)
}

// Std wraps the standard library logger.
type Std struct {
	*stdlog.Logger
}

// New returns a Logger writing to w with blit's standard prefix/flags.
func New(w io.Writer) *Std {
	return &Std{stdlog.New(w, "", stdlog.LstdFlags|stdlog.Lmicroseconds)}
}

// Discard is a Logger that drops everything, used by tests that don't care
// about log output.
var Discard Logger = discard{}

type discard struct{}

func (discard) Printf(string, ...any) {}
