package log

import (
	"os"
	"sync/atomic"
)

// Logger is the printf-style logger used by long-running workers (event bus
// partitions, consumers) that log with a fixed set of fields.
type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	SetLevel(level string)
	IsDebugEnabled() bool
}

const defaultPattern = "%time [%level] %msg %field\n"

var current atomic.Pointer[logrusAdapter]

// GetLogger returns the process Logger. Before Init it writes to stdout at
// info level.
func GetLogger() Logger {
	if l := current.Load(); l != nil {
		return l
	}
	current.CompareAndSwap(nil, newLogrusAdapter(os.Stdout, defaultPattern, "info"))
	return current.Load()
}

func setLogger(l *logrusAdapter) { current.Store(l) }
