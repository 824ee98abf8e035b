package inject

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// BasicLogger is the logging interface used throughout.  Fields are
// passed as maps so that any structured logger can sit behind it.
type BasicLogger interface {
	Debug(msg string, fields ...map[string]interface{})
	Error(msg string, fields ...map[string]interface{})
	Warn(msg string, fields ...map[string]interface{})
}

// DefaultLogger is logrus.StandardLogger() wrapped as a BasicLogger
func DefaultLogger() BasicLogger {
	return LoggerFromLogrus(logrus.StandardLogger())
}

type wrappedLogrus struct {
	log logrus.FieldLogger
}

// LoggerFromLogrus adapts a logrus logger (or entry)
func LoggerFromLogrus(log logrus.FieldLogger) BasicLogger {
	return wrappedLogrus{log: log}
}

func (l wrappedLogrus) with(fields []map[string]interface{}) logrus.FieldLogger {
	if len(fields) == 0 {
		return l.log
	}
	f := logrus.Fields{}
	for _, m := range fields {
		for k, v := range m {
			f[k] = v
		}
	}
	return l.log.WithFields(f)
}

func (l wrappedLogrus) Debug(msg string, fields ...map[string]interface{}) {
	l.with(fields).Debug(msg)
}

func (l wrappedLogrus) Warn(msg string, fields ...map[string]interface{}) {
	l.with(fields).Warn(msg)
}

func (l wrappedLogrus) Error(msg string, fields ...map[string]interface{}) {
	l.with(fields).Error(msg)
}

// StdLogger is implmented by the base library log.Logger
type StdLogger interface {
	Print(v ...interface{})
}

type wrappedStdLogger struct {
	log StdLogger
}

// LoggerFromStd adapts a standard library logger
func LoggerFromStd(log StdLogger) BasicLogger {
	return wrappedStdLogger{log: log}
}

func (std wrappedStdLogger) Error(msg string, fields ...map[string]interface{}) {
	if len(fields) == 0 {
		std.log.Print(msg)
		return
	}
	vals := make([]interface{}, 1, len(fields)*4+1)
	vals[0] = msg
	for _, m := range fields {
		keys := make([]string, 0, len(m))
		for k := range m {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			vals = append(vals, " "+k+"="+fmt.Sprint(m[k]))
		}
	}
	std.log.Print(vals...)
}

func (std wrappedStdLogger) Warn(msg string, fields ...map[string]interface{}) {
	std.Error(msg, fields...)
}

func (std wrappedStdLogger) Debug(msg string, fields ...map[string]interface{}) {
	std.Error(msg, fields...)
}

// NoLogger is a BasicLogger that discards all inputs
func NoLogger() BasicLogger {
	return nilLogger{}
}

type nilLogger struct{}

var _ BasicLogger = nilLogger{}

func (nilLogger) Error(msg string, fields ...map[string]interface{}) {}
func (nilLogger) Warn(msg string, fields ...map[string]interface{})  {}
func (nilLogger) Debug(msg string, fields ...map[string]interface{}) {}
