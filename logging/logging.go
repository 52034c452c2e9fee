// Package logging contains the structured, leveled logger shared by the visual odometry frontend.
package logging

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger writes leveled, structured entries to a set of appenders. Trailing arguments of the
// `w` methods are alternating keys and values.
type Logger interface {
	Debugw(msg string, keysAndValues ...interface{})
	Infow(msg string, keysAndValues ...interface{})
	Warnw(msg string, keysAndValues ...interface{})
	Errorw(msg string, keysAndValues ...interface{})

	SetLevel(level Level)
	GetLevel() Level
	// Sublogger returns a logger named "<name>.<subname>" sharing this logger's appenders.
	Sublogger(subname string) Logger
	AddAppender(appender Appender)
	Sync() error
}

// NewLogger returns a new logger that outputs Info+ logs to stdout in UTC.
func NewLogger(name string) Logger {
	return newLogger(name, INFO, true, NewStdoutAppender())
}

// NewDebugLogger returns a new logger that outputs Debug+ logs to stdout in UTC.
func NewDebugLogger(name string) Logger {
	return newLogger(name, DEBUG, true, NewStdoutAppender())
}

// NewBlankLogger returns a Debug+ logger with no appenders.
func NewBlankLogger(name string) Logger {
	return newLogger(name, DEBUG, true)
}

type logger struct {
	name      string
	level     AtomicLevel
	utc       bool
	appenders []Appender
}

func newLogger(name string, level Level, utc bool, appenders ...Appender) *logger {
	return &logger{name: name, level: NewAtomicLevelAt(level), utc: utc, appenders: appenders}
}

func (l *logger) Debugw(msg string, keysAndValues ...interface{}) { l.emit(DEBUG, msg, keysAndValues) }
func (l *logger) Infow(msg string, keysAndValues ...interface{}) { l.emit(INFO, msg, keysAndValues) }
func (l *logger) Warnw(msg string, keysAndValues ...interface{}) { l.emit(WARN, msg, keysAndValues) }
func (l *logger) Errorw(msg string, keysAndValues ...interface{}) { l.emit(ERROR, msg, keysAndValues) }

func (l *logger) SetLevel(level Level) { l.level.Set(level) }

func (l *logger) GetLevel() Level { return l.level.Get() }

func (l *logger) AddAppender(appender Appender) {
	l.appenders = append(l.appenders, appender)
}

func (l *logger) Sublogger(subname string) Logger {
	name := subname
	if l.name != "" {
		name = l.name + "." + subname
	}
	return newLogger(name, l.level.Get(), l.utc, l.appenders...)
}

func (l *logger) Sync() error {
	var err error
	for _, appender := range l.appenders {
		err = multierr.Append(err, appender.Sync())
	}
	return err
}

// emit must be called directly by the exported log methods so the caller lookup lands on user
// code.
func (l *logger) emit(level Level, msg string, keysAndValues []interface{}) {
	if level < l.level.Get() {
		return
	}
	entry := zapcore.Entry{
		Level:      level.AsZap(),
		Time:       time.Now(),
		LoggerName: l.name,
		Message:    msg,
		Caller:     zapcore.NewEntryCaller(runtime.Caller(2)),
	}
	if l.utc {
		entry.Time = entry.Time.UTC()
	}
	fields := toFields(keysAndValues)

	var err error
	for _, appender := range l.appenders {
		err = multierr.Append(err, appender.Write(entry, fields))
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err) //nolint:errcheck
	}
}

var errUnpairedKey = errors.New("unpaired log key")

// toFields pairs up keys and values. Keys are stringified; a trailing key without a value is kept
// with an error as its value.
func toFields(keysAndValues []interface{}) []zapcore.Field {
	fields := make([]zapcore.Field, 0, (len(keysAndValues)+1)/2)
	for i := 0; i < len(keysAndValues); i += 2 {
		key := fmt.Sprint(keysAndValues[i])
		if i+1 == len(keysAndValues) {
			fields = append(fields, zap.NamedError(key, errUnpairedKey))
			break
		}
		fields = append(fields, zap.Any(key, keysAndValues[i+1]))
	}
	return fields
}
