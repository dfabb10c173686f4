// Copyright (C) 2019-2026 Algorand, Inc.
// This file is part of go-algorand
//
// go-algorand is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as
// published by the Free Software Foundation, either version 3 of the
// License, or (at your option) any later version.
//
// go-algorand is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with go-algorand.  If not, see <https://www.gnu.org/licenses/>.

// Package logging provides the leveled, structured logger shared by every component.
// Entries carry the file, line and function they were logged from.
package logging

import (
	"fmt"
	"io"
	"runtime"
	"runtime/debug"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

// Level is a logging severity. Lower values are more severe.
type Level uint32

var baseLogger Logger

// Levels mirror logrus so they convert directly.
const (
	// Panic logs and then panics.
	Panic = Level(logrus.PanicLevel)
	// Fatal logs and then exits the process, whatever the configured level.
	Fatal = Level(logrus.FatalLevel)
	Error = Level(logrus.ErrorLevel)
	Warn  = Level(logrus.WarnLevel)
	Info  = Level(logrus.InfoLevel)
	// Debug is verbose and usually disabled.
	Debug = Level(logrus.DebugLevel)
)

const stackPrefix = "[Stack]"

var once sync.Once

// Init needs to be called to ensure our logging has been initialized
func Init() {
	once.Do(func() {
		// By default, log to stderr (logrus's default), only warnings and above.
		baseLogger = NewLogger()
		baseLogger.SetLevel(Warn)
	})
}

func init() {
	Init()
}

// Fields maps logrus fields
type Fields = logrus.Fields

// Logger is the interface for loggers.
type Logger interface {
	// Debug logs a message at level Debug.
	Debug(...interface{})
	Debugf(string, ...interface{})

	// Info logs a message at level Info.
	Info(...interface{})
	Infof(string, ...interface{})

	// Warn logs a message at level Warn.
	Warn(...interface{})
	Warnf(string, ...interface{})

	// Error logs a message at level Error.
	Error(...interface{})
	Errorf(string, ...interface{})

	// Fatal logs a message at level Fatal.
	Fatal(...interface{})
	Fatalf(string, ...interface{})

	// Panic logs a message at level Panic.
	Panic(...interface{})
	Panicf(string, ...interface{})

	// Add one key-value to log
	With(key string, value interface{}) Logger

	// WithFields logs a message with specific fields
	WithFields(Fields) Logger

	// Set the logging version (Info by default)
	SetLevel(Level)

	// GetLevel returns the current logging level
	GetLevel() Level

	// Sets the output target
	SetOutput(io.Writer)

	// Sets the logger to JSON Format
	SetJSONFormatter()

	IsLevelEnabled(level Level) bool

	// source adds the file, line and function found skip frames up the stack
	source(skip int) *logrus.Entry
}

type logger struct {
	entry *logrus.Entry
}

func (l logger) With(key string, value interface{}) Logger {
	return logger{
		l.entry.WithField(key, value),
	}
}

func (l logger) Debug(args ...interface{}) {
	l.log(Debug, args)
}

func (l logger) Debugf(format string, args ...interface{}) {
	l.logf(Debug, format, args)
}

func (l logger) Info(args ...interface{}) {
	l.log(Info, args)
}

func (l logger) Infof(format string, args ...interface{}) {
	l.logf(Info, format, args)
}

func (l logger) Warn(args ...interface{}) {
	l.log(Warn, args)
}

func (l logger) Warnf(format string, args ...interface{}) {
	l.logf(Warn, format, args)
}

func (l logger) Error(args ...interface{}) {
	l.log(Error, args)
}

func (l logger) Errorf(format string, args ...interface{}) {
	l.logf(Error, format, args)
}

func (l logger) Fatal(args ...interface{}) {
	l.log(Fatal, args)
}

func (l logger) Fatalf(format string, args ...interface{}) {
	l.logf(Fatal, format, args)
}

func (l logger) Panic(args ...interface{}) {
	l.log(Panic, args)
}

func (l logger) Panicf(format string, args ...interface{}) {
	l.logf(Panic, format, args)
}

func (l logger) log(level Level, args []interface{}) {
	if l.IsLevelEnabled(level) {
		l.write(level, fmt.Sprint(args...))
	}
	if level == Fatal {
		l.entry.Logger.Exit(1)
	}
}

func (l logger) logf(level Level, format string, args []interface{}) {
	if l.IsLevelEnabled(level) {
		l.write(level, fmt.Sprintf(format, args...))
	}
	if level == Fatal {
		l.entry.Logger.Exit(1)
	}
}

// write emits msg with the location of the caller of the exported method. Errors and
// worse are preceded by the current stack. Writing at Panic level panics.
func (l logger) write(level Level, msg string) {
	event := l.source(4)
	if level <= Error {
		event.Errorln(stackPrefix, string(debug.Stack()))
	}
	event.Log(logrus.Level(level), msg)
}

func (l logger) WithFields(fields Fields) Logger {
	return logger{
		l.source(2).WithFields(fields),
	}
}

func (l logger) SetLevel(lvl Level) {
	l.entry.Logger.Level = logrus.Level(lvl)
}

func (l logger) GetLevel() Level {
	return Level(l.entry.Logger.Level)
}

func (l logger) IsLevelEnabled(level Level) bool {
	return l.entry.Logger.Level >= logrus.Level(level)
}

func (l logger) SetOutput(w io.Writer) {
	l.entry.Logger.Out = w
}

func (l logger) SetJSONFormatter() {
	l.entry.Logger.Formatter = &logrus.JSONFormatter{TimestampFormat: "2006-01-02T15:04:05.000000Z07:00"}
}

func (l logger) source(skip int) *logrus.Entry {
	pc, path, line, ok := runtime.Caller(skip)
	if !ok {
		return l.entry
	}
	fields := logrus.Fields{
		"file": path[strings.LastIndex(path, "/")+1:],
		"line": line,
	}
	if fn := runtime.FuncForPC(pc); fn != nil {
		fields["function"] = fn.Name()
	}
	return l.entry.WithFields(fields)
}

// Base returns the default Logger logging to
func Base() Logger {
	return baseLogger
}

// NewLogger returns a new Logger logging to out.
func NewLogger() Logger {
	l := logrus.New()
	out := logger{
		logrus.NewEntry(l),
	}
	formatter := out.entry.Logger.Formatter
	tf, ok := formatter.(*logrus.TextFormatter)
	if ok {
		tf.TimestampFormat = "2006-01-02T15:04:05.000000 -0700"
	}
	return out
}
