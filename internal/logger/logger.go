// Copyright 2019 The Fuchsia Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package logger provides a leveled, colorized, context-carried logger.
package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"go.scrcpygo.dev/mirrorclient/internal/color"
)

// Flag aliases for the standard log package, re-exported so callers don't
// need to import "log" themselves.
const (
	Ldate         = log.Ldate
	Ltime         = log.Ltime
	Lmicroseconds = log.Lmicroseconds
	Llongfile     = log.Llongfile
	Lshortfile    = log.Lshortfile
	LUTC          = log.LUTC
	LstdFlags     = log.LstdFlags
)

const defaultFlags = Ldate | Lmicroseconds

// callDepth is the number of stack frames between a Logger method and the
// caller whose location should be attributed in output.
const callDepth = 3

// LogLevel controls which messages a Logger emits.
type LogLevel int

const (
	NoLogLevel LogLevel = iota
	FatalLevel
	ErrorLevel
	WarningLevel
	InfoLevel
	DebugLevel
	TraceLevel
)

func (l *LogLevel) String() string {
	switch *l {
	case FatalLevel:
		return "fatal"
	case ErrorLevel:
		return "error"
	case WarningLevel:
		return "warning"
	case InfoLevel:
		return "info"
	case DebugLevel:
		return "debug"
	case TraceLevel:
		return "trace"
	}
	return "none"
}

func (l *LogLevel) Set(s string) error {
	switch s {
	case "fatal":
		*l = FatalLevel
	case "error":
		*l = ErrorLevel
	case "warning":
		*l = WarningLevel
	case "info":
		*l = InfoLevel
	case "debug":
		*l = DebugLevel
	case "trace":
		*l = TraceLevel
	default:
		return fmt.Errorf("%s is not a valid log level", s)
	}
	return nil
}

// Logger writes leveled, optionally colorized, messages to separate
// stdout/stderr destinations.
type Logger struct {
	loggerLevel   LogLevel
	color         color.Color
	goLogger      *log.Logger
	goErrorLogger *log.Logger
	prefix        interface{}
}

// NewLogger constructs a Logger. prefix may be a string or an fmt.Stringer
// re-evaluated on every call, letting callers inject e.g. a counter or
// timestamp into the prefix.
func NewLogger(level LogLevel, c color.Color, stdout, stderr io.Writer, prefix interface{}) *Logger {
	if stdout == nil {
		stdout = os.Stdout
	}
	if stderr == nil {
		stderr = os.Stderr
	}
	return &Logger{
		loggerLevel:   level,
		color:         c,
		goLogger:      log.New(stdout, "", defaultFlags),
		goErrorLogger: log.New(stderr, "", defaultFlags),
		prefix:        prefix,
	}
}

// SetFlags sets the flags on both the stdout and stderr loggers.
func (l *Logger) SetFlags(flags int) {
	l.goLogger.SetFlags(flags)
	l.goErrorLogger.SetFlags(flags)
}

func (l *Logger) formattedPrefix() string {
	switch p := l.prefix.(type) {
	case nil:
		return ""
	case string:
		return p
	case fmt.Stringer:
		return p.String()
	default:
		return fmt.Sprintf("%v", p)
	}
}

func (l *Logger) logf(level LogLevel, goLogger *log.Logger, format string, a ...interface{}) {
	if l.loggerLevel < level {
		return
	}
	msg := l.formattedPrefix() + fmt.Sprintf(format, a...)
	goLogger.Output(callDepth, msg)
}

func (l *Logger) Fatalf(format string, a ...interface{}) {
	l.logf(FatalLevel, l.goErrorLogger, l.color.Red("FATAL: ")+format, a...)
	os.Exit(1)
}

func (l *Logger) Errorf(format string, a ...interface{}) {
	l.logf(ErrorLevel, l.goErrorLogger, l.color.Red("ERROR: ")+format, a...)
}

func (l *Logger) Warningf(format string, a ...interface{}) {
	l.logf(WarningLevel, l.goLogger, l.color.Yellow("WARN: ")+format, a...)
}

// Warnf is an alias of Warningf matching the terser naming used elsewhere.
func (l *Logger) Warnf(format string, a ...interface{}) {
	l.Warningf(format, a...)
}

func (l *Logger) Infof(format string, a ...interface{}) {
	l.logf(InfoLevel, l.goLogger, format, a...)
}

func (l *Logger) Debugf(format string, a ...interface{}) {
	l.logf(DebugLevel, l.goLogger, l.color.Cyan("DEBUG: ")+format, a...)
}

func (l *Logger) Tracef(format string, a ...interface{}) {
	l.logf(TraceLevel, l.goLogger, l.color.Magenta("TRACE: ")+format, a...)
}

type globalLoggerKeyType struct{}

// WithLogger returns a copy of ctx carrying logger, retrievable via FromContext.
func WithLogger(ctx context.Context, logger *Logger) context.Context {
	return context.WithValue(ctx, globalLoggerKeyType{}, logger)
}

// FromContext returns the Logger embedded in ctx, or a default Logger at
// InfoLevel writing to stdout/stderr if none was set.
func FromContext(ctx context.Context) *Logger {
	if l, ok := ctx.Value(globalLoggerKeyType{}).(*Logger); ok && l != nil {
		return l
	}
	return NewLogger(InfoLevel, color.NewColor(color.ColorAuto), os.Stdout, os.Stderr, "")
}
