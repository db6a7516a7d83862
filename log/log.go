// Copyright 2016 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package log provides structured, levelled logging for the dispatcher and
// its collaborators. It is a thin wrapper around golang.org/x/exp/slog that
// keeps the historical Trace/Debug/Info/Warn/Error/Crit vocabulary.
package log

import (
	"context"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/exp/slog"
)

// Level is a logging severity, ordered the same way as slog.Level but
// extended with a Trace level below Debug and a Crit level above Error.
type Level = slog.Level

const (
	LevelTrace Level = -8
	LevelDebug Level = -4
	LevelInfo  Level = 0
	LevelWarn  Level = 4
	LevelError Level = 8
	LevelCrit  Level = 10
)

var levelNames = map[Level]string{
	LevelTrace: "TRACE",
	LevelDebug: "DEBUG",
	LevelInfo:  "INFO",
	LevelWarn:  "WARN",
	LevelError: "ERROR",
	LevelCrit:  "CRIT",
}

// LevelString renders a Level the way the terminal handler does.
func LevelString(l Level) string {
	if name, ok := levelNames[l]; ok {
		return name
	}
	return l.String()
}

// Logger writes structured, leveled log records.
type Logger interface {
	// With returns a new Logger that always includes the given context.
	With(ctx ...any) Logger
	// New is an alias of With.
	New(ctx ...any) Logger

	Trace(msg string, ctx ...any)
	Debug(msg string, ctx ...any)
	Info(msg string, ctx ...any)
	Warn(msg string, ctx ...any)
	Error(msg string, ctx ...any)
	// Crit logs at critical level and then terminates the process.
	Crit(msg string, ctx ...any)

	// Write logs a message at the given level.
	Write(level Level, msg string, ctx ...any)

	// Enabled reports whether logging at the given level is enabled.
	Enabled(level Level) bool

	Handler() slog.Handler
}

type logger struct {
	inner *slog.Logger
}

// NewLogger returns a Logger that writes through the given handler.
func NewLogger(h slog.Handler) Logger {
	return &logger{inner: slog.New(h)}
}

func (l *logger) Handler() slog.Handler { return l.inner.Handler() }

func (l *logger) With(ctx ...any) Logger {
	return &logger{inner: l.inner.With(ctx...)}
}

func (l *logger) New(ctx ...any) Logger { return l.With(ctx...) }

// Write records the program counter of the code that called the level method
// (or package-level function) in front of it, so per-file -vmodule rules see
// the real call site rather than this file.
func (l *logger) Write(level Level, msg string, ctx ...any) {
	if l.inner.Enabled(context.Background(), level) {
		var pcs [1]uintptr
		runtime.Callers(3, pcs[:]) // skip Callers, Write and the level method
		r := slog.NewRecord(time.Now(), level, msg, pcs[0])
		r.Add(ctx...)
		_ = l.inner.Handler().Handle(context.Background(), r)
	}
	if level >= LevelCrit {
		os.Exit(1)
	}
}

func (l *logger) Trace(msg string, ctx ...any) { l.Write(LevelTrace, msg, ctx...) }
func (l *logger) Debug(msg string, ctx ...any) { l.Write(LevelDebug, msg, ctx...) }
func (l *logger) Info(msg string, ctx ...any)  { l.Write(LevelInfo, msg, ctx...) }
func (l *logger) Warn(msg string, ctx ...any)  { l.Write(LevelWarn, msg, ctx...) }
func (l *logger) Error(msg string, ctx ...any) { l.Write(LevelError, msg, ctx...) }
func (l *logger) Crit(msg string, ctx ...any)  { l.Write(LevelCrit, msg, ctx...) }

func (l *logger) Enabled(level Level) bool {
	return l.inner.Enabled(nil, level)
}

var root atomic.Value

func init() {
	root.Store(NewLogger(NewTerminalHandler(os.Stderr, false)))
}

// SetDefault sets the logger returned by Root and used by the package-level
// Trace/Debug/Info/Warn/Error/Crit functions.
func SetDefault(l Logger) { root.Store(l) }

// Root returns the default logger.
func Root() Logger { return root.Load().(Logger) }

func Trace(msg string, ctx ...any) { Root().Write(LevelTrace, msg, ctx...) }
func Debug(msg string, ctx ...any) { Root().Write(LevelDebug, msg, ctx...) }
func Info(msg string, ctx ...any)  { Root().Write(LevelInfo, msg, ctx...) }
func Warn(msg string, ctx ...any)  { Root().Write(LevelWarn, msg, ctx...) }
func Error(msg string, ctx ...any) { Root().Write(LevelError, msg, ctx...) }
func Crit(msg string, ctx ...any)  { Root().Write(LevelCrit, msg, ctx...) }

func New(ctx ...any) Logger { return Root().With(ctx...) }
