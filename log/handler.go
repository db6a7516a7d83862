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

package log

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/exp/slog"
)

// NewTerminalHandler returns a handler tuned for interactive terminals: one
// line per record with an aligned level and the message, no timestamp, and no
// structured fields when there are none.
func NewTerminalHandler(wr io.Writer, useColor bool) slog.Handler {
	return NewTerminalHandlerWithLevel(wr, LevelTrace, useColor)
}

// NewTerminalHandlerWithLevel is like NewTerminalHandler but filters out
// records below the given level before they reach the writer.
func NewTerminalHandlerWithLevel(wr io.Writer, lvl Level, useColor bool) slog.Handler {
	return &terminalHandler{
		wr:       wr,
		level:    lvl,
		useColor: useColor,
	}
}

type terminalHandler struct {
	mu       sync.Mutex
	wr       io.Writer
	level    Level
	useColor bool
	attrs    []slog.Attr
}

func (h *terminalHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *terminalHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var b strings.Builder
	fmt.Fprintf(&b, "%-5s %s", LevelString(r.Level), r.Message)
	for _, a := range h.attrs {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Resolve().Any())
	}
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&b, " %s=%v", a.Key, a.Value.Resolve().Any())
		return true
	})
	b.WriteByte('\n')
	_, err := io.WriteString(h.wr, b.String())
	return err
}

func (h *terminalHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append(append([]slog.Attr{}, h.attrs...), attrs...)
	return &cp
}

func (h *terminalHandler) WithGroup(name string) slog.Handler { return h }

// JSONHandler returns a handler that writes one JSON object per record,
// including debug-level output.
func JSONHandler(wr io.Writer) slog.Handler {
	return JSONHandlerWithLevel(wr, LevelDebug)
}

// JSONHandlerWithLevel is like JSONHandler but filters by the given level.
func JSONHandlerWithLevel(wr io.Writer, lvl Level) slog.Handler {
	return slog.NewJSONHandler(wr, &slog.HandlerOptions{Level: lvl})
}

// LogfmtHandler returns a handler that writes key=value pairs, one record
// per line, in the traditional logfmt style.
func LogfmtHandler(wr io.Writer) slog.Handler {
	return slog.NewTextHandler(wr, &slog.HandlerOptions{Level: LevelTrace})
}

// GlogHandler wraps another handler, adding glog-style -v verbosity and
// -vmodule per-file verbosity overrides.
type GlogHandler struct {
	inner slog.Handler

	mu        sync.RWMutex
	verbosity Level
	override  map[string]Level
}

// NewGlogHandler creates a GlogHandler delegating to inner once its
// verbosity rules let a record through.
func NewGlogHandler(inner slog.Handler) *GlogHandler {
	return &GlogHandler{inner: inner, verbosity: LevelCrit, override: make(map[string]Level)}
}

// Verbosity sets the global verbosity threshold.
func (g *GlogHandler) Verbosity(lvl Level) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verbosity = lvl
}

// Vmodule parses a comma separated "pattern=level" rule set, e.g.
// "dispatcher.go=5,pending.go=4", and applies per-file overrides.
func (g *GlogHandler) Vmodule(ruleset string) error {
	rules := make(map[string]Level)
	for _, rule := range strings.Split(ruleset, ",") {
		if rule == "" {
			continue
		}
		parts := strings.SplitN(rule, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid vmodule rule %q", rule)
		}
		v, err := strconv.Atoi(parts[1])
		if err != nil {
			return fmt.Errorf("invalid vmodule level in %q: %w", rule, err)
		}
		rules[parts[0]] = Level(v)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.override = rules
	return nil
}

func (g *GlogHandler) Enabled(ctx context.Context, level slog.Level) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if level >= g.verbosity {
		return true
	}
	return len(g.override) > 0
}

func (g *GlogHandler) Handle(ctx context.Context, r slog.Record) error {
	g.mu.RLock()
	lvl := g.verbosity
	override := g.override
	g.mu.RUnlock()

	if r.Level < lvl {
		if len(override) == 0 {
			return nil
		}
		if minLvl, ok := override[callerFile(r.PC)]; !ok || r.Level < minLvl {
			return nil
		}
	}
	return g.inner.Handle(ctx, r)
}

// callerFile resolves the base filename of the log call site from the
// record's program counter, used to match -vmodule rules.
func callerFile(pc uintptr) string {
	if pc == 0 {
		return ""
	}
	frames := runtime.CallersFrames([]uintptr{pc})
	frame, _ := frames.Next()
	if frame.File == "" {
		return ""
	}
	return filepath.Base(frame.File)
}

func (g *GlogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &GlogHandler{inner: g.inner.WithAttrs(attrs), verbosity: g.verbosity, override: g.override}
}

func (g *GlogHandler) WithGroup(name string) slog.Handler {
	return &GlogHandler{inner: g.inner.WithGroup(name), verbosity: g.verbosity, override: g.override}
}

// lazyValue defers evaluation of an attribute's value until a handler
// actually consumes it, avoiding the cost of formatting on disabled levels.
type lazyValue struct {
	fn func() slog.Value
}

func (l lazyValue) LogValue() slog.Value { return l.fn() }

// Lazy wraps fn so it is only called when the record is actually logged.
func Lazy(fn func() slog.Value) slog.LogValuer {
	return lazyValue{fn: fn}
}

// TypeOf reports the dynamic type name of v as a slog.Value, matching the
// %T formatting verb.
func TypeOf(v any) slog.Value {
	return slog.StringValue(fmt.Sprintf("%T", v))
}
