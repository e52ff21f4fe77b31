/**
 * Copyright 2023-2025 Adobe. All rights reserved.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License. You may obtain a copy
 * of the License at http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software distributed under
 * the License is distributed on an "AS IS" BASIS, WITHOUT WARRANTIES OR REPRESENTATIONS
 * OF ANY KIND, either express or implied. See the License for the specific language
 * governing permissions and limitations under the License.
 */

// Author: Sergei Parshev (@sparshev)

package log

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/term"
)

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorGray   = "\033[90m"
	ColorRed    = "\033[91m"
	ColorYellow = "\033[93m"
	ColorBlue   = "\033[94m"
	ColorCyan   = "\033[96m"
	ColorWhite  = "\033[97m"
	ColorDim    = "\033[2m"
)

// ConsoleHandler is a slog.Handler that formats logs for human eyes
//
//	[251019/101530+02] INF Operation completed gce.Await gce.operation=op-1 gce.fetches=2
type ConsoleHandler struct {
	opts   *slog.HandlerOptions
	writer io.Writer
	mu     *sync.Mutex

	useColor     bool
	useTimestamp bool
	isDebugLevel bool

	// Stored already prefixed with the groups active at the moment of With call
	attrs  []slog.Attr
	groups []string
}

// NewConsoleHandler creates a new ConsoleHandler
func NewConsoleHandler(w io.Writer, opts *slog.HandlerOptions) *ConsoleHandler {
	if opts == nil {
		opts = &slog.HandlerOptions{}
	}

	return &ConsoleHandler{
		opts:         opts,
		writer:       w,
		mu:           &sync.Mutex{},
		useColor:     isTerminal(w),
		useTimestamp: true,
		isDebugLevel: opts.Level != nil && opts.Level.Level() <= slog.LevelDebug,
	}
}

func isTerminal(w io.Writer) bool {
	if f, ok := w.(*os.File); ok {
		return term.IsTerminal(int(f.Fd()))
	}
	return false
}

// SetUseColor enables or disables color output
func (h *ConsoleHandler) SetUseColor(useColor bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useColor = useColor
}

// SetUseTimestamp enables or disables the timestamp prefix
func (h *ConsoleHandler) SetUseTimestamp(useTimestamp bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.useTimestamp = useTimestamp
}

// Enabled reports whether the handler handles records at the given level
func (h *ConsoleHandler) Enabled(_ context.Context, level slog.Level) bool {
	minLevel := slog.LevelInfo
	if h.opts.Level != nil {
		minLevel = h.opts.Level.Level()
	}
	return level >= minLevel
}

// Handle handles the Record
func (h *ConsoleHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	if h.useTimestamp {
		timestamp := r.Time.Format("060102/150405-07")
		if h.isDebugLevel {
			timestamp = r.Time.Format("060102/150405.000-07")
		}
		buf.WriteString(h.colorize(ColorGray, "["+timestamp+"]"))
		buf.WriteString(" ")
	}

	buf.WriteString(h.colorizeLevel(r.Level, formatLevel(r.Level)))
	buf.WriteString(" ")
	buf.WriteString(h.colorizeLevel(r.Level, r.Message))

	pack, fun := h.extractPackFunc(r)
	if pack != "" && fun != "" {
		buf.WriteString(" ")
		buf.WriteString(h.colorize(ColorDim, pack+"."+fun))
	}

	for _, attr := range h.attrs {
		if attr.Key != "pack" && attr.Key != "func" {
			h.appendAttr(&buf, h.groups, "", attr)
		}
	}
	prefix := strings.Join(h.groups, ".")
	r.Attrs(func(a slog.Attr) bool {
		if a.Key != "pack" && a.Key != "func" {
			h.appendAttr(&buf, h.groups, prefix, a)
		}
		return true
	})

	buf.WriteString("\n")

	_, err := io.WriteString(h.writer, buf.String())
	return err
}

func (h *ConsoleHandler) extractPackFunc(r slog.Record) (pack, fun string) {
	for _, attr := range h.attrs {
		switch attr.Key {
		case "pack":
			pack = attr.Value.String()
		case "func":
			fun = attr.Value.String()
		}
	}
	r.Attrs(func(a slog.Attr) bool {
		switch a.Key {
		case "pack":
			pack = a.Value.String()
		case "func":
			fun = a.Value.String()
		}
		return true
	})
	return pack, fun
}

// appendAttr writes the attribute as key=value, group values are flattened with dots
func (h *ConsoleHandler) appendAttr(buf *strings.Builder, groups []string, prefix string, attr slog.Attr) {
	attr.Value = attr.Value.Resolve()
	if h.opts.ReplaceAttr != nil && attr.Value.Kind() != slog.KindGroup {
		attr = h.opts.ReplaceAttr(groups, attr)
	}
	if attr.Key == "" && attr.Value.Kind() != slog.KindGroup {
		return
	}

	key := attr.Key
	if prefix != "" && key != "" {
		key = prefix + "." + key
	} else if key == "" {
		// Inline group
		key = prefix
	}

	if attr.Value.Kind() == slog.KindGroup {
		subGroups := groups
		if attr.Key != "" {
			subGroups = append(append([]string{}, groups...), attr.Key)
		}
		for _, sub := range attr.Value.Group() {
			h.appendAttr(buf, subGroups, key, sub)
		}
		return
	}

	buf.WriteString(" ")
	buf.WriteString(key)
	buf.WriteString("=")

	switch attr.Value.Kind() {
	case slog.KindString:
		buf.WriteString(attr.Value.String())
	case slog.KindInt64:
		fmt.Fprintf(buf, "%d", attr.Value.Int64())
	case slog.KindUint64:
		fmt.Fprintf(buf, "%d", attr.Value.Uint64())
	case slog.KindFloat64:
		fmt.Fprintf(buf, "%g", attr.Value.Float64())
	case slog.KindBool:
		fmt.Fprintf(buf, "%t", attr.Value.Bool())
	case slog.KindTime:
		buf.WriteString(attr.Value.Time().Format(time.RFC3339))
	case slog.KindDuration:
		buf.WriteString(attr.Value.Duration().String())
	default:
		fmt.Fprintf(buf, "%v", attr.Value.Any())
	}
}

func formatLevel(level slog.Level) string {
	switch {
	case level < slog.LevelInfo:
		return "DBG"
	case level < slog.LevelWarn:
		return "INF"
	case level < slog.LevelError:
		return "WRN"
	default:
		return "ERR"
	}
}

func (h *ConsoleHandler) colorize(color, text string) string {
	if !h.useColor {
		return text
	}
	return color + text + ColorReset
}

func (h *ConsoleHandler) colorizeLevel(level slog.Level, text string) string {
	if !h.useColor {
		return text
	}

	color := ColorWhite
	switch {
	case level < slog.LevelInfo:
		color = ColorCyan
	case level < slog.LevelWarn:
		color = ColorBlue
	case level < slog.LevelError:
		color = ColorYellow
	default:
		color = ColorRed
	}

	return color + text + ColorReset
}

func (h *ConsoleHandler) clone() *ConsoleHandler {
	return &ConsoleHandler{
		opts:         h.opts,
		writer:       h.writer,
		mu:           h.mu,
		useColor:     h.useColor,
		useTimestamp: h.useTimestamp,
		isDebugLevel: h.isDebugLevel,
		attrs:        h.attrs,
		groups:       h.groups,
	}
}

// WithAttrs returns a new ConsoleHandler with the given attributes
func (h *ConsoleHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := strings.Join(h.groups, ".")

	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	for _, a := range attrs {
		if prefix != "" {
			a.Key = prefix + "." + a.Key
		}
		newAttrs = append(newAttrs, a)
	}

	h2 := h.clone()
	h2.attrs = newAttrs
	return h2
}

// WithGroup returns a new ConsoleHandler with the given group
func (h *ConsoleHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}

	newGroups := make([]string, len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups[len(h.groups)] = name

	h2 := h.clone()
	h2.groups = newGroups
	return h2
}
