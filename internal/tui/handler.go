package tui

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nao1215/localizer/internal/log"
)

// LogMsg delivers one log record to the view.
type LogMsg struct {
	// Time is when the record was logged.
	Time time.Time

	// Level is the record level, including log.LevelSuccess.
	Level slog.Level

	// Text is the message followed by its attributes as key=value pairs.
	Text string
}

// sender is the part of *tea.Program the handler needs.
type sender interface {
	Send(msg tea.Msg)
}

// LogHandler is a slog.Handler that routes log records into a bubbletea
// program as LogMsg values. The worker goroutine logs through it and never
// touches the model directly.
//
// Records arriving before SetProgram is called are dropped. Handlers
// derived with WithAttrs or WithGroup share the same program pointer.
type LogHandler struct {
	level   slog.Level
	program *atomic.Pointer[sender]
	attrs   []slog.Attr
	group   string
}

// NewLogHandler creates a handler that forwards records at or above
// level. Wrap it with log.NewSecureHandler before use.
func NewLogHandler(level slog.Level) *LogHandler {
	return &LogHandler{
		level:   level,
		program: &atomic.Pointer[sender]{},
	}
}

// NewLogger returns a sanitizing logger that writes into the view.
func NewLogger(handler *LogHandler) *slog.Logger {
	return slog.New(log.NewSecureHandler(handler))
}

// SetProgram sets the program that receives log messages. Safe to call
// from any goroutine.
func (h *LogHandler) SetProgram(program *tea.Program) {
	h.setSender(program)
}

func (h *LogHandler) setSender(s sender) {
	h.program.Store(&s)
}

// Enabled reports whether the handler is interested in records at the
// given level.
func (h *LogHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

// Handle formats the record and sends it to the program.
func (h *LogHandler) Handle(_ context.Context, record slog.Record) error {
	p := h.program.Load()
	if p == nil {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(record.Message)
	for _, a := range h.attrs {
		writeAttr(&sb, "", a)
	}
	record.Attrs(func(a slog.Attr) bool {
		writeAttr(&sb, h.group, a)
		return true
	})

	(*p).Send(LogMsg{
		Time:  record.Time,
		Level: record.Level,
		Text:  sb.String(),
	})
	return nil
}

func writeAttr(sb *strings.Builder, group string, a slog.Attr) {
	sb.WriteByte(' ')
	if group != "" {
		sb.WriteString(group)
		sb.WriteByte('.')
	}
	sb.WriteString(a.Key)
	sb.WriteByte('=')
	sb.WriteString(a.Value.String())
}

// WithAttrs returns a new handler with the given attributes appended.
// Keys are qualified with the current group when the attributes are added.
func (h *LogHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	merged := make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	merged = append(merged, h.attrs...)
	for _, a := range attrs {
		if h.group != "" {
			a.Key = h.group + "." + a.Key
		}
		merged = append(merged, a)
	}
	return &LogHandler{
		level:   h.level,
		program: h.program,
		attrs:   merged,
		group:   h.group,
	}
}

// WithGroup returns a new handler that prefixes later attribute keys.
func (h *LogHandler) WithGroup(name string) slog.Handler {
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &LogHandler{
		level:   h.level,
		program: h.program,
		attrs:   h.attrs,
		group:   group,
	}
}
