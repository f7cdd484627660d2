// Package testlog provides a deterministic slog.Handler for asserting on log output in tests.
package testlog

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	gslog "github.com/gamesense/gamesense/pkg/logger/slog"
)

// Handler is a slog.Handler that writes the message index (starting from 0),
// level and message content without the timestamp, so log output stays
// deterministic across runs.
type Handler struct {
	out         *output
	attrs       []slog.Attr
	groups      []string // current group path
	ignoreDebug bool
}

type output struct {
	mu    sync.Mutex
	index int
	buf   bytes.Buffer
}

// Option configures a Handler.
type Option func(*Handler)

// WithIgnoreDebug configures the handler to ignore DEBUG level messages
func WithIgnoreDebug() Option {
	return func(h *Handler) {
		h.ignoreDebug = true
	}
}

func NewHandler(opts ...Option) *Handler {
	h := &Handler{out: &output{}}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// NewLogger returns a logger.Logger writing to a fresh Handler.
func NewLogger(opts ...Option) (*gslog.SlogHandler, *Handler) {
	h := NewHandler(opts...)
	return gslog.New(h), h
}

// String returns everything logged so far.
func (h *Handler) String() string {
	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	return h.out.buf.String()
}

// Lines returns the logged lines without the trailing newline.
func (h *Handler) Lines() []string {
	s := strings.TrimSuffix(h.String(), "\n")
	if s == "" {
		return nil
	}
	return strings.Split(s, "\n")
}

//nolint:gocritic
func (h *Handler) Handle(_ context.Context, r slog.Record) error {
	if r.Level == slog.LevelDebug && h.ignoreDebug {
		return nil
	}

	attrs := h.attrsToString(&r)

	h.out.mu.Lock()
	defer h.out.mu.Unlock()
	if attrs != "" {
		fmt.Fprintf(&h.out.buf, "[%d] %s: %s %s\n", h.out.index, r.Level, r.Message, attrs)
	} else {
		fmt.Fprintf(&h.out.buf, "[%d] %s: %s\n", h.out.index, r.Level, r.Message)
	}
	h.out.index++
	return nil
}

func (h *Handler) attrsToString(r *slog.Record) string {
	var sb strings.Builder

	for i, attr := range h.attrs {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(formatAttr(attr, ""))
	}

	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}
	r.Attrs(func(a slog.Attr) bool {
		if sb.Len() > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(formatAttr(a, prefix))
		return true
	})
	return sb.String()
}

func formatAttr(a slog.Attr, prefix string) string {
	if a.Value.Kind() == slog.KindGroup {
		groupPrefix := prefix + a.Key + "."
		var parts []string
		for _, ga := range a.Value.Group() {
			parts = append(parts, formatAttr(ga, groupPrefix))
		}
		return strings.Join(parts, ", ")
	}
	return fmt.Sprintf("%s%s=%v", prefix, a.Key, a.Value)
}

func (h *Handler) Enabled(_ context.Context, _ slog.Level) bool {
	return true
}

func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	prefix := ""
	if len(h.groups) > 0 {
		prefix = strings.Join(h.groups, ".") + "."
	}

	newAttrs := make([]slog.Attr, 0, len(attrs))
	for _, attr := range attrs {
		if prefix != "" {
			attr.Key = prefix + attr.Key
		}
		newAttrs = append(newAttrs, attr)
	}

	return &Handler{
		out:         h.out,
		attrs:       append(h.attrs[:len(h.attrs):len(h.attrs)], newAttrs...),
		groups:      h.groups,
		ignoreDebug: h.ignoreDebug,
	}
}

func (h *Handler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &Handler{
		out:         h.out,
		attrs:       h.attrs,
		groups:      append(h.groups[:len(h.groups):len(h.groups)], name),
		ignoreDebug: h.ignoreDebug,
	}
}
