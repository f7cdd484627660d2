// Package slog adapts a log/slog handler to the gamesense logger.Logger facade.
//
// The binary logs through zerolog (see package logger). This adapter is for
// code that already owns a slog.Handler: tests use it through
// [github.com/gamesense/gamesense/pkg/logger/testlog], and a program embedding
// the consistency core can hand its own handler to the coordinator, the DLQ
// and the checker:
//
//	log := slog.New(rawslog.NewJSONHandler(os.Stderr, nil)).With("component", "consistency")
//	c := consistency.New(docs, graph, recorder, queue, nil, consistency.WithLogger(log))
//
// Key/value pairs are passed through unchanged, so a "user_id" or
// "operation" attribute keeps its name in the slog record.
package slog

import (
	"log/slog"

	"github.com/gamesense/gamesense/pkg/logger"
)

type SlogHandler struct {
	logger *slog.Logger
}

var _ logger.Logger = (*SlogHandler)(nil)

func New(h slog.Handler) *SlogHandler {
	logger := slog.New(h)
	return &SlogHandler{logger: logger}
}

// With returns a handler that adds the given key/value pairs to every record.
func (handler *SlogHandler) With(args ...any) *SlogHandler {
	return &SlogHandler{logger: handler.logger.With(args...)}
}

// WithGroup nests the attributes of later records under name, e.g.
// "dlq.operation" for a queue scoped logger.
func (handler *SlogHandler) WithGroup(name string) *SlogHandler {
	return &SlogHandler{logger: handler.logger.WithGroup(name)}
}

func (handler *SlogHandler) Error(msg string, args ...any) {
	handler.logger.Error(msg, args...)
}

func (handler *SlogHandler) Warn(msg string, args ...any) {
	handler.logger.Warn(msg, args...)
}

func (handler *SlogHandler) Info(msg string, args ...any) {
	handler.logger.Info(msg, args...)
}

func (handler *SlogHandler) Debug(msg string, args ...any) {
	handler.logger.Debug(msg, args...)
}
