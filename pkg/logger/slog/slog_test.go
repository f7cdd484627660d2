package slog_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	rawslog "log/slog"

	"github.com/gamesense/gamesense/pkg/logger"
	"github.com/gamesense/gamesense/pkg/logger/slog"
	"github.com/stretchr/testify/require"
)

type testMethod struct {
	fn    func(msg string, args ...any)
	level rawslog.Level
}

var (
	LogText         string = "Test Log Value"
	CustomFieldName string = "Somekey"
	CustomFieldVal  any    = "SomeVal"
)

type testLogJSON struct {
	Time      time.Time `json:"time"`
	Level     string    `json:"level"`
	Msg       string    `json:"msg"`
	CustomVal any       `json:"Somekey"`
	Component string    `json:"component"`
}

var _ logger.Logger = (*slog.SlogHandler)(nil)

func TestLogger(t *testing.T) {
	buffer := bytes.NewBuffer([]byte{})

	// level needs to be set to debug for log all
	handler := rawslog.NewJSONHandler(buffer, &rawslog.HandlerOptions{Level: rawslog.LevelDebug})
	log := slog.New(handler).With("component", "dlq")

	testMethods := []testMethod{
		{fn: log.Error, level: rawslog.LevelError},
		{fn: log.Warn, level: rawslog.LevelWarn},
		{fn: log.Info, level: rawslog.LevelInfo},
		{fn: log.Debug, level: rawslog.LevelDebug},
	}

	for _, v := range testMethods {
		t.Run(fmt.Sprintf("testing %s", v.level.String()), func(tAlt *testing.T) {
			checkMethod(v.fn, buffer, v.level.String(), tAlt)
		})
		buffer.Reset()
	}
}

func checkMethod(loggerFunc func(msg string, args ...any), buffer *bytes.Buffer, levelStr string, t *testing.T) {
	loggerFunc(LogText, CustomFieldName, CustomFieldVal)
	require.NotEmpty(t, buffer.Bytes())

	testLogJSONVal := new(testLogJSON)
	err := json.Unmarshal(buffer.Bytes(), &testLogJSONVal)
	require.NoError(t, err)

	require.Equal(t, levelStr, testLogJSONVal.Level)
	require.Equal(t, LogText, testLogJSONVal.Msg)
	require.Equal(t, CustomFieldVal, testLogJSONVal.CustomVal)
	require.Equal(t, "dlq", testLogJSONVal.Component)
}

func TestWithGroup(t *testing.T) {
	buffer := bytes.NewBuffer([]byte{})
	handler := rawslog.NewJSONHandler(buffer, nil)
	log := slog.New(handler).WithGroup("dlq")

	log.Warn("dead letter enqueued", "operation", "FOLLOW_TEAM")

	var record struct {
		Msg string `json:"msg"`
		DLQ struct {
			Operation string `json:"operation"`
		} `json:"dlq"`
	}
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &record))
	require.Equal(t, "dead letter enqueued", record.Msg)
	require.Equal(t, "FOLLOW_TEAM", record.DLQ.Operation)
}
