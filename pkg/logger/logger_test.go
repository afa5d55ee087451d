package logger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	rawslog "log/slog"

	"github.com/stretchr/testify/require"
)

type testMethod struct {
	fn    func(msg string, args ...any)
	level rawslog.Level
}

var (
	logText         = "Test Log Value"
	customFieldName = "somekey"
	customFieldVal  = "someval"
)

type testLogJSON struct {
	Time  time.Time `json:"time"`
	Level string    `json:"level"`
	Msg   string    `json:"msg"`
	// Json field needs to match with customFieldName
	CustomVal any `json:"somekey"`
}

func TestSlogHandler(t *testing.T) {
	buffer := bytes.NewBuffer([]byte{})

	// level needs to be set to debug for log all
	handler := rawslog.NewJSONHandler(buffer, &rawslog.HandlerOptions{Level: rawslog.LevelDebug})
	logger := New(handler)

	testMethods := []testMethod{
		{fn: logger.Error, level: rawslog.LevelError},
		{fn: logger.Warn, level: rawslog.LevelWarn},
		{fn: logger.Info, level: rawslog.LevelInfo},
		{fn: logger.Debug, level: rawslog.LevelDebug},
	}

	for _, v := range testMethods {
		t.Run(fmt.Sprintf("testing %s", v.level.String()), func(tAlt *testing.T) {
			buffer.Reset()
			v.fn(logText, customFieldName, customFieldVal)

			testLogJSONVal := new(testLogJSON)
			err := json.Unmarshal(buffer.Bytes(), &testLogJSONVal)
			require.NoError(tAlt, err)

			require.Equal(tAlt, v.level.String(), testLogJSONVal.Level)
			require.Equal(tAlt, logText, testLogJSONVal.Msg)
			require.Equal(tAlt, customFieldVal, testLogJSONVal.CustomVal)
		})
	}
}

type zerologLine struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Somekey string `json:"somekey"`
}

func TestZerologAdapter(t *testing.T) {
	buffer := bytes.NewBuffer([]byte{})
	logger := NewZerolog(buffer)

	logger.Info(logText, customFieldName, customFieldVal)

	line := new(zerologLine)
	err := json.Unmarshal(buffer.Bytes(), line)
	require.NoError(t, err)

	require.Equal(t, "info", line.Level)
	require.Equal(t, logText, line.Message)
	require.Equal(t, customFieldVal, line.Somekey)
}
