package asyncrt

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogLevelString(t *testing.T) {
	assert.Equal(t, "DEBUG", LevelDebug.String())
	assert.Equal(t, "INFO", LevelInfo.String())
	assert.Equal(t, "WARN", LevelWarn.String())
	assert.Equal(t, "ERROR", LevelError.String())
	assert.Contains(t, LogLevel(99).String(), "UNKNOWN")
}

func TestNoOpLoggerNeverEnabled(t *testing.T) {
	l := NewNoOpLogger()
	assert.False(t, l.IsEnabled(LevelDebug))
	assert.False(t, l.IsEnabled(LevelError))
	l.Log(LogEntry{Level: LevelError, Message: "ignored"})
}

func TestWriterLoggerFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(LevelWarn, &buf)

	l.Log(LogEntry{Level: LevelInfo, Category: "scheduler", Message: "hidden"})
	assert.Empty(t, buf.String())

	l.Log(LogEntry{Level: LevelError, Category: "scheduler", Message: "kaboom", Err: errors.New("boom")})
	out := buf.String()
	assert.Contains(t, out, "ERROR")
	assert.Contains(t, out, "scheduler")
	assert.Contains(t, out, "kaboom")
	assert.Contains(t, out, "err=boom")
}

func TestWriterLoggerIncludesContextFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(LevelDebug, &buf)
	l.Log(LogEntry{
		Level:    LevelDebug,
		Category: "fd",
		Message:  "ready",
		LoopID:   1,
		TaskID:   2,
		TimerID:  3,
		Context:  map[string]interface{}{"fd": 7},
	})
	out := buf.String()
	assert.Contains(t, out, "loop=1")
	assert.Contains(t, out, "task=2")
	assert.Contains(t, out, "timer=3")
	assert.Contains(t, out, "fd=7")
}

func TestWriterLoggerSetLevelIsDynamic(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriterLogger(LevelError, &buf)
	assert.False(t, l.IsEnabled(LevelInfo))
	l.SetLevel(LevelInfo)
	assert.True(t, l.IsEnabled(LevelInfo))
}

func TestDefaultLoggerWritesJSONWhenNotATerminal(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.log")
	l, err := NewFileLogger(LevelInfo, path)
	require.NoError(t, err)
	defer l.Out.Close()

	l.Log(LogEntry{Level: LevelInfo, Category: "scheduler", Message: "started"})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"category":"scheduler"`)
	assert.Contains(t, string(data), `"message":"started"`)
}

func TestDefaultLoggerRespectsLevel(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.log")
	l, err := NewFileLogger(LevelError, path)
	require.NoError(t, err)
	defer l.Out.Close()

	l.Log(LogEntry{Level: LevelDebug, Message: "skip me"})

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestNewFileLoggerReturnsErrorForBadPath(t *testing.T) {
	_, err := NewFileLogger(LevelInfo, filepath.Join(t.TempDir(), "no-such-dir", "out.log"))
	assert.Error(t, err)
}

func TestEscapeJSONEscapesControlAndSpecialCharacters(t *testing.T) {
	assert.Equal(t, `hello`, escapeJSON("hello"))
	assert.Equal(t, `line1\nline2`, escapeJSON("line1\nline2"))
	assert.Equal(t, `quote:\"x\"`, escapeJSON(`quote:"x"`))
}

func TestIsTerminalFalseForRegularFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "notaterm")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, isTerminal(f))
}
