package logging

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
	}{
		{"debug", LevelDebug},
		{"INFO", LevelInfo},
		{"warn", LevelWarn},
		{"warning", LevelWarn},
		{"error", LevelError},
		{"", LevelInfo},
		{"verbose", LevelInfo},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseLevel(tt.in), tt.in)
	}
	assert.Equal(t, "warn", LevelWarn.String())
	assert.Equal(t, "unknown", Level(9).String())
}

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatText, ParseFormat("text"))
	assert.Equal(t, FormatText, ParseFormat(""))
}

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var out []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestJSONLoggerWritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "debug", Format: "json", Writer: &buf})

	log.Debug("commit", "snapshot", 7, "changes", 2)
	log.WithFields("op", "create").Error("store failed", "err", "disk full")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)

	assert.Equal(t, "debug", lines[0]["level"])
	assert.Equal(t, "commit", lines[0]["message"])
	assert.EqualValues(t, 7, lines[0]["snapshot"])
	assert.EqualValues(t, 2, lines[0]["changes"])
	assert.Contains(t, lines[0], "time")

	assert.Equal(t, "error", lines[1]["level"])
	assert.Equal(t, "create", lines[1]["op"])
	assert.Equal(t, "disk full", lines[1]["err"])
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Level: "warn", Format: "json", Writer: &buf})

	log.Debug("hidden")
	log.Info("hidden")
	log.Warn("shown")
	log.Error("shown")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "warn", lines[0]["level"])
	assert.Equal(t, "error", lines[1]["level"])
}

func TestWithFieldsDoesNotLeakToParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New(Config{Format: "json", Writer: &buf})
	child := parent.WithFields("component", "backend")

	child.Info("child")
	parent.Info("parent")

	lines := decodeLines(t, &buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "backend", lines[0]["component"])
	assert.NotContains(t, lines[1], "component")
}

func TestTextFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(Config{Format: "text", Writer: &buf})
	log.Info("entries loaded", "count", 3)

	out := buf.String()
	assert.Contains(t, out, "INF")
	assert.Contains(t, out, "entries loaded")
	assert.Contains(t, out, "count=3")
}

func TestFileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obacore.log")
	log := New(Config{Format: "json", Output: path})
	log.Info("to file")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"message":"to file"`)
}

func TestFileOutputClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "obacore.log")
	log := New(Config{Format: "json", Output: path})
	log.Info("before close")

	assert.NoError(t, log.WithFields("k", "v").Close())
	require.NoError(t, log.Close())
	assert.ErrorIs(t, log.Close(), os.ErrClosed)

	log.Info("after close")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "before close")
	assert.NotContains(t, string(data), "after close")
}

func TestCloseLeavesStandardStreamsOpen(t *testing.T) {
	for _, output := range []string{"", "stderr", "stdout"} {
		require.NoError(t, New(Config{Output: output}).Close(), output)
	}
	_, err := os.Stderr.Stat()
	assert.NoError(t, err)
	_, err = os.Stdout.Stat()
	assert.NoError(t, err)

	var buf bytes.Buffer
	assert.NoError(t, New(Config{Writer: &buf}).Close())
}

func TestNopLogger(t *testing.T) {
	log := NewNop()
	log.Error("ignored", "k", "v")
	assert.NotNil(t, log.WithFields("k", "v"))
	assert.NoError(t, log.Close())
}
