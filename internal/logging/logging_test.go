package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	require.Equal(t, slog.LevelDebug, parseLevel("debug"))
	require.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	require.Equal(t, slog.LevelWarn, parseLevel("warning"))
	require.Equal(t, slog.LevelError, parseLevel("error"))
	require.Equal(t, slog.LevelInfo, parseLevel(""))
	require.Equal(t, slog.LevelInfo, parseLevel("nonsense"))
}

func TestNewWithFileRotatesToDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "diagnostics.log")
	log := New(Config{Level: "debug", File: path})
	log.Info("hello from test", "key", "value")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), "hello from test")
	require.Contains(t, string(b), "key=value")
}

func TestColorTextHandlerPrefixesLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	h := newColorTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(h)
	logger.Warn("careful now")

	out := buf.String()
	require.True(t, strings.Contains(out, "\033[33m"))
	require.Contains(t, out, "careful now")
}

func TestNewWithoutFileWritesToStderrHandler(t *testing.T) {
	log := New(Config{Level: "info"})
	require.NotNil(t, log)
	require.True(t, log.Enabled(nil, slog.LevelInfo))
	require.False(t, log.Enabled(nil, slog.LevelDebug))
}
