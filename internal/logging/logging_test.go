package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevelFromString(t *testing.T) {
	t.Parallel()

	cases := map[string]slog.Level{
		"error":   slog.LevelError,
		"WARN":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		" info ":  slog.LevelInfo,
		"":        slog.LevelDebug,
		"trace":   slog.LevelDebug,
	}
	for in, want := range cases {
		if got := levelFromString(in); got != want {
			t.Fatalf("levelFromString(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestJSONHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(newHandler(&buf, "info", "json"))
	logger.Info("article published", "id", "AA1qZ9xY")

	if !strings.HasPrefix(buf.String(), "{") || !strings.Contains(buf.String(), `"id":"AA1qZ9xY"`) {
		t.Fatalf("unexpected json output: %s", buf.String())
	}
}

func TestNewWritesFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "debug_callback.log")
	logger, closer, err := New("debug", "text", path)
	if err != nil {
		t.Fatalf("New returned error: %v", err)
	}
	logger.Debug("callback received", "data", "forward_AA1qZ9xY")
	if err := closer.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log file: %v", err)
	}
	if !strings.Contains(string(raw), "forward_AA1qZ9xY") {
		t.Fatalf("log file misses record: %s", raw)
	}
}
