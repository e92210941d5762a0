package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jask/flowcanvas/internal/config"
)

func TestInitFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "canvas.log")
	l, closer, err := Init(config.LogConfig{Level: "debug", Format: "json", Output: "file", File: path})
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	l.Debug().Str("socket", "/tmp/x.sock").Msg("listening")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(data), `"message":"listening"`) {
		t.Fatalf("log file = %s", data)
	}
}

func TestInitRejectsBadLevel(t *testing.T) {
	if _, _, err := Init(config.LogConfig{Level: "chatty"}); err == nil {
		t.Fatalf("expected error")
	}
}
