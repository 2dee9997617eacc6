package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "scraper.log")
	logger, err := NewLogger(Options{LogPath: path, LogLevel: "info", MaxSizeMB: 1})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.With("run_id", "r1").Info("Page processed", "page", 3, "found", 30)
	logger.Debug("Hidden at info level")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"Page processed"`) || !strings.Contains(out, `"run_id":"r1"`) || !strings.Contains(out, `"page":3`) {
		t.Errorf("log line missing fields: %s", out)
	}
	if strings.Contains(out, "Hidden at info level") {
		t.Errorf("debug line written at info level")
	}
}

func TestNewLoggerRejectsBadLevel(t *testing.T) {
	if _, err := NewLogger(Options{LogLevel: "verbose"}); err == nil {
		t.Errorf("NewLogger() with unknown level should fail")
	}
}
