package internal

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestNewLogger_WritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chronofix.log")
	logger, err := NewLogger(path, "info", zapcore.ErrorLevel)
	if err != nil {
		t.Fatalf("NewLogger failed: %v", err)
	}
	logger.Debug("hidden")
	logger.Info("renamed", zap.String("file", "/lib/a.jpg"))
	if err := logger.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "hidden") {
		t.Error("Debug entry written at info level")
	}
	if !strings.Contains(string(data), `"file":"/lib/a.jpg"`) {
		t.Errorf("Expected JSON field in log file, got %s", data)
	}
}

func TestNewLogger_BadLevel(t *testing.T) {
	if _, err := NewLogger("", "loud", zapcore.InfoLevel); !errors.Is(err, ErrConfig) {
		t.Errorf("Expected ErrConfig, got %v", err)
	}
}
