package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/thereceipt/escpos-engine/internal/config"
)

func TestNew_ExtraWriter(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LoggingConfig{Level: "info", Format: "json", Output: "discard"}, &buf)
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Debug("hidden")
	logger.Info("printer connected")
	_ = logger.Sync()

	out := buf.String()
	if !strings.Contains(out, "printer connected") {
		t.Errorf("Expected info entry in extra writer, got %q", out)
	}
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected debug entry to be filtered, got %q", out)
	}
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "engine.log")
	logger, err := New(config.LoggingConfig{Level: "debug", Format: "json", Output: path, MaxSize: 1})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	logger.Info("job completed")
	_ = logger.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if !strings.Contains(string(data), `"message":"job completed"`) {
		t.Errorf("Expected JSON entry in log file, got %q", data)
	}
}

func TestNew_InvalidLevel(t *testing.T) {
	if _, err := New(config.LoggingConfig{Level: "verbose"}); err == nil {
		t.Error("Expected error for invalid level")
	}
}

func TestComponent(t *testing.T) {
	var buf bytes.Buffer
	logger, _ := New(config.LoggingConfig{Level: "info", Format: "json", Output: "discard"}, &buf)

	Component(logger, "queue").Info("started")
	_ = logger.Sync()

	if !strings.Contains(buf.String(), "queue") {
		t.Errorf("Expected component field, got %q", buf.String())
	}
	if Component(nil, "x") == nil {
		t.Error("Expected a no-op logger for nil input")
	}
}
