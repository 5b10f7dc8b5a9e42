package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Server.Port != "12212" {
		t.Errorf("Expected port 12212, got %s", cfg.Server.Port)
	}
	if cfg.Printer.MaxRetries != 3 {
		t.Errorf("Expected 3 retries, got %d", cfg.Printer.MaxRetries)
	}
	if cfg.Printer.RetryDelay != 2*time.Second {
		t.Errorf("Expected 2s retry delay, got %v", cfg.Printer.RetryDelay)
	}
	if cfg.Paper.Width != "80mm" {
		t.Errorf("Expected 80mm paper, got %s", cfg.Paper.Width)
	}
	if err := validate(cfg); err != nil {
		t.Errorf("Expected defaults to validate, got %v", err)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := []byte(`
server:
  port: "9000"
logging:
  level: debug
  format: json
printer:
  max_retries: 5
  retry_delay: 250ms
paper:
  width: 58mm
`)
	if err := os.WriteFile(path, content, 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Server.Port != "9000" {
		t.Errorf("Expected port 9000, got %s", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Expected debug/json logging, got %s/%s", cfg.Logging.Level, cfg.Logging.Format)
	}
	if cfg.Printer.MaxRetries != 5 {
		t.Errorf("Expected 5 retries, got %d", cfg.Printer.MaxRetries)
	}
	if cfg.Printer.RetryDelay != 250*time.Millisecond {
		t.Errorf("Expected 250ms retry delay, got %v", cfg.Printer.RetryDelay)
	}
	if cfg.Paper.Width != "58mm" {
		t.Errorf("Expected 58mm paper, got %s", cfg.Paper.Width)
	}
	// untouched keys keep their defaults
	if cfg.Printer.SerialBaud != 9600 {
		t.Errorf("Expected default baud 9600, got %d", cfg.Printer.SerialBaud)
	}
}

func TestLoadFile_EnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: \"9000\"\n"), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	t.Setenv("RECEIPT_ENGINE_SERVER_PORT", "7000")

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.Server.Port != "7000" {
		t.Errorf("Expected env override 7000, got %s", cfg.Server.Port)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	tests := map[string]string{
		"log level":   "logging:\n  level: loud\n",
		"paper width": "paper:\n  width: 200mm\n",
		"queue size":  "printer:\n  queue_size: 0\n",
	}

	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(content), 0644); err != nil {
				t.Fatalf("Failed to write config: %v", err)
			}
			if _, err := LoadFile(path); err == nil {
				t.Error("Expected validation error")
			}
		})
	}
}

func TestServerAddress(t *testing.T) {
	s := ServerConfig{Host: "127.0.0.1", Port: "8080"}
	if got := s.Address(); got != "127.0.0.1:8080" {
		t.Errorf("Expected 127.0.0.1:8080, got %s", got)
	}
}
