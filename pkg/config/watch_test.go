package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/marmos91/tasklease/internal/logger"
)

func TestWatch_RequiresConfigFile(t *testing.T) {
	if err := Watch("", nil); err == nil {
		t.Fatal("Expected error when watching without a config file")
	}
}

func TestWatch_ReloadsLogLevel(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	writeLevel := func(level string) {
		t.Helper()
		content := "logging:\n  level: \"" + level + "\"\n"
		if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
			t.Fatalf("Failed to write config file: %v", err)
		}
	}

	writeLevel("INFO")

	originalLevel := logger.GetLevel()
	t.Cleanup(func() { logger.SetLevel(originalLevel.String()) })

	reloaded := make(chan *Config, 4)
	if err := Watch(configPath, func(cfg *Config) { reloaded <- cfg }); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	writeLevel("DEBUG")

	select {
	case cfg := <-reloaded:
		if cfg.Logging.Level != "DEBUG" {
			t.Errorf("Expected reloaded level DEBUG, got %q", cfg.Logging.Level)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Config change was never observed")
	}

	if logger.GetLevel() != logger.LevelDebug {
		t.Errorf("Expected live log level retuned to DEBUG, got %s", logger.GetLevel())
	}
}

func TestWatch_RejectsBrokenRewrite(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configPath, []byte("logging:\n  level: \"INFO\"\n"), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}

	originalLevel := logger.GetLevel()
	t.Cleanup(func() { logger.SetLevel(originalLevel.String()) })

	reloaded := make(chan *Config, 4)
	if err := Watch(configPath, func(cfg *Config) { reloaded <- cfg }); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	// An invalid level must be rejected without firing the callback
	if err := os.WriteFile(configPath, []byte("logging:\n  level: \"LOUD\"\n"), 0644); err != nil {
		t.Fatalf("Failed to rewrite config file: %v", err)
	}

	select {
	case cfg := <-reloaded:
		t.Fatalf("Expected broken rewrite to be rejected, got reload with level %q", cfg.Logging.Level)
	case <-time.After(500 * time.Millisecond):
	}

	if logger.GetLevel() != originalLevel {
		t.Errorf("Expected log level unchanged after rejected reload, got %s", logger.GetLevel())
	}
}
