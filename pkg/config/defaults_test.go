package config

import (
	"testing"
	"time"
)

func TestApplyDefaults_Logging(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected default log level 'INFO', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default log format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Logging.Output != "stdout" {
		t.Errorf("Expected default log output 'stdout', got %q", cfg.Logging.Output)
	}
}

func TestApplyDefaults_LogLevelNormalization(t *testing.T) {
	cfg := &Config{Logging: LoggingConfig{Level: "info"}}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" {
		t.Errorf("Expected 'info' normalized to 'INFO', got %q", cfg.Logging.Level)
	}
}

func TestApplyDefaults_ShutdownTimeout(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.ShutdownTimeout != 30*time.Second {
		t.Errorf("Expected default shutdown timeout 30s, got %v", cfg.ShutdownTimeout)
	}
}

func TestApplyDefaults_LeaseManager(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.LeaseManager.API.Port != 9000 {
		t.Errorf("Expected default lease manager port 9000, got %d", cfg.LeaseManager.API.Port)
	}
	if cfg.LeaseManager.TTL != 30*time.Second {
		t.Errorf("Expected default TTL 30s, got %v", cfg.LeaseManager.TTL)
	}
	if cfg.LeaseManager.MonitorInterval != 15*time.Second {
		t.Errorf("Expected default monitor interval 15s, got %v", cfg.LeaseManager.MonitorInterval)
	}
}

func TestApplyDefaults_Dispatcher(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Dispatcher.API.Port != 9001 {
		t.Errorf("Expected default dispatcher port 9001, got %d", cfg.Dispatcher.API.Port)
	}
	if cfg.Dispatcher.LeasesURL != "http://localhost:9000" {
		t.Errorf("Expected default leases URL, got %q", cfg.Dispatcher.LeasesURL)
	}
	if cfg.Dispatcher.TTL != 30*time.Second {
		t.Errorf("Expected default TTL 30s, got %v", cfg.Dispatcher.TTL)
	}
	if cfg.Dispatcher.ClientTimeout != 10*time.Second {
		t.Errorf("Expected default client timeout 10s, got %v", cfg.Dispatcher.ClientTimeout)
	}
}

func TestApplyDefaults_Worker(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Worker.TasksURL != "http://localhost:9001" {
		t.Errorf("Expected default tasks URL, got %q", cfg.Worker.TasksURL)
	}
	if cfg.Worker.HeartbeatInterval != 15*time.Second {
		t.Errorf("Expected default heartbeat interval 15s, got %v", cfg.Worker.HeartbeatInterval)
	}
	if cfg.Worker.PollInterval != time.Second {
		t.Errorf("Expected default poll interval 1s, got %v", cfg.Worker.PollInterval)
	}
	if cfg.Worker.Processor == "" {
		t.Error("Expected a generated processor identity")
	}
}

func TestApplyDefaults_Metrics(t *testing.T) {
	// Disabled metrics get no port
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Metrics.Enabled {
		t.Error("Expected metrics disabled by default")
	}
	if cfg.Metrics.Port != 0 {
		t.Errorf("Expected no metrics port while disabled, got %d", cfg.Metrics.Port)
	}

	// Enabled metrics default to the standard Prometheus port
	cfg = &Config{}
	cfg.Metrics.Enabled = true
	ApplyDefaults(cfg)

	if cfg.Metrics.Port != 9090 {
		t.Errorf("Expected default metrics port 9090, got %d", cfg.Metrics.Port)
	}
}

func TestApplyDefaults_Telemetry(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Telemetry.Enabled {
		t.Error("Expected telemetry disabled by default")
	}
	if cfg.Telemetry.Endpoint != "localhost:4317" {
		t.Errorf("Expected default OTLP endpoint, got %q", cfg.Telemetry.Endpoint)
	}
	if cfg.Telemetry.SampleRate != 1.0 {
		t.Errorf("Expected default sample rate 1.0, got %f", cfg.Telemetry.SampleRate)
	}
	if len(cfg.Telemetry.Profiling.ProfileTypes) == 0 {
		t.Error("Expected default profile types")
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{}
	cfg.LeaseManager.API.Port = 9500
	cfg.LeaseManager.TTL = 2 * time.Minute
	cfg.Dispatcher.LeasesURL = "http://leases.internal:9000"
	cfg.Worker.Processor = "etl-77"
	ApplyDefaults(cfg)

	if cfg.LeaseManager.API.Port != 9500 {
		t.Errorf("Expected explicit port 9500 kept, got %d", cfg.LeaseManager.API.Port)
	}
	if cfg.LeaseManager.TTL != 2*time.Minute {
		t.Errorf("Expected explicit TTL kept, got %v", cfg.LeaseManager.TTL)
	}
	if cfg.Dispatcher.LeasesURL != "http://leases.internal:9000" {
		t.Errorf("Expected explicit leases URL kept, got %q", cfg.Dispatcher.LeasesURL)
	}
	if cfg.Worker.Processor != "etl-77" {
		t.Errorf("Expected explicit processor kept, got %q", cfg.Worker.Processor)
	}
}
