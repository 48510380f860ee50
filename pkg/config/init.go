package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// sampleConfig is the commented starter configuration written by InitConfig.
// It must stay loadable by Load and valid under Validate.
const sampleConfig = `# tasklease Configuration File
#
# Every setting can be overridden with a TASKLEASE_* environment variable,
# for example TASKLEASE_LOGGING_LEVEL=DEBUG. The deployment variables
# DATABASE_URL, PORT, SERVICE_LEASES_URL, TASK_SERVICE_URL, LEASE_TTL and
# HEARTBEAT_INTERVAL are also honored without the prefix.

logging:
  # Minimum log level: DEBUG, INFO, WARN, ERROR
  level: "INFO"
  # Output format: text, json
  format: "text"
  # Where logs are written: stdout, stderr, or a file path
  output: "stdout"

# Maximum time to wait for graceful shutdown
shutdown_timeout: 30s

database:
  # sqlite for single-node setups, postgres for replicated services
  type: sqlite
  sqlite:
    # path: /var/lib/tasklease/tasklease.db
  # postgres:
  #   host: localhost
  #   port: 5432
  #   database: tasklease
  #   user: tasklease
  #   password: ""
  #   sslmode: disable

leasemanager:
  api:
    port: 9000
  # How long an unrenewed lease stays active
  ttl: 30s
  # How often lease state gauges are sampled
  monitor_interval: 15s

dispatcher:
  api:
    port: 9001
  # Lease manager base URL for claim guards
  leases_url: "http://localhost:9000"
  # Heartbeat deadline window for claimed tasks
  ttl: 30s
  # Timeout for calls to the lease manager
  client_timeout: 10s
  monitor_interval: 15s

worker:
  # Task dispatcher base URL
  tasks_url: "http://localhost:9001"
  # Processor identity; generated from hostname when empty
  processor: ""
  # How often claimed tasks are heartbeated (at most half the ttl)
  heartbeat_interval: 15s
  # How often the worker polls for new tasks
  poll_interval: 1s

metrics:
  enabled: false
  # port: 9090

telemetry:
  enabled: false
  # endpoint: "localhost:4317"
  # insecure: true
  # sample_rate: 1.0
  profiling:
    enabled: false
    # endpoint: "http://localhost:4040"
`

// InitConfig writes a starter configuration file at the default location
// and returns its path. With force false, an existing file is an error.
func InitConfig(force bool) (string, error) {
	path := GetDefaultConfigPath()
	if err := InitConfigToPath(path, force); err != nil {
		return "", err
	}
	return path, nil
}

// InitConfigToPath writes a starter configuration file at the given path,
// creating parent directories as needed. With force false, an existing
// file is an error.
func InitConfigToPath(path string, force bool) error {
	if _, err := os.Stat(path); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", path)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
