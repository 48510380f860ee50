package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validate checks the configuration against the struct validation tags and
// the cross-field rules tags cannot express.
//
// Validation never mutates the configuration; normalization happens in
// ApplyDefaults.
func Validate(cfg *Config) error {
	v := validator.New()

	if err := v.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed on the %q rule", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// The database section carries its own validation (it is also reachable
	// without the config layer, through DATABASE_URL)
	if err := cfg.Database.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: database: %w", err)
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("invalid configuration: telemetry is enabled but no endpoint is configured")
	}

	// A worker must fit at least two heartbeats into the dispatcher's
	// deadline window, otherwise one delayed beat loses the task
	if cfg.Dispatcher.TTL > 0 && 2*cfg.Worker.HeartbeatInterval > cfg.Dispatcher.TTL {
		return fmt.Errorf("invalid configuration: worker heartbeat_interval %s must be at most half the dispatcher ttl %s",
			cfg.Worker.HeartbeatInterval, cfg.Dispatcher.TTL)
	}

	// A dispatcher call to the lease manager that can block for longer than
	// half the TTL can miss the renewal window it is trying to extend
	if cfg.Dispatcher.TTL > 0 && 2*cfg.Dispatcher.ClientTimeout > cfg.Dispatcher.TTL {
		return fmt.Errorf("invalid configuration: dispatcher client_timeout %s must be at most half the dispatcher ttl %s",
			cfg.Dispatcher.ClientTimeout, cfg.Dispatcher.TTL)
	}

	return nil
}
