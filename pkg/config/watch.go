package config

import (
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/marmos91/tasklease/internal/logger"
)

// Watch installs a file watcher on the given config file and retunes the
// process logger (level and format) whenever the file is rewritten. Other
// settings keep their boot-time values; changing them needs a restart.
//
// A rewrite that fails to parse or validate is logged and ignored, so a
// half-edited file never degrades a running service.
//
// The watcher lives for the remainder of the process; there is no way to
// uninstall it.
func Watch(configPath string, onReload func(*Config)) error {
	if configPath == "" {
		return fmt.Errorf("config watch requires an explicit config file")
	}

	v := viper.New()
	setupEnv(v)
	v.SetConfigFile(configPath)

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file for watching: %w", err)
	}

	v.OnConfigChange(func(event fsnotify.Event) {
		var cfg Config
		if err := v.Unmarshal(&cfg, viper.DecodeHook(configDecodeHooks())); err != nil {
			logger.Warn("config reload failed, keeping current settings", "file", event.Name, "error", err)
			return
		}

		ApplyDefaults(&cfg)

		if err := Validate(&cfg); err != nil {
			logger.Warn("config reload rejected, keeping current settings", "file", event.Name, "error", err)
			return
		}

		logger.SetLevel(cfg.Logging.Level)
		logger.SetFormat(cfg.Logging.Format)
		logger.Info("configuration reloaded", "file", event.Name, "level", cfg.Logging.Level, "format", cfg.Logging.Format)

		if onReload != nil {
			onReload(&cfg)
		}
	})

	v.WatchConfig()

	return nil
}
