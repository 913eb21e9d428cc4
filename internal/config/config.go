// Package config loads tasker settings from config.yaml files and TASKER_*
// environment variables through a package-level viper instance.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override (TASKER_AI_MODEL etc.).
const EnvPrefix = "TASKER"

// DefaultAIModel is the text-generation model used when ai.model is unset.
const DefaultAIModel = "claude-3-5-haiku-latest"

var v *viper.Viper

// Initialize sets up the viper configuration singleton.
// Should be called once at application startup.
func Initialize() error {
	v = viper.New()

	v.SetConfigType("yaml")
	v.SetConfigName("config")

	// Search order: project .tasker/, then XDG config, then ~/.config.
	if cwd, err := os.Getwd(); err == nil {
		v.AddConfigPath(filepath.Join(cwd, ".tasker"))
	}
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		v.AddConfigPath(filepath.Join(xdg, "tasker"))
	}
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "tasker"))
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

func setDefaults(v *viper.Viper) {
	dataDir := defaultDataDir()
	v.SetDefault("data-dir", dataDir)

	v.SetDefault("storage.backend", "dolt")
	v.SetDefault("dolt.path", "")
	v.SetDefault("dolt.database", "tasker")
	v.SetDefault("dolt.server", false)
	v.SetDefault("dolt.host", "127.0.0.1")
	v.SetDefault("dolt.port", 3307)
	v.SetDefault("dolt.user", "root")
	v.SetDefault("dolt.password", "")
	v.SetDefault("dolt.tls", false)
	v.SetDefault("sqlite.path", "")

	v.SetDefault("ai.model", DefaultAIModel)
	v.SetDefault("ai.api-key", "")
	v.SetDefault("ai.max-tokens", 256)
	v.SetDefault("ai.match-mode", "exact")
	v.SetDefault("ai.prompt-file", "")
	v.SetDefault("ai.audit", false)

	v.SetDefault("refresh.interval", 2*time.Minute)

	v.SetDefault("nats.enabled", true)
	v.SetDefault("nats.url", "")
	v.SetDefault("nats.port", 4222)
	v.SetDefault("nats.store-dir", "")

	v.SetDefault("objectstore.bucket", "profile_pictures")
	v.SetDefault("objectstore.public-url", "")

	v.SetDefault("auth.secret", "")
	v.SetDefault("auth.session-ttl", 720*time.Hour)
	v.SetDefault("auth.session-file", "")
	v.SetDefault("auth.reset-ttl", 30*time.Minute)

	v.SetDefault("notify.channels", []string{"log"})
	v.SetDefault("notify.webhook-url", "")

	v.SetDefault("log.format", "text")
	v.SetDefault("json", false)
}

func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "tasker")
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share", "tasker")
	}
	return ".tasker"
}

// DataDir returns the base directory for local state (databases, session, audit log).
func DataDir() string {
	if d := GetString("data-dir"); d != "" {
		return d
	}
	return defaultDataDir()
}

// PathIn returns the configured path for key, or name joined to DataDir when unset.
func PathIn(key, name string) string {
	if p := GetString(key); p != "" {
		return p
	}
	return filepath.Join(DataDir(), name)
}

// AIModel returns the configured text-generation model.
func AIModel() string {
	if m := GetString("ai.model"); m != "" {
		return m
	}
	return DefaultAIModel
}

// RefreshInterval returns the task refresh period. Values under one second
// fall back to the two-minute default.
func RefreshInterval() time.Duration {
	d := GetDuration("refresh.interval")
	if d < time.Second {
		return 2 * time.Minute
	}
	return d
}

// ConfigFileUsed returns the path of the loaded config file, if any.
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// GetString retrieves a string configuration value
func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

// GetBool retrieves a boolean configuration value
func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

// GetInt retrieves an integer configuration value
func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

// GetDuration retrieves a duration configuration value
func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// GetStringSlice retrieves a string slice configuration value.
// Comma-separated entries (as set through the environment) are split.
func GetStringSlice(key string) []string {
	if v == nil {
		return []string{}
	}
	out := []string{}
	for _, p := range strings.Split(strings.Join(v.GetStringSlice(key), ","), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Set sets a configuration value (in memory only)
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// AllSettings returns all configuration settings as a map
func AllSettings() map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v.AllSettings()
}
