// Package config loads and validates the console's own configuration: file
// paths, server binding, external action timeouts and the Mender identity.
// It is distinct from the retina-node configuration the console edits.
package config

import (
	"fmt"
	"path/filepath"
	"time"
)

// Config is the process configuration, constructed once at startup and
// passed by reference. No package-level path state exists anywhere.
type Config struct {
	// DataDir holds console-owned state (authorized_keys, audit database).
	DataDir string `mapstructure:"data_dir"`

	// MergedConfigPath is the effective configuration produced by the
	// external config-merger. Read-only to this process.
	MergedConfigPath string `mapstructure:"merged_config_path"`

	// UserConfigPath is the override file this console owns.
	UserConfigPath string `mapstructure:"user_config_path"`

	// RetinaNodePath is the retina-node manifests directory containing
	// docker-compose.yaml.
	RetinaNodePath string `mapstructure:"retina_node_path"`

	Server ServerConfig `mapstructure:"server"`
	Apply  ApplyConfig  `mapstructure:"apply"`
	Mender MenderConfig `mapstructure:"mender"`
	Log    LogConfig    `mapstructure:"log"`
}

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ApplyConfig bounds the two external apply phases independently.
type ApplyConfig struct {
	MergeTimeout   time.Duration `mapstructure:"merge_timeout"`
	RestartTimeout time.Duration `mapstructure:"restart_timeout"`
}

// MenderConfig identifies the device to the Mender server.
type MenderConfig struct {
	ServerURL      string        `mapstructure:"server_url"`
	ReleaseName    string        `mapstructure:"release_name"`
	DeviceType     string        `mapstructure:"device_type"`
	InstallTimeout time.Duration `mapstructure:"install_timeout"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// AuthKeysPath returns the authorized_keys path under the data directory.
func (c *Config) AuthKeysPath() string {
	return filepath.Join(c.DataDir, "authorized_keys")
}

// AuditDBPath returns the audit database path under the data directory.
func (c *Config) AuditDBPath() string {
	return filepath.Join(c.DataDir, "audit.db")
}

// Addr returns the server bind address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Validate checks the configuration for startup errors.
func (c *Config) Validate() error {
	var errs ValidationErrors

	requirePath := func(field, value string) {
		if value == "" {
			errs = append(errs, ValidationError{Field: field, Message: "must not be empty"})
		}
	}
	requirePath("data_dir", c.DataDir)
	requirePath("merged_config_path", c.MergedConfigPath)
	requirePath("user_config_path", c.UserConfigPath)
	requirePath("retina_node_path", c.RetinaNodePath)

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, ValidationError{Field: "server.port", Value: c.Server.Port, Message: "must be 1-65535"})
	}
	if c.Apply.MergeTimeout <= 0 {
		errs = append(errs, ValidationError{Field: "apply.merge_timeout", Value: c.Apply.MergeTimeout, Message: "must be positive"})
	}
	if c.Apply.RestartTimeout <= 0 {
		errs = append(errs, ValidationError{Field: "apply.restart_timeout", Value: c.Apply.RestartTimeout, Message: "must be positive"})
	}
	if c.Mender.InstallTimeout <= 0 {
		errs = append(errs, ValidationError{Field: "mender.install_timeout", Value: c.Mender.InstallTimeout, Message: "must be positive"})
	}
	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, ValidationError{Field: "log.level", Value: c.Log.Level, Message: "must be debug, info, warn or error"})
	}
	switch c.Log.Format {
	case "auto", "text", "json":
	default:
		errs = append(errs, ValidationError{Field: "log.format", Value: c.Log.Format, Message: "must be auto, text or json"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
