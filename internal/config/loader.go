package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Loader loads configuration from defaults, an optional YAML file and
// RETINA_* environment variables.
type Loader struct {
	v          *viper.Viper
	configFile string
	envPrefix  string
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		v:         viper.New(),
		envPrefix: "RETINA",
	}
}

// NewLoaderWithViper creates a loader using an existing viper instance,
// allowing integration with CLI flag bindings.
func NewLoaderWithViper(v *viper.Viper) *Loader {
	return &Loader{
		v:         v,
		envPrefix: "RETINA",
	}
}

// WithConfigFile sets an explicit config file path.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// Viper returns the underlying viper instance for flag binding.
func (l *Loader) Viper() *viper.Viper {
	return l.v
}

// Load loads configuration from all sources. Precedence (highest first):
// CLI flags bound via viper, RETINA_* environment variables, the config
// file, defaults.
func (l *Loader) Load() (*Config, error) {
	l.setDefaults()

	l.v.SetEnvPrefix(l.envPrefix)
	l.v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	l.v.AutomaticEnv()

	if l.configFile != "" {
		l.v.SetConfigFile(l.configFile)
	} else {
		l.v.SetConfigName("retina-gui")
		l.v.SetConfigType("yaml")
		l.v.AddConfigPath("/etc/retina-gui")
		l.v.AddConfigPath(".")
	}

	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (l *Loader) setDefaults() {
	l.v.SetDefault("data_dir", "/data/retina-gui")
	l.v.SetDefault("merged_config_path", "/data/retina-node/config/config.yml")
	l.v.SetDefault("user_config_path", "/data/retina-node/config/user.yml")
	l.v.SetDefault("retina_node_path", "/data/retina-node/manifests")

	l.v.SetDefault("server.host", "0.0.0.0")
	l.v.SetDefault("server.port", 80)

	l.v.SetDefault("apply.merge_timeout", "60s")
	l.v.SetDefault("apply.restart_timeout", "120s")

	l.v.SetDefault("mender.server_url", "https://hosted.mender.io")
	l.v.SetDefault("mender.release_name", "retina-node")
	l.v.SetDefault("mender.device_type", "pi5-v3-arm64")
	l.v.SetDefault("mender.install_timeout", "10m")

	l.v.SetDefault("log.level", "info")
	l.v.SetDefault("log.format", "auto")
}
