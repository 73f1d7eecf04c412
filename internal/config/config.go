// Package config loads the host configuration and builds the logger.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from file and environment variables.
// Environment variables use the RF_ prefix with underscores, e.g.
// RF_PLUGINS_MANIFEST=/etc/routeforge/plugins.toml.
func Load(configPath string) (*viper.Viper, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mount_path", "/ext")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("plugins.manifest", "plugins.toml")
	v.SetDefault("plugins.namespaced", false)
	v.SetDefault("plugins.strict", false)
	v.SetDefault("plugins.watch", false)
	v.SetDefault("plugins.watch_debounce", "500ms")

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("routeforge")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		v.AddConfigPath("/etc/routeforge")
	}

	// Environment variable support: RF_SERVER_PORT=9090
	v.SetEnvPrefix("RF")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		// Config file not found is fine -- use defaults
	}

	return v, nil
}
