// Package config loads forrstd's process-wide configuration via viper:
// a fresh *viper.Viper per load, an explicit config type, and environment
// variables taking precedence over the file.
package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

// Config is forrstd's process-wide configuration.
type Config struct {
	Addr              string   `mapstructure:"addr"`
	ProtocolName      string   `mapstructure:"protocol_name"`
	SupportedVersions []string `mapstructure:"supported_versions"`
	MaxRequestBytes   int      `mapstructure:"max_request_bytes"`
	MaxResponseBytes  int      `mapstructure:"max_response_bytes"`
	LockStorePath     string   `mapstructure:"lock_store_path"`
	RedisAddr         string   `mapstructure:"redis_addr"`
}

// Defaults returns the configuration forrstd runs with absent an explicit
// file or environment overrides.
func Defaults() Config {
	return Config{
		Addr:              ":8080",
		ProtocolName:      "forrst",
		SupportedVersions: []string{"1.0.0"},
		MaxRequestBytes:   1 << 20,
		MaxResponseBytes:  10 << 20,
		LockStorePath:     "forrst-store.json",
	}
}

// Load reads configPath (if it exists) over the defaults. FORRST_-prefixed
// environment variables take precedence over both, matching viper's layered
// precedence (env > file > default).
func Load(configPath string) (Config, error) {
	cfg := Defaults()

	v := viper.New()
	v.SetEnvPrefix("forrst")
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse configuration: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("addr", cfg.Addr)
	v.SetDefault("protocol_name", cfg.ProtocolName)
	v.SetDefault("supported_versions", cfg.SupportedVersions)
	v.SetDefault("max_request_bytes", cfg.MaxRequestBytes)
	v.SetDefault("max_response_bytes", cfg.MaxResponseBytes)
	v.SetDefault("lock_store_path", cfg.LockStorePath)
	v.SetDefault("redis_addr", cfg.RedisAddr)
}
