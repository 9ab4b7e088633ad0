// Package config resolves build-time and runtime inputs shared by both
// command-line entrypoints (the secrets file location, the decoder's
// device ID, and the subscription store path) from flags and CASTV_-prefixed
// environment variables, modeled on go-fdo-server's cmd/config.go. No config
// file is read.
package config

import (
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

// Config holds the resolved settings for either binary.
type Config struct {
	// SecretsPath is the path to the headend-generated secrets blob
	// (headend.Material.Marshal output).
	SecretsPath string

	// DeviceID identifies a single decoder within a deployment; required
	// by decodersim, unused by headend.
	DeviceID uint32

	// StorePath is the decoder's flash-resident subscription log path.
	StorePath string

	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string
}

// Load enables CASTV_-prefixed environment lookup on v, applies defaults,
// resolves the settings into a Config, and validates required fields. v is
// expected to already have its flags bound via v.BindPFlag; Load binds none.
func Load(v *viper.Viper) (*Config, error) {
	v.SetEnvPrefix("CASTV")
	v.AutomaticEnv()

	v.SetDefault("log-level", "info")
	v.SetDefault("store-path", "decoder.store")

	cfg := &Config{
		SecretsPath: v.GetString("secrets"),
		DeviceID:    uint32(v.GetUint("device-id")),
		StorePath:   v.GetString("store-path"),
		LogLevel:    v.GetString("log-level"),
	}

	if cfg.SecretsPath == "" {
		return nil, errors.New("config: missing required secrets file path (--secrets)")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, fmt.Errorf("config: invalid log level %q", cfg.LogLevel)
	}

	return cfg, nil
}
