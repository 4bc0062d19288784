// Copyright 2025 The Go MCP SDK Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration for mcpcore, loaded from an
// optional config file plus MCPCORE_-prefixed environment variables.
type Config struct {
	// ListenAddr is the address the "serve" command binds to.
	ListenAddr string `mapstructure:"listen_addr"`

	// SessionTTL bounds how long a Streamable-HTTP session's claim
	// stays valid in the session-owner cache between requests.
	SessionTTL time.Duration `mapstructure:"session_ttl"`

	// RateLimitPerSecond and RateLimitBurst configure the admission
	// token bucket applied to incoming HTTP requests. A zero
	// RateLimitPerSecond disables rate limiting.
	RateLimitPerSecond float64 `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int     `mapstructure:"rate_limit_burst"`

	// MaxBodyBytes bounds incoming POST bodies; 0 uses the package
	// default, negative disables the limit.
	MaxBodyBytes int64 `mapstructure:"max_body_bytes"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `mapstructure:"log_level"`
}

// initViper wires config file discovery and environment variable
// overrides, matching the precedence flags > env > file > defaults.
func initViper(cfgFile string) {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("mcpcore")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		viper.AddConfigPath("$HOME/.mcpcore")
		viper.AddConfigPath("/etc/mcpcore")
	}

	viper.SetEnvPrefix("MCPCORE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("listen_addr", ":8080")
	viper.SetDefault("session_ttl", 5*time.Minute)
	viper.SetDefault("rate_limit_per_second", 0.0)
	viper.SetDefault("rate_limit_burst", 0)
	viper.SetDefault("max_body_bytes", int64(0))
	viper.SetDefault("log_level", "info")
}

// loadConfig reads the config file, if any, and unmarshals it over the
// defaults set by initViper. A missing config file is not an error:
// mcpcore runs entirely off defaults/environment/flags if none exists.
func loadConfig() (*Config, error) {
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}
