package config

import (
	"go.uber.org/fx"
)

type (
	// CustomConfig, when provided, overrides the config loaded from the yaml
	// files. Mostly used by tests to inject a modified config.
	CustomConfig struct {
		config *Config
	}

	Params struct {
		fx.In
		CustomConfig *CustomConfig `optional:"true"`
	}
)

func WithCustomConfig(config *Config) fx.Option {
	return fx.Provide(func() *CustomConfig {
		return &CustomConfig{
			config: config,
		}
	})
}
