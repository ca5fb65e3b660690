package config

import (
	"github.com/caarlos0/env/v11"
)

const EnvPrefix = "AUTHKEEPER_"

// parseEnv overlays AUTHKEEPER_* variables. Unset variables keep the value
// already in config. Malformed values panic, like a broken JSON file.
func parseEnv(config *Config) {
	if err := env.ParseWithOptions(config, env.Options{Prefix: EnvPrefix}); err != nil {
		panic(err)
	}
}
