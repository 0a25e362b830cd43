package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

const configPathEnvVar = "CONFIG_PATH"

// Load reads the configuration. Sources, highest priority first:
//  1. the explicit path;
//  2. CONFIG_PATH;
//  3. environment variables only.
//
// Environment variables always overlay values read from a file.
func Load(path string) (Config, error) {
	var cfg mainConfig

	if path == "" {
		path = GetEnv(configPathEnvVar, "")
	}

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %q stat failed: %w", path, err)
		}
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		return cfg, nil
	}

	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read env config: %w", err)
	}
	return cfg, nil
}
