package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"vitals/pkg/logging"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	userConfigDir  = ".config/vitals"
	configFileName = "config.yaml"
	envPrefix      = "VITALS_"

	dataDirName       = "data"
	secretKeyFileName = "secret.key"
)

// osUserHomeDir is a variable so tests can redirect the home directory.
var osUserHomeDir = os.UserHomeDir

// GetDefaultConfigDir returns ~/.config/vitals.
func GetDefaultConfigDir() (string, error) {
	homeDir, err := osUserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// LoadConfig loads configuration from configDir/config.yaml on top of the
// defaults, applies VITALS_* environment overrides, fills in storage paths and
// validates the result. An empty configDir means GetDefaultConfigDir.
func LoadConfig(configDir string) (Config, error) {
	if configDir == "" {
		dir, err := GetDefaultConfigDir()
		if err != nil {
			return Config{}, err
		}
		configDir = dir
	}

	config := GetDefaultConfig()
	configFilePath := filepath.Join(configDir, configFileName)

	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Debug("Config", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		return Config{}, NewConfigurationError(configFilePath, configFileName, "io", err.Error())
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return Config{}, NewConfigurationError(configFilePath, configFileName, "parse", err.Error())
		}
		logging.Debug("Config", "Loaded configuration from %s", configFilePath)
	}

	if err := env.ParseWithOptions(&config, env.Options{Prefix: envPrefix}); err != nil {
		return Config{}, NewConfigurationError("", "environment", "parse", err.Error())
	}

	applyStorageDefaults(&config, configDir)

	if err := Validate(config); err != nil {
		return Config{}, err
	}
	return config, nil
}

func applyStorageDefaults(config *Config, configDir string) {
	if config.Storage.DataDir == "" {
		config.Storage.DataDir = filepath.Join(configDir, dataDirName)
	}
	if config.Storage.SecretKeyFile == "" {
		config.Storage.SecretKeyFile = filepath.Join(configDir, secretKeyFileName)
	}
}
