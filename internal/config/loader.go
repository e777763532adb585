package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"tokensession/pkg/logging"
)

const (
	userConfigDir  = ".config/tokensession"
	configFileName = "config.yaml"
)

// Environment variables that override the configuration file.
const (
	EnvEndpoint     = "TOKENSESSION_ENDPOINT"
	EnvClientID     = "TOKENSESSION_CLIENT_ID"
	EnvClientSecret = "TOKENSESSION_CLIENT_SECRET"
	EnvLogLevel     = "TOKENSESSION_LOG_LEVEL"
)

// GetDefaultConfigPath returns ~/.config/tokensession.
func GetDefaultConfigPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("could not determine user config directory: %w", err)
	}
	return filepath.Join(homeDir, userConfigDir), nil
}

// LoadConfig loads config.yaml from configPath over the defaults, applies
// environment overrides and then the given overrides, resolves the store
// path and validates the result. A missing config.yaml is not an error.
func LoadConfig(configPath string, overrides ...func(*TokenSessionConfig)) (TokenSessionConfig, error) {
	config := GetDefaultConfig()
	configFilePath := filepath.Join(configPath, configFileName)

	data, err := os.ReadFile(configFilePath)
	switch {
	case errors.Is(err, os.ErrNotExist):
		logging.Debug("ConfigLoader", "No config.yaml found at %s, using defaults", configFilePath)
	case err != nil:
		return TokenSessionConfig{}, NewConfigurationError(configFilePath, configFileName, "io",
			fmt.Sprintf("failed to read config file: %v", err))
	default:
		if err := yaml.Unmarshal(data, &config); err != nil {
			return TokenSessionConfig{}, NewConfigurationErrorWithDetails(configFilePath, configFileName, "parse",
				"malformed YAML", err.Error(),
				[]string{"Check the indentation and that durations are written like 25m or 30s"})
		}
		logging.Debug("ConfigLoader", "Loaded configuration from %s", configFilePath)
	}

	ApplyEnvOverrides(&config, os.LookupEnv)
	for _, override := range overrides {
		override(&config)
	}
	config.ResolveStorePath(configPath)

	if errs := config.Validate(); errs.HasErrors() {
		collection := NewConfigurationErrorCollection()
		for _, verr := range errs {
			collection.Add(NewConfigurationError(configFilePath, configFileName, "validation", verr.Error()))
		}
		return TokenSessionConfig{}, *collection
	}

	return config, nil
}

// ApplyEnvOverrides replaces configured values with the environment
// variables that are set.
func ApplyEnvOverrides(config *TokenSessionConfig, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvEndpoint); ok && v != "" {
		config.Endpoint = v
	}
	if v, ok := lookup(EnvClientID); ok && v != "" {
		config.ClientID = v
	}
	if v, ok := lookup(EnvClientSecret); ok && v != "" {
		config.ClientSecret = v
	}
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		config.LogLevel = v
	}
}

// ResolveStorePath fills in the default store location inside configPath
// when none is configured.
func (c *TokenSessionConfig) ResolveStorePath(configPath string) {
	if c.Store.Path != "" {
		return
	}
	switch c.Store.Type {
	case StoreTypeFile:
		c.Store.Path = filepath.Join(configPath, DefaultTokenDirName)
	case StoreTypeSQLite:
		c.Store.Path = filepath.Join(configPath, DefaultDatabaseName)
	}
}
