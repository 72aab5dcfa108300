package config

import (
	"fmt"
	"os"

	"trading-backbone/src/models"

	"gopkg.in/yaml.v3"
)

// -----------------------------------------------------------------------------

// Config wraps models.MConfig and provides business logic methods
type Config struct {
	*models.MConfig
}

// -----------------------------------------------------------------------------

// NewConfig creates a new MConfig instance from YAML file
func NewConfig(configPath string) (*Config, error) {
	// 1. Read the YAML file content
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", configPath, err)
	}

	// 2. Unmarshal data into the models struct
	var modelConfig models.MConfig
	if err := yaml.Unmarshal(data, &modelConfig); err != nil {
		return nil, fmt.Errorf("failed to parse config from YAML: %w", err)
	}

	config := &Config{MConfig: &modelConfig}
	config.applyDefaults()

	// 3. Validate the loaded configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// -----------------------------------------------------------------------------

// applyDefaults fills optional fields with the reference values.
func (c *Config) applyDefaults() {
	if c.Auth.AccessTokenExpireMin == 0 {
		c.Auth.AccessTokenExpireMin = 30
	}
	if c.Auth.RefreshTokenExpireDays == 0 {
		c.Auth.RefreshTokenExpireDays = 30
	}
	if c.Sessions.ValidityHours == 0 {
		// Gateway sessions expire after 24h upstream; refresh at 12h to be safe.
		c.Sessions.ValidityHours = 12
	}
	if c.Streaming.PollIntervalSeconds == 0 {
		c.Streaming.PollIntervalSeconds = 1
	}
	if c.Streaming.ExchangeMIC == "" {
		c.Streaming.ExchangeMIC = "xbom"
	}
	if c.Gateway.RequestTimeout == 0 {
		c.Gateway.RequestTimeout = 7
	}
	if c.Gateway.Source == "" {
		c.Gateway.Source = "WEBAPI"
	}
}

// -----------------------------------------------------------------------------

// Validate performs basic configuration validation
func (c *Config) Validate() error {
	// Validate App configuration (Flattened)
	if c.Name == "" {
		return fmt.Errorf("application name cannot be empty")
	}

	// Validate Server configuration (Flattened)
	if c.Host == "" {
		return fmt.Errorf("server host cannot be empty")
	}
	if c.Port <= 1024 || c.Port > 65535 {
		return fmt.Errorf("invalid server port number: %d (must be between 1025 and 65535)", c.Port)
	}

	// Validate Auth configuration
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("jwt secret must be at least 32 bytes")
	}
	if c.Auth.CredentialKey == "" {
		return fmt.Errorf("credential encryption key cannot be empty")
	}
	if c.Auth.AccessTokenExpireMin <= 0 {
		return fmt.Errorf("access token expiry must be greater than 0")
	}
	if c.Auth.RefreshTokenExpireDays <= 0 {
		return fmt.Errorf("refresh token expiry must be greater than 0")
	}

	// Validate Gateway configuration
	if c.Gateway.RootURI == "" {
		return fmt.Errorf("gateway root uri cannot be empty")
	}
	if c.Gateway.RequestTimeout <= 0 {
		return fmt.Errorf("gateway request timeout must be greater than 0")
	}

	// Validate Sessions configuration
	if c.Sessions.ValidityHours <= 0 {
		return fmt.Errorf("session validity must be greater than 0")
	}

	// Validate Storage configuration
	if c.Storage.DBType == "" {
		return fmt.Errorf("database type cannot be empty")
	}
	if c.Storage.DBType == "sqlite" && c.Storage.DBPath == "" {
		return fmt.Errorf("database path cannot be empty for sqlite")
	}
	if c.Storage.DBType == "postgres" && c.Storage.DBConnectionString == "" {
		return fmt.Errorf("connection string cannot be empty for postgres")
	}

	// Validate Streaming configuration
	if c.Streaming.PollIntervalSeconds <= 0 {
		return fmt.Errorf("poll interval must be greater than 0")
	}

	// Validate Events configuration
	if c.Events.Enabled && c.Events.Addr == "" {
		return fmt.Errorf("events address cannot be empty when events are enabled")
	}

	return nil
}

// -----------------------------------------------------------------------------

// Save persists the current configuration to the specified YAML file path
func (c *Config) Save(configPath string) error {
	// 1. Marshal the struct to YAML
	data, err := yaml.Marshal(c.MConfig)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	// 2. Write to file (0644 permissions)
	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config to file '%s': %w", configPath, err)
	}

	return nil
}
