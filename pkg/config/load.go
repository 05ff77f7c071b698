package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// LoadConfig loads configuration from a YAML file at the specified path.
// It applies default values, validates the configuration, and returns any errors.
// The configuration is not modified by environment variables; use LoadConfigWithEnvOverrides
// for that functionality.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// Parse decodes YAML without applying defaults or validating.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadConfigWithEnvOverrides loads configuration from a YAML file and applies
// environment variable overrides. Environment variables always take
// precedence over file-based configuration.
//
// The loading sequence is:
// 1. Load YAML from file
// 2. Apply default values
// 3. Apply environment variable overrides
// 4. Validate final configuration
func LoadConfigWithEnvOverrides(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read configuration file %q: %w", path, err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse configuration file %q: %w", path, err)
	}

	applyEnvOverrides(cfg)
	ApplyDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed after environment overrides: %w", err)
	}

	return cfg, nil
}

// ResolvePath returns the config path to use: the explicit flag value,
// then DB_CLEANER_CONFIG, then DefaultConfigPath.
func ResolvePath(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if val := os.Getenv("DB_CLEANER_CONFIG"); val != "" {
		return val
	}
	return DefaultConfigPath
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// The unprefixed names are kept for deployments that already set them.
func applyEnvOverrides(cfg *Config) {
	// Database overrides
	if val := os.Getenv("DATABASE_CONNECTION_STRING"); val != "" {
		cfg.Database.URI = val
	} else if val := os.Getenv("DB_URI"); val != "" {
		cfg.Database.URI = val
	}
	if val := os.Getenv("CLEANER_DATABASE_DRIVER"); val != "" {
		cfg.Database.Driver = val
	}

	// Run overrides
	if val := os.Getenv("DRY_RUN"); val != "" {
		if b, ok := parseBool(val); ok {
			cfg.DryRun = Bool(b)
		}
	}
	if val := os.Getenv("CLEANER_SCHEDULE"); val != "" {
		cfg.Schedule = val
	}

	// Table overrides apply to every table
	if val := os.Getenv("EXPIRY_DAYS"); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			for j := range cfg.Tables {
				cfg.Tables[j].ExpireDays = i
			}
		}
	}
	if val := os.Getenv("ARCHIVE"); val != "" {
		if b, ok := parseBool(val); ok {
			for j := range cfg.Tables {
				cfg.Tables[j].Archive = b
			}
		}
	}

	// Telemetry overrides
	if val := os.Getenv("CLEANER_LOG_LEVEL"); val != "" {
		cfg.Logging.Level = val
	}
	if val := os.Getenv("CLEANER_LOG_FORMAT"); val != "" {
		cfg.Logging.Format = val
	}
	if val := os.Getenv("CLEANER_LOG_FILE"); val != "" {
		cfg.Logging.File = val
	}
	if val := os.Getenv("CLEANER_METRICS_PUSHGATEWAY"); val != "" {
		cfg.Metrics.PushGateway = val
		cfg.Metrics.Enabled = true
	}
}

// parseBool accepts the usual spellings ("true", "1", "yes", "on").
func parseBool(val string) (bool, bool) {
	switch val {
	case "yes", "YES", "Yes", "on", "ON", "On":
		return true, true
	case "no", "NO", "No", "off", "OFF", "Off":
		return false, true
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, false
	}
	return b, true
}
