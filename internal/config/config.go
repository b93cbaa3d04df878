// Package config loads and persists the noot application configuration.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config represents the complete noot configuration
type Config struct {
	Version int    `json:"version" mapstructure:"version"`
	DataDir string `json:"dataDir" mapstructure:"dataDir"`

	Attachments AttachmentsConfig `json:"attachments" mapstructure:"attachments"`
	Backups     BackupsConfig     `json:"backups" mapstructure:"backups"`
	Sync        SyncConfig        `json:"sync" mapstructure:"sync"`
	Logging     LoggingConfig     `json:"logging" mapstructure:"logging"`
}

// AttachmentsConfig locates the live attachment tree
type AttachmentsConfig struct {
	Dir string `json:"dir" mapstructure:"dir"`
}

// BackupsConfig locates automatic pre-replace backups
type BackupsConfig struct {
	Dir string `json:"dir" mapstructure:"dir"`
}

// SyncConfig contains workspace sync preferences
type SyncConfig struct {
	IncludeArchived bool `json:"includeArchived" mapstructure:"includeArchived"`
	IntervalMinutes int  `json:"intervalMinutes" mapstructure:"intervalMinutes"`
	AutoSync        bool `json:"autoSync" mapstructure:"autoSync"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Format string `json:"format" mapstructure:"format"`
	Level  string `json:"level" mapstructure:"level"`
}

// DefaultConfig returns the default configuration rooted at dataDir
func DefaultConfig(dataDir string) *Config {
	return &Config{
		Version: 1,
		DataDir: dataDir,
		Attachments: AttachmentsConfig{
			Dir: filepath.Join(dataDir, "attachments"),
		},
		Backups: BackupsConfig{
			Dir: filepath.Join(dataDir, "backups"),
		},
		Sync: SyncConfig{
			IncludeArchived: false,
			IntervalMinutes: 15,
			AutoSync:        false,
		},
		Logging: LoggingConfig{
			Format: "human",
			Level:  "info",
		},
	}
}

// LoadConfig loads configuration from {dataDir}/config.json, falling back to
// defaults when no config file exists yet.
func LoadConfig(dataDir string) (*Config, error) {
	v := viper.New()

	v.SetDefault("version", 1)
	v.SetDefault("dataDir", dataDir)

	v.SetConfigName("config")
	v.SetConfigType("json")
	v.AddConfigPath(dataDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return DefaultConfig(dataDir), nil
		}
		return nil, err
	}

	cfg := DefaultConfig(dataDir)
	if err := v.Unmarshal(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Save writes the configuration to {dataDir}/config.json
func (c *Config) Save() error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(c.Path(), data, 0644)
}

// Path returns the location of the live config file.
func (c *Config) Path() string {
	return filepath.Join(c.DataDir, "config.json")
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Version != 1 {
		return &ConfigError{Field: "version", Message: "unsupported config version"}
	}
	if c.DataDir == "" {
		return &ConfigError{Field: "dataDir", Message: "data directory is required"}
	}
	if c.Sync.IntervalMinutes < 0 {
		return &ConfigError{Field: "sync.intervalMinutes", Message: "interval cannot be negative"}
	}
	return nil
}

// ConfigError represents a configuration error
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return "config error in field '" + e.Field + "': " + e.Message
}
