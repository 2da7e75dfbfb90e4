// Copyright 2026 The Graft Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for graft's CLI
// binaries (cmd/graft-admin, cmd/graft-browse).
//
// Configuration is loaded from a single file specified by:
//   - GRAFT_ADMIN_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. This ensures deterministic,
// auditable configuration with no hidden overrides.
//
// The config file may contain environment-specific sections (development,
// staging, production) that override base values when the environment matches.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local working copies on a developer machine.
	Development Environment = "development"
	// Staging is for pre-production testing against staging repositories.
	Staging Environment = "staging"
	// Production is for working copies holding production repository checkouts.
	Production Environment = "production"
)

// Config is the master configuration for graft's CLI binaries.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Store configures the relational store wrapper's open behavior.
	Store StoreConfig `yaml:"store"`

	// Seal configures pristine-at-rest encryption.
	Seal SealConfig `yaml:"seal"`

	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths   *PathsConfig   `yaml:"paths,omitempty"`
	Store   *StoreConfig   `yaml:"store,omitempty"`
	Seal    *SealConfig    `yaml:"seal,omitempty"`
	Logging *LoggingConfig `yaml:"logging,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// WCRoot is the absolute path to the working copy this CLI
	// invocation operates on. Required.
	WCRoot string `yaml:"wcroot"`

	// AdminDirName is the name of the administrative subdirectory
	// inside WCRoot holding the store, pristine directory, and temp
	// directory. Default: ".graft".
	AdminDirName string `yaml:"admin_dir_name"`

	// State is where cross-WCROOT CLI state lives (TUI history,
	// cached fuzzy-jump indexes).
	State string `yaml:"state"`
}

// StoreConfig configures how the relational store is opened.
type StoreConfig struct {
	// AutoUpgrade applies schema upgrade scripts automatically when the
	// on-disk schema version is older than the compiled-in version.
	// Default: true (development), false (production).
	AutoUpgrade bool `yaml:"auto_upgrade"`

	// EnforceEmptyWorkQueue fails Open with a cleanup-required error if
	// the work queue is non-empty, forcing an explicit replay step
	// before further mutation. Default: true.
	EnforceEmptyWorkQueue bool `yaml:"enforce_empty_work_queue"`

	// PoolSize is the number of pooled connections handed to
	// maintenance tools (graft-admin) that read many WCROOTs
	// concurrently; the working copy's own single-connection-per-root
	// model (see lib/wc) does not use this value.
	PoolSize int `yaml:"pool_size"`
}

// SealConfig configures optional pristine-at-rest encryption.
type SealConfig struct {
	// Recipients is a list of age public keys (age1... format) new
	// pristine blobs are encrypted to. Empty disables encryption.
	Recipients []string `yaml:"recipients"`

	// PrivateKeyPath is the path to a file holding an age private key
	// (AGE-SECRET-KEY-1... format) used to decrypt pristine reads.
	// Required only when Recipients is non-empty and the CLI needs to
	// read pristine content, not just write it.
	PrivateKeyPath string `yaml:"private_key_path"`
}

// LoggingConfig configures the structured logger shared by every CLI
// binary.
type LoggingConfig struct {
	// Level is one of "debug", "info", "warn", "error". Default: "info".
	Level string `yaml:"level"`

	// Format is one of "text" or "json". Default: "text".
	Format string `yaml:"format"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			AdminDirName: ".graft",
			State:        filepath.Join(homeDir, ".cache", "graft"),
		},
		Store: StoreConfig{
			AutoUpgrade:           true,
			EnforceEmptyWorkQueue: true,
			PoolSize:              4,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from the GRAFT_ADMIN_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if GRAFT_ADMIN_CONFIG is not set, this fails.
// This ensures deterministic, auditable configuration with no hidden overrides.
func Load() (*Config, error) {
	configPath := os.Getenv("GRAFT_ADMIN_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("GRAFT_ADMIN_CONFIG environment variable not set; " +
			"set it to the path of your graft-admin.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// The config file is the single source of truth. Environment variables do not
// override config values - this ensures deterministic, auditable configuration.
// The only expansion performed is ${HOME} and similar path variables for portability.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	// Apply environment-specific overrides (development/staging/production sections in the file).
	cfg.applyEnvironmentOverrides()

	// Expand ${HOME} and similar variables in paths for portability.
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: a production working copy should never
		// silently apply a schema upgrade or skip work-queue cleanup.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Store: &StoreConfig{
					AutoUpgrade:           false,
					EnforceEmptyWorkQueue: true,
				},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.WCRoot != "" {
			c.Paths.WCRoot = overrides.Paths.WCRoot
		}
		if overrides.Paths.AdminDirName != "" {
			c.Paths.AdminDirName = overrides.Paths.AdminDirName
		}
		if overrides.Paths.State != "" {
			c.Paths.State = overrides.Paths.State
		}
	}

	if overrides.Store != nil {
		// AutoUpgrade and EnforceEmptyWorkQueue are bools, so we always
		// apply them from overrides rather than only on non-zero-value.
		c.Store.AutoUpgrade = overrides.Store.AutoUpgrade
		c.Store.EnforceEmptyWorkQueue = overrides.Store.EnforceEmptyWorkQueue
		if overrides.Store.PoolSize != 0 {
			c.Store.PoolSize = overrides.Store.PoolSize
		}
	}

	if overrides.Seal != nil {
		if len(overrides.Seal.Recipients) > 0 {
			c.Seal.Recipients = overrides.Seal.Recipients
		}
		if overrides.Seal.PrivateKeyPath != "" {
			c.Seal.PrivateKeyPath = overrides.Seal.PrivateKeyPath
		}
	}

	if overrides.Logging != nil {
		if overrides.Logging.Level != "" {
			c.Logging.Level = overrides.Logging.Level
		}
		if overrides.Logging.Format != "" {
			c.Logging.Format = overrides.Logging.Format
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Paths.WCRoot = expandVars(c.Paths.WCRoot, vars)
	c.Paths.State = expandVars(c.Paths.State, vars)
	c.Seal.PrivateKeyPath = expandVars(c.Seal.PrivateKeyPath, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.WCRoot == "" {
		errs = append(errs, fmt.Errorf("paths.wcroot is required"))
	}

	if c.Paths.AdminDirName == "" {
		errs = append(errs, fmt.Errorf("paths.admin_dir_name is required"))
	}

	if len(c.Seal.Recipients) > 0 {
		for _, recipient := range c.Seal.Recipients {
			if recipient == "" {
				errs = append(errs, fmt.Errorf("seal.recipients contains an empty entry"))
			}
		}
	}

	logLevels := []string{"debug", "info", "warn", "error"}
	if !contains(logLevels, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level must be one of: %v", logLevels))
	}

	logFormats := []string{"text", "json"}
	if !contains(logFormats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", logFormats))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// AdminDir returns the absolute path to the working copy's
// administrative subdirectory (WCRoot joined with AdminDirName).
func (c *Config) AdminDir() string {
	return filepath.Join(c.Paths.WCRoot, c.Paths.AdminDirName)
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.State,
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}

func contains(slice []string, s string) bool {
	for _, v := range slice {
		if v == s {
			return true
		}
	}
	return false
}
