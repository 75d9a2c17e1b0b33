package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/CTAG07/Darlingtonia/pkg/site"
	"github.com/CTAG07/Darlingtonia/pkg/templating"
	"github.com/natefinch/atomic"
	"gopkg.in/yaml.v3"
)

const envPrefix = "DARLINGTONIA_"

// AppConfig holds settings for the command itself rather than the site.
type AppConfig struct {
	LogLevel string `json:"log_level" yaml:"log_level"`
	// CorpusPath is a .txt, .md or .html file. Empty uses the built-in corpus.
	CorpusPath string `json:"corpus_path" yaml:"corpus_path"`
	// DatabasePath is the SQLite data source for the chain model.
	DatabasePath string `json:"database_path" yaml:"database_path"`
	// RobotsPath replaces the built-in robots.txt when set.
	RobotsPath string `json:"robots_path" yaml:"robots_path"`
	// MetricsTextfile is where build metrics are written for the node_exporter
	// textfile collector. Empty disables metrics.
	MetricsTextfile string `json:"metrics_textfile" yaml:"metrics_textfile"`
}

// Config is the top-level configuration struct that aggregates all other configs.
type Config struct {
	App       *AppConfig                 `json:"app_config" yaml:"app_config"`
	Build     *site.Config               `json:"build_config" yaml:"build_config"`
	Templates *templating.TemplateConfig `json:"template_config" yaml:"template_config"`
}

// DefaultAppConfig creates an app configuration with default values.
func DefaultAppConfig() *AppConfig {
	return &AppConfig{
		LogLevel:        "info",
		CorpusPath:      "",
		DatabasePath:    ":memory:",
		RobotsPath:      "",
		MetricsTextfile: "",
	}
}

// DefaultConfig returns a Config with every section set to its defaults.
func DefaultConfig() *Config {
	build := site.DefaultConfig()
	return &Config{
		App:       DefaultAppConfig(),
		Build:     &build,
		Templates: templating.DefaultConfig(),
	}
}

func isYAML(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return true
	}
	return false
}

func marshalConfig(path string, config *Config) ([]byte, error) {
	if isYAML(path) {
		return yaml.Marshal(config)
	}
	return json.MarshalIndent(config, "", "  ")
}

// WriteConfig atomically writes config to path, as YAML or JSON depending on
// the extension.
func WriteConfig(path string, config *Config) error {
	data, err := marshalConfig(path, config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err = os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}
	if err = atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadConfig reads the configuration from a JSON or YAML file at the given path.
// If the file doesn't exist, it creates one with default values.
func LoadConfig(path string) (*Config, error) {
	// Initialize with default configurations
	config := DefaultConfig()

	file, err := os.ReadFile(path)
	if err != nil {
		// If the file doesn't exist, create it with the default config.
		if os.IsNotExist(err) {
			if err = WriteConfig(path, config); err != nil {
				// Warn instead of failing, the build can still run with defaults.
				fmt.Fprintf(os.Stderr, "warning: failed to write default config file: %v\n", err)
			}
			return config, nil
		}
		// For other errors (e.g., permission denied), return the error.
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(file, config)
	} else {
		err = json.Unmarshal(file, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// A section set to null in the file falls back to its defaults.
	defaults := DefaultConfig()
	if config.App == nil {
		config.App = defaults.App
	}
	if config.Build == nil {
		config.Build = defaults.Build
	}
	if config.Templates == nil {
		config.Templates = defaults.Templates
	}
	return config, nil
}

// ApplyEnv overrides file settings with DARLINGTONIA_* variables found by lookup.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strVars := map[string]*string{
		"LOG_LEVEL":     &c.App.LogLevel,
		"CORPUS_PATH":   &c.App.CorpusPath,
		"DATABASE_PATH": &c.App.DatabasePath,
		"ROBOTS_PATH":   &c.App.RobotsPath,
		"METRICS_FILE":  &c.App.MetricsTextfile,
		"OUTPUT_DIR":    &c.Build.OutputDir,
	}
	for name, dst := range strVars {
		if v, ok := lookup(envPrefix + name); ok {
			*dst = v
		}
	}

	if v, ok := lookup(envPrefix + "BUILD_ID"); ok {
		id, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("invalid %sBUILD_ID %q: %w", envPrefix, v, err)
		}
		c.Build.BuildID = id
	}
	return nil
}

// parseLogLevel maps a config string to a slog level, defaulting to info.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
