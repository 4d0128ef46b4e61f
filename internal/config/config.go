package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Default config file path.
const DefaultConfigPath = "~/.config/clipstash/config.yaml"

// Config holds all clipstash configuration.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	History HistoryConfig `yaml:"history"`
	Poll    PollConfig    `yaml:"poll"`
	Logging LoggingConfig `yaml:"logging"`
}

type StorageConfig struct {
	// Path is the storage root: the SQLite file and the payload tree both
	// live under it.
	Path       string `yaml:"path"`
	SQLiteFile string `yaml:"sqlite_file"`
}

type HistoryConfig struct {
	// MaxItems is the retention ceiling enforced after each insert.
	MaxItems int `yaml:"max_items"`
	// RecentLimit caps how many entries an empty search query returns.
	RecentLimit int `yaml:"recent_limit"`
}

type PollConfig struct {
	IntervalMS int `yaml:"interval_ms"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML config file at path and merges it with defaults.
// Returns an error if the file cannot be read or contains invalid YAML.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.validate()

	return cfg, nil
}

// validate clamps out-of-range values back to their defaults.
func (c *Config) validate() {
	def := DefaultConfig()
	if c.History.MaxItems <= 0 {
		c.History.MaxItems = def.History.MaxItems
	}
	if c.History.RecentLimit <= 0 {
		c.History.RecentLimit = def.History.RecentLimit
	}
	if c.Poll.IntervalMS <= 0 {
		c.Poll.IntervalMS = def.Poll.IntervalMS
	}
	if c.Storage.Path == "" {
		c.Storage.Path = def.Storage.Path
	}
	if c.Storage.SQLiteFile == "" {
		c.Storage.SQLiteFile = def.Storage.SQLiteFile
	}
}

// ExpandPath replaces a leading ~ with the user's home directory.
func ExpandPath(path string) (string, error) {
	if len(path) > 0 && path[0] == '~' {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, path[1:]), nil
	}
	return path, nil
}

// LoadOrCreate loads the config from the default path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreate() (*Config, error) {
	path, err := ExpandPath(DefaultConfigPath)
	if err != nil {
		return nil, err
	}
	return LoadOrCreateAt(path)
}

// LoadOrCreateAt loads the config from the given path. If the file does
// not exist, it creates the directory structure and writes defaults.
func LoadOrCreateAt(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg := DefaultConfig()

		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating config directory: %w", err)
		}

		data, err := yaml.Marshal(cfg)
		if err != nil {
			return nil, fmt.Errorf("marshaling default config: %w", err)
		}

		if err := os.WriteFile(path, data, 0644); err != nil {
			return nil, fmt.Errorf("writing default config: %w", err)
		}

		return cfg, nil
	}

	return Load(path)
}
