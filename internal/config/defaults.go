package config

// DefaultConfig returns a Config populated with all default values.
func DefaultConfig() *Config {
	return &Config{
		Storage: StorageConfig{
			Path:       "~/.local/share/clipstash",
			SQLiteFile: "clipstash.db",
		},
		History: HistoryConfig{
			MaxItems:    1000,
			RecentLimit: 50,
		},
		Poll: PollConfig{
			IntervalMS: 500,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}
