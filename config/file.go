// Package config loads process settings from ~/.linky/config.yaml and the
// environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// StorageConfig represents storage configuration from config file.
type StorageConfig struct {
	Archive struct {
		DSN string `yaml:"dsn"`
	} `yaml:"archive"`
	Changes struct {
		DSN string `yaml:"dsn"`
	} `yaml:"changes"`
	Files struct {
		Dir string `yaml:"dir"`
	} `yaml:"files"`
}

// ArchiveConfig holds the archive ceilings.
type ArchiveConfig struct {
	MaxEntries   int64 `yaml:"max_entries"`
	MaxSizeBytes int64 `yaml:"max_size_bytes"`
}

// FileConfig represents the structure of ~/.linky/config.yaml.
type FileConfig struct {
	Storage   StorageConfig `yaml:"storage"`
	Archive   ArchiveConfig `yaml:"archive"`
	RulesFile string        `yaml:"rules_file"`
	LogLevel  string        `yaml:"log_level"`
	LogFormat string        `yaml:"log_format"`
	API       struct {
		Addr string `yaml:"addr"`
	} `yaml:"api"`
	Sink struct {
		RemoteURL string `yaml:"remote_url"`
	} `yaml:"sink"`
}

// Path returns the location of the config file.
func Path() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".linky", "config.yaml"), nil
}

// LoadConfigFile loads configuration from ~/.linky/config.yaml. Returns nil
// if the file doesn't exist (not an error). Returns error if the file exists
// but cannot be parsed.
func LoadConfigFile() (*FileConfig, error) {
	configPath, err := Path()
	if err != nil {
		return nil, err
	}

	// Check if file exists
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, nil // File doesn't exist -- not an error
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg FileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &cfg, nil
}

// Settings are the resolved values every binary starts from. Flags may still
// override them.
type Settings struct {
	ArchiveDSN   string
	ChangesDSN   string
	FilesDir     string // empty means the archive is the sink
	MaxEntries   int64
	MaxSizeBytes int64
	RulesFile    string
	LogLevel     string
	LogFormat    string
	APIAddr      string
	RemoteURL    string
}

// Defaults returns the built-in settings.
func Defaults() Settings {
	return Settings{
		ArchiveDSN:   "archive.db",
		ChangesDSN:   "changes.db",
		MaxEntries:   10000,
		MaxSizeBytes: 100 * 1024 * 1024,
		LogLevel:     "info",
		LogFormat:    "console",
		APIAddr:      "localhost:8080",
	}
}

// Resolve layers the environment over file over the defaults. A nil file is
// allowed.
func Resolve(file *FileConfig) Settings {
	s := Defaults()

	if file != nil {
		setString(&s.ArchiveDSN, file.Storage.Archive.DSN)
		setString(&s.ChangesDSN, file.Storage.Changes.DSN)
		setString(&s.FilesDir, file.Storage.Files.Dir)
		setInt(&s.MaxEntries, file.Archive.MaxEntries)
		setInt(&s.MaxSizeBytes, file.Archive.MaxSizeBytes)
		setString(&s.RulesFile, file.RulesFile)
		setString(&s.LogLevel, file.LogLevel)
		setString(&s.LogFormat, file.LogFormat)
		setString(&s.APIAddr, file.API.Addr)
		setString(&s.RemoteURL, file.Sink.RemoteURL)
	}

	setString(&s.ArchiveDSN, os.Getenv("LINKY_ARCHIVE_DSN"))
	setString(&s.ChangesDSN, os.Getenv("LINKY_CHANGES_DSN"))
	setString(&s.FilesDir, os.Getenv("LINKY_FILES_DIR"))
	setInt(&s.MaxEntries, envInt("LINKY_ARCHIVE_MAX_ENTRIES"))
	setInt(&s.MaxSizeBytes, envInt("LINKY_ARCHIVE_MAX_SIZE_BYTES"))
	setString(&s.RulesFile, os.Getenv("LINKY_RULES_FILE"))
	setString(&s.LogLevel, os.Getenv("LINKY_LOG_LEVEL"))
	setString(&s.LogFormat, os.Getenv("LINKY_LOG_FORMAT"))
	setString(&s.APIAddr, os.Getenv("LINKY_API_ADDR"))
	setString(&s.RemoteURL, os.Getenv("LINKY_REMOTE_URL"))

	return s
}

// Load reads the config file and resolves settings.
func Load() (Settings, error) {
	file, err := LoadConfigFile()
	if err != nil {
		return Settings{}, err
	}
	return Resolve(file), nil
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int64, v int64) {
	if v > 0 {
		*dst = v
	}
}

// envInt returns the variable as an integer, or zero when unset or invalid.
func envInt(key string) int64 {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n
		}
	}
	return 0
}
