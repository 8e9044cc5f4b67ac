package cli

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// DefaultConfigFile is read from the working directory when --config is
// not given.
const DefaultConfigFile = "doccore.toml"

// Config is the doccore.toml file.
type Config struct {
	// Database is the SQLite file used by act and state.
	Database string `toml:"database"`
	// Format is the default output format.
	Format string `toml:"format"`
	// MaxDepth limits prop resolution depth; 0 keeps the engine default.
	MaxDepth int       `toml:"max_depth"`
	Log      LogConfig `toml:"log"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}

func DefaultConfig() Config {
	return Config{
		Database: "doccore.db",
		Format:   "text",
		Log:      LogConfig{Level: "info"},
	}
}

// LoadConfig reads a config file. Missing fields take their defaults and
// unknown fields are rejected.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if err := loadToml(path, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.Database == "" {
		cfg.Database = "doccore.db"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if err := ValidateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

func ValidateConfig(cfg Config) error {
	if strings.TrimSpace(cfg.Database) == "" {
		return fmt.Errorf("config missing database")
	}
	if cfg.Format != "" && !isValidFormat(cfg.Format) {
		return fmt.Errorf("config format %q: must be one of %v", cfg.Format, ValidFormats)
	}
	if cfg.MaxDepth < 0 {
		return fmt.Errorf("config max_depth must not be negative")
	}
	if _, err := parseLevel(cfg.Log.Level); err != nil {
		return fmt.Errorf("config log.level: %w", err)
	}
	return nil
}
