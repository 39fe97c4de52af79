package internal

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Output formats for a plan.
const (
	FormatScript = "script"
	FormatJSON   = "json"
	FormatTable  = "table"
)

type Config struct {
	Library   string `mapstructure:"library"`
	Catalog   string `mapstructure:"catalog"`
	Selection string `mapstructure:"selection"`
	Workers   int    `mapstructure:"workers"`
	Timezone  string `mapstructure:"timezone"`
	Format    string `mapstructure:"format"`
	LogFile   string `mapstructure:"log_file"`
}

// LoadConfig reads mediaplan.toml from the user config dir, or from path
// when given, and applies MEDIAPLAN_* environment overrides.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("mediaplan")
		v.SetConfigType("toml")
		if configDir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(configDir, "mediaplan"))
		}
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("mediaplan")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	// library has no default: it must be supplied
	v.SetDefault("library", "")
	v.SetDefault("catalog", "media.db")
	v.SetDefault("selection", string(SelectFirst))
	v.SetDefault("workers", 1)
	v.SetDefault("timezone", "Local")
	v.SetDefault("format", FormatScript)
	v.SetDefault("log_file", "")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings a planning run depends on.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Library) == "" {
		return errors.New("library root is not set (use --library or library in mediaplan.toml)")
	}
	if strings.TrimSpace(c.Catalog) == "" {
		return errors.New("catalog path is not set")
	}
	if _, err := ParseSelection(c.Selection); err != nil {
		return err
	}
	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	switch c.Format {
	case FormatScript, FormatJSON, FormatTable:
	default:
		return fmt.Errorf("unknown format %q (want script, json or table)", c.Format)
	}
	return nil
}

// Location resolves the configured timezone for zoneless timestamps.
func (c *Config) Location() (*time.Location, error) {
	switch strings.TrimSpace(c.Timezone) {
	case "", "Local", "local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("unknown timezone %q: %w", c.Timezone, err)
	}
	return loc, nil
}
