// Package config loads server configuration: defaults, then an optional YAML file
// named by VZ_CONFIG_PATH, then environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Incident source kinds
const (
	SourceHTTP       = "http"
	SourceDir        = "dir"
	SourceRepository = "repository"
)

// Config defines server configuration
type Config struct {
	Port  string      `yaml:"port"`
	Data  DataConfig  `yaml:"data"`
	DB    DBConfig    `yaml:"db"`
	Cache CacheConfig `yaml:"cache"`
	Map   MapConfig   `yaml:"map"`
	Log   LogConfig   `yaml:"log"`

	StatsPolicy string `yaml:"stats_policy"`
}

type DataConfig struct {
	// BaseURL wins over Dir when set
	BaseURL           string        `yaml:"base_url"`
	Dir               string        `yaml:"dir"`
	IncidentsResource string        `yaml:"incidents_resource"`
	IncidentsSource   string        `yaml:"incidents_source"`
	FetchTimeout      time.Duration `yaml:"fetch_timeout"`
}

type DBConfig struct {
	DatabaseURL string `yaml:"database_url"`
	SQLitePath  string `yaml:"sqlite_path"`
}

type CacheConfig struct {
	RedisURL string        `yaml:"redis_url"`
	TTL      time.Duration `yaml:"ttl"`
}

type MapConfig struct {
	Width  int    `yaml:"width"`
	Height int    `yaml:"height"`
	Fit    string `yaml:"fit"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in configuration
func Default() Config {
	return Config{
		Port: "8080",
		Data: DataConfig{
			Dir:               "./public",
			IncidentsResource: "data/vision_zero_ss.json",
			FetchTimeout:      10 * time.Second,
		},
		Cache: CacheConfig{
			TTL: 10 * time.Minute,
		},
		Map: MapConfig{
			Width:  960,
			Height: 600,
			Fit:    "height",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		StatsPolicy: "reset",
	}
}

// Load reads configuration from an optional YAML file and environment variables
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("VZ_CONFIG_PATH"); path != "" {
		if err := loadFromFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	setString(&cfg.Port, "PORT")
	setString(&cfg.Data.BaseURL, "DATA_BASE_URL")
	setString(&cfg.Data.Dir, "DATA_DIR")
	setString(&cfg.Data.IncidentsResource, "INCIDENTS_RESOURCE")
	setString(&cfg.Data.IncidentsSource, "INCIDENTS_SOURCE")
	setString(&cfg.DB.DatabaseURL, "DATABASE_URL")
	setString(&cfg.DB.SQLitePath, "SQLITE_PATH")
	setString(&cfg.Cache.RedisURL, "REDIS_URL")
	setString(&cfg.Map.Fit, "MAP_FIT")
	setString(&cfg.Log.Level, "LOG_LEVEL")
	setString(&cfg.Log.Format, "LOG_FORMAT")
	setString(&cfg.StatsPolicy, "STATS_POLICY")

	if err := setDuration(&cfg.Cache.TTL, "CACHE_TTL"); err != nil {
		return Config{}, err
	}
	if err := setDuration(&cfg.Data.FetchTimeout, "FETCH_TIMEOUT"); err != nil {
		return Config{}, err
	}
	if err := setInt(&cfg.Map.Width, "MAP_WIDTH"); err != nil {
		return Config{}, err
	}
	if err := setInt(&cfg.Map.Height, "MAP_HEIGHT"); err != nil {
		return Config{}, err
	}

	if cfg.Data.IncidentsSource == "" {
		cfg.Data.IncidentsSource = SourceDir
		if cfg.Data.BaseURL != "" {
			cfg.Data.IncidentsSource = SourceHTTP
		}
	}
	return cfg, cfg.Validate()
}

// Validate rejects values the server cannot run with
func (c Config) Validate() error {
	if c.Map.Width <= 0 || c.Map.Height <= 0 {
		return fmt.Errorf("config: map size must be positive, got %dx%d", c.Map.Width, c.Map.Height)
	}
	switch c.Data.IncidentsSource {
	case SourceHTTP:
		if c.Data.BaseURL == "" {
			return fmt.Errorf("config: incidents source %q needs DATA_BASE_URL", SourceHTTP)
		}
	case SourceDir, SourceRepository:
	default:
		return fmt.Errorf("config: unknown incidents source %q", c.Data.IncidentsSource)
	}
	return nil
}

func loadFromFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse config file: %w", err)
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("config: invalid %s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: invalid %s: %w", key, err)
	}
	*dst = d
	return nil
}
