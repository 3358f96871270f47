// Package config holds the run settings shared by every command.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"

	"gopkg.in/yaml.v3"

	"geosnap/geo"
	"geosnap/report"
)

// Config holds all application configuration
type Config struct {
	Workers     int             `yaml:"workers"`
	Thumbnails  ThumbnailConfig `yaml:"thumbnails"`
	Arrow       ArrowConfig     `yaml:"arrow"`
	Declination *float64        `yaml:"declination"`
	Outputs     OutputsConfig   `yaml:"outputs"`
	Ledger      string          `yaml:"ledger"`
	Log         LogConfig       `yaml:"log"`
}

type ThumbnailConfig struct {
	Size    int `yaml:"size"`
	Quality int `yaml:"quality"`
}

// ArrowConfig shapes the bearing arrow drawn in the KMZ: lengths in
// metres, the wing angle in degrees off the bearing and the line width in
// pixels.
type ArrowConfig struct {
	Length     float64 `yaml:"length"`
	WingLength float64 `yaml:"wing_length"`
	WingAngle  float64 `yaml:"wing_angle"`
	Width      float64 `yaml:"width"`
}

type OutputsConfig struct {
	Parquet bool `yaml:"parquet"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Workers: runtime.NumCPU(),
		Thumbnails: ThumbnailConfig{
			Size:    report.DefaultThumbnails.MaxSize,
			Quality: report.DefaultThumbnails.Quality,
		},
		Arrow: ArrowConfig{
			Length:     geo.DefaultArrow.Length,
			WingLength: geo.DefaultArrow.WingLength,
			WingAngle:  geo.DefaultArrow.WingAngle,
			Width:      4,
		},
		Ledger: defaultLedger(),
		Log:    LogConfig{Level: "info", Format: "text"},
	}
}

func defaultLedger() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".geosnap", "history.db")
	}
	return filepath.Join(home, ".geosnap", "history.db")
}

// Load builds the configuration from the defaults, then the YAML file at
// path when it is not empty, then GEOSNAP_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Workers = getEnvAsInt("GEOSNAP_WORKERS", c.Workers)
	c.Thumbnails.Size = getEnvAsInt("GEOSNAP_THUMBNAIL_SIZE", c.Thumbnails.Size)
	c.Thumbnails.Quality = getEnvAsInt("GEOSNAP_JPEG_QUALITY", c.Thumbnails.Quality)
	c.Arrow.Length = getEnvAsFloat("GEOSNAP_ARROW_LENGTH", c.Arrow.Length)
	c.Arrow.Width = getEnvAsFloat("GEOSNAP_ARROW_WIDTH", c.Arrow.Width)
	if value := os.Getenv("GEOSNAP_DECLINATION"); value != "" {
		if d, err := strconv.ParseFloat(value, 64); err == nil {
			c.Declination = &d
		}
	}
	c.Ledger = getEnv("GEOSNAP_LEDGER", c.Ledger)
	c.Log.Level = getEnv("GEOSNAP_LOG_LEVEL", c.Log.Level)
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}

// Validate rejects settings outside the ranges the reports support.
func (c *Config) Validate() error {
	switch {
	case c.Workers < 1:
		return fmt.Errorf("workers must be at least 1, got %d", c.Workers)
	case c.Thumbnails.Size < 200 || c.Thumbnails.Size > 1600:
		return fmt.Errorf("thumbnail size must be between 200 and 1600 px, got %d", c.Thumbnails.Size)
	case c.Thumbnails.Quality < 30 || c.Thumbnails.Quality > 100:
		return fmt.Errorf("jpeg quality must be between 30 and 100, got %d", c.Thumbnails.Quality)
	case c.Arrow.Length < 10 || c.Arrow.Length > 100:
		return fmt.Errorf("arrow length must be between 10 and 100 m, got %g", c.Arrow.Length)
	case c.Arrow.Width < 1 || c.Arrow.Width > 10:
		return fmt.Errorf("arrow width must be between 1 and 10 px, got %g", c.Arrow.Width)
	case c.Arrow.WingLength <= 0:
		return fmt.Errorf("arrow wing length must be positive, got %g", c.Arrow.WingLength)
	}
	return nil
}

// ThumbnailOptions converts the thumbnail settings for the report emitters.
func (c *Config) ThumbnailOptions() report.ThumbnailOptions {
	return report.ThumbnailOptions{MaxSize: c.Thumbnails.Size, Quality: c.Thumbnails.Quality}
}

func (c *Config) ArrowShape() geo.Arrow {
	return geo.Arrow{Length: c.Arrow.Length, WingLength: c.Arrow.WingLength, WingAngle: c.Arrow.WingAngle}
}

// Declinator returns the declination source, or nil when magnetic bearings
// are left uncorrected.
func (c *Config) Declinator() geo.Declinator {
	if c.Declination == nil {
		return nil
	}
	return geo.FixedDeclination(*c.Declination)
}
