// Package config reads runtime settings from defaults, an optional YAML file
// and FAMILY_ATLAS_* environment variables, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"family-atlas/geo"
)

const envPrefix = "FAMILY_ATLAS_"

const (
	defaultSnapshotFile    = "family_atlas.json"
	defaultGeocodeInterval = time.Second
	defaultLogLevel        = "info"
	defaultQueueSize       = 4
)

type Config struct {
	BasePath        string        `yaml:"base_path"`
	HomeLat         float64       `yaml:"home_lat"`
	HomeLon         float64       `yaml:"home_lon"`
	HomeRadiusKm    float64       `yaml:"home_radius_km"`
	GeocoderURL     string        `yaml:"geocoder_url"`
	UserAgent       string        `yaml:"user_agent"`
	GeocodeTimeout  time.Duration `yaml:"geocode_timeout"`
	GeocodeInterval time.Duration `yaml:"geocode_interval"`
	SnapshotPath    string        `yaml:"snapshot_path"`
	LogLevel        string        `yaml:"log_level"`
	Development     bool          `yaml:"development"`
	Strict          bool          `yaml:"strict"`
	QueueSize       int           `yaml:"queue_size"`
}

func Default() *Config {
	return &Config{
		BasePath:        ".",
		HomeLat:         geo.DefaultHome.Lat,
		HomeLon:         geo.DefaultHome.Lon,
		HomeRadiusKm:    geo.DefaultHomeRadiusKm,
		GeocoderURL:     geo.DefaultNominatimURL,
		UserAgent:       geo.DefaultUserAgent,
		GeocodeTimeout:  geo.DefaultTimeout,
		GeocodeInterval: defaultGeocodeInterval,
		LogLevel:        defaultLogLevel,
		QueueSize:       defaultQueueSize,
	}
}

// Load builds the configuration. path may be empty; a named file that
// does not exist is an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.BasePath = readEnv("BASE_PATH", c.BasePath)
	c.HomeLat = parseFloat("HOME_LAT", c.HomeLat)
	c.HomeLon = parseFloat("HOME_LON", c.HomeLon)
	c.HomeRadiusKm = parseFloat("HOME_RADIUS_KM", c.HomeRadiusKm)
	c.GeocoderURL = readEnv("GEOCODER_URL", c.GeocoderURL)
	c.UserAgent = readEnv("USER_AGENT", c.UserAgent)
	c.GeocodeTimeout = parseDuration("GEOCODE_TIMEOUT", c.GeocodeTimeout)
	c.GeocodeInterval = parseDuration("GEOCODE_INTERVAL", c.GeocodeInterval)
	c.SnapshotPath = readEnv("SNAPSHOT_PATH", c.SnapshotPath)
	c.LogLevel = readEnv("LOG_LEVEL", c.LogLevel)
	c.Development = parseBool("DEVELOPMENT", c.Development)
	c.Strict = parseBool("STRICT", c.Strict)
	c.QueueSize = parseInt("QUEUE_SIZE", c.QueueSize)
}

func (c *Config) Validate() error {
	var problems []string
	if c.BasePath == "" {
		problems = append(problems, "base_path is empty")
	}
	if c.HomeLat < -90 || c.HomeLat > 90 {
		problems = append(problems, fmt.Sprintf("home_lat %v out of range", c.HomeLat))
	}
	if c.HomeLon < -180 || c.HomeLon > 180 {
		problems = append(problems, fmt.Sprintf("home_lon %v out of range", c.HomeLon))
	}
	if c.HomeRadiusKm < 0 {
		problems = append(problems, "home_radius_km is negative")
	}
	if c.GeocodeTimeout <= 0 {
		c.GeocodeTimeout = geo.DefaultTimeout
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if len(problems) > 0 {
		return errors.New("invalid config: " + strings.Join(problems, "; "))
	}
	return nil
}

// Snapshot returns the snapshot file path, defaulting to a file in the
// base folder.
func (c *Config) Snapshot() string {
	if c.SnapshotPath != "" {
		return c.SnapshotPath
	}
	return filepath.Join(c.BasePath, defaultSnapshotFile)
}

func readEnv(key, def string) string {
	if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
		return v
	}
	return def
}

func parseFloat(key string, def float64) float64 {
	if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			return parsed
		}
	}
	return def
}

func parseInt(key string, def int) int {
	if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func parseDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(envPrefix + key); ok && v != "" {
		if parsed, err := time.ParseDuration(v); err == nil {
			return parsed
		}
	}
	return def
}
