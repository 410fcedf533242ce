// Package config loads service configuration from defaults, an optional YAML
// file, and environment variable overrides, in that order.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/sh3rwan/erbil-api/internal/scrape"
)

// Config holds the full service configuration.
type Config struct {
	// Server
	HTTPAddr string
	HTTPPort int
	BasePath string

	// Upstream source
	SourceURL string
	UserAgent string

	// Cache
	CacheTTL        time.Duration
	FetchTimeout    time.Duration
	RefreshInterval time.Duration

	// Source page shape
	Profile scrape.Profile
}

// Default returns the built-in configuration for the Erbil airport board.
func Default() Config {
	return Config{
		HTTPAddr:        "0.0.0.0",
		HTTPPort:        8080,
		BasePath:        "/api/v1/flights",
		SourceURL:       "https://erbilairport.com/flight-information",
		CacheTTL:        15 * time.Minute,
		FetchTimeout:    15 * time.Second,
		RefreshInterval: 10 * time.Minute,
		Profile:         scrape.DefaultProfile(),
	}
}

// fileConfig mirrors the YAML file shape. Durations are strings so the file
// can say "15m" rather than nanosecond counts.
type fileConfig struct {
	Addr            string          `yaml:"addr"`
	Port            int             `yaml:"port"`
	BasePath        string          `yaml:"basePath"`
	SourceURL       string          `yaml:"sourceUrl"`
	UserAgent       string          `yaml:"userAgent"`
	CacheTTL        string          `yaml:"cacheTtl"`
	FetchTimeout    string          `yaml:"fetchTimeout"`
	RefreshInterval string          `yaml:"refreshInterval"`
	Profile         *scrape.Profile `yaml:"profile"`
}

// Load builds the configuration. path may be empty, in which case only
// defaults and the environment apply. File values override defaults;
// environment variables override both.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)

	if cfg.SourceURL == "" {
		return Config{}, fmt.Errorf("sourceUrl is required")
	}
	if !strings.HasPrefix(cfg.BasePath, "/") {
		cfg.BasePath = "/" + cfg.BasePath
	}
	cfg.BasePath = strings.TrimRight(cfg.BasePath, "/")
	if len(cfg.Profile.Columns) == 0 {
		return Config{}, fmt.Errorf("profile.columns must not be empty")
	}

	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(b, &fc); err != nil {
		return fmt.Errorf("parsing config file: %w", err)
	}

	if fc.Addr != "" {
		cfg.HTTPAddr = fc.Addr
	}
	if fc.Port != 0 {
		cfg.HTTPPort = fc.Port
	}
	if fc.BasePath != "" {
		cfg.BasePath = fc.BasePath
	}
	if fc.SourceURL != "" {
		cfg.SourceURL = fc.SourceURL
	}
	if fc.UserAgent != "" {
		cfg.UserAgent = fc.UserAgent
	}
	if fc.Profile != nil {
		cfg.Profile = *fc.Profile
	}

	for _, d := range []struct {
		raw  string
		name string
		dst  *time.Duration
	}{
		{fc.CacheTTL, "cacheTtl", &cfg.CacheTTL},
		{fc.FetchTimeout, "fetchTimeout", &cfg.FetchTimeout},
		{fc.RefreshInterval, "refreshInterval", &cfg.RefreshInterval},
	} {
		if d.raw == "" {
			continue
		}
		dur, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("%s: %w", d.name, err)
		}
		*d.dst = dur
	}

	return nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPAddr = getEnv("HTTP_ADDR", cfg.HTTPAddr)
	cfg.HTTPPort = getEnvInt("HTTP_PORT", cfg.HTTPPort)
	cfg.BasePath = getEnv("BASE_PATH", cfg.BasePath)
	cfg.SourceURL = getEnv("SOURCE_URL", cfg.SourceURL)
	cfg.UserAgent = getEnv("USER_AGENT", cfg.UserAgent)
	cfg.CacheTTL = getEnvDuration("CACHE_TTL", cfg.CacheTTL)
	cfg.FetchTimeout = getEnvDuration("FETCH_TIMEOUT", cfg.FetchTimeout)
	cfg.RefreshInterval = getEnvDuration("REFRESH_INTERVAL", cfg.RefreshInterval)
}

func getEnv(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
