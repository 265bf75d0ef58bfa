package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all pipeline and API settings, populated from environment variables.
type Config struct {
	DataDir           string
	BaseURL           string
	StartYear         int
	DownloadTimeout   time.Duration
	IngestConcurrency int
	MaxDropFraction   float64

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	MapSampleMax   int
	FilterCacheTTL time.Duration
}

// Load reads configuration from environment variables, applying defaults where
// unset. A .env file in the working directory is loaded first if present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	startYear, err := parsePositiveInt("START_YEAR", 2016)
	if err != nil {
		return nil, err
	}

	downloadTimeout, err := parseDuration("DOWNLOAD_TIMEOUT", 5*time.Minute)
	if err != nil {
		return nil, err
	}

	concurrency, err := parsePositiveInt("INGEST_CONCURRENCY", 4)
	if err != nil {
		return nil, err
	}

	maxDrop, err := parseFraction("MAX_DROP_FRACTION", 0.25)
	if err != nil {
		return nil, err
	}

	shutdownTimeout, err := parseDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}

	mapSampleMax, err := parsePositiveInt("MAP_SAMPLE_MAX", 200000)
	if err != nil {
		return nil, err
	}

	cacheTTL, err := parseDuration("FILTER_CACHE_TTL", time.Hour)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DataDir:           envOrDefault("DATA_DIR", "data"),
		BaseURL:           envOrDefault("BASE_URL", "https://seshat.datasd.org/get_it_done_reports"),
		StartYear:         startYear,
		DownloadTimeout:   downloadTimeout,
		IngestConcurrency: concurrency,
		MaxDropFraction:   maxDrop,

		HTTPAddr:        envOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        envOrDefault("LOG_LEVEL", "info"),
		LogFormat:       envOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		MapSampleMax:   mapSampleMax,
		FilterCacheTTL: cacheTTL,
	}

	if cfg.DataDir == "" {
		return nil, errors.New("DATA_DIR is required")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New("BASE_URL is required")
	}
	if cfg.StartYear < 2016 {
		return nil, errors.New("START_YEAR must be 2016 or later")
	}

	return cfg, nil
}

// RawDir is where ingested CSV exports land.
func (c *Config) RawDir() string { return filepath.Join(c.DataDir, "raw") }

// ProcessedDir holds the canonical requests parquet.
func (c *Config) ProcessedDir() string { return filepath.Join(c.DataDir, "processed") }

// AggregatedDir holds one parquet file per dashboard aggregation.
func (c *Config) AggregatedDir() string { return filepath.Join(c.DataDir, "aggregated") }

// DBPath is the file-backed DuckDB database used during builds.
func (c *Config) DBPath() string { return filepath.Join(c.DataDir, "db", "get_it_done.duckdb") }

// CanonicalPath is the deduplicated service-request parquet file.
func (c *Config) CanonicalPath() string {
	return filepath.Join(c.ProcessedDir(), "requests.parquet")
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func parsePositiveInt(key string, fallback int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return n, nil
}

func parseDuration(key string, fallback time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", key, s)
	}
	return d, nil
}

func parseFraction(key string, fallback float64) (float64, error) {
	s := os.Getenv(key)
	if s == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 || f > 1 {
		return 0, fmt.Errorf("invalid %s: %q (want a fraction in (0, 1])", key, s)
	}
	return f, nil
}
