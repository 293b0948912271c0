// Package config loads and validates application configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration.
type Config struct {
	// Catalog settings.
	CatalogDir  string // Directory of per-category JSON catalog files.
	CatalogGlob string // Glob pattern within CatalogDir.
	DatabaseURL string // Optional Postgres URL; when set, the catalog loads from the database instead of files.
	QueryTTL    time.Duration

	// Datasheet enrichment store.
	DatasheetPath string // SQLite file path; empty disables enrichment.

	// External reasoning collaborator.
	ReasonerURL     string // Empty disables the fallback tier entirely.
	ReasonerAPIKey  string
	ReasonerTimeout time.Duration
	CompatTTL       time.Duration

	// Pipeline settings.
	Workers     int
	BOMRevision string

	// Catalog hot reload.
	WatchCatalog  bool
	WatchDebounce time.Duration

	// OTEL settings.
	OTELEndpoint string
	OTELInsecure bool
	ServiceName  string

	// Operational settings.
	LogLevel string
}

// Load reads configuration from environment variables with sensible
// defaults. All parse failures are collected and reported together.
func Load() (Config, error) {
	var errs []error
	collectInt := func(key string, def int) int {
		v, err := envInt(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	collectBool := func(key string, def bool) bool {
		v, err := envBool(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}
	collectDuration := func(key string, def time.Duration) time.Duration {
		v, err := envDuration(key, def)
		if err != nil {
			errs = append(errs, err)
		}
		return v
	}

	cfg := Config{
		CatalogDir:      envStr("KAIRO_CATALOG_DIR", "./catalog"),
		CatalogGlob:     envStr("KAIRO_CATALOG_GLOB", "**/*.json"),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		QueryTTL:        collectDuration("KAIRO_QUERY_TTL", 5*time.Minute),
		DatasheetPath:   envStr("KAIRO_DATASHEET_PATH", ""),
		ReasonerURL:     envStr("KAIRO_REASONER_URL", ""),
		ReasonerAPIKey:  envStr("KAIRO_REASONER_API_KEY", ""),
		ReasonerTimeout: collectDuration("KAIRO_REASONER_TIMEOUT", 15*time.Second),
		CompatTTL:       collectDuration("KAIRO_COMPAT_TTL", 24*time.Hour),
		Workers:         collectInt("KAIRO_WORKERS", 4),
		BOMRevision:     envStr("KAIRO_BOM_REVISION", "A"),
		WatchCatalog:    collectBool("KAIRO_WATCH_CATALOG", false),
		WatchDebounce:   collectDuration("KAIRO_WATCH_DEBOUNCE", 500*time.Millisecond),
		OTELEndpoint:    envStr("OTEL_EXPORTER_OTLP_ENDPOINT", ""),
		OTELInsecure:    collectBool("OTEL_EXPORTER_OTLP_INSECURE", false),
		ServiceName:     envStr("OTEL_SERVICE_NAME", "kairo"),
		LogLevel:        envStr("KAIRO_LOG_LEVEL", "info"),
	}
	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks that required configuration is present.
func (c Config) Validate() error {
	if c.CatalogDir == "" && c.DatabaseURL == "" {
		return fmt.Errorf("config: KAIRO_CATALOG_DIR or DATABASE_URL is required")
	}
	if c.Workers <= 0 {
		return fmt.Errorf("config: KAIRO_WORKERS must be positive")
	}
	if c.ReasonerTimeout <= 0 {
		return fmt.Errorf("config: KAIRO_REASONER_TIMEOUT must be positive")
	}
	return nil
}

func envStr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func envInt(key string, defaultVal int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid integer", key, v)
	}
	return n, nil
}

func envBool(key string, defaultVal bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s=%q is not a valid boolean", key, v)
	}
	return b, nil
}

func envDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s=%q is not a valid duration", key, v)
	}
	return d, nil
}
