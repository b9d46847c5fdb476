// Package config loads configuration from environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DefaultExcludeDirs lists directories that never hold documentation.
var DefaultExcludeDirs = []string{
	"node_modules",
	".git",
	".next",
	"dist",
	"build",
	"out",
	"coverage",
	"tmp",
	"temp",
	"_archived",
	"vibedocs",
	".project-template",
	"test-projects",
}

// Config holds all server configuration.
type Config struct {
	// Server
	ListenAddr  string
	MetricsAddr string // empty disables the metrics listener

	// Logging
	LogLevel  string
	LogFormat string

	// Projects
	ProjectsDir string // absolute, symlink-free
	ExcludeDirs []string

	// Uploads
	MaxUploadSize int64

	// Rendering
	RenderCacheSize int

	// Change notification
	WatchEnabled  bool
	WatchDebounce time.Duration

	// Search
	SearchMaxResults int

	// UI override (serve from disk instead of embedded assets)
	WebappDir string

	// Upload archive (optional, disabled when bucket is empty)
	ArchiveBucket    string
	ArchiveEndpoint  string
	ArchiveRegion    string
	ArchiveAccessKey string
	ArchiveSecretKey string
	ArchiveUseSSL    bool
}

// ArchiveEnabled reports whether uploads are mirrored to S3.
func (c *Config) ArchiveEnabled() bool {
	return c.ArchiveBucket != ""
}

// Load reads an optional .env file, then configuration from environment
// variables with defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	metricsAddr, ok := os.LookupEnv("METRICS_ADDR")
	if !ok {
		metricsAddr = ":9090"
	}

	cfg := &Config{
		ListenAddr:       envOr("LISTEN_ADDR", ":8080"),
		MetricsAddr:      metricsAddr,
		LogLevel:         envOr("LOG_LEVEL", "info"),
		LogFormat:        envOr("LOG_FORMAT", "console"),
		ProjectsDir:      envOr("DOCS_PROJECTS_DIR", ""),
		ExcludeDirs:      envList("DOCS_EXCLUDE_DIRS", DefaultExcludeDirs),
		MaxUploadSize:    envInt64("MAX_UPLOAD_SIZE", 100*1024*1024), // 100MB default
		RenderCacheSize:  envInt("RENDER_CACHE_SIZE", 256),
		WatchEnabled:     envBool("WATCH_ENABLED", true),
		WatchDebounce:    envDuration("WATCH_DEBOUNCE", 150*time.Millisecond),
		SearchMaxResults: envInt("SEARCH_MAX_RESULTS", 20),
		WebappDir:        envOr("WEBAPP_DIR", ""),
		ArchiveBucket:    envOr("ARCHIVE_S3_BUCKET", ""),
		ArchiveEndpoint:  envOr("ARCHIVE_S3_ENDPOINT", "http://localhost:9000"),
		ArchiveRegion:    envOr("ARCHIVE_S3_REGION", "us-east-1"),
		ArchiveAccessKey: envOr("ARCHIVE_S3_ACCESS_KEY", ""),
		ArchiveSecretKey: envOr("ARCHIVE_S3_SECRET_KEY", ""),
		ArchiveUseSSL:    envBool("ARCHIVE_S3_USE_SSL", false),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.ProjectsDir == "" {
		return fmt.Errorf("DOCS_PROJECTS_DIR is required")
	}
	abs, err := filepath.Abs(c.ProjectsDir)
	if err != nil {
		return fmt.Errorf("DOCS_PROJECTS_DIR: %w", err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return fmt.Errorf("DOCS_PROJECTS_DIR: %w", err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return fmt.Errorf("DOCS_PROJECTS_DIR: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("DOCS_PROJECTS_DIR %q is not a directory", c.ProjectsDir)
	}
	c.ProjectsDir = resolved

	if c.MaxUploadSize <= 0 {
		return fmt.Errorf("MAX_UPLOAD_SIZE must be positive")
	}
	if c.RenderCacheSize <= 0 {
		return fmt.Errorf("RENDER_CACHE_SIZE must be positive")
	}
	if c.SearchMaxResults <= 0 {
		return fmt.Errorf("SEARCH_MAX_RESULTS must be positive")
	}
	if c.WatchDebounce < 0 {
		return fmt.Errorf("WATCH_DEBOUNCE must not be negative")
	}
	if c.ArchiveEnabled() && (c.ArchiveAccessKey == "" || c.ArchiveSecretKey == "") {
		return fmt.Errorf("ARCHIVE_S3_ACCESS_KEY and ARCHIVE_S3_SECRET_KEY are required when ARCHIVE_S3_BUCKET is set")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return i
}

func envInt64(key string, fallback int64) int64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	i, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return fallback
	}
	return i
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback
	}
	return d
}

// envList parses a comma-separated list, dropping blank items.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return append([]string(nil), fallback...)
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
