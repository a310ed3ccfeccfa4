package app

import (
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/specialistvlad/stackmark/internal/incremental"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	ProjectDir string // holds stackmark.hcl

	// PlatformPaths are shared platform roots searched after the project's
	// own platforms directory and the manifest's platform_paths.
	PlatformPaths []string
	// OutputFormat overrides the manifest's output_format.
	OutputFormat string

	CacheDir    string // defaults to <ProjectDir>/.stackmark/cache
	NoDiskCache bool
	CacheSize   int
	CacheTTL    time.Duration

	Comparator string
	Force      []string

	MetricsOut string

	LogFormat string
	LogLevel  string
}

// NewConfig validates cfg and fills defaults.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.ProjectDir == "" {
		return nil, errors.New("ProjectDir is a required configuration field and cannot be empty")
	}
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(cfg.ProjectDir, ".stackmark", "cache")
	}
	if cfg.CacheSize < 0 {
		return nil, fmt.Errorf("cache size must not be negative, got %d", cfg.CacheSize)
	}
	if cfg.CacheTTL < 0 {
		return nil, fmt.Errorf("cache ttl must not be negative, got %s", cfg.CacheTTL)
	}

	switch incremental.Comparator(cfg.Comparator) {
	case "":
		cfg.Comparator = string(incremental.CompareContentHash)
	case incremental.CompareContentHash, incremental.CompareTimestamp:
	default:
		return nil, fmt.Errorf("invalid comparator %q: must be %q or %q", cfg.Comparator, incremental.CompareContentHash, incremental.CompareTimestamp)
	}

	return &cfg, nil
}
