package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration options for classmeter.
type Config struct {
	// Analysis settings
	Analysis AnalysisConfig `koanf:"analysis" toml:"analysis"`

	// File exclusion patterns
	Exclude ExcludeConfig `koanf:"exclude" toml:"exclude"`

	// Cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`
}

// AnalysisConfig controls how class files are analysed.
type AnalysisConfig struct {
	// Strict aborts a file on the first method that fails to decode.
	Strict      bool  `koanf:"strict" toml:"strict"`
	Workers     int   `koanf:"workers" toml:"workers"`             // <= 0 means 2x NumCPU
	MaxFileSize int64 `koanf:"max_file_size" toml:"max_file_size"` // bytes, 0 = unlimited
}

// ExcludeConfig defines file exclusion patterns.
type ExcludeConfig struct {
	Patterns  []string `koanf:"patterns" toml:"patterns"` // gitignore syntax
	Dirs      []string `koanf:"dirs" toml:"dirs"`
	Gitignore bool     `koanf:"gitignore" toml:"gitignore"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format" toml:"format"` // text, json, markdown, toon
	Color   bool   `koanf:"color" toml:"color"`
	Verbose bool   `koanf:"verbose" toml:"verbose"`
}

// Formats lists the accepted output.format values.
var Formats = []string{"text", "json", "markdown", "toon"}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Analysis: AnalysisConfig{
			Strict:      false,
			Workers:     0,
			MaxFileSize: 0,
		},
		Exclude: ExcludeConfig{
			Patterns: []string{},
			Dirs: []string{
				".git",
				".classmeter",
				"node_modules",
			},
			Gitignore: true,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".classmeter/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format:  "text",
			Color:   true,
			Verbose: false,
		},
	}
}

// Load loads configuration from a file on top of the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}

	return cfg, nil
}

// configNames are searched in order within each search directory.
var configNames = []string{
	"classmeter.toml",
	"classmeter.yaml",
	"classmeter.yml",
	"classmeter.json",
	".classmeter.toml",
	".classmeter.yaml",
	".classmeter.yml",
	".classmeter.json",
}

var searchDirs = []string{".", ".classmeter"}

// FindConfigFile returns the first config file found in the standard
// locations under root, or "".
func FindConfigFile(root string) string {
	for _, dir := range searchDirs {
		for _, name := range configNames {
			path := filepath.Join(root, dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// LoadResult is a loaded config and the file it came from.
type LoadResult struct {
	Config *Config
	// Source is the config file path, or "" when defaults were used.
	Source string
}

type loadOptions struct {
	path string
	root string
}

// LoadOption configures LoadConfig.
type LoadOption func(*loadOptions)

// WithPath loads an explicit file instead of searching.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// WithRoot searches for a config file under root instead of the working directory.
func WithRoot(root string) LoadOption {
	return func(o *loadOptions) {
		o.root = root
	}
}

// LoadConfig loads and validates configuration. An explicit path must
// exist; otherwise the standard locations are searched and defaults are
// used if nothing is found.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	o := loadOptions{root: "."}
	for _, opt := range opts {
		opt(&o)
	}

	path := o.path
	if path == "" {
		path = FindConfigFile(o.root)
	}
	if path == "" {
		return &LoadResult{Config: DefaultConfig()}, nil
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &LoadResult{Config: cfg, Source: path}, nil
}

// LoadOrDefault tries to load config from standard locations or returns defaults.
func LoadOrDefault() *Config {
	res, err := LoadConfig()
	if err != nil {
		return DefaultConfig()
	}
	return res.Config
}

// Validate reports every invalid setting.
func (c *Config) Validate() error {
	var errs []error
	if c.Analysis.Workers < 0 {
		errs = append(errs, fmt.Errorf("analysis.workers must be >= 0, got %d", c.Analysis.Workers))
	}
	if c.Analysis.MaxFileSize < 0 {
		errs = append(errs, fmt.Errorf("analysis.max_file_size must be >= 0, got %d", c.Analysis.MaxFileSize))
	}
	if c.Cache.TTL < 0 {
		errs = append(errs, fmt.Errorf("cache.ttl must be >= 0, got %d", c.Cache.TTL))
	}
	if c.Cache.Enabled && c.Cache.Dir == "" {
		errs = append(errs, errors.New("cache.dir must be set when the cache is enabled"))
	}
	if !slices.Contains(Formats, c.Output.Format) {
		errs = append(errs, fmt.Errorf("output.format %q is not one of %s", c.Output.Format, strings.Join(Formats, ", ")))
	}
	return errors.Join(errs...)
}

// IsExcludedDir reports whether a directory base name is in exclude.dirs.
func (c *Config) IsExcludedDir(name string) bool {
	return slices.Contains(c.Exclude.Dirs, name)
}
