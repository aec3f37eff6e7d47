// Package models defines data structures for configuration and download results.
package models

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultSourceURL = "https://archive.org/download/twilight-warez-cd-pack-1-tm-89/"
	DefaultOutputDir = "./downloads"
	DefaultTimeout   = 30 * time.Second
	DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"
)

// Config holds runtime configuration for a list or download run.
// Values come from CLI flags, optionally seeded from a YAML file.
type Config struct {
	SourceURL         string          `yaml:"url"`
	OutputDir         string          `yaml:"output"`
	AllowedExtensions map[string]bool `yaml:"-"`
	SkipThumbnails    bool            `yaml:"skip_thumbs"`
	Resume            bool            `yaml:"resume"`
	Timeout           time.Duration   `yaml:"timeout"`
	UserAgent         string          `yaml:"user_agent"`
	HistoryDB         string          `yaml:"history_db"`

	// Types is the raw extension list as written in a config file.
	Types []string `yaml:"types"`
}

// DefaultConfig returns a Config with every field at its default.
func DefaultConfig() *Config {
	return &Config{
		SourceURL:         DefaultSourceURL,
		OutputDir:         DefaultOutputDir,
		AllowedExtensions: map[string]bool{},
		Resume:            true,
		Timeout:           DefaultTimeout,
		UserAgent:         DefaultUserAgent,
	}
}

// LoadConfig reads a YAML config file on top of the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	cfg.SetExtensions(cfg.Types)
	return cfg, nil
}

// SetExtensions replaces the allowed extension set. Entries may carry a
// leading dot, mixed case or comma-separated lists ("iso,.BIN").
func (c *Config) SetExtensions(types []string) {
	c.AllowedExtensions = NormalizeExtensions(types)
	c.Types = c.ExtensionList()
}

// ExtensionList returns the allowed extensions in sorted order.
func (c *Config) ExtensionList() []string {
	exts := make([]string, 0, len(c.AllowedExtensions))
	for ext := range c.AllowedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// Validate fills in zero values and rejects configs that cannot run.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.SourceURL) == "" {
		return fmt.Errorf("source url must not be empty")
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.UserAgent == "" {
		c.UserAgent = DefaultUserAgent
	}
	if c.AllowedExtensions == nil {
		c.AllowedExtensions = map[string]bool{}
	}
	return nil
}

// NormalizeExtensions lower-cases extensions and strips leading dots.
func NormalizeExtensions(types []string) map[string]bool {
	exts := make(map[string]bool)
	for _, t := range types {
		for _, part := range strings.Split(t, ",") {
			ext := strings.TrimLeft(strings.ToLower(strings.TrimSpace(part)), ".")
			if ext != "" {
				exts[ext] = true
			}
		}
	}
	return exts
}
