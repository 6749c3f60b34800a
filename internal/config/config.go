// Package config loads project configuration for static reflection.
//
// Configuration lives in .reflect/config.yml (or config.yaml) under the
// project root. Values are resolved with the following priority:
//  1. Environment variables (REFLECT_*)
//  2. Config file
//  3. Built-in defaults
package config

import (
	"path/filepath"
	"time"
)

// DirName is the per-project directory holding config and the fact store.
const DirName = ".reflect"

// Config represents the complete project configuration.
type Config struct {
	Autoload AutoloadConfig `yaml:"autoload" mapstructure:"autoload"`
	Paths    PathsConfig    `yaml:"paths" mapstructure:"paths"`
	Manifest ManifestConfig `yaml:"manifest" mapstructure:"manifest"`
	Cache    CacheConfig    `yaml:"cache" mapstructure:"cache"`
	Watch    WatchConfig    `yaml:"watch" mapstructure:"watch"`
}

// AutoloadConfig maps namespaces to source directories.
type AutoloadConfig struct {
	PSR4 []PSR4Mapping `yaml:"psr4" mapstructure:"psr4"`
}

// PSR4Mapping binds a namespace prefix to the directories holding its
// classes. An empty prefix is the fallback for the global namespace.
//
// Mappings are a list rather than a map because viper lowercases map keys,
// and namespace prefixes are case-sensitive.
type PSR4Mapping struct {
	Prefix string   `yaml:"prefix" mapstructure:"prefix"` // e.g. "Acme\\Shop\\"
	Dirs   []string `yaml:"dirs" mapstructure:"dirs"`     // relative to the project root
}

// PathsConfig narrows which files under the autoload roots are considered.
type PathsConfig struct {
	Include []string `yaml:"include" mapstructure:"include"` // glob patterns for class files
	Ignore  []string `yaml:"ignore" mapstructure:"ignore"`   // glob patterns to skip
}

// ManifestConfig lists YAML manifests describing classes without sources,
// such as PHP built-ins and extension classes.
type ManifestConfig struct {
	Files []string `yaml:"files" mapstructure:"files"`
}

// CacheConfig controls in-memory and on-disk caching of parsed facts.
type CacheConfig struct {
	RegistryCapacity int    `yaml:"registry_capacity" mapstructure:"registry_capacity"` // max reflectors kept in memory
	StorePath        string `yaml:"store_path" mapstructure:"store_path"`               // empty means .reflect/facts.db
	StoreEnabled     bool   `yaml:"store_enabled" mapstructure:"store_enabled"`
}

// WatchConfig configures the file watcher.
type WatchConfig struct {
	DebounceMs int `yaml:"debounce_ms" mapstructure:"debounce_ms"`
}

// Default returns a configuration with sensible defaults.
func Default() *Config {
	return &Config{
		Autoload: AutoloadConfig{
			PSR4: []PSR4Mapping{
				{Prefix: "", Dirs: []string{"src"}},
			},
		},
		Paths: PathsConfig{
			Include: []string{"**/*.php"},
			Ignore: []string{
				"vendor/**",
				"node_modules/**",
				".git/**",
				".reflect/**",
			},
		},
		Manifest: ManifestConfig{
			Files: []string{},
		},
		Cache: CacheConfig{
			RegistryCapacity: 10000,
			StorePath:        "", // Empty means .reflect/facts.db under the root
			StoreEnabled:     true,
		},
		Watch: WatchConfig{
			DebounceMs: 500,
		},
	}
}

// StorePathFor resolves the fact store location for a project root.
func (c *Config) StorePathFor(root string) string {
	path := c.Cache.StorePath
	if path == "" {
		return filepath.Join(root, DirName, "facts.db")
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(root, path)
}

// ManifestPathsFor resolves manifest files relative to a project root.
func (c *Config) ManifestPathsFor(root string) []string {
	paths := make([]string, 0, len(c.Manifest.Files))
	for _, file := range c.Manifest.Files {
		if filepath.IsAbs(file) {
			paths = append(paths, file)
			continue
		}
		paths = append(paths, filepath.Join(root, file))
	}
	return paths
}

// Debounce returns the watcher debounce window.
func (w WatchConfig) Debounce() time.Duration {
	return time.Duration(w.DebounceMs) * time.Millisecond
}
