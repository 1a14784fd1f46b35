// Package config resolves honors settings from command-line flags, the
// environment and a .honors.yaml file.
//
// Priority order (highest to lowest):
//  1. CLI flags (--report, --fail-on-regression, --store-counts, --catalog, --cache, --cache-path)
//  2. Environment variables (HONORS_REPORT, HONORS_FAIL_ON_REGRESSION, HONORS_STORE_COUNTS,
//     HONORS_CATALOG, HONORS_CACHE, HONORS_CACHE_DIR)
//  3. .honors.yaml (report, fail_on_regression, store_counts, catalog, cache.backend, cache.path)
//  4. Defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/roach88/honors/internal/cache"
)

// FileName is the configuration file looked up in the working directory.
const FileName = ".honors.yaml"

// Defaults.
const (
	DefaultCacheBackend = cache.BackendSQLite
	DefaultCacheDir     = ".honors_cache"
)

// Sources recorded in Resolved.Sources.
const (
	SourceCLI     = "cli"
	SourceEnv     = "env"
	SourceFile    = "file"
	SourceDefault = "default"
)

// File is the on-disk configuration. Pointer fields distinguish "unset"
// from the zero value.
type File struct {
	Report           string    `yaml:"report"`
	FailOnRegression *bool     `yaml:"fail_on_regression"`
	StoreCounts      *bool     `yaml:"store_counts"`
	Catalog          string    `yaml:"catalog"`
	Cache            CacheFile `yaml:"cache"`
}

// CacheFile is the cache section of File.
type CacheFile struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// Flags holds command-line values and whether each was set explicitly.
type Flags struct {
	ConfigPath string

	Report              string
	ReportSet           bool
	FailOnRegression    bool
	FailOnRegressionSet bool
	StoreCounts         bool
	StoreCountsSet      bool
	Catalog             string
	CatalogSet          bool
	CacheBackend        string
	CacheBackendSet     bool
	CacheDir            string
	CacheDirSet         bool
}

// Resolved is the final configuration.
type Resolved struct {
	Report           string
	FailOnRegression bool
	StoreCounts      bool
	Catalog          string
	CacheBackend     string
	CacheDir         string

	// ConfigFile is the file that was read, or "" if none.
	ConfigFile string
	// Sources maps each setting's file key to where its value came from.
	Sources map[string]string
}

// Find returns the configuration file to use: ./.honors.yaml, then
// <user config dir>/honors/.honors.yaml. It returns "" if neither exists.
func Find() string {
	if _, err := os.Stat(FileName); err == nil {
		return FileName
	}
	configHome, err := os.UserConfigDir()
	if err != nil || configHome == "" || configHome == "/" {
		return ""
	}
	path := filepath.Join(configHome, "honors", FileName)
	if _, err := os.Stat(path); err == nil {
		return path
	}
	return ""
}

// Load reads and parses a configuration file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	return &f, nil
}

// Resolve merges flags, environment, file and defaults. An explicit
// flags.ConfigPath must exist; otherwise Find is used.
func Resolve(flags Flags) (*Resolved, error) {
	path := flags.ConfigPath
	if path == "" {
		path = Find()
	}
	file := &File{}
	if path != "" {
		var err error
		if file, err = Load(path); err != nil {
			return nil, err
		}
	}

	r := &Resolved{
		ConfigFile:   path,
		CacheBackend: DefaultCacheBackend,
		CacheDir:     DefaultCacheDir,
		Sources: map[string]string{
			"report":             SourceDefault,
			"fail_on_regression": SourceDefault,
			"store_counts":       SourceDefault,
			"catalog":            SourceDefault,
			"cache.backend":      SourceDefault,
			"cache.path":         SourceDefault,
		},
	}

	var errs []error
	resolveString(r, "report", &r.Report, flags.Report, flags.ReportSet, "HONORS_REPORT", file.Report)
	resolveString(r, "catalog", &r.Catalog, flags.Catalog, flags.CatalogSet, "HONORS_CATALOG", file.Catalog)
	resolveString(r, "cache.backend", &r.CacheBackend, flags.CacheBackend, flags.CacheBackendSet, "HONORS_CACHE", file.Cache.Backend)
	resolveString(r, "cache.path", &r.CacheDir, flags.CacheDir, flags.CacheDirSet, "HONORS_CACHE_DIR", file.Cache.Path)
	errs = append(errs,
		resolveBool(r, "fail_on_regression", &r.FailOnRegression, flags.FailOnRegression, flags.FailOnRegressionSet, "HONORS_FAIL_ON_REGRESSION", file.FailOnRegression),
		resolveBool(r, "store_counts", &r.StoreCounts, flags.StoreCounts, flags.StoreCountsSet, "HONORS_STORE_COUNTS", file.StoreCounts),
		validate(r),
	)
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return r, nil
}

func resolveString(r *Resolved, key string, dst *string, cli string, cliSet bool, env, file string) {
	switch {
	case cliSet:
		*dst, r.Sources[key] = cli, SourceCLI
	case os.Getenv(env) != "":
		*dst, r.Sources[key] = os.Getenv(env), SourceEnv
	case file != "":
		*dst, r.Sources[key] = file, SourceFile
	}
}

func resolveBool(r *Resolved, key string, dst *bool, cli, cliSet bool, env string, file *bool) error {
	switch {
	case cliSet:
		*dst, r.Sources[key] = cli, SourceCLI
	case os.Getenv(env) != "":
		b, err := strconv.ParseBool(os.Getenv(env))
		if err != nil {
			return fmt.Errorf("%s: invalid boolean %q", env, os.Getenv(env))
		}
		*dst, r.Sources[key] = b, SourceEnv
	case file != nil:
		*dst, r.Sources[key] = *file, SourceFile
	}
	return nil
}

func validate(r *Resolved) error {
	if !cache.ValidBackend(r.CacheBackend) {
		return fmt.Errorf("invalid cache backend %q (must be one of %v)", r.CacheBackend, cache.Backends)
	}
	if r.CacheDir == "" && r.CacheBackend != cache.BackendMemory {
		return errors.New("cache.path must not be empty")
	}
	return nil
}
