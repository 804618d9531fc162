// Package config loads setupdb settings from an optional TOML file.
//
//	cache_dir       = ".pkg"
//	index_url       = "https://api.nuget.org/v3/registration3"
//	flat_url        = "https://api.nuget.org/v3-flatcontainer"
//	concurrency     = 8
//	timeout         = "10s"
//	retries         = 3
//	retry_delay     = "1s"
//	index_cache     = "file"   # "", "file" or a redis:// URL
//	index_cache_ttl = "1h"
//
// Every key is optional; [Default] supplies the missing ones. Command-line
// flags are applied on top by the CLI.
package config

import (
	stderrors "errors"
	"io"
	"io/fs"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/matzehuels/setupdb/pkg/errors"
	"github.com/matzehuels/setupdb/pkg/localcache"
	"github.com/matzehuels/setupdb/pkg/nuget"
)

// DefaultFile is read when no config file is named explicitly.
const DefaultFile = "setupdb.toml"

// Index cache backends.
const (
	IndexCacheNone = ""
	IndexCacheFile = "file"
)

// Config holds every tunable setting.
type Config struct {
	CacheDir      string   `toml:"cache_dir"`
	IndexURL      string   `toml:"index_url"`
	FlatURL       string   `toml:"flat_url"`
	Concurrency   int      `toml:"concurrency"`
	Timeout       Duration `toml:"timeout"`
	Retries       int      `toml:"retries"`
	RetryDelay    Duration `toml:"retry_delay"`
	IndexCache    string   `toml:"index_cache"`
	IndexCacheTTL Duration `toml:"index_cache_ttl"`
}

// Duration is a time.Duration written as a Go duration string ("10s").
type Duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		CacheDir:      localcache.DefaultDir,
		IndexURL:      nuget.DefaultIndexURL,
		FlatURL:       nuget.DefaultFlatURL,
		Concurrency:   8,
		Timeout:       Duration{10 * time.Second},
		Retries:       3,
		RetryDelay:    Duration{time.Second},
		IndexCache:    IndexCacheNone,
		IndexCacheTTL: Duration{time.Hour},
	}
}

// Load reads path over the defaults. An empty path reads [DefaultFile] when
// it exists and returns the defaults otherwise; a named file must exist.
// Unknown keys are rejected so typos do not go unnoticed.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		if !explicit && stderrors.Is(err, fs.ErrNotExist) {
			return Default(), nil
		}
		return Config{}, errors.Wrap(errors.ErrCodeInvalidInput, err, "read config %s", path)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return Config{}, errors.New(errors.ErrCodeInvalidInput, "config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}
	return cfg, cfg.Validate()
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	if c.CacheDir == "" {
		return errors.New(errors.ErrCodeInvalidInput, "cache_dir must not be empty")
	}
	if err := errors.ValidateURL(c.IndexURL); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "index_url")
	}
	if err := errors.ValidateURL(c.FlatURL); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "flat_url")
	}
	if c.Concurrency <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "concurrency must be positive, got %d", c.Concurrency)
	}
	if c.Retries <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "retries must be positive, got %d", c.Retries)
	}
	if c.Timeout.Duration <= 0 {
		return errors.New(errors.ErrCodeInvalidInput, "timeout must be positive, got %s", c.Timeout)
	}
	if c.RetryDelay.Duration < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "retry_delay must not be negative")
	}
	switch {
	case c.IndexCache == IndexCacheNone, c.IndexCache == IndexCacheFile:
	case strings.HasPrefix(c.IndexCache, "redis://"), strings.HasPrefix(c.IndexCache, "rediss://"):
	default:
		return errors.New(errors.ErrCodeInvalidInput, "index_cache must be empty, %q or a redis:// URL, got %q", IndexCacheFile, c.IndexCache)
	}
	return nil
}

// Encode writes c as TOML.
func (c Config) Encode(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(c); err != nil {
		return errors.Wrap(errors.ErrCodeInternal, err, "encode config")
	}
	return nil
}
