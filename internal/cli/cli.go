package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/matzehuels/setupdb/pkg/buildinfo"
	"github.com/matzehuels/setupdb/pkg/cache"
	"github.com/matzehuels/setupdb/pkg/config"
	"github.com/matzehuels/setupdb/pkg/nuget"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "setupdb"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	stdout io.Writer
	stderr io.Writer

	// set from persistent flags before any command runs
	configPath string
	pkgPath    string
	verbose    bool
	cfg        config.Config
}

// New creates a CLI that prints results to stdout and logs to stderr.
func New(stdout, stderr io.Writer) *CLI {
	return &CLI{
		Logger: newLogger(stderr, LogInfo),
		stdout: stdout,
		stderr: stderr,
		cfg:    config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "setupdb fetches NuGet packages and their dependencies",
		Long: `setupdb resolves a NuGet package and every package it depends on into a
flat local directory, ready to be loaded, and prints the path of the
package's primary library.`,
		Version:           buildinfo.Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.SetOut(c.stdout)
	root.SetErr(c.stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageErrorf("%v", err)
	})

	flags := root.PersistentFlags()
	flags.StringVar(&c.configPath, "config", "", "config file (default ./"+config.DefaultFile+" if present)")
	flags.StringVarP(&c.pkgPath, "pkgpath", "p", "", "package directory (default "+c.cfg.CacheDir+")")
	flags.BoolVarP(&c.verbose, "verbose", "v", false, "enable verbose logging")
	root.SetGlobalNormalizationFunc(normalizeFlag)

	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.configCommand())
	root.AddCommand(c.versionCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// setup runs before every command: it applies --verbose, loads the config
// file and attaches the logger to the command context.
func (c *CLI) setup(cmd *cobra.Command, _ []string) error {
	level := LogInfo
	if c.verbose {
		level = LogDebug
	}
	c.SetLogLevel(level)

	cfg, err := config.Load(c.configPath)
	if err != nil {
		return usageErrorf("%s", err)
	}
	if c.pkgPath != "" {
		cfg.CacheDir = c.pkgPath
	}
	c.cfg = cfg

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(withLogger(ctx, c.Logger))
	return nil
}

// =============================================================================
// Flag aliases
// =============================================================================

// flagAliases maps the alternative spellings accepted for compatibility.
var flagAliases = map[string]string{
	"pkg":      "pkgpath",
	"pkg-path": "pkgpath",
}

func normalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	if canonical, ok := flagAliases[name]; ok {
		name = canonical
	}
	return pflag.NormalizedName(name)
}

// =============================================================================
// Index Factory
// =============================================================================

// newIndex creates the feed client described by the config. The returned
// close function releases the index cache.
func (c *CLI) newIndex(ctx context.Context, refresh bool) (*nuget.Client, func(), error) {
	store, keyer, err := c.newIndexCache(ctx)
	if err != nil {
		return nil, nil, err
	}
	client, err := nuget.NewClient(nuget.Options{
		IndexURL:   c.cfg.IndexURL,
		FlatURL:    c.cfg.FlatURL,
		Timeout:    c.cfg.Timeout.Duration,
		Retries:    c.cfg.Retries,
		RetryDelay: c.cfg.RetryDelay.Duration,
		Cache:      store,
		Keyer:      keyer,
		CacheTTL:   c.cfg.IndexCacheTTL.Duration,
		Refresh:    refresh,
	})
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return client, func() { store.Close() }, nil
}

// newIndexCache selects the index cache backend. An unusable file cache
// location silently disables caching; an unreachable Redis is an error.
func (c *CLI) newIndexCache(ctx context.Context) (cache.Cache, cache.Keyer, error) {
	switch c.cfg.IndexCache {
	case config.IndexCacheNone:
		return cache.NewNullCache(), cache.NewDefaultKeyer(), nil
	case config.IndexCacheFile:
		dir, err := cacheDir()
		if err != nil {
			return cache.NewNullCache(), cache.NewDefaultKeyer(), nil
		}
		store, err := cache.NewFileCache(dir)
		if err != nil {
			loggerFromContext(ctx).Warn("index cache disabled", "dir", dir, "err", err)
			return cache.NewNullCache(), cache.NewDefaultKeyer(), nil
		}
		return store, cache.NewDefaultKeyer(), nil
	default:
		store, err := cache.NewRedisCache(ctx, c.cfg.IndexCache)
		if err != nil {
			return nil, nil, err
		}
		return store, cache.NewScopedKeyer(cache.NewDefaultKeyer(), appName+":"), nil
	}
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the index cache directory using XDG standard (~/.cache/setupdb/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
