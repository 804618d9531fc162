package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	pkgio "github.com/matzehuels/setupdb/pkg/io"
	"github.com/matzehuels/setupdb/pkg/localcache"
	"github.com/matzehuels/setupdb/pkg/observability"
	"github.com/matzehuels/setupdb/pkg/render/nodelink"
	"github.com/matzehuels/setupdb/pkg/resolver"
)

// resolveOpts holds the flags of the resolve command.
type resolveOpts struct {
	nuget    string
	version  string
	graph    string
	detailed bool
	order    bool
	refresh  bool
}

// resolveCommand creates the resolve command.
func (c *CLI) resolveCommand() *cobra.Command {
	var opts resolveOpts

	cmd := &cobra.Command{
		Use:   "resolve [package]",
		Short: "Download a package and its dependencies",
		Long: `Resolve downloads a NuGet package and, recursively, every dependency it
needs into the package directory, then prints the path of the package's
primary library on stdout.

Files already in the package directory are reused, so a repeated run works
offline. Without --version the latest published version is used and
remembered; pass --refresh to look it up again.`,
		Example: `  # Latest Npgsql into ./.pkg
  setupdb resolve Npgsql

  # Pinned version into a custom directory, with a dependency graph
  setupdb resolve Npgsql --version 4.1.3 -p deps --graph deps.svg

  # Print every library in load order
  setupdb resolve Npgsql --order`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := strings.TrimSpace(opts.nuget)
			if len(args) == 1 {
				if name != "" && !strings.EqualFold(name, args[0]) {
					return usageErrorf("package given twice: %q and --nuget %q", args[0], name)
				}
				name = args[0]
			}
			if name == "" {
				return usageErrorf("a package name is required")
			}
			return c.runResolve(cmd.Context(), name, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.nuget, "nuget", "n", "", "package to resolve (alternative to the argument)")
	flags.StringVar(&opts.version, "version", "", "exact version to resolve (default latest)")
	flags.StringVar(&opts.graph, "graph", "", "write the dependency graph to this .dot, .svg or .json file")
	flags.BoolVar(&opts.detailed, "detailed", false, "include versions and paths in graph labels")
	flags.BoolVar(&opts.order, "order", false, "print every library in load order, not only the primary one")
	flags.BoolVar(&opts.refresh, "refresh", false, "look up the latest version again instead of reusing the last one")

	return cmd
}

func (c *CLI) runResolve(ctx context.Context, name string, opts resolveOpts) error {
	logger := loggerFromContext(ctx)

	stats := &observability.Stats{}
	stats.Register()
	defer observability.Reset()

	index, closeIndex, err := c.newIndex(ctx, opts.refresh)
	if err != nil {
		return err
	}
	defer closeIndex()

	r := resolver.New(index, localcache.New(c.cfg.CacheDir), resolver.Options{
		Concurrency: c.cfg.Concurrency,
		Refresh:     opts.refresh,
		Logger:      logger,
	})

	prog := newProgress(logger)
	spin := c.startSpinner(ctx, "Resolving "+name, func() string {
		return plural(stats.Resolved.Load(), "package")
	})
	pkg, err := r.Resolve(ctx, name, opts.version)
	spin.Stop()
	if err != nil {
		return err
	}
	prog.done("Resolved", "package", pkg.Name, "version", pkg.Version)
	printStats(stats)

	if opts.graph != "" {
		if err := writeGraph(ctx, r, opts.graph, opts.detailed); err != nil {
			return err
		}
		printFile(opts.graph)
	}

	if opts.order {
		order, err := r.LoadOrder()
		if err != nil {
			return err
		}
		for _, p := range order {
			fmt.Fprintln(c.stdout, p.PrimaryArtifactPath)
		}
		return nil
	}
	fmt.Fprintln(c.stdout, pkg.PrimaryArtifactPath)
	return nil
}

// writeGraph writes the resolved graph in the format named by the file
// extension: ".json" exports nodes and edges, ".svg" renders with Graphviz and
// anything else writes DOT.
func writeGraph(ctx context.Context, r *resolver.Resolver, path string, detailed bool) error {
	format := "dot"
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return pkgio.ExportJSON(r.Graph(), path)
	case ".svg":
		format = "svg"
	}
	data, err := nodelink.Render(ctx, r.Graph(), format, nodelink.Options{Detailed: detailed})
	if err != nil {
		return fmt.Errorf("render graph: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write graph: %w", err)
	}
	return nil
}

// startSpinner shows a spinner on an interactive stderr. Verbose runs log
// every step instead, so they get a no-op spinner.
func (c *CLI) startSpinner(ctx context.Context, message string, status func() string) *Spinner {
	f, ok := c.stderr.(*os.File)
	if c.verbose || !ok || !isatty.IsTerminal(f.Fd()) {
		return nil
	}
	s := newSpinner(ctx, f, message, status)
	s.Start()
	return s
}
