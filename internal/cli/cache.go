package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/setupdb/pkg/localcache"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the package directory and the index cache",
	}

	cmd.AddCommand(c.cachePathCommand())
	cmd.AddCommand(c.cacheListCommand())
	cmd.AddCommand(c.cacheClearCommand())

	return cmd
}

// cachePathCommand creates the "cache path" subcommand.
func (c *CLI) cachePathCommand() *cobra.Command {
	var index bool
	cmd := &cobra.Command{
		Use:   "path",
		Short: "Print the package directory path",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if index {
				dir, err := cacheDir()
				if err != nil {
					return fmt.Errorf("get cache dir: %w", err)
				}
				fmt.Fprintln(c.stdout, dir)
				return nil
			}
			fmt.Fprintln(c.stdout, c.cfg.CacheDir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&index, "index", false, "print the index cache directory instead")
	return cmd
}

// cacheListCommand creates the "cache list" subcommand.
func (c *CLI) cacheListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List manifests and libraries in the package directory",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			entries, err := localcache.New(c.cfg.CacheDir).Entries()
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				printInfo("Package directory is empty")
				printDetail("Directory: %s", c.cfg.CacheDir)
				return nil
			}

			var total int64
			for _, e := range entries {
				kind := "library"
				if e.Manifest {
					kind = "manifest"
				}
				fmt.Fprintf(c.stdout, "%s\t%s\t%d\t%s\n", e.Name, kind, e.Size, e.ModTime.Format(time.RFC3339))
				total += e.Size
			}
			printKeyValue("Entries", StyleNumber.Render(fmt.Sprint(len(entries))))
			printKeyValue("Size", formatBytes(total))
			printKeyValue("Directory", c.cfg.CacheDir)
			return nil
		},
	}
}

// cacheClearCommand creates the "cache clear" subcommand.
func (c *CLI) cacheClearCommand() *cobra.Command {
	var index bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete everything in the package directory",
		Long: `Clear deletes every manifest and library in the package directory. The
next resolve downloads them again. With --index the index cache is
cleared instead.`,
		Args: usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			if index {
				return clearIndexCache()
			}
			n, err := localcache.New(c.cfg.CacheDir).Clear()
			if err != nil {
				return err
			}
			if n == 0 {
				printInfo("Package directory is empty")
				return nil
			}
			printSuccess("Removed %d files", n)
			printDetail("Directory: %s", c.cfg.CacheDir)
			return nil
		},
	}
	cmd.Flags().BoolVar(&index, "index", false, "clear the index cache instead of the package directory")
	return cmd
}

// clearIndexCache removes the file-backed index cache. A Redis index cache
// expires on its own and is shared, so it is left alone.
func clearIndexCache() error {
	dir, err := cacheDir()
	if err != nil {
		return fmt.Errorf("get cache dir: %w", err)
	}

	if _, err := os.Stat(dir); os.IsNotExist(err) {
		printInfo("Index cache is empty")
		return nil
	}

	count := 0
	err = filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil || path == dir || d.IsDir() {
			return nil // skip unreadable entries, keep walking
		}
		if strings.HasSuffix(path, ".json") && os.Remove(path) == nil {
			count++
		}
		return nil
	})
	if err != nil {
		return err
	}

	// Remove the now empty shard directories.
	shards, _ := os.ReadDir(dir)
	for _, s := range shards {
		if s.IsDir() {
			os.Remove(filepath.Join(dir, s.Name()))
		}
	}

	printSuccess("Cleared %d cached entries", count)
	printDetail("Directory: %s", dir)
	return nil
}
