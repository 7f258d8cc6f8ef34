// Package cli implements the rcxbench command-line interface.
package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/rcxbench/rcxbench/pkg/buildinfo"
	"github.com/rcxbench/rcxbench/pkg/cache"
	"github.com/rcxbench/rcxbench/pkg/flow"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "rcxbench"

	// EnvRedisAddr selects a shared Redis step cache instead of the local
	// file cache.
	EnvRedisAddr = "RCXBENCH_REDIS_ADDR"
)

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
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{Logger: newLogger(w, level)}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:          "rcxbench",
		Short:        "rcxbench builds parasitic extraction calibration benches",
		Long:         `rcxbench drives OpenROAD to generate RCX calibration bench wires, exporting the pattern netlist and DEF for field-solver golden data.`,
		Version:      buildinfo.Version,
		SilenceUsage: true,
	}

	root.SetVersionTemplate(buildinfo.Template())

	// Register all subcommands
	root.AddCommand(c.runCommand())
	root.AddCommand(c.showCommand())
	root.AddCommand(c.runsCommand())
	root.AddCommand(c.techCommand())
	root.AddCommand(c.graphCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Runner Factory
// =============================================================================

// newRunner creates a flow runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*flow.Runner, error) {
	store, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	return flow.NewRunner(store, stepKeyer(), c.Logger), nil
}

// stepKeyer picks the cache key generator. A Redis backend is shared
// farm-wide, so its keys get an application prefix; the local file cache
// lives in our own directory and needs none.
func stepKeyer() cache.Keyer {
	if os.Getenv(EnvRedisAddr) != "" {
		return cache.NewScopedKeyer(nil, appName+":")
	}
	return cache.NewDefaultKeyer()
}

// newCache picks the step-cache backend: Redis when RCXBENCH_REDIS_ADDR is
// set, otherwise the local file cache. noCache disables caching entirely.
func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	if addr := os.Getenv(EnvRedisAddr); addr != "" {
		store, err := cache.NewRedisCache(ctx, cache.RedisConfig{Addr: addr})
		if err != nil {
			c.Logger.Warn("redis cache unavailable, falling back to file cache",
				"addr", addr, "err", err)
		} else {
			return store, nil
		}
	}
	dir, err := cacheDir()
	if err != nil {
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/rcxbench/).
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
