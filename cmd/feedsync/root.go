package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/unkn0wn-root/feedsync/internal/config"
)

// Command group IDs for organizing help output
const (
	GroupRead    = "read"
	GroupWrite   = "write"
	GroupService = "service"
	GroupConfig  = "config"
)

// cli is the state shared by one command tree.
type cli struct {
	configPath string
	verbose    bool
	jsonOut    bool

	cfg config.Config
	zl  *zap.Logger
	app *app
}

// needsApp reports whether cmd talks to the data layer.
func needsApp(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		switch c.Name() {
		case "config", "help", "completion", "__complete":
			return false
		}
	}
	return true
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}
	root := &cobra.Command{
		Use:   "feedsync",
		Short: "Cached social feed client",
		Long: `feedsync reads and writes posts, users and bookings through a
deduplicating, invalidation-driven cache.

By default it runs against an in-process demo service. Point remote.mode
at "http" in the config to use a real one, or start one with 'feedsync serve'.`,
		SilenceUsage:               true,
		SilenceErrors:              true,
		SuggestionsMinimumDistance: 2,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !needsApp(cmd) {
				return nil
			}
			return c.open()
		},
	}

	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default ~/.config/feedsync/config.toml)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging and cache event logs")
	root.PersistentFlags().BoolVar(&c.jsonOut, "json", false, "print records as JSON")

	root.Version = versionString()
	root.SetVersionTemplate("{{.Version}}\n")

	root.AddGroup(
		&cobra.Group{ID: GroupRead, Title: "Read Commands:"},
		&cobra.Group{ID: GroupWrite, Title: "Write Commands:"},
		&cobra.Group{ID: GroupService, Title: "Service Commands:"},
		&cobra.Group{ID: GroupConfig, Title: "Configuration Commands:"},
	)

	root.AddCommand(newFeedCmd(c))
	root.AddCommand(newSearchCmd(c))
	root.AddCommand(newPostCmd(c))
	root.AddCommand(newUserCmd(c))
	root.AddCommand(newBookingsCmd(c))

	root.AddCommand(newLikeCmd(c))
	root.AddCommand(newSaveCmd(c))
	root.AddCommand(newAttendCmd(c))

	root.AddCommand(newServeCmd(c))

	root.AddCommand(newConfigCmd(c))
	return root, c
}

// open loads the config and builds the app.
func (c *cli) open() error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.verbose {
		cfg.Log.Level = "debug"
	}
	c.cfg = cfg

	if c.zl, err = newZap(cfg.Log, os.Stderr); err != nil {
		return err
	}
	if c.app, err = newApp(cfg, c.zl); err != nil {
		return err
	}
	c.zl.Debug("ready",
		zap.String("remote", cfg.Remote.Mode),
		zap.String("cache", cfg.Cache.Provider),
		zap.String("log_backend", cfg.Log.Backend),
	)
	return nil
}

func (c *cli) close() error {
	var err error
	if c.app != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err = c.app.Close(ctx)
		cancel()
		c.app = nil
	}
	if c.zl != nil {
		_ = c.zl.Sync()
	}
	return err
}

// Execute runs the command tree with signal handling.
func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	root, c := newRootCmd()
	err := root.ExecuteContext(ctx)
	err = errors.Join(err, c.close())
	if err != nil {
		fmt.Fprintln(os.Stderr, "feedsync:", err)
		fmt.Fprintln(os.Stderr)
		fmt.Fprintln(os.Stderr, "Run 'feedsync -h' for help")
		os.Exit(1)
	}
}
