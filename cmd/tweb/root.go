package main

import (
	"fmt"
	"os"

	"github.com/prior-it/tweb/bootstrap"
	"github.com/prior-it/tweb/config"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configDir string
	envFiles  []string
	host      string
	port      uint32
	mode      string
	pagesDir  string
	logLevel  string
	live      bool
	watch     bool
	noAudit   bool
}

func newRootCommand() *cobra.Command {
	return newCommand(&rootFlags{})
}

func newCommand(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tweb <root.md>",
		Short: "Serve a directory of markdown documents as HTML",
		Long: `tweb serves markdown documents as HTML pages.

The root document is served at "/", any other path is resolved to a markdown file next to it,
e.g. "/about" serves about.md. Rendered pages are cached until their source changes (with --watch)
or regenerated on every request (with --live).

Configuration is read from config.toml in the --config directory, .env files and environment
variables such as APP_PORT or PAGES_LIVE. Command-line flags take precedence over all of them.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, flags, args[0])
			if err != nil {
				return err
			}
			app, err := bootstrap.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			return app.Run(cmd.Context(), nil)
		},
	}

	cmd.Flags().StringVarP(&flags.configDir, "config", "c", ".", "directory that contains config.toml")
	cmd.Flags().StringSliceVar(&flags.envFiles, "env-file", nil, "additional .env files to load")
	cmd.Flags().StringVar(&flags.host, "host", "", "host to listen on")
	cmd.Flags().Uint32VarP(&flags.port, "port", "p", 0, "port to listen on")
	cmd.Flags().StringVar(&flags.mode, "mode", "", "front end to serve with (raw, http)")
	cmd.Flags().StringVarP(&flags.pagesDir, "dir", "d", "", "directory that page paths are resolved against")
	cmd.Flags().StringVarP(&flags.logLevel, "log-level", "l", "", "log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&flags.live, "live", false, "regenerate pages on every request")
	cmd.Flags().BoolVarP(&flags.watch, "watch", "w", false, "regenerate cached pages when their source changes")
	cmd.Flags().BoolVar(&flags.noAudit, "no-audit", false, "do not record client addresses")

	return cmd
}

// loadConfig reads the configuration and applies the flags that were set explicitly.
func loadConfig(cmd *cobra.Command, flags *rootFlags, root string) (*config.Config, error) {
	if err := bootstrap.ValidateRoot(root); err != nil {
		return nil, fmt.Errorf("please specify a valid markdown file: %w", err)
	}

	cfg, err := config.Load(os.DirFS(flags.configDir), flags.envFiles...)
	if err != nil {
		return nil, err
	}
	cfg.Pages.Root = root

	changed := cmd.Flags().Changed
	if changed("host") {
		cfg.App.Host = flags.host
	}
	if changed("port") {
		cfg.App.Port = flags.port
	}
	if changed("mode") {
		cfg.App.Mode = config.ServeMode(flags.mode)
	}
	if changed("dir") {
		cfg.Pages.Dir = flags.pagesDir
	}
	if changed("log-level") {
		cfg.Log.Level = config.LogLevel(flags.logLevel)
	}
	if changed("live") {
		cfg.Pages.Live = flags.live
	}
	if changed("watch") {
		cfg.Pages.Watch = flags.watch
	}
	if changed("no-audit") {
		cfg.Audit.Enabled = !flags.noAudit
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
