package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func main() {
	root := buildRoot(&command{})
	if err := root.Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// buildRoot creates the root command. c.global is replaced by the
// persistent flags.
func buildRoot(c *command) *cobra.Command {
	globalFlags := &GlobalFlags{}
	c.global = globalFlags

	root := createRootCommand(globalFlags)
	root.AddCommand(
		createSearchCommand(c, &SearchFlags{}),
		createSelectCommand(c),
		createBackupCommand(c, &BackupFlags{}),
		createRestoreCommand(c, &RestoreFlags{}),
		createStatusCommand(c, &StatusFlags{}),
		createPresetCommand(c),
		createPatchCommand(c),
		createDelayCommand(c),
		createProbeCommand(c, &ProbeFlags{}),
		createWatchCommand(c, &WatchFlags{}),
		createMonitorCommand(c, &MonitorFlags{}),
		createServeCommand(c, &ServeFlags{}),
		createTemplateCommand(c, &TemplateCreateFlags{}),
	)
	return root
}

// createRootCommand creates the root command with minimal persistent flags
func createRootCommand(flags *GlobalFlags) *cobra.Command {
	root := &cobra.Command{
		Use:   "iniguard",
		Short: "Game config backup and restore guard",
		Long: `iniguard backs up a game's Engine.ini, applies presets and patches to it,
and puts the original back a few seconds after the game starts.

Examples:
  iniguard search                   # Find Engine.ini under the WeGame folders
  iniguard backup                   # Back up the selected config
  iniguard preset apply low         # Overwrite it with a preset
  iniguard watch                    # Restore the backup after the game launches
  iniguard serve --config iniguard.toml  # Run the HTTP daemon`,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "path to TOML config file (optional)")
	return root
}

func addRemoteFlags(cmd *cobra.Command, f *RemoteFlags) {
	cmd.Flags().StringVar(&f.APIUrl, "api-url", "", "daemon URL (default derived from [server])")
	cmd.Flags().DurationVar(&f.APITimeout, "api-timeout", 10*time.Second, "request timeout")
}

func createSearchCommand(c *command, f *SearchFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search [roots...]",
		Short: "Search for game config files",
		Long: `Search the given roots, or the configured search paths, for config files.
The first match becomes the selected config.

Examples:
  iniguard search
  iniguard search "D:/Games" --first
  iniguard search --suffix user_settings --global`,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := *f
			flags.Roots = args
			return c.Search(cmd.Context(), flags)
		},
	}
	cmd.Flags().StringVar(&f.Suffix, "suffix", "", "engine, user_settings or an explicit path suffix")
	cmd.Flags().BoolVar(&f.First, "first", false, "stop at the first match")
	cmd.Flags().BoolVar(&f.Global, "global", false, "search every drive")
	cmd.Flags().BoolVar(&f.NoFallback, "no-fallback", false, "do not fall back to a drive scan")
	return cmd
}

func createSelectCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "select <path>",
		Short: "Select the config file to guard",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Select(cmd.Context(), args[0])
		},
	}
}

func createBackupCommand(c *command, f *BackupFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Back up the selected config",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Backup(cmd.Context(), *f)
		},
	}
	cmd.Flags().StringVar(&f.ConfigPath, "config-path", "", "config file to back up and select")
	return cmd
}

func createRestoreCommand(c *command, f *RestoreFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Copy the backup over the selected config now",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Restore(cmd.Context(), *f)
		},
	}
	cmd.Flags().StringVar(&f.APIUrl, "api-url", "", "restore through a running daemon")
	cmd.Flags().DurationVar(&f.APITimeout, "api-timeout", 10*time.Second, "request timeout")
	return cmd
}

func createStatusCommand(c *command, f *StatusFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show guard status",
		Long: `Show the guard status of the running daemon, or the local state when no
daemon answers.

Examples:
  iniguard status
  iniguard status --local
  iniguard status --api-url=http://127.0.0.1:8787/api`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status(cmd.Context(), *f)
		},
	}
	addRemoteFlags(cmd, &f.RemoteFlags)
	cmd.Flags().BoolVar(&f.Local, "local", false, "ignore any running daemon")
	return cmd
}

func createPresetCommand(c *command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "preset",
		Short: "List and apply config presets",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List available presets",
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.PresetList()
			},
		},
		&cobra.Command{
			Use:   "apply <name>",
			Short: "Overwrite the selected config with a preset",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return c.PresetApply(cmd.Context(), PresetFlags{Name: args[0]})
			},
		},
	)
	return cmd
}

func createPatchCommand(c *command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patch",
		Short: "Patch the selected config",
	}
	cmd.AddCommand(&cobra.Command{
		Use:       "aa <apply|remove|status>",
		Short:     "Force the anti-aliasing setting on or off",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"apply", "remove", "status"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Patch(cmd.Context(), PatchFlags{Action: args[0]})
		},
	})
	return cmd
}

func createDelayCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "delay [seconds]",
		Short: "Show or set the restore delay",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := DelayFlags{}
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid delay %q: %w", args[0], err)
				}
				f.Seconds, f.Set = n, true
			}
			return c.Delay(cmd.Context(), f)
		},
	}
}

func createProbeCommand(c *command, f *ProbeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "probe",
		Short: "Check once whether the game is running",
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Probe(cmd.Context(), *f)
		},
	}
	cmd.Flags().StringVar(&f.ExePath, "exe-path", "", "game executable (default discovered)")
	cmd.Flags().StringVar(&f.PIDFile, "pidfile", "", "check the process recorded in a pidfile instead")
	return cmd
}

func createWatchCommand(c *command, f *WatchFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Monitor the game in the foreground and restore after launch",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return c.Watch(ctx, *f)
		},
	}
	cmd.Flags().StringVar(&f.ExePath, "exe-path", "", "game executable (default discovered)")
	cmd.Flags().DurationVar(&f.Interval, "interval", 0, "poll interval (default from config)")
	return cmd
}

func createMonitorCommand(c *command, f *MonitorFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:       "monitor <start|stop>",
		Short:     "Start or stop monitoring on the running daemon",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"start", "stop"},
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Monitor(cmd.Context(), args[0], *f)
		},
	}
	addRemoteFlags(cmd, &f.RemoteFlags)
	cmd.Flags().StringVar(&f.ExePath, "exe-path", "", "game executable (default from the daemon)")
	return cmd
}

// createServeCommand creates the serve subcommand
func createServeCommand(c *command, f *ServeFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Start the iniguard daemon",
		Long: `Start the HTTP daemon that owns monitoring and restore scheduling.

Examples:
  iniguard serve --config iniguard.toml
  iniguard serve iniguard.toml
  iniguard serve --daemonize        # Run in background (pidfile from [server].pidfile)`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				c.global.ConfigPath = args[0]
			}
			ctx, stop := signalContext(cmd.Context())
			defer stop()
			return c.runServe(ctx, *f)
		},
	}
	cmd.Flags().BoolVar(&f.Daemonize, "daemonize", false, "run as daemon in background")
	cmd.Flags().StringVar(&f.LogFile, "logfile", "", "redirect daemon output to file")
	return cmd
}

func createTemplateCommand(c *command, f *TemplateCreateFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Generate an iniguard.toml skeleton",
		Long: `Generate a config file skeleton.

Types:
  minimal   Monitor and search settings only
  daemon    Adds log rotation, metrics, SQLite history and the HTTP server
  full      Adds every history backend and webhook/MQTT notifications

Examples:
  iniguard template
  iniguard template --type full --output /etc/iniguard/iniguard.toml`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.TemplateCreate(*f)
		},
	}
	cmd.Flags().StringVar(&f.Type, "type", "daemon", "template type (minimal, daemon, full)")
	cmd.Flags().StringVar(&f.Output, "output", "", "output file (default iniguard.toml)")
	cmd.Flags().StringVar(&f.AppDir, "app-dir", "", "app_dir to write into the file")
	cmd.Flags().BoolVar(&f.Force, "force", false, "overwrite an existing file")
	return cmd
}

func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
