// Package cmd wires the CLI onto the core modes.
package cmd

import (
	"context"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"skyctl/config"
	"skyctl/internal/core"
	"skyctl/internal/metrics"
	"skyctl/util"
)

// version is overridable at link time:
//
//	go build -ldflags "-X skyctl/cmd.version=2.0.0"
var version = "1.0.0" //nolint:gochecknoglobals

// Execute parses args and runs the selected subcommand.  Failures are
// printed to stderr before being returned, so the caller only has to
// pick the exit code.
func Execute(ctx context.Context, args []string) error {
	return execute(ctx, args, os.Stdout, os.Stderr)
}

func execute(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	cfg := config.Default()
	config.LoadFromEnv(cfg)

	a := &app{cfg: cfg, stdout: stdout, stderr: stderr}
	root := a.rootCommand()
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if err != nil {
		newReporter(stderr, cfg.NoColor).Error(err)
	}
	return err
}

// app carries the state shared by every subcommand of one invocation.
type app struct {
	cfg    *config.Config
	stdout io.Writer
	stderr io.Writer
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "skyctl",
		Short: "Build, deploy and debug Skyline plugins on a Switch",
		Long: `skyctl installs a plugin and everything it needs (runtime, npdm,
dependencies) on a Switch over its FTP server, then relays the
runtime's log stream back to the terminal.

The console address comes from --ip, $SWITCH_IP, or the address
saved with "skyctl set-ip".`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)
	config.BindFlags(root.PersistentFlags(), a.cfg)

	install := a.command(core.OpInstall, &cobra.Command{
		Use:   "install",
		Short: "Build the plugin and install it with its runtime and dependencies",
		Args:  cobra.NoArgs,
	})
	config.BindInstallFlags(install.Flags(), a.cfg)

	run := a.command(core.OpRun, &cobra.Command{
		Use:   "run",
		Short: "Install, then print the plugin's logs",
		Long: `Install the plugin, then follow the runtime's log stream until
interrupted.

Examples:
  skyctl run
  skyctl run --restart -t 01006A800016E000`,
		Args: cobra.NoArgs,
	})
	config.BindInstallFlags(run.Flags(), a.cfg)
	run.Flags().BoolVar(&a.cfg.Restart, "restart", a.cfg.Restart, "Ask the runtime to relaunch the game after installing")

	root.AddCommand(
		install,
		run,
		a.command(core.OpListen, &cobra.Command{
			Use:   "listen",
			Short: "Print the runtime's logs, reconnecting as the game restarts",
			Args:  cobra.NoArgs,
		}),
		a.command(core.OpList, &cobra.Command{
			Use:   "list [remote-dir]",
			Short: "List the plugin directory, or a given console path",
			Args:  cobra.MaximumNArgs(1),
		}),
		a.command(core.OpRemove, &cobra.Command{
			Use:   "rm [file]",
			Short: "Delete a plugin file (default: this project's plugin)",
			Args:  cobra.MaximumNArgs(1),
		}),
		a.command(core.OpCopy, &cobra.Command{
			Use:   "cp <local-file> [dest]",
			Short: `Upload a file to the plugin directory, or to "sd:/..."`,
			Args:  cobra.RangeArgs(1, 2),
		}),
		a.command(core.OpRestart, &cobra.Command{
			Use:   "restart",
			Short: "Ask the runtime to relaunch the game",
			Args:  cobra.NoArgs,
		}),
		a.command(core.OpSetIP, &cobra.Command{
			Use:   "set-ip <address>",
			Short: "Save the console address",
			Args:  cobra.ExactArgs(1),
		}),
		a.command(core.OpShowIP, &cobra.Command{
			Use:   "show-ip",
			Short: "Print the saved console address",
			Args:  cobra.NoArgs,
		}),
	)
	return root
}

func (a *app) command(op core.Op, c *cobra.Command) *cobra.Command {
	c.RunE = func(cmd *cobra.Command, args []string) error {
		return a.run(cmd.Context(), op, args)
	}
	return c
}

// run validates the configuration, assembles the mode for op and runs
// it.  The dialer lives for the whole operation.
func (a *app) run(ctx context.Context, op core.Op, args []string) error {
	cfg := a.cfg
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := util.NewLogger(cfg.Verbose)
	if cfg.Timestamps {
		logger.SetTimestamps(true)
	}
	logger.SetOutput(a.stderr)
	defer logger.Sync() //nolint:errcheck

	stats := metrics.New(uuid.NewString())
	logger.Verbose("run %s: %s", stats.RunID(), op)
	logger.Debug("config: %s", cfg)

	dialer, err := core.BuildDialer(cfg, logger)
	if err != nil {
		return err
	}
	defer dialer.Close()

	mode, err := core.Build(op, cfg, args, core.Deps{
		Logger:   logger,
		Metrics:  stats,
		Reporter: newReporter(a.stderr, cfg.NoColor),
		Dialer:   dialer,
		Stdout:   a.stdout,
	})
	if err != nil {
		return err
	}

	err = mode.Run(ctx)
	if err != nil && stats.ErrorCount() == 0 {
		stats.RecordError(err.Error())
	}
	if cfg.Stats {
		_, _ = io.WriteString(a.stderr, stats.JSON()+"\n")
	}
	return err
}
