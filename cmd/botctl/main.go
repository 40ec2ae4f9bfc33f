package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr, &command{}))
}

// run executes one invocation and returns its exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, c *command) int {
	c.stdout, c.stderr = stdout, stderr
	if c.flags == nil {
		c.flags = &GlobalFlags{}
	}
	root := buildRoot(c)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return 0
	}
	var ee exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	_, _ = fmt.Fprintln(stderr, "botctl:", err)
	var ue usageError
	if errors.As(err, &ue) || isUnknownCommand(err) {
		_, _ = fmt.Fprint(stderr, root.UsageString())
	}
	return 1
}

// buildRoot creates the command tree. With no action the root starts the
// managed process.
func buildRoot(c *command) *cobra.Command {
	logsFlags := &LogsFlags{}
	historyFlags := &HistoryFlags{}
	installFlags := &InstallServiceFlags{}

	root := createRootCommand(c)
	root.AddCommand(
		createStartCommand(c),
		createStopCommand(c),
		createRestartCommand(c),
		createStatusCommand(c),
		createLogsCommand(c, logsFlags),
		createHistoryCommand(c, historyFlags),
		createInstallServiceCommand(c, installFlags),
	)
	return root
}

func createRootCommand(c *command) *cobra.Command {
	root := &cobra.Command{
		Use:   "botctl [start|stop|restart|status|logs]",
		Short: "Supervise the energy bot as a detached background process",
		Long: `botctl starts the energy bot detached from the terminal, remembers its pid
in a handle file and stops it with SIGTERM, escalating to SIGKILL when the
bot does not exit in time. Output goes to logs/bot_<YYYYMMDD>.log.

Examples:
  botctl                 # same as 'botctl start'
  botctl status
  botctl logs -n 100
  botctl restart
  botctl install-service --output /tmp/energy-bot.service`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Start(cmd.Context())
		},
	}
	root.PersistentFlags().StringVar(&c.flags.ConfigPath, "config", "", "path to TOML config file (default ./botctl.toml when present)")
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err: err}
	})
	return root
}

func createStartCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the bot detached and record its pid",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Start(cmd.Context())
		},
	}
}

func createStopCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the bot gracefully, force-killing it after stop_timeout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Stop(cmd.Context())
		},
	}
}

func createRestartCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "restart",
		Short: "Stop the bot if it runs, then start it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Restart(cmd.Context())
		},
	}
}

func createStatusCommand(c *command) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the bot is running (exit 1 when not)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Status(cmd.Context())
		},
	}
}

func createLogsCommand(c *command, f *LogsFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Print the tail of today's bot log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Logs(cmd.Context(), *f)
		},
	}
	cmd.Flags().IntVarP(&f.Lines, "lines", "n", 0, "number of lines (default tail_lines from config)")
	cmd.Flags().BoolVarP(&f.Follow, "follow", "f", false, "keep printing appended output until interrupted")
	return cmd
}

func createHistoryCommand(c *command, f *HistoryFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent lifecycle events from the history journal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.History(cmd.Context(), *f)
		},
	}
	cmd.Flags().IntVarP(&f.Limit, "limit", "n", 20, "number of events")
	return cmd
}

func createInstallServiceCommand(c *command, f *InstallServiceFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install-service",
		Short: "Render the systemd unit for this installation",
		Long: `Render the systemd unit, replacing __WORKDIR__ with the installation
directory, and print the systemctl commands that register it. systemctl is
never run. The bot must not be running under botctl at the same time.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.InstallService(cmd.Context(), *f)
		},
	}
	cmd.Flags().StringVarP(&f.Output, "output", "o", "", "unit file to write (default unit.output)")
	cmd.Flags().StringVar(&f.Template, "template", "", "custom unit template (default unit.template or built-in)")
	cmd.Flags().StringVar(&f.WorkDir, "workdir", "", "installation directory (default current directory)")
	return cmd
}
