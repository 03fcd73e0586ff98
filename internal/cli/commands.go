package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"slackkanbanize/internal/activity"
	"slackkanbanize/internal/app"
	"slackkanbanize/internal/config"
	logx "slackkanbanize/pkg/logx"
)

func newRunCommand(fv *flagValues, version string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a single pass and exit (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runOnce(cmd, fv, version)
		},
	}
}

func runOnce(cmd *cobra.Command, fv *flagValues, version string) error {
	cfg, err := fv.manager(cmd).Load()
	if err != nil {
		return err
	}
	a, err := app.New(cfg, app.Options{Version: version, BootLog: logx.NewConsole(cfg.Logging.Level)})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	rep, err := a.RunOnce(ctx, cfg)
	a.PushMetrics(context.WithoutCancel(ctx))
	if err != nil {
		return err
	}
	if !rep.Posted {
		a.Log().Info("nothing new to post", logx.Int("seen", rep.Seen))
	}
	return nil
}

func newServeCommand(fv *flagValues, version string) *cobra.Command {
	var (
		schedule  string
		immediate bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run passes on a schedule, exposing /metrics and /healthz",
		Long: `serve keeps running and triggers a pass on every schedule tick. A tick that
fires while the previous pass is still running is skipped.

Schedules: cron ("*/5 * * * *", "@every 5m"), a duration ("5m"), or HH:MM as
an interval ("00:15"). The config file is watched and reloaded between passes.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr := fv.manager(cmd)
			cfg, err := mgr.Load()
			if err != nil {
				return err
			}
			a, err := app.New(cfg, app.Options{Version: version, BootLog: logx.NewConsole(cfg.Logging.Level)})
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return a.Serve(ctx, mgr, app.ServeOptions{Schedule: schedule, Immediate: immediate})
		},
	}
	cmd.Flags().StringVar(&schedule, "schedule", "", "pass schedule (default from config, "+config.DefaultSchedule+")")
	cmd.Flags().BoolVar(&immediate, "now", true, "run one pass at startup")
	return cmd
}

func newFormattersCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "formatters",
		Short: "List available activity formatters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			for _, name := range activity.FormatterNames() {
				fmt.Fprintln(out, name)
			}
			return nil
		},
	}
}
