package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"intrawatch/internal/api"
	"intrawatch/internal/config"
	"intrawatch/internal/reconcile"
	"intrawatch/internal/scheduler"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Poll the intranet forever",
	Long:  `Runs a reconciliation cycle now and then again after every check interval.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, path, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := a.checkAccess(ctx); err != nil {
			return err
		}

		sched := scheduler.New(a.driver, a.notifier, cfg.Interval(), logger.Logger)
		logger.Info("intrawatch started",
			zap.String("version", version),
			zap.Duration("interval", cfg.Interval()),
			zap.String("backend", cfg.Snapshot.Backend),
			zap.Bool("download_file", cfg.DownloadContent))

		if cfg.Status.Addr != "" {
			handler := api.NewRouter(api.NewStatusHandler(a.driver, a.store), logger)
			go func() {
				if err := api.Serve(ctx, cfg.Status.Addr, handler, logger); err != nil {
					logger.Error("status server stopped", zap.Error(err))
				}
			}()
		}

		go func() {
			err := config.Watch(ctx, path,
				func(next *config.Config) { sched.SetInterval(next.Interval()) },
				func(err error) { logger.Warn("reloading config", zap.Error(err)) })
			if err != nil {
				logger.Warn("config hot reload disabled", zap.Error(err))
			}
		}()

		return sched.Run(ctx)
	},
}

var onceCmd = &cobra.Command{
	Use:   "once",
	Short: "Run a single reconciliation cycle",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}

		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.checkAccess(cmd.Context()); err != nil {
			return err
		}

		report, err := a.driver.RunCycle(cmd.Context())
		printReport(cmd, report)
		return err
	},
}

func printReport(cmd *cobra.Command, r *reconcile.Report) {
	out := cmd.OutOrStdout()
	state := color.New(color.FgGreen).SprintFunc()
	if r.State == reconcile.Aborted || r.Err != "" {
		state = color.New(color.FgRed).SprintFunc()
	}

	fmt.Fprintf(out, "cycle %s: %s in %s\n", r.CycleID, state(r.State.String()), r.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "  events:    %d\n", r.Events)
	fmt.Fprintf(out, "  notified:  %d (%d failed)\n", r.Notified, r.NotifyFailures)
	for _, key := range r.Skipped {
		fmt.Fprintf(out, "  %s %s\n", color.YellowString("skipped"), key)
	}
	if r.Err != "" {
		fmt.Fprintf(out, "  %s %s\n", color.RedString("error"), r.Err)
	}
}
