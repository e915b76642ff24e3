package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"pressdesk/internal/pipeline"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var window int

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scan the mailbox once and update the item store",
		RunE: func(cmd *cobra.Command, args []string) error {
			runCtx, stop := signal.NotifyContext(commandContextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			runner, closeFn, err := buildRunner(runCtx, ctx, cmd, window)
			if err != nil {
				return err
			}
			defer closeFn() //nolint:errcheck

			_, err = runner.Run(runCtx)
			return err
		},
	}
	cmd.Flags().IntVarP(&window, "window", "n", 0, "Number of recent messages to scan (overrides mailbox.window)")
	return cmd
}

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var interval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Scan the mailbox periodically until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			watchCtx, stop := signal.NotifyContext(commandContextOrBackground(cmd), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runner, closeFn, err := buildRunner(watchCtx, ctx, cmd, 0)
			if err != nil {
				return err
			}
			defer closeFn() //nolint:errcheck

			every := interval
			if every <= 0 {
				every = time.Duration(cfg.Watch.IntervalMinutes) * time.Minute
			}
			return runner.Watch(watchCtx, every)
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "Time between scans (overrides watch.interval_minutes)")
	return cmd
}

func buildRunner(runCtx context.Context, ctx *commandContext, cmd *cobra.Command, window int) (*pipeline.Runner, func() error, error) {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return nil, nil, err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return nil, nil, err
	}
	if window > 0 {
		scoped := *cfg
		scoped.Mailbox.Window = window
		cfg = &scoped
	}
	return pipeline.Build(runCtx, cfg, cmd.OutOrStdout(), logger)
}

func commandContextOrBackground(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
