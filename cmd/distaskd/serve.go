package main

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/xraph/distask/coordinator"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a cluster member",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		logger := newLogger(cfg.Log, os.Stderr)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		n, err := startNode(ctx, cfg, logger, cfg.Member.Threads, coordinator.LocalPlacement{})
		if err != nil {
			return err
		}
		logger.Info("distaskd serving",
			slog.String("member", n.transport.Address()),
			slog.String("url", n.transport.URL()),
			slog.String("cluster", cfg.Cluster.Name),
		)

		<-ctx.Done()
		logger.Info("distaskd shutting down")
		return n.close()
	},
}
