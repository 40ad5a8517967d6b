package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spounge-ai/blitzfind/internal/infra/telemetry"
	"github.com/spounge-ai/blitzfind/internal/wiring"
)

func newServeCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return c.serve(cmd.Context())
		},
	}
}

func (c *cli) serve(ctx context.Context) error {
	shutdownTracing, err := telemetry.Setup(ctx, c.cfg.Telemetry, c.cfg.ServiceVersion)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.WithoutCancel(ctx)); err != nil {
			c.logger.Error("failed to flush traces", "error", err)
		}
	}()

	return c.withContainer(ctx, func(container *wiring.Container) error {
		srv, err := container.NewHTTPServer()
		if err != nil {
			return fmt.Errorf("failed to create server: %w", err)
		}

		manager := container.Lifecycle(srv)
		if err := manager.Start(ctx); err != nil {
			return err
		}
		c.logger.Info("application started successfully",
			"address", srv.Addr(),
			"driver", c.cfg.Persistence.Driver,
			"version", c.cfg.ServiceVersion,
		)

		<-ctx.Done()
		c.logger.Info("shutdown signal received, stopping")

		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := manager.Stop(stopCtx); err != nil {
			return err
		}
		c.logger.Info("shutdown complete")
		return nil
	})
}
