package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/FranksOps/trustcheck/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve lookups over HTTP",
		Long: `serve exposes GET /search?name=...&lang=..., GET /metrics and GET /healthz.
It shuts down gracefully on SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := c.load(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			a, err := build(cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			srv := server.New(a.engine, server.Config{
				Addr:            cfg.Server.Addr,
				ShutdownTimeout: cfg.Server.ShutdownTimeout,
			}, logger)
			return srv.ListenAndServe(ctx)
		},
	}

	cmd.Flags().String("addr", ":8080", "listen address")
	c.bind("server.addr", cmd.Flags().Lookup("addr"))
	return cmd
}
