package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/pario-ai/dynroute/pkg/mcp"
)

func newMCPCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the dynamic endpoints and answer MCP tool calls on stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithCancel(ctx)
			defer cancel()

			errCh := make(chan error, 1)
			go func() { errCh <- a.server.ListenAndServe(ctx) }()

			srv := mcp.New(a.registry, a.store, a.logger, version)
			runErr := srv.Run(ctx, os.Stdin, os.Stdout)
			if errors.Is(runErr, context.Canceled) {
				runErr = nil
			}

			// stdin closed or signalled: stop the HTTP listeners too.
			cancel()
			if err := <-errCh; err != nil {
				a.logger.Error("http server", zap.Error(err))
				if runErr == nil {
					runErr = err
				}
			}
			return runErr
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "dynroute.yaml", "path to config file")
	return cmd
}
