package main

import (
	"os/signal"
	"syscall"

	"github.com/example/go-aidetect/internal/detect"
	"github.com/example/go-aidetect/internal/server"
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the detector web UI and JSON API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			d, err := detect.Load(cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return server.New(cfg, d).Start(ctx)
		},
	}
}
