package main

import (
	"time"

	"github.com/0xSaurabhSharma/code-correction-agent/services"
	"github.com/mudler/xlog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the repair API over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}

			rt, err := services.New(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			app := rt.App()

			g, ctx := errgroup.WithContext(cmd.Context())
			g.Go(func() error {
				xlog.Info("Listening", "addr", cfg.Server.Addr)
				return app.Listen(cfg.Server.Addr)
			})
			g.Go(func() error {
				<-ctx.Done()
				return app.ShutdownWithTimeout(10 * time.Second)
			})
			return g.Wait()
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides server.addr)")

	return cmd
}
