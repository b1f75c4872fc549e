package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/0xSaurabhSharma/code-correction-agent/pkg/config"
	"github.com/0xSaurabhSharma/code-correction-agent/services"
	"github.com/mudler/xlog"
	"golang.org/x/sync/errgroup"
)

func main() {
	cfg, err := config.Load("")
	if err != nil {
		xlog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := services.New(ctx, cfg)
	if err != nil {
		xlog.Error("Failed to start", "error", err)
		os.Exit(1)
	}

	app := rt.App()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		xlog.Info("Listening", "addr", cfg.Server.Addr)
		return app.Listen(cfg.Server.Addr)
	})
	g.Go(func() error {
		<-ctx.Done()
		xlog.Info("Shutting down")
		return app.ShutdownWithTimeout(10 * time.Second)
	})

	if err := g.Wait(); err != nil {
		xlog.Error("Server stopped", "error", err)
		os.Exit(1)
	}
}
