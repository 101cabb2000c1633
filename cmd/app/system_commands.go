package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/ohcore/fbekeyd/internal/app"
	"github.com/ohcore/fbekeyd/internal/config"
	adminhttp "github.com/ohcore/fbekeyd/internal/http"
)

const shutdownTimeout = 10 * time.Second

func closeContainer(ctx context.Context, container *app.Container, logger *slog.Logger) {
	if err := container.Shutdown(ctx); err != nil {
		logger.Error("failed to shutdown container", slog.Any("error", err))
	}
}

func getSystemCommands() []*cli.Command {
	return []*cli.Command{
		{
			Name:  "server",
			Usage: "Start the admin HTTP surface (health, readiness, metrics)",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return runServer(ctx)
			},
		},
		{
			Name:  "init",
			Usage: "Run the daemon's boot sequence: device key then global user keys",
			Action: func(ctx context.Context, cmd *cli.Command) error {
				return runInit(ctx)
			},
		},
	}
}

// runServer starts the admin HTTP surface and the dedicated metrics
// scrape server side by side, shutting both down on SIGTERM/SIGINT.
func runServer(ctx context.Context) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	logger.Info("starting fbekeyd", slog.String("version", version))

	defer closeContainer(context.Background(), container, logger)

	adminServer, err := container.AdminServer()
	if err != nil {
		return fmt.Errorf("failed to initialize admin server: %w", err)
	}

	var metricsServer *adminhttp.MetricsServer
	if cfg.MetricsEnabled && cfg.MetricsPort != cfg.ServerPort {
		metricsServer, err = container.MetricsServer()
		if err != nil {
			return fmt.Errorf("failed to initialize metrics server: %w", err)
		}
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	serverErr := make(chan error, 2)
	go func() {
		if err := adminServer.Start(ctx); err != nil {
			serverErr <- err
		}
	}()
	if metricsServer != nil {
		go func() {
			if err := metricsServer.Start(ctx); err != nil {
				serverErr <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := adminServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("admin server shutdown failed: %w", err)
		}
		if metricsServer != nil {
			if err := metricsServer.Shutdown(shutdownCtx); err != nil {
				return fmt.Errorf("metrics server shutdown failed: %w", err)
			}
		}
	case err := <-serverErr:
		return err
	}

	return nil
}

// runInit provisions the device-bound key and the device owner's global
// user keys, the sequence the daemon must complete before any per-user
// operation can succeed.
func runInit(ctx context.Context) error {
	cfg := config.Load()
	container := app.NewContainer(cfg)
	logger := container.Logger()
	defer closeContainer(ctx, container, logger)

	km, err := container.KeyManager(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize key manager: %w", err)
	}

	if err := km.InitGlobalDeviceKey(ctx); err != nil {
		return fmt.Errorf("failed to init global device key: %w", err)
	}
	logger.Info("global device key ready")

	if err := km.InitGlobalUserKeys(ctx); err != nil {
		return fmt.Errorf("failed to init global user keys: %w", err)
	}
	logger.Info("global user keys ready")

	return nil
}
