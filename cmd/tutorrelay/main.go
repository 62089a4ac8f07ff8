package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"tutorrelay/internal/app"
	"tutorrelay/internal/config"
	"tutorrelay/internal/logging"
)

const (
	configFileEnv   = "TUTORRELAY_CONFIG_FILE"
	shutdownTimeout = 30 * time.Second
)

func main() {
	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGINT, syscall.SIGTERM)

	if err := run(os.Getenv(configFileEnv), signalCh); err != nil {
		log.Fatal(err)
	}
}

// run starts the relay and blocks until a signal arrives or the server fails.
func run(configPath string, signalCh <-chan os.Signal) error {
	cfg, err := config.LoadConfigWithPrecedence(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.New(cfg.Log, cfg.Env)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	application, err := app.NewApplication(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create application: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		return fmt.Errorf("application error: %w", err)
	}

	var runErr error
	select {
	case err := <-application.Errors():
		runErr = fmt.Errorf("application error: %w", err)
	case sig := <-signalCh:
		logger.Info("Received signal, shutting down gracefully", zap.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := application.Stop(shutdownCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("shutdown error: %w", err)
	}
	return runErr
}
