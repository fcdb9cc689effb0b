package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"curve-analyzer/internal/config"
	"curve-analyzer/internal/logging"
	"curve-analyzer/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "curvelogd: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(cfg.Logging)
	if err != nil {
		return err
	}
	defer closer.Close()
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting curvelogd",
		slog.String("addr", cfg.Server.Addr),
		slog.Int("smoothing_window", cfg.Analysis.SmoothingWindow),
		slog.Int64("max_upload_bytes", cfg.Server.MaxUploadBytes),
	)
	if err := server.New(*cfg, logger).ListenAndServe(ctx); err != nil {
		logger.Error("server stopped with error", slog.String("error", err.Error()))
		return err
	}
	logger.Info("server stopped")
	return nil
}
