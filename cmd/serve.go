package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/askdocs/askdocs/internal/api"
	"github.com/askdocs/askdocs/internal/app"
	"github.com/askdocs/askdocs/internal/config"
	"github.com/askdocs/askdocs/internal/log"
)

// runServe initializes the application and starts the HTTP API server.
func runServe(cfg *config.Config, logger log.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger.Info("starting askdocs server", "version", Version)

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	if count, err := a.Store.Count(ctx); err == nil && count == 0 {
		logger.Warn("the index is empty, run `askdocs index` to index your docs")
	}

	srv, err := api.NewServer(api.Config{
		Pipeline:        a.Pipeline,
		Sessions:        a.Sessions,
		DB:              a.DBPool,
		Index:           a.Store,
		MaxHistoryTurns: cfg.MaxHistoryTurns,
		Logger:          logger,
	})
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}

	return srv.Run(ctx, cfg.Addr)
}
