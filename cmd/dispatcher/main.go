package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/Romanvolodimer/Dispetcher-progecr/internal/app"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/config"
	"github.com/Romanvolodimer/Dispetcher-progecr/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("info")
		logger.Logger.Fatal().Err(err).Msg("invalid configuration")
	}

	logger.Init(cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a := app.New(cfg)

	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigs:
		logger.Logger.Info().Msg("shutting down")
		cancel()
		if err := <-done; err != nil {
			logger.Logger.Error().Err(err).Msg("dispatcher exited with error")
			os.Exit(1)
		}
	case err := <-done:
		if err != nil {
			logger.Logger.Error().Err(err).Msg("dispatcher exited")
			os.Exit(1)
		}
	}
}
