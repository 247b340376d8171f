package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/opub/mkrs.info/config"
	"github.com/opub/mkrs.info/internal/api"
	"github.com/opub/mkrs.info/internal/pipeline"
	"github.com/opub/mkrs.info/internal/server"
)

func main() {
	configPath := flag.String("config", getEnv("MKRS_CONFIG", ""), "optional YAML config file")
	serve := flag.Bool("serve", false, "serve the snapshot and keep refreshing on an interval")
	flag.Parse()

	logger, err := zap.NewDevelopment()
	if err != nil {
		os.Exit(1)
	}
	defer logger.Sync()

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	fetcher := api.New(cfg.API, cfg.Client, logger)
	coordinator := pipeline.New(cfg.Pipeline, fetcher, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if !*serve {
		// one-shot batch job: sync once and exit
		if _, err := coordinator.Run(ctx); err != nil {
			logger.Fatal("sync failed", zap.Error(err))
		}
		return
	}

	srv := server.New(cfg.Server, logger)

	go func() {
		if err := srv.Start(ctx); err != nil {
			logger.Error("server stopped", zap.Error(err))
			cancel()
		}
	}()

	go func() {
		for {
			result, err := coordinator.Run(ctx)
			if err != nil {
				logger.Error("sync failed", zap.Error(err))
			} else {
				srv.NotifyRefresh(result.RunID)
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(cfg.Pipeline.RefreshInterval):
			}
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
	}
	cancel()
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
