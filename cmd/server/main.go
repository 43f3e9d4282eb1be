package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/chpollin/depcha-dashboard/internal/archive"
	"github.com/chpollin/depcha-dashboard/internal/config"
	"github.com/chpollin/depcha-dashboard/internal/graph"
	"github.com/chpollin/depcha-dashboard/internal/logging"
	"github.com/chpollin/depcha-dashboard/internal/metrics"
	"github.com/chpollin/depcha-dashboard/internal/repository"
	"github.com/chpollin/depcha-dashboard/internal/server"
	"github.com/chpollin/depcha-dashboard/internal/service"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)
	if err := run(ctx, logger, cfg); err != nil {
		logger.Error("server stopped unexpectedly", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, cfg config.Config) error {
	recorder := metrics.New()

	opts := service.Options{
		TTL:          cfg.Pipeline.CacheTTL,
		TraderLimit:  cfg.Pipeline.TraderLimit,
		RecentLimit:  cfg.Pipeline.RecentLimit,
		Workers:      cfg.Archive.MaxConcurrent,
		FetchTimeout: cfg.Archive.Timeout,
		Metrics:      recorder,
		Logger:       logger,
	}

	health := server.HealthChecks{}
	var partners server.PartnerLookup
	if cfg.GraphEnabled() {
		graphClient, err := graph.NewNeo4jClient(ctx, graph.OptionsFromConfig(cfg.Graph))
		if err != nil {
			return fmt.Errorf("create graph client: %w", err)
		}
		defer func() {
			if err := graphClient.Close(context.Background()); err != nil {
				logger.Warn("closing graph client failed", "error", err)
			}
		}()

		repo := repository.NewNetworkRepository(graphClient, cfg.Graph.BatchSize)
		if err := repo.EnsureSchema(ctx); err != nil {
			logger.Warn("graph schema setup failed", "error", err)
		}
		opts.Graph = repo
		partners = repo
		health = append(health, server.GraphHealthService{Client: graphClient})
	}

	svc := service.NewContextService(buildSource(logger, cfg.Archive), opts)
	health = append(health, server.CatalogueHealthService{Catalogue: svc})

	deps := server.RouterDependencies{
		Health:           health,
		API:              server.NewAPIHandlers(logger, svc, partners),
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		AllowCredentials: true,
	}
	if cfg.HTTP.MetricsEnabled {
		deps.Metrics = recorder.Handler()
	}

	if len(cfg.Pipeline.Preload) > 0 {
		go func() {
			batch := service.NewBatch(svc, cfg.Pipeline.PreloadWorkers)
			if err := batch.LoadAll(ctx, cfg.Pipeline.Preload); err != nil {
				logger.Warn("preload incomplete", "error", err)
				return
			}
			logger.Info("preload finished", "contexts", len(cfg.Pipeline.Preload))
		}()
	}

	srv := server.New(logger, cfg.HTTP, server.NewRouter(logger, deps))
	return srv.Run(ctx)
}

// buildSource reads books from DataDir when set, otherwise from the archive.
func buildSource(logger *slog.Logger, cfg config.ArchiveConfig) service.Source {
	if cfg.DataDir != "" {
		logger.Info("serving books from directory", "dir", cfg.DataDir)
		return archive.NewDirectory(cfg.DataDir)
	}
	logger.Info("serving books from archive", "url", cfg.BaseURL)
	return archive.NewClient(cfg, logger)
}
