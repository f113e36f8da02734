package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/analytics/internal/aggregator"
	"github.com/gosight/gosight/analytics/internal/config"
	"github.com/gosight/gosight/analytics/internal/events"
	"github.com/gosight/gosight/analytics/internal/eventsource"
	"github.com/gosight/gosight/analytics/internal/handler"
	"github.com/gosight/gosight/analytics/internal/listings"
	"github.com/gosight/gosight/analytics/internal/notify"
	"github.com/gosight/gosight/analytics/internal/observability"
	"github.com/gosight/gosight/analytics/internal/orchestrator"
	"github.com/gosight/gosight/analytics/internal/rollup"
	"github.com/gosight/gosight/analytics/internal/runledger"
	"github.com/gosight/gosight/analytics/internal/saleledger"
	"github.com/gosight/gosight/analytics/internal/storage"
	"github.com/gosight/gosight/analytics/internal/timeseries"
)

func main() {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/aggregator.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", configPath).Msg("Failed to load config")
	}
	observability.InitLogger(cfg.OTEL.ServiceName, cfg.Log.Env, cfg.Log.Level)

	log.Info().
		Str("clickhouse_addr", cfg.ClickHouse.Addr).
		Str("redis_addr", cfg.Redis.Addr).
		Str("event_source", cfg.EventSource.BaseURL).
		Dur("schedule_interval", cfg.Schedule.Interval).
		Msg("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled {
		shutdown, err := observability.SetupTracing(ctx, cfg.OTEL.ServiceName, cfg.OTEL.Endpoint)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to set up tracing")
		}
		defer shutdown(context.Background())
		log.Info().Str("endpoint", cfg.OTEL.Endpoint).Msg("Tracing enabled")
	}

	// Postgres
	pool, err := storage.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Postgres")
	}
	defer pool.Close()
	log.Info().Msg("Connected to Postgres")

	runStore := runledger.NewPostgresStore(pool)
	if err := runStore.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure run ledger schema")
	}
	rollupStore := rollup.NewPostgresStore(pool)
	if err := rollupStore.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure daily rollup schema")
	}

	// ClickHouse
	ch, err := storage.NewClickHouse(ctx, cfg.ClickHouse)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to ClickHouse")
	}
	defer ch.Close()
	log.Info().Msg("Connected to ClickHouse")

	listingStore := listings.NewStore(pool)
	var resolver timeseries.ListerResolver = listingStore
	if cfg.Redis.Addr != "" {
		rdb := storage.NewRedis(cfg.Redis)
		defer rdb.Close()
		resolver = storage.NewListerCache(rdb, listingStore, cfg.Redis.ListerCacheTTL)
		log.Info().Msg("Lister cache initialized")
	}

	enricher := events.NewEnricher(cfg.GeoIP.DatabasePath)
	defer enricher.Close()

	publisher := notify.NewKafkaPublisher(cfg.Kafka)
	defer publisher.Close()

	orch := orchestrator.New(orchestrator.Deps{
		Ledger:     runledger.NewLedger(runStore, cfg.Aggregation.StuckThreshold),
		Fetcher:    eventsource.NewClient(cfg.EventSource),
		Directory:  listingStore,
		Aggregator: aggregator.New(events.NewParser(enricher)),
		Writer:     timeseries.NewWriter(ch, storage.NewLeadStore(pool), resolver, cfg.Aggregation.BatchSize),
		Counters:   listingStore,
		Rollup:     rollup.NewMerger(rollupStore, cfg.Rollup.MaxRetries),
		Publisher:  publisher,
	}, orchestrator.Lookbacks{
		Default: cfg.Aggregation.DefaultLookback,
		Test:    cfg.Aggregation.TestLookback,
		Max:     cfg.Aggregation.MaxLookback,
	})

	saleStore := saleledger.NewPostgresStore(pool)
	if err := saleStore.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure sale ledger schema")
	}
	reconciler := saleledger.NewReconciler(saleStore, listingStore)

	scheduler := orchestrator.NewScheduler(orch, cfg.Schedule.Interval)
	scheduler.Start(ctx)

	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:           handler.NewRouter(handler.NewHTTPHandler(orch), handler.NewRevenueHandler(reconciler), cfg.Server.CronSecret),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Int("port", cfg.Server.HTTPPort).Msg("Starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to serve HTTP")
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}
	cancel()
	scheduler.Stop()
	log.Info().Msg("Aggregator stopped")
}
