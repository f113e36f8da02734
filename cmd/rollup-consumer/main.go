package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"

	"github.com/gosight/gosight/analytics/internal/config"
	"github.com/gosight/gosight/analytics/internal/consumer"
	"github.com/gosight/gosight/analytics/internal/listings"
	"github.com/gosight/gosight/analytics/internal/mutation"
	"github.com/gosight/gosight/analytics/internal/observability"
	"github.com/gosight/gosight/analytics/internal/rollup"
	"github.com/gosight/gosight/analytics/internal/saleledger"
	"github.com/gosight/gosight/analytics/internal/storage"
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
	observability.InitLogger(cfg.OTEL.ServiceName+"-rollup", cfg.Log.Env, cfg.Log.Level)

	log.Info().
		Strs("kafka_brokers", cfg.Kafka.Brokers).
		Str("consumer_group", cfg.Kafka.ConsumerGroup).
		Int("rollup_max_retries", cfg.Rollup.MaxRetries).
		Msg("Configuration loaded")

	ctx, cancel := context.WithCancel(context.Background())

	if cfg.OTEL.Enabled {
		shutdown, err := observability.SetupTracing(ctx, cfg.OTEL.ServiceName+"-rollup", cfg.OTEL.Endpoint)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to set up tracing")
		}
		defer shutdown(context.Background())
	}

	pool, err := storage.NewPostgres(ctx, cfg.Postgres)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Postgres")
	}
	defer pool.Close()
	log.Info().Msg("Connected to Postgres")

	saleStore := saleledger.NewPostgresStore(pool)
	if err := saleStore.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure sale ledger schema")
	}
	rollupStore := rollup.NewPostgresStore(pool)
	if err := rollupStore.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to ensure daily rollup schema")
	}

	processor := mutation.NewProcessor(
		saleledger.NewReconciler(saleStore, listings.NewStore(pool)),
		rollup.NewMerger(rollupStore, cfg.Rollup.MaxRetries),
	)

	kafkaConsumer := consumer.NewKafkaConsumer(cfg.Kafka, processor)
	go kafkaConsumer.Start(ctx)

	log.Info().Msg("Rollup consumer started")

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down...")
	cancel()
	if err := kafkaConsumer.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close Kafka consumer")
	}
	log.Info().Msg("Rollup consumer stopped")
}
