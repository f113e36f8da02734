package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "aggregator.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "postgres:\n  dsn: postgres://localhost/analytics\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/analytics", cfg.Postgres.DSN)
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, time.Hour, cfg.Aggregation.DefaultLookback)
	assert.Equal(t, 24*time.Hour, cfg.Aggregation.TestLookback)
	assert.Equal(t, 2*time.Hour, cfg.Aggregation.StuckThreshold)
	assert.Equal(t, 1000, cfg.Aggregation.BatchSize)
	assert.Equal(t, 5, cfg.Rollup.MaxRetries)
	assert.Equal(t, 3, cfg.EventSource.MaxRetries)
	assert.Equal(t, "development", cfg.Log.Env)
}

func TestLoad_ExpandsEnvironment(t *testing.T) {
	t.Setenv("ANALYTICS_TEST_SECRET", "s3cret")
	path := writeConfig(t, `
server:
  http_port: 9090
  cron_secret: ${ANALYTICS_TEST_SECRET}
aggregation:
  stuck_threshold: 90m
kafka:
  brokers: ["localhost:9092"]
  topics:
    listing_mutations: listings.mutations
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.HTTPPort)
	assert.Equal(t, "s3cret", cfg.Server.CronSecret)
	assert.Equal(t, 90*time.Minute, cfg.Aggregation.StuckThreshold)
	assert.Equal(t, "listings.mutations", cfg.Kafka.Topic("listing_mutations", "fallback"))
	assert.Equal(t, "fallback", cfg.Kafka.Topic("run_summaries", "fallback"))
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
