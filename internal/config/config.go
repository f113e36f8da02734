package config

import (
	"errors"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server      ServerConfig      `yaml:"server"`
	Postgres    PostgresConfig    `yaml:"postgres"`
	ClickHouse  ClickHouseConfig  `yaml:"clickhouse"`
	Redis       RedisConfig       `yaml:"redis"`
	Kafka       KafkaConfig       `yaml:"kafka"`
	EventSource EventSourceConfig `yaml:"event_source"`
	GeoIP       GeoIPConfig       `yaml:"geoip"`
	Aggregation AggregationConfig `yaml:"aggregation"`
	Schedule    ScheduleConfig    `yaml:"schedule"`
	Rollup      RollupConfig      `yaml:"rollup"`
	OTEL        OTELConfig        `yaml:"otel"`
	Log         LogConfig         `yaml:"log"`
}

type ServerConfig struct {
	HTTPPort   int    `yaml:"http_port"`
	CronSecret string `yaml:"cron_secret"`
}

type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

type ClickHouseConfig struct {
	Addr         string `yaml:"addr"`
	Database     string `yaml:"database"`
	Username     string `yaml:"username"`
	Password     string `yaml:"password"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

type RedisConfig struct {
	Addr           string        `yaml:"addr"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	ListerCacheTTL time.Duration `yaml:"lister_cache_ttl"`
}

type KafkaConfig struct {
	Brokers       []string          `yaml:"brokers"`
	Topics        map[string]string `yaml:"topics"`
	ConsumerGroup string            `yaml:"consumer_group"`
}

// EventSourceConfig points at the external analytics export API.
type EventSourceConfig struct {
	BaseURL    string        `yaml:"base_url"`
	ProjectID  string        `yaml:"project_id"`
	APISecret  string        `yaml:"api_secret"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries int           `yaml:"max_retries"`
}

type GeoIPConfig struct {
	DatabasePath string `yaml:"database_path"`
}

type AggregationConfig struct {
	DefaultLookback time.Duration `yaml:"default_lookback"`
	TestLookback    time.Duration `yaml:"test_lookback"`
	MaxLookback     time.Duration `yaml:"max_lookback"`
	StuckThreshold  time.Duration `yaml:"stuck_threshold"`
	BatchSize       int           `yaml:"batch_size"`
}

type ScheduleConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type RollupConfig struct {
	MaxRetries int `yaml:"max_retries"`
}

type OTELConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

type LogConfig struct {
	Env   string `yaml:"env"`
	Level string `yaml:"level"`
}

func Load(path string) (*Config, error) {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, err
	}

	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Server.HTTPPort == 0 {
		c.Server.HTTPPort = 8080
	}
	if c.Postgres.MaxConns == 0 {
		c.Postgres.MaxConns = 10
	}
	if c.ClickHouse.MaxOpenConns == 0 {
		c.ClickHouse.MaxOpenConns = 10
	}
	if c.ClickHouse.MaxIdleConns == 0 {
		c.ClickHouse.MaxIdleConns = 5
	}
	if c.Redis.ListerCacheTTL == 0 {
		c.Redis.ListerCacheTTL = 30 * time.Minute
	}
	if c.Kafka.ConsumerGroup == "" {
		c.Kafka.ConsumerGroup = "analytics-rollup-consumer"
	}
	if c.EventSource.Timeout == 0 {
		c.EventSource.Timeout = 60 * time.Second
	}
	if c.EventSource.MaxRetries == 0 {
		c.EventSource.MaxRetries = 3
	}

	if c.Aggregation.DefaultLookback == 0 {
		c.Aggregation.DefaultLookback = time.Hour
	}
	if c.Aggregation.TestLookback == 0 {
		c.Aggregation.TestLookback = 24 * time.Hour
	}
	if c.Aggregation.MaxLookback == 0 {
		c.Aggregation.MaxLookback = 72 * time.Hour
	}
	if c.Aggregation.StuckThreshold == 0 {
		c.Aggregation.StuckThreshold = 2 * time.Hour
	}
	if c.Aggregation.BatchSize == 0 {
		c.Aggregation.BatchSize = 1000
	}

	if c.Rollup.MaxRetries == 0 {
		c.Rollup.MaxRetries = 5
	}
	if c.OTEL.ServiceName == "" {
		c.OTEL.ServiceName = "listing-analytics"
	}
	if c.Log.Env == "" {
		c.Log.Env = "development"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Topic returns the configured topic for name, or fallback when unset.
func (k KafkaConfig) Topic(name, fallback string) string {
	if t := k.Topics[name]; t != "" {
		return t
	}
	return fallback
}
