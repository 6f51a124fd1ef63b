// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for every
// subsystem (Corpus, Crawler, Indexer, Search, PageRank, Redis, Kafka, etc.).
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Corpus   CorpusConfig   `yaml:"corpus"`
	Crawler  CrawlerConfig  `yaml:"crawler"`
	Dedup    DedupConfig    `yaml:"dedup"`
	Indexer  IndexerConfig  `yaml:"indexer"`
	Search   SearchConfig   `yaml:"search"`
	PageRank PageRankConfig `yaml:"pageRank"`
	Server   ServerConfig   `yaml:"server"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Logging  LoggingConfig  `yaml:"logging"`
	Tracing  TracingConfig  `yaml:"tracing"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// CorpusConfig points at the pre-fetched JSON document tree.
type CorpusConfig struct {
	Dir string `yaml:"dir"`
}

// CrawlerConfig controls the frontier store and the worker pool.
type CrawlerConfig struct {
	Workers       int           `yaml:"workers"`
	StateFile     string        `yaml:"stateFile"`
	Politeness    time.Duration `yaml:"politeness"`
	ProgressEvery int           `yaml:"progressEvery"`
}

// DedupConfig controls the near-duplicate filter.
type DedupConfig struct {
	Enabled   bool    `yaml:"enabled"`
	Capacity  int     `yaml:"capacity"`
	Threshold float64 `yaml:"threshold"`
}

// IndexerConfig controls where shards are written, when batches are flushed,
// and which builder implementation is used.
type IndexerConfig struct {
	// Mode is "sharded" (batch + merge) or "memory" (single in-memory batch).
	Mode             string        `yaml:"mode"`
	DataDir          string        `yaml:"dataDir"`
	TempDir          string        `yaml:"tempDir"`
	BatchMaxPostings int           `yaml:"batchMaxPostings"`
	FlushInterval    time.Duration `yaml:"flushInterval"`
	CleanupTemp      bool          `yaml:"cleanupTemp"`
	StorePositions   bool          `yaml:"storePositions"`
	StemLanguage     string        `yaml:"stemLanguage"`
	URLTableFile     string        `yaml:"urlTableFile"`
	ReportFile       string        `yaml:"reportFile"`
}

// SearchConfig controls query-time ranking and caching.
type SearchConfig struct {
	MaxResults     int     `yaml:"maxResults"`
	ShardCacheSize int     `yaml:"shardCacheSize"`
	ImportantBoost float64 `yaml:"importantBoost"`
	PageRankWeight float64 `yaml:"pageRankWeight"`
	Suggestions    bool    `yaml:"suggestions"`
	// MinSuggestSimilarity is the go-edlib similarity floor for suggestions.
	MinSuggestSimilarity float32 `yaml:"minSuggestSimilarity"`
}

// PageRankConfig controls link-graph persistence and the power iteration.
type PageRankConfig struct {
	Damping    float64 `yaml:"damping"`
	Iterations int     `yaml:"iterations"`
	GraphFile  string  `yaml:"graphFile"`
	OutputFile string  `yaml:"outputFile"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	// RateLimit is requests per second per client; 0 disables limiting.
	RateLimit       float64       `yaml:"rateLimit"`
	RateBurst       int           `yaml:"rateBurst"`
	CORSOrigins     []string      `yaml:"corsOrigins"`
}

// PostgresConfig holds PostgreSQL connection parameters.
type PostgresConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexComplete   string `yaml:"indexComplete"`
	AnalyticsEvents string `yaml:"analyticsEvents"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig toggles span logging for build phases.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. A .env file in the working directory is loaded first when it
// exists. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env file: %w", err)
	}
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the built-in configuration without reading any file.
func Default() *Config {
	return defaultConfig()
}

// Validate rejects values no component can run with.
func (c *Config) Validate() error {
	var problems []string
	if c.Crawler.Workers <= 0 {
		problems = append(problems, "crawler.workers must be positive")
	}
	if c.Dedup.Capacity <= 0 {
		problems = append(problems, "dedup.capacity must be positive")
	}
	if c.Dedup.Threshold <= 0 || c.Dedup.Threshold > 1 {
		problems = append(problems, "dedup.threshold must be in (0, 1]")
	}
	if c.Indexer.Mode != "sharded" && c.Indexer.Mode != "memory" {
		problems = append(problems, fmt.Sprintf("indexer.mode %q must be sharded or memory", c.Indexer.Mode))
	}
	if c.Search.MaxResults <= 0 {
		problems = append(problems, "search.maxResults must be positive")
	}
	if c.Search.ShardCacheSize <= 0 {
		problems = append(problems, "search.shardCacheSize must be positive")
	}
	if c.PageRank.Damping <= 0 || c.PageRank.Damping >= 1 {
		problems = append(problems, "pageRank.damping must be in (0, 1)")
	}
	if c.PageRank.Iterations <= 0 {
		problems = append(problems, "pageRank.iterations must be positive")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// defaultConfig returns a Config with defaults suitable for local runs.
func defaultConfig() *Config {
	return &Config{
		Corpus: CorpusConfig{
			Dir: "./corpus",
		},
		Crawler: CrawlerConfig{
			Workers:       16,
			StateFile:     "./data/frontier.db",
			ProgressEvery: 1000,
		},
		Dedup: DedupConfig{
			Enabled:   true,
			Capacity:  50,
			Threshold: 0.9,
		},
		Indexer: IndexerConfig{
			Mode:             "sharded",
			DataDir:          "./data/index",
			TempDir:          "./data/index/partial",
			BatchMaxPostings: 250000,
			CleanupTemp:      true,
			StemLanguage:     "english",
			URLTableFile:     "./data/urls.json",
			ReportFile:       "./report.txt",
		},
		Search: SearchConfig{
			MaxResults:           5,
			ShardCacheSize:       5,
			ImportantBoost:       2.5,
			Suggestions:          true,
			MinSuggestSimilarity: 0.6,
		},
		PageRank: PageRankConfig{
			Damping:    0.85,
			Iterations: 5,
			GraphFile:  "./data/linkgraph.json",
			OutputFile: "./data/pagerank.json",
		},
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			RateBurst:       20,
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "corpussearch",
			User:            "corpussearch",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "corpussearch-group",
			Topics: KafkaTopics{
				IndexComplete:   "index.complete",
				AnalyticsEvents: "analytics-events",
			},
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			PoolSize: 10,
			CacheTTL: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads SP_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SP_CORPUS_DIR"); v != "" {
		cfg.Corpus.Dir = v
	}
	if v := os.Getenv("SP_CRAWLER_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Crawler.Workers = n
		}
	}
	if v := os.Getenv("SP_CRAWLER_STATE_FILE"); v != "" {
		cfg.Crawler.StateFile = v
	}
	if v := os.Getenv("SP_INDEXER_DATA_DIR"); v != "" {
		cfg.Indexer.DataDir = v
	}
	if v := os.Getenv("SP_INDEXER_TEMP_DIR"); v != "" {
		cfg.Indexer.TempDir = v
	}
	if v := os.Getenv("SP_INDEXER_MODE"); v != "" {
		cfg.Indexer.Mode = v
	}
	if v := os.Getenv("SP_SEARCH_PAGERANK_WEIGHT"); v != "" {
		if w, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Search.PageRankWeight = w
		}
	}
	if v := os.Getenv("SP_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_ENABLED"); v != "" {
		cfg.Postgres.Enabled = parseBool(v, cfg.Postgres.Enabled)
	}
	if v := os.Getenv("SP_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("SP_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("SP_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("SP_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("SP_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("SP_POSTGRES_SSLMODE"); v != "" {
		cfg.Postgres.SSLMode = v
	}
	if v := os.Getenv("SP_KAFKA_ENABLED"); v != "" {
		cfg.Kafka.Enabled = parseBool(v, cfg.Kafka.Enabled)
	}
	if v := os.Getenv("SP_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("SP_REDIS_ENABLED"); v != "" {
		cfg.Redis.Enabled = parseBool(v, cfg.Redis.Enabled)
	}
	if v := os.Getenv("SP_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("SP_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SP_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SP_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("SP_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v, cfg.Metrics.Enabled)
	}
}

func parseBool(v string, fallback bool) bool {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return b
}
