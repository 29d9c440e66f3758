// Package config loads application configuration from YAML files with
// environment-variable overrides. It provides typed structs for every
// subsystem (Server, Storage, Indexer, Search, Upload, Kafka, etc.).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Indexer IndexerConfig `yaml:"indexer"`
	Search  SearchConfig  `yaml:"search"`
	Upload  UploadConfig  `yaml:"upload"`
	Kafka   KafkaConfig   `yaml:"kafka"`
	Logging LoggingConfig `yaml:"logging"`
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

// StorageConfig locates the uploaded documents and the index generations.
type StorageConfig struct {
	DocumentDir string `yaml:"documentDir"`
	IndexDir    string `yaml:"indexDir"`
}

// IndexerConfig controls how line units are built and persisted.
type IndexerConfig struct {
	Backend         string        `yaml:"backend"`
	BuildTimeout    time.Duration `yaml:"buildTimeout"`
	StoreRawContent bool          `yaml:"storeRawContent"`
	BuildOnStart    bool          `yaml:"buildOnStart"`
	Watch           bool          `yaml:"watch"`
	WatchDebounce   time.Duration `yaml:"watchDebounce"`
}

// SearchConfig controls query execution limits, timeouts and excerpts.
type SearchConfig struct {
	MaxResults        int           `yaml:"maxResults"`
	Timeout           time.Duration `yaml:"timeout"`
	NormalizeQuery    bool          `yaml:"normalizeQuery"`
	ExcerptMaxChars   int           `yaml:"excerptMaxChars"`
	ExcerptSurround   int           `yaml:"excerptSurround"`
	ProvenanceWorkers int           `yaml:"provenanceWorkers"`
}

// UploadConfig bounds accepted uploads.
type UploadConfig struct {
	MaxBytes  int64  `yaml:"maxBytes"`
	FormField string `yaml:"formField"`
}

// KafkaConfig holds Kafka broker and topic settings. Events are only
// published and consumed when Enabled is set.
type KafkaConfig struct {
	Enabled       bool        `yaml:"enabled"`
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	IndexComplete string `yaml:"indexComplete"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TracingConfig toggles span logging for search requests.
type TracingConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
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

// Validate reports configuration that cannot run.
func (c *Config) Validate() error {
	switch c.Indexer.Backend {
	case "segment", "bleve":
	default:
		return fmt.Errorf("indexer.backend: unknown backend %q", c.Indexer.Backend)
	}
	if c.Storage.DocumentDir == "" {
		return fmt.Errorf("storage.documentDir is required")
	}
	if c.Storage.IndexDir == "" {
		return fmt.Errorf("storage.indexDir is required")
	}
	if err := checkDisjoint(c.Storage.DocumentDir, c.Storage.IndexDir); err != nil {
		return err
	}
	if c.Search.MaxResults < 0 {
		return fmt.Errorf("search.maxResults must not be negative")
	}
	return nil
}

// checkDisjoint rejects document and index directories that overlap. A
// shared tree would have the builder index its own generation files.
func checkDisjoint(docDir, indexDir string) error {
	docs, err := filepath.Abs(docDir)
	if err != nil {
		return fmt.Errorf("storage.documentDir: %w", err)
	}
	index, err := filepath.Abs(indexDir)
	if err != nil {
		return fmt.Errorf("storage.indexDir: %w", err)
	}
	switch {
	case docs == index:
		return fmt.Errorf("storage.documentDir and storage.indexDir must differ (both %s)", docs)
	case within(docs, index):
		return fmt.Errorf("storage.indexDir %s must not be inside storage.documentDir %s", index, docs)
	case within(index, docs):
		return fmt.Errorf("storage.documentDir %s must not be inside storage.indexDir %s", docs, index)
	}
	return nil
}

func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && !filepath.IsAbs(rel)
}

// Default returns a Config suitable for local development.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8080,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 15 * time.Second,
		},
		Storage: StorageConfig{
			DocumentDir: "data/documents",
			IndexDir:    "data/index",
		},
		Indexer: IndexerConfig{
			Backend:         "segment",
			BuildTimeout:    2 * time.Minute,
			StoreRawContent: true,
			WatchDebounce:   500 * time.Millisecond,
		},
		Search: SearchConfig{
			MaxResults:        10,
			Timeout:           5 * time.Second,
			NormalizeQuery:    true,
			ExcerptMaxChars:   200,
			ExcerptSurround:   20,
			ProvenanceWorkers: 8,
		},
		Upload: UploadConfig{
			MaxBytes:  16 << 20,
			FormField: "file",
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "linesearch",
			Topics: KafkaTopics{
				IndexComplete: "index.complete",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
		},
	}
}

// applyEnvOverrides reads LS_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LS_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("LS_DOCUMENT_DIR"); v != "" {
		cfg.Storage.DocumentDir = v
	}
	if v := os.Getenv("LS_INDEX_DIR"); v != "" {
		cfg.Storage.IndexDir = v
	}
	if v := os.Getenv("LS_INDEXER_BACKEND"); v != "" {
		cfg.Indexer.Backend = v
	}
	if v := os.Getenv("LS_BUILD_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Indexer.BuildTimeout = d
		}
	}
	if v := os.Getenv("LS_SEARCH_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Search.Timeout = d
		}
	}
	if v := os.Getenv("LS_SEARCH_NORMALIZE_QUERY"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Search.NormalizeQuery = b
		}
	}
	if v := os.Getenv("LS_KAFKA_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Kafka.Enabled = b
		}
	}
	if v := os.Getenv("LS_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("LS_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LS_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("LS_METRICS_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Metrics.Port = port
		}
	}
}
