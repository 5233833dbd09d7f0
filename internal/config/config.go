package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Store     StoreConfig     `yaml:"store" mapstructure:"store"`
	Graph     GraphConfig     `yaml:"graph" mapstructure:"graph"`
	Anthropic AnthropicConfig `yaml:"anthropic" mapstructure:"anthropic"`
	Blob      BlobConfig      `yaml:"blob" mapstructure:"blob"`
	Ingest    IngestConfig    `yaml:"ingest" mapstructure:"ingest"`
	News      NewsConfig      `yaml:"news" mapstructure:"news"`
	Server    ServerConfig    `yaml:"server" mapstructure:"server"`
	Log       LogConfig       `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// GraphConfig configures the property graph backend.
type GraphConfig struct {
	// Driver selects the engine: "gremlin" for a remote Gremlin server
	// (Neptune and compatibles), "memory" for the embedded engine.
	Driver   string `yaml:"driver" mapstructure:"driver"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key       string `yaml:"key" mapstructure:"key"`
	Model     string `yaml:"model" mapstructure:"model"`
	MaxTokens int64  `yaml:"max_tokens" mapstructure:"max_tokens"`
}

// BlobConfig configures the document/news object store.
type BlobConfig struct {
	Driver         string `yaml:"driver" mapstructure:"driver"`                   // "s3" or "fs"
	Root           string `yaml:"root" mapstructure:"root"`                       // fs root directory
	Region         string `yaml:"region" mapstructure:"region"`                   // s3 region
	DocumentBucket string `yaml:"document_bucket" mapstructure:"document_bucket"` // ingestion source bucket
	NewsBucket     string `yaml:"news_bucket" mapstructure:"news_bucket"`         // article source bucket
}

// IngestConfig configures the document ingestion pipeline.
type IngestConfig struct {
	Workers               int `yaml:"workers" mapstructure:"workers"`
	MaxTokensPerChunk     int `yaml:"max_tokens_per_chunk" mapstructure:"max_tokens_per_chunk"`
	SummaryChunkLimit     int `yaml:"summary_chunk_limit" mapstructure:"summary_chunk_limit"`
	FilterShardSize       int `yaml:"filter_shard_size" mapstructure:"filter_shard_size"`
	VisibilityTimeoutMins int `yaml:"visibility_timeout_mins" mapstructure:"visibility_timeout_mins"`
	MaxReceives           int `yaml:"max_receives" mapstructure:"max_receives"`
	ScratchTTLHours       int `yaml:"scratch_ttl_hours" mapstructure:"scratch_ttl_hours"`
}

// NewsConfig configures the news processing path.
type NewsConfig struct {
	Workers               int `yaml:"workers" mapstructure:"workers"`
	VisibilityTimeoutMins int `yaml:"visibility_timeout_mins" mapstructure:"visibility_timeout_mins"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("INSIGHTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("graph.driver", "gremlin")
	v.SetDefault("blob.driver", "s3")
	v.SetDefault("blob.root", "./data/blobs")
	v.SetDefault("blob.document_bucket", "documents")
	v.SetDefault("blob.news_bucket", "news")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.max_tokens", 4000)
	v.SetDefault("ingest.workers", 2)
	v.SetDefault("ingest.max_tokens_per_chunk", 500)
	v.SetDefault("ingest.summary_chunk_limit", 40)
	v.SetDefault("ingest.filter_shard_size", 100)
	v.SetDefault("ingest.visibility_timeout_mins", 120)
	v.SetDefault("ingest.max_receives", 2)
	v.SetDefault("ingest.scratch_ttl_hours", 2)
	v.SetDefault("news.workers", 2)
	v.SetDefault("news.visibility_timeout_mins", 15)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
