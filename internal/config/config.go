package config

import (
	"fmt"
	"log"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	// DataDir holds the markdown corpus. CacheDir holds the period summary
	// cache when no database is configured.
	DataDir  string `envconfig:"DATA_DIR" default:"./data"`
	CacheDir string `envconfig:"CACHE_DIR" default:"./.cache"`

	// DatabaseURL is optional. Without it, period summaries are cached on
	// disk and ask logs are not persisted.
	DatabaseURL string `envconfig:"DATABASE_URL"`

	OpenAIAPIKey   string `envconfig:"OPENAI_API_KEY"`
	ChatModel      string `envconfig:"CHAT_MODEL" default:"gpt-4o-mini"`
	EmbeddingModel string `envconfig:"EMBEDDING_MODEL" default:"text-embedding-3-small"`

	TopK          int `envconfig:"TOP_K" default:"6"`
	ContextBudget int `envconfig:"CONTEXT_BUDGET" default:"3000"`
	DefaultYear   int `envconfig:"DEFAULT_YEAR" default:"2025"`

	// VoiceGuide describes the owner's writing style for the style layer.
	// Empty disables styling.
	VoiceGuide string `envconfig:"VOICE_GUIDE"`

	// APIToken enables bearer auth on the HTTP API when set.
	APIToken string `envconfig:"API_TOKEN"`

	SentryDSN         string  `envconfig:"SENTRY_DSN"`
	SentryEnvironment string  `envconfig:"SENTRY_ENVIRONMENT" default:"development"`
	SentrySampleRate  float64 `envconfig:"SENTRY_SAMPLE_RATE" default:"0.1"`

	// S3 corpus sync: when configured, the data dir is populated from the
	// bucket before ingestion.
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"memoro-corpus"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3Prefix    string `envconfig:"S3_PREFIX"`

	// SummaryRefreshInterval is the worker poll interval in seconds. Zero
	// disables the background refresh worker.
	SummaryRefreshInterval int `envconfig:"SUMMARY_REFRESH_INTERVAL" default:"0"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("MEMORO", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

func (c *Config) HasDatabase() bool {
	return c.DatabaseURL != ""
}

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
