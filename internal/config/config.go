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

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`

	OpenAIAPIKey string `envconfig:"OPENAI_API_KEY"`
	OpenAIModel  string `envconfig:"OPENAI_MODEL"`

	// Extraction tunables; zero values fall back to pipeline defaults.
	AgentName           string  `envconfig:"AGENT_NAME" default:"factline"`
	MaxChunkChars       int     `envconfig:"MAX_CHUNK_CHARS" default:"3000"`
	MinSplitChars       int     `envconfig:"MIN_SPLIT_CHARS" default:"200"`
	ExtractMaxAttempts  int     `envconfig:"EXTRACT_MAX_ATTEMPTS" default:"2"`
	RepairRateThreshold float64 `envconfig:"REPAIR_RATE_THRESHOLD" default:"0.2"`
	FactOffsetSeconds   int     `envconfig:"FACT_OFFSET_SECONDS" default:"10"`

	// Optional raw transcript archive
	S3Endpoint  string `envconfig:"S3_ENDPOINT"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY_ID"`
	S3SecretKey string `envconfig:"S3_SECRET_ACCESS_KEY"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"factline-transcripts"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`

	SentryDSN string `envconfig:"SENTRY_DSN"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("FACTLINE", &cfg); err != nil {
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

func (c *Config) HasS3() bool {
	return c.S3Endpoint != "" && c.S3AccessKey != "" && c.S3SecretKey != ""
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}
