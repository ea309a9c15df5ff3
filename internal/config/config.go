package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config contains service configuration parameters.
type Config struct {
	LogLevel   int      `env:"LOG_LEVEL" envDefault:"0"`
	OperatorID int64    `env:"OPERATOR_ID" envDefault:"0"`
	Corpus     Corpus   `envPrefix:"CORPUS_"`
	Scan       Scan     `envPrefix:"SCAN_"`
	Database   Database `envPrefix:"DATABASE_"`
	Archive    Archive  `envPrefix:"MINIO_"`
}

// Corpus contains the two corpus roots.
type Corpus struct {
	// RawDir is the append-only root the scanner searches.
	RawDir string `env:"RAW_DIR" envDefault:"logs"`
	// DeliveredDir holds generated result files and doubles as the
	// exclusion corpus.
	DeliveredDir string `env:"DELIVERED_DIR" envDefault:"generated"`
}

// Scan contains extraction engine parameters.
type Scan struct {
	Workers int `env:"WORKERS" envDefault:"4"`
	// DeliveryPause is the anti-flood pause applied before results are
	// handed back. Zero disables it.
	DeliveryPause time.Duration `env:"DELIVERY_PAUSE" envDefault:"2s"`
}

// Database contains ledger database parameters.
type Database struct {
	Path string `env:"PATH" envDefault:"combogen.db"`
}

// Archive contains object storage parameters for delivered-file archival.
type Archive struct {
	Enabled   bool   `env:"ENABLED" envDefault:"false"`
	Endpoint  string `env:"ENDPOINT" envDefault:"localhost:9000"`
	AccessKey string `env:"ACCESS_KEY" envDefault:"combogen-access-key"`
	SecretKey string `env:"SECRET_KEY" envDefault:"combogen-secret-key"`
	Bucket    string `env:"BUCKET_NAME" envDefault:"combogen-results"`
	UseSSL    bool   `env:"USE_SSL" envDefault:"false"`
}

// NewConfig loads configuration from environment variables.
func NewConfig() (*Config, error) {
	cfg := Config{}
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return &cfg, nil
}
