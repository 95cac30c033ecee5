// Package config gathers environment variables into the typed settings the
// rest of the service depends on. Environment variables are the
// configuration surface named by spec §6; kelseyhightower/envconfig is
// adopted for this (in place of the teacher's YAML file) because it is the
// pack's demonstrated way of doing exactly this kind of service
// configuration (gohan's models.Config).
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config is the root configuration for the annotation service.
type Config struct {
	Database DatabaseConfig
	Vep      VepConfig
	Batch    BatchConfig
	Scoring  ScoringConfig
	Server   ServerConfig
}

type DatabaseConfig struct {
	Host     string `envconfig:"ANNOTATOR_DB_HOST" default:"localhost"`
	Port     int    `envconfig:"ANNOTATOR_DB_PORT" default:"5432"`
	User     string `envconfig:"ANNOTATOR_DB_USER" default:"annotator"`
	Password string `envconfig:"ANNOTATOR_DB_PASSWORD"`
	Name     string `envconfig:"ANNOTATOR_DB_NAME" default:"annotator"`
	SSLMode  string `envconfig:"ANNOTATOR_DB_SSLMODE" default:"disable"`
}

type VepConfig struct {
	URL string `envconfig:"ANNOTATOR_VEP_URL" default:"http://localhost:5001/vep"`
}

// BatchConfig holds the batch processor's tunables, enumerated in spec §4.2.
type BatchConfig struct {
	MaxBatchSize       int           `envconfig:"ANNOTATOR_BATCH_MAX_SIZE" default:"200"`
	MaxWaitTime        time.Duration `envconfig:"ANNOTATOR_BATCH_MAX_WAIT" default:"5s"`
	MaxWorkers         int           `envconfig:"ANNOTATOR_BATCH_MAX_WORKERS" default:"3"`
	MaxRetries         int           `envconfig:"ANNOTATOR_BATCH_MAX_RETRIES" default:"3"`
	VepTimeout         time.Duration `envconfig:"ANNOTATOR_BATCH_VEP_TIMEOUT" default:"10s"`
	TerminalRetention  time.Duration `envconfig:"ANNOTATOR_BATCH_TERMINAL_RETENTION" default:"30s"`
}

type ScoringConfig struct {
	ModelPath string `envconfig:"ANNOTATOR_SCORING_MODEL_PATH"`
}

type ServerConfig struct {
	Port int `envconfig:"ANNOTATOR_SERVER_PORT" default:"8080"`
}

// Load gathers configuration from the environment.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Batch.MaxBatchSize <= 0 {
		return fmt.Errorf("batch max size must be positive, got %d", c.Batch.MaxBatchSize)
	}
	if c.Batch.MaxWaitTime <= 0 {
		return fmt.Errorf("batch max wait time must be positive")
	}
	if c.Batch.MaxWorkers <= 0 {
		return fmt.Errorf("batch max workers must be positive, got %d", c.Batch.MaxWorkers)
	}
	if c.Batch.MaxRetries <= 0 {
		return fmt.Errorf("batch max retries must be positive, got %d", c.Batch.MaxRetries)
	}
	if c.Batch.VepTimeout <= 0 {
		return fmt.Errorf("vep timeout must be positive")
	}
	if c.Batch.TerminalRetention <= 0 {
		return fmt.Errorf("terminal retention must be positive")
	}
	if c.Vep.URL == "" {
		return fmt.Errorf("vep url is required")
	}
	return nil
}
