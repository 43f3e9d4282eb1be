package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config aggregates application configuration values.
type Config struct {
	HTTP     HTTPConfig     `envconfig:"SERVER"`
	Graph    GraphConfig    `envconfig:"GRAPH"`
	Logging  LoggingConfig  `envconfig:"LOG"`
	Archive  ArchiveConfig  `envconfig:"ARCHIVE"`
	Pipeline PipelineConfig `envconfig:"PIPELINE"`
}

// HTTPConfig governs HTTP server behaviour.
type HTTPConfig struct {
	Host            string        `envconfig:"HOST" default:"0.0.0.0"`
	Port            int           `envconfig:"PORT" default:"8080" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" default:"10s" validate:"gt=0"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" default:"60s" validate:"gt=0"`
	IdleTimeout     time.Duration `envconfig:"IDLE_TIMEOUT" default:"60s" validate:"gt=0"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" default:"10s" validate:"gt=0"`
	MetricsEnabled  bool          `envconfig:"METRICS_ENABLED" default:"false"`
	AllowedOrigins  []string      `envconfig:"ALLOWED_ORIGINS"`
}

// GraphConfig describes connectivity to the Neo4j instance receiving network exports.
// An empty URI disables graph export.
type GraphConfig struct {
	URI            string `envconfig:"URI"`
	Database       string `envconfig:"DATABASE"`
	Username       string `envconfig:"USERNAME"`
	Password       string `envconfig:"PASSWORD"`
	MaxConnections int    `envconfig:"MAX_CONNECTIONS" default:"10" validate:"min=1"`
	BatchSize      int    `envconfig:"BATCH_SIZE" default:"500" validate:"min=1"`
}

// LoggingConfig controls structured logging settings.
type LoggingConfig struct {
	Level         string `envconfig:"LEVEL" default:"info" validate:"oneof=debug info warn warning error"`
	Format        string `envconfig:"FORMAT" default:"text" validate:"oneof=text json"`
	IncludeCaller bool   `envconfig:"INCLUDE_CALLER" default:"false"`
}

// ArchiveConfig points the service at the account book archive.
// When DataDir is set, books are read from <DataDir>/<bookID>.json instead of
// the remote endpoint.
type ArchiveConfig struct {
	BaseURL           string        `envconfig:"BASE_URL" default:"https://gams.uni-graz.at" validate:"required,url"`
	DataDir           string        `envconfig:"DATA_DIR"`
	Timeout           time.Duration `envconfig:"TIMEOUT" default:"30s" validate:"gt=0"`
	RequestsPerSecond float64       `envconfig:"REQUESTS_PER_SECOND" default:"5" validate:"gt=0"`
	Burst             int           `envconfig:"BURST" default:"2" validate:"min=1"`
	MaxConcurrent     int           `envconfig:"MAX_CONCURRENT" default:"4" validate:"min=1"`
	UserAgent         string        `envconfig:"USER_AGENT" default:"depcha-dashboard/1.0"`
}

// PipelineConfig tunes snapshot caching and the size of ranked views.
type PipelineConfig struct {
	CacheTTL    time.Duration `envconfig:"CACHE_TTL" default:"30m" validate:"gt=0"`
	TraderLimit int           `envconfig:"TRADER_LIMIT" default:"10" validate:"min=1"`
	RecentLimit int           `envconfig:"RECENT_LIMIT" default:"10" validate:"min=1"`

	// Preload lists context IDs loaded in the background at startup.
	Preload        []string `envconfig:"PRELOAD"`
	PreloadWorkers int      `envconfig:"PRELOAD_WORKERS" default:"2" validate:"min=1"`
}

// GraphEnabled reports whether a graph database is configured.
func (c Config) GraphEnabled() bool {
	return strings.TrimSpace(c.Graph.URI) != ""
}

// Load reads configuration from environment variables, applying defaults.
// Variables from the given dotenv files (".env" when none are given) are
// applied first without overriding the process environment; missing files
// are ignored.
func Load(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, file := range envFiles {
		if err := godotenv.Load(file); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", file, err)
		}
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("process environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
