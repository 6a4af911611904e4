package config

import (
	"fmt"
	"time"
)

const (
	// DefaultAPIListen is the default API server listen address.
	DefaultAPIListen = ":8080"

	// DefaultIndexInterval is the default indexer scan interval.
	DefaultIndexInterval = "5m"

	// DefaultPresignExpiry is the default validity of presigned file URLs.
	DefaultPresignExpiry = "15m"
)

// APIConfig contains all API server configuration.
type APIConfig struct {
	Server   APIServerConfig `yaml:"server"`
	Auth     APIAuthConfig   `yaml:"auth,omitempty"`
	Database DatabaseConfig  `yaml:"database"`
	Indexing *IndexingConfig `yaml:"indexing,omitempty"`
	Files    *FilesConfig    `yaml:"files,omitempty"`
}

// APIServerConfig contains HTTP server settings.
type APIServerConfig struct {
	Listen      string          `yaml:"listen"`
	CORSOrigins []string        `yaml:"cors_origins,omitempty"`
	RateLimit   RateLimitConfig `yaml:"rate_limit,omitempty"`
}

// RateLimitConfig configures per-IP rate limiting.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"`
	RequestsPerMinute int  `yaml:"requests_per_minute,omitempty"`
}

// APIAuthConfig contains authentication settings. BearerHash is a
// bcrypt hash of the accepted API token; when empty the API is open.
type APIAuthConfig struct {
	BearerHash string `yaml:"bearer_hash,omitempty"`
}

// IndexingConfig configures the background indexing service that scans
// run sources and maintains a queryable index.
type IndexingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Interval    string `yaml:"interval,omitempty"`
	Concurrency int    `yaml:"concurrency,omitempty"`
	// Reindex forces already-indexed runs to be upserted again on every
	// pass. Useful after an index schema or parser change.
	Reindex bool `yaml:"reindex,omitempty"`
	// ResultsDir overrides runner.results_dir as the local scan root.
	ResultsDir string `yaml:"results_dir,omitempty"`
	// S3, when set, also indexes runs stored in the bucket under the
	// configured prefix.
	S3 *S3Config `yaml:"s3,omitempty"`
}

// FilesConfig configures run artifact serving through the API.
type FilesConfig struct {
	// ResultsDir serves run files straight from the local results root.
	ResultsDir string `yaml:"results_dir,omitempty"`
	// S3, when set, answers file requests with presigned bucket URLs.
	S3 *S3Config `yaml:"s3,omitempty"`
	// PresignExpiry is how long generated URLs stay valid.
	PresignExpiry string `yaml:"presign_expiry,omitempty"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Driver   string               `yaml:"driver"`
	SQLite   SQLiteDatabaseConfig `yaml:"sqlite,omitempty"`
	Postgres PostgresConfig       `yaml:"postgres,omitempty"`
}

// SQLiteDatabaseConfig contains SQLite-specific settings.
type SQLiteDatabaseConfig struct {
	Path string `yaml:"path"`
}

// PostgresConfig contains PostgreSQL connection settings.
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
	SSLMode  string `yaml:"ssl_mode,omitempty"`
}

// applyDefaults sets default values for unspecified API options.
func (a *APIConfig) applyDefaults() {
	if a.Server.Listen == "" {
		a.Server.Listen = DefaultAPIListen
	}

	if a.Indexing != nil && a.Indexing.Interval == "" {
		a.Indexing.Interval = DefaultIndexInterval
	}

	if a.Files != nil && a.Files.PresignExpiry == "" {
		a.Files.PresignExpiry = DefaultPresignExpiry
	}
}

// Validate checks the API configuration for errors.
func (a *APIConfig) Validate() error {
	if a.Server.RateLimit.Enabled && a.Server.RateLimit.RequestsPerMinute <= 0 {
		return fmt.Errorf("rate_limit requests_per_minute must be positive")
	}

	if a.Database.Driver != "" {
		if err := a.Database.Validate(); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}

	if a.Indexing != nil && a.Indexing.S3 != nil && a.Indexing.S3.Bucket == "" {
		return fmt.Errorf("indexing s3 bucket is required")
	}

	if a.Files != nil {
		if a.Files.S3 != nil && a.Files.S3.Bucket == "" {
			return fmt.Errorf("files s3 bucket is required")
		}

		if a.Files.PresignExpiry != "" {
			if _, err := time.ParseDuration(a.Files.PresignExpiry); err != nil {
				return fmt.Errorf("files presign_expiry: %w", err)
			}
		}
	}

	return nil
}

// Validate checks the database configuration for errors.
func (d *DatabaseConfig) Validate() error {
	switch d.Driver {
	case "sqlite":
		if d.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	case "postgres":
		if d.Postgres.Host == "" {
			return fmt.Errorf("postgres host is required")
		}

		if d.Postgres.Database == "" {
			return fmt.Errorf("postgres database is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", d.Driver)
	}

	return nil
}
