// Package config provides centralized configuration management for the
// crosswalk run. It loads configuration from environment variables with
// sensible defaults and validates all settings on startup to fail fast on
// misconfiguration.
package config

import (
	"strings"
	"time"
)

// Sink kinds accepted by SINK_KIND.
const (
	SinkPostgres = "postgres"
	SinkXLSX     = "xlsx"
)

// Config holds all application configuration.
// All settings can be configured via environment variables.
type Config struct {
	Source   SourceConfig
	Output   OutputConfig
	Sink     SinkConfig
	Database DatabaseConfig
	XLSX     XLSXConfig
	Metrics  MetricsConfig
	Logging  LoggingConfig
}

// SourceConfig holds settings for retrieving the CMS crosswalk.
type SourceConfig struct {
	// DatasetID is the data.cms.gov dataset code or its landing page URL (default: j75i-rw8y)
	DatasetID string `env:"SOURCE_DATASET_ID" default:"j75i-rw8y"`

	// URL overrides the download URL derived from DatasetID
	URL string `env:"SOURCE_URL"`

	// Timeout is the HTTP client timeout for the download (default: 5m)
	Timeout time.Duration `env:"SOURCE_TIMEOUT" default:"5m"`

	// UserAgent is sent with the download request
	UserAgent string `env:"SOURCE_USER_AGENT" default:"crosswalk-formats/1.0"`

	// MaxBytes caps the response body size (default: 100MB)
	MaxBytes int64 `env:"SOURCE_MAX_BYTES" default:"104857600"`
}

// OutputConfig holds settings for the CSV artifact.
type OutputConfig struct {
	// CSVPath is where the cleaned crosswalk CSV is written
	CSVPath string `env:"OUTPUT_CSV_PATH" default:"cms_rendspec_taxrend_taxtype.csv"`
}

// SinkConfig selects where the format tables are delivered.
type SinkConfig struct {
	// Kind is "postgres" or "xlsx" (default: postgres)
	Kind string `env:"SINK_KIND" default:"postgres"`
}

// DatabaseConfig holds database connection settings for the postgres sink.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string (required for the postgres sink)
	// Supports both DATABASE_URL and DB_URL env vars for compatibility
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// Schema receives the format tables and the run log (default: formats)
	Schema string `env:"DB_SCHEMA" default:"formats"`

	// MaxConns is the maximum number of connections in the pool (default: 4)
	MaxConns int `env:"DB_MAX_CONNS" default:"4"`

	// MinConns is the minimum number of connections to keep open (default: 0)
	MinConns int `env:"DB_MIN_CONNS" default:"0"`

	// WriteTimeout bounds the whole write session (default: 2m)
	WriteTimeout time.Duration `env:"DB_WRITE_TIMEOUT" default:"2m"`
}

// XLSXConfig holds settings for the workbook sink.
type XLSXConfig struct {
	Path string `env:"XLSX_PATH" default:"cms_formats.xlsx"`
}

// MetricsConfig holds settings for the Prometheus textfile export.
type MetricsConfig struct {
	// TextfilePath receives the run metrics; empty disables the export.
	// node_exporter only collects files ending in .prom
	TextfilePath string `env:"METRICS_TEXTFILE"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// SourceURL returns the download URL, preferring an explicit override.
func (c *SourceConfig) SourceURL() string {
	if c.URL != "" {
		return c.URL
	}
	return DownloadURL(DatasetCode(c.DatasetID))
}

// DatasetCode extracts the dataset code from either a bare code or a
// data.cms.gov landing page URL (the code is its last path segment).
func DatasetCode(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), "/")
	if i := strings.LastIndex(s, "/"); i >= 0 {
		return s[i+1:]
	}
	return s
}

// DownloadURL builds the data.cms.gov CSV export URL for a dataset code.
// The template works for any data.cms.gov dataset.
func DownloadURL(code string) string {
	return "https://data.cms.gov/api/views/" + code + "/rows.csv?accessType=DOWNLOAD"
}
