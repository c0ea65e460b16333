// Package config provides centralized configuration management for snapdiff.
// It loads configuration from environment variables with sensible defaults and
// validates all settings on startup to fail fast on misconfiguration.
package config

import (
	"strconv"
	"time"
)

// Config holds all application configuration.
// All settings can be configured via environment variables; CLI flags
// override them for a single invocation.
type Config struct {
	Compare  CompareConfig
	Report   ReportConfig
	Server   ServerConfig
	Database DatabaseConfig
	SQLite   SQLiteConfig
	Rate     RateLimitConfig
	Security SecurityConfig
	Logging  LoggingConfig
}

// CompareConfig holds comparison and CSV parsing settings.
type CompareConfig struct {
	// KeyColumn is the grouping column (default: Part Location)
	KeyColumn string `env:"KEY_COLUMN" envDefault:"Part Location"`

	// Sort orders sources before comparison: natural, name or none (default: natural)
	Sort string `env:"COMPARE_SORT" envDefault:"natural"`

	// LoadConcurrency is the number of snapshots loaded in parallel (default: 4)
	LoadConcurrency int `env:"COMPARE_LOAD_CONCURRENCY" envDefault:"4"`

	// NullValues are cell contents treated as "no value" in addition to blanks
	NullValues []string `env:"CSV_NULL_VALUES" envDefault:"NULL,null,N/A,NaN,nan"`

	// Delimiter is the CSV field separator, a single character (default: ,)
	Delimiter string `env:"CSV_DELIMITER" envDefault:","`
}

// ReportConfig holds report output settings.
type ReportConfig struct {
	// Dir is where file reports are written. Empty means a reports/
	// directory next to the first source.
	Dir string `env:"REPORT_DIR"`

	// Title is the first line of text and HTML reports
	Title string `env:"REPORT_TITLE" envDefault:"Snapshot Comparison Report"`

	// Formats lists the renderers used by the file sink (default: text)
	Formats []string `env:"REPORT_FORMATS" envDefault:"text"`

	// Sinks lists where reports go: file, stdout, postgres, sqlite (default: file)
	Sinks []string `env:"REPORT_SINKS" envDefault:"file"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" envDefault:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" envDefault:"8080"`

	ReadTimeout     time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout    time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"60s"`
	IdleTimeout     time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" envDefault:"30s"`
	RequestTimeout  time.Duration `env:"SERVER_REQUEST_TIMEOUT" envDefault:"60s"`

	// MaxUploadSize is the maximum multipart body size in bytes (default: 100MB)
	MaxUploadSize int64 `env:"SERVER_MAX_UPLOAD_SIZE" envDefault:"104857600"`

	// MaxConcurrentRuns bounds simultaneous comparisons (default: 4)
	MaxConcurrentRuns int `env:"SERVER_MAX_CONCURRENT_RUNS" envDefault:"4"`

	// MaxRunWait is how long a request waits for a comparison slot (default: 15s)
	MaxRunWait time.Duration `env:"SERVER_MAX_RUN_WAIT" envDefault:"15s"`

	// ReportCacheSize is the number of recent reports kept in memory (default: 128)
	ReportCacheSize int `env:"SERVER_REPORT_CACHE_SIZE" envDefault:"128"`

	// AllowFileSources lets /api/compare/sources read CSV paths on the server host
	AllowFileSources bool `env:"SERVER_ALLOW_FILE_SOURCES" envDefault:"false"`
}

// DatabaseConfig holds PostgreSQL settings. The database is optional; it is
// only opened when a postgres source or sink is used.
type DatabaseConfig struct {
	// URL is the PostgreSQL connection string. DB_URL is accepted as a fallback.
	URL string `env:"DATABASE_URL"`

	MaxConns        int           `env:"DB_MAX_CONNS" envDefault:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" envDefault:"0"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" envDefault:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" envDefault:"30m"`

	// IgnoreColumns are bookkeeping columns left out of table snapshots
	IgnoreColumns []string `env:"DB_IGNORE_COLUMNS" envDefault:"upload_id,created_at,updated_at"`
}

// SQLiteConfig holds settings of the SQLite report store.
type SQLiteConfig struct {
	Path string `env:"SQLITE_PATH" envDefault:"snapdiff.db"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" envDefault:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 100)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" envDefault:"100"`

	// CompareLimit is requests per minute for comparison endpoints (default: 10)
	CompareLimit int `env:"RATE_LIMIT_COMPARE" envDefault:"10"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" envDefault:"true"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" envDefault:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" envDefault:"text"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	return c.Host + ":" + strconv.Itoa(c.Port)
}
