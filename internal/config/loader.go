package config

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}
	if cfg.Database.URL == "" {
		cfg.Database.URL = os.Getenv("DB_URL")
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration and panics on error.
// Use this only in main() where early termination is desired.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// normalize trims list entries and lowercases enum-like values.
func (c *Config) normalize() {
	c.Compare.Sort = strings.ToLower(strings.TrimSpace(c.Compare.Sort))
	c.Compare.NullValues = trimList(c.Compare.NullValues)
	c.Report.Formats = lowerList(c.Report.Formats)
	c.Report.Sinks = lowerList(c.Report.Sinks)
	c.Database.IgnoreColumns = trimList(c.Database.IgnoreColumns)
	c.Security.TrustedProxies = trimList(c.Security.TrustedProxies)
}

func trimList(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func lowerList(in []string) []string {
	out := trimList(in)
	for i := range out {
		out[i] = strings.ToLower(out[i])
	}
	return out
}

// Known enum values, shared with the CLI flag validation.
var (
	SortModes   = []string{"natural", "name", "none"}
	FormatNames = []string{"text", "json", "yaml", "html"}
	SinkNames   = []string{"file", "stdout", "postgres", "sqlite"}
)

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var errs []string

	// Compare validation
	if strings.TrimSpace(c.Compare.KeyColumn) == "" {
		errs = append(errs, "KEY_COLUMN must not be empty")
	}
	if !slices.Contains(SortModes, c.Compare.Sort) {
		errs = append(errs, fmt.Sprintf("COMPARE_SORT (%q) must be one of: %s", c.Compare.Sort, strings.Join(SortModes, ", ")))
	}
	if c.Compare.LoadConcurrency <= 0 {
		errs = append(errs, "COMPARE_LOAD_CONCURRENCY must be positive")
	}
	if len([]rune(c.Compare.Delimiter)) != 1 || c.Compare.Delimiter == "\"" || c.Compare.Delimiter == "\n" {
		errs = append(errs, fmt.Sprintf("CSV_DELIMITER (%q) must be a single character other than quote or newline", c.Compare.Delimiter))
	}

	// Report validation
	if len(c.Report.Formats) == 0 {
		errs = append(errs, "REPORT_FORMATS must name at least one format")
	}
	for _, f := range c.Report.Formats {
		if !slices.Contains(FormatNames, f) {
			errs = append(errs, fmt.Sprintf("REPORT_FORMATS entry %q must be one of: %s", f, strings.Join(FormatNames, ", ")))
		}
	}
	for _, s := range c.Report.Sinks {
		if !slices.Contains(SinkNames, s) {
			errs = append(errs, fmt.Sprintf("REPORT_SINKS entry %q must be one of: %s", s, strings.Join(SinkNames, ", ")))
		}
	}
	if slices.Contains(c.Report.Sinks, "postgres") && c.Database.URL == "" {
		errs = append(errs, "REPORT_SINKS includes postgres but DATABASE_URL is empty")
	}
	if slices.Contains(c.Report.Sinks, "sqlite") && c.SQLite.Path == "" {
		errs = append(errs, "REPORT_SINKS includes sqlite but SQLITE_PATH is empty")
	}

	// Server validation
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("SERVER_PORT (%d) must be 1-65535", c.Server.Port))
	}
	if c.Server.ReadTimeout < 0 {
		errs = append(errs, "SERVER_READ_TIMEOUT must be non-negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	}
	if c.Server.MaxUploadSize <= 0 {
		errs = append(errs, "SERVER_MAX_UPLOAD_SIZE must be positive")
	}
	if c.Server.MaxConcurrentRuns <= 0 {
		errs = append(errs, "SERVER_MAX_CONCURRENT_RUNS must be positive")
	}
	if c.Server.MaxRunWait <= 0 {
		errs = append(errs, "SERVER_MAX_RUN_WAIT must be positive")
	}
	if c.Server.ReportCacheSize <= 0 {
		errs = append(errs, "SERVER_REPORT_CACHE_SIZE must be positive")
	}

	// Database validation
	if c.Database.MaxConns <= 0 {
		errs = append(errs, "DB_MAX_CONNS must be positive")
	}
	if c.Database.MinConns < 0 {
		errs = append(errs, "DB_MIN_CONNS must be non-negative")
	}
	if c.Database.MaxConns < c.Database.MinConns {
		errs = append(errs, fmt.Sprintf("DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)",
			c.Database.MaxConns, c.Database.MinConns))
	}

	// Rate limit validation
	if c.Rate.Enabled && c.Rate.RequestsPerMinute <= 0 {
		errs = append(errs, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	}
	if c.Rate.Enabled && c.Rate.CompareLimit <= 0 {
		errs = append(errs, "RATE_LIMIT_COMPARE must be positive when rate limiting is enabled")
	}

	// Logging validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		errs = append(errs, fmt.Sprintf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", c.Logging.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		errs = append(errs, fmt.Sprintf("LOG_FORMAT (%q) must be one of: text, json", c.Logging.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}

// DelimiterRune returns the CSV delimiter as a rune.
func (c *CompareConfig) DelimiterRune() rune {
	r := []rune(c.Delimiter)
	if len(r) == 0 {
		return ','
	}
	return r[0]
}

// String returns a safe string representation of the config for logging.
// Sensitive values like database URLs are masked.
func (c *Config) String() string {
	dbURL := ""
	if c.Database.URL != "" {
		dbURL = "[MASKED]"
	}

	var b strings.Builder
	b.WriteString("Config{")
	fmt.Fprintf(&b, "Compare: {KeyColumn: %q, Sort: %q, LoadConcurrency: %d}, ",
		c.Compare.KeyColumn, c.Compare.Sort, c.Compare.LoadConcurrency)
	fmt.Fprintf(&b, "Report: {Dir: %q, Formats: %v, Sinks: %v}, ",
		c.Report.Dir, c.Report.Formats, c.Report.Sinks)
	fmt.Fprintf(&b, "Server: {Host: %q, Port: %d, MaxConcurrentRuns: %d}, ",
		c.Server.Host, c.Server.Port, c.Server.MaxConcurrentRuns)
	fmt.Fprintf(&b, "Database: {URL: %s, MaxConns: %d, MinConns: %d}, ",
		dbURL, c.Database.MaxConns, c.Database.MinConns)
	fmt.Fprintf(&b, "Rate: {Enabled: %v, RequestsPerMinute: %d}, ",
		c.Rate.Enabled, c.Rate.RequestsPerMinute)
	fmt.Fprintf(&b, "Logging: {Level: %q, Format: %q}",
		c.Logging.Level, c.Logging.Format)
	b.WriteString("}")
	return b.String()
}
