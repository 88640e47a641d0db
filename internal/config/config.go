// internal/config/config.go
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/cqanalytics/vectord/internal/vectorstore"
)

// Config is the root vectord configuration.
//
// Every section maps to a top-level YAML key and to environment variables
// of the form SECTION_FIELD_NAME (MONGO_MAX_POOL_SIZE -> mongo.max_pool_size).
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Log       LogConfig       `koanf:"log"`
	Mongo     MongoConfig     `koanf:"mongo"`
	Cache     CacheConfig     `koanf:"cache"`
	Search    SearchConfig    `koanf:"search"`
	Retention RetentionConfig `koanf:"retention"`
	Backup    BackupConfig    `koanf:"backup"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Port is the HTTP listen port.
	Port int `koanf:"http_port"`

	// ShutdownTimeout bounds graceful shutdown.
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// LogConfig holds the operator-facing logging knobs. The full logging
// pipeline configuration lives in internal/logging; these fields override
// its defaults.
type LogConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `koanf:"level"`

	// Format is json or console.
	Format string `koanf:"format"`

	// Sampling enables level-aware log sampling.
	Sampling bool `koanf:"sampling"`
}

// MongoConfig holds MongoDB connection, pool, and circuit breaker settings.
type MongoConfig struct {
	// URI is the MongoDB connection string. It may embed credentials, so
	// it is a Secret and never appears in logs or serialized config.
	URI Secret `koanf:"uri"`

	Database   string `koanf:"database"`
	Collection string `koanf:"collection"`

	MinPoolSize uint64   `koanf:"min_pool_size"`
	MaxPoolSize uint64   `koanf:"max_pool_size"`
	MaxIdleTime Duration `koanf:"max_idle_time"`

	ConnectTimeout   Duration `koanf:"connect_timeout"`
	SelectionTimeout Duration `koanf:"selection_timeout"`
	OperationTimeout Duration `koanf:"operation_timeout"`

	// BreakerFailureThreshold is the consecutive-failure count that opens
	// the circuit breaker. BreakerResetTimeout is how long the breaker
	// stays open before admitting a trial operation.
	BreakerFailureThreshold int      `koanf:"breaker_failure_threshold"`
	BreakerResetTimeout     Duration `koanf:"breaker_reset_timeout"`
}

// CacheConfig holds query cache settings.
type CacheConfig struct {
	Enabled bool     `koanf:"enabled"`
	MaxSize int      `koanf:"max_size"`
	TTL     Duration `koanf:"ttl"`
}

// SearchConfig holds search index names and result shaping.
type SearchConfig struct {
	VectorIndex  string  `koanf:"vector_index"`
	TextIndex    string  `koanf:"text_index"`
	DefaultLimit int     `koanf:"default_limit"`
	MaxLimit     int     `koanf:"max_limit"`
	VectorWeight float64 `koanf:"vector_weight"`
	TextWeight   float64 `koanf:"text_weight"`
}

// RetentionConfig controls document lifetime.
type RetentionConfig struct {
	// MaxAge is how long documents live before TTL expiry.
	MaxAge Duration `koanf:"max_age"`

	// SweepInterval is how often the daemon runs an explicit expired-document
	// sweep alongside the server-side TTL monitor. Zero disables the sweeper.
	SweepInterval Duration `koanf:"sweep_interval"`
}

// BackupConfig holds backup and restore settings.
type BackupConfig struct {
	// Dir is where backup archives are written and read.
	Dir string `koanf:"dir"`

	// RestoreRate throttles restore inserts, in documents per second.
	// RestoreBurst is the token bucket burst size.
	RestoreRate  int `koanf:"restore_rate"`
	RestoreBurst int `koanf:"restore_burst"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	Enabled bool `koanf:"enabled"`

	// Endpoint is the OTLP collector address (host:port).
	Endpoint string `koanf:"endpoint"`

	// Protocol selects the OTLP transport: grpc (default) or http/protobuf.
	Protocol string `koanf:"protocol"`

	ServiceName    string `koanf:"service_name"`
	ServiceVersion string `koanf:"service_version"`

	// Insecure disables TLS. Only permitted for local endpoints.
	Insecure bool `koanf:"insecure"`

	// TLSSkipVerify skips certificate verification for internal CAs.
	TLSSkipVerify bool `koanf:"tls_skip_verify"`

	// SampleRate is the trace sampling ratio, 0.0-1.0.
	SampleRate float64 `koanf:"sample_rate"`

	MetricsEnabled  bool     `koanf:"metrics_enabled"`
	MetricsInterval Duration `koanf:"metrics_interval"`
	ShutdownTimeout Duration `koanf:"shutdown_timeout"`
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.http_port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout.Duration() <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be positive")
	}

	switch c.Log.Level {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level must be one of trace, debug, info, warn, error; got %q", c.Log.Level)
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		return fmt.Errorf("log.format must be 'json' or 'console', got %q", c.Log.Format)
	}

	if !c.Mongo.URI.IsSet() {
		return fmt.Errorf("mongo.uri is required")
	}
	if c.Retention.MaxAge.Duration() <= 0 {
		return fmt.Errorf("retention.max_age must be positive")
	}
	if c.Retention.SweepInterval.Duration() < 0 {
		return fmt.Errorf("retention.sweep_interval cannot be negative")
	}
	if c.Backup.RestoreRate < 0 {
		return fmt.Errorf("backup.restore_rate cannot be negative")
	}
	if c.Backup.RestoreBurst < 0 {
		return fmt.Errorf("backup.restore_burst cannot be negative")
	}

	if err := c.Telemetry.Validate(); err != nil {
		return err
	}

	// Pool sizes, search limits, and breaker settings are validated by the
	// vectorstore package against the assembled store config.
	return c.StoreConfig().Validate()
}

// StoreConfig assembles the vectorstore configuration from the loaded
// sections. Defaults have already been applied by the loader.
func (c *Config) StoreConfig() vectorstore.Config {
	return vectorstore.Config{
		Connection: vectorstore.ConnectionConfig{
			URI:              c.Mongo.URI.Value(),
			Database:         c.Mongo.Database,
			Collection:       c.Mongo.Collection,
			MinPoolSize:      c.Mongo.MinPoolSize,
			MaxPoolSize:      c.Mongo.MaxPoolSize,
			MaxIdleTime:      c.Mongo.MaxIdleTime.Duration(),
			ConnectTimeout:   c.Mongo.ConnectTimeout.Duration(),
			SelectionTimeout: c.Mongo.SelectionTimeout.Duration(),
			OperationTimeout: c.Mongo.OperationTimeout.Duration(),
			Breaker: vectorstore.BreakerSettings{
				FailureThreshold: c.Mongo.BreakerFailureThreshold,
				ResetTimeout:     c.Mongo.BreakerResetTimeout.Duration(),
			},
		},
		Cache: vectorstore.CacheConfig{
			Enabled: c.Cache.Enabled,
			MaxSize: c.Cache.MaxSize,
			TTL:     c.Cache.TTL.Duration(),
		},
		Search: vectorstore.SearchConfig{
			VectorIndex:  c.Search.VectorIndex,
			TextIndex:    c.Search.TextIndex,
			DefaultLimit: c.Search.DefaultLimit,
			MaxLimit:     c.Search.MaxLimit,
			VectorWeight: c.Search.VectorWeight,
			TextWeight:   c.Search.TextWeight,
		},
		Retention: c.Retention.MaxAge.Duration(),
	}
}

// Validate checks telemetry configuration for errors.
func (t *TelemetryConfig) Validate() error {
	if !t.Enabled {
		return nil
	}

	if t.Endpoint == "" {
		return fmt.Errorf("telemetry.endpoint is required when telemetry is enabled")
	}
	if t.ServiceName == "" {
		return fmt.Errorf("telemetry.service_name is required when telemetry is enabled")
	}
	if t.Protocol != "grpc" && t.Protocol != "http/protobuf" {
		return fmt.Errorf("telemetry.protocol must be 'grpc' or 'http/protobuf', got %q", t.Protocol)
	}

	// Plaintext export is only acceptable on the local host.
	if t.Insecure && !t.isLocalEndpoint() {
		return fmt.Errorf("insecure connections to remote endpoints are not allowed; set insecure=false for TLS or use a local endpoint (localhost/127.0.0.1)")
	}

	if t.SampleRate < 0 || t.SampleRate > 1 {
		return fmt.Errorf("telemetry.sample_rate must be between 0 and 1, got %f", t.SampleRate)
	}
	if t.MetricsEnabled && t.MetricsInterval.Duration() <= 0 {
		return fmt.Errorf("telemetry.metrics_interval must be positive when metrics enabled")
	}
	if t.ShutdownTimeout.Duration() <= 0 {
		return fmt.Errorf("telemetry.shutdown_timeout must be positive")
	}

	return nil
}

// isLocalEndpoint checks if the endpoint is a local address.
func (t *TelemetryConfig) isLocalEndpoint() bool {
	host := t.Endpoint

	// Handle IPv6 addresses (may be bracketed like [::1]:4317)
	if strings.HasPrefix(host, "[") {
		if idx := strings.Index(host, "]:"); idx != -1 {
			host = host[1:idx]
		} else if strings.HasSuffix(host, "]") {
			host = host[1 : len(host)-1]
		}
	} else if strings.Count(host, ":") == 1 {
		// IPv4 or hostname with port: localhost:4317
		if idx := strings.LastIndex(host, ":"); idx != -1 {
			host = host[:idx]
		}
	}

	return host == "localhost" ||
		host == "127.0.0.1" ||
		host == "::1" ||
		strings.HasPrefix(host, "127.") ||
		strings.HasPrefix(t.Endpoint, "::1")
}

// applyDefaults sets default values for missing configuration fields.
func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 9091
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = Duration(10 * time.Second)
	}

	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}

	if !cfg.Mongo.URI.IsSet() {
		cfg.Mongo.URI = "mongodb://localhost:27017"
	}
	if cfg.Mongo.Database == "" {
		cfg.Mongo.Database = "cqintelligence"
	}
	if cfg.Mongo.Collection == "" {
		cfg.Mongo.Collection = "vectordocuments"
	}
	if cfg.Mongo.MinPoolSize == 0 {
		cfg.Mongo.MinPoolSize = 5
	}
	if cfg.Mongo.MaxPoolSize == 0 {
		cfg.Mongo.MaxPoolSize = 50
	}
	if cfg.Mongo.MaxIdleTime == 0 {
		cfg.Mongo.MaxIdleTime = Duration(30 * time.Second)
	}
	if cfg.Mongo.ConnectTimeout == 0 {
		cfg.Mongo.ConnectTimeout = Duration(5 * time.Second)
	}
	if cfg.Mongo.SelectionTimeout == 0 {
		cfg.Mongo.SelectionTimeout = Duration(5 * time.Second)
	}
	if cfg.Mongo.OperationTimeout == 0 {
		cfg.Mongo.OperationTimeout = Duration(10 * time.Second)
	}
	if cfg.Mongo.BreakerFailureThreshold == 0 {
		cfg.Mongo.BreakerFailureThreshold = 5
	}
	if cfg.Mongo.BreakerResetTimeout == 0 {
		cfg.Mongo.BreakerResetTimeout = Duration(60 * time.Second)
	}

	if cfg.Cache.MaxSize == 0 {
		cfg.Cache.MaxSize = 1000
	}
	if cfg.Cache.TTL == 0 {
		cfg.Cache.TTL = Duration(5 * time.Minute)
	}

	if cfg.Search.VectorIndex == "" {
		cfg.Search.VectorIndex = "vector_index"
	}
	if cfg.Search.TextIndex == "" {
		cfg.Search.TextIndex = "content_text"
	}
	if cfg.Search.DefaultLimit == 0 {
		cfg.Search.DefaultLimit = 10
	}
	if cfg.Search.MaxLimit == 0 {
		cfg.Search.MaxLimit = 100
	}
	if cfg.Search.VectorWeight == 0 && cfg.Search.TextWeight == 0 {
		cfg.Search.VectorWeight = 0.7
		cfg.Search.TextWeight = 0.3
	}

	if cfg.Retention.MaxAge == 0 {
		cfg.Retention.MaxAge = Duration(90 * 24 * time.Hour)
	}

	if cfg.Backup.RestoreRate == 0 {
		cfg.Backup.RestoreRate = 200
	}
	if cfg.Backup.RestoreBurst == 0 {
		cfg.Backup.RestoreBurst = 50
	}

	if cfg.Telemetry.Endpoint == "" {
		cfg.Telemetry.Endpoint = "localhost:4317"
	}
	if cfg.Telemetry.Protocol == "" {
		cfg.Telemetry.Protocol = "grpc"
	}
	if cfg.Telemetry.ServiceName == "" {
		cfg.Telemetry.ServiceName = "vectord"
	}
	if cfg.Telemetry.ServiceVersion == "" {
		cfg.Telemetry.ServiceVersion = "0.1.0"
	}
	if cfg.Telemetry.SampleRate == 0 {
		cfg.Telemetry.SampleRate = 1.0
	}
	if cfg.Telemetry.MetricsInterval == 0 {
		cfg.Telemetry.MetricsInterval = Duration(15 * time.Second)
	}
	if cfg.Telemetry.ShutdownTimeout == 0 {
		cfg.Telemetry.ShutdownTimeout = Duration(5 * time.Second)
	}
}
