// =============================================================================
// xStage engine configuration
// =============================================================================
// Unified configuration for the conversion daemon: defaults, YAML file, and
// environment overrides, in that priority order.
// =============================================================================
package config

import "time"

// Config is the full daemon configuration.
type Config struct {
	// Server configures the HTTP API surface.
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Engine configures the conversion worker pool and job defaults.
	Engine EngineConfig `yaml:"engine" env:"ENGINE"`

	// Probe configures backend availability detection.
	Probe ProbeConfig `yaml:"probe" env:"PROBE"`

	// Cache configures the snapshot cache.
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// History configures the finished-job record store.
	History HistoryConfig `yaml:"history" env:"HISTORY"`

	// Log configures structured logging.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry configures the OTel SDK.
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig configures the HTTP API listener.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT" validate:"gt=0,lte=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// RateLimitRPS bounds job submissions per second; 0 disables limiting.
	RateLimitRPS   float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS" validate:"gte=0"`
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST" validate:"gte=0"`
}

// EngineConfig configures the conversion engine.
type EngineConfig struct {
	// Workers bounds concurrent conversion jobs.
	Workers int `yaml:"workers" env:"WORKERS" validate:"gt=0"`
	// QueueSize bounds queued jobs awaiting a worker.
	QueueSize int `yaml:"queue_size" env:"QUEUE_SIZE" validate:"gt=0"`
	// AttemptTimeout bounds one conversion attempt unless the job overrides it.
	AttemptTimeout time.Duration `yaml:"attempt_timeout" env:"ATTEMPT_TIMEOUT"`
	// DefaultProfile is the material profile used when a job does not name one.
	DefaultProfile string `yaml:"default_profile" env:"DEFAULT_PROFILE" validate:"oneof=generic karma nuke blender auto"`
	// OutputDir anchors relative job target paths.
	OutputDir string `yaml:"output_dir" env:"OUTPUT_DIR"`
}

// ProbeConfig configures availability detection.
type ProbeConfig struct {
	// VersionTimeout bounds each diagnostic version query.
	VersionTimeout time.Duration `yaml:"version_timeout" env:"VERSION_TIMEOUT"`
	// SpawnRate limits diagnostic subprocess spawns per second.
	SpawnRate float64 `yaml:"spawn_rate" env:"SPAWN_RATE" validate:"gt=0"`
}

// CacheConfig configures the Redis-backed snapshot cache. When disabled the
// prober simply re-probes on every process start.
type CacheConfig struct {
	Enabled  bool          `yaml:"enabled" env:"ENABLED"`
	Addr     string        `yaml:"addr" env:"ADDR"`
	Password string        `yaml:"password" env:"PASSWORD"`
	DB       int           `yaml:"db" env:"DB" validate:"gte=0"`
	TTL      time.Duration `yaml:"ttl" env:"TTL"`
}

// HistoryConfig configures the finished-job record store.
type HistoryConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Path is the SQLite database file.
	Path string `yaml:"path" env:"PATH"`
	// Keep bounds retained records; 0 keeps everything.
	Keep int `yaml:"keep" env:"KEEP" validate:"gte=0"`
}

// LogConfig configures zap.
type LogConfig struct {
	Level            string   `yaml:"level" env:"LEVEL" validate:"oneof=debug info warn error"`
	Format           string   `yaml:"format" env:"FORMAT" validate:"oneof=json console"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures the OTel SDK. When disabled, global providers
// stay noop and no exporter connections are made.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE" validate:"gte=0,lte=1"`
}

// DefaultConfig returns the documented defaults for every section.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Engine:    DefaultEngineConfig(),
		Probe:     DefaultProbeConfig(),
		Cache:     DefaultCacheConfig(),
		History:   DefaultHistoryConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    50,
		RateLimitBurst:  100,
	}
}

func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		Workers:        4,
		QueueSize:      64,
		AttemptTimeout: 5 * time.Minute,
		DefaultProfile: "auto",
		OutputDir:      "",
	}
}

func DefaultProbeConfig() ProbeConfig {
	return ProbeConfig{
		VersionTimeout: 3 * time.Second,
		SpawnRate:      4,
	}
}

func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled: false,
		Addr:    "localhost:6379",
		DB:      0,
		TTL:     24 * time.Hour,
	}
}

func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Enabled: true,
		Path:    "xstage-history.db",
		Keep:    10000,
	}
}

func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "json",
		OutputPaths:  []string{"stdout"},
		EnableCaller: true,
	}
}

func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "xstaged",
		SampleRate:   1.0,
	}
}
