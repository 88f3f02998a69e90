package config

import "time"

// GathererConfig is the root configuration for a gatherer instance.
type GathererConfig struct {
	Instance InstanceConfig `yaml:"instance"`
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	Streams  StreamsConfig  `yaml:"streams"`
	User     UserFeedConfig `yaml:"user_feed"`
	Writers  WritersConfig  `yaml:"writers"`
	Poller   PollerConfig   `yaml:"poller"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// InstanceConfig identifies this gatherer.
type InstanceConfig struct {
	ID string `yaml:"id"`
	AZ string `yaml:"az"`
}

// APIConfig holds CLOB REST API settings.
type APIConfig struct {
	RestURL      string        `yaml:"rest_url"`
	Timeout      time.Duration `yaml:"timeout"`
	MaxRetries   int           `yaml:"max_retries"`
	RetryBackoff time.Duration `yaml:"retry_backoff"`
}

// DatabaseConfig holds the TimescaleDB connection for time-series data.
// Gatherers only use TimescaleDB; market metadata lives in-memory (the
// market catalog) and is refreshed over REST.
type DatabaseConfig struct {
	Timescale DBConfig `yaml:"timescale"`
}

// DBConfig holds a single database connection.
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`
	MaxConns int    `yaml:"max_conns"`
	MinConns int    `yaml:"min_conns"`
}

// StreamsConfig holds market-feed WebSocket settings. Each stream carries
// at most TokensPerStream token IDs; the subscription list of a live
// stream never changes, so growth in the catalog starts new streams.
type StreamsConfig struct {
	WSURL            string        `yaml:"ws_url"`
	TokensPerStream  int           `yaml:"tokens_per_stream"`
	ReconnectInitial time.Duration `yaml:"reconnect_initial"`
	ReconnectMax     time.Duration `yaml:"reconnect_max"`
	ReconnectFactor  float64       `yaml:"reconnect_factor"`
	MaxAttempts      int           `yaml:"max_attempts"` // 0 = retry forever
	PingInterval     time.Duration `yaml:"ping_interval"`
	PingTimeout      time.Duration `yaml:"ping_timeout"`
}

// UserFeedConfig holds the authenticated user-feed settings. Credentials
// come from the environment (POLY_API_KEY and friends), never from the
// config file.
type UserFeedConfig struct {
	Enabled bool     `yaml:"enabled"`
	WSURL   string   `yaml:"ws_url"`
	Markets []string `yaml:"markets"` // empty = all markets
}

// WritersConfig holds batch writer settings.
type WritersConfig struct {
	BatchSize     int           `yaml:"batch_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
	BufferSize    int           `yaml:"buffer_size"`
}

// PollerConfig holds REST snapshot poller settings.
type PollerConfig struct {
	Interval    time.Duration `yaml:"interval"`
	Concurrency int           `yaml:"concurrency"`
	BatchSize   int           `yaml:"batch_size"`
}

// MetricsConfig holds the metrics/health HTTP server settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
