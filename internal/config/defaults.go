package config

import (
	"time"

	"github.com/rickgao/polymarket-data/internal/ws"
)

// Default values for optional configuration fields.
const (
	DefaultRestURL          = "https://clob.polymarket.com"
	DefaultAPITimeout       = 30 * time.Second
	DefaultMaxRetries       = 3
	DefaultRetryBackoff     = 1 * time.Second
	DefaultDBPort           = 5432
	DefaultDBSSLMode        = "prefer"
	DefaultMaxConns         = 10
	DefaultMinConns         = 2
	DefaultTokensPerStream  = 100
	DefaultReconnectInitial = 1 * time.Second
	DefaultReconnectMax     = 30 * time.Second
	DefaultReconnectFactor  = 2.0
	DefaultPingInterval     = 10 * time.Second
	DefaultPingTimeout      = 60 * time.Second
	DefaultBatchSize        = 1000
	DefaultFlushInterval    = 1 * time.Second
	DefaultBufferSize       = 10000
	DefaultPollInterval     = 15 * time.Minute
	DefaultPollConcurrency  = 10
	DefaultPollBatchSize    = 100
	DefaultMetricsPort      = 9090
	DefaultMetricsPath      = "/metrics"
)

func (c *GathererConfig) applyDefaults() {
	// API defaults
	if c.API.RestURL == "" {
		c.API.RestURL = DefaultRestURL
	}
	if c.API.Timeout == 0 {
		c.API.Timeout = DefaultAPITimeout
	}
	if c.API.MaxRetries == 0 {
		c.API.MaxRetries = DefaultMaxRetries
	}
	if c.API.RetryBackoff == 0 {
		c.API.RetryBackoff = DefaultRetryBackoff
	}

	// Database defaults
	applyDBDefaults(&c.Database.Timescale)

	// Streams defaults
	if c.Streams.WSURL == "" {
		c.Streams.WSURL = ws.DefaultMarketURL
	}
	if c.Streams.TokensPerStream == 0 {
		c.Streams.TokensPerStream = DefaultTokensPerStream
	}
	if c.Streams.ReconnectInitial == 0 {
		c.Streams.ReconnectInitial = DefaultReconnectInitial
	}
	if c.Streams.ReconnectMax == 0 {
		c.Streams.ReconnectMax = DefaultReconnectMax
	}
	if c.Streams.ReconnectFactor == 0 {
		c.Streams.ReconnectFactor = DefaultReconnectFactor
	}
	if c.Streams.PingInterval == 0 {
		c.Streams.PingInterval = DefaultPingInterval
	}
	if c.Streams.PingTimeout == 0 {
		c.Streams.PingTimeout = DefaultPingTimeout
	}

	// User feed defaults
	if c.User.WSURL == "" {
		c.User.WSURL = ws.DefaultUserURL
	}

	// Writers defaults
	if c.Writers.BatchSize == 0 {
		c.Writers.BatchSize = DefaultBatchSize
	}
	if c.Writers.FlushInterval == 0 {
		c.Writers.FlushInterval = DefaultFlushInterval
	}
	if c.Writers.BufferSize == 0 {
		c.Writers.BufferSize = DefaultBufferSize
	}

	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Concurrency == 0 {
		c.Poller.Concurrency = DefaultPollConcurrency
	}
	if c.Poller.BatchSize == 0 {
		c.Poller.BatchSize = DefaultPollBatchSize
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

func applyDBDefaults(db *DBConfig) {
	if db.Port == 0 {
		db.Port = DefaultDBPort
	}
	if db.SSLMode == "" {
		db.SSLMode = DefaultDBSSLMode
	}
	if db.MaxConns == 0 {
		db.MaxConns = DefaultMaxConns
	}
	if db.MinConns == 0 {
		db.MinConns = DefaultMinConns
	}
}

// ReconnectConfig converts the stream settings to a ws.ReconnectConfig.
func (s StreamsConfig) ReconnectConfig() ws.ReconnectConfig {
	return ws.ReconnectConfig{
		InitialDelay: s.ReconnectInitial,
		MaxDelay:     s.ReconnectMax,
		Multiplier:   s.ReconnectFactor,
		MaxAttempts:  s.MaxAttempts,
	}
}
