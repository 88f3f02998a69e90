package router

// Config holds router buffer sizing.
type Config struct {
	// Initial buffer capacities; buffers grow past these under load.
	BookBufferSize   int
	ChangeBufferSize int
	TradeBufferSize  int
}

// DefaultConfig returns default configuration.
func DefaultConfig() Config {
	return Config{
		BookBufferSize:   5000,
		ChangeBufferSize: 10000,
		TradeBufferSize:  1000,
	}
}

// Stats contains runtime routing statistics.
type Stats struct {
	EventsRouted  int64
	DecodeErrors  int64
	SessionDrops  int64
	StreamsEnded  int64
	UnknownEvents int64

	Books   BufferStats
	Changes BufferStats
	Trades  BufferStats
}
