package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for a gatherer. All methods
// are safe on a nil receiver so components can run unmetered in tests.
type Metrics struct {
	EventsTotal     *prometheus.CounterVec
	DecodeFailures  *prometheus.CounterVec
	SessionDrops    *prometheus.CounterVec
	StreamState     *prometheus.GaugeVec
	BufferDepth     *prometheus.GaugeVec
	RowsInserted    *prometheus.CounterVec
	InsertConflicts *prometheus.CounterVec
	InsertErrors    *prometheus.CounterVec
	FlushDuration   *prometheus.HistogramVec
}

// New creates and registers all gatherer metrics with reg. Pass
// prometheus.DefaultRegisterer outside of tests.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		EventsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "polymarket_events_total",
			Help: "Decoded feed events by feed and event type",
		}, []string{"feed", "type"}),

		DecodeFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "polymarket_decode_failures_total",
			Help: "Messages that failed to decode, by feed",
		}, []string{"feed"}),

		SessionDrops: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "polymarket_session_drops_total",
			Help: "WebSocket sessions that ended and triggered a reconnect, by feed",
		}, []string{"feed"}),

		StreamState: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "polymarket_stream_state",
			Help: "Reconnect driver state per stream (0=idle 1=connecting 2=streaming 3=backoff 4=exhausted)",
		}, []string{"stream"}),

		BufferDepth: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "polymarket_buffer_depth",
			Help: "Items waiting in a router buffer",
		}, []string{"buffer"}),

		RowsInserted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "polymarket_rows_inserted_total",
			Help: "Rows inserted by table",
		}, []string{"table"}),

		InsertConflicts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "polymarket_insert_conflicts_total",
			Help: "Rows skipped by ON CONFLICT DO NOTHING, by table",
		}, []string{"table"}),

		InsertErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "polymarket_insert_errors_total",
			Help: "Failed batch inserts by table",
		}, []string{"table"}),

		FlushDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "polymarket_flush_duration_seconds",
			Help:    "Batch flush duration by table",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"table"}),
	}
}

// RecordEvent counts one decoded event.
func (m *Metrics) RecordEvent(feed, eventType string) {
	if m == nil {
		return
	}
	m.EventsTotal.WithLabelValues(feed, eventType).Inc()
}

// RecordDecodeFailure counts one undecodable message.
func (m *Metrics) RecordDecodeFailure(feed string) {
	if m == nil {
		return
	}
	m.DecodeFailures.WithLabelValues(feed).Inc()
}

// RecordSessionDrop counts one session-ending error.
func (m *Metrics) RecordSessionDrop(feed string) {
	if m == nil {
		return
	}
	m.SessionDrops.WithLabelValues(feed).Inc()
}

// SetStreamState records a stream's reconnect driver state.
func (m *Metrics) SetStreamState(stream string, state int) {
	if m == nil {
		return
	}
	m.StreamState.WithLabelValues(stream).Set(float64(state))
}

// SetBufferDepth records the current depth of a router buffer.
func (m *Metrics) SetBufferDepth(buffer string, depth int) {
	if m == nil {
		return
	}
	m.BufferDepth.WithLabelValues(buffer).Set(float64(depth))
}

// RecordInserts counts rows written to a table.
func (m *Metrics) RecordInserts(table string, rows, conflicts int) {
	if m == nil {
		return
	}
	m.RowsInserted.WithLabelValues(table).Add(float64(rows))
	if conflicts > 0 {
		m.InsertConflicts.WithLabelValues(table).Add(float64(conflicts))
	}
}

// RecordInsertError counts one failed batch insert.
func (m *Metrics) RecordInsertError(table string) {
	if m == nil {
		return
	}
	m.InsertErrors.WithLabelValues(table).Inc()
}

// ObserveFlush records the duration of one batch flush in seconds.
func (m *Metrics) ObserveFlush(table string, seconds float64) {
	if m == nil {
		return
	}
	m.FlushDuration.WithLabelValues(table).Observe(seconds)
}
