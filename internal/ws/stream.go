package ws

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// State is the reconnect driver's lifecycle phase.
type State int32

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
	StateBackoff
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateConnecting:
		return "connecting"
	case StateStreaming:
		return "streaming"
	case StateBackoff:
		return "backoff"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// ReconnectConfig controls backoff between connection attempts.
type ReconnectConfig struct {
	// InitialDelay seeds the backoff after a successful session.
	InitialDelay time.Duration
	// MaxDelay caps the grown delay.
	MaxDelay time.Duration
	// Multiplier scales the delay after each consecutive failure.
	Multiplier float64
	// MaxAttempts bounds consecutive failures before the stream gives
	// up. Zero means retry forever.
	MaxAttempts int
}

// DefaultReconnectConfig matches the feed's documented retry cadence:
// 1s initial, doubling to a 30s ceiling, unlimited attempts.
func DefaultReconnectConfig() ReconnectConfig {
	return ReconnectConfig{
		InitialDelay: time.Second,
		MaxDelay:     30 * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  0,
	}
}

// EventSource is one live session the Stream drives: a *Session, a
// *UserSession, or a test double.
type EventSource[E any] interface {
	Next(ctx context.Context) (E, error)
	Close() error
}

// ConnectFunc establishes a fresh session. The Stream calls it on first
// use and after every session-ending error.
type ConnectFunc[E any] func(ctx context.Context) (EventSource[E], error)

// Stream turns a ConnectFunc into a resilient event sequence. Failed
// dials and dead sessions surface as error items from Next while the
// Stream backs off and reconnects underneath; message-scoped decode
// errors surface without disturbing the session. The zero delay between
// caller Next calls is the only pacing besides backoff.
//
// Next must be called from one goroutine at a time. Close and State are
// safe from any goroutine.
type Stream[E any] struct {
	cfg     ReconnectConfig
	connect ConnectFunc[E]
	logger  *slog.Logger

	state atomic.Int32

	// delay and attempts are touched only from the consumer goroutine.
	delay    time.Duration
	attempts int

	mu     sync.Mutex
	source EventSource[E]
	closed bool
}

// NewStream wraps connect in a reconnect driver. No connection is made
// until the first Next call. A nil logger falls back to slog.Default.
func NewStream[E any](cfg ReconnectConfig, connect ConnectFunc[E], logger *slog.Logger) *Stream[E] {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Stream[E]{
		cfg:     cfg,
		connect: connect,
		logger:  logger,
		delay:   cfg.InitialDelay,
	}
	s.state.Store(int32(StateIdle))
	return s
}

// State reports the driver's current phase.
func (s *Stream[E]) State() State {
	return State(s.state.Load())
}

func (s *Stream[E]) setState(st State) {
	s.state.Store(int32(st))
}

// Next returns the next event, or an error item. Errors from failed
// dials and dead sessions are reported once each and followed by a
// reconnect attempt on the subsequent call; decode errors are reported
// without touching the connection. After the attempt budget is spent,
// and after Close, Next returns ErrStreamEnded.
func (s *Stream[E]) Next(ctx context.Context) (E, error) {
	var zero E
	for {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		if s.isClosed() {
			return zero, ErrStreamEnded
		}

		switch s.State() {
		case StateExhausted:
			return zero, ErrStreamEnded

		case StateIdle:
			s.setState(StateConnecting)

		case StateConnecting:
			src, err := s.connect(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return zero, ctx.Err()
				}
				s.recordFailure()
				s.logger.Warn("connect failed",
					"error", err,
					"attempts", s.attempts,
					"state", s.State().String())
				return zero, err
			}
			if !s.adopt(src) {
				return zero, ErrStreamEnded
			}

		case StateStreaming:
			src := s.currentSource()
			if src == nil {
				return zero, ErrStreamEnded
			}
			ev, err := src.Next(ctx)
			if err == nil {
				return ev, nil
			}
			if ctx.Err() != nil {
				return zero, ctx.Err()
			}
			if messageScoped(err) {
				return zero, err
			}
			s.dropSource()
			s.recordFailure()
			if s.isClosed() {
				return zero, ErrStreamEnded
			}
			s.logger.Warn("session ended",
				"error", err,
				"attempts", s.attempts,
				"state", s.State().String())
			return zero, err

		case StateBackoff:
			timer := time.NewTimer(s.delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, ctx.Err()
			case <-timer.C:
			}
			s.setState(StateConnecting)
		}
	}
}

// recordFailure charges one failed attempt: it either exhausts the
// stream or grows the delay and parks it in backoff.
func (s *Stream[E]) recordFailure() {
	s.attempts++
	if s.cfg.MaxAttempts > 0 && s.attempts >= s.cfg.MaxAttempts {
		s.setState(StateExhausted)
		s.logger.Warn("retries exhausted", "attempts", s.attempts)
		return
	}
	s.delay = s.nextDelay()
	s.setState(StateBackoff)
}

func (s *Stream[E]) nextDelay() time.Duration {
	next := time.Duration(float64(s.delay) * s.cfg.Multiplier)
	if next > s.cfg.MaxDelay {
		next = s.cfg.MaxDelay
	}
	return next
}

// adopt installs a fresh session and resets the failure budget. It
// reports false when the stream was closed while dialing, in which case
// the session is closed instead of installed.
func (s *Stream[E]) adopt(src EventSource[E]) bool {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		src.Close()
		return false
	}
	s.source = src
	s.mu.Unlock()

	s.delay = s.cfg.InitialDelay
	s.attempts = 0
	s.setState(StateStreaming)
	return true
}

func (s *Stream[E]) currentSource() EventSource[E] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

func (s *Stream[E]) dropSource() {
	s.mu.Lock()
	src := s.source
	s.source = nil
	s.mu.Unlock()
	if src != nil {
		src.Close()
	}
}

func (s *Stream[E]) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Close ends the stream. Any live session is closed, no further
// connections are attempted, and pending or future Next calls return
// ErrStreamEnded. Close is idempotent.
func (s *Stream[E]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	src := s.source
	s.source = nil
	s.mu.Unlock()

	s.setState(StateExhausted)
	if src != nil {
		return src.Close()
	}
	return nil
}
