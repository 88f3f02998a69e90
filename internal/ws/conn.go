package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Default endpoints for the Polymarket CLOB feeds.
const (
	DefaultMarketURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
	DefaultUserURL   = "wss://ws-subscriptions-clob.polymarket.com/ws/user"
)

// clientOptions holds dial and session settings shared by both feed clients.
type clientOptions struct {
	url              string
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	pingInterval     time.Duration
	pingTimeout      time.Duration
	frameBuffer      int
	logger           *slog.Logger
}

func defaultOptions() clientOptions {
	return clientOptions{
		handshakeTimeout: 10 * time.Second,
		writeTimeout:     5 * time.Second,
		pingInterval:     10 * time.Second,
		pingTimeout:      60 * time.Second,
		frameBuffer:      256,
	}
}

// Option adjusts client construction.
type Option func(*clientOptions)

// WithURL overrides the feed endpoint.
func WithURL(url string) Option {
	return func(o *clientOptions) { o.url = url }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(o *clientOptions) { o.logger = logger }
}

// WithHandshakeTimeout bounds the websocket handshake.
func WithHandshakeTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.handshakeTimeout = d }
}

// WithWriteTimeout bounds the subscription write and outgoing control frames.
func WithWriteTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.writeTimeout = d }
}

// WithPingInterval sets the keep-alive ping cadence. Zero disables
// keep-alive entirely.
func WithPingInterval(d time.Duration) Option {
	return func(o *clientOptions) { o.pingInterval = d }
}

// WithPingTimeout sets how long the server may stay silent before the
// session is torn down as stale. Zero disables the check.
func WithPingTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.pingTimeout = d }
}

// WithFrameBuffer sets the inbound frame channel depth.
func WithFrameBuffer(n int) Option {
	return func(o *clientOptions) { o.frameBuffer = n }
}

// frame is one raw inbound message from the transport.
type frame struct {
	messageType int
	data        []byte
}

// wsConn owns one websocket connection. A pump goroutine moves inbound
// frames onto a channel so that reads can be canceled through a context;
// the pump lives exactly as long as the connection.
type wsConn struct {
	conn   *websocket.Conn
	logger *slog.Logger

	frames chan frame
	done   chan struct{}

	closeOnce sync.Once

	mu       sync.Mutex
	termErr  error
	lastSeen time.Time
}

// dialAndSubscribe opens a connection and sends the subscription payload
// as the first outbound frame. Nothing is read before the subscription is
// on the wire. Failures at either step surface as a *TransportError with
// no session left behind.
func dialAndSubscribe(ctx context.Context, opts clientOptions, sub any) (*wsConn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: opts.handshakeTimeout,
	}

	conn, _, err := dialer.DialContext(ctx, opts.url, nil)
	if err != nil {
		return nil, &TransportError{Op: "dial", Err: err}
	}

	payload, err := json.Marshal(sub)
	if err != nil {
		conn.Close()
		return nil, &TransportError{Op: "subscribe", Err: err}
	}

	conn.SetWriteDeadline(time.Now().Add(opts.writeTimeout))
	if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		conn.Close()
		return nil, &TransportError{Op: "subscribe", Err: err}
	}
	conn.SetWriteDeadline(time.Time{})

	c := &wsConn{
		conn:     conn,
		logger:   opts.logger,
		frames:   make(chan frame, opts.frameBuffer),
		done:     make(chan struct{}),
		lastSeen: time.Now(),
	}

	// The server occasionally pings; answer and count it as liveness.
	conn.SetPingHandler(func(data string) error {
		c.touch()
		return conn.WriteControl(websocket.PongMessage, []byte(data), time.Now().Add(time.Second))
	})
	conn.SetPongHandler(func(string) error {
		c.touch()
		return nil
	})

	go c.readPump()
	if opts.pingInterval > 0 {
		go c.pingLoop(opts.pingInterval, opts.pingTimeout, opts.writeTimeout)
	}

	opts.logger.Debug("websocket connected", "url", opts.url)
	return c, nil
}

func (c *wsConn) touch() {
	c.mu.Lock()
	c.lastSeen = time.Now()
	c.mu.Unlock()
}

// nextFrame blocks until a frame arrives, the session ends, or ctx is done.
// Once the session is over it keeps returning the same terminal error.
func (c *wsConn) nextFrame(ctx context.Context) (frame, error) {
	select {
	case <-ctx.Done():
		return frame{}, ctx.Err()
	case fr, ok := <-c.frames:
		if !ok {
			return frame{}, c.terminalErr()
		}
		return fr, nil
	}
}

func (c *wsConn) terminalErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.termErr != nil {
		return c.termErr
	}
	// The pump exited without a read error, which only happens after a
	// local close.
	return &TransportError{Op: "read", Err: net.ErrClosed}
}

// readPump moves frames from the connection to the frames channel until
// the read side fails, recording the cause so a drained channel always
// has a terminal error behind it.
func (c *wsConn) readPump() {
	defer close(c.frames)

	for {
		mt, data, err := c.conn.ReadMessage()
		if err != nil {
			c.mu.Lock()
			if c.termErr == nil {
				c.termErr = classifyReadError(err)
			}
			c.mu.Unlock()
			return
		}
		c.touch()

		select {
		case c.frames <- frame{messageType: mt, data: data}:
		case <-c.done:
			return
		}
	}
}

// pingLoop sends keep-alive pings and tears the connection down when the
// server has gone quiet for longer than pingTimeout. The dead read then
// surfaces through the pump as the session's terminal error.
func (c *wsConn) pingLoop(interval, timeout, writeTimeout time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeTimeout)
			if err := c.conn.WriteControl(websocket.PingMessage, []byte("keepalive"), deadline); err != nil {
				c.logger.Debug("keep-alive ping failed", "error", err)
			}

			if timeout <= 0 {
				continue
			}
			c.mu.Lock()
			quiet := time.Since(c.lastSeen)
			c.mu.Unlock()
			if quiet > timeout {
				c.logger.Warn("connection stale, closing", "quiet", quiet)
				c.conn.Close()
				return
			}
		}
	}
}

// close shuts the connection down and stops both loops. Safe to call more
// than once and from any goroutine.
func (c *wsConn) close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second),
		)
		err = c.conn.Close()
	})
	return err
}

func classifyReadError(err error) error {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return &ClosedError{Code: ce.Code, Text: ce.Text}
	}
	return &TransportError{Op: "read", Err: err}
}
