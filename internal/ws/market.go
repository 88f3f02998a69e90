package ws

import (
	"context"
	"log/slog"
	"slices"

	"github.com/gorilla/websocket"
)

// marketSubscription is the only application frame sent on a market
// connection, immediately after connect.
type marketSubscription struct {
	AssetsIDs []string `json:"assets_ids"`
}

// MarketClient dials the public market feed.
type MarketClient struct {
	opts clientOptions
}

// NewMarketClient returns a market-feed client. With no options it uses
// DefaultMarketURL and the standard timeouts.
func NewMarketClient(opts ...Option) *MarketClient {
	o := defaultOptions()
	o.url = DefaultMarketURL
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &MarketClient{opts: o}
}

// Subscribe opens one session streaming book snapshots and price changes
// for the given token IDs. The ID list is serialized into the first
// outbound frame and is fixed for the life of the session.
func (c *MarketClient) Subscribe(ctx context.Context, assetIDs []string) (*Session, error) {
	conn, err := dialAndSubscribe(ctx, c.opts, marketSubscription{AssetsIDs: assetIDs})
	if err != nil {
		return nil, err
	}
	return &Session{conn: conn}, nil
}

// Stream wraps Subscribe in a reconnecting Stream. The asset ID list is
// copied once up front and replayed verbatim on every reconnect.
func (c *MarketClient) Stream(cfg ReconnectConfig, assetIDs []string) *Stream[Event] {
	ids := slices.Clone(assetIDs)
	return NewStream(cfg, func(ctx context.Context) (EventSource[Event], error) {
		return c.Subscribe(ctx, ids)
	}, c.opts.logger)
}

// Session is one live market-feed connection. A single consumer pulls
// decoded events with Next, in arrival order, until the session ends.
type Session struct {
	conn *wsConn
}

// Next returns the next decoded event. *DecodeError and
// *UnsupportedFrameError are scoped to one message and leave the session
// running; *ClosedError and *TransportError mean the session is over and
// every further call returns the same error.
func (s *Session) Next(ctx context.Context) (Event, error) {
	for {
		fr, err := s.conn.nextFrame(ctx)
		if err != nil {
			return nil, err
		}

		switch fr.messageType {
		case websocket.TextMessage:
			ev, err := decodeMarketText(fr.data)
			if err != nil {
				return nil, err
			}
			if ev == nil {
				continue
			}
			return ev, nil
		case websocket.BinaryMessage:
			return nil, &UnsupportedFrameError{FrameType: fr.messageType}
		default:
			continue
		}
	}
}

// Close tears the connection down. Pending and future Next calls unblock
// with a terminal error.
func (s *Session) Close() error { return s.conn.close() }
