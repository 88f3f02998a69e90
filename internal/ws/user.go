package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"

	"github.com/rickgao/polymarket-data/internal/auth"
)

// userSubscription is the first frame on a user connection. Credentials
// ride along verbatim; no signing happens on this side.
type userSubscription struct {
	Auth    userAuth `json:"auth"`
	Markets []string `json:"markets"`
	Type    string   `json:"type"`
}

type userAuth struct {
	APIKey     string `json:"apiKey"`
	Secret     string `json:"secret"`
	Passphrase string `json:"passphrase"`
}

// UserEvent is one decoded user-feed update: a *TradeEvent or an
// *OrderEvent, distinguished by type switch.
type UserEvent interface {
	isUserEvent()
}

// TradeEvent reports a fill that involves one of the caller's orders.
type TradeEvent struct {
	EventType    string          `json:"event_type"` // always "trade"
	ID           string          `json:"id"`
	TakerOrderID string          `json:"taker_order_id"`
	Market       string          `json:"market"`
	AssetID      string          `json:"asset_id"`
	Side         Side            `json:"side"`
	Price        decimal.Decimal `json:"price"`
	Size         decimal.Decimal `json:"size"`
	Status       string          `json:"status"`
	Outcome      string          `json:"outcome"`
	MatchTime    string          `json:"match_time"`
	LastUpdate   string          `json:"last_update"`
}

func (*TradeEvent) isUserEvent() {}

// OrderEvent reports a placement, update, or cancellation of one of the
// caller's orders.
type OrderEvent struct {
	EventType    string          `json:"event_type"` // always "order"
	ID           string          `json:"id"`
	Market       string          `json:"market"`
	AssetID      string          `json:"asset_id"`
	Side         Side            `json:"side"`
	Price        decimal.Decimal `json:"price"`
	OriginalSize decimal.Decimal `json:"original_size"`
	SizeMatched  decimal.Decimal `json:"size_matched"`
	OrderType    string          `json:"type"` // PLACEMENT, UPDATE, CANCELLATION
	CreatedAt    string          `json:"created_at"`
}

func (*OrderEvent) isUserEvent() {}

// UserClient dials the authenticated user feed.
type UserClient struct {
	opts clientOptions
}

// NewUserClient returns a user-feed client. With no options it uses
// DefaultUserURL and the standard timeouts.
func NewUserClient(opts ...Option) *UserClient {
	o := defaultOptions()
	o.url = DefaultUserURL
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return &UserClient{opts: o}
}

// Subscribe opens one session streaming the caller's trades and order
// updates for the given condition IDs. An empty markets list subscribes
// to activity across all markets.
func (c *UserClient) Subscribe(ctx context.Context, creds auth.Credentials, markets []string) (*UserSession, error) {
	if err := creds.Validate(); err != nil {
		return nil, fmt.Errorf("user subscribe: %w", err)
	}

	sub := userSubscription{
		Auth: userAuth{
			APIKey:     creds.Key,
			Secret:     creds.Secret,
			Passphrase: creds.Passphrase,
		},
		Markets: markets,
		Type:    "user",
	}

	conn, err := dialAndSubscribe(ctx, c.opts, sub)
	if err != nil {
		return nil, err
	}
	return &UserSession{conn: conn}, nil
}

// Stream wraps Subscribe in a reconnecting Stream. Credentials and the
// market list are captured once and replayed on every reconnect.
func (c *UserClient) Stream(cfg ReconnectConfig, creds auth.Credentials, markets []string) *Stream[UserEvent] {
	mkts := slices.Clone(markets)
	return NewStream(cfg, func(ctx context.Context) (EventSource[UserEvent], error) {
		return c.Subscribe(ctx, creds, mkts)
	}, c.opts.logger)
}

// UserSession is one live user-feed connection.
type UserSession struct {
	conn *wsConn
}

// Next returns the next decoded user event, with the same error contract
// as Session.Next.
func (s *UserSession) Next(ctx context.Context) (UserEvent, error) {
	for {
		fr, err := s.conn.nextFrame(ctx)
		if err != nil {
			return nil, err
		}

		switch fr.messageType {
		case websocket.TextMessage:
			ev, err := decodeUserText(fr.data)
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

// Close tears the connection down.
func (s *UserSession) Close() error { return s.conn.close() }

// decodeUserText applies the shared batch convention to a user-feed frame.
func decodeUserText(data []byte) (UserEvent, error) {
	payload, empty := firstInBatch(data)
	if empty {
		return nil, nil
	}
	return decodeUserEvent(payload)
}

func decodeUserEvent(data []byte) (UserEvent, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, newDecodeError(data, err)
	}

	switch env.EventType {
	case "trade":
		var ev TradeEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, newDecodeError(data, err)
		}
		return &ev, nil
	case "order":
		var ev OrderEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, newDecodeError(data, err)
		}
		return &ev, nil
	default:
		return nil, newDecodeError(data, fmt.Errorf("unknown event_type %q", env.EventType))
	}
}
