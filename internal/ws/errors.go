package ws

import (
	"errors"
	"fmt"
)

// ErrStreamEnded marks the end of a Stream's event sequence. Next returns
// it once the reconnect attempt budget is spent or the stream is closed;
// it is a terminator, not a fault.
var ErrStreamEnded = errors.New("stream ended")

// TransportError is a connection-level failure: dial, subscribe write, or
// a broken read. It ends the session that produced it.
type TransportError struct {
	Op  string // "dial", "subscribe", "read"
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("websocket %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ClosedError reports that the server closed the websocket. It ends the
// session that produced it.
type ClosedError struct {
	Code int
	Text string
}

func (e *ClosedError) Error() string {
	if e.Text == "" {
		return fmt.Sprintf("connection closed (code %d)", e.Code)
	}
	return fmt.Sprintf("connection closed (code %d): %s", e.Code, e.Text)
}

// DecodeError reports one undecodable message. The session continues;
// Payload holds a truncated copy of the offending input.
type DecodeError struct {
	Payload string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode message: %v (payload %q)", e.Err, e.Payload)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// UnsupportedFrameError reports a frame kind the feed never sends, such as
// a binary message. Like DecodeError it is scoped to the one frame and
// does not end the session.
type UnsupportedFrameError struct {
	FrameType int
}

func (e *UnsupportedFrameError) Error() string {
	return fmt.Sprintf("unsupported frame type %d", e.FrameType)
}

// payloadSnippet caps the payload copied into a DecodeError.
const payloadSnippet = 256

func newDecodeError(data []byte, err error) *DecodeError {
	if len(data) > payloadSnippet {
		data = data[:payloadSnippet]
	}
	return &DecodeError{Payload: string(data), Err: err}
}

// messageScoped reports whether err affects a single message rather than
// the whole session. Message-scoped errors are surfaced and the session
// keeps running; everything else is a reconnect trigger.
func messageScoped(err error) bool {
	var de *DecodeError
	var fe *UnsupportedFrameError
	return errors.As(err, &de) || errors.As(err, &fe)
}
