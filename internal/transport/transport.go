// Package transport is the publish/subscribe channel the session layer talks
// to the broker through. Frames carry a destination and a JSON body; the
// broker fans published frames out to every subscriber of that destination.
package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Frame is one wire-level message: an envelope routing a JSON body to a
// destination (a topic, a per-user queue, or an application send target).
type Frame struct {
	Destination string          `json:"destination"`
	Body        json.RawMessage `json:"body"`
}

// Subscription undoes a Subscribe call. Unsubscribing twice is harmless.
type Subscription interface {
	Unsubscribe()
}

// Conn is one live broker connection. Implementations deliver inbound frames
// serially from a single goroutine; handlers must not block on one another.
type Conn interface {
	// Subscribe routes inbound frames for destination to onFrame. A second
	// Subscribe for the same destination replaces the previous handler.
	Subscribe(destination string, onFrame func(body []byte)) Subscription

	// Publish sends body to destination. Fails once the connection is lost.
	Publish(destination string, body any) error

	// OnError registers the handler invoked when the connection dies for any
	// reason other than Deactivate.
	OnError(handler func(error))

	// Deactivate tears the connection down. Best-effort, idempotent.
	Deactivate()
}

// Dialer opens broker connections. The session's connection manager redials
// through this on every reconnect attempt.
type Dialer interface {
	Dial(ctx context.Context, headers map[string]string) (Conn, error)
}

// ErrClosed is returned by Publish after the connection is gone.
var ErrClosed = errors.New("transport: connection closed")

// Error wraps a transport-level failure with the operation that hit it.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string {
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
