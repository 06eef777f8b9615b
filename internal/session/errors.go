package session

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by send operations while the connection
	// manager is not in the CONNECTED state. Messages are not queued.
	ErrNotConnected = errors.New("session: not connected to broker")

	// ErrEmptyMessage rejects empty or whitespace-only content locally,
	// before any network round-trip.
	ErrEmptyMessage = errors.New("session: message content is empty")

	// ErrSelfConversation rejects opening a private conversation with the
	// local user.
	ErrSelfConversation = errors.New("session: cannot open a private conversation with yourself")

	// ErrSessionClosed is returned by operations on a torn-down session.
	ErrSessionClosed = errors.New("session: session is closed")
)

// HistoryFetchError reports a failed private-history lookup. The conversation
// still opens, with an empty transcript.
type HistoryFetchError struct {
	Peer string
	Err  error
}

func (e *HistoryFetchError) Error() string {
	return fmt.Sprintf("session: history fetch for %s failed: %v", e.Peer, e.Err)
}

func (e *HistoryFetchError) Unwrap() error { return e.Err }
