package session

import (
	"sync"

	"chat-client/internal/types"
)

// Deduplicator rejects re-delivered frames. The broker may replay frames
// after a reconnect, and an optimistically echoed private message collides
// with the broker's own copy; both collapse to the same identity and only
// the first is admitted.
//
// The admitted set is scoped to one conversation (the group transcript and
// each private conversation own their own) and is never pruned: a single
// chat session's lifetime keeps it small enough that the memory is not
// worth reclaiming.
type Deduplicator struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

func NewDeduplicator() *Deduplicator {
	return &Deduplicator{seen: make(map[string]struct{})}
}

// IdentityOf returns the stable identity of m: the server-assigned id when
// present, otherwise a composite of sender, recipient-or-channel, content
// and timestamp.
func (d *Deduplicator) IdentityOf(m *types.Message) string {
	return m.Identity()
}

// Admit reports whether m is seen for the first time. A true result means
// the message should be processed; false means it is a duplicate.
func (d *Deduplicator) Admit(m *types.Message) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	id := m.Identity()
	if _, dup := d.seen[id]; dup {
		return false
	}
	d.seen[id] = struct{}{}
	return true
}
