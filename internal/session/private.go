package session

import (
	"context"
	"log"
	"sync"

	"chat-client/internal/types"
)

// PrivateHandler receives inbound private messages for one peer while that
// peer's conversation is open.
type PrivateHandler func(m *types.Message)

// Conversation is the state of one open private conversation: an ordered
// transcript and its own deduplication scope.
type Conversation struct {
	peer string

	mu       sync.Mutex
	messages []types.Message
	dedup    *Deduplicator

	cancelHistory context.CancelFunc
}

func newConversation(peer string) *Conversation {
	return &Conversation{
		peer:  peer,
		dedup: NewDeduplicator(),
	}
}

func (c *Conversation) Peer() string { return c.peer }

// Transcript returns a copy of the ordered message sequence.
func (c *Conversation) Transcript() []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// deliver appends m unless it is a duplicate. Messages without an id get the
// composite identity so later copies of the same frame collapse onto it.
func (c *Conversation) deliver(m *types.Message) bool {
	if !c.dedup.Admit(m) {
		return false
	}

	entry := *m
	if entry.ID == "" {
		entry.ID = m.Identity()
	}

	c.mu.Lock()
	c.messages = append(c.messages, entry)
	c.mu.Unlock()
	return true
}

// seedHistory inserts fetched history ahead of any messages that arrived
// live while the fetch was in flight. Entries the dedup set already admitted
// are skipped.
func (c *Conversation) seedHistory(history []types.Message) {
	seeded := make([]types.Message, 0, len(history))
	for i := range history {
		m := history[i]
		if !c.dedup.Admit(&m) {
			continue
		}
		if m.ID == "" {
			m.ID = m.Identity()
		}
		seeded = append(seeded, m)
	}
	if len(seeded) == 0 {
		return
	}

	c.mu.Lock()
	c.messages = append(seeded, c.messages...)
	c.mu.Unlock()
}

// Registry multiplexes private conversations: peer username -> conversation
// state. For every peer, exactly one of {handler registered, unread counter
// tracked} holds at a time.
type Registry struct {
	mu        sync.RWMutex
	localUser string
	open      map[string]*Conversation
	handlers  map[string]PrivateHandler
	unread    map[string]int

	// onDelivered fires after a handler admits a message into an open
	// conversation. Optional; used by the session facade to surface events.
	onDelivered func(peer string, m types.Message)
}

func NewRegistry(localUser string, onDelivered func(peer string, m types.Message)) *Registry {
	return &Registry{
		localUser:   localUser,
		open:        make(map[string]*Conversation),
		handlers:    make(map[string]PrivateHandler),
		unread:      make(map[string]int),
		onDelivered: onDelivered,
	}
}

// Open returns the conversation for peer, creating it if needed. Opening is
// idempotent; it always registers the delivery handler and clears any unread
// counter for that peer. created reports whether the conversation is new.
func (r *Registry) Open(peer string) (conv *Conversation, created bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	conv, ok := r.open[peer]
	if !ok {
		conv = newConversation(peer)
		r.open[peer] = conv
		created = true
	}

	r.handlers[peer] = func(m *types.Message) {
		if conv.deliver(m) && r.onDelivered != nil {
			r.onDelivered(peer, *m)
		}
	}
	delete(r.unread, peer)
	return conv, created
}

// Close deregisters peer's handler and discards the conversation state.
// Closing an unknown peer is a no-op. A pending history fetch is canceled;
// messages arriving afterward start counting as unread against a fresh
// conversation entry.
func (r *Registry) Close(peer string) {
	r.mu.Lock()
	conv := r.open[peer]
	delete(r.open, peer)
	delete(r.handlers, peer)
	r.mu.Unlock()

	if conv != nil && conv.cancelHistory != nil {
		conv.cancelHistory()
	}
}

// RouteInbound dispatches one private frame. The broker echoes a sender's
// own message back on their queue, so the conversation peer is the other
// side of the frame whichever direction it traveled. A handler failure is
// logged and never interrupts dispatch of subsequent frames.
func (r *Registry) RouteInbound(m *types.Message) (peer string, handled bool) {
	otherUser := m.Sender
	if m.Sender == r.localUser {
		otherUser = m.Recipient
	}
	if otherUser == "" {
		log.Printf("[SESSION] Dropping private frame with no routable peer (sender=%q)", m.Sender)
		return "", false
	}

	r.mu.RLock()
	handler := r.handlers[otherUser]
	r.mu.RUnlock()

	if handler != nil {
		invokeHandler(otherUser, handler, m)
		return otherUser, true
	}

	if m.Recipient == r.localUser {
		r.mu.Lock()
		r.unread[otherUser]++
		r.mu.Unlock()
	}
	return otherUser, false
}

func invokeHandler(peer string, handler PrivateHandler, m *types.Message) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[SESSION] Private handler for %s panicked: %v", peer, rec)
		}
	}()
	handler(m)
}

// UnreadFor returns the unread counter for peer.
func (r *Registry) UnreadFor(peer string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.unread[peer]
}

// Unread returns a copy of all non-zero unread counters.
func (r *Registry) Unread() map[string]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]int, len(r.unread))
	for peer, n := range r.unread {
		out[peer] = n
	}
	return out
}

// Get returns the open conversation for peer, or nil.
func (r *Registry) Get(peer string) *Conversation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.open[peer]
}

// IsOpen reports whether a handler is currently registered for peer.
func (r *Registry) IsOpen(peer string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.handlers[peer]
	return ok
}

// CloseAll tears down every open conversation on session teardown.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	convs := make([]*Conversation, 0, len(r.open))
	for _, conv := range r.open {
		convs = append(convs, conv)
	}
	r.open = make(map[string]*Conversation)
	r.handlers = make(map[string]PrivateHandler)
	r.mu.Unlock()

	for _, conv := range convs {
		if conv.cancelHistory != nil {
			conv.cancelHistory()
		}
	}
}
