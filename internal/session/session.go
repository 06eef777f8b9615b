// Package session is the chat client's session and message-routing layer.
// It keeps one live broker connection, multiplexes the shared group channel
// and any number of private conversations over it, tracks presence, and
// guarantees each inbound frame is rendered exactly once regardless of
// reconnects or duplicate delivery.
package session

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"chat-client/internal/auth"
	"chat-client/internal/config"
	"chat-client/internal/rest"
	"chat-client/internal/transport"
	"chat-client/internal/types"

	"github.com/google/uuid"
)

type EventKind string

const (
	EventGroupMessage   EventKind = "group_message"
	EventPrivateMessage EventKind = "private_message"
	EventUnread         EventKind = "unread"
	EventTyping         EventKind = "typing"
	EventConnected      EventKind = "connected"
	EventDisconnected   EventKind = "disconnected"
)

// Event is the session's notification to the UI layer that state changed
// and a re-render is due.
type Event struct {
	Kind    EventKind
	Peer    string
	Message *types.Message
}

// Session composes the presence set, deduplicator, typing coordinator,
// private registry and connection manager into the single object the UI
// layer consumes. One Session exists per authenticated user for the
// lifetime of the chat screen.
type Session struct {
	user *auth.User
	rest *rest.Client

	conn       *ConnManager
	presence   *PresenceSet
	registry   *Registry
	typing     *TypingCoordinator
	dedup      *Deduplicator
	reconciler *PresenceReconciler

	mu         sync.RWMutex
	transcript []types.Message
	groupSub   transport.Subscription
	privateSub transport.Subscription
	onEvent    func(Event)

	sessionID string
	ctx       context.Context
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New wires a session for user. Nothing touches the network until Start.
func New(cfg *config.Config, user *auth.User, restClient *rest.Client, dialer transport.Dialer) *Session {
	s := &Session{
		user:      user,
		rest:      restClient,
		sessionID: uuid.NewString(),
		presence:  NewPresenceSet(user.Username),
		dedup:     NewDeduplicator(),
	}

	s.registry = NewRegistry(user.Username, func(peer string, m types.Message) {
		s.emit(Event{Kind: EventPrivateMessage, Peer: peer, Message: &m})
	})
	s.typing = NewTypingCoordinator(cfg.TypingDebounce, cfg.TypingExpiry, s.publishTyping)
	s.reconciler = NewPresenceReconciler(s.presence, restClient.OnlineUsers, cfg.PresenceRefresh)

	s.conn = NewConnManager(dialer, cfg.ReconnectDelay, s.connectHeaders)
	s.conn.OnConnected(s.handleConnected)
	s.conn.OnDropped(s.handleDropped)
	return s
}

// OnEvent registers the UI notification hook. A panicking hook is recovered
// and logged; it never interrupts dispatch.
func (s *Session) OnEvent(fn func(Event)) {
	s.mu.Lock()
	s.onEvent = fn
	s.mu.Unlock()
}

// Start begins connecting and schedules presence reconciliation. The
// connection loop retries indefinitely until Close.
func (s *Session) Start(ctx context.Context) {
	s.ctx, s.cancel = context.WithCancel(ctx)
	log.Printf("[SESSION] Starting session for %s (id=%s)", s.user.Username, s.sessionID)
	s.conn.Connect(s.ctx)
	s.reconciler.Start()
}

func (s *Session) connectHeaders() map[string]string {
	return map[string]string{
		"client-id":  s.user.Username,
		"session-id": s.sessionID,
		"username":   s.user.Username,
	}
}

// handleConnected runs on every successful connection, including reconnects:
// subscribe to the group topic and the private queue, announce JOIN, and
// kick a presence reconciliation so the user list is fresh immediately.
func (s *Session) handleConnected(conn transport.Conn) {
	groupSub := conn.Subscribe(TopicGroup, s.handleGroupFrame)
	privateSub := conn.Subscribe(PrivateQueue(s.user.Username), s.handlePrivateFrame)

	s.mu.Lock()
	s.groupSub = groupSub
	s.privateSub = privateSub
	s.mu.Unlock()

	join := types.Message{
		Sender:    s.user.Username,
		Type:      types.TypeJoin,
		Color:     s.user.Color,
		Timestamp: types.Now(),
	}
	if err := conn.Publish(DestAnnounce, join); err != nil {
		log.Printf("[SESSION] JOIN announcement failed: %v", err)
	}

	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, 10*time.Second)
		defer cancel()
		s.reconciler.RunOnce(ctx)
	}()

	s.emit(Event{Kind: EventConnected})
}

// handleDropped surfaces a transport loss as a system notice in the group
// transcript. Recovery is the reconnect loop; nothing here is fatal.
func (s *Session) handleDropped(err error) {
	notice := types.Message{
		ID:        "system-" + uuid.NewString(),
		Sender:    "System",
		Content:   "⚠️ Connection to the chat server was lost. Reconnecting...",
		Type:      types.TypeSystem,
		Timestamp: types.Now(),
	}
	s.appendToTranscript(&notice)
	s.emit(Event{Kind: EventDisconnected, Message: &notice})
}

// handleGroupFrame dispatches one frame from the shared group topic.
func (s *Session) handleGroupFrame(body []byte) {
	m := &types.Message{}
	if err := json.Unmarshal(body, m); err != nil {
		log.Printf("[SESSION] Dropping malformed group frame: %v", err)
		return
	}

	switch m.Type {
	case types.TypeJoin:
		s.presence.Add(m.Sender)
	case types.TypeLeave:
		s.presence.Remove(m.Sender)
	case types.TypeTyping:
		if m.Sender != s.user.Username {
			s.typing.OnRemoteTyping(m.Sender)
			s.emit(Event{Kind: EventTyping, Peer: m.Sender})
		}
		return
	case types.TypeChat, types.TypeSystem:
		// falls through to the transcript below
	default:
		log.Printf("[SESSION] Ignoring group frame of unknown type %q", m.Type)
		return
	}

	if m.Timestamp == "" {
		m.Timestamp = types.Now()
	}
	if !s.dedup.Admit(m) {
		return
	}
	if m.ID == "" {
		m.ID = m.Identity()
	}

	s.mu.Lock()
	s.transcript = append(s.transcript, *m)
	s.mu.Unlock()
	s.emit(Event{Kind: EventGroupMessage, Message: m})
}

// handlePrivateFrame routes one frame from the per-user private queue.
func (s *Session) handlePrivateFrame(body []byte) {
	m := &types.Message{}
	if err := json.Unmarshal(body, m); err != nil {
		log.Printf("[SESSION] Dropping malformed private frame: %v", err)
		return
	}

	peer, handled := s.registry.RouteInbound(m)
	if !handled && peer != "" && m.Recipient == s.user.Username {
		s.emit(Event{Kind: EventUnread, Peer: peer, Message: m})
	}
}

// SendGroupMessage publishes text to the group channel. The broker's
// broadcast is what lands it in the transcript; there is no local echo for
// group messages.
func (s *Session) SendGroupMessage(text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyMessage
	}

	m := types.Message{
		Sender:    s.user.Username,
		Content:   trimmed,
		Type:      types.TypeChat,
		Color:     s.user.Color,
		Timestamp: types.Now(),
	}
	return s.conn.Publish(DestSendMessage, m)
}

// SendPrivateMessage publishes text to peer and optimistically echoes it
// into the open conversation's transcript. The deduplicator discards the
// broker's echo of the same frame when it arrives.
func (s *Session) SendPrivateMessage(peer, text string) error {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return ErrEmptyMessage
	}

	if s.conn.State() != StateConnected {
		return ErrNotConnected
	}

	m := types.Message{
		Sender:    s.user.Username,
		Recipient: peer,
		Content:   trimmed,
		Type:      types.TypePrivate,
		Color:     s.user.Color,
		Timestamp: types.Now(),
	}

	if conv := s.registry.Get(peer); conv != nil {
		echo := m
		conv.deliver(&echo)
	}
	return s.conn.Publish(DestPrivate, m)
}

// NotifyTyping reports a local keystroke. Bursts collapse into one outbound
// TYPING frame per debounce window. No-op while disconnected.
func (s *Session) NotifyTyping() {
	if s.conn.State() != StateConnected {
		return
	}
	s.typing.NotifyLocalTyping()
}

func (s *Session) publishTyping() {
	m := types.Message{
		Sender:    s.user.Username,
		Type:      types.TypeTyping,
		Timestamp: types.Now(),
	}
	if err := s.conn.Publish(DestTyping, m); err != nil {
		log.Printf("[SESSION] Typing notification failed: %v", err)
	}
}

// OpenPrivateConversation opens (or returns) the conversation with peer and
// clears its unread counter. A newly created conversation fetches its
// history in the background; the fetch is canceled if the conversation
// closes first, and a late response is discarded.
func (s *Session) OpenPrivateConversation(peer string) (*Conversation, error) {
	if peer == "" || peer == s.user.Username {
		return nil, ErrSelfConversation
	}
	if s.ctx == nil || s.ctx.Err() != nil {
		return nil, ErrSessionClosed
	}

	conv, created := s.registry.Open(peer)
	if created {
		ctx, cancel := context.WithCancel(s.ctx)
		conv.cancelHistory = cancel
		go s.loadHistory(ctx, conv)
	}
	return conv, nil
}

func (s *Session) loadHistory(ctx context.Context, conv *Conversation) {
	history, err := s.rest.PrivateHistory(ctx, s.user.Username, conv.peer)
	if err != nil {
		// The conversation stays open with an empty transcript.
		log.Printf("[SESSION] %v", &HistoryFetchError{Peer: conv.peer, Err: err})
		return
	}
	if ctx.Err() != nil {
		return
	}
	if s.registry.Get(conv.peer) != conv {
		log.Printf("[SESSION] Discarding history for closed conversation with %s", conv.peer)
		return
	}
	conv.seedHistory(history)
	s.emit(Event{Kind: EventPrivateMessage, Peer: conv.peer})
}

// ClosePrivateConversation discards peer's conversation and deregisters its
// handler. Messages arriving afterward count as unread.
func (s *Session) ClosePrivateConversation(peer string) {
	s.registry.Close(peer)
}

// Presence returns the current online usernames.
func (s *Session) Presence() []string { return s.presence.Members() }

// Transcript returns a copy of the group transcript, in arrival order.
func (s *Session) Transcript() []types.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.Message, len(s.transcript))
	copy(out, s.transcript)
	return out
}

// TypingIndicator returns the peer currently typing in the group channel.
func (s *Session) TypingIndicator() string { return s.typing.Indicator() }

// Unread returns the unread counters of closed conversations.
func (s *Session) Unread() map[string]int { return s.registry.Unread() }

// State exposes the connection lifecycle state.
func (s *Session) State() ConnState { return s.conn.State() }

// User returns the identity the session runs under.
func (s *Session) User() *auth.User { return s.user }

// Close tears the session down: announce LEAVE best-effort, cancel every
// timer and pending fetch, deregister all subscriptions, drop the
// connection. Never fails; safe to call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		log.Printf("[SESSION] Closing session for %s", s.user.Username)
		if s.cancel != nil {
			s.cancel()
		}
		s.typing.Close()
		s.reconciler.Stop()
		s.registry.CloseAll()

		s.mu.Lock()
		groupSub, privateSub := s.groupSub, s.privateSub
		s.groupSub, s.privateSub = nil, nil
		s.mu.Unlock()
		if groupSub != nil {
			groupSub.Unsubscribe()
		}
		if privateSub != nil {
			privateSub.Unsubscribe()
		}

		leave := types.Message{
			Sender:    s.user.Username,
			Type:      types.TypeLeave,
			Color:     s.user.Color,
			Timestamp: types.Now(),
		}
		s.conn.Close(func(conn transport.Conn) {
			if err := conn.Publish(DestAnnounce, leave); err != nil {
				log.Printf("[SESSION] LEAVE announcement failed (ignored): %v", err)
			}
		})
	})
}

func (s *Session) appendToTranscript(m *types.Message) {
	if !s.dedup.Admit(m) {
		return
	}
	s.mu.Lock()
	s.transcript = append(s.transcript, *m)
	s.mu.Unlock()
}

func (s *Session) emit(e Event) {
	s.mu.RLock()
	handler := s.onEvent
	s.mu.RUnlock()
	if handler == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[SESSION] Event handler panicked: %v", rec)
		}
	}()
	handler(e)
}
