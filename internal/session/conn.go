package session

import (
	"context"
	"log"
	"sync"
	"time"

	"chat-client/internal/transport"
)

// ConnState is the connection manager's lifecycle state.
type ConnState int32

const (
	StateIdle ConnState = iota
	StateConnecting
	StateConnected
	StateReconnecting
	StateClosed
)

func (s ConnState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateConnecting:
		return "CONNECTING"
	case StateConnected:
		return "CONNECTED"
	case StateReconnecting:
		return "RECONNECTING"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// ConnManager owns the transport connection: connect, publish, and
// reconnect with a fixed delay. A chat session is long-lived, so there is
// no retry cap; reconnection runs until the session is explicitly closed.
//
// The manager interprets nothing: every successful connection is handed to
// onConnected (where the session subscribes and announces itself) and every
// drop to onDropped.
type ConnManager struct {
	dialer  transport.Dialer
	delay   time.Duration
	headers func() map[string]string

	onConnected func(conn transport.Conn)
	onDropped   func(err error)

	mu    sync.Mutex
	state ConnState
	conn  transport.Conn
	retry *time.Timer
	ctx   context.Context
}

func NewConnManager(dialer transport.Dialer, delay time.Duration, headers func() map[string]string) *ConnManager {
	return &ConnManager{
		dialer:  dialer,
		delay:   delay,
		headers: headers,
		state:   StateIdle,
	}
}

// OnConnected registers the hook run after every successful connection,
// including reconnects. Must be set before Connect.
func (m *ConnManager) OnConnected(fn func(conn transport.Conn)) { m.onConnected = fn }

// OnDropped registers the hook run when an established connection is lost.
func (m *ConnManager) OnDropped(fn func(err error)) { m.onDropped = fn }

// Connect starts the connection loop. Calling it on a non-idle manager is a
// no-op. ctx bounds individual dial attempts, not the session lifetime.
func (m *ConnManager) Connect(ctx context.Context) {
	m.mu.Lock()
	if m.state != StateIdle {
		m.mu.Unlock()
		return
	}
	m.state = StateConnecting
	m.ctx = ctx
	m.mu.Unlock()

	go m.attempt()
}

func (m *ConnManager) attempt() {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	ctx := m.ctx
	m.mu.Unlock()

	conn, err := m.dialer.Dial(ctx, m.headers())
	if err != nil {
		log.Printf("[CONN] Connect attempt failed: %v (retrying in %s)", err, m.delay)
		m.scheduleRetry()
		return
	}

	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		conn.Deactivate()
		return
	}
	m.state = StateConnected
	m.conn = conn
	m.mu.Unlock()

	conn.OnError(m.handleDrop)
	log.Println("[CONN] ✅ State: CONNECTED")

	if m.onConnected != nil {
		m.onConnected(conn)
	}
}

func (m *ConnManager) handleDrop(err error) {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	m.state = StateReconnecting
	m.conn = nil
	m.mu.Unlock()

	log.Printf("[CONN] State: RECONNECTING (%v)", err)
	if m.onDropped != nil {
		m.onDropped(err)
	}
	m.scheduleRetry()
}

func (m *ConnManager) scheduleRetry() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateClosed {
		return
	}
	m.state = StateReconnecting
	if m.retry != nil {
		m.retry.Stop()
	}
	m.retry = time.AfterFunc(m.delay, m.attempt)
}

// Publish sends body to destination over the live connection. Fails with
// ErrNotConnected in any state other than CONNECTED.
func (m *ConnManager) Publish(destination string, body any) error {
	m.mu.Lock()
	conn := m.conn
	connected := m.state == StateConnected
	m.mu.Unlock()

	if !connected || conn == nil {
		return ErrNotConnected
	}
	return conn.Publish(destination, body)
}

// State returns the current lifecycle state.
func (m *ConnManager) State() ConnState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Close tears the connection down for good. announce, when non-nil, runs
// against the live connection first (the session's best-effort LEAVE);
// its failures are swallowed. Close never fails and is idempotent.
func (m *ConnManager) Close(announce func(conn transport.Conn)) {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return
	}
	m.state = StateClosed
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		if announce != nil {
			func() {
				defer func() { recover() }()
				announce(conn)
			}()
		}
		conn.Deactivate()
	}
	log.Println("[CONN] State: CLOSED")
}
