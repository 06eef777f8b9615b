package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"chat-client/internal/transport"
	"chat-client/internal/types"
)

// fakeConn is an in-memory transport.Conn: published frames are recorded,
// inbound frames are injected by the test.
type fakeConn struct {
	mu        sync.Mutex
	subs      map[string]func([]byte)
	published map[string][]json.RawMessage
	onError   func(error)
	closed    bool
	failure   error
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		subs:      make(map[string]func([]byte)),
		published: make(map[string][]json.RawMessage),
	}
}

type fakeSub struct {
	conn        *fakeConn
	destination string
}

func (s *fakeSub) Unsubscribe() {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	delete(s.conn.subs, s.destination)
}

func (c *fakeConn) Subscribe(destination string, onFrame func(body []byte)) transport.Subscription {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[destination] = onFrame
	return &fakeSub{conn: c, destination: destination}
}

func (c *fakeConn) Publish(destination string, body any) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return &transport.Error{Op: "publish", Err: transport.ErrClosed}
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	c.published[destination] = append(c.published[destination], payload)
	return nil
}

// OnError matches the transport contract: a failure that happened before
// registration is reported immediately.
func (c *fakeConn) OnError(handler func(error)) {
	c.mu.Lock()
	c.onError = handler
	err := c.failure
	c.mu.Unlock()

	if err != nil && handler != nil {
		go handler(err)
	}
}

func (c *fakeConn) Deactivate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// inject delivers a frame to the subscriber of destination, like the broker
// relaying to a topic.
func (c *fakeConn) inject(destination string, m types.Message) {
	payload, _ := json.Marshal(m)
	c.mu.Lock()
	handler := c.subs[destination]
	c.mu.Unlock()
	if handler != nil {
		handler(payload)
	}
}

// sent decodes everything published to destination.
func (c *fakeConn) sent(destination string) []types.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]types.Message, 0, len(c.published[destination]))
	for _, raw := range c.published[destination] {
		var m types.Message
		if json.Unmarshal(raw, &m) == nil {
			out = append(out, m)
		}
	}
	return out
}

// fail simulates the transport dying underneath the session.
func (c *fakeConn) fail(err error) {
	c.mu.Lock()
	c.closed = true
	c.failure = err
	handler := c.onError
	c.mu.Unlock()
	if handler != nil {
		handler(err)
	}
}

// fakeDialer hands out fakeConns, optionally failing the first dials.
type fakeDialer struct {
	mu           sync.Mutex
	failuresLeft int
	conns        []*fakeConn
	lastHeaders  map[string]string
}

func (d *fakeDialer) Dial(_ context.Context, headers map[string]string) (transport.Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.lastHeaders = headers
	if d.failuresLeft > 0 {
		d.failuresLeft--
		return nil, &transport.Error{Op: "dial", Err: errors.New("broker unreachable")}
	}
	conn := newFakeConn()
	d.conns = append(d.conns, conn)
	return conn, nil
}

func (d *fakeDialer) dialCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.conns)
}

func (d *fakeDialer) conn(i int) *fakeConn {
	d.mu.Lock()
	defer d.mu.Unlock()
	if i >= len(d.conns) {
		return nil
	}
	return d.conns[i]
}
