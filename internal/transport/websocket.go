package transport

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 10 * time.Second
	readLimit  = 4096
)

// WebsocketDialer dials the broker's websocket endpoint.
type WebsocketDialer struct {
	URL string
}

func (d *WebsocketDialer) Dial(ctx context.Context, headers map[string]string) (Conn, error) {
	h := http.Header{}
	for k, v := range headers {
		h.Set(k, v)
	}

	log.Printf("[TRANSPORT] Dialing broker at %s...", d.URL)
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, d.URL, h)
	if err != nil {
		return nil, &Error{Op: "dial", Err: err}
	}
	log.Println("[TRANSPORT] ✅ Broker connection established")

	c := &wsConn{
		ws:   ws,
		send: make(chan []byte, 256),
		subs: make(map[string]*wsSub),
		done: make(chan struct{}),
	}

	go c.writePump()
	go c.readPump()
	return c, nil
}

type wsConn struct {
	ws   *websocket.Conn
	send chan []byte

	mu      sync.RWMutex
	subs    map[string]*wsSub
	onError func(error)
	closed  bool
	failure error

	done chan struct{}
	once sync.Once
}

type wsSub struct {
	conn        *wsConn
	destination string
	onFrame     func(body []byte)
}

func (s *wsSub) Unsubscribe() {
	s.conn.mu.Lock()
	defer s.conn.mu.Unlock()
	if current, ok := s.conn.subs[s.destination]; ok && current == s {
		delete(s.conn.subs, s.destination)
	}
}

func (c *wsConn) Subscribe(destination string, onFrame func(body []byte)) Subscription {
	sub := &wsSub{conn: c, destination: destination, onFrame: onFrame}
	c.mu.Lock()
	c.subs[destination] = sub
	c.mu.Unlock()
	return sub
}

func (c *wsConn) Publish(destination string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &Error{Op: "publish", Err: err}
	}
	frame, err := json.Marshal(Frame{Destination: destination, Body: payload})
	if err != nil {
		return &Error{Op: "publish", Err: err}
	}

	c.mu.RLock()
	closed := c.closed
	c.mu.RUnlock()
	if closed {
		return &Error{Op: "publish", Err: ErrClosed}
	}

	select {
	case c.send <- frame:
		return nil
	case <-c.done:
		return &Error{Op: "publish", Err: ErrClosed}
	}
}

// OnError registers the failure handler. A connection that already died
// before registration reports that failure immediately, so a drop in the
// window between Dial returning and OnError being wired is never lost.
func (c *wsConn) OnError(handler func(error)) {
	c.mu.Lock()
	c.onError = handler
	err := c.failure
	c.mu.Unlock()

	if err != nil && handler != nil {
		go handler(err)
	}
}

func (c *wsConn) Deactivate() {
	c.teardown(nil)
}

// teardown closes exactly once. err == nil means a local, deliberate close;
// the error handler only fires for failures the peer or network caused.
func (c *wsConn) teardown(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.failure = err
		handler := c.onError
		c.mu.Unlock()

		close(c.done)

		// WriteControl is safe alongside the write pump.
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(writeWait))
		c.ws.Close()

		if err != nil {
			log.Printf("[TRANSPORT] Connection lost: %v", err)
			if handler != nil {
				handler(err)
			}
		} else {
			log.Println("[TRANSPORT] Connection deactivated")
		}
	})
}

func (c *wsConn) readPump() {
	defer c.teardown(&Error{Op: "read", Err: ErrClosed})

	c.ws.SetReadLimit(readLimit)
	c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		c.ws.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[TRANSPORT] Unexpected close: %v", err)
			}
			c.teardown(&Error{Op: "read", Err: err})
			return
		}

		frame := &Frame{}
		if err := json.Unmarshal(raw, frame); err != nil {
			log.Printf("[TRANSPORT] Dropping malformed frame: %v", err)
			continue
		}

		c.mu.RLock()
		sub := c.subs[frame.Destination]
		c.mu.RUnlock()
		if sub != nil && sub.onFrame != nil {
			sub.onFrame(frame.Body)
		}
	}
}

func (c *wsConn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.TextMessage, frame); err != nil {
				c.teardown(&Error{Op: "write", Err: err})
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.teardown(&Error{Op: "write", Err: err})
				return
			}

		case <-c.done:
			return
		}
	}
}
