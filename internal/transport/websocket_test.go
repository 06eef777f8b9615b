package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// echoBroker upgrades each connection and relays every frame straight back,
// which is exactly what a topic subscriber sees for its own publishes.
func echoBroker(t *testing.T, onConnect func(r *http.Request)) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if onConnect != nil {
			onConnect(r)
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			mt, msg, err := conn.ReadMessage()
			if err != nil {
				return
			}
			if err := conn.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	srv := echoBroker(t, nil)
	dialer := &WebsocketDialer{URL: wsURL(srv)}

	conn, err := dialer.Dial(context.Background(), nil)
	require.NoError(t, err)
	defer conn.Deactivate()

	received := make(chan []byte, 1)
	conn.Subscribe("/topic/group", func(body []byte) { received <- body })

	require.NoError(t, conn.Publish("/topic/group", map[string]string{"sender": "alice", "content": "hi"}))

	select {
	case body := <-received:
		var decoded map[string]string
		require.NoError(t, json.Unmarshal(body, &decoded))
		assert.Equal(t, "alice", decoded["sender"])
		assert.Equal(t, "hi", decoded["content"])
	case <-time.After(2 * time.Second):
		t.Fatal("frame never delivered")
	}
}

func TestFramesRoutedByDestination(t *testing.T) {
	srv := echoBroker(t, nil)
	dialer := &WebsocketDialer{URL: wsURL(srv)}

	conn, err := dialer.Dial(context.Background(), nil)
	require.NoError(t, err)
	defer conn.Deactivate()

	group := make(chan []byte, 1)
	private := make(chan []byte, 1)
	conn.Subscribe("/topic/group", func(body []byte) { group <- body })
	conn.Subscribe("/user/alice/queue/private", func(body []byte) { private <- body })

	require.NoError(t, conn.Publish("/user/alice/queue/private", map[string]string{"sender": "bob"}))

	select {
	case <-private:
	case <-time.After(2 * time.Second):
		t.Fatal("private frame never delivered")
	}
	select {
	case <-group:
		t.Fatal("frame leaked to the wrong destination")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestUnsubscribeStopsDelivery(t *testing.T) {
	srv := echoBroker(t, nil)
	dialer := &WebsocketDialer{URL: wsURL(srv)}

	conn, err := dialer.Dial(context.Background(), nil)
	require.NoError(t, err)
	defer conn.Deactivate()

	received := make(chan []byte, 1)
	sub := conn.Subscribe("/topic/group", func(body []byte) { received <- body })
	sub.Unsubscribe()
	sub.Unsubscribe() // harmless twice

	require.NoError(t, conn.Publish("/topic/group", map[string]string{"sender": "alice"}))

	select {
	case <-received:
		t.Fatal("frame delivered after unsubscribe")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestConnectHeadersArePassed(t *testing.T) {
	var username string
	srv := echoBroker(t, func(r *http.Request) { username = r.Header.Get("username") })
	dialer := &WebsocketDialer{URL: wsURL(srv)}

	conn, err := dialer.Dial(context.Background(), map[string]string{"username": "alice"})
	require.NoError(t, err)
	defer conn.Deactivate()

	assert.Equal(t, "alice", username)
}

func TestOnErrorFiresWhenBrokerDies(t *testing.T) {
	srv := echoBroker(t, nil)
	dialer := &WebsocketDialer{URL: wsURL(srv)}

	conn, err := dialer.Dial(context.Background(), nil)
	require.NoError(t, err)

	failed := make(chan error, 1)
	conn.OnError(func(err error) { failed <- err })

	srv.CloseClientConnections()

	select {
	case err := <-failed:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("error handler never fired")
	}
}

func TestOnErrorAfterConnectionAlreadyDied(t *testing.T) {
	// The broker drops the socket immediately after the handshake, before
	// the caller registers its error handler. The failure must still be
	// reported rather than silently swallowed.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	t.Cleanup(srv.Close)
	dialer := &WebsocketDialer{URL: wsURL(srv)}

	conn, err := dialer.Dial(context.Background(), nil)
	require.NoError(t, err)

	// Wait until the read pump has observed the close.
	require.Eventually(t, func() bool {
		return errors.Is(conn.Publish("/topic/group", map[string]string{}), ErrClosed)
	}, 2*time.Second, 10*time.Millisecond)

	failed := make(chan error, 1)
	conn.OnError(func(err error) { failed <- err })

	select {
	case err := <-failed:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("late-registered error handler never fired")
	}
}

func TestPublishAfterDeactivate(t *testing.T) {
	srv := echoBroker(t, nil)
	dialer := &WebsocketDialer{URL: wsURL(srv)}

	conn, err := dialer.Dial(context.Background(), nil)
	require.NoError(t, err)

	conn.Deactivate()
	conn.Deactivate() // idempotent

	err = conn.Publish("/topic/group", map[string]string{"sender": "alice"})
	assert.True(t, errors.Is(err, ErrClosed), "publish after deactivate should report a closed transport")
}

func TestDialFailure(t *testing.T) {
	dialer := &WebsocketDialer{URL: "ws://127.0.0.1:1/ws"}

	_, err := dialer.Dial(context.Background(), nil)
	require.Error(t, err)

	var terr *Error
	assert.True(t, errors.As(err, &terr))
	assert.Equal(t, "dial", terr.Op)
}
