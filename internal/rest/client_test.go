package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"chat-client/internal/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/auth/login", r.URL.Path)

		var req types.LoginRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "alice", req.Username)

		json.NewEncoder(w).Encode(types.AuthResponse{
			Token: "tok-123",
			User:  types.UserDTO{Username: "alice"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	resp, err := c.Login(context.Background(), "alice", "secret")
	require.NoError(t, err)
	assert.Equal(t, "tok-123", resp.Token)
	assert.Equal(t, "alice", resp.User.Username)
}

func TestLoginRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestOnlineUsersSendsBearerToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/users/online", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		json.NewEncoder(w).Encode([]string{"alice", "bob"})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, func() string { return "tok-123" })
	users, err := c.OnlineUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"alice", "bob"}, users)
}

func TestPrivateHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/messages/private", r.URL.Path)
		assert.Equal(t, "alice", r.URL.Query().Get("user1"))
		assert.Equal(t, "bob smith", r.URL.Query().Get("user2"))
		json.NewEncoder(w).Encode([]types.Message{
			{Sender: "bob smith", Recipient: "alice", Content: "hi", Type: types.TypePrivate, Timestamp: "t1"},
		})
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	history, err := c.PrivateHistory(context.Background(), "alice", "bob smith")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "hi", history[0].Content)
}

func TestPrivateHistoryFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	_, err := c.PrivateHistory(context.Background(), "alice", "bob")
	assert.Error(t, err)
}

func TestLogoutSwallowsFailure(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", nil)
	assert.NotPanics(t, func() { c.Logout(context.Background()) })
}
