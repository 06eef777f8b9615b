package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"chat-client/internal/types"
)

// Client wraps the collaborator REST endpoints: auth, presence lookup and
// private message history. Every call is a plain request/response round-trip;
// nothing here retries or caches.
type Client struct {
	baseURL string
	http    *http.Client
	token   func() string
}

// NewClient builds a REST client for the given API base URL. tokenFn supplies
// the current bearer token (may return empty before login).
func NewClient(baseURL string, tokenFn func() string) *Client {
	if tokenFn == nil {
		tokenFn = func() string { return "" }
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
		token:   tokenFn,
	}
}

func (c *Client) Login(ctx context.Context, username, password string) (*types.AuthResponse, error) {
	var resp types.AuthResponse
	err := c.doJSON(ctx, http.MethodPost, "/auth/login",
		types.LoginRequest{Username: username, Password: password}, &resp)
	if err != nil {
		return nil, fmt.Errorf("login failed: %w", err)
	}
	log.Printf("[REST] ✅ Logged in as %s", resp.User.Username)
	return &resp, nil
}

func (c *Client) Signup(ctx context.Context, username, email, password string) (*types.UserDTO, error) {
	var resp types.UserDTO
	err := c.doJSON(ctx, http.MethodPost, "/auth/signup",
		types.SignupRequest{Username: username, Email: email, Password: password}, &resp)
	if err != nil {
		return nil, fmt.Errorf("signup failed: %w", err)
	}
	return &resp, nil
}

// Logout is best-effort: the session is torn down locally regardless.
func (c *Client) Logout(ctx context.Context) {
	if err := c.doJSON(ctx, http.MethodPost, "/auth/logout", nil, nil); err != nil {
		log.Printf("[REST] Logout call failed (ignored): %v", err)
	}
}

// OnlineUsers fetches the authoritative presence list.
func (c *Client) OnlineUsers(ctx context.Context) ([]string, error) {
	var users []string
	if err := c.doJSON(ctx, http.MethodGet, "/api/users/online", nil, &users); err != nil {
		return nil, fmt.Errorf("online users fetch failed: %w", err)
	}
	return users, nil
}

// PrivateHistory fetches the ordered transcript exchanged between two users.
func (c *Client) PrivateHistory(ctx context.Context, user1, user2 string) ([]types.Message, error) {
	path := "/api/messages/private?user1=" + url.QueryEscape(user1) + "&user2=" + url.QueryEscape(user2)
	var history []types.Message
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &history); err != nil {
		return nil, fmt.Errorf("private history fetch failed: %w", err)
	}
	return history, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if token := c.token(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("unexpected status %d from %s: %s", resp.StatusCode, path, snippet)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
