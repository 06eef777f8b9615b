package auth

import (
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// User is the identity a session runs under.
type User struct {
	Username string
	Color    string
}

var colorPalette = []string{
	"#FF5733", "#33FF57", "#3357FF", "#F3FF33", "#FF33F6", "#BB8FCE", "#DDA00D",
}

// RandomColor picks a display color for a freshly logged-in user.
func RandomColor() string {
	return colorPalette[rand.Intn(len(colorPalette))]
}

// Store holds the authenticated identity and its bearer token for the
// lifetime of one client process.
type Store struct {
	mu    sync.RWMutex
	user  *User
	token string
}

func NewStore() *Store {
	return &Store{}
}

// SetSession records the identity after a successful login. The user keeps
// the same display color until logout.
func (s *Store) SetSession(username, token string) *User {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.user = &User{Username: username, Color: RandomColor()}
	s.token = token
	log.Printf("[AUTH] Session established for %s", username)
	return s.user
}

// CurrentUser returns the logged-in identity, or nil when unauthenticated.
func (s *Store) CurrentUser() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// IsAuthenticated reports whether a usable identity is present: a user must
// be set and the stored token, if it carries an expiry claim, must not have
// expired yet.
func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return false
	}
	if s.token == "" {
		return true
	}
	return checkTokenExpiry(s.token) == nil
}

// Clear drops the identity on logout.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = nil
	s.token = ""
	log.Println("[AUTH] Session cleared")
}

// checkTokenExpiry inspects the token's registered claims without verifying
// the signature: the client does not hold the server's signing key, it only
// wants to avoid connecting with a token the server will reject anyway.
func checkTokenExpiry(tokenString string) error {
	parser := jwt.NewParser()
	claims := &jwt.RegisteredClaims{}

	_, _, err := parser.ParseUnverified(tokenString, claims)
	if err != nil {
		log.Printf("[AUTH] Token parse failed: %v", err)
		return err
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Before(time.Now()) {
		log.Printf("[AUTH] Token expired at %s", claims.ExpiresAt.Format(time.RFC3339))
		return errors.New("token expired")
	}
	return nil
}
