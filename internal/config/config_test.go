package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestGetEnvDefault(t *testing.T) {
	assert.Equal(t, "fallback", getEnv("CHAT_CLIENT_UNSET_VAR", "fallback"))

	t.Setenv("CHAT_CLIENT_SET_VAR", "value")
	assert.Equal(t, "value", getEnv("CHAT_CLIENT_SET_VAR", "fallback"))
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, getDuration("CHAT_CLIENT_UNSET_DURATION", 5*time.Second))

	t.Setenv("CHAT_CLIENT_DURATION", "250ms")
	assert.Equal(t, 250*time.Millisecond, getDuration("CHAT_CLIENT_DURATION", 5*time.Second))

	t.Setenv("CHAT_CLIENT_BAD_DURATION", "soon")
	assert.Equal(t, time.Second, getDuration("CHAT_CLIENT_BAD_DURATION", time.Second))
}

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 5*time.Second, cfg.ReconnectDelay)
	assert.Equal(t, 250*time.Millisecond, cfg.TypingDebounce)
	assert.Equal(t, 3*time.Second, cfg.TypingExpiry)
	assert.Equal(t, 30*time.Second, cfg.PresenceRefresh)
	assert.NotEmpty(t, cfg.BrokerURL)
}
