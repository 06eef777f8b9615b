package config

import (
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	APIURL          string
	BrokerURL       string
	Env             string
	ReconnectDelay  time.Duration
	TypingDebounce  time.Duration
	TypingExpiry    time.Duration
	PresenceRefresh time.Duration
}

func Load() *Config {
	log.Println("[CONFIG] Attempting to load .env file...")

	err := godotenv.Load()
	if err != nil {
		log.Println("[CONFIG] ℹ️ No .env file found, relying on system environment variables")
	} else {
		log.Println("[CONFIG] ✅ Successfully loaded .env file")
	}

	cfg := &Config{
		APIURL:          getEnv("API_URL", "http://localhost:8080"),
		BrokerURL:       getEnv("BROKER_URL", "ws://localhost:8080/ws"),
		Env:             getEnv("APP_ENV", "development"),
		ReconnectDelay:  getDuration("RECONNECT_DELAY", 5*time.Second),
		TypingDebounce:  getDuration("TYPING_DEBOUNCE", 250*time.Millisecond),
		TypingExpiry:    getDuration("TYPING_EXPIRY", 3*time.Second),
		PresenceRefresh: getDuration("PRESENCE_REFRESH", 30*time.Second),
	}

	log.Printf("[CONFIG] Environment: %s", cfg.Env)
	log.Printf("[CONFIG] API URL: %s", cfg.APIURL)
	log.Printf("[CONFIG] Broker URL: %s", cfg.BrokerURL)

	if cfg.BrokerURL == "" {
		log.Fatal("[CONFIG] ❌ CRITICAL: BROKER_URL is missing. Client cannot start.")
	}

	log.Println("[CONFIG] All configuration variables successfully initialized")
	return cfg
}

func getEnv(key, defaultValue string) string {
	value, exists := os.LookupEnv(key)
	if !exists {
		log.Printf("[CONFIG] ⚠️  Variable %s not found, using default: %s", key, defaultValue)
		return defaultValue
	}

	return value
}

func getDuration(key string, defaultValue time.Duration) time.Duration {
	value, exists := os.LookupEnv(key)
	if !exists {
		return defaultValue
	}

	d, err := time.ParseDuration(value)
	if err != nil {
		log.Printf("[CONFIG] ⚠️  Invalid duration for %s (%q), using default: %s", key, value, defaultValue)
		return defaultValue
	}
	return d
}
