package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	HTTPPort  string
	HTTPSPort string
	Domain    string
	LogLevel  string

	// HTTPOnly disables TLS and serves the API behind a fronting proxy.
	HTTPOnly  bool
	ClientURL string // base URL meeting links are built against

	// Hosted platform project credentials.
	VonageAPIKey    string
	VonageAPISecret string
	TokenTTL        time.Duration

	DBPath string

	// PushEnabled turns on web push meeting announcements. VAPIDSubject
	// is the contact URI push services may use.
	PushEnabled  bool
	VAPIDSubject string

	// Self-hosted relay mode.
	RelayEnabled bool
	TURNPort     int
	TURNRealm    string
	RedisURL     string
}

func Load(httpOnly *bool) *Config {
	cfg := &Config{
		HTTPPort:        getEnv("HTTP_PORT", "80"),
		HTTPSPort:       getEnv("HTTPS_PORT", "443"),
		Domain:          getEnv("DOMAIN", ""),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		ClientURL:       getEnv("CLIENT_URL", "http://localhost:3000"),
		VonageAPIKey:    getEnv("VONAGE_API_KEY", ""),
		VonageAPISecret: getEnv("VONAGE_API_SECRET", ""),
		TokenTTL:        getEnvDuration("TOKEN_TTL", 24*time.Hour),
		DBPath:          getEnv("DB_PATH", "meetings.db"),
		PushEnabled:     getEnvBool("PUSH_ENABLED", false),
		VAPIDSubject:    getEnv("VAPID_SUBJECT", "mailto:admin@localhost"),
		RelayEnabled:    getEnvBool("RELAY_ENABLED", false),
		TURNPort:        getEnvInt("TURN_PORT", 3478),
		TURNRealm:       getEnv("TURN_REALM", "vroom"),
		RedisURL:        getEnv("REDIS_URL", ""),
	}

	if httpOnly != nil && *httpOnly {
		cfg.HTTPOnly = true
		cfg.HTTPPort = getEnv("HTTP_PORT", "5001")
	}

	return cfg
}

// UsesHostedPlatform reports whether project credentials for the hosted
// platform are configured. Without them only the relay mode works.
func (c *Config) UsesHostedPlatform() bool {
	return c.VonageAPIKey != "" && c.VonageAPISecret != ""
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(value); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
