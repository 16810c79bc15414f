package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	// Database
	DatabaseURL string

	// Redis
	RedisURL string

	// Kafka
	KafkaBrokers string
	KafkaTopic   string

	// API Configuration
	APIPort       string
	APIHost       string
	PublicBaseURL string
	CORSOrigins   []string

	// Proxies whose X-Forwarded-For is believed. Empty means the client
	// address is always the TCP peer.
	TrustedProxies []string

	// JWT (anti-forgery nonces and admin bearer tokens)
	JWTSecret string
	NonceTTL  time.Duration

	// Upstream catalog
	FakeStoreBaseURL string

	// Media storage for downloaded product images
	MediaDir string

	// Rate limiting for the on-demand endpoint
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Environment
	Env      string
	LogLevel string
}

func Load() (*Config, error) {
	// Load .env file
	godotenv.Load()

	cfg := &Config{
		DatabaseURL:       getEnv("DATABASE_URL", "sqlite://catalog.db"),
		RedisURL:          getEnv("REDIS_URL", "redis://localhost:6379/0"),
		KafkaBrokers:      getEnv("KAFKA_BROKERS", ""),
		KafkaTopic:        getEnv("KAFKA_TOPIC", "product-events"),
		APIPort:           getEnv("API_PORT", "8080"),
		APIHost:           getEnv("API_HOST", "0.0.0.0"),
		PublicBaseURL:     strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),
		CORSOrigins:       getEnvAsList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		TrustedProxies:    getEnvAsList("TRUSTED_PROXIES", nil),
		JWTSecret:         getEnv("JWT_SECRET", "your-jwt-secret-key-here"),
		NonceTTL:          getEnvAsDuration("NONCE_TTL", 12*time.Hour),
		FakeStoreBaseURL:  strings.TrimRight(getEnv("FAKESTORE_BASE_URL", "https://fakestoreapi.com"), "/"),
		MediaDir:          getEnv("MEDIA_DIR", "./media"),
		RateLimitRequests: getEnvAsInt("RATE_LIMIT_REQUESTS", 20),
		RateLimitWindow:   getEnvAsDuration("RATE_LIMIT_WINDOW", time.Minute),
		Env:               getEnv("ENV", "development"),
		LogLevel:          getEnv("LOG_LEVEL", "info"),
	}

	for _, proxy := range cfg.TrustedProxies {
		if !validProxy(proxy) {
			return nil, fmt.Errorf("invalid TRUSTED_PROXIES entry %q: want an IP or CIDR", proxy)
		}
	}

	return cfg, nil
}

func validProxy(s string) bool {
	if _, _, err := net.ParseCIDR(s); err == nil {
		return true
	}
	return net.ParseIP(s) != nil
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// KafkaBrokerList returns the configured brokers, or nil when publishing is disabled.
func (c *Config) KafkaBrokerList() []string {
	if strings.TrimSpace(c.KafkaBrokers) == "" {
		return nil
	}
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
