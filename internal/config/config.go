package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	TokenStoreMemory = "memory"
	TokenStoreFile   = "file"
	TokenStoreRedis  = "redis"
)

type Config struct {
	AppEnv string

	APIBaseURL string
	SocketURL  string
	AuthHeader string

	// Token persistence
	TokenStore string
	TokenFile  string
	TokenKey   string
	RedisURL   string

	// 0 disables the per-request timeout.
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration

	RealtimeEnabled bool

	LogLevel  string
	LogFormat string

	// Tracing
	TracingEnabled bool
	OTLPEndpoint   string
	ServiceName    string
	ServiceVersion string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	cfg.AppEnv = getEnv("APP_ENV", "dev")

	cfg.APIBaseURL = strings.TrimRight(getEnv("API_BASE_URL", "http://localhost:8080"), "/")
	cfg.SocketURL = strings.TrimRight(getEnv("SOCKET_URL", cfg.APIBaseURL), "/")
	cfg.AuthHeader = getEnv("AUTH_HEADER", "Authorization")

	cfg.TokenStore = strings.ToLower(getEnv("TOKEN_STORE", TokenStoreFile))
	cfg.TokenFile = getEnv("TOKEN_FILE", defaultTokenFile())
	cfg.TokenKey = getEnv("TOKEN_KEY", "drsfbuadcjk")
	cfg.RedisURL = getEnv("REDIS_URL", "")

	cfg.HTTPReadTimeout = getDuration("HTTP_READ_TIMEOUT", 0)
	cfg.HTTPWriteTimeout = getDuration("HTTP_WRITE_TIMEOUT", 0)

	cfg.RealtimeEnabled = getBool("REALTIME_ENABLED", true)

	cfg.LogLevel = getEnv("LOG_LEVEL", "info")
	cfg.LogFormat = getEnv("LOG_FORMAT", "console")

	cfg.TracingEnabled = getBool("TRACING_ENABLED", false)
	cfg.OTLPEndpoint = getEnv("OTLP_ENDPOINT", "")
	cfg.ServiceName = getEnv("SERVICE_NAME", "rsvp-client")
	cfg.ServiceVersion = getEnv("SERVICE_VERSION", "dev")

	// validation
	if !strings.HasPrefix(cfg.APIBaseURL, "http://") && !strings.HasPrefix(cfg.APIBaseURL, "https://") {
		return nil, fmt.Errorf("API_BASE_URL must be an http(s) URL, got %q", cfg.APIBaseURL)
	}
	switch cfg.TokenStore {
	case TokenStoreMemory, TokenStoreFile:
	case TokenStoreRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("missing REDIS_URL (required when TOKEN_STORE=redis)")
		}
	default:
		return nil, fmt.Errorf("unknown TOKEN_STORE %q", cfg.TokenStore)
	}
	if cfg.TokenStore == TokenStoreFile && cfg.TokenFile == "" {
		return nil, fmt.Errorf("missing TOKEN_FILE")
	}
	if cfg.TracingEnabled && cfg.OTLPEndpoint == "" {
		return nil, fmt.Errorf("missing OTLP_ENDPOINT (required when TRACING_ENABLED=true)")
	}

	return cfg, nil
}

func defaultTokenFile() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ".rsvp-token"
	}
	return filepath.Join(dir, "rsvp-client", "token")
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

func getBool(key string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
