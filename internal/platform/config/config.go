package config

import (
	"os"
	"strings"
	"time"
)

// RedisConfig captures connection settings for the policy cache.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// Config captures everything main needs to wire the engine. Empty backend
// URLs mean "use the in-memory/deterministic implementation", so a bare
// `go run ./cmd/server` works without infrastructure.
type Config struct {
	Addr                string
	PostgresURL         string
	Redis               RedisConfig
	KafkaBrokers        []string
	AuditTopic          string
	ExtractorURL        string
	LivenessURL         string
	JWTSigningKey       string
	CollaboratorTimeout time.Duration
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	addr := os.Getenv("BIOMATCH_ADDR")
	if addr == "" {
		addr = ":8080"
	}

	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	collaboratorTimeout := 5 * time.Second
	if raw := os.Getenv("BIOMATCH_COLLABORATOR_TIMEOUT"); raw != "" {
		if parsed, err := time.ParseDuration(raw); err == nil {
			collaboratorTimeout = parsed
		}
	}

	var brokers []string
	if raw := os.Getenv("BIOMATCH_KAFKA_BROKERS"); raw != "" {
		for _, b := range strings.Split(raw, ",") {
			if b = strings.TrimSpace(b); b != "" {
				brokers = append(brokers, b)
			}
		}
	}

	return Config{
		Addr:        addr,
		PostgresURL: os.Getenv("BIOMATCH_POSTGRES_URL"),
		Redis: RedisConfig{
			URL:          os.Getenv("BIOMATCH_REDIS_URL"),
			PoolSize:     10,
			MinIdleConns: 2,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		KafkaBrokers:        brokers,
		AuditTopic:          os.Getenv("BIOMATCH_AUDIT_TOPIC"),
		ExtractorURL:        os.Getenv("BIOMATCH_EXTRACTOR_URL"),
		LivenessURL:         os.Getenv("BIOMATCH_LIVENESS_URL"),
		JWTSigningKey:       jwtSigningKey,
		CollaboratorTimeout: collaboratorTimeout,
	}
}
