// Package config reads the core's environment-driven runtime settings
// (spec.md §6.6), following reasoning-graph/internal/config's
// getEnv/getBool/getInt/getDuration shape.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config captures runtime settings for the morphing core.
type Config struct {
	Addr         string
	DatabaseURL  string
	SignerKeyB64 string
	SignerID     string

	EnableCache           bool
	MinFidelityScore      float64
	AutoPersist           bool
	PBKDF2Iterations      int
	EventBusMaxHistory    int
	AdapterHealthInterval time.Duration

	GossipFanout     int
	GossipMaxRetries int
	GossipMessageTTL int
	GossipMaxAge     time.Duration

	S3Bucket string
	S3Prefix string

	AllowDebugToken bool
	DebugToken      string
	JWTSecret       string
}

const (
	defaultAddr                  = ":8051"
	defaultMinFidelityScore      = 0.0
	defaultPBKDF2Iterations      = 100_000
	defaultEventBusMaxHistory    = 1000
	defaultAdapterHealthInterval = 30 * time.Second
	defaultGossipFanout          = 3
	defaultGossipMaxRetries      = 3
	defaultGossipMessageTTL      = 10
	defaultGossipMaxAge          = 5 * time.Minute
)

// Load reads environment variables and returns a Config. DatabaseURL and
// SignerKeyB64 are required only when the caller actually wires a
// PGStore / local signer from them; Load itself does not fail on their
// absence so in-memory-only deployments (tests, the loopback gossip
// transport) can run without a database or KMS configured.
func Load() (Config, error) {
	cfg := Config{
		Addr:         getEnv("CHRYSALIS_ADDR", defaultAddr),
		DatabaseURL:  firstNonEmpty(os.Getenv("CHRYSALIS_DATABASE_URL"), os.Getenv("DATABASE_URL")),
		SignerKeyB64: os.Getenv("CHRYSALIS_SIGNER_KEY_B64"),
		SignerID:     getEnv("CHRYSALIS_SIGNER_ID", "chrysalis-core-dev"),

		EnableCache:           getBool("CHRYSALIS_ENABLE_CACHE", true),
		MinFidelityScore:      getFloat("CHRYSALIS_MIN_FIDELITY_SCORE", defaultMinFidelityScore),
		AutoPersist:           getBool("CHRYSALIS_AUTO_PERSIST", false),
		PBKDF2Iterations:      getInt("CHRYSALIS_PBKDF2_ITERATIONS", defaultPBKDF2Iterations),
		EventBusMaxHistory:    getInt("CHRYSALIS_EVENT_BUS_MAX_HISTORY", defaultEventBusMaxHistory),
		AdapterHealthInterval: getDuration("CHRYSALIS_ADAPTER_HEALTH_CHECK_INTERVAL", defaultAdapterHealthInterval),

		GossipFanout:     getInt("CHRYSALIS_GOSSIP_FANOUT", defaultGossipFanout),
		GossipMaxRetries: getInt("CHRYSALIS_GOSSIP_MAX_RETRIES", defaultGossipMaxRetries),
		GossipMessageTTL: getInt("CHRYSALIS_GOSSIP_MESSAGE_TTL", defaultGossipMessageTTL),
		GossipMaxAge:     getDuration("CHRYSALIS_GOSSIP_MAX_AGE", defaultGossipMaxAge),

		S3Bucket: os.Getenv("CHRYSALIS_S3_BUCKET"),
		S3Prefix: getEnv("CHRYSALIS_S3_PREFIX", "snapshots"),

		AllowDebugToken: getBool("CHRYSALIS_ALLOW_DEBUG_TOKEN", true),
		DebugToken:      os.Getenv("CHRYSALIS_DEBUG_TOKEN"),
		JWTSecret:       os.Getenv("CHRYSALIS_JWT_SECRET"),
	}

	if cfg.PBKDF2Iterations < 100_000 {
		return Config{}, fmt.Errorf("CHRYSALIS_PBKDF2_ITERATIONS must be >= 100000, got %d", cfg.PBKDF2Iterations)
	}
	if cfg.MinFidelityScore < 0 || cfg.MinFidelityScore > 1 {
		return Config{}, fmt.Errorf("CHRYSALIS_MIN_FIDELITY_SCORE must be in [0,1], got %f", cfg.MinFidelityScore)
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		ok, err := strconv.ParseBool(v)
		if err == nil {
			return ok
		}
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil && i > 0 {
			return i
		}
	}
	return fallback
}

func getFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
