// Package config loads service configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// ServiceConfig holds service identity and network settings.
type ServiceConfig struct {
	Principal   string
	HTTPPort    string
	MetricsPort string
}

// EngineConfig holds the streaming engine provider and its parameters.
// The streaming parameters are captured into each session's configuration
// at start time; changing them at runtime never affects existing sessions.
type EngineConfig struct {
	Provider      string // mock | google
	SampleRateHz  int
	ChunkSizeSec  float64
	UnfixedChunks int
	UnfixedTokens int
	LanguageCode  string
}

// SessionConfig holds session registry settings.
type SessionConfig struct {
	TTL time.Duration
	// SweepInterval enables a periodic background sweep in addition to the
	// opportunistic sweep on every registry access. 0 disables it.
	SweepInterval time.Duration
}

// KafkaConfig holds transcript event publishing settings.
type KafkaConfig struct {
	Enabled      bool
	Brokers      []string
	TopicPartial string
	TopicFinal   string
}

// ObservabilityConfig holds logging settings.
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json | console
}

// Config is the root configuration for the service.
type Config struct {
	Service       ServiceConfig
	Engine        EngineConfig
	Session       SessionConfig
	Kafka         KafkaConfig
	Observability ObservabilityConfig
}

// Load reads configuration from environment variables, falling back to
// defaults for anything unset.
func Load() *Config {
	return &Config{
		Service: ServiceConfig{
			Principal:   envOrDefault("SERVICE_PRINCIPAL", "svc-speech-gateway"),
			HTTPPort:    envOrDefault("HTTP_PORT", "8080"),
			MetricsPort: envOrDefault("METRICS_PORT", "9090"),
		},
		Engine: EngineConfig{
			Provider:      envOrDefault("ENGINE_PROVIDER", "mock"),
			SampleRateHz:  envInt("ENGINE_SAMPLE_RATE_HZ", 16000),
			ChunkSizeSec:  envFloat("ENGINE_CHUNK_SIZE_SEC", 2.0),
			UnfixedChunks: envInt("ENGINE_UNFIXED_CHUNKS", 2),
			UnfixedTokens: envInt("ENGINE_UNFIXED_TOKENS", 5),
			LanguageCode:  envOrDefault("ENGINE_LANGUAGE_CODE", "en-US"),
		},
		Session: SessionConfig{
			TTL:           envDuration("SESSION_TTL", 10*time.Minute),
			SweepInterval: envDuration("SESSION_SWEEP_INTERVAL", 0),
		},
		Kafka: KafkaConfig{
			Enabled:      envBool("KAFKA_ENABLED", false),
			Brokers:      envList("KAFKA_BROKERS", nil),
			TopicPartial: envOrDefault("KAFKA_TOPIC_PARTIAL", "session.transcript.partial"),
			TopicFinal:   envOrDefault("KAFKA_TOPIC_FINAL", "session.transcript.final"),
		},
		Observability: ObservabilityConfig{
			LogLevel:  envOrDefault("LOG_LEVEL", "info"),
			LogFormat: envOrDefault("LOG_FORMAT", "json"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envList(key string, def []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
