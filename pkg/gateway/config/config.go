// Package config loads the relay configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Environment selects runtime behavior such as error-detail verbosity.
type Environment string

const (
	EnvDevelopment Environment = "development"
	EnvProduction  Environment = "production"
)

type Config struct {
	Addr        string
	Environment Environment

	// Capability provider credentials. All three primary keys are required
	// for readiness; the relay starts degraded without them and reports the
	// gap via /health.
	DeepgramAPIKey   string
	GeminiAPIKey     string
	ElevenLabsAPIKey string
	CartesiaAPIKey   string // optional alternate synthesis provider

	// CORS origin allow-list (empty => cross-origin disabled).
	AllowedOrigins map[string]struct{}

	// Turn admission.
	MaxAudioBytes int64

	// Session lifetime.
	SessionTimeout time.Duration
	SweepInterval  time.Duration

	// Per-client request limits.
	LimitRPS   float64
	LimitBurst int

	// Operational defaults.
	ReadHeaderTimeout   time.Duration
	ReadTimeout         time.Duration
	ShutdownGracePeriod time.Duration
}

// LoadFromEnv builds a Config from environment variables, applying defaults
// and validating the result.
func LoadFromEnv() (Config, error) {
	cfg := Config{
		Addr:                ":" + envOr("PORT", "3001"),
		Environment:         Environment(envOr("APP_ENV", string(EnvDevelopment))),
		DeepgramAPIKey:      strings.TrimSpace(os.Getenv("DEEPGRAM_API_KEY")),
		GeminiAPIKey:        strings.TrimSpace(os.Getenv("GOOGLE_GEMINI_API_KEY")),
		ElevenLabsAPIKey:    strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY")),
		CartesiaAPIKey:      strings.TrimSpace(os.Getenv("CARTESIA_API_KEY")),
		AllowedOrigins:      make(map[string]struct{}),
		MaxAudioBytes:       envInt64Or("RELAY_MAX_AUDIO_BYTES", 25<<20), // 25 MiB
		SessionTimeout:      envDurationOr("RELAY_SESSION_TIMEOUT", 30*time.Minute),
		SweepInterval:       envDurationOr("RELAY_SWEEP_INTERVAL", 5*time.Minute),
		LimitRPS:            envFloat64Or("RELAY_RATE_LIMIT_RPS", 0.12), // ~100 requests / 15 min
		LimitBurst:          envIntOr("RELAY_RATE_LIMIT_BURST", 10),
		ReadHeaderTimeout:   envDurationOr("RELAY_READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:         envDurationOr("RELAY_READ_TIMEOUT", 60*time.Second),
		ShutdownGracePeriod: envDurationOr("RELAY_SHUTDOWN_GRACE_PERIOD", 30*time.Second),
	}

	switch cfg.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		return Config{}, fmt.Errorf("APP_ENV must be one of development|production")
	}

	origins := splitCSV(os.Getenv("FRONTEND_ORIGINS"))
	if len(origins) == 0 && cfg.Environment == EnvDevelopment {
		origins = []string{"http://localhost:5173", "http://localhost:3000"}
	}
	for _, origin := range origins {
		cfg.AllowedOrigins[origin] = struct{}{}
	}

	if cfg.MaxAudioBytes <= 0 {
		return Config{}, fmt.Errorf("RELAY_MAX_AUDIO_BYTES must be > 0")
	}
	if cfg.SessionTimeout <= 0 {
		return Config{}, fmt.Errorf("RELAY_SESSION_TIMEOUT must be > 0")
	}
	if cfg.SweepInterval <= 0 {
		return Config{}, fmt.Errorf("RELAY_SWEEP_INTERVAL must be > 0")
	}
	if cfg.LimitRPS < 0 || cfg.LimitBurst < 0 {
		return Config{}, fmt.Errorf("rate limit settings must be >= 0")
	}
	if cfg.ReadHeaderTimeout <= 0 || cfg.ReadTimeout <= 0 {
		return Config{}, fmt.Errorf("timeouts must be > 0")
	}

	return cfg, nil
}

// Development reports whether error details should be included in responses.
func (c Config) Development() bool {
	return c.Environment == EnvDevelopment
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64Or(key string, fallback int64) int64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat64Or(key string, fallback float64) float64 {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
