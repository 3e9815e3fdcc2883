package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

const (
	BackendGroq      = "groq"
	BackendOllama    = "ollama"
	BackendAnthropic = "anthropic"
)

// Config holds application configuration
type Config struct {
	Backend     string
	GroqAPIKey  string
	GroqModel   string
	Temperature float64
	MaxTokens   int

	AnthropicAPIKey string
	AnthropicModel  string
	OllamaModel     string

	UnsplashAccessKey string

	SummaryStyle string // "structured" or "markdown"

	Port          string
	AllowedOrigin string
	ArchiveDB     string        // path to the sqlite archive; empty disables it
	SessionTTL    time.Duration // idle eviction; zero disables it
	Debug         bool
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getFloatEnv(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getIntEnv(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getBoolEnv(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v == "1" || v == "true" || v == "TRUE"
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// Load reads all env vars and builds the config
func Load() *Config {
	return &Config{
		Backend:     getEnv("SPECBUDDY_BACKEND", BackendGroq),
		GroqAPIKey:  getEnv("GROQ_API_KEY", ""),
		GroqModel:   getEnv("LLAMA_MODEL_REPO", "llama-3.3-70b-versatile"),
		Temperature: getFloatEnv("TEMPERATURE", 0.5),
		MaxTokens:   getIntEnv("MAX_NEW_TOKENS", 1024),

		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  getEnv("SPECBUDDY_ANTHROPIC_MODEL", "claude-sonnet-4-20250514"),
		OllamaModel:     getEnv("SPECBUDDY_OLLAMA_MODEL", "llama3:latest"),

		UnsplashAccessKey: getEnv("UNSPLASH_ACCESS_KEY", ""),

		SummaryStyle: getEnv("SPECBUDDY_SUMMARY_STYLE", "structured"),

		Port:          getEnv("SPECBUDDY_PORT", "8000"),
		AllowedOrigin: getEnv("SPECBUDDY_ALLOWED_ORIGIN", "*"),
		ArchiveDB:     getEnv("SPECBUDDY_ARCHIVE_DB", ""),
		SessionTTL:    getDurationEnv("SPECBUDDY_SESSION_TTL", 0),
		Debug:         getBoolEnv("SPECBUDDY_DEBUG", false),
	}
}

// Validate checks the startup-fatal conditions: a missing completion
// credential for the selected backend aborts; a missing image
// credential only degrades.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendGroq:
		if c.GroqAPIKey == "" {
			return fmt.Errorf("GROQ_API_KEY is required when SPECBUDDY_BACKEND=groq")
		}
	case BackendAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required when SPECBUDDY_BACKEND=anthropic")
		}
	case BackendOllama:
		// local, no credential
	default:
		return fmt.Errorf("unknown backend: %s", c.Backend)
	}
	return nil
}
