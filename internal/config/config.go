// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/aristath/council/internal/utils"
	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	// Reasoning collaborator
	OpenAIAPIKey    string
	OpenAIBaseURL   string // empty = api.openai.com
	Model           string
	MaxOutputTokens int

	// Temperatures: persona evaluations run hot for distinct voices,
	// synthesis runs cooler for a coherent narrative.
	PersonaTemperature   float64
	SynthesisTemperature float64

	// Orchestration
	UnitTimeout       time.Duration // per-persona evaluation timeout
	MaxConcurrent     int           // 0 = panel size
	RequestsPerMinute int           // 0 = unlimited

	// Screening
	PersonaDir   string   // empty = embedded default council
	TriggersPath string   // empty = embedded default conditions
	Watchlist    []string // symbols scanned by cmd/scanner
	UniversePath string   // metrics file for the watchlist

	// Scoring
	MarketSentiment string // "", "bearish", "neutral" or "bullish"

	// Enrichment collaborator (optional)
	FinnhubAPIKey string

	LogLevel string
	Pretty   bool
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{
		OpenAIAPIKey:         os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:        getEnv("OPENAI_BASE_URL", ""),
		Model:                getEnv("COUNCIL_MODEL", "gpt-4o"),
		MaxOutputTokens:      getEnvInt("COUNCIL_MAX_OUTPUT_TOKENS", 1024),
		PersonaTemperature:   getEnvFloat("COUNCIL_PERSONA_TEMPERATURE", 0.8),
		SynthesisTemperature: getEnvFloat("COUNCIL_SYNTHESIS_TEMPERATURE", 0.5),
		UnitTimeout:          getEnvDuration("COUNCIL_UNIT_TIMEOUT", 60*time.Second),
		MaxConcurrent:        getEnvInt("COUNCIL_MAX_CONCURRENT", 0),
		RequestsPerMinute:    getEnvInt("COUNCIL_REQUESTS_PER_MINUTE", 0),
		PersonaDir:           getEnv("COUNCIL_PERSONA_DIR", ""),
		TriggersPath:         getEnv("COUNCIL_TRIGGERS_PATH", ""),
		Watchlist:            utils.ParseCSV(getEnv("COUNCIL_WATCHLIST", "")),
		UniversePath:         getEnv("COUNCIL_UNIVERSE_PATH", ""),
		MarketSentiment:      getEnv("COUNCIL_MARKET_SENTIMENT", ""),
		FinnhubAPIKey:        os.Getenv("FINNHUB_API_KEY"),
		LogLevel:             getEnv("LOG_LEVEL", "info"),
		Pretty:               getEnvBool("LOG_PRETTY", true),
	}

	if cfg.UnitTimeout <= 0 {
		return nil, fmt.Errorf("COUNCIL_UNIT_TIMEOUT must be positive")
	}
	if cfg.MaxConcurrent < 0 {
		return nil, fmt.Errorf("COUNCIL_MAX_CONCURRENT must not be negative")
	}
	if cfg.RequestsPerMinute < 0 {
		return nil, fmt.Errorf("COUNCIL_REQUESTS_PER_MINUTE must not be negative")
	}
	switch cfg.MarketSentiment {
	case "", "bearish", "neutral", "bullish":
	default:
		return nil, fmt.Errorf("COUNCIL_MARKET_SENTIMENT must be bearish, neutral or bullish")
	}

	return cfg, nil
}

// getEnv retrieves an environment variable value, returning a fallback if
// the variable is not set or is empty.
func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}
