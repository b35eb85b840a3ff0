// Package config loads application configuration from the environment.
package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config holds all application configuration.
type Config struct {
	// External services
	MarketDataAPIKey string `env:"MARKET_DATA_API_KEY"`
	MarketDataURL    string `env:"MARKET_DATA_URL"`
	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	ChartAPIKey      string `env:"CHART_API_KEY"`

	// Storage
	PostgresDSN   string `env:"POSTGRES_DSN"`
	ClickhouseDSN string `env:"CLICKHOUSE_DSN"`
	UseMemory     bool   `env:"USE_MEMORY" envDefault:"false"`

	// Server
	ListenAddr string `env:"LISTEN_ADDR" envDefault:":8080"`

	// Run behavior
	SaveEachTrade     bool   `env:"SAVE_EACH_TRADE" envDefault:"false"`
	LogLevel          string `env:"LOG_LEVEL" envDefault:"info"`
	RequestTimeoutSec int    `env:"REQUEST_TIMEOUT" envDefault:"30"`

	// Oracle models
	ScreeningModel string `env:"SCREENING_MODEL"`
	DecisionModel  string `env:"DECISION_MODEL"`
}

// Load initializes configuration from environment variables, reading a
// .env file first when one is present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := &Config{
		MarketDataAPIKey:  os.Getenv("MARKET_DATA_API_KEY"),
		MarketDataURL:     os.Getenv("MARKET_DATA_URL"),
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		ChartAPIKey:       os.Getenv("CHART_API_KEY"),
		PostgresDSN:       os.Getenv("POSTGRES_DSN"),
		ClickhouseDSN:     os.Getenv("CLICKHOUSE_DSN"),
		UseMemory:         getEnvBoolWithDefault("USE_MEMORY", false),
		ListenAddr:        getEnvWithDefault("LISTEN_ADDR", ":8080"),
		SaveEachTrade:     getEnvBoolWithDefault("SAVE_EACH_TRADE", false),
		LogLevel:          getEnvWithDefault("LOG_LEVEL", "info"),
		RequestTimeoutSec: getEnvIntWithDefault("REQUEST_TIMEOUT", 30),
		ScreeningModel:    os.Getenv("SCREENING_MODEL"),
		DecisionModel:     os.Getenv("DECISION_MODEL"),
	}
	return cfg, nil
}

// SetupLogging applies the configured global log level.
func (c *Config) SetupLogging() {
	level, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
}

// Helper functions for environment variable handling.
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}
