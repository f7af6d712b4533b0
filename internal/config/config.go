package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/aman-zulfiqar/amm-trade-engine/internal/constants"
	"github.com/aman-zulfiqar/amm-trade-engine/internal/models"
)

type Config struct {
	// Ledger gateway settings
	LedgerRPCURL  string
	LedgerTimeout time.Duration
	MaxRetries    int
	RetryBackoff  time.Duration

	// Signing
	WalletSecret string

	// Pairs
	PairsConfigPath string

	// Redis settings
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// ClickHouse settings
	ClickHouseAddr     string
	ClickHouseDatabase string
	ClickHouseUsername string
	ClickHousePassword string

	// API settings
	APIAddr string
	APIKey  string
	DevMode bool

	// LLM
	OpenRouterAPIKey string
	OpenRouterModel  string

	// Engine timings
	PricePollInterval time.Duration
	SubmitTimeout     time.Duration
	AutoRetryDelay    time.Duration
	ManualRetryDelay  time.Duration
	MaxReserveAge     time.Duration

	DefaultSlippageBps uint32
	LogLevel           string
}

func Load() *Config {
	return &Config{
		// Ledger
		LedgerRPCURL:  getEnv("LEDGER_RPC_URL", "http://localhost:5005"),
		LedgerTimeout: getDurationEnv("LEDGER_TIMEOUT", 30*time.Second),
		MaxRetries:    getIntEnv("MAX_RETRIES", 3),
		RetryBackoff:  getDurationEnv("RETRY_BACKOFF", 500*time.Millisecond),

		WalletSecret: os.Getenv("WALLET_SECRET"),

		PairsConfigPath: getEnv("PAIRS_CONFIG_PATH", "config/pairs.json"),

		// Redis
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),

		// ClickHouse
		ClickHouseAddr:     getEnv("CLICKHOUSE_ADDR", ""),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "trades"),
		ClickHouseUsername: getEnv("CLICKHOUSE_USERNAME", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),

		// API
		APIAddr: getEnv("API_ADDR", ":8090"),
		APIKey:  getEnv("API_KEY", ""),
		DevMode: getBoolEnv("DEV_MODE", false),

		// LLM
		OpenRouterAPIKey: getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterModel:  getEnv("OPENROUTER_MODEL", "openai/gpt-4.1-mini"),

		// Engine
		PricePollInterval: getDurationEnv("PRICE_POLL_INTERVAL", 10*time.Second),
		SubmitTimeout:     getDurationEnv("SUBMIT_TIMEOUT", 45*time.Second),
		AutoRetryDelay:    getDurationEnv("AUTO_RETRY_DELAY", 1500*time.Millisecond),
		ManualRetryDelay:  getDurationEnv("MANUAL_RETRY_DELAY", 3*time.Second),
		MaxReserveAge:     getDurationEnv("MAX_RESERVE_AGE", 30*time.Second),

		DefaultSlippageBps: uint32(getIntEnv("DEFAULT_SLIPPAGE_BPS", int(constants.DefaultSlippageBps))),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
	}
}

// Validate checks settings every binary depends on.
func (c *Config) Validate() error {
	u, err := url.Parse(c.LedgerRPCURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("LEDGER_RPC_URL must be an absolute URL, got %q", c.LedgerRPCURL)
	}
	if c.LedgerTimeout <= 0 {
		return fmt.Errorf("LEDGER_TIMEOUT must be positive")
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("MAX_RETRIES must not be negative")
	}
	if c.SubmitTimeout <= 0 {
		return fmt.Errorf("SUBMIT_TIMEOUT must be positive")
	}
	if c.AutoRetryDelay < 0 || c.ManualRetryDelay < 0 {
		return fmt.Errorf("retry delays must not be negative")
	}
	if c.MaxReserveAge <= 0 {
		return fmt.Errorf("MAX_RESERVE_AGE must be positive")
	}
	if c.PricePollInterval <= 0 {
		return fmt.Errorf("PRICE_POLL_INTERVAL must be positive")
	}
	if err := models.ValidateTolerance(c.DefaultSlippageBps); err != nil {
		return fmt.Errorf("DEFAULT_SLIPPAGE_BPS: %w", err)
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		return fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return nil
}

// Level returns the configured log level, defaulting to info.
func (c *Config) Level() logrus.Level {
	lvl, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

func (c *Config) RedisEnabled() bool      { return c.RedisAddr != "" }
func (c *Config) ClickHouseEnabled() bool { return c.ClickHouseAddr != "" }

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getIntEnv(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func getBoolEnv(key string, defaultVal bool) bool {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}
