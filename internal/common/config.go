package common

import (
	"os"
	"time"
)

// Config holds all application configuration
type Config struct {
	Bot     BotConfig
	Server  ServerConfig
	Storage StorageConfig
	Extract ExtractConfig
	Ledger  LedgerConfig
}

// BotConfig holds chat-transport configuration
type BotConfig struct {
	Token string
}

// ServerConfig holds webhook server configuration
type ServerConfig struct {
	ListenAddr     string
	WebhookBaseURL string
}

// StorageConfig holds on-disk workspace configuration
type StorageConfig struct {
	DataDir string
	DBPath  string
}

// ExtractConfig holds text-extraction configuration
type ExtractConfig struct {
	PdftotextBin string
	Timeout      time.Duration
}

// LedgerConfig holds merge-engine configuration
type LedgerConfig struct {
	Dialect     string
	ProfilePath string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Bot: BotConfig{
			Token: getEnv("BOT_TOKEN", ""),
		},
		Server: ServerConfig{
			ListenAddr:     getEnv("LISTEN_ADDR", ":10000"),
			WebhookBaseURL: getEnv("WEBHOOK_BASE_URL", ""),
		},
		Storage: StorageConfig{
			DataDir: getEnv("DATA_DIR", "./data"),
			DBPath:  getEnv("DB_PATH", "./data/rfiledger.db"),
		},
		Extract: ExtractConfig{
			PdftotextBin: getEnv("PDFTOTEXT_BIN", "pdftotext"),
			Timeout:      getEnvAsDuration("PDFTOTEXT_TIMEOUT", 30*time.Second),
		},
		Ledger: LedgerConfig{
			Dialect:     getEnv("LEDGER_DIALECT", "template"),
			ProfilePath: getEnv("MERGE_PROFILE_PATH", ""),
		},
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

// ValidateConfig validates the loaded configuration
func (c *Config) Validate() error {
	if c.Bot.Token == "" {
		return NewAppError("CONFIG_ERROR", "BOT_TOKEN is required", ErrInvalidInput)
	}
	if c.Storage.DataDir == "" {
		return NewAppError("CONFIG_ERROR", "DATA_DIR is required", ErrInvalidInput)
	}
	if c.Ledger.Dialect != "append" && c.Ledger.Dialect != "template" {
		return NewAppError("CONFIG_ERROR", "LEDGER_DIALECT must be append or template", ErrInvalidInput)
	}
	return nil
}
