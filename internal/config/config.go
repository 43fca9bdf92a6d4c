package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config holds all configuration for the agent
type Config struct {
	// Ledger RPC
	RPCURL          string
	WSSRPCURL       string
	ContractAddress common.Address
	ABIPath         string

	// Signing identity
	PrivateKey string

	// Advisory provider
	AdvisorProvider string // "openai" or "gemini"
	OpenAIAPIKey    string
	GeminiAPIKey    string
	AdvisorTimeout  time.Duration

	// Mode
	DryRun bool
	Debug  bool

	// Event handling
	PollInterval time.Duration
	LoopInterval time.Duration
	Workers      int
	QueueSize    int

	// HTTP API
	ListenAddr string

	// Item universe for update/loop modes when the catalog is empty
	Items []common.Address

	// Catalog database
	DatabaseURL  string
	DatabasePath string

	// Telegram notifications (optional)
	TelegramToken  string
	TelegramChatID int64
}

// Load loads configuration from environment variables.
// Required values are validated here so a misconfigured agent
// dies at startup instead of on its first ledger call.
func Load() (*Config, error) {
	cfg := &Config{
		RPCURL:    os.Getenv("RPC_URL"),
		WSSRPCURL: os.Getenv("WSS_RPC_URL"),
		ABIPath:   getEnv("ABI_PATH", "abi/AITrader.json"),

		PrivateKey: os.Getenv("AI_PRIVATE_KEY"),

		AdvisorProvider: getEnv("ADVISOR_PROVIDER", "openai"),
		OpenAIAPIKey:    os.Getenv("OPENAI_API_KEY"),
		GeminiAPIKey:    os.Getenv("GEMINI_API_KEY"),
		AdvisorTimeout:  getEnvDuration("ADVISOR_TIMEOUT", 15*time.Second),

		DryRun: getEnvBool("DRY_RUN", false),
		Debug:  getEnvBool("DEBUG", false),

		PollInterval: getEnvDuration("POLL_INTERVAL", 3*time.Second),
		LoopInterval: getEnvDuration("LOOP_INTERVAL", 60*time.Second),
		Workers:      getEnvInt("WORKERS", 4),
		QueueSize:    getEnvInt("QUEUE_SIZE", 256),

		ListenAddr: getEnv("LISTEN_ADDR", ":8000"),

		DatabaseURL:  os.Getenv("DATABASE_URL"),
		DatabasePath: getEnv("DATABASE_PATH", "data/aitrader.db"),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),
	}

	if cfg.RPCURL == "" {
		return nil, fmt.Errorf("RPC_URL is required")
	}

	rawAddr := os.Getenv("CONTRACT_ADDRESS")
	if rawAddr == "" {
		return nil, fmt.Errorf("CONTRACT_ADDRESS is required")
	}
	if !common.IsHexAddress(rawAddr) {
		return nil, fmt.Errorf("invalid CONTRACT_ADDRESS: %s", rawAddr)
	}
	cfg.ContractAddress = common.HexToAddress(rawAddr)

	// Parse item universe
	if raw := os.Getenv("ITEMS"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if !common.IsHexAddress(part) {
				return nil, fmt.Errorf("invalid item address in ITEMS: %s", part)
			}
			cfg.Items = append(cfg.Items, common.HexToAddress(part))
		}
	}

	// Parse chat ID
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = 1
	}

	return cfg, nil
}

// RequireSigner validates the settings needed to submit transactions.
func (c *Config) RequireSigner() error {
	if c.PrivateKey == "" {
		return fmt.Errorf("AI_PRIVATE_KEY is required to sign price updates")
	}
	return nil
}

// RequireAdvisor validates the settings for the configured advisory provider.
func (c *Config) RequireAdvisor() error {
	switch c.AdvisorProvider {
	case "openai":
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai advisor")
		}
	case "gemini":
		if c.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini advisor")
		}
	default:
		return fmt.Errorf("unknown ADVISOR_PROVIDER: %s", c.AdvisorProvider)
	}
	return nil
}

// StreamURL returns the subscription endpoint, falling back to the
// HTTP RPC URL when no dedicated streaming endpoint is configured.
func (c *Config) StreamURL() string {
	if c.WSSRPCURL != "" {
		return c.WSSRPCURL
	}
	return c.RPCURL
}

// TelegramEnabled reports whether notification settings are present.
func (c *Config) TelegramEnabled() bool {
	return c.TelegramToken != "" && c.TelegramChatID != 0
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
