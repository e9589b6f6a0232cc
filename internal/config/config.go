package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/Dan9191/microloan/internal/models"
	"github.com/joho/godotenv"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config holds application configuration
type Config struct {
	Port        string
	DBConn      string
	StoreDriver string
	LogLevel    string
	JWTSecret   string
	HMACSecret  string

	// ServiceAccount is the ledger account the service pulls funds with
	ServiceAccount string
	TokenSymbol    string
	TokenDecimals  int32

	SMTPHost     string
	SMTPPort     string
	SMTPUsername string
	SMTPPassword string
	SenderEmail  string

	DigestRecipient string
	DigestSchedule  string

	// SeedBalances is minted once at startup, e.g. "0xabc:1000,0xdef:500"
	SeedBalances map[string]uint64
}

// NewConfig loads configuration from a .env file if present, then from environment variables
func NewConfig() (*Config, error) {
	// a missing .env file is not an error
	_ = godotenv.Load()

	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		DBConn:          getEnv("DB_CONN", "host=localhost port=5436 user=test password=test dbname=microloan sslmode=disable"),
		StoreDriver:     strings.ToLower(getEnv("STORE_DRIVER", DriverPostgres)),
		LogLevel:        getEnv("LOG_LEVEL", "INFO"),
		JWTSecret:       getEnv("JWT_SECRET", "secret"),
		HMACSecret:      getEnv("HMAC_SECRET", "a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6a1b2c3d4e5f6a7b8c9d0e1f2a3b4c5d6"),
		ServiceAccount:  models.NormalizeAccount(getEnv("SERVICE_ACCOUNT", "0x0000000000000000000000000000000000000001")),
		TokenSymbol:     getEnv("TOKEN_SYMBOL", "USDC"),
		SMTPHost:        getEnv("SMTP_HOST", ""),
		SMTPPort:        getEnv("SMTP_PORT", "587"),
		SMTPUsername:    getEnv("SMTP_USERNAME", ""),
		SMTPPassword:    getEnv("SMTP_PASSWORD", ""),
		SenderEmail:     getEnv("SENDER_EMAIL", "noreply@microloan.local"),
		DigestRecipient: getEnv("DIGEST_RECIPIENT", ""),
		DigestSchedule:  getEnv("DIGEST_SCHEDULE", "@daily"),
	}

	decimals, err := strconv.ParseInt(getEnv("TOKEN_DECIMALS", "6"), 10, 32)
	if err != nil || decimals < 0 || decimals > 18 {
		return nil, fmt.Errorf("TOKEN_DECIMALS must be an integer between 0 and 18")
	}
	cfg.TokenDecimals = int32(decimals)

	cfg.SeedBalances, err = parseBalances(getEnv("SEED_BALANCES", ""))
	if err != nil {
		return nil, fmt.Errorf("SEED_BALANCES: %w", err)
	}

	switch cfg.StoreDriver {
	case DriverPostgres:
		if cfg.DBConn == "" {
			return nil, fmt.Errorf("DB_CONN is required")
		}
	case DriverMemory:
	default:
		return nil, fmt.Errorf("STORE_DRIVER must be %q or %q, got %q", DriverPostgres, DriverMemory, cfg.StoreDriver)
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.HMACSecret == "" {
		return nil, fmt.Errorf("HMAC_SECRET is required")
	}
	if cfg.ServiceAccount == "" {
		return nil, fmt.Errorf("SERVICE_ACCOUNT is required")
	}

	return cfg, nil
}

// DigestEnabled reports whether outstanding-repayment digests can be mailed
func (c *Config) DigestEnabled() bool {
	return c.SMTPHost != "" && c.DigestRecipient != ""
}

func parseBalances(raw string) (map[string]uint64, error) {
	balances := make(map[string]uint64)
	if strings.TrimSpace(raw) == "" {
		return balances, nil
	}
	for _, pair := range strings.Split(raw, ",") {
		account, value, ok := strings.Cut(pair, ":")
		if !ok {
			return nil, fmt.Errorf("expected account:amount, got %q", pair)
		}
		amount, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid amount for %s: %w", account, err)
		}
		balances[models.NormalizeAccount(account)] = amount
	}
	return balances, nil
}

func getEnv(key, defaultVal string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return defaultVal
}
