package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	// Secrets (from .env)
	AlchemyAPIKey   string
	EthereumRPCURL  string
	PolygonRPCURL   string
	WebhookURL      string
	ServiceName     string
	APIKey          string
	CORSAllowOrigin string

	// Database
	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string

	// Redis (hot cache + job queue)
	RedisHost     string
	RedisPort     int
	RedisPassword string
	RedisDB       int

	// Resolution
	CacheTTLSeconds int

	// Backfill
	BackfillBatchSize         int
	BackfillBatchDelaySeconds int

	// API
	Port int
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		// Secrets
		AlchemyAPIKey:   envStr("ALCHEMY_API_KEY", ""),
		EthereumRPCURL:  envStr("ETHEREUM_RPC_URL", ""),
		PolygonRPCURL:   envStr("POLYGON_RPC_URL", ""),
		WebhookURL:      envStr("WEBHOOK_URL", ""),
		ServiceName:     envStr("SERVICE_NAME", "PriceOracle"),
		APIKey:          envStr("API_KEY", ""),
		CORSAllowOrigin: envStr("CORS_ALLOW_ORIGIN", "*"),

		// Database
		DBHost:     envStr("DB_HOST", "localhost"),
		DBPort:     envInt("DB_PORT", 5432),
		DBName:     envStr("DB_NAME", "price_oracle"),
		DBUser:     envStr("DB_USER", ""),
		DBPassword: envStr("DB_PASSWORD", ""),

		// Redis
		RedisHost:     envStr("REDIS_HOST", "localhost"),
		RedisPort:     envInt("REDIS_PORT", 6379),
		RedisPassword: envStr("REDIS_PASSWORD", ""),
		RedisDB:       envInt("REDIS_DB", 0),

		// Resolution
		CacheTTLSeconds: envInt("CACHE_TTL_SECONDS", 300),

		// Backfill
		BackfillBatchSize:         envInt("BACKFILL_BATCH_SIZE", 5),
		BackfillBatchDelaySeconds: envInt("BACKFILL_BATCH_DELAY_SECONDS", 3),

		// API
		Port: envInt("PORT", 4000),
	}

	// The Alchemy RPC endpoints share the Prices API key unless overridden.
	if cfg.EthereumRPCURL == "" && cfg.AlchemyAPIKey != "" {
		cfg.EthereumRPCURL = "https://eth-mainnet.g.alchemy.com/v2/" + cfg.AlchemyAPIKey
	}
	if cfg.PolygonRPCURL == "" && cfg.AlchemyAPIKey != "" {
		cfg.PolygonRPCURL = "https://polygon-mainnet.g.alchemy.com/v2/" + cfg.AlchemyAPIKey
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string

	if c.AlchemyAPIKey == "" {
		errs = append(errs, "ALCHEMY_API_KEY is required")
	}
	if c.EthereumRPCURL == "" {
		errs = append(errs, "ETHEREUM_RPC_URL is required (or set ALCHEMY_API_KEY)")
	}
	if c.DBUser == "" {
		errs = append(errs, "DB_USER is required")
	}
	if c.BackfillBatchSize <= 0 {
		errs = append(errs, "BACKFILL_BATCH_SIZE must be positive")
	}
	if c.APIKey == "" {
		fmt.Println("[WARN] API_KEY not set - REST API has no authentication")
	}
	if c.WebhookURL == "" {
		fmt.Println("[WARN] WEBHOOK_URL not set - job notifications go to console only")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  %s", strings.Join(errs, "\n  "))
	}
	return nil
}

func (c *Config) Print() {
	fmt.Println("=== Token Price Oracle Configuration ===")
	fmt.Printf("Networks: ethereum%s\n", boolLabel(c.PolygonRPCURL != "", ", polygon", " (polygon RPC not configured)"))
	fmt.Printf("Alchemy Prices API: %s\n", boolLabel(c.AlchemyAPIKey != "", "configured", "not set"))
	fmt.Println("--------------------------------------")
	fmt.Printf("Database: %s:%d/%s\n", c.DBHost, c.DBPort, c.DBName)
	fmt.Printf("Redis: %s:%d (db %d)\n", c.RedisHost, c.RedisPort, c.RedisDB)
	fmt.Println("--------------------------------------")
	fmt.Printf("Cache TTL: %ds\n", c.CacheTTLSeconds)
	fmt.Printf("Backfill: batches of %d, %ds apart\n", c.BackfillBatchSize, c.BackfillBatchDelaySeconds)
	fmt.Printf("API Port: %d\n", c.Port)
	fmt.Printf("API Auth: %s\n", boolLabel(c.APIKey != "", "enabled (Bearer token)", "disabled"))
	fmt.Println("======================================")
}

func (c *Config) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
}

func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.RedisHost, c.RedisPort)
}

// --- helpers ---

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func boolLabel(cond bool, ifTrue, ifFalse string) string {
	if cond {
		return ifTrue
	}
	return ifFalse
}
