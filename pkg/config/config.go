package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
type Config struct {
	// Application
	LogLevel string
	HTTPPort string

	// API endpoints
	WSURL      string
	GammaURL   string
	ClobURL    string
	DataAPIURL string

	// Credentials (live trading)
	PrivateKey    string
	APIKey        string
	APISecret     string
	APIPassphrase string
	FunderAddress string

	// Chain
	RPCURL  string
	ChainID int64

	// Order traffic proxy (socks5:// or socks5h://); empty disables it.
	ProxyURL string

	// Scanner
	MinProfitThreshold     decimal.Decimal
	MinLiquidityUSD        decimal.Decimal
	MaxDaysUntilResolution int
	NumWSConnections       int
	MetadataRefreshEvery   time.Duration
	PollInterval           time.Duration // legacy polling mode

	// WebSocket
	WSDialTimeout    time.Duration
	WSPingInterval   time.Duration
	WatchdogInterval time.Duration
	StaleConnTimeout time.Duration

	WSReconnectInitialDelay time.Duration
	WSReconnectWaitCap      time.Duration
	WSReconnectMaxDelay     time.Duration

	// Execution
	Live            bool
	DryRun          bool
	MaxPositionSize decimal.Decimal
	OrderTimeout    time.Duration

	// Background loops
	BalanceRefreshEvery time.Duration
	RedemptionEvery     time.Duration
	StatsHistoryEvery   time.Duration
	MinuteStatsEvery    time.Duration

	// Worker pool for fire-and-forget persistence and notifications
	WorkerCount     int
	WorkerQueueSize int

	// Storage
	StorageMode  string // "postgres" or "console"
	PostgresHost string
	PostgresPort string
	PostgresUser string
	PostgresPass string
	PostgresDB   string
	PostgresSSL  string

	// Notifications
	SlackWebhookURL string
}

// Load reads .env (when present) and builds the configuration from the
// environment.
func Load() (*Config, error) {
	_ = godotenv.Load()
	return LoadFromEnv()
}

// LoadFromEnv loads configuration from environment variables with defaults.
func LoadFromEnv() (*Config, error) {
	cfg := &Config{
		// Application defaults
		LogLevel: getEnvOrDefault("LOG_LEVEL", "info"),
		HTTPPort: getEnvOrDefault("HTTP_PORT", "8080"),

		// Endpoint defaults
		WSURL:      getEnvOrDefault("POLYMARKET_WS_URL", "wss://ws-subscriptions-clob.polymarket.com/ws/market"),
		GammaURL:   getEnvOrDefault("POLYMARKET_GAMMA_API_URL", "https://gamma-api.polymarket.com"),
		ClobURL:    getEnvOrDefault("POLYMARKET_CLOB_API_URL", "https://clob.polymarket.com"),
		DataAPIURL: getEnvOrDefault("POLYMARKET_DATA_API_URL", "https://data-api.polymarket.com"),

		// Credentials
		PrivateKey:    os.Getenv("POLYMARKET_PRIVATE_KEY"),
		APIKey:        os.Getenv("POLYMARKET_API_KEY"),
		APISecret:     os.Getenv("POLYMARKET_SECRET"),
		APIPassphrase: os.Getenv("POLYMARKET_PASSPHRASE"),
		FunderAddress: os.Getenv("POLYMARKET_FUNDER_ADDRESS"),

		// Chain defaults (Polygon mainnet)
		RPCURL:  getEnvOrDefault("POLYGON_RPC_URL", "https://polygon-rpc.com"),
		ChainID: int64(getIntOrDefault("POLYGON_CHAIN_ID", 137)),

		ProxyURL: os.Getenv("ORDER_PROXY_URL"),

		// Scanner defaults
		MinProfitThreshold:     getDecimalOrDefault("MIN_PROFIT_THRESHOLD", "0.01"),
		MinLiquidityUSD:        getDecimalOrDefault("MIN_LIQUIDITY_USD", "1000"),
		MaxDaysUntilResolution: getIntOrDefault("MAX_DAYS_UNTIL_RESOLUTION", 30),
		NumWSConnections:       getIntOrDefault("NUM_WS_CONNECTIONS", 10),
		MetadataRefreshEvery:   getDurationOrDefault("METADATA_REFRESH_INTERVAL", 10*time.Minute),
		PollInterval:           getDurationOrDefault("POLL_INTERVAL", 5*time.Second),

		// WebSocket defaults
		WSDialTimeout:    getDurationOrDefault("WS_DIAL_TIMEOUT", 10*time.Second),
		WSPingInterval:   getDurationOrDefault("WS_PING_INTERVAL", 10*time.Second),
		WatchdogInterval: getDurationOrDefault("WS_WATCHDOG_INTERVAL", 30*time.Second),
		StaleConnTimeout: getDurationOrDefault("WS_STALE_CONN_TIMEOUT", 60*time.Second),

		WSReconnectInitialDelay: getDurationOrDefault("WS_RECONNECT_INITIAL_DELAY", 1*time.Second),
		WSReconnectWaitCap:      getDurationOrDefault("WS_RECONNECT_WAIT_CAP", 30*time.Second),
		WSReconnectMaxDelay:     getDurationOrDefault("WS_RECONNECT_MAX_DELAY", 60*time.Second),

		// Execution defaults
		DryRun:          getBoolOrDefault("DRY_RUN", true),
		MaxPositionSize: getDecimalOrDefault("MAX_POSITION_SIZE", "100"),
		OrderTimeout:    getDurationOrDefault("ORDER_TIMEOUT", 10*time.Second),

		// Background loop defaults
		BalanceRefreshEvery: getDurationOrDefault("BALANCE_REFRESH_INTERVAL", 60*time.Second),
		RedemptionEvery:     getDurationOrDefault("REDEMPTION_INTERVAL", 5*time.Minute),
		StatsHistoryEvery:   getDurationOrDefault("STATS_HISTORY_INTERVAL", time.Hour),
		MinuteStatsEvery:    getDurationOrDefault("MINUTE_STATS_INTERVAL", 60*time.Second),

		// Worker pool defaults
		WorkerCount:     getIntOrDefault("WORKER_COUNT", 4),
		WorkerQueueSize: getIntOrDefault("WORKER_QUEUE_SIZE", 256),

		// Storage defaults
		StorageMode:  getEnvOrDefault("STORAGE_MODE", "console"),
		PostgresHost: getEnvOrDefault("POSTGRES_HOST", "localhost"),
		PostgresPort: getEnvOrDefault("POSTGRES_PORT", "5432"),
		PostgresUser: getEnvOrDefault("POSTGRES_USER", "rarb"),
		PostgresPass: getEnvOrDefault("POSTGRES_PASSWORD", "rarb"),
		PostgresDB:   getEnvOrDefault("POSTGRES_DB", "rarb"),
		PostgresSSL:  getEnvOrDefault("POSTGRES_SSLMODE", "disable"),

		SlackWebhookURL: os.Getenv("SLACK_WEBHOOK_URL"),
	}

	err := cfg.Validate()
	if err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// Validate checks that configuration values are valid.
func (c *Config) Validate() error {
	if c.HTTPPort == "" {
		return fmt.Errorf("HTTP_PORT cannot be empty")
	}

	if c.WSURL == "" {
		return fmt.Errorf("POLYMARKET_WS_URL cannot be empty")
	}

	if c.GammaURL == "" {
		return fmt.Errorf("POLYMARKET_GAMMA_API_URL cannot be empty")
	}

	if c.MinProfitThreshold.IsNegative() || c.MinProfitThreshold.GreaterThan(decimal.RequireFromString("0.1")) {
		return fmt.Errorf("MIN_PROFIT_THRESHOLD must be between 0 and 0.1, got %s", c.MinProfitThreshold)
	}

	if c.MaxDaysUntilResolution < 1 || c.MaxDaysUntilResolution > 365 {
		return fmt.Errorf("MAX_DAYS_UNTIL_RESOLUTION must be between 1 and 365, got %d", c.MaxDaysUntilResolution)
	}

	if c.NumWSConnections < 1 || c.NumWSConnections > 20 {
		return fmt.Errorf("NUM_WS_CONNECTIONS must be between 1 and 20, got %d", c.NumWSConnections)
	}

	if c.StorageMode != "postgres" && c.StorageMode != "console" {
		return fmt.Errorf("STORAGE_MODE must be 'postgres' or 'console', got %q", c.StorageMode)
	}

	if c.MaxPositionSize.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("MAX_POSITION_SIZE must be positive, got %s", c.MaxPositionSize)
	}

	return nil
}

// HasAPICredentials reports whether all CLOB API credentials are present.
func (c *Config) HasAPICredentials() bool {
	return c.PrivateKey != "" && c.APIKey != "" && c.APISecret != "" && c.APIPassphrase != ""
}

// RequireLiveCredentials returns an error when live mode is requested without
// a full credential set.
func (c *Config) RequireLiveCredentials() error {
	if !c.HasAPICredentials() {
		return fmt.Errorf("live mode requires POLYMARKET_PRIVATE_KEY, POLYMARKET_API_KEY, POLYMARKET_SECRET and POLYMARKET_PASSPHRASE")
	}
	return nil
}

// OrderProxyURL returns the proxy URL for order submission traffic. The
// socks5h scheme is mapped to socks5; the Go dialer already resolves
// hostnames through the tunnel.
func (c *Config) OrderProxyURL() string {
	if c.ProxyURL == "" {
		return ""
	}
	if strings.HasPrefix(c.ProxyURL, "socks5h://") {
		return "socks5://" + strings.TrimPrefix(c.ProxyURL, "socks5h://")
	}
	return c.ProxyURL
}

// PostgresDSN builds the lib/pq connection string.
func (c *Config) PostgresDSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.PostgresHost, c.PostgresPort, c.PostgresUser, c.PostgresPass, c.PostgresDB, c.PostgresSSL)
}

func getEnvOrDefault(key string, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getIntOrDefault(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intVal, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intVal
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	boolVal, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}

	return boolVal
}

func getDecimalOrDefault(key string, defaultValue string) decimal.Decimal {
	fallback := decimal.RequireFromString(defaultValue)

	value := os.Getenv(key)
	if value == "" {
		return fallback
	}

	d, err := decimal.NewFromString(value)
	if err != nil {
		return fallback
	}

	return d
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}
