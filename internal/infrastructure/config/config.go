package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Server      ServerConfig   `mapstructure:"server"`
	Database    DatabaseConfig `mapstructure:"database"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Chains      ChainsConfig   `mapstructure:"chains"`
	Treasury    TreasuryConfig `mapstructure:"treasury"`
	Tracker     TrackerConfig  `mapstructure:"tracker"`
	Sweep       SweepConfig    `mapstructure:"sweep"`
	AMQP        AMQPConfig     `mapstructure:"amqp"`
}

type ServerConfig struct {
	Port            int      `mapstructure:"port"`
	Host            string   `mapstructure:"host"`
	ReadTimeout     int      `mapstructure:"read_timeout"`
	WriteTimeout    int      `mapstructure:"write_timeout"`
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	RateLimitPerMin int      `mapstructure:"rate_limit_per_min"`
}

type DatabaseConfig struct {
	URL             string `mapstructure:"url"`
	Host            string `mapstructure:"host"`
	Port            int    `mapstructure:"port"`
	Name            string `mapstructure:"name"`
	User            string `mapstructure:"user"`
	Password        string `mapstructure:"password"`
	SSLMode         string `mapstructure:"ssl_mode"`
	MaxOpenConns    int    `mapstructure:"max_open_conns"`
	MaxIdleConns    int    `mapstructure:"max_idle_conns"`
	ConnMaxLifetime int    `mapstructure:"conn_max_lifetime"`
	QueryTimeout    int    `mapstructure:"query_timeout"`
}

type RedisConfig struct {
	Host              string `mapstructure:"host"`
	Port              int    `mapstructure:"port"`
	Password          string `mapstructure:"password"`
	DB                int    `mapstructure:"db"`
	MaxRetries        int    `mapstructure:"max_retries"`
	PoolSize          int    `mapstructure:"pool_size"`
	AddressCacheTTL   int    `mapstructure:"address_cache_ttl"`   // seconds
	BalanceCacheTTL   int    `mapstructure:"balance_cache_ttl"`   // seconds
}

// ChainsConfig groups per-chain adapter configuration. A chain whose
// required endpoint is empty is simply not monitored.
type ChainsConfig struct {
	EVM     EVMConfig     `mapstructure:"evm"`
	Solana  SolanaConfig  `mapstructure:"solana"`
	Bitcoin BitcoinConfig `mapstructure:"bitcoin"`
	Cardano CardanoConfig `mapstructure:"cardano"`

	// ConfirmationOverrides maps token symbol to a per-deployment
	// required-confirmation count that takes precedence over the
	// owning chain's default.
	ConfirmationOverrides map[string]int64 `mapstructure:"confirmation_overrides"`
}

// EVMTokenConfig describes one ERC-20 contract to watch
type EVMTokenConfig struct {
	Address  string `mapstructure:"address"`
	Symbol   string `mapstructure:"symbol"`
	Decimals int    `mapstructure:"decimals"`
}

type EVMConfig struct {
	WSURL                 string                    `mapstructure:"ws_url"`
	RPCURL                string                    `mapstructure:"rpc_url"`
	NativeSymbol          string                    `mapstructure:"native_symbol"`
	NativeDecimals        int                       `mapstructure:"native_decimals"`
	Tokens                map[string]EVMTokenConfig `mapstructure:"tokens"`
	RequiredConfirmations int64                     `mapstructure:"required_confirmations"`
	PollInterval          int                       `mapstructure:"poll_interval"`   // seconds
	ReconnectDelay        int                       `mapstructure:"reconnect_delay"` // seconds
}

type SolanaConfig struct {
	RPCURL                string `mapstructure:"rpc_url"`
	WSURL                 string `mapstructure:"ws_url"`
	RequiredConfirmations int64  `mapstructure:"required_confirmations"`
	PollInterval          int    `mapstructure:"poll_interval"` // seconds
}

type BitcoinConfig struct {
	APIURL                string `mapstructure:"api_url"`
	Network               string `mapstructure:"network"` // mainnet or testnet
	RequiredConfirmations int64  `mapstructure:"required_confirmations"`
	PollInterval          int    `mapstructure:"poll_interval"` // seconds
}

type CardanoConfig struct {
	APIURL                string `mapstructure:"api_url"`
	ProjectID             string `mapstructure:"project_id"`
	RequiredConfirmations int64  `mapstructure:"required_confirmations"`
	PollInterval          int    `mapstructure:"poll_interval"` // seconds
}

// TreasuryConfig tunes the ledger's retry engine and sign policy
type TreasuryConfig struct {
	MaxRetries               int  `mapstructure:"max_retries"`
	BaseDelaySeconds         int  `mapstructure:"base_delay_seconds"`
	EnforceCryptoNonNegative bool `mapstructure:"enforce_crypto_non_negative"`
}

// TrackerConfig tunes the confirmation tracker loop
type TrackerConfig struct {
	IntervalSeconds int `mapstructure:"interval_seconds"`
	BatchTimeout    int `mapstructure:"batch_timeout"` // seconds per sweep
}

// SweepConfig tunes the stale-pending-deposit sweep
type SweepConfig struct {
	Schedule        string `mapstructure:"schedule"` // cron expression
	StaleAfterHours int    `mapstructure:"stale_after_hours"`
}

// AMQPConfig configures the notification publisher
type AMQPConfig struct {
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	// Load .env file if it exists (ignore errors if file doesn't exist)
	godotenv.Load()

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	// Set defaults
	setDefaults()

	// Read from config file if it exists
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Override specific environment variables
	overrideFromEnv()

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Build database URL if not provided
	if config.Database.URL == "" {
		config.Database.URL = fmt.Sprintf(
			"postgres://%s:%s@%s:%d/%s?sslmode=%s",
			config.Database.User,
			config.Database.Password,
			config.Database.Host,
			config.Database.Port,
			config.Database.Name,
			config.Database.SSLMode,
		)
	}

	// Validate required fields
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func setDefaults() {
	// Server defaults
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.allowed_origins", []string{"*"})
	viper.SetDefault("server.rate_limit_per_min", 300)

	// Database defaults
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "settlement_service")
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 300)
	viper.SetDefault("database.query_timeout", 30)

	// Redis defaults
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.max_retries", 3)
	viper.SetDefault("redis.pool_size", 10)
	viper.SetDefault("redis.address_cache_ttl", 60)
	viper.SetDefault("redis.balance_cache_ttl", 10)

	// Chain defaults. Confirmation thresholds and poll cadences are
	// per-deployment tuning, not logic.
	viper.SetDefault("chains.evm.native_symbol", "ETH")
	viper.SetDefault("chains.evm.native_decimals", 18)
	viper.SetDefault("chains.evm.required_confirmations", 12)
	viper.SetDefault("chains.evm.poll_interval", 30)
	viper.SetDefault("chains.evm.reconnect_delay", 5)

	viper.SetDefault("chains.solana.required_confirmations", 32)
	viper.SetDefault("chains.solana.poll_interval", 30)

	viper.SetDefault("chains.bitcoin.network", "mainnet")
	viper.SetDefault("chains.bitcoin.required_confirmations", 6)
	viper.SetDefault("chains.bitcoin.poll_interval", 60)

	viper.SetDefault("chains.cardano.required_confirmations", 15)
	viper.SetDefault("chains.cardano.poll_interval", 120)

	// Treasury defaults
	viper.SetDefault("treasury.max_retries", 3)
	viper.SetDefault("treasury.base_delay_seconds", 5)
	viper.SetDefault("treasury.enforce_crypto_non_negative", false)

	// Tracker defaults
	viper.SetDefault("tracker.interval_seconds", 30)
	viper.SetDefault("tracker.batch_timeout", 120)

	// Sweep defaults
	viper.SetDefault("sweep.schedule", "0 * * * *")
	viper.SetDefault("sweep.stale_after_hours", 24)

	// AMQP defaults
	viper.SetDefault("amqp.exchange", "settlement.events")
}

func overrideFromEnv() {
	// Server
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			viper.Set("server.port", p)
		}
	}

	// Database
	if dbURL := os.Getenv("DATABASE_URL"); dbURL != "" {
		viper.Set("database.url", dbURL)
	}

	// Redis
	if redisURL := os.Getenv("REDIS_HOST"); redisURL != "" {
		viper.Set("redis.host", redisURL)
	}

	// EVM
	if wsURL := os.Getenv("EVM_WS_URL"); wsURL != "" {
		viper.Set("chains.evm.ws_url", wsURL)
	}
	if rpcURL := os.Getenv("EVM_RPC_URL"); rpcURL != "" {
		viper.Set("chains.evm.rpc_url", rpcURL)
	}

	// Solana
	if rpcURL := os.Getenv("SOLANA_RPC_URL"); rpcURL != "" {
		viper.Set("chains.solana.rpc_url", rpcURL)
	}
	if wsURL := os.Getenv("SOLANA_WS_URL"); wsURL != "" {
		viper.Set("chains.solana.ws_url", wsURL)
	}

	// Bitcoin
	if apiURL := os.Getenv("BITCOIN_API_URL"); apiURL != "" {
		viper.Set("chains.bitcoin.api_url", apiURL)
	}
	if network := os.Getenv("BITCOIN_NETWORK"); network != "" {
		viper.Set("chains.bitcoin.network", network)
	}

	// Cardano
	if apiURL := os.Getenv("CARDANO_API_URL"); apiURL != "" {
		viper.Set("chains.cardano.api_url", apiURL)
	}
	if projectID := os.Getenv("CARDANO_PROJECT_ID"); projectID != "" {
		viper.Set("chains.cardano.project_id", projectID)
	}

	// Per-token confirmation overrides: CHAIN_CONFIRMATIONS_<TOKEN>=n
	overrides := map[string]int64{}
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[0], "CHAIN_CONFIRMATIONS_") {
			continue
		}
		token := strings.TrimPrefix(parts[0], "CHAIN_CONFIRMATIONS_")
		if token == "" {
			continue
		}
		if n, err := strconv.ParseInt(parts[1], 10, 64); err == nil && n > 0 {
			overrides[strings.ToUpper(token)] = n
		}
	}
	if len(overrides) > 0 {
		viper.Set("chains.confirmation_overrides", overrides)
	}

	// Treasury
	if maxRetries := os.Getenv("TREASURY_MAX_RETRIES"); maxRetries != "" {
		if n, err := strconv.Atoi(maxRetries); err == nil {
			viper.Set("treasury.max_retries", n)
		}
	}
	if baseDelay := os.Getenv("TREASURY_BASE_DELAY_SECONDS"); baseDelay != "" {
		if n, err := strconv.Atoi(baseDelay); err == nil {
			viper.Set("treasury.base_delay_seconds", n)
		}
	}

	// AMQP
	if amqpURL := os.Getenv("AMQP_URL"); amqpURL != "" {
		viper.Set("amqp.url", amqpURL)
	}
	if exchange := os.Getenv("AMQP_EXCHANGE"); exchange != "" {
		viper.Set("amqp.exchange", exchange)
	}
}

func validate(config *Config) error {
	if config.Database.URL == "" && (config.Database.Host == "" || config.Database.Name == "") {
		return fmt.Errorf("database configuration is incomplete")
	}

	if config.Treasury.MaxRetries < 0 {
		return fmt.Errorf("treasury max retries cannot be negative")
	}

	if config.Treasury.BaseDelaySeconds <= 0 {
		return fmt.Errorf("treasury base delay must be positive")
	}

	if config.Tracker.IntervalSeconds <= 0 {
		return fmt.Errorf("tracker interval must be positive")
	}

	if network := config.Chains.Bitcoin.Network; network != "mainnet" && network != "testnet" {
		return fmt.Errorf("bitcoin network must be mainnet or testnet, got %q", network)
	}

	return nil
}

// RequiredConfirmations resolves the confirmation threshold for a token:
// an explicit per-token override wins, otherwise the owning chain's
// configured default applies.
func (c *ChainsConfig) RequiredConfirmations(tokenSymbol string, chain string) int64 {
	if n, ok := c.ConfirmationOverrides[strings.ToUpper(tokenSymbol)]; ok {
		return n
	}
	switch chain {
	case "evm":
		return c.EVM.RequiredConfirmations
	case "solana":
		return c.Solana.RequiredConfirmations
	case "bitcoin":
		return c.Bitcoin.RequiredConfirmations
	case "cardano":
		return c.Cardano.RequiredConfirmations
	default:
		return 0
	}
}
