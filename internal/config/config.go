// Package config defines the CredBook backend configuration and its
// validation rules.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by CREDBOOK_* environment variables.
type Config struct {
	Wallet   WalletConfig   `toml:"wallet"`
	Chain    ChainConfig    `toml:"chain"`
	Borrow   BorrowConfig   `toml:"borrow"`
	Relay    RelayConfig    `toml:"relay"`
	Postgres PostgresConfig `toml:"postgres"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Archive  ArchiveConfig  `toml:"archive"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// WalletConfig holds the operator key. Either a raw hex key or an encrypted
// keyfile may be used; neither is required for read-only serving.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// HasKey reports whether a signing key is configured.
func (w WalletConfig) HasKey() bool {
	return w.PrivateKey != "" || w.EncryptedKeyPath != ""
}

// PoolConfig names one lending pool.
type PoolConfig struct {
	Address string `toml:"address"`
	Name    string `toml:"name"`
}

// ChainConfig holds the RPC endpoint and contract addresses.
type ChainConfig struct {
	RPCURL             string       `toml:"rpc_url"`
	ChainID            int64        `toml:"chain_id"`
	Orderbook          string       `toml:"orderbook"`
	CollateralToken    string       `toml:"collateral_token"`
	CollateralSymbol   string       `toml:"collateral_symbol"`
	CollateralDecimals int          `toml:"collateral_decimals"`
	LoanToken          string       `toml:"loan_token"`
	LoanSymbol         string       `toml:"loan_symbol"`
	LoanDecimals       int          `toml:"loan_decimals"`
	Pools              []PoolConfig `toml:"pools"`
	CallTimeout        duration     `toml:"call_timeout"`
}

// BorrowConfig holds borrower flow parameters.
type BorrowConfig struct {
	MarketAPR       string   `toml:"market_apr"`
	RefreshInterval duration `toml:"refresh_interval"`
	PollInterval    duration `toml:"poll_interval"`
	Confirmations   int      `toml:"confirmations"`
}

// RelayConfig holds the oracle price relay parameters.
type RelayConfig struct {
	HermesURL         string   `toml:"hermes_url"`
	FeedID            string   `toml:"feed_id"`
	Oracle            string   `toml:"oracle"`
	Interval          duration `toml:"interval"`
	Staleness         duration `toml:"staleness"`
	UpdateFeeWei      string   `toml:"update_fee_wei"`
	GasLimit          uint64   `toml:"gas_limit"`
	PriceDecimals     int      `toml:"price_decimals"`
	LockTTL           duration `toml:"lock_ttl"`
	RequestsPerMinute int      `toml:"requests_per_minute"`
}

// PostgresConfig holds PostgreSQL connection parameters. An empty DSN and
// host disable persistence.
type PostgresConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// Enabled reports whether a database is configured.
func (p PostgresConfig) Enabled() bool {
	return strings.TrimSpace(p.DSN) != "" || p.Host != ""
}

// RedisConfig holds Redis connection parameters. An empty address disables
// caching, locking and the event bus.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ArchiveConfig controls exporting old history to S3.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	Interval      duration `toml:"interval"`
	RetentionDays int      `toml:"retention_days"`
	Prune         bool     `toml:"prune"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	// APIKey guards mutating routes when set.
	APIKey          string   `toml:"api_key"`
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config pointing at the Sepolia deployment.
func Defaults() Config {
	return Config{
		Chain: ChainConfig{
			RPCURL:             "https://ethereum-sepolia-rpc.publicnode.com",
			ChainID:            11155111,
			Orderbook:          "0x8b747A7f7015a7B2e78c9B31D37f84FCA3a88f4F",
			CollateralToken:    "0xfFf9976782d46CC05630D1f6eBAb18b2324d6B14",
			CollateralSymbol:   "WETH",
			CollateralDecimals: 18,
			LoanToken:          "0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238",
			LoanSymbol:         "USDC",
			LoanDecimals:       6,
			Pools: []PoolConfig{
				{Address: "0x19c35eE719E44F8412008969F741063868492ea2", Name: "Linear IRM 1"},
				{Address: "0xceaf52C12E2af9B702A845812023387245ae1895", Name: "Linear IRM 2"},
				{Address: "0x6b4e732873153e62FccA6d1BcAc861F1e96BAa57", Name: "Kink IRM 1"},
				{Address: "0x9Ad831EDbe601209fa7F42b51d6466C7297F334B", Name: "Kink IRM 2"},
			},
			CallTimeout: duration{15 * time.Second},
		},
		Borrow: BorrowConfig{
			MarketAPR:       "1000",
			RefreshInterval: duration{30 * time.Second},
			PollInterval:    duration{2 * time.Second},
			Confirmations:   1,
		},
		Relay: RelayConfig{
			HermesURL:         "https://hermes.pyth.network",
			FeedID:            "0xff61491a931112ddf1bd8147cd1b641375f79f5825126d665480874634fd0ace",
			Interval:          duration{60 * time.Second},
			Staleness:         duration{30 * time.Second},
			UpdateFeeWei:      "1000000000000000",
			GasLimit:          500_000,
			PriceDecimals:     36,
			LockTTL:           duration{2 * time.Minute},
			RequestsPerMinute: 30,
		},
		Postgres: PostgresConfig{
			Port:          5432,
			Database:      "credbook",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Region:         "us-east-1",
			Bucket:         "credbook-archive",
			ForcePathStyle: true,
		},
		Archive: ArchiveConfig{
			Interval:      duration{24 * time.Hour},
			RetentionDays: 90,
		},
		Server: ServerConfig{
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000"},
			RateLimit:       120,
			RateLimitWindow: duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"tx_failed", "relay_failed"},
		},
		Mode:     "server",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"server": true,
	"relay":  true,
	"full":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	mode := strings.ToLower(c.Mode)

	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: server, relay, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// The relay pays for updates, so it always needs a key.
	if (mode == "relay" || mode == "full") && !c.Wallet.HasKey() {
		errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode "+c.Mode)
	}
	if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
		errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
	}

	// Chain
	if strings.TrimSpace(c.Chain.RPCURL) == "" {
		errs = append(errs, "chain: rpc_url must not be empty")
	}
	if c.Chain.ChainID <= 0 {
		errs = append(errs, "chain: chain_id must be positive")
	}
	checkAddr(&errs, "chain: orderbook", c.Chain.Orderbook)
	checkAddr(&errs, "chain: collateral_token", c.Chain.CollateralToken)
	checkAddr(&errs, "chain: loan_token", c.Chain.LoanToken)
	checkDecimals(&errs, "chain: collateral_decimals", c.Chain.CollateralDecimals)
	checkDecimals(&errs, "chain: loan_decimals", c.Chain.LoanDecimals)
	for i, p := range c.Chain.Pools {
		checkAddr(&errs, fmt.Sprintf("chain: pools[%d].address", i), p.Address)
	}

	// Borrow
	if strings.TrimSpace(c.Borrow.MarketAPR) == "" {
		errs = append(errs, "borrow: market_apr must not be empty")
	}
	if c.Borrow.RefreshInterval.Duration <= 0 {
		errs = append(errs, "borrow: refresh_interval must be > 0")
	}
	if c.Borrow.Confirmations < 0 {
		errs = append(errs, "borrow: confirmations must be >= 0")
	}

	// Relay
	if mode == "relay" || mode == "full" {
		checkAddr(&errs, "relay: oracle", c.Relay.Oracle)
		if c.Relay.HermesURL == "" {
			errs = append(errs, "relay: hermes_url must not be empty")
		}
		if c.Relay.FeedID == "" {
			errs = append(errs, "relay: feed_id must not be empty")
		}
		if c.Relay.Interval.Duration <= 0 || c.Relay.Staleness.Duration <= 0 {
			errs = append(errs, "relay: interval and staleness must be > 0")
		}
		if c.Relay.GasLimit == 0 {
			errs = append(errs, "relay: gas_limit must be > 0")
		}
	}

	// Postgres
	if c.Postgres.Enabled() {
		if c.Postgres.PoolMaxConns < 1 {
			errs = append(errs, "postgres: pool_max_conns must be >= 1")
		}
		if c.Postgres.PoolMinConns < 0 || c.Postgres.PoolMinConns > c.Postgres.PoolMaxConns {
			errs = append(errs, "postgres: pool_min_conns must be between 0 and pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Addr != "" && c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// Archive
	if c.Archive.Enabled {
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when archive is enabled")
		}
		if !c.Postgres.Enabled() {
			errs = append(errs, "archive: requires postgres")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
	}

	// Server
	if mode == "server" || mode == "full" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

func checkAddr(errs *[]string, field, v string) {
	if !common.IsHexAddress(v) {
		*errs = append(*errs, fmt.Sprintf("%s %q is not a hex address", field, v))
	}
}

func checkDecimals(errs *[]string, field string, v int) {
	if v < 0 || v > 18 {
		*errs = append(*errs, fmt.Sprintf("%s must be 0-18, got %d", field, v))
	}
}
