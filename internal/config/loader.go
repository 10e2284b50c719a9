package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies CREDBOOK_* environment variable overrides, and
// returns the final Config. An empty path uses the defaults alone. The
// returned Config has NOT been validated; the caller should invoke
// Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known CREDBOOK_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "CREDBOOK_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "CREDBOOK_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "CREDBOOK_WALLET_KEY_PASSWORD")

	// ── Chain ──
	setStr(&cfg.Chain.RPCURL, "CREDBOOK_CHAIN_RPC_URL")
	setStr(&cfg.Chain.RPCURL, "SEPOLIA_RPC_URL") // relay script alias
	setInt64(&cfg.Chain.ChainID, "CREDBOOK_CHAIN_ID")
	setStr(&cfg.Chain.Orderbook, "CREDBOOK_CHAIN_ORDERBOOK")
	setStr(&cfg.Chain.CollateralToken, "CREDBOOK_CHAIN_COLLATERAL_TOKEN")
	setInt(&cfg.Chain.CollateralDecimals, "CREDBOOK_CHAIN_COLLATERAL_DECIMALS")
	setStr(&cfg.Chain.LoanToken, "CREDBOOK_CHAIN_LOAN_TOKEN")
	setInt(&cfg.Chain.LoanDecimals, "CREDBOOK_CHAIN_LOAN_DECIMALS")
	setPools(&cfg.Chain.Pools, "CREDBOOK_CHAIN_POOLS")
	setDuration(&cfg.Chain.CallTimeout, "CREDBOOK_CHAIN_CALL_TIMEOUT")

	// ── Borrow ──
	setStr(&cfg.Borrow.MarketAPR, "CREDBOOK_BORROW_MARKET_APR")
	setDuration(&cfg.Borrow.RefreshInterval, "CREDBOOK_BORROW_REFRESH_INTERVAL")
	setDuration(&cfg.Borrow.PollInterval, "CREDBOOK_BORROW_POLL_INTERVAL")
	setInt(&cfg.Borrow.Confirmations, "CREDBOOK_BORROW_CONFIRMATIONS")

	// ── Relay ──
	setStr(&cfg.Relay.HermesURL, "CREDBOOK_RELAY_HERMES_URL")
	setStr(&cfg.Relay.FeedID, "CREDBOOK_RELAY_FEED_ID")
	setStr(&cfg.Relay.Oracle, "CREDBOOK_RELAY_ORACLE")
	setStr(&cfg.Relay.Oracle, "PYTH_ORACLE_ADDRESS") // relay script alias
	setDuration(&cfg.Relay.Interval, "CREDBOOK_RELAY_INTERVAL")
	setDuration(&cfg.Relay.Staleness, "CREDBOOK_RELAY_STALENESS")
	setStr(&cfg.Relay.UpdateFeeWei, "CREDBOOK_RELAY_UPDATE_FEE_WEI")
	setUint64(&cfg.Relay.GasLimit, "CREDBOOK_RELAY_GAS_LIMIT")
	setDuration(&cfg.Relay.LockTTL, "CREDBOOK_RELAY_LOCK_TTL")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "CREDBOOK_POSTGRES_DSN")
	setStr(&cfg.Postgres.DSN, "DATABASE_URL") // compatibility alias
	setStr(&cfg.Postgres.Host, "CREDBOOK_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "CREDBOOK_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "CREDBOOK_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "CREDBOOK_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "CREDBOOK_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "CREDBOOK_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "CREDBOOK_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "CREDBOOK_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "CREDBOOK_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "CREDBOOK_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "CREDBOOK_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "CREDBOOK_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "CREDBOOK_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "CREDBOOK_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "CREDBOOK_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "CREDBOOK_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "CREDBOOK_S3_REGION")
	setStr(&cfg.S3.Bucket, "CREDBOOK_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "CREDBOOK_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "CREDBOOK_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "CREDBOOK_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "CREDBOOK_S3_FORCE_PATH_STYLE")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "CREDBOOK_ARCHIVE_ENABLED")
	setDuration(&cfg.Archive.Interval, "CREDBOOK_ARCHIVE_INTERVAL")
	setInt(&cfg.Archive.RetentionDays, "CREDBOOK_ARCHIVE_RETENTION_DAYS")
	setBool(&cfg.Archive.Prune, "CREDBOOK_ARCHIVE_PRUNE")

	// ── Server ──
	setInt(&cfg.Server.Port, "CREDBOOK_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "CREDBOOK_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "CREDBOOK_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "CREDBOOK_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "CREDBOOK_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "CREDBOOK_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "CREDBOOK_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "CREDBOOK_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "CREDBOOK_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "CREDBOOK_MODE")
	setStr(&cfg.LogLevel, "CREDBOOK_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint64(dst *uint64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		if cleaned := splitList(v); len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

// setPools parses "address[:name],..." into the pool list.
func setPools(dst *[]PoolConfig, key string) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	var pools []PoolConfig
	for _, item := range splitList(v) {
		addr, name, _ := strings.Cut(item, ":")
		pools = append(pools, PoolConfig{Address: strings.TrimSpace(addr), Name: strings.TrimSpace(name)})
	}
	if len(pools) > 0 {
		*dst = pools
	}
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	cleaned := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			cleaned = append(cleaned, p)
		}
	}
	return cleaned
}
