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
// built-in defaults, applies SPIKEBOT_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	// Normalize enum fields so downstream switches can match exactly.
	cfg.Mode = strings.ToLower(cfg.Mode)
	cfg.LogLevel = strings.ToLower(cfg.LogLevel)
	cfg.Prices.Source = strings.ToLower(cfg.Prices.Source)

	return &cfg, nil
}

// applyEnvOverrides reads well-known SPIKEBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setInt(&cfg.Engine.HistoryCap, "SPIKEBOT_ENGINE_HISTORY_CAP")
	setInt(&cfg.Engine.MaxOpenTrades, "SPIKEBOT_ENGINE_MAX_OPEN_TRADES")
	setDuration(&cfg.Engine.EntryCooldown, "SPIKEBOT_ENGINE_ENTRY_COOLDOWN")
	setFloat64(&cfg.Engine.TradeSize, "SPIKEBOT_ENGINE_TRADE_SIZE")
	setFloat64(&cfg.Engine.Slippage, "SPIKEBOT_ENGINE_SLIPPAGE")

	// ── Discovery ──
	setDuration(&cfg.Discovery.Interval, "SPIKEBOT_DISCOVERY_INTERVAL")
	setFloat64(&cfg.Discovery.MinLiquidity, "SPIKEBOT_DISCOVERY_MIN_LIQUIDITY")
	setInt(&cfg.Discovery.PageSize, "SPIKEBOT_DISCOVERY_PAGE_SIZE")
	setInt(&cfg.Discovery.MaxPages, "SPIKEBOT_DISCOVERY_MAX_PAGES")

	// ── Prices ──
	setDuration(&cfg.Prices.Interval, "SPIKEBOT_PRICES_INTERVAL")
	setStr(&cfg.Prices.Source, "SPIKEBOT_PRICES_SOURCE")
	setInt(&cfg.Prices.BatchSize, "SPIKEBOT_PRICES_BATCH_SIZE")

	// ── Spike ──
	setDuration(&cfg.Spike.Interval, "SPIKEBOT_SPIKE_INTERVAL")
	setFloat64(&cfg.Spike.Threshold, "SPIKEBOT_SPIKE_THRESHOLD")

	// ── Exit ──
	setDuration(&cfg.Exit.Interval, "SPIKEBOT_EXIT_INTERVAL")
	setFloat64Ptr(&cfg.Exit.TakeProfitPct, "SPIKEBOT_EXIT_TAKE_PROFIT_PCT")
	setFloat64Ptr(&cfg.Exit.TakeProfitCash, "SPIKEBOT_EXIT_TAKE_PROFIT_CASH")
	setFloat64Ptr(&cfg.Exit.StopLossPct, "SPIKEBOT_EXIT_STOP_LOSS_PCT")
	setFloat64Ptr(&cfg.Exit.StopLossCash, "SPIKEBOT_EXIT_STOP_LOSS_CASH")
	setDurationPtr(&cfg.Exit.MaxHolding, "SPIKEBOT_EXIT_MAX_HOLDING")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "SPIKEBOT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.SafeAddress, "SPIKEBOT_WALLET_SAFE_ADDRESS")
	setStr(&cfg.Wallet.EncryptedKeyPath, "SPIKEBOT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "SPIKEBOT_WALLET_KEY_PASSWORD")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "SPIKEBOT_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "SPIKEBOT_POLYMARKET_GAMMA_HOST")
	setStr(&cfg.Polymarket.WsHost, "SPIKEBOT_POLYMARKET_WS_HOST")
	setInt(&cfg.Polymarket.ChainID, "SPIKEBOT_POLYMARKET_CHAIN_ID")
	setInt(&cfg.Polymarket.SignatureType, "SPIKEBOT_POLYMARKET_SIGNATURE_TYPE")
	setStr(&cfg.Polymarket.ApiKey, "SPIKEBOT_POLYMARKET_API_KEY")
	setStr(&cfg.Polymarket.ApiSecret, "SPIKEBOT_POLYMARKET_API_SECRET")
	setStr(&cfg.Polymarket.ApiPassphrase, "SPIKEBOT_POLYMARKET_API_PASSPHRASE")

	// ── Journal ──
	setBool(&cfg.Journal.Enabled, "SPIKEBOT_JOURNAL_ENABLED")
	setStr(&cfg.Journal.DSN, "SPIKEBOT_JOURNAL_DSN")
	setStr(&cfg.Journal.Host, "SPIKEBOT_JOURNAL_HOST")
	setInt(&cfg.Journal.Port, "SPIKEBOT_JOURNAL_PORT")
	setStr(&cfg.Journal.Database, "SPIKEBOT_JOURNAL_DATABASE")
	setStr(&cfg.Journal.User, "SPIKEBOT_JOURNAL_USER")
	setStr(&cfg.Journal.Password, "SPIKEBOT_JOURNAL_PASSWORD")
	setStr(&cfg.Journal.SSLMode, "SPIKEBOT_JOURNAL_SSLMODE")
	setStr(&cfg.Journal.SSLMode, "SPIKEBOT_JOURNAL_SSL_MODE") // compatibility alias
	setInt(&cfg.Journal.PoolMaxConns, "SPIKEBOT_JOURNAL_POOL_MAX_CONNS")
	setInt(&cfg.Journal.PoolMinConns, "SPIKEBOT_JOURNAL_POOL_MIN_CONNS")
	setBool(&cfg.Journal.RunMigrations, "SPIKEBOT_JOURNAL_RUN_MIGRATIONS")

	// ── Bus ──
	setBool(&cfg.Bus.Enabled, "SPIKEBOT_BUS_ENABLED")
	setStr(&cfg.Bus.Addr, "SPIKEBOT_BUS_ADDR")
	setStr(&cfg.Bus.Password, "SPIKEBOT_BUS_PASSWORD")
	setInt(&cfg.Bus.DB, "SPIKEBOT_BUS_DB")
	setInt(&cfg.Bus.PoolSize, "SPIKEBOT_BUS_POOL_SIZE")
	setInt(&cfg.Bus.MaxRetries, "SPIKEBOT_BUS_MAX_RETRIES")
	setBool(&cfg.Bus.TLSEnabled, "SPIKEBOT_BUS_TLS_ENABLED")
	setStr(&cfg.Bus.Channel, "SPIKEBOT_BUS_CHANNEL")
	setStr(&cfg.Bus.Stream, "SPIKEBOT_BUS_STREAM")

	// ── Archive ──
	setBool(&cfg.Archive.Enabled, "SPIKEBOT_ARCHIVE_ENABLED")
	setStr(&cfg.Archive.Cron, "SPIKEBOT_ARCHIVE_CRON")
	setInt(&cfg.Archive.RetentionDays, "SPIKEBOT_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Archive.Prefix, "SPIKEBOT_ARCHIVE_PREFIX")
	setStr(&cfg.Archive.S3.Endpoint, "SPIKEBOT_ARCHIVE_S3_ENDPOINT")
	setStr(&cfg.Archive.S3.Region, "SPIKEBOT_ARCHIVE_S3_REGION")
	setStr(&cfg.Archive.S3.Bucket, "SPIKEBOT_ARCHIVE_S3_BUCKET")
	setStr(&cfg.Archive.S3.AccessKey, "SPIKEBOT_ARCHIVE_S3_ACCESS_KEY")
	setStr(&cfg.Archive.S3.SecretKey, "SPIKEBOT_ARCHIVE_S3_SECRET_KEY")
	setBool(&cfg.Archive.S3.UseSSL, "SPIKEBOT_ARCHIVE_S3_USE_SSL")
	setBool(&cfg.Archive.S3.ForcePathStyle, "SPIKEBOT_ARCHIVE_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "SPIKEBOT_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "SPIKEBOT_SERVER_PORT")
	setStr(&cfg.Server.APIKey, "SPIKEBOT_SERVER_API_KEY")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "SPIKEBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "SPIKEBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "SPIKEBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "SPIKEBOT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "SPIKEBOT_MODE")
	setStr(&cfg.LogLevel, "SPIKEBOT_LOG_LEVEL")
	setStr(&cfg.LogFile, "SPIKEBOT_LOG_FILE")
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

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setFloat64Ptr(dst **float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = &f
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

func setDurationPtr(dst **duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = &duration{d}
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
