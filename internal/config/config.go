// Package config defines the top-level configuration for the spike engine
// and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by SPIKEBOT_* environment variables.
type Config struct {
	Engine     EngineConfig     `toml:"engine"`
	Discovery  DiscoveryConfig  `toml:"discovery"`
	Prices     PricesConfig     `toml:"prices"`
	Spike      SpikeConfig      `toml:"spike"`
	Exit       ExitConfig       `toml:"exit"`
	Wallet     WalletConfig     `toml:"wallet"`
	Polymarket PolymarketConfig `toml:"polymarket"`
	Journal    JournalConfig    `toml:"journal"`
	Bus        BusConfig        `toml:"bus"`
	Archive    ArchiveConfig    `toml:"archive"`
	Server     ServerConfig     `toml:"server"`
	Notify     NotifyConfig     `toml:"notify"`
	Mode       string           `toml:"mode"`
	LogLevel   string           `toml:"log_level"`
	LogFile    string           `toml:"log_file"`
}

// EngineConfig holds the shared-state limits that bound the engine.
type EngineConfig struct {
	HistoryCap    int      `toml:"history_cap"`
	MaxOpenTrades int      `toml:"max_open_trades"`
	EntryCooldown duration `toml:"entry_cooldown"`
	TradeSize     float64  `toml:"trade_size"`
	Slippage      float64  `toml:"slippage"`
}

// DiscoveryConfig holds market-discovery polling parameters.
type DiscoveryConfig struct {
	Interval     duration `toml:"interval"`
	MinLiquidity float64  `toml:"min_liquidity"`
	PageSize     int      `toml:"page_size"`
	MaxPages     int      `toml:"max_pages"`
}

// PricesConfig holds price-ingestion parameters.
type PricesConfig struct {
	Interval  duration `toml:"interval"`
	Source    string   `toml:"source"` // "rest" or "ws"
	BatchSize int      `toml:"batch_size"`
}

// SpikeConfig holds the entry-signal parameters.
type SpikeConfig struct {
	Interval  duration `toml:"interval"`
	Threshold float64  `toml:"threshold"` // fraction, e.g. 0.05 for a 5 % rise
}

// ExitConfig holds the exit rules. Each threshold is optional; a rule whose
// field is absent from the TOML file is never evaluated. Loss thresholds
// carry their sign: a rule fires when PnL drops to or below the (negative)
// configured value.
type ExitConfig struct {
	Interval       duration  `toml:"interval"`
	TakeProfitPct  *float64  `toml:"take_profit_pct"`
	TakeProfitCash *float64  `toml:"take_profit_cash"`
	StopLossPct    *float64  `toml:"stop_loss_pct"`
	StopLossCash   *float64  `toml:"stop_loss_cash"`
	MaxHolding     *duration `toml:"max_holding"`
}

// WalletConfig holds Ethereum wallet credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	SafeAddress      string `toml:"safe_address"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PolymarketConfig holds Polymarket API endpoints, chain parameters, and
// optional pre-derived API credentials.
type PolymarketConfig struct {
	ClobHost      string `toml:"clob_host"`
	GammaHost     string `toml:"gamma_host"`
	WsHost        string `toml:"ws_host"`
	ChainID       int    `toml:"chain_id"`
	SignatureType int    `toml:"signature_type"`
	ApiKey        string `toml:"api_key"`
	ApiSecret     string `toml:"api_secret"`
	ApiPassphrase string `toml:"api_passphrase"`
}

// JournalConfig holds PostgreSQL connection parameters for the trade journal.
type JournalConfig struct {
	Enabled       bool   `toml:"enabled"`
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

// BusConfig holds Redis connection parameters for the trade event bus.
type BusConfig struct {
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
	Channel    string `toml:"channel"`
	Stream     string `toml:"stream"`
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

// ArchiveConfig holds closed-trade archival parameters.
type ArchiveConfig struct {
	Enabled       bool     `toml:"enabled"`
	Cron          string   `toml:"cron"`
	RetentionDays int      `toml:"retention_days"`
	Prefix        string   `toml:"prefix"`
	S3            S3Config `toml:"s3"`
}

// ServerConfig holds parameters for the health/metrics HTTP server.
type ServerConfig struct {
	Enabled bool   `toml:"enabled"`
	Port    int    `toml:"port"`
	APIKey  string `toml:"api_key"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
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

// Defaults returns a Config populated with reasonable default values.
// These match the values in spikebot.example.toml.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			HistoryCap:    50,
			MaxOpenTrades: 5,
			EntryCooldown: duration{10 * time.Minute},
			TradeSize:     20.0,
			Slippage:      0.02,
		},
		Discovery: DiscoveryConfig{
			Interval:     duration{5 * time.Minute},
			MinLiquidity: 1000.0,
			PageSize:     100,
			MaxPages:     50,
		},
		Prices: PricesConfig{
			Interval:  duration{15 * time.Second},
			Source:    "rest",
			BatchSize: 100,
		},
		Spike: SpikeConfig{
			Interval:  duration{15 * time.Second},
			Threshold: 0.05,
		},
		Exit: ExitConfig{
			Interval: duration{10 * time.Second},
		},
		Polymarket: PolymarketConfig{
			ClobHost:      "https://clob.polymarket.com",
			GammaHost:     "https://gamma-api.polymarket.com",
			WsHost:        "wss://ws-subscriptions-clob.polymarket.com",
			ChainID:       137,
			SignatureType: 2,
		},
		Journal: JournalConfig{
			Enabled:       false,
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Bus: BusConfig{
			Enabled:    false,
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
			Channel:    "spikebot:trades",
			Stream:     "spikebot:trades:stream",
		},
		Archive: ArchiveConfig{
			Enabled:       false,
			Cron:          "0 3 1 * *",
			RetentionDays: 90,
			Prefix:        "archive/trades",
			S3: S3Config{
				Endpoint:       "http://localhost:9000",
				Region:         "us-east-1",
				Bucket:         "spikebot-data",
				UseSSL:         false,
				ForcePathStyle: true,
			},
		},
		Server: ServerConfig{
			Enabled: true,
			Port:    8000,
		},
		Notify: NotifyConfig{
			Events: []string{"trade_entry", "trade_exit", "error"},
		},
		Mode:     "paper",
		LogLevel: "info",
		LogFile:  "spikebot.log",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"paper": true,
	"live":  true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// validPriceSources enumerates the accepted values for Prices.Source.
var validPriceSources = map[string]bool{
	"rest": true,
	"ws":   true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	// Mode
	if !validModes[c.Mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: paper, live)", c.Mode))
	}

	// LogLevel
	if !validLogLevels[c.LogLevel] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine
	if c.Engine.HistoryCap < 2 {
		errs = append(errs, fmt.Sprintf("engine: history_cap must be >= 2 to compute a delta, got %d", c.Engine.HistoryCap))
	}
	if c.Engine.MaxOpenTrades < 1 {
		errs = append(errs, "engine: max_open_trades must be >= 1")
	}
	if c.Engine.EntryCooldown.Duration < 0 {
		errs = append(errs, "engine: entry_cooldown must not be negative")
	}
	if c.Engine.TradeSize <= 0 {
		errs = append(errs, "engine: trade_size must be > 0")
	}
	if c.Engine.Slippage < 0 || c.Engine.Slippage >= 0.5 {
		errs = append(errs, fmt.Sprintf("engine: slippage must be in [0, 0.5), got %g", c.Engine.Slippage))
	}

	// Discovery
	if c.Discovery.Interval.Duration <= 0 {
		errs = append(errs, "discovery: interval must be > 0")
	}
	if c.Discovery.PageSize < 1 {
		errs = append(errs, "discovery: page_size must be >= 1")
	}
	if c.Discovery.MaxPages < 1 {
		errs = append(errs, "discovery: max_pages must be >= 1")
	}
	if c.Discovery.MinLiquidity < 0 {
		errs = append(errs, "discovery: min_liquidity must not be negative")
	}

	// Prices
	if c.Prices.Interval.Duration <= 0 {
		errs = append(errs, "prices: interval must be > 0")
	}
	if !validPriceSources[c.Prices.Source] {
		errs = append(errs, fmt.Sprintf("prices: unknown source %q (valid: rest, ws)", c.Prices.Source))
	}
	if c.Prices.BatchSize < 1 {
		errs = append(errs, "prices: batch_size must be >= 1")
	}

	// Spike
	if c.Spike.Interval.Duration <= 0 {
		errs = append(errs, "spike: interval must be > 0")
	}
	if c.Spike.Threshold <= 0 {
		errs = append(errs, "spike: threshold must be > 0")
	}

	// Exit thresholds are optional, but when present they must make sense.
	if c.Exit.Interval.Duration <= 0 {
		errs = append(errs, "exit: interval must be > 0")
	}
	if c.Exit.TakeProfitPct != nil && *c.Exit.TakeProfitPct <= 0 {
		errs = append(errs, "exit: take_profit_pct must be > 0 when set")
	}
	if c.Exit.TakeProfitCash != nil && *c.Exit.TakeProfitCash <= 0 {
		errs = append(errs, "exit: take_profit_cash must be > 0 when set")
	}
	if c.Exit.StopLossPct != nil && *c.Exit.StopLossPct >= 0 {
		errs = append(errs, "exit: stop_loss_pct must be negative when set (e.g. -0.05)")
	}
	if c.Exit.StopLossCash != nil && *c.Exit.StopLossCash >= 0 {
		errs = append(errs, "exit: stop_loss_cash must be negative when set (e.g. -50)")
	}
	if c.Exit.MaxHolding != nil && c.Exit.MaxHolding.Duration <= 0 {
		errs = append(errs, "exit: max_holding must be > 0 when set")
	}

	// Wallet checks: live trading needs a key source.
	if c.Mode == "live" {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for mode live")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
		if c.Polymarket.SignatureType == 2 && c.Wallet.SafeAddress == "" {
			errs = append(errs, "wallet: safe_address is required for signature_type 2")
		}
	}

	// Polymarket endpoints
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Prices.Source == "ws" && c.Polymarket.WsHost == "" {
		errs = append(errs, "polymarket: ws_host must not be empty when prices.source is ws")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}
	if c.Polymarket.SignatureType != 1 && c.Polymarket.SignatureType != 2 {
		errs = append(errs, fmt.Sprintf("polymarket: signature_type must be 1 (EOA) or 2 (Safe), got %d", c.Polymarket.SignatureType))
	}
	// API credentials must be set together, or all empty (derived at startup).
	ak := c.Polymarket.ApiKey != ""
	as := c.Polymarket.ApiSecret != ""
	ap := c.Polymarket.ApiPassphrase != ""
	if ak || as || ap {
		if !(ak && as && ap) {
			errs = append(errs, "polymarket: api_key, api_secret, and api_passphrase must all be set together")
		}
	}

	// Journal
	if c.Journal.Enabled {
		if strings.TrimSpace(c.Journal.DSN) == "" {
			if c.Journal.Host == "" {
				errs = append(errs, "journal: host must not be empty (or set journal.dsn)")
			}
			if c.Journal.Port <= 0 || c.Journal.Port > 65535 {
				errs = append(errs, fmt.Sprintf("journal: port must be 1-65535, got %d", c.Journal.Port))
			}
			if c.Journal.Database == "" {
				errs = append(errs, "journal: database must not be empty")
			}
		}
		if c.Journal.PoolMaxConns < 1 {
			errs = append(errs, "journal: pool_max_conns must be >= 1")
		}
		if c.Journal.PoolMinConns < 0 {
			errs = append(errs, "journal: pool_min_conns must be >= 0")
		}
		if c.Journal.PoolMinConns > c.Journal.PoolMaxConns {
			errs = append(errs, "journal: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Bus
	if c.Bus.Enabled {
		if c.Bus.Addr == "" {
			errs = append(errs, "bus: addr must not be empty")
		}
		if c.Bus.PoolSize < 1 {
			errs = append(errs, "bus: pool_size must be >= 1")
		}
		if c.Bus.Channel == "" {
			errs = append(errs, "bus: channel must not be empty")
		}
		if c.Bus.Stream == "" {
			errs = append(errs, "bus: stream must not be empty")
		}
	}

	// Archive
	if c.Archive.Enabled {
		if !c.Journal.Enabled {
			errs = append(errs, "archive: requires journal.enabled (closed trades are archived from the journal)")
		}
		if c.Archive.Cron == "" {
			errs = append(errs, "archive: cron must not be empty")
		}
		if c.Archive.RetentionDays < 1 {
			errs = append(errs, "archive: retention_days must be >= 1")
		}
		if c.Archive.S3.Endpoint == "" {
			errs = append(errs, "archive: s3.endpoint must not be empty")
		}
		if c.Archive.S3.Bucket == "" {
			errs = append(errs, "archive: s3.bucket must not be empty")
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
