package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/spikebot/internal/blob/s3"
	busredis "github.com/alanyoungcy/spikebot/internal/bus/redis"
	"github.com/alanyoungcy/spikebot/internal/config"
	"github.com/alanyoungcy/spikebot/internal/crypto"
	"github.com/alanyoungcy/spikebot/internal/domain"
	"github.com/alanyoungcy/spikebot/internal/execution"
	"github.com/alanyoungcy/spikebot/internal/feed"
	journalpg "github.com/alanyoungcy/spikebot/internal/journal/postgres"
	"github.com/alanyoungcy/spikebot/internal/notify"
	"github.com/alanyoungcy/spikebot/internal/pipeline"
	"github.com/alanyoungcy/spikebot/internal/platform/polymarket"
	"github.com/alanyoungcy/spikebot/internal/state"
)

// Dependencies bundles everything the engine workers need to operate. It is
// constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Store is the in-memory state shared by all workers.
	Store *state.Store

	// External API clients.
	Gamma *polymarket.GammaClient
	Clob  *polymarket.ClobClient

	// Gateway executes orders: paper fills or real CLOB orders.
	Gateway execution.Gateway

	// Prices feeds the price poller, either REST midpoints or the
	// WebSocket quote cache.
	Prices pipeline.PriceSource

	// Hooks fan trade lifecycle events out to the journal, the event bus,
	// and the notifier. Fields inside may be nil.
	Hooks pipeline.TradeHooks

	// Notify is the alert fan-out behind Hooks.Notifier, kept concrete so
	// the runner can send engine-level error alerts.
	Notify *notify.Notifier

	// Archive exports old journal rows to object storage. Nil when
	// archival is disabled.
	Archive domain.Archiver

	// Blobs reads archived objects back for the operational endpoints.
	// Nil when archival is disabled.
	Blobs domain.BlobReader
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{
		Store: state.NewStore(
			cfg.Engine.HistoryCap,
			cfg.Engine.MaxOpenTrades,
			cfg.Engine.EntryCooldown.Duration,
		),
		Gamma: polymarket.NewGammaClient(cfg.Polymarket.GammaHost),
	}

	// --- Execution gateway ---
	switch cfg.Mode {
	case "live":
		keyHex, err := crypto.LoadKey(crypto.KeyConfig{
			RawPrivateKey:    cfg.Wallet.PrivateKey,
			EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
			KeyPassword:      cfg.Wallet.KeyPassword,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: load wallet key: %w", err)
		}
		signer, err := crypto.NewSigner(keyHex, cfg.Polymarket.ChainID)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: signer: %w", err)
		}

		// Pre-derived credentials from config take priority; otherwise the
		// L1 auth flow derives a key at startup.
		var hmac *crypto.HMACAuth
		if cfg.Polymarket.ApiKey != "" {
			hmac = &crypto.HMACAuth{
				Key:        cfg.Polymarket.ApiKey,
				Secret:     cfg.Polymarket.ApiSecret,
				Passphrase: cfg.Polymarket.ApiPassphrase,
			}
		}
		deps.Clob = polymarket.NewClobClient(cfg.Polymarket.ClobHost, signer, hmac)
		if hmac == nil {
			if err := deps.Clob.DeriveAPIKey(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: derive api key: %w", err)
			}
		}

		live := execution.NewLive(deps.Clob, signer, execution.LiveOptions{
			TradeSize:     cfg.Engine.TradeSize,
			Slippage:      cfg.Engine.Slippage,
			FunderAddress: cfg.Wallet.SafeAddress,
			SignatureType: cfg.Polymarket.SignatureType,
		}, logger)
		closers = append(closers, func() {
			cctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := live.Close(cctx); err != nil {
				logger.Warn("cancelling open orders on shutdown failed",
					slog.String("error", err.Error()))
			}
		})
		deps.Gateway = live

	default: // paper
		deps.Clob = polymarket.NewClobClient(cfg.Polymarket.ClobHost, nil, nil)
		deps.Gateway = execution.NewPaper(cfg.Engine.TradeSize, logger)
	}

	// --- Price source ---
	switch cfg.Prices.Source {
	case "ws":
		ws := feed.NewWSSource(polymarket.NewWSClient(cfg.Polymarket.WsHost), 0, logger)
		if err := ws.Start(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: connect websocket: %w", err)
		}
		closers = append(closers, func() { _ = ws.Close() })
		deps.Prices = ws
	default: // rest
		deps.Prices = feed.NewRESTSource(deps.Clob)
	}

	// --- Trade journal (PostgreSQL) ---
	var journal *journalpg.TradeJournal
	if cfg.Journal.Enabled {
		pgClient, err := journalpg.New(ctx, journalpg.ClientConfig{
			DSN:      cfg.Journal.DSN,
			Host:     cfg.Journal.Host,
			Port:     cfg.Journal.Port,
			Database: cfg.Journal.Database,
			User:     cfg.Journal.User,
			Password: cfg.Journal.Password,
			SSLMode:  cfg.Journal.SSLMode,
			MaxConns: cfg.Journal.PoolMaxConns,
			MinConns: cfg.Journal.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: journal postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Journal.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: journal migrations: %w", err)
			}
		}

		journal = journalpg.NewTradeJournal(pgClient.Pool())
		deps.Hooks.Journal = journal
	}

	// --- Event bus (Redis) ---
	if cfg.Bus.Enabled {
		busClient, err := busredis.New(ctx, busredis.ClientConfig{
			Addr:       cfg.Bus.Addr,
			Password:   cfg.Bus.Password,
			DB:         cfg.Bus.DB,
			PoolSize:   cfg.Bus.PoolSize,
			MaxRetries: cfg.Bus.MaxRetries,
			TLSEnabled: cfg.Bus.TLSEnabled,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis bus: %w", err)
		}
		closers = append(closers, func() { _ = busClient.Close() })

		deps.Hooks.Bus = busredis.NewEventBus(busClient, cfg.Bus.Channel, cfg.Bus.Stream)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notify = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	deps.Hooks.Notifier = deps.Notify

	// --- Closed-trade archival (S3) ---
	// Validation guarantees the journal is enabled whenever archival is.
	if cfg.Archive.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.Archive.S3.Endpoint,
			Region:         cfg.Archive.S3.Region,
			Bucket:         cfg.Archive.S3.Bucket,
			AccessKey:      cfg.Archive.S3.AccessKey,
			SecretKey:      cfg.Archive.S3.SecretKey,
			UseSSL:         cfg.Archive.S3.UseSSL,
			ForcePathStyle: cfg.Archive.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3 blob: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3 blob: %w", err)
		}

		reader := s3blob.NewReader(s3Client)
		deps.Archive = s3blob.NewTradeArchive(
			journal,
			s3blob.NewWriter(s3Client),
			reader,
			cfg.Archive.Prefix,
			logger,
		)
		deps.Blobs = reader
	}

	return deps, cleanup, nil
}
