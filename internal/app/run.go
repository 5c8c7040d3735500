package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/spikebot/internal/config"
	"github.com/alanyoungcy/spikebot/internal/pipeline"
	"github.com/alanyoungcy/spikebot/internal/server"
	"github.com/alanyoungcy/spikebot/internal/server/handler"
)

// run starts every engine worker plus the optional archiver and HTTP server,
// then blocks until the context is cancelled or a worker fails.
func (a *App) run(ctx context.Context, deps *Dependencies) error {
	g, ctx := errgroup.WithContext(ctx)

	scanner := pipeline.NewMarketScanner(deps.Store, deps.Gamma, pipeline.MarketScannerConfig{
		PageSize:     a.cfg.Discovery.PageSize,
		MaxPages:     a.cfg.Discovery.MaxPages,
		MinLiquidity: a.cfg.Discovery.MinLiquidity,
	}, a.logger)
	g.Go(func() error {
		err := scanner.RunLoop(ctx, a.cfg.Discovery.Interval.Duration)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("market scanner loop: %w", err)
	})

	poller := pipeline.NewPricePoller(deps.Store, deps.Prices, a.cfg.Prices.BatchSize, a.logger)
	g.Go(func() error {
		err := poller.RunLoop(ctx, a.cfg.Prices.Interval.Duration)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("price poller loop: %w", err)
	})

	detector := pipeline.NewSpikeDetector(deps.Store, deps.Gateway, deps.Hooks, a.cfg.Spike.Threshold, a.logger)
	g.Go(func() error {
		err := detector.RunLoop(ctx, a.cfg.Spike.Interval.Duration)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("spike detector loop: %w", err)
	})

	exits := pipeline.NewExitManager(deps.Store, deps.Gateway, deps.Hooks, exitRules(a.cfg.Exit), a.cfg.Engine.TradeSize, a.logger)
	g.Go(func() error {
		err := exits.RunLoop(ctx, a.cfg.Exit.Interval.Duration)
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("exit manager loop: %w", err)
	})

	if deps.Archive != nil {
		archiver := pipeline.NewArchiver(deps.Archive, a.cfg.Archive.RetentionDays, a.logger)
		g.Go(func() error {
			err := archiver.RunCron(ctx, a.cfg.Archive.Cron)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("archiver cron: %w", err)
		})
	}

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps)
	}

	a.logger.InfoContext(ctx, "engine workers started",
		slog.Duration("discovery_interval", a.cfg.Discovery.Interval.Duration),
		slog.Duration("price_interval", a.cfg.Prices.Interval.Duration),
		slog.Duration("spike_interval", a.cfg.Spike.Interval.Duration),
		slog.Duration("exit_interval", a.cfg.Exit.Interval.Duration),
	)

	err := g.Wait()
	if err != nil {
		// A worker died on its own; the group context is already cancelled,
		// so the alert gets a detached one.
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		deps.Notify.NotifyError(nctx, "engine", err)
		cancel()
	}
	return err
}

// startServer registers the HTTP surface and launches the serve and shutdown
// goroutines on the group.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies) {
	handlers := server.Handlers{
		Health: handler.NewHealthHandler(a.cfg.Mode, a.logger),
	}
	if deps.Blobs != nil {
		handlers.Archives = handler.NewArchivesHandler(deps.Blobs, a.cfg.Archive.Prefix, a.logger)
	}

	srv := server.NewServer(server.Config{
		Port:   a.cfg.Server.Port,
		APIKey: a.cfg.Server.APIKey,
	}, handlers, a.logger)

	g.Go(func() error {
		a.logger.InfoContext(ctx, "HTTP server listening",
			slog.Int("port", a.cfg.Server.Port),
			slog.String("url", fmt.Sprintf("http://localhost:%d", a.cfg.Server.Port)))
		if err := srv.Start(); err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		a.logger.Info("HTTP server shutting down")
		return srv.Shutdown(shutCtx)
	})
}

// exitRules converts the optional exit thresholds from their config form.
func exitRules(cfg config.ExitConfig) pipeline.ExitRules {
	rules := pipeline.ExitRules{
		TakeProfitPct:  cfg.TakeProfitPct,
		TakeProfitCash: cfg.TakeProfitCash,
		StopLossPct:    cfg.StopLossPct,
		StopLossCash:   cfg.StopLossCash,
	}
	if cfg.MaxHolding != nil {
		d := cfg.MaxHolding.Duration
		rules.MaxHolding = &d
	}
	return rules
}
