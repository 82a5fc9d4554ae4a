package app

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/polyradar/internal/detector"
	"github.com/alanyoungcy/polyradar/internal/lifecycle"
	"github.com/alanyoungcy/polyradar/internal/notify"
	"github.com/alanyoungcy/polyradar/internal/pipeline"
	"github.com/alanyoungcy/polyradar/internal/resolution"
	"github.com/alanyoungcy/polyradar/internal/scanner"
	"github.com/alanyoungcy/polyradar/internal/server"
	"github.com/alanyoungcy/polyradar/internal/server/handler"
	"github.com/alanyoungcy/polyradar/internal/server/ws"
	"github.com/alanyoungcy/polyradar/internal/service"
	"github.com/alanyoungcy/polyradar/internal/watchlist"
)

// leaderboardSize is how many candidates are taken from each leaderboard
// during a watchlist rebuild.
const leaderboardSize = 50

// buildCycle assembles the scan → detect → lifecycle → alert pipeline.
func (a *App) buildCycle(deps *Dependencies) *pipeline.ScanCycle {
	sc := scanner.New(
		deps.DataClient, deps.TraderStore, deps.SnapshotStore, deps.ChangeStore,
		a.cfg.Radar.ScanConcurrency, a.logger,
	)
	det := detector.New(
		deps.TraderStore, deps.SignalStore, deps.ChangeStore,
		deps.TraderCache, deps.LockManager, deps.SignalBus,
		a.cfg.Radar.Window.Duration, a.logger,
	)
	lc := lifecycle.New(deps.SignalStore, a.cfg.Radar.Window.Duration, a.logger)
	alerter := notify.NewAlerter(deps.SignalStore, deps.Notifier, a.alertFilter(), a.logger)

	return pipeline.NewScanCycle(sc, det, lc, alerter, deps.LockManager, deps.AuditStore, a.logger)
}

// buildWatchlist assembles the watchlist builder.
func (a *App) buildWatchlist(deps *Dependencies) *watchlist.Builder {
	return watchlist.New(
		deps.DataClient, deps.DataClient, deps.TraderStore, deps.TraderCache,
		leaderboardSize, a.cfg.Watchlist.MinClosedTrades, a.cfg.Watchlist.Concurrency,
		a.logger,
	)
}

func (a *App) alertFilter() notify.AlertFilter {
	return notify.AlertFilter{
		MaxTier:            a.cfg.Alerts.MaxTier,
		MinEntryPrice:      a.cfg.Alerts.MinEntryPrice,
		MaxEntryPrice:      a.cfg.Alerts.MaxEntryPrice,
		ExcludedCategories: a.cfg.Alerts.ExcludedCategories,
	}
}

// FullMode runs everything: the orchestrated loops plus the API server.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	var archiver *pipeline.Archiver
	if deps.Archiver != nil {
		archiver = pipeline.NewArchiver(
			deps.Archiver, a.cfg.Radar.RetentionDays, a.cfg.Radar.ArchiveCron, a.logger,
		)
	}

	orch := pipeline.NewOrchestrator(
		a.buildCycle(deps),
		resolution.New(deps.SignalStore, deps.GammaClient, deps.SignalBus, a.logger),
		a.buildWatchlist(deps),
		archiver,
		pipeline.Intervals{
			Scan:       a.cfg.Radar.ScanInterval.Duration,
			Resolution: a.cfg.Radar.ResolutionInterval.Duration,
			Watchlist:  a.cfg.Watchlist.RebuildInterval.Duration,
		},
		a.logger,
	)

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return orch.Run(ctx) })

	if a.cfg.Server.Enabled {
		a.startServer(ctx, g, deps, "full")
	}

	return g.Wait()
}

// ScanMode runs a single scan cycle and exits.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode (one cycle)")
	return a.buildCycle(deps).Run(ctx, a.cfg.Radar.ScanInterval.Duration)
}

// WatchlistMode runs a single watchlist rebuild and exits.
func (a *App) WatchlistMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watchlist mode (one rebuild)")
	_, err := a.buildWatchlist(deps).Run(ctx)
	return err
}

// ServerMode runs only the API server and WebSocket hub.
func (a *App) ServerMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting server mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startServer(ctx, g, deps, "server")
	return g.Wait()
}

// startServer builds the HTTP server and WebSocket hub and launches them on
// the errgroup, with a shutdown goroutine tied to ctx.
func (a *App) startServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, mode string) {
	signalSvc := service.NewSignalService(deps.SignalStore, a.logger)
	traderSvc := service.NewTraderService(deps.TraderStore, deps.TraderCache, deps.ChangeStore, a.logger)
	dashboardSvc := service.NewDashboardService(deps.SignalStore, deps.TraderStore, a.logger)

	hub := ws.NewHub(deps.SignalBus, mode, a.logger)

	srv := server.NewServer(
		server.Config{
			Port:        a.cfg.Server.Port,
			CORSOrigins: a.cfg.Server.CORSOrigins,
			APIKey:      a.cfg.Server.APIKey,
			RateLimit:   a.cfg.Server.RateLimit,
			RateWindow:  a.cfg.Server.RateWindow.Duration,
		},
		server.Handlers{
			Health:    handler.NewHealthHandler(a.logger),
			Signals:   handler.NewSignalHandler(signalSvc, a.logger),
			Traders:   handler.NewTraderHandler(traderSvc, a.logger),
			Dashboard: handler.NewDashboardHandler(dashboardSvc, a.logger),
		},
		hub,
		deps.RateLimiter,
		a.logger,
	)

	g.Go(func() error {
		err := hub.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	g.Go(func() error { return srv.Start() })

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("server shutdown failed", slog.String("error", err.Error()))
		}
		return nil
	})
}
