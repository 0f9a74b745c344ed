// Package app provides the top-level application lifecycle. It wires the
// book store, both venue connectors, the subscription coordinator, and the
// opportunity scanner, and runs them until the context is cancelled.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"golang.org/x/sync/errgroup"

	"github.com/pmarketarb/pmproxy/internal/arb"
	cacheredis "github.com/pmarketarb/pmproxy/internal/cache/redis"
	"github.com/pmarketarb/pmproxy/internal/config"
	"github.com/pmarketarb/pmproxy/internal/connector/kalshi"
	"github.com/pmarketarb/pmproxy/internal/connector/polymarket"
	"github.com/pmarketarb/pmproxy/internal/domain"
	"github.com/pmarketarb/pmproxy/internal/scanner"
	"github.com/pmarketarb/pmproxy/internal/store/memory"
	"github.com/pmarketarb/pmproxy/internal/store/postgres"
	"github.com/pmarketarb/pmproxy/internal/subscriber"
)

// App is the root application object. It owns the configuration, logger, and
// a list of cleanup functions that are called in reverse order on shutdown.
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	closers []func()
}

// New creates a new App from the given configuration and logger.
func New(cfg *config.Config, logger *slog.Logger) *App {
	return &App{
		cfg:    cfg,
		logger: logger.With(slog.String("component", "app")),
	}
}

// Run wires all dependencies, starts both connectors and the two periodic
// loops, and blocks until the context is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.logger.InfoContext(ctx, "starting proxy", slog.String("log_level", a.cfg.LogLevel))

	keyPEM, err := os.ReadFile(a.cfg.Kalshi.RsaPrivateKeyPath)
	if err != nil {
		return fmt.Errorf("app: read kalshi private key: %w", err)
	}

	books := memory.NewBookStore()

	pg, err := postgres.New(ctx, postgres.ClientConfig{
		DSN:      a.cfg.Database.DSN,
		Host:     a.cfg.Database.Host,
		Port:     a.cfg.Database.Port,
		Database: a.cfg.Database.Database,
		User:     a.cfg.Database.User,
		Password: a.cfg.Database.Password,
		SSLMode:  a.cfg.Database.SSLMode,
		MaxConns: a.cfg.Database.PoolMaxConns,
		MinConns: a.cfg.Database.PoolMinConns,
	})
	if err != nil {
		return fmt.Errorf("app: connect postgres: %w", err)
	}
	a.closers = append(a.closers, pg.Close)

	var bus domain.SignalBus
	if a.cfg.Redis.Enabled {
		rds, err := cacheredis.New(ctx, cacheredis.ClientConfig{
			Addr:       a.cfg.Redis.Addr,
			Password:   a.cfg.Redis.Password,
			DB:         a.cfg.Redis.DB,
			PoolSize:   a.cfg.Redis.PoolSize,
			MaxRetries: a.cfg.Redis.MaxRetries,
			TLSEnabled: a.cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fmt.Errorf("app: connect redis: %w", err)
		}
		a.closers = append(a.closers, func() { _ = rds.Close() })
		bus = cacheredis.NewSignalBus(rds)
	}

	kalshiConn := kalshi.New(kalshi.Config{
		WSURL:         a.cfg.Kalshi.WSURL,
		APIKeyID:      a.cfg.Kalshi.ApiKeyID,
		PrivateKeyPEM: keyPEM,
	}, books, a.logger)
	a.closers = append(a.closers, func() { _ = kalshiConn.Close() })

	polyConn := polymarket.New(polymarket.Config{
		WSURL: a.cfg.Polymarket.WSURL,
	}, books, a.logger)
	a.closers = append(a.closers, func() { _ = polyConn.Close() })

	pairs := subscriber.NewPostgresPairSource(pg.Pool(), a.logger, a.cfg.Subscriber.PairLimit)
	coord := subscriber.NewCoordinator(pairs, kalshiConn, polyConn, a.logger, a.cfg.Subscriber.RefreshInterval.Duration)

	engine := arb.NewEngine(books, a.cfg.Arbitrage.SpreadThreshold)
	sc := scanner.New(coord, engine, bus, a.logger, a.cfg.Arbitrage.ScanInterval.Duration)

	kalshiConn.Start()
	polyConn.Start()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return coord.Run(gctx) })
	g.Go(func() error { return sc.Run(gctx) })

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return err
}

// Close tears down all resources in reverse registration order. It is safe
// to call multiple times; subsequent calls are no-ops.
func (a *App) Close() {
	a.logger.Info("shutting down")
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
