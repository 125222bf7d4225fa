package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/lib/pq"
	"github.com/rotisserie/eris"

	"github.com/liamcoop/ratebook/automation"
	"github.com/liamcoop/ratebook/internal/config"
	"github.com/liamcoop/ratebook/internal/db"
	"github.com/liamcoop/ratebook/internal/logger"
	"github.com/liamcoop/ratebook/rules"
)

type backend struct {
	store   rules.RuleSetStore
	ping    func(ctx context.Context) error
	closers []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openRuleStore(ctx context.Context, cfg config.Store) (*backend, error) {
	switch cfg.Driver {
	case "postgres":
		conn, err := sql.Open("postgres", cfg.DatabaseURL)
		if err != nil {
			return nil, eris.Wrap(err, "open database")
		}
		if err := conn.PingContext(ctx); err != nil {
			conn.Close()
			return nil, eris.Wrap(err, "ping database")
		}
		return &backend{
			store:   rules.NewPostgresRuleSetStore(conn),
			ping:    conn.PingContext,
			closers: []func(){func() { conn.Close() }},
		}, nil

	case "sqlite":
		store, err := rules.NewSQLiteRuleSetStore(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return &backend{
			store:   store,
			ping:    store.DB().PingContext,
			closers: []func(){func() { store.Close() }},
		}, nil
	}

	return &backend{store: rules.NewInMemoryRuleSetStore()}, nil
}

func openCache(cfg config.Cache) (rules.RuleSetCache, func(), error) {
	cacheCfg := rules.CacheConfig{TTL: cfg.TTL, MaxEntries: cfg.MaxEntries}

	switch cfg.Kind {
	case "ristretto":
		cache, err := rules.NewRistrettoRuleSetCache(cacheCfg)
		if err != nil {
			return nil, nil, err
		}
		return cache, cache.Close, nil
	case "none":
		return nil, func() {}, nil
	}
	return rules.NewInMemoryRuleSetCache(cacheCfg), func() {}, nil
}

func main() {
	cfg := config.MustLoad()

	ctx := context.Background()
	if err := logger.Setup(ctx, cfg.Log); err != nil {
		logger.Fatal("failed to set up logging", "error", err)
	}

	back, err := openRuleStore(ctx, cfg.Store)
	if err != nil {
		logger.Fatal("failed to open rule set store", "driver", cfg.Store.Driver, "error", eris.ToString(err, true))
	}
	defer back.close()

	cache, closeCache, err := openCache(cfg.Cache)
	if err != nil {
		logger.Fatal("failed to create cache", "kind", cfg.Cache.Kind, "error", err)
	}
	defer closeCache()

	opts := Options{
		Engine:         rules.NewEngine(back.store, cache),
		StoreName:      cfg.Store.Driver,
		Ping:           back.ping,
		AllowedOrigins: cfg.CORS.AllowedOrigins,
		SlowRequest:    cfg.HTTP.SlowRequest,
	}

	if cfg.Store.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.Store.DatabaseURL, cfg.Store.Pool)
		if err != nil {
			logger.Fatal("failed to connect workflow pool", "error", eris.ToString(err, true))
		}
		defer pool.Close()

		previewer, err := automation.NewPreviewer()
		if err != nil {
			logger.Fatal("failed to create previewer", "error", err)
		}
		opts.Workflows = automation.NewStore(pool)
		opts.Previewer = previewer
	} else {
		logger.Warn("no DATABASE_URL, workflow routes disabled")
	}

	server := NewServer(opts)

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      server,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	go func() {
		logger.Info("server starting", "address", cfg.HTTP.Address, "env", cfg.Env, "store", cfg.Store.Driver, "cache", cfg.Cache.Kind)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed to start", "error", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}

	logger.Info("server stopped")
	if err := logger.Shutdown(shutdownCtx); err != nil {
		logger.Error("logger shutdown error", "error", err)
	}
}
