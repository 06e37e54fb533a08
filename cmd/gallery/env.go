package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gallery/internal/adapter/filestore"
	"gallery/internal/adapter/memory"
	"gallery/internal/adapter/natskv"
	"gallery/internal/adapter/postgres"
	"gallery/internal/adapter/supabase"
	"gallery/internal/app"
	"gallery/internal/cache"
	"gallery/internal/config"
	"gallery/internal/domain"
)

// env is the storage stack selected by the configuration.
type env struct {
	store   *cache.Store
	storage app.Storage
	closers []func() error
}

func (e *env) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		if err := e.closers[i](); err != nil {
			slog.Warn("close failed", "err", err)
		}
	}
}

func openEnv(ctx context.Context, cfg *config.Config) (*env, error) {
	e := &env{}

	kv, err := e.openKV(ctx, cfg)
	if err != nil {
		return nil, err
	}
	e.store = cache.New(kv)

	if !cfg.Remote() {
		e.storage = app.NewLocalStorage(e.store)
		return e, nil
	}

	backend, err := e.openBackend(ctx, cfg)
	if err != nil {
		e.Close()
		return nil, err
	}
	e.storage = app.NewRemoteStorage(backend, e.store, slog.Default())
	return e, nil
}

func (e *env) openKV(ctx context.Context, cfg *config.Config) (domain.KeyValueStore, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StoreFile:
		return filestore.Open(cfg.DataDir)
	case config.StoreNATS:
		kv, err := natskv.Open(ctx, cfg.NATSURL, cfg.NATSBucket)
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, kv.Close)
		return kv, nil
	}
	return nil, fmt.Errorf("unknown store %q", cfg.Store)
}

func (e *env) openBackend(ctx context.Context, cfg *config.Config) (domain.Backend, error) {
	switch cfg.Backend {
	case config.BackendSupabase:
		client, err := supabase.New(supabase.Config{URL: cfg.SupabaseURL, AnonKey: cfg.SupabaseAnonKey})
		if err != nil {
			return nil, err
		}
		e.closers = append(e.closers, client.Close)
		return client, nil
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("db open: %w", err)
		}
		e.closers = append(e.closers, db.Close)
		return db, nil
	}
	return nil, errors.New("no remote backend configured")
}
