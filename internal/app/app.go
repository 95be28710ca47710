// Package app wires storage, cache and services from config for the binaries.
package app

import (
	"card-rewards/internal/catalog"
	"card-rewards/internal/config"
	"card-rewards/internal/service"
	"card-rewards/internal/storage"
	"card-rewards/internal/storage/cache"
	"card-rewards/internal/storage/memory"
	"card-rewards/internal/storage/postgres"
	"context"
	"fmt"
	"log/slog"
)

type App struct {
	Cards *service.Cards
	Users storage.UserStorage

	closers []func()
}

// Open builds the storage selected by cfg.Storage and, when REDIS_URL is
// set, puts the Redis cache in front of owned-card reads.
func Open(ctx context.Context, cfg config.Config) (*App, error) {
	a := &App{}

	var (
		owned storage.OwnedCardStorage
		users storage.UserStorage
	)
	switch cfg.Storage {
	case "memory":
		slog.Warn("Using in-memory storage, data is lost on restart")
		store := memory.NewStorage()
		owned, users = store, store
	case "postgres":
		pool, err := postgres.Connect(ctx, cfg.DBConn)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, pool.Close)
		slog.Info("✅ Connected to PostgreSQL")
		store := postgres.NewStorage(pool)
		owned, users = store, store
	default:
		return nil, fmt.Errorf("unknown STORAGE %q", cfg.Storage)
	}

	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(cfg.RedisURL)
		if err != nil {
			a.Close()
			return nil, err
		}
		if err := client.Ping(ctx).Err(); err != nil {
			slog.Warn("Redis unreachable, cache will fall through to storage", "error", err)
		}
		a.closers = append(a.closers, func() { _ = client.Close() })
		owned = cache.NewOwnedCards(owned, client, cfg.CacheTTL)
		slog.Info("Owned-card cache enabled", "ttl", cfg.CacheTTL)
	}

	a.Cards = service.NewCards(owned, catalog.Default())
	a.Users = users
	return a, nil
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
