// Package app opens the storage backends selected by configuration and
// builds the repositories over them.
package app

import (
	"context"
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/config"
	"github.com/jafarshop/storefront/internal/events"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/internal/repository/breaker"
	"github.com/jafarshop/storefront/internal/repository/cache"
	"github.com/jafarshop/storefront/internal/repository/kv"
	"github.com/jafarshop/storefront/internal/repository/postgres"
	"github.com/jafarshop/storefront/internal/storage"
)

// Backends holds the open stores. Close releases all of them.
type Backends struct {
	KV     storage.Store
	Repos  *repository.Repositories
	Events events.Publisher

	redis *redis.Client
	db    *sql.DB
	pool  *events.ChannelPool
}

// Open connects to every backend cfg selects. Carts, sessions and
// idempotency keys always live in the key-value store.
func Open(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Backends, error) {
	b := &Backends{}
	if err := b.open(ctx, cfg, logger); err != nil {
		b.Close()
		return nil, err
	}
	return b, nil
}

func (b *Backends) open(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	var err error

	if cfg.UsesRedis() {
		b.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := b.redis.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis connection failed: %w", err)
		}
		logger.Info("Connected to redis", zap.String("addr", cfg.Redis.Addr))
	}

	switch cfg.Storage.Backend {
	case "memory":
		b.KV = storage.NewMemoryStore()
	case "sqlite":
		sqlite, err := storage.NewSQLiteStore(cfg.Storage.SQLitePath)
		if err != nil {
			return err
		}
		b.KV = sqlite
		logger.Info("Opened sqlite store", zap.String("path", cfg.Storage.SQLitePath))
	case "redis":
		b.KV = storage.NewRedisStore(b.redis)
	default:
		return fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}

	b.Repos = kv.NewRepositories(b.KV, logger)

	if cfg.UsesPostgres() {
		b.db, err = postgres.NewConnection(cfg.Database)
		if err != nil {
			return err
		}
		if err := postgres.RunMigrations(b.db); err != nil {
			return err
		}
		logger.Info("Connected to postgres", zap.String("host", cfg.Database.Host), zap.String("db", cfg.Database.DBName))

		pg := postgres.NewRepositories(b.db, b.Repos.Session, logger)
		if cfg.Storage.OrderBackend == "postgres" {
			// customers live next to their orders
			b.Repos.Order = breaker.NewOrderRepository(pg.Order, breaker.Settings{}, logger)
			b.Repos.User = pg.User
		}
		if cfg.Storage.CatalogBackend == "postgres" {
			b.Repos.Product = pg.Product
		}
	}

	if cfg.Storage.CatalogCache {
		b.Repos.Product = cache.NewProductRepository(b.Repos.Product, b.redis, cfg.Storage.CatalogCacheTTL, logger)
	}

	b.Events = events.Nop()
	if cfg.Events.Enabled() {
		b.pool, err = events.NewChannelPool(cfg.Events.RabbitMQURL, cfg.Events.Queue, cfg.Events.ChannelPoolSize, logger)
		if err != nil {
			return err
		}
		b.Events = events.NewRabbitPublisher(b.pool)
	}

	return nil
}

func (b *Backends) Close() error {
	var errs []error
	if b.pool != nil {
		errs = append(errs, b.pool.Close())
	}
	if b.KV != nil {
		errs = append(errs, b.KV.Close())
	}
	if b.db != nil {
		errs = append(errs, b.db.Close())
	}
	// the redis store closes the shared client itself
	if b.redis != nil && !isRedisStore(b.KV) {
		errs = append(errs, b.redis.Close())
	}
	return stderrors.Join(errs...)
}

func isRedisStore(s storage.Store) bool {
	_, ok := s.(*storage.RedisStore)
	return ok
}
