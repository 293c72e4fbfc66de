// Package cache decorates the product repository with a redis read-through
// cache. Cache failures are logged and never fail the call.
package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
)

const defaultTTL = 5 * time.Minute

type productRepository struct {
	next    repository.ProductRepository
	client  *redis.Client
	baseTTL time.Duration
	group   singleflight.Group
	logger  *zap.Logger
}

// NewProductRepository caches GetByID results from next in redis. Writes
// through this repository invalidate the cached entry.
func NewProductRepository(next repository.ProductRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger) *productRepository {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &productRepository{
		next:    next,
		client:  client,
		baseTTL: ttl,
		logger:  logger,
	}
}

func cacheKey(id string) string {
	return fmt.Sprintf("product:%s", id)
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	data, err := r.client.Get(ctx, cacheKey(id)).Bytes()
	if err == nil {
		var product domain.Product
		if err := json.Unmarshal(data, &product); err == nil {
			return &product, nil
		}
		r.logger.Warn("Corrupt cached product", zap.String("product_id", id))
	} else if !stderrors.Is(err, redis.Nil) {
		r.logger.Warn("Product cache read failed", zap.String("product_id", id), zap.Error(err))
	}

	// concurrent misses for the same id share one repository read
	v, err, _ := r.group.Do(id, func() (interface{}, error) {
		product, err := r.next.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		r.store(ctx, product)
		return product, nil
	})
	if err != nil {
		return nil, err
	}
	product := *v.(*domain.Product)
	return &product, nil
}

func (r *productRepository) store(ctx context.Context, product *domain.Product) {
	data, err := json.Marshal(product)
	if err != nil {
		return
	}
	ttl := r.baseTTL + time.Duration(rand.Int63n(int64(r.baseTTL/5)+1))
	if err := r.client.Set(ctx, cacheKey(product.ID), data, ttl).Err(); err != nil {
		r.logger.Warn("Product cache write failed", zap.String("product_id", product.ID), zap.Error(err))
	}
}

func (r *productRepository) invalidate(ctx context.Context, id string) {
	if err := r.client.Del(ctx, cacheKey(id)).Err(); err != nil {
		r.logger.Warn("Product cache invalidation failed", zap.String("product_id", id), zap.Error(err))
	}
}

func (r *productRepository) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error) {
	return r.next.List(ctx, filter)
}

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	return r.next.Create(ctx, product)
}

func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	defer r.invalidate(ctx, product.ID)
	return r.next.Update(ctx, product)
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	defer r.invalidate(ctx, id)
	return r.next.Delete(ctx, id)
}

func (r *productRepository) AdjustStock(ctx context.Context, id string, delta int) error {
	defer r.invalidate(ctx, id)
	return r.next.AdjustStock(ctx, id, delta)
}
