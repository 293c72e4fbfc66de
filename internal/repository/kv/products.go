package kv

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/storage"
	"github.com/jafarshop/storefront/pkg/errors"
)

type productRepository struct {
	mu     sync.Mutex // serializes read-modify-write
	kv     storage.Store
	logger *zap.Logger
}

// NewProductRepository creates a product repository over kv
func NewProductRepository(kv storage.Store, logger *zap.Logger) *productRepository {
	return &productRepository{
		kv:     kv,
		logger: logger,
	}
}

func productKey(id string) string {
	return storage.Key(productNamespace, id)
}

func (r *productRepository) GetByID(ctx context.Context, id string) (*domain.Product, error) {
	var product domain.Product
	if err := getJSON(ctx, r.kv, productKey(id), "product", id, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (r *productRepository) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error) {
	all, err := scanJSON[domain.Product](ctx, r.kv, productNamespace, func(key string, err error) {
		r.logger.Warn("Skipping undecodable product", zap.String("key", key), zap.Error(err))
	})
	if err != nil {
		return nil, 0, err
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := make([]*domain.Product, 0, len(all))
	for _, p := range all {
		if filter.ActiveOnly && !p.IsActive {
			continue
		}
		if filter.Category != "" && !strings.EqualFold(p.Category, filter.Category) {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(p.Name), search) &&
			!strings.Contains(strings.ToLower(p.Description), search) {
			continue
		}
		matched = append(matched, p)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID < matched[j].ID
	})

	return paginate(matched, filter.Limit, filter.Offset), len(matched), nil
}

func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	if product.UpdatedAt.IsZero() {
		product.UpdatedAt = now
	}

	if _, err := r.kv.Get(ctx, productKey(product.ID)); err == nil {
		return &errors.ErrConflict{Message: "product already exists: " + product.ID}
	}
	return putJSON(ctx, r.kv, productKey(product.ID), "product", product)
}

func (r *productRepository) Update(ctx context.Context, product *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.GetByID(ctx, product.ID); err != nil {
		return err
	}
	product.UpdatedAt = time.Now().UTC()
	return putJSON(ctx, r.kv, productKey(product.ID), "product", product)
}

func (r *productRepository) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.GetByID(ctx, id); err != nil {
		return err
	}
	if err := r.kv.Delete(ctx, productKey(id)); err != nil {
		return errors.Persistence("delete product", err)
	}
	return nil
}

func (r *productRepository) AdjustStock(ctx context.Context, id string, delta int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	product, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if product.Stock+delta < 0 {
		return &errors.ErrValidation{Field: "stock", Message: "insufficient stock quantity"}
	}
	product.Stock += delta
	product.UpdatedAt = time.Now().UTC()
	return putJSON(ctx, r.kv, productKey(id), "product", product)
}

func paginate[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
