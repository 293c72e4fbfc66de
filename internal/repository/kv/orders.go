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

type orderRepository struct {
	mu     sync.Mutex
	kv     storage.Store
	logger *zap.Logger
}

// NewOrderRepository creates an order repository over kv. Each order is a
// single JSON document, so a Create is visible all at once or not at all.
func NewOrderRepository(kv storage.Store, logger *zap.Logger) *orderRepository {
	return &orderRepository{
		kv:     kv,
		logger: logger,
	}
}

func orderKey(id uuid.UUID) string {
	return storage.Key(orderNamespace, id.String())
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now().UTC()
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = now
	}
	if order.UpdatedAt.IsZero() {
		order.UpdatedAt = now
	}

	if _, err := r.kv.Get(ctx, orderKey(order.ID)); err == nil {
		return &errors.ErrConflict{Message: "order already exists: " + order.ID.String()}
	}
	return putJSON(ctx, r.kv, orderKey(order.ID), "order", order)
}

func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	var order domain.Order
	if err := getJSON(ctx, r.kv, orderKey(id), "order", id.String(), &order); err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *orderRepository) all(ctx context.Context) ([]*domain.Order, error) {
	orders, err := scanJSON[domain.Order](ctx, r.kv, orderNamespace, func(key string, err error) {
		r.logger.Warn("Skipping undecodable order", zap.String("key", key), zap.Error(err))
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
	return orders, nil
}

func (r *orderRepository) ListByUserID(ctx context.Context, userID string, status domain.OrderStatus) ([]*domain.Order, error) {
	orders, err := r.all(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]*domain.Order, 0)
	for _, o := range orders {
		if o.UserID != userID {
			continue
		}
		if status != "" && o.Status != status {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (r *orderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, int, error) {
	orders, err := r.all(ctx)
	if err != nil {
		return nil, 0, err
	}

	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := make([]*domain.Order, 0, len(orders))
	for _, o := range orders {
		if filter.Status != "" && o.Status != filter.Status {
			continue
		}
		if search != "" && !matchesOrder(o, search) {
			continue
		}
		matched = append(matched, o)
	}
	return paginate(matched, filter.Limit, filter.Offset), len(matched), nil
}

func matchesOrder(o *domain.Order, search string) bool {
	return strings.Contains(o.ID.String(), search) ||
		strings.Contains(strings.ToLower(o.CustomerEmail), search) ||
		strings.Contains(strings.ToLower(o.CustomerName), search)
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if order.Status != from {
		return &errors.ErrConflict{Message: "order status changed concurrently"}
	}
	order.Status = to
	order.UpdatedAt = time.Now().UTC()
	return putJSON(ctx, r.kv, orderKey(id), "order", order)
}

func (r *orderRepository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	order, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	order.PaymentStatus = status
	order.UpdatedAt = time.Now().UTC()
	return putJSON(ctx, r.kv, orderKey(id), "order", order)
}
