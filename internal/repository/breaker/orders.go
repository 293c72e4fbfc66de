// Package breaker guards a remote order repository with a circuit breaker so
// a failing database turns into fast persistence errors.
package breaker

import (
	"context"
	stderrors "errors"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

// Settings tunes the breaker
type Settings struct {
	// ConsecutiveFailures trips the breaker
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open before probing
	OpenTimeout time.Duration
}

type orderRepository struct {
	next repository.OrderRepository
	cb   *gobreaker.CircuitBreaker[any]
}

// NewOrderRepository wraps next. Only persistence failures count against the
// breaker; not-found and conflict results are normal answers.
func NewOrderRepository(next repository.OrderRepository, settings Settings, logger *zap.Logger) *orderRepository {
	if settings.ConsecutiveFailures == 0 {
		settings.ConsecutiveFailures = 5
	}
	if settings.OpenTimeout == 0 {
		settings.OpenTimeout = 30 * time.Second
	}

	cb := gobreaker.NewCircuitBreaker[any](gobreaker.Settings{
		Name:        "order-repository",
		MaxRequests: 1,
		Timeout:     settings.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.ConsecutiveFailures
		},
		IsSuccessful: func(err error) bool {
			var perr *errors.ErrPersistence
			return err == nil || !stderrors.As(err, &perr)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	return &orderRepository{next: next, cb: cb}
}

func (r *orderRepository) execute(op string, fn func() (any, error)) (any, error) {
	v, err := r.cb.Execute(fn)
	if stderrors.Is(err, gobreaker.ErrOpenState) || stderrors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, errors.Persistence(op, err)
	}
	return v, err
}

func (r *orderRepository) Create(ctx context.Context, order *domain.Order) error {
	_, err := r.execute("create order", func() (any, error) {
		return nil, r.next.Create(ctx, order)
	})
	return err
}

func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error) {
	v, err := r.execute("get order", func() (any, error) {
		return r.next.GetByID(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Order), nil
}

func (r *orderRepository) ListByUserID(ctx context.Context, userID string, status domain.OrderStatus) ([]*domain.Order, error) {
	v, err := r.execute("list orders", func() (any, error) {
		return r.next.ListByUserID(ctx, userID, status)
	})
	if err != nil {
		return nil, err
	}
	return v.([]*domain.Order), nil
}

type page struct {
	orders []*domain.Order
	total  int
}

func (r *orderRepository) List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, int, error) {
	v, err := r.execute("list orders", func() (any, error) {
		orders, total, err := r.next.List(ctx, filter)
		return page{orders: orders, total: total}, err
	})
	if err != nil {
		return nil, 0, err
	}
	p := v.(page)
	return p.orders, p.total, nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error {
	_, err := r.execute("update order status", func() (any, error) {
		return nil, r.next.UpdateStatus(ctx, id, from, to)
	})
	return err
}

func (r *orderRepository) UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error {
	_, err := r.execute("update payment status", func() (any, error) {
		return nil, r.next.UpdatePaymentStatus(ctx, id, status)
	})
	return err
}
