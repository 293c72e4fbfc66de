package breaker

import (
	"context"
	stderrors "errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/pkg/errors"
)

type mockOrderRepository struct {
	calls int
	err   error
	order *domain.Order
}

func (m *mockOrderRepository) Create(context.Context, *domain.Order) error {
	m.calls++
	return m.err
}

func (m *mockOrderRepository) GetByID(context.Context, uuid.UUID) (*domain.Order, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.order, nil
}

func (m *mockOrderRepository) ListByUserID(context.Context, string, domain.OrderStatus) ([]*domain.Order, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return []*domain.Order{m.order}, nil
}

func (m *mockOrderRepository) List(context.Context, domain.OrderFilter) ([]*domain.Order, int, error) {
	m.calls++
	if m.err != nil {
		return nil, 0, m.err
	}
	return []*domain.Order{m.order}, 7, nil
}

func (m *mockOrderRepository) UpdateStatus(context.Context, uuid.UUID, domain.OrderStatus, domain.OrderStatus) error {
	m.calls++
	return m.err
}

func (m *mockOrderRepository) UpdatePaymentStatus(context.Context, uuid.UUID, domain.PaymentStatus) error {
	m.calls++
	return m.err
}

func TestBreaker_OpensOnPersistenceFailures(t *testing.T) {
	ctx := context.Background()
	inner := &mockOrderRepository{err: errors.Persistence("create order", stderrors.New("connection refused"))}
	repo := NewOrderRepository(inner, Settings{ConsecutiveFailures: 2, OpenTimeout: time.Minute}, zap.NewNop())

	for i := 0; i < 2; i++ {
		assert.Error(t, repo.Create(ctx, &domain.Order{}))
	}
	require.Equal(t, 2, inner.calls)

	err := repo.Create(ctx, &domain.Order{})
	var perr *errors.ErrPersistence
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, 2, inner.calls, "open breaker must not reach the repository")
}

func TestBreaker_DomainErrorsDoNotTrip(t *testing.T) {
	ctx := context.Background()
	inner := &mockOrderRepository{err: &errors.ErrNotFound{Resource: "order", ID: "x"}}
	repo := NewOrderRepository(inner, Settings{ConsecutiveFailures: 1}, zap.NewNop())

	for i := 0; i < 3; i++ {
		_, err := repo.GetByID(ctx, uuid.New())
		var notFound *errors.ErrNotFound
		assert.ErrorAs(t, err, &notFound)
	}
	assert.Equal(t, 3, inner.calls)
}

func TestBreaker_PassesResultsThrough(t *testing.T) {
	ctx := context.Background()
	order := &domain.Order{ID: uuid.New()}
	inner := &mockOrderRepository{order: order}
	repo := NewOrderRepository(inner, Settings{}, zap.NewNop())

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Same(t, order, got)

	list, total, err := repo.List(ctx, domain.OrderFilter{Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 7, total)
	assert.Len(t, list, 1)

	mine, err := repo.ListByUserID(ctx, "u1", "")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	require.NoError(t, repo.UpdateStatus(ctx, order.ID, domain.OrderStatusPending, domain.OrderStatusProcessing))
	require.NoError(t, repo.UpdatePaymentStatus(ctx, order.ID, domain.PaymentStatusCompleted))
}
