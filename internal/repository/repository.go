package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/jafarshop/storefront/internal/domain"
)

// ProductRepository is the product catalog port
type ProductRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Product, error)
	// List returns one page of matching products, newest first, and the total match count
	List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error)
	Create(ctx context.Context, product *domain.Product) error
	Update(ctx context.Context, product *domain.Product) error
	Delete(ctx context.Context, id string) error
	// AdjustStock adds delta to the stock, refusing to go below zero
	AdjustStock(ctx context.Context, id string, delta int) error
}

// OrderRepository is the order storage port
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Order, error)
	// ListByUserID returns the user's orders, newest first. An empty status matches all.
	ListByUserID(ctx context.Context, userID string, status domain.OrderStatus) ([]*domain.Order, error)
	// List returns one page of matching orders, newest first, and the total match count
	List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, int, error)
	// UpdateStatus moves the order from one status to another and fails with
	// ErrConflict when the stored status is no longer from
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to domain.OrderStatus) error
	UpdatePaymentStatus(ctx context.Context, id uuid.UUID, status domain.PaymentStatus) error
}

// UserRepository stores shoppers and admins
type UserRepository interface {
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Create(ctx context.Context, user *domain.User) error
	Update(ctx context.Context, user *domain.User) error
	List(ctx context.Context, adminsOnly bool) ([]*domain.User, error)
}

// SessionRepository maps bearer tokens to users
type SessionRepository interface {
	Create(ctx context.Context, session *domain.Session) error
	Get(ctx context.Context, token string) (*domain.Session, error)
	Delete(ctx context.Context, token string) error
}

// IdempotencyRepository remembers which order a checkout retry key produced
type IdempotencyRepository interface {
	// Create fails with ErrConflict when the key is already recorded
	Create(ctx context.Context, key *domain.IdempotencyKey) error
	Get(ctx context.Context, userID, key string) (*domain.IdempotencyKey, error)
}

// Repositories groups the storage ports the services depend on
type Repositories struct {
	Product ProductRepository
	Order   OrderRepository
	User    UserRepository
	Session SessionRepository

	Idempotency IdempotencyRepository
}
