package kv

import (
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/internal/storage"
)

// NewRepositories wires every port to the same store
func NewRepositories(kv storage.Store, logger *zap.Logger) *repository.Repositories {
	return &repository.Repositories{
		Product: NewProductRepository(kv, logger),
		Order:   NewOrderRepository(kv, logger),
		User:    NewUserRepository(kv, logger),
		Session: NewSessionRepository(kv),

		Idempotency: NewIdempotencyRepository(kv),
	}
}
