package kv

import (
	"context"
	"sync"
	"time"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/storage"
	"github.com/jafarshop/storefront/pkg/errors"
)

type idempotencyRepository struct {
	mu sync.Mutex
	kv storage.Store
}

func NewIdempotencyRepository(kv storage.Store) *idempotencyRepository {
	return &idempotencyRepository{kv: kv}
}

// keys are scoped per user so two shoppers may reuse the same key
func idempotencyKey(userID, key string) string {
	return storage.Key(idempotencyNS, userID, key)
}

func (r *idempotencyRepository) Create(ctx context.Context, key *domain.IdempotencyKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.kv.Get(ctx, idempotencyKey(key.UserID, key.Key)); err == nil {
		return &errors.ErrConflict{Message: "idempotency key already used"}
	}
	if key.CreatedAt.IsZero() {
		key.CreatedAt = time.Now().UTC()
	}
	return putJSON(ctx, r.kv, idempotencyKey(key.UserID, key.Key), "idempotency key", key)
}

func (r *idempotencyRepository) Get(ctx context.Context, userID, key string) (*domain.IdempotencyKey, error) {
	var out domain.IdempotencyKey
	if err := getJSON(ctx, r.kv, idempotencyKey(userID, key), "idempotency key", key, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
