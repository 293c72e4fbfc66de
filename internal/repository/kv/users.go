package kv

import (
	"context"
	stderrors "errors"
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

type userRepository struct {
	mu     sync.Mutex
	kv     storage.Store
	logger *zap.Logger
}

// NewUserRepository creates a user repository over kv. Emails are indexed
// case-insensitively under a second namespace.
func NewUserRepository(kv storage.Store, logger *zap.Logger) *userRepository {
	return &userRepository{
		kv:     kv,
		logger: logger,
	}
}

func userKey(id string) string {
	return storage.Key(userNamespace, id)
}

func emailKey(email string) string {
	return storage.Key(userEmailNamespace, strings.ToLower(strings.TrimSpace(email)))
}

func (r *userRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := getJSON(ctx, r.kv, userKey(id), "user", id, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	id, err := r.kv.Get(ctx, emailKey(email))
	if stderrors.Is(err, storage.ErrNotFound) {
		return nil, &errors.ErrNotFound{Resource: "user", ID: email}
	}
	if err != nil {
		return nil, errors.Persistence("get user", err)
	}
	return r.GetByID(ctx, string(id))
}

func (r *userRepository) Create(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.kv.Get(ctx, emailKey(user.Email)); err == nil {
		return &errors.ErrConflict{Message: "email already registered"}
	}

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	if err := putJSON(ctx, r.kv, userKey(user.ID), "user", user); err != nil {
		return err
	}
	if err := r.kv.Put(ctx, emailKey(user.Email), []byte(user.ID)); err != nil {
		// without the index the user cannot log in; roll the record back
		if delErr := r.kv.Delete(ctx, userKey(user.ID)); delErr != nil {
			r.logger.Error("Failed to roll back user record", zap.String("user_id", user.ID), zap.Error(delErr))
		}
		return errors.Persistence("put user", err)
	}
	return nil
}

func (r *userRepository) Update(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, err := r.GetByID(ctx, user.ID)
	if err != nil {
		return err
	}
	if !strings.EqualFold(existing.Email, user.Email) {
		return &errors.ErrValidation{Field: "email", Message: "email cannot be changed"}
	}
	return putJSON(ctx, r.kv, userKey(user.ID), "user", user)
}

func (r *userRepository) List(ctx context.Context, adminsOnly bool) ([]*domain.User, error) {
	users, err := scanJSON[domain.User](ctx, r.kv, userNamespace, func(key string, err error) {
		r.logger.Warn("Skipping undecodable user", zap.String("key", key), zap.Error(err))
	})
	if err != nil {
		return nil, err
	}

	out := make([]*domain.User, 0, len(users))
	for _, u := range users {
		if adminsOnly && !u.IsAdmin {
			continue
		}
		out = append(out, u)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}
