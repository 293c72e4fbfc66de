package kv

import (
	"context"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/storage"
	"github.com/jafarshop/storefront/pkg/errors"
)

type sessionRepository struct {
	kv storage.Store
}

func NewSessionRepository(kv storage.Store) *sessionRepository {
	return &sessionRepository{kv: kv}
}

func sessionKey(token string) string {
	return storage.Key(sessionNamespace, token)
}

func (r *sessionRepository) Create(ctx context.Context, session *domain.Session) error {
	return putJSON(ctx, r.kv, sessionKey(session.Token), "session", session)
}

func (r *sessionRepository) Get(ctx context.Context, token string) (*domain.Session, error) {
	var session domain.Session
	if err := getJSON(ctx, r.kv, sessionKey(token), "session", token, &session); err != nil {
		return nil, err
	}
	return &session, nil
}

func (r *sessionRepository) Delete(ctx context.Context, token string) error {
	if err := r.kv.Delete(ctx, sessionKey(token)); err != nil {
		return errors.Persistence("delete session", err)
	}
	return nil
}
