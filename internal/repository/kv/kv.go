// Package kv implements the repository ports on top of a storage.Store.
// It backs the local prototype mode where everything lives in one
// key-value file or redis instance.
package kv

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/jafarshop/storefront/internal/storage"
	"github.com/jafarshop/storefront/pkg/errors"
)

const (
	productNamespace   = "ecommerce-products"
	orderNamespace     = "ecommerce-orders"
	userNamespace      = "ecommerce-users"
	userEmailNamespace = "ecommerce-user-email"
	sessionNamespace   = "ecommerce-session"
	idempotencyNS      = "ecommerce-idempotency"
)

// getJSON decodes the value at key into out. A missing key is reported as
// ErrNotFound for resource/id.
func getJSON(ctx context.Context, kv storage.Store, key, resource, id string, out interface{}) error {
	data, err := kv.Get(ctx, key)
	if stderrors.Is(err, storage.ErrNotFound) {
		return &errors.ErrNotFound{Resource: resource, ID: id}
	}
	if err != nil {
		return errors.Persistence("get "+resource, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return errors.Persistence("decode "+resource, fmt.Errorf("key %s: %w", key, err))
	}
	return nil
}

func putJSON(ctx context.Context, kv storage.Store, key, resource string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Persistence("encode "+resource, err)
	}
	if err := kv.Put(ctx, key, data); err != nil {
		return errors.Persistence("put "+resource, err)
	}
	return nil
}

// scanJSON decodes every value under namespace. Undecodable entries are
// skipped and reported through skip.
func scanJSON[T any](ctx context.Context, kv storage.Store, namespace string, skip func(key string, err error)) ([]*T, error) {
	keys, err := kv.Keys(ctx, namespace+":")
	if err != nil {
		return nil, errors.Persistence("list "+namespace, err)
	}

	out := make([]*T, 0, len(keys))
	for _, key := range keys {
		data, err := kv.Get(ctx, key)
		if stderrors.Is(err, storage.ErrNotFound) {
			continue // deleted between Keys and Get
		}
		if err != nil {
			return nil, errors.Persistence("list "+namespace, err)
		}
		var v T
		if err := json.Unmarshal(data, &v); err != nil {
			skip(key, err)
			continue
		}
		out = append(out, &v)
	}
	return out, nil
}
