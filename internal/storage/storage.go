package storage

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned by Get when the key holds no value
var ErrNotFound = errors.New("storage: key not found")

// Store is a namespaced key-value port. Carts, sessions, users and the local
// order/product repositories are all persisted through it.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, value []byte) error
	// Delete is idempotent
	Delete(ctx context.Context, key string) error
	// Keys returns every key starting with prefix, sorted
	Keys(ctx context.Context, prefix string) ([]string, error)
	Close() error
}

// Key joins a namespace and an id, e.g. Key("ecommerce-cart", "42")
func Key(namespace string, parts ...string) string {
	return namespace + ":" + strings.Join(parts, ":")
}
