package cart

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/storage"
)

const (
	DefaultRegistrySize = 10000
	DefaultIdleTTL      = 30 * time.Minute
)

// RegistryOptions bounds how many carts stay in memory and for how long an
// untouched one is kept. Zero values use the defaults.
type RegistryOptions struct {
	Size    int
	IdleTTL time.Duration
}

// Registry hands out one Store per shopper, rehydrating it on first use.
// Carts are written through on every mutation, so dropping one from memory
// loses nothing; the next For reloads it.
type Registry struct {
	mu      sync.Mutex
	stores  *expirable.LRU[string, *Store]
	kv      storage.Store
	catalog Catalog
	logger  *zap.Logger
}

func NewRegistry(kv storage.Store, catalog Catalog, opts RegistryOptions, logger *zap.Logger) *Registry {
	if opts.Size < 1 {
		opts.Size = DefaultRegistrySize
	}
	if opts.IdleTTL <= 0 {
		opts.IdleTTL = DefaultIdleTTL
	}
	return &Registry{
		stores:  expirable.NewLRU[string, *Store](opts.Size, nil, opts.IdleTTL),
		kv:      kv,
		catalog: catalog,
		logger:  logger,
	}
}

// For returns the cart for owner and marks it as recently used
func (r *Registry) For(ctx context.Context, owner string) *Store {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.stores.Get(owner)
	if !ok {
		s = NewStore(ctx, owner, r.kv, r.catalog, r.logger)
	}
	r.stores.Add(owner, s)
	return s
}

// Forget drops the in-memory cart for owner. The persisted snapshot stays
// and is reloaded by the next For.
func (r *Registry) Forget(owner string) {
	r.mu.Lock()
	r.stores.Remove(owner)
	r.mu.Unlock()
}

// Len is the number of carts held in memory
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stores.Len()
}
