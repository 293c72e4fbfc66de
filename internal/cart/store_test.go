package cart

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/storage"
	"github.com/jafarshop/storefront/pkg/errors"
)

type failingStore struct {
	storage.Store
	m       sync.Mutex
	failPut bool
	failDel bool
}

func (f *failingStore) Put(ctx context.Context, key string, value []byte) error {
	f.m.Lock()
	defer f.m.Unlock()
	if f.failPut {
		return stderrors.New("disk full")
	}
	return f.Store.Put(ctx, key, value)
}

func (f *failingStore) Delete(ctx context.Context, key string) error {
	f.m.Lock()
	defer f.m.Unlock()
	if f.failDel {
		return stderrors.New("disk full")
	}
	return f.Store.Delete(ctx, key)
}

type mockCatalog struct {
	products map[string]*domain.Product
	err      error
}

func (m *mockCatalog) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	p, ok := m.products[id]
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "product", ID: id}
	}
	return p, nil
}

func product(id string, price float64, stock int) *domain.Product {
	return &domain.Product{
		ID:       id,
		Name:     "Product " + id,
		Price:    decimal.NewFromFloat(price),
		Stock:    stock,
		IsActive: true,
	}
}

func newTestStore(t *testing.T, kv storage.Store, catalog Catalog) *Store {
	t.Helper()
	return NewStore(context.Background(), "user-1", kv, catalog, zap.NewNop())
}

func quantities(lines []domain.CartLine) map[string]int {
	out := make(map[string]int, len(lines))
	for _, l := range lines {
		out[l.ProductID] = l.Quantity
	}
	return out
}

func TestAddItem_TotalAndCount(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryStore(), nil)

	require.NoError(t, s.AddItem(context.Background(), product("p1", 10, 5), 3))

	assert.Equal(t, "30.00", FormatMoney(s.Total()))
	assert.Equal(t, 3, s.ItemCount())
}

func TestAddItem_MergesAndClampsToStock(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemoryStore(), nil)
	p1 := product("p1", 10, 5)

	require.NoError(t, s.AddItem(ctx, p1, 3))
	require.NoError(t, s.AddItem(ctx, p1, 4))

	lines := s.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
}

func TestAddItem_RepeatedNeverExceedsStock(t *testing.T) {
	ctx := context.Background()
	for _, stock := range []int{1, 2, 7, 20} {
		s := newTestStore(t, storage.NewMemoryStore(), nil)
		p := product("p", 1.5, stock)
		for n := 1; n <= 12; n++ {
			require.NoError(t, s.AddItem(ctx, p, n))
			q := s.Lines()[0].Quantity
			assert.GreaterOrEqual(t, q, 1)
			assert.LessOrEqual(t, q, stock)
		}
	}
}

func TestAddItem_FirstAddOverStockIsClamped(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryStore(), nil)

	require.NoError(t, s.AddItem(context.Background(), product("p1", 10, 2), 9))

	assert.Equal(t, 2, s.ItemCount())
}

func TestAddItem_Rejections(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemoryStore(), nil)

	var verr *errors.ErrValidation
	assert.ErrorAs(t, s.AddItem(ctx, product("p1", 10, 5), 0), &verr)
	assert.ErrorAs(t, s.AddItem(ctx, product("p1", 10, 5), -2), &verr)
	assert.ErrorAs(t, s.AddItem(ctx, product("p1", 10, 0), 1), &verr)
	assert.ErrorAs(t, s.AddItem(ctx, nil, 1), &verr)
	assert.True(t, s.IsEmpty())
}

func TestUpdateQuantity_Clamps(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemoryStore(), nil)
	require.NoError(t, s.AddItem(ctx, product("p1", 10, 5), 2))

	tests := []struct {
		requested int
		want      int
	}{
		{3, 3},
		{0, 1},
		{-4, 1},
		{99, 5},
		{5, 5},
	}
	for _, tt := range tests {
		require.NoError(t, s.UpdateQuantity(ctx, "p1", tt.requested))
		assert.Equal(t, tt.want, s.Lines()[0].Quantity, "requested %d", tt.requested)
	}
}

func TestUpdateQuantity_MissingLine(t *testing.T) {
	s := newTestStore(t, storage.NewMemoryStore(), nil)

	err := s.UpdateQuantity(context.Background(), "nope", 2)

	var notFound *errors.ErrNotFound
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "nope", notFound.ID)
}

func TestUpdateQuantity_UsesLiveStock(t *testing.T) {
	ctx := context.Background()
	catalog := &mockCatalog{products: map[string]*domain.Product{"p1": product("p1", 10, 5)}}
	s := newTestStore(t, storage.NewMemoryStore(), catalog)
	require.NoError(t, s.AddItem(ctx, catalog.products["p1"], 1))

	catalog.products["p1"] = product("p1", 10, 8)
	require.NoError(t, s.UpdateQuantity(ctx, "p1", 7))
	assert.Equal(t, 7, s.Lines()[0].Quantity)

	catalog.products["p1"] = product("p1", 10, 3)
	require.NoError(t, s.UpdateQuantity(ctx, "p1", 7))
	assert.Equal(t, 3, s.Lines()[0].Quantity)

	// removed from catalog: captured stock still bounds the line
	delete(catalog.products, "p1")
	require.NoError(t, s.UpdateQuantity(ctx, "p1", 10))
	assert.Equal(t, 3, s.Lines()[0].Quantity)
}

func TestRemoveItem_Idempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemoryStore(), nil)
	require.NoError(t, s.AddItem(ctx, product("p1", 10, 5), 1))
	require.NoError(t, s.AddItem(ctx, product("p2", 4, 5), 1))

	require.NoError(t, s.RemoveItem(ctx, "p1"))
	require.NoError(t, s.RemoveItem(ctx, "p1"))
	require.NoError(t, s.RemoveItem(ctx, "never-added"))

	assert.Equal(t, map[string]int{"p2": 1}, quantities(s.Lines()))
}

func TestClear_Idempotent(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	s := newTestStore(t, kv, nil)
	require.NoError(t, s.AddItem(ctx, product("p1", 10, 5), 1))

	require.NoError(t, s.Clear(ctx))
	require.NoError(t, s.Clear(ctx))

	assert.True(t, s.IsEmpty())
	_, err := kv.Get(ctx, storage.Key(Namespace, "user-1"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestTotal_IndependentOfInsertionOrder(t *testing.T) {
	ctx := context.Background()
	products := []*domain.Product{
		product("a", 19.99, 10),
		product("b", 0.1, 10),
		product("c", 7.25, 10),
	}
	qty := map[string]int{"a": 2, "b": 3, "c": 1}

	forward := newTestStore(t, storage.NewMemoryStore(), nil)
	for _, p := range products {
		require.NoError(t, forward.AddItem(ctx, p, qty[p.ID]))
	}
	backward := newTestStore(t, storage.NewMemoryStore(), nil)
	for i := len(products) - 1; i >= 0; i-- {
		require.NoError(t, backward.AddItem(ctx, products[i], qty[products[i].ID]))
	}

	want := decimal.RequireFromString("47.53")
	assert.True(t, forward.Total().Equal(want), "got %s", forward.Total())
	assert.True(t, backward.Total().Equal(want), "got %s", backward.Total())
}

func TestTotal_NotRoundedInAggregate(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, storage.NewMemoryStore(), nil)
	p := &domain.Product{ID: "p", Price: decimal.RequireFromString("0.333"), Stock: 10, IsActive: true}

	require.NoError(t, s.AddItem(ctx, p, 3))

	assert.Equal(t, "0.999", s.Total().String())
	assert.Equal(t, "1.00", FormatMoney(s.Total()))
}

func TestPersistence_RoundTrip(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	s := newTestStore(t, kv, nil)
	require.NoError(t, s.AddItem(ctx, product("p1", 10, 5), 2))
	require.NoError(t, s.AddItem(ctx, product("p2", 3.5, 9), 4))
	require.NoError(t, s.AddItem(ctx, product("p3", 1, 1), 1))
	require.NoError(t, s.RemoveItem(ctx, "p3"))

	restored := newTestStore(t, kv, nil)

	before, after := s.Lines(), restored.Lines()
	require.Len(t, after, len(before))
	for i := range before {
		assert.Equal(t, before[i].ProductID, after[i].ProductID)
		assert.Equal(t, before[i].Quantity, after[i].Quantity)
		assert.True(t, before[i].Price.Equal(after[i].Price))
	}
	assert.True(t, s.Total().Equal(restored.Total()))
}

func TestPersistence_BadSnapshotsStartEmpty(t *testing.T) {
	ctx := context.Background()
	key := storage.Key(Namespace, "user-1")

	tests := map[string]string{
		"not json":          `{{{`,
		"wrong version":     `{"version":99,"lines":[{"product_id":"p1","price":"1","stock":5,"quantity":1}]}`,
		"zero quantity":     `{"version":1,"lines":[{"product_id":"p1","price":"1","stock":5,"quantity":0}]}`,
		"over stock":        `{"version":1,"lines":[{"product_id":"p1","price":"1","stock":2,"quantity":3}]}`,
		"duplicate product": `{"version":1,"lines":[{"product_id":"p1","price":"1","stock":5,"quantity":1},{"product_id":"p1","price":"1","stock":5,"quantity":1}]}`,
		"wrong shape":       `[1,2,3]`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			kv := storage.NewMemoryStore()
			require.NoError(t, kv.Put(ctx, key, []byte(raw)))

			s := newTestStore(t, kv, nil)

			assert.True(t, s.IsEmpty())
		})
	}
}

func TestPersistence_FailedWriteLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	kv := &failingStore{Store: storage.NewMemoryStore()}
	s := newTestStore(t, kv, nil)
	require.NoError(t, s.AddItem(ctx, product("p1", 10, 5), 2))

	kv.failPut = true
	kv.failDel = true

	var perr *errors.ErrPersistence
	assert.ErrorAs(t, s.AddItem(ctx, product("p2", 1, 5), 1), &perr)
	assert.ErrorAs(t, s.UpdateQuantity(ctx, "p1", 4), &perr)
	assert.ErrorAs(t, s.RemoveItem(ctx, "p1"), &perr)
	assert.ErrorAs(t, s.Clear(ctx), &perr)
	assert.ErrorAs(t, s.RemoveOrdered(ctx, s.Lines()), &perr)

	assert.Equal(t, map[string]int{"p1": 2}, quantities(s.Lines()))
}

func TestRemoveOrdered(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	s := newTestStore(t, kv, nil)
	require.NoError(t, s.AddItem(ctx, product("p1", 10, 5), 1))
	require.NoError(t, s.AddItem(ctx, product("p2", 5, 5), 2))

	ordered := s.Lines()
	require.NoError(t, s.AddItem(ctx, product("p1", 10, 5), 2))
	require.NoError(t, s.AddItem(ctx, product("p3", 1, 5), 1))

	require.NoError(t, s.RemoveOrdered(ctx, ordered))
	assert.Equal(t, map[string]int{"p1": 2, "p3": 1}, quantities(s.Lines()))
	assert.Equal(t, map[string]int{"p1": 2, "p3": 1}, quantities(newTestStore(t, kv, nil).Lines()))

	require.NoError(t, s.RemoveOrdered(ctx, s.Lines()))
	assert.True(t, s.IsEmpty())
	assert.True(t, newTestStore(t, kv, nil).IsEmpty())

	require.NoError(t, s.RemoveOrdered(ctx, ordered), "nothing left to remove")
}

func TestUnavailable(t *testing.T) {
	ctx := context.Background()
	inactive := product("p3", 5, 5)
	catalog := &mockCatalog{products: map[string]*domain.Product{
		"p1": product("p1", 10, 5),
		"p2": product("p2", 10, 5),
		"p3": inactive,
	}}
	s := newTestStore(t, storage.NewMemoryStore(), catalog)
	require.NoError(t, s.AddItem(ctx, catalog.products["p1"], 1))
	require.NoError(t, s.AddItem(ctx, catalog.products["p2"], 4))
	require.NoError(t, s.AddItem(ctx, catalog.products["p3"], 1))

	delete(catalog.products, "p1")
	catalog.products["p2"] = product("p2", 10, 2)
	inactive.IsActive = false

	ids, err := s.Unavailable(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"p1", "p2", "p3"}, ids)
}

func TestUnavailable_CatalogFailure(t *testing.T) {
	ctx := context.Background()
	catalog := &mockCatalog{products: map[string]*domain.Product{"p1": product("p1", 10, 5)}}
	s := newTestStore(t, storage.NewMemoryStore(), catalog)
	require.NoError(t, s.AddItem(ctx, catalog.products["p1"], 1))

	catalog.err = stderrors.New("connection refused")
	_, err := s.Unavailable(ctx)

	var perr *errors.ErrPersistence
	assert.ErrorAs(t, err, &perr)
}

func TestRegistry_OneStorePerOwner(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	r := NewRegistry(kv, nil, RegistryOptions{}, zap.NewNop())

	a := r.For(ctx, "alice")
	assert.Same(t, a, r.For(ctx, "alice"))
	assert.NotSame(t, a, r.For(ctx, "bob"))

	require.NoError(t, a.AddItem(ctx, product("p1", 2, 3), 2))
	r.Forget("alice")

	reloaded := r.For(ctx, "alice")
	assert.NotSame(t, a, reloaded)
	assert.Equal(t, 2, reloaded.ItemCount())
	assert.Equal(t, 0, r.For(ctx, "bob").ItemCount())
}

func TestRegistry_EvictsLeastRecentlyUsed(t *testing.T) {
	ctx := context.Background()
	kv := storage.NewMemoryStore()
	r := NewRegistry(kv, nil, RegistryOptions{Size: 2}, zap.NewNop())

	alice := r.For(ctx, "alice")
	require.NoError(t, alice.AddItem(ctx, product("p1", 2, 3), 2))
	r.For(ctx, "bob")
	r.For(ctx, "alice")
	r.For(ctx, "carol")

	assert.Equal(t, 2, r.Len())
	assert.Same(t, alice, r.For(ctx, "alice"), "recently used cart is kept")

	r.For(ctx, "dave")
	r.For(ctx, "erin")
	assert.Equal(t, 2, r.Len())

	reloaded := r.For(ctx, "alice")
	assert.NotSame(t, alice, reloaded)
	assert.Equal(t, 2, reloaded.ItemCount())
}

func TestRegistry_DropsIdleCarts(t *testing.T) {
	ctx := context.Background()
	r := NewRegistry(storage.NewMemoryStore(), nil, RegistryOptions{IdleTTL: 20 * time.Millisecond}, zap.NewNop())

	a := r.For(ctx, "alice")
	time.Sleep(60 * time.Millisecond)
	assert.NotSame(t, a, r.For(ctx, "alice"))
}
