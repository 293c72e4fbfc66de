package service

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository/kv"
	"github.com/jafarshop/storefront/internal/storage"
	"github.com/jafarshop/storefront/pkg/errors"
)

func newTestCatalog() *catalogService {
	return NewCatalogService(kv.NewProductRepository(storage.NewMemoryStore(), zap.NewNop()), zap.NewNop())
}

func TestCatalog_SeedSampleProducts(t *testing.T) {
	catalog := newTestCatalog()
	ctx := context.Background()

	n, err := catalog.SeedSampleProducts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	n, err = catalog.SeedSampleProducts(ctx)
	require.NoError(t, err)
	assert.Zero(t, n, "seeding a non-empty catalog does nothing")

	all, total, err := catalog.List(ctx, domain.ProductFilter{})
	require.NoError(t, err)
	assert.Equal(t, 6, total)
	assert.Equal(t, "1", all[0].ID)
	assert.Equal(t, "6", all[5].ID)

	home, _, err := catalog.List(ctx, domain.ProductFilter{Category: "Home"})
	require.NoError(t, err)
	assert.Len(t, home, 2)
}

func TestCatalog_CreateUpdateDelete(t *testing.T) {
	catalog := newTestCatalog()
	ctx := context.Background()

	var verr *errors.ErrValidation
	_, err := catalog.Create(ctx, ProductRequest{Name: "  "})
	assert.ErrorAs(t, err, &verr)
	_, err = catalog.Create(ctx, ProductRequest{Name: "Cheap", Price: decimal.NewFromInt(-1)})
	assert.ErrorAs(t, err, &verr)

	p, err := catalog.Create(ctx, ProductRequest{Name: "Desk", Price: decimal.RequireFromString("120.50"), Stock: 3})
	require.NoError(t, err)
	assert.True(t, p.IsActive)

	stock := -1
	_, err = catalog.Update(ctx, p.ID, domain.ProductUpdate{Stock: &stock})
	assert.ErrorAs(t, err, &verr)

	name := "Standing Desk"
	inactive := false
	updated, err := catalog.Update(ctx, p.ID, domain.ProductUpdate{Name: &name, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, "Standing Desk", updated.Name)
	assert.False(t, updated.IsActive)
	assert.Equal(t, 3, updated.Stock)

	adjusted, err := catalog.AdjustStock(ctx, p.ID, 7)
	require.NoError(t, err)
	assert.Equal(t, 10, adjusted.Stock)
	_, err = catalog.AdjustStock(ctx, p.ID, -11)
	assert.ErrorAs(t, err, &verr)

	require.NoError(t, catalog.Delete(ctx, p.ID))
	var notFound *errors.ErrNotFound
	_, err = catalog.GetProduct(ctx, p.ID)
	assert.ErrorAs(t, err, &notFound)
}

func TestCartService_AddChecksProduct(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	catalog := NewCatalogService(kv.NewProductRepository(store, zap.NewNop()), zap.NewNop())
	_, err := catalog.SeedSampleProducts(ctx)
	require.NoError(t, err)

	svc := NewServices(kv.NewRepositories(store, zap.NewNop()), store, Options{Pricing: testPricing()}, zap.NewNop()).Cart

	c, err := svc.AddItem(ctx, "shopper", "5", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, c.ItemCount())

	c, err = svc.AddItem(ctx, "shopper", "5", 50)
	require.NoError(t, err)
	assert.Equal(t, 10, c.ItemCount(), "clamped to stock")

	var notFound *errors.ErrNotFound
	_, err = svc.AddItem(ctx, "shopper", "missing", 1)
	assert.ErrorAs(t, err, &notFound)

	inactive := false
	_, err = catalog.Update(ctx, "6", domain.ProductUpdate{IsActive: &inactive})
	require.NoError(t, err)
	var verr *errors.ErrValidation
	_, err = svc.AddItem(ctx, "shopper", "6", 1)
	assert.ErrorAs(t, err, &verr)

	c, err = svc.UpdateQuantity(ctx, "shopper", "5", 0)
	require.NoError(t, err)
	assert.Equal(t, 1, c.ItemCount())

	resp := ToResponse(c.Lines())
	assert.Equal(t, "799.99", resp.Total)
	assert.Equal(t, 1, resp.ItemCount)

	c, err = svc.RemoveItem(ctx, "shopper", "5")
	require.NoError(t, err)
	assert.True(t, c.IsEmpty())
	require.NoError(t, svc.Clear(ctx, "shopper"))
}

func TestCartService_Merge(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStore()
	services := NewServices(kv.NewRepositories(store, zap.NewNop()), store, Options{Pricing: testPricing()}, zap.NewNop())
	_, err := services.Catalog.SeedSampleProducts(ctx)
	require.NoError(t, err)
	svc := services.Cart

	_, err = svc.AddItem(ctx, "guest:abc", "5", 3)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "guest:abc", "6", 1)
	require.NoError(t, err)
	_, err = svc.AddItem(ctx, "user-1", "5", 9)
	require.NoError(t, err)

	inactive := false
	_, err = services.Catalog.Update(ctx, "6", domain.ProductUpdate{IsActive: &inactive})
	require.NoError(t, err)

	merged, err := svc.Merge(ctx, "guest:abc", "user-1")
	require.NoError(t, err)
	lines := merged.Lines()
	require.Len(t, lines, 1, "inactive product dropped")
	assert.Equal(t, "5", lines[0].ProductID)
	assert.Equal(t, 10, lines[0].Quantity, "clamped to stock")

	assert.True(t, svc.Cart(ctx, "guest:abc").IsEmpty())

	again, err := svc.Merge(ctx, "guest:abc", "user-1")
	require.NoError(t, err)
	assert.Equal(t, 10, again.ItemCount(), "empty guest cart adds nothing")

	same, err := svc.Merge(ctx, "user-1", "user-1")
	require.NoError(t, err)
	assert.Same(t, merged, same)
}
