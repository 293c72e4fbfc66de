package service

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/cart"
	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/events"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/internal/repository/kv"
	"github.com/jafarshop/storefront/internal/storage"
	"github.com/jafarshop/storefront/pkg/errors"
)

var testAddress = domain.Address{
	Street:  "1 Main St",
	City:    "Springfield",
	State:   "IL",
	ZipCode: "62701",
	Country: "US",
}

var testUser = &domain.Identity{ID: "user-1", Name: "Ada", Email: "ada@example.com"}

type checkoutFixture struct {
	repos   *repository.Repositories
	catalog *catalogService
	cart    *cart.Store
	orders  *orderService
}

func testPricing() Pricing {
	return Pricing{
		TaxRate:               decimal.RequireFromString("0.08"),
		FreeShippingThreshold: decimal.NewFromInt(100),
		FlatShippingFee:       decimal.RequireFromString("9.99"),
	}
}

func newCheckoutFixture(t *testing.T) *checkoutFixture {
	t.Helper()
	kvStore := storage.NewMemoryStore()
	repos := kv.NewRepositories(kvStore, zap.NewNop())
	catalog := NewCatalogService(repos.Product, zap.NewNop())

	for _, p := range []*domain.Product{
		{ID: "p1", Name: "Mug", Price: decimal.NewFromInt(10), Stock: 5, IsActive: true},
		{ID: "p2", Name: "Lamp", Price: decimal.NewFromInt(50), Stock: 4, IsActive: true},
	} {
		require.NoError(t, repos.Product.Create(context.Background(), p))
	}

	return &checkoutFixture{
		repos:   repos,
		catalog: catalog,
		cart:    cart.NewStore(context.Background(), testUser.ID, kvStore, catalog, zap.NewNop()),
		orders:  NewOrderService(repos, testPricing(), OrderOptions{Currency: "USD", DecrementStock: true}, zap.NewNop()),
	}
}

func (f *checkoutFixture) add(t *testing.T, id string, qty int) {
	t.Helper()
	p, err := f.catalog.GetProduct(context.Background(), id)
	require.NoError(t, err)
	require.NoError(t, f.cart.AddItem(context.Background(), p, qty))
}

func TestSubmit_Success(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	f.add(t, "p1", 3)

	order, err := f.orders.Submit(ctx, f.cart, testUser, CheckoutRequest{ShippingAddress: testAddress, Notes: "  leave at door "})
	require.NoError(t, err)

	assert.Equal(t, domain.OrderStatusPending, order.Status)
	assert.Equal(t, domain.PaymentStatusPending, order.PaymentStatus)
	assert.Equal(t, "user-1", order.UserID)
	assert.Equal(t, "leave at door", order.Notes)
	assert.Equal(t, "30", order.Subtotal.String())
	assert.Equal(t, "2.4", order.Tax.String())
	assert.Equal(t, "9.99", order.ShippingCost.String())
	assert.Equal(t, "42.39", order.Total.String())
	require.Len(t, order.Items, 1)
	assert.Equal(t, 3, order.Items[0].Quantity)

	assert.True(t, f.cart.IsEmpty(), "cart is cleared after checkout")

	stored, err := f.repos.Order.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.Total.Equal(order.Total))

	p, err := f.catalog.GetProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Stock)
}

func TestSubmit_ShippingChargedAtThreshold(t *testing.T) {
	f := newCheckoutFixture(t)
	f.add(t, "p2", 2)

	order, err := f.orders.Submit(context.Background(), f.cart, testUser, CheckoutRequest{ShippingAddress: testAddress})
	require.NoError(t, err)
	assert.Equal(t, "9.99", order.ShippingCost.String())
	assert.Equal(t, "117.99", order.Total.String())
}

func TestSubmit_FreeShippingAboveThreshold(t *testing.T) {
	f := newCheckoutFixture(t)
	f.add(t, "p2", 2)
	f.add(t, "p1", 1)

	order, err := f.orders.Submit(context.Background(), f.cart, testUser, CheckoutRequest{ShippingAddress: testAddress})
	require.NoError(t, err)
	assert.True(t, order.ShippingCost.IsZero())
	assert.Equal(t, "118.8", order.Total.String())
}

func TestPricing_ShippingBoundary(t *testing.T) {
	p := testPricing()

	tests := map[string]struct {
		subtotal string
		shipping string
	}{
		"below":      {"99.99", "9.99"},
		"at":         {"100", "9.99"},
		"just above": {"100.01", "0"},
	}
	for name, tt := range tests {
		t.Run(name, func(t *testing.T) {
			q := p.Quote(decimal.RequireFromString(tt.subtotal), testUser)
			assert.Equal(t, tt.shipping, q.Shipping.String())
		})
	}
}

func TestSubmit_ItemsAreSnapshots(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	f.add(t, "p1", 1)

	order, err := f.orders.Submit(ctx, f.cart, testUser, CheckoutRequest{ShippingAddress: testAddress})
	require.NoError(t, err)

	price := decimal.NewFromInt(99)
	_, err = f.catalog.Update(ctx, "p1", domain.ProductUpdate{Price: &price})
	require.NoError(t, err)

	stored, err := f.repos.Order.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, "10", stored.Items[0].Price.String())
}

func TestSubmit_EmptyCart(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()

	_, err := f.orders.Submit(ctx, f.cart, testUser, CheckoutRequest{ShippingAddress: testAddress})
	var verr *errors.ErrValidation
	require.ErrorAs(t, err, &verr)

	orders, total, err := f.repos.Order.List(ctx, domain.OrderFilter{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, orders)
}

func TestSubmit_RequiresUser(t *testing.T) {
	f := newCheckoutFixture(t)
	f.add(t, "p1", 1)

	_, err := f.orders.Submit(context.Background(), f.cart, nil, CheckoutRequest{ShippingAddress: testAddress})
	var authErr *errors.ErrAuthRequired
	assert.ErrorAs(t, err, &authErr)
	assert.Equal(t, 1, f.cart.ItemCount())
}

func TestSubmit_InvalidAddress(t *testing.T) {
	f := newCheckoutFixture(t)
	f.add(t, "p1", 1)

	addr := testAddress
	addr.City = "   "
	addr.ZipCode = ""
	_, err := f.orders.Submit(context.Background(), f.cart, testUser, CheckoutRequest{ShippingAddress: addr})
	var verr *errors.ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "city")
	assert.Contains(t, verr.Message, "zip_code")

	billing := domain.Address{Street: "2 Side St"}
	_, err = f.orders.Submit(context.Background(), f.cart, testUser, CheckoutRequest{ShippingAddress: testAddress, BillingAddress: &billing})
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "billing_address", verr.Field)
	assert.Equal(t, 1, f.cart.ItemCount())
}

func TestSubmit_UnavailableProduct(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	f.add(t, "p1", 1)
	f.add(t, "p2", 1)

	inactive := false
	_, err := f.catalog.Update(ctx, "p2", domain.ProductUpdate{IsActive: &inactive})
	require.NoError(t, err)

	_, err = f.orders.Submit(ctx, f.cart, testUser, CheckoutRequest{ShippingAddress: testAddress})
	var verr *errors.ErrValidation
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Message, "p2")
	assert.Len(t, f.cart.Lines(), 2)
}

type failingOrderRepository struct {
	repository.OrderRepository
}

func (failingOrderRepository) Create(context.Context, *domain.Order) error {
	return errors.Persistence("create order", stderrors.New("disk full"))
}

func TestSubmit_PersistenceFailureKeepsCart(t *testing.T) {
	f := newCheckoutFixture(t)
	f.add(t, "p1", 2)
	f.repos.Order = failingOrderRepository{f.repos.Order}

	before := f.cart.Lines()
	_, err := f.orders.Submit(context.Background(), f.cart, testUser, CheckoutRequest{ShippingAddress: testAddress})

	var perr *errors.ErrPersistence
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, before, f.cart.Lines())

	p, err := f.catalog.GetProduct(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, 5, p.Stock, "stock untouched when the order was not stored")
}

type unclearableCart struct {
	*cart.Store
}

func (unclearableCart) RemoveOrdered(context.Context, []domain.CartLine) error {
	return errors.Persistence("save cart", stderrors.New("read-only"))
}

func TestSubmit_ClearFailureStillReturnsOrder(t *testing.T) {
	f := newCheckoutFixture(t)
	f.add(t, "p1", 1)

	order, err := f.orders.Submit(context.Background(), unclearableCart{f.cart}, testUser, CheckoutRequest{ShippingAddress: testAddress})
	require.NoError(t, err)
	assert.NotNil(t, order)
}

type blockingOrderRepository struct {
	repository.OrderRepository
	entered chan struct{}
	release chan struct{}
}

func (b *blockingOrderRepository) Create(ctx context.Context, order *domain.Order) error {
	close(b.entered)
	<-b.release
	return b.OrderRepository.Create(ctx, order)
}

func TestSubmit_ConcurrentCheckoutCreatesOneOrder(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	f.add(t, "p1", 1)

	blocking := &blockingOrderRepository{
		OrderRepository: f.repos.Order,
		entered:         make(chan struct{}),
		release:         make(chan struct{}),
	}
	f.repos.Order = blocking

	var (
		wg       sync.WaitGroup
		firstErr error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		_, firstErr = f.orders.Submit(ctx, f.cart, testUser, CheckoutRequest{ShippingAddress: testAddress})
	}()

	<-blocking.entered
	_, err := f.orders.Submit(ctx, f.cart, testUser, CheckoutRequest{ShippingAddress: testAddress})
	var conflict *errors.ErrConflict
	assert.ErrorAs(t, err, &conflict)

	close(blocking.release)
	wg.Wait()
	require.NoError(t, firstErr)

	_, total, err := f.repos.Order.List(ctx, domain.OrderFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
}

func TestSubmit_KeepsItemsAddedDuringCheckout(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	f.add(t, "p1", 1)

	blocking := &blockingOrderRepository{
		OrderRepository: f.repos.Order,
		entered:         make(chan struct{}),
		release:         make(chan struct{}),
	}
	f.repos.Order = blocking

	var (
		wg    sync.WaitGroup
		order *domain.Order
		err   error
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		order, err = f.orders.Submit(ctx, f.cart, testUser, CheckoutRequest{ShippingAddress: testAddress})
	}()

	<-blocking.entered
	f.add(t, "p2", 1)
	f.add(t, "p1", 2)
	close(blocking.release)
	wg.Wait()

	require.NoError(t, err)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "p1", order.Items[0].ProductID)
	assert.Equal(t, 1, order.Items[0].Quantity)

	lines := f.cart.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, "p1", lines[0].ProductID)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, "p2", lines[1].ProductID)
	assert.Equal(t, 1, lines[1].Quantity)
}

func placeOrder(t *testing.T, f *checkoutFixture) *domain.Order {
	t.Helper()
	f.add(t, "p1", 1)
	order, err := f.orders.Submit(context.Background(), f.cart, testUser, CheckoutRequest{ShippingAddress: testAddress})
	require.NoError(t, err)
	return order
}

func TestAdvance_Lifecycle(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	order := placeOrder(t, f)

	for _, next := range []domain.OrderStatus{
		domain.OrderStatusProcessing,
		domain.OrderStatusShipped,
		domain.OrderStatusDelivered,
	} {
		updated, err := f.orders.Advance(ctx, order.ID, next)
		require.NoError(t, err)
		assert.Equal(t, next, updated.Status)
	}

	_, err := f.orders.Advance(ctx, order.ID, domain.OrderStatusPending)
	var transition *errors.ErrInvalidStateTransition
	require.ErrorAs(t, err, &transition)
	assert.Equal(t, domain.OrderStatusDelivered, transition.From)

	stored, err := f.repos.Order.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusDelivered, stored.Status)
}

func TestAdvance_Errors(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	order := placeOrder(t, f)

	var verr *errors.ErrValidation
	_, err := f.orders.Advance(ctx, order.ID, "teleported")
	assert.ErrorAs(t, err, &verr)

	var notFound *errors.ErrNotFound
	_, err = f.orders.Advance(ctx, uuid.New(), domain.OrderStatusProcessing)
	assert.ErrorAs(t, err, &notFound)

	var transition *errors.ErrInvalidStateTransition
	_, err = f.orders.Advance(ctx, order.ID, domain.OrderStatusDelivered)
	assert.ErrorAs(t, err, &transition)
}

func TestCancel_OwnershipAndTerminal(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	order := placeOrder(t, f)

	stranger := &domain.Identity{ID: "user-2"}
	var notFound *errors.ErrNotFound
	_, err := f.orders.Cancel(ctx, order.ID, stranger)
	assert.ErrorAs(t, err, &notFound)

	cancelled, err := f.orders.Cancel(ctx, order.ID, testUser)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)

	var transition *errors.ErrInvalidStateTransition
	_, err = f.orders.Cancel(ctx, order.ID, testUser)
	assert.ErrorAs(t, err, &transition)

	admin := &domain.Identity{ID: "admin", IsAdmin: true}
	got, err := f.orders.Get(ctx, order.ID, admin)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, got.Status)
}

func TestListAndPaymentStatus(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	order := placeOrder(t, f)

	mine, err := f.orders.ListForUser(ctx, testUser.ID, "")
	require.NoError(t, err)
	require.Len(t, mine, 1)

	var verr *errors.ErrValidation
	_, err = f.orders.ListForUser(ctx, testUser.ID, "lost")
	assert.ErrorAs(t, err, &verr)
	_, _, err = f.orders.List(ctx, domain.OrderFilter{Limit: -1})
	assert.ErrorAs(t, err, &verr)
	_, _, err = f.orders.List(ctx, domain.OrderFilter{Status: "lost"})
	assert.ErrorAs(t, err, &verr)

	found, total, err := f.orders.List(ctx, domain.OrderFilter{Search: "ADA@EXAMPLE"})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, order.ID, found[0].ID)

	updated, err := f.orders.UpdatePaymentStatus(ctx, order.ID, domain.PaymentStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusCompleted, updated.PaymentStatus)

	_, err = f.orders.UpdatePaymentStatus(ctx, order.ID, "bounced")
	assert.ErrorAs(t, err, &verr)
}

func TestPricing_DiscountIsCapped(t *testing.T) {
	p := testPricing()
	p.Discount = func(decimal.Decimal, *domain.Identity) decimal.Decimal {
		return decimal.NewFromInt(1000)
	}

	q := p.Quote(decimal.NewFromInt(20), testUser)
	assert.True(t, q.Total.IsZero())
	assert.Equal(t, "31.59", q.Discount.String())

	p.Discount = func(decimal.Decimal, *domain.Identity) decimal.Decimal {
		return decimal.NewFromInt(-5)
	}
	q = p.Quote(decimal.NewFromInt(20), testUser)
	assert.True(t, q.Discount.IsZero())
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []events.OrderEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, event events.OrderEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func TestOrderEvents(t *testing.T) {
	f := newCheckoutFixture(t)
	ctx := context.Background()
	pub := &recordingPublisher{}
	f.orders = NewOrderService(f.repos, testPricing(), OrderOptions{Events: pub}, zap.NewNop())

	order := placeOrder(t, f)
	_, err := f.orders.Advance(ctx, order.ID, domain.OrderStatusProcessing)
	require.NoError(t, err)

	// rejected transitions publish nothing
	_, err = f.orders.Advance(ctx, order.ID, domain.OrderStatusDelivered)
	require.Error(t, err)

	require.Len(t, pub.events, 2)
	assert.Equal(t, events.OrderPlaced, pub.events[0].Type)
	assert.Equal(t, order.ID.String(), pub.events[0].OrderID)
	assert.Equal(t, events.OrderStatusChanged, pub.events[1].Type)
	assert.Equal(t, domain.OrderStatusPending, pub.events[1].From)
	assert.Equal(t, domain.OrderStatusProcessing, pub.events[1].Status)
}

func TestOrderEvents_PublishFailureDoesNotFailCheckout(t *testing.T) {
	f := newCheckoutFixture(t)
	pub := &recordingPublisher{err: stderrors.New("broker down")}
	f.orders = NewOrderService(f.repos, testPricing(), OrderOptions{Events: pub}, zap.NewNop())

	order := placeOrder(t, f)
	assert.Equal(t, "USD", order.Currency)
	assert.True(t, f.cart.IsEmpty())
	assert.Len(t, pub.events, 1)
}
