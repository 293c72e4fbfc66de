package service

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/cart"
	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/internal/storage"
)

type AuthService interface {
	Register(ctx context.Context, name, email, password string) (*domain.Identity, error)
	CreateAdmin(ctx context.Context, name, email, password string) (*domain.Identity, error)
	Login(ctx context.Context, email, password string) (string, *domain.Identity, error)
	Logout(ctx context.Context, token string) error
	Identify(ctx context.Context, token string) (*domain.Identity, error)
	ListUsers(ctx context.Context, adminsOnly bool) ([]*domain.Identity, error)
	SetAdmin(ctx context.Context, actor *domain.Identity, userID string, isAdmin bool) (*domain.Identity, error)
}

type CatalogService interface {
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error)
	Create(ctx context.Context, req ProductRequest) (*domain.Product, error)
	Update(ctx context.Context, id string, upd domain.ProductUpdate) (*domain.Product, error)
	Delete(ctx context.Context, id string) error
	AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error)
	SeedSampleProducts(ctx context.Context) (int, error)
}

type CartService interface {
	Cart(ctx context.Context, owner string) *cart.Store
	AddItem(ctx context.Context, owner, productID string, quantity int) (*cart.Store, error)
	UpdateQuantity(ctx context.Context, owner, productID string, quantity int) (*cart.Store, error)
	RemoveItem(ctx context.Context, owner, productID string) (*cart.Store, error)
	Clear(ctx context.Context, owner string) error
	Merge(ctx context.Context, from, to string) (*cart.Store, error)
}

type OrderService interface {
	Submit(ctx context.Context, c Cart, user *domain.Identity, req CheckoutRequest) (*domain.Order, error)
	Advance(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error)
	Cancel(ctx context.Context, orderID uuid.UUID, user *domain.Identity) (*domain.Order, error)
	Get(ctx context.Context, orderID uuid.UUID, user *domain.Identity) (*domain.Order, error)
	ListForUser(ctx context.Context, userID string, status domain.OrderStatus) ([]*domain.Order, error)
	List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, int, error)
	UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status domain.PaymentStatus) (*domain.Order, error)
}

type StatsService interface {
	Stats(ctx context.Context) (*Stats, error)
}

// Services is everything the HTTP layer calls into
type Services struct {
	Auth        AuthService
	Catalog     CatalogService
	Cart        CartService
	Orders      OrderService
	Stats       StatsService
	Idempotency repository.IdempotencyRepository
}

// Options configures NewServices
type Options struct {
	Pricing Pricing
	Orders  OrderOptions
	Carts   cart.RegistryOptions
}

// NewServices wires the services over repos. Carts are kept in carts.
func NewServices(repos *repository.Repositories, carts storage.Store, opts Options, logger *zap.Logger) *Services {
	catalog := NewCatalogService(repos.Product, logger)
	return &Services{
		Auth:        NewAuthService(repos.User, repos.Session, logger),
		Catalog:     catalog,
		Cart:        NewCartService(cart.NewRegistry(carts, catalog, opts.Carts, logger), catalog, logger),
		Orders:      NewOrderService(repos, opts.Pricing, opts.Orders, logger),
		Stats:       NewStatsService(repos, logger),
		Idempotency: repos.Idempotency,
	}
}
