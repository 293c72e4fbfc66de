package service

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/cart"
	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/events"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

// Cart is what checkout needs from a shopper's cart. *cart.Store satisfies it.
type Cart interface {
	Owner() string
	Lines() []domain.CartLine
	Unavailable(ctx context.Context) ([]string, error)
	RemoveOrdered(ctx context.Context, ordered []domain.CartLine) error
}

type orderService struct {
	repos          *repository.Repositories
	pricing        Pricing
	currency       string
	decrementStock bool
	events         events.Publisher
	logger         *zap.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
	now      func() time.Time
}

// NewOrderService creates the checkout and order lifecycle service
func NewOrderService(repos *repository.Repositories, pricing Pricing, opts OrderOptions, logger *zap.Logger) *orderService {
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	if opts.Events == nil {
		opts.Events = events.Nop()
	}
	return &orderService{
		repos:          repos,
		pricing:        pricing,
		currency:       opts.Currency,
		decrementStock: opts.DecrementStock,
		events:         opts.Events,
		logger:         logger,
		inFlight:       make(map[string]struct{}),
		now:            time.Now,
	}
}

// OrderOptions tunes checkout behavior
type OrderOptions struct {
	Currency       string
	DecrementStock bool
	// Events receives order.placed and order.status_changed; nil disables
	Events events.Publisher
}

func (s *orderService) acquire(owner string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[owner]; busy {
		return false
	}
	s.inFlight[owner] = struct{}{}
	return true
}

func (s *orderService) release(owner string) {
	s.mu.Lock()
	delete(s.inFlight, owner)
	s.mu.Unlock()
}

// Submit turns the cart into a pending order and then takes the ordered lines
// out of the cart. The cart is only touched once the order is stored, and
// items added while the order was being written stay in it.
func (s *orderService) Submit(ctx context.Context, c Cart, user *domain.Identity, req CheckoutRequest) (*domain.Order, error) {
	if user == nil {
		return nil, &errors.ErrAuthRequired{Action: "place an order"}
	}

	owner := c.Owner()
	if !s.acquire(owner) {
		return nil, &errors.ErrConflict{Message: "checkout already in progress"}
	}
	defer s.release(owner)

	lines := c.Lines()
	if len(lines) == 0 {
		return nil, &errors.ErrValidation{Field: "cart", Message: "cart is empty"}
	}
	if missing := req.ShippingAddress.MissingFields(); len(missing) > 0 {
		return nil, &errors.ErrValidation{
			Field:   "shipping_address",
			Message: "missing " + strings.Join(missing, ", "),
		}
	}
	if req.BillingAddress != nil {
		if missing := req.BillingAddress.MissingFields(); len(missing) > 0 {
			return nil, &errors.ErrValidation{
				Field:   "billing_address",
				Message: "missing " + strings.Join(missing, ", "),
			}
		}
	}

	unavailable, err := c.Unavailable(ctx)
	if err != nil {
		return nil, err
	}
	if len(unavailable) > 0 {
		return nil, &errors.ErrValidation{
			Field:   "cart",
			Message: "no longer available: " + strings.Join(unavailable, ", "),
		}
	}

	quote := s.pricing.Quote(cart.Subtotal(lines), user)
	now := s.now().UTC()
	order := &domain.Order{
		ID:              uuid.New(),
		UserID:          user.ID,
		CustomerName:    user.Name,
		CustomerEmail:   user.Email,
		Items:           orderItems(lines),
		Subtotal:        quote.Subtotal,
		Tax:             quote.Tax,
		ShippingCost:    quote.Shipping,
		Discount:        quote.Discount,
		Total:           quote.Total,
		Currency:        s.currency,
		Status:          domain.OrderStatusPending,
		PaymentStatus:   domain.PaymentStatusPending,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		Notes:           strings.TrimSpace(req.Notes),
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.repos.Order.Create(ctx, order); err != nil {
		return nil, errors.Persistence("create order", err)
	}

	s.logger.Info("Order placed",
		zap.String("order_id", order.ID.String()),
		zap.String("user_id", user.ID),
		zap.String("total", order.Total.StringFixed(2)),
	)

	if s.decrementStock && s.repos.Product != nil {
		for _, item := range order.Items {
			if err := s.repos.Product.AdjustStock(ctx, item.ProductID, -item.Quantity); err != nil {
				s.logger.Warn("Failed to decrement stock",
					zap.String("order_id", order.ID.String()),
					zap.String("product_id", item.ProductID),
					zap.Error(err),
				)
			}
		}
	}

	s.publish(ctx, events.NewOrderPlaced(order))

	// The order exists at this point; a failed clear must not fail checkout.
	if err := c.RemoveOrdered(ctx, lines); err != nil {
		s.logger.Error("Failed to clear cart after checkout",
			zap.String("order_id", order.ID.String()),
			zap.String("cart_owner", owner),
			zap.Error(err),
		)
	}

	return order, nil
}

func orderItems(lines []domain.CartLine) []domain.OrderItem {
	items := make([]domain.OrderItem, 0, len(lines))
	for _, l := range lines {
		items = append(items, domain.OrderItem{
			ProductID: l.ProductID,
			Name:      l.Name,
			Image:     l.Image,
			Price:     l.Price,
			Quantity:  l.Quantity,
		})
	}
	return items
}

// Advance moves an order to status if the state machine allows it
func (s *orderService) Advance(ctx context.Context, orderID uuid.UUID, status domain.OrderStatus) (*domain.Order, error) {
	if !status.IsValid() {
		return nil, &errors.ErrValidation{Field: "status", Message: "unknown order status " + string(status)}
	}

	order, err := s.repos.Order.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	// Validate state transition
	if !order.Status.CanTransitionTo(status) {
		return nil, &errors.ErrInvalidStateTransition{
			From: order.Status,
			To:   status,
		}
	}

	if err := s.repos.Order.UpdateStatus(ctx, orderID, order.Status, status); err != nil {
		return nil, err
	}

	s.logger.Info("Order status changed",
		zap.String("order_id", orderID.String()),
		zap.String("from", string(order.Status)),
		zap.String("to", string(status)),
	)

	from := order.Status
	order.Status = status
	order.UpdatedAt = s.now().UTC()
	s.publish(ctx, events.NewStatusChanged(order, from))
	return order, nil
}

func (s *orderService) publish(ctx context.Context, event events.OrderEvent) {
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger.Warn("Failed to publish order event",
			zap.String("type", event.Type),
			zap.String("order_id", event.OrderID),
			zap.Error(err),
		)
	}
}

// Cancel cancels an order on behalf of user. Shoppers can only cancel their
// own orders; other orders look absent to them.
func (s *orderService) Cancel(ctx context.Context, orderID uuid.UUID, user *domain.Identity) (*domain.Order, error) {
	if _, err := s.Get(ctx, orderID, user); err != nil {
		return nil, err
	}
	return s.Advance(ctx, orderID, domain.OrderStatusCancelled)
}

// Get returns an order visible to user. Admins see every order.
func (s *orderService) Get(ctx context.Context, orderID uuid.UUID, user *domain.Identity) (*domain.Order, error) {
	if user == nil {
		return nil, &errors.ErrAuthRequired{Action: "view orders"}
	}
	order, err := s.repos.Order.GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if !user.IsAdmin && order.UserID != user.ID {
		return nil, &errors.ErrNotFound{Resource: "order", ID: orderID.String()}
	}
	return order, nil
}

// ListForUser returns the user's orders, newest first. An empty status
// matches every order.
func (s *orderService) ListForUser(ctx context.Context, userID string, status domain.OrderStatus) ([]*domain.Order, error) {
	if status != "" && !status.IsValid() {
		return nil, &errors.ErrValidation{Field: "status", Message: "unknown order status " + string(status)}
	}
	return s.repos.Order.ListByUserID(ctx, userID, status)
}

// List returns a page of all orders matching filter and the total matching count
func (s *orderService) List(ctx context.Context, filter domain.OrderFilter) ([]*domain.Order, int, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, &errors.ErrValidation{Field: "status", Message: "unknown order status " + string(filter.Status)}
	}
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, 0, &errors.ErrValidation{Field: "limit", Message: "limit and offset must not be negative"}
	}
	return s.repos.Order.List(ctx, filter)
}

func (s *orderService) UpdatePaymentStatus(ctx context.Context, orderID uuid.UUID, status domain.PaymentStatus) (*domain.Order, error) {
	if !status.IsValid() {
		return nil, &errors.ErrValidation{Field: "payment_status", Message: "unknown payment status " + string(status)}
	}
	if err := s.repos.Order.UpdatePaymentStatus(ctx, orderID, status); err != nil {
		return nil, err
	}
	return s.repos.Order.GetByID(ctx, orderID)
}
