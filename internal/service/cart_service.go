package service

import (
	"context"
	stderrors "errors"

	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/cart"
	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/pkg/errors"
)

type cartService struct {
	carts   *cart.Registry
	catalog cart.Catalog
	logger  *zap.Logger
}

// NewCartService resolves products through catalog and applies cart
// operations to the shopper's cart from carts
func NewCartService(carts *cart.Registry, catalog cart.Catalog, logger *zap.Logger) *cartService {
	return &cartService{
		carts:   carts,
		catalog: catalog,
		logger:  logger,
	}
}

// Cart returns the shopper's cart
func (s *cartService) Cart(ctx context.Context, owner string) *cart.Store {
	return s.carts.For(ctx, owner)
}

// AddItem looks up the product and adds quantity units of it. A zero
// quantity means one.
func (s *cartService) AddItem(ctx context.Context, owner, productID string, quantity int) (*cart.Store, error) {
	if quantity == 0 {
		quantity = 1
	}

	product, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.IsActive {
		return nil, &errors.ErrValidation{Field: "product_id", Message: "product is not available"}
	}

	c := s.carts.For(ctx, owner)
	if err := c.AddItem(ctx, product, quantity); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *cartService) UpdateQuantity(ctx context.Context, owner, productID string, quantity int) (*cart.Store, error) {
	c := s.carts.For(ctx, owner)
	if err := c.UpdateQuantity(ctx, productID, quantity); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *cartService) RemoveItem(ctx context.Context, owner, productID string) (*cart.Store, error) {
	c := s.carts.For(ctx, owner)
	if err := c.RemoveItem(ctx, productID); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *cartService) Clear(ctx context.Context, owner string) error {
	return s.carts.For(ctx, owner).Clear(ctx)
}

// Merge moves the guest cart from into the cart of to, typically on sign in.
// Quantities add up and clamp at stock. Lines whose product was removed,
// deactivated or sold out are dropped. The guest cart is emptied and
// forgotten afterwards.
func (s *cartService) Merge(ctx context.Context, from, to string) (*cart.Store, error) {
	dst := s.carts.For(ctx, to)
	if from == to {
		return dst, nil
	}

	src := s.carts.For(ctx, from)
	if src.IsEmpty() {
		s.carts.Forget(from)
		return dst, nil
	}

	moved := 0
	for _, l := range src.Lines() {
		product, err := s.catalog.GetProduct(ctx, l.ProductID)
		if err != nil {
			var notFound *errors.ErrNotFound
			if stderrors.As(err, &notFound) {
				continue
			}
			return nil, err
		}
		if !product.IsActive || product.Stock < 1 {
			continue
		}
		if err := dst.AddItem(ctx, product, l.Quantity); err != nil {
			return nil, err
		}
		moved++
	}

	if err := src.Clear(ctx); err != nil {
		return nil, err
	}
	s.carts.Forget(from)

	s.logger.Info("Guest cart merged",
		zap.String("from", from),
		zap.String("to", to),
		zap.Int("lines", moved),
	)
	return dst, nil
}

// ToResponse renders a cart for clients with money rounded for display
func ToResponse(lines []domain.CartLine) CartResponse {
	resp := CartResponse{
		Items: make([]CartLineResponse, 0, len(lines)),
		Total: cart.FormatMoney(cart.Subtotal(lines)),
	}
	for _, l := range lines {
		resp.ItemCount += l.Quantity
		resp.Items = append(resp.Items, CartLineResponse{
			ProductID: l.ProductID,
			Name:      l.Name,
			Image:     l.Image,
			Price:     cart.FormatMoney(l.Price),
			Stock:     l.Stock,
			Quantity:  l.Quantity,
			Subtotal:  cart.FormatMoney(l.Subtotal()),
		})
	}
	return resp
}
