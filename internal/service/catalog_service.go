package service

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

type catalogService struct {
	products repository.ProductRepository
	logger   *zap.Logger
}

// NewCatalogService creates a new catalog service. It satisfies cart.Catalog.
func NewCatalogService(products repository.ProductRepository, logger *zap.Logger) *catalogService {
	return &catalogService{
		products: products,
		logger:   logger,
	}
}

func (s *catalogService) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return s.products.GetByID(ctx, id)
}

func (s *catalogService) List(ctx context.Context, filter domain.ProductFilter) ([]*domain.Product, int, error) {
	if filter.Limit < 0 || filter.Offset < 0 {
		return nil, 0, &errors.ErrValidation{Field: "limit", Message: "limit and offset must not be negative"}
	}
	return s.products.List(ctx, filter)
}

func (s *catalogService) Create(ctx context.Context, req ProductRequest) (*domain.Product, error) {
	product := &domain.Product{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Price:       req.Price,
		Image:       req.Image,
		Category:    req.Category,
		Stock:       req.Stock,
		IsActive:    true,
	}
	if req.IsActive != nil {
		product.IsActive = *req.IsActive
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, err
	}
	s.logger.Info("Product created", zap.String("product_id", product.ID), zap.String("name", product.Name))
	return product, nil
}

// Update applies the non-nil fields of upd
func (s *catalogService) Update(ctx context.Context, id string, upd domain.ProductUpdate) (*domain.Product, error) {
	product, err := s.products.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Name != nil {
		product.Name = strings.TrimSpace(*upd.Name)
	}
	if upd.Description != nil {
		product.Description = *upd.Description
	}
	if upd.Price != nil {
		product.Price = *upd.Price
	}
	if upd.Image != nil {
		product.Image = *upd.Image
	}
	if upd.Category != nil {
		product.Category = *upd.Category
	}
	if upd.Stock != nil {
		product.Stock = *upd.Stock
	}
	if upd.IsActive != nil {
		product.IsActive = *upd.IsActive
	}
	if err := validateProduct(product); err != nil {
		return nil, err
	}

	if err := s.products.Update(ctx, product); err != nil {
		return nil, err
	}
	return product, nil
}

func (s *catalogService) Delete(ctx context.Context, id string) error {
	if err := s.products.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("Product deleted", zap.String("product_id", id))
	return nil
}

// AdjustStock adds delta to the product's stock. Stock never goes negative.
func (s *catalogService) AdjustStock(ctx context.Context, id string, delta int) (*domain.Product, error) {
	if err := s.products.AdjustStock(ctx, id, delta); err != nil {
		return nil, err
	}
	return s.products.GetByID(ctx, id)
}

func validateProduct(p *domain.Product) error {
	if p.Name == "" {
		return &errors.ErrValidation{Field: "name", Message: "name is required"}
	}
	if p.Price.IsNegative() {
		return &errors.ErrValidation{Field: "price", Message: "price must not be negative"}
	}
	if p.Stock < 0 {
		return &errors.ErrValidation{Field: "stock", Message: "stock must not be negative"}
	}
	return nil
}

// SeedSampleProducts fills an empty catalog with the demo products and
// reports how many were created
func (s *catalogService) SeedSampleProducts(ctx context.Context) (int, error) {
	_, total, err := s.products.List(ctx, domain.ProductFilter{Limit: 1})
	if err != nil {
		return 0, err
	}
	if total > 0 {
		return 0, nil
	}

	base := time.Now().UTC()
	samples := SampleProducts()
	for i, p := range samples {
		// keep the listed order under newest-first sorting
		p.CreatedAt = base.Add(-time.Duration(i) * time.Second)
		p.UpdatedAt = p.CreatedAt
		if err := s.products.Create(ctx, p); err != nil {
			return i, err
		}
	}
	s.logger.Info("Seeded sample products", zap.Int("count", len(samples)))
	return len(samples), nil
}

// SampleProducts returns the demo catalog
func SampleProducts() []*domain.Product {
	return []*domain.Product{
		{
			ID:          "1",
			Name:        "Wireless Headphones",
			Description: "Premium noise-cancelling wireless headphones with long battery life.",
			Price:       decimal.RequireFromString("149.99"),
			Image:       "https://images.unsplash.com/photo-1505740420928-5e560c06d30e",
			Category:    "Electronics",
			Stock:       25,
			IsActive:    true,
		},
		{
			ID:          "2",
			Name:        "Smart Watch",
			Description: "Track your fitness, receive notifications, and more with this sleek smartwatch.",
			Price:       decimal.RequireFromString("199.99"),
			Image:       "https://images.unsplash.com/photo-1523275335684-37898b6baf30",
			Category:    "Electronics",
			Stock:       18,
			IsActive:    true,
		},
		{
			ID:          "3",
			Name:        "Premium Backpack",
			Description: "Durable and stylish backpack with laptop compartment and multiple pockets.",
			Price:       decimal.RequireFromString("79.99"),
			Image:       "https://images.unsplash.com/photo-1553062407-98eeb64c6a91",
			Category:    "Fashion",
			Stock:       42,
			IsActive:    true,
		},
		{
			ID:          "4",
			Name:        "Coffee Maker",
			Description: "Programmable coffee maker that brews the perfect cup every time.",
			Price:       decimal.RequireFromString("89.99"),
			Image:       "https://images.unsplash.com/photo-1520201163981-8cc95007dd2a",
			Category:    "Home",
			Stock:       15,
			IsActive:    true,
		},
		{
			ID:          "5",
			Name:        "Smartphone",
			Description: "Latest model with high-resolution camera and long-lasting battery.",
			Price:       decimal.RequireFromString("799.99"),
			Image:       "https://images.unsplash.com/photo-1511707171634-5f897ff02ff9",
			Category:    "Electronics",
			Stock:       10,
			IsActive:    true,
		},
		{
			ID:          "6",
			Name:        "Plant Stand",
			Description: "Modern plant stand to display your favorite indoor plants.",
			Price:       decimal.RequireFromString("49.99"),
			Image:       "https://images.unsplash.com/photo-1485955900006-10f4d324d411",
			Category:    "Home",
			Stock:       30,
			IsActive:    true,
		},
	}
}
