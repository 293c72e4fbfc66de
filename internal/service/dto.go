package service

import (
	"github.com/shopspring/decimal"

	"github.com/jafarshop/storefront/internal/domain"
)

// CheckoutRequest represents the checkout payload
type CheckoutRequest struct {
	ShippingAddress domain.Address  `json:"shipping_address"`
	BillingAddress  *domain.Address `json:"billing_address,omitempty"`
	Notes           string          `json:"notes,omitempty"`
}

// AddItemRequest adds a product to the caller's cart
type AddItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

// UpdateQuantityRequest sets a cart line quantity. Out of range values are
// clamped, so no bounds are enforced here.
type UpdateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

type RegisterRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// ProductRequest creates a product
type ProductRequest struct {
	Name        string          `json:"name" binding:"required"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image"`
	Category    string          `json:"category"`
	Stock       int             `json:"stock" binding:"min=0"`
	IsActive    *bool           `json:"is_active,omitempty"`
}

// ProductPatchRequest partially updates a product
type ProductPatchRequest struct {
	Name        *string          `json:"name,omitempty"`
	Description *string          `json:"description,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"`
	Image       *string          `json:"image,omitempty"`
	Category    *string          `json:"category,omitempty"`
	Stock       *int             `json:"stock,omitempty"`
	IsActive    *bool            `json:"is_active,omitempty"`
}

// ToUpdate converts the request into a domain update
func (r ProductPatchRequest) ToUpdate() domain.ProductUpdate {
	return domain.ProductUpdate{
		Name:        r.Name,
		Description: r.Description,
		Price:       r.Price,
		Image:       r.Image,
		Category:    r.Category,
		Stock:       r.Stock,
		IsActive:    r.IsActive,
	}
}

type StockAdjustRequest struct {
	Delta int `json:"delta"`
}

type OrderStatusRequest struct {
	Status domain.OrderStatus `json:"status" binding:"required"`
}

type PaymentStatusRequest struct {
	PaymentStatus domain.PaymentStatus `json:"payment_status" binding:"required"`
}

type SetAdminRequest struct {
	IsAdmin bool `json:"is_admin"`
}

// CartResponse is the cart as returned to clients. Money is rounded here
// and nowhere else.
type CartResponse struct {
	Items     []CartLineResponse `json:"items"`
	ItemCount int                `json:"item_count"`
	Total     string             `json:"total"`
}

type CartLineResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	Price     string `json:"price"`
	Stock     int    `json:"stock"`
	Quantity  int    `json:"quantity"`
	Subtotal  string `json:"subtotal"`
}
