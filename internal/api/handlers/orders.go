package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/api/middleware"
	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/service"
)

// OrderResponse represents the order response. Amounts are rounded to
// cents for display.
type OrderResponse struct {
	ID              string               `json:"id"`
	UserID          string               `json:"user_id"`
	CustomerName    string               `json:"customer_name"`
	CustomerEmail   string               `json:"customer_email"`
	Status          domain.OrderStatus   `json:"status"`
	PaymentStatus   domain.PaymentStatus `json:"payment_status"`
	Items           []OrderItemResponse  `json:"items"`
	Subtotal        string               `json:"subtotal"`
	Tax             string               `json:"tax"`
	ShippingCost    string               `json:"shipping_cost"`
	Discount        string               `json:"discount"`
	Total           string               `json:"total"`
	Currency        string               `json:"currency"`
	ShippingAddress domain.Address       `json:"shipping_address"`
	BillingAddress  *domain.Address      `json:"billing_address,omitempty"`
	Notes           string               `json:"notes,omitempty"`
	CreatedAt       string               `json:"created_at"`
	UpdatedAt       string               `json:"updated_at"`
}

type OrderItemResponse struct {
	ProductID string `json:"product_id"`
	Name      string `json:"name"`
	Image     string `json:"image,omitempty"`
	Price     string `json:"price"`
	Quantity  int    `json:"quantity"`
}

// OrderListResponse represents a page of orders
type OrderListResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int             `json:"total"`
}

func toOrderResponse(order *domain.Order) OrderResponse {
	items := make([]OrderItemResponse, len(order.Items))
	for i, item := range order.Items {
		items[i] = OrderItemResponse{
			ProductID: item.ProductID,
			Name:      item.Name,
			Image:     item.Image,
			Price:     item.Price.StringFixed(2),
			Quantity:  item.Quantity,
		}
	}

	return OrderResponse{
		ID:              order.ID.String(),
		UserID:          order.UserID,
		CustomerName:    order.CustomerName,
		CustomerEmail:   order.CustomerEmail,
		Status:          order.Status,
		PaymentStatus:   order.PaymentStatus,
		Items:           items,
		Subtotal:        order.Subtotal.StringFixed(2),
		Tax:             order.Tax.StringFixed(2),
		ShippingCost:    order.ShippingCost.StringFixed(2),
		Discount:        order.Discount.StringFixed(2),
		Total:           order.Total.StringFixed(2),
		Currency:        order.Currency,
		ShippingAddress: order.ShippingAddress,
		BillingAddress:  order.BillingAddress,
		Notes:           order.Notes,
		CreatedAt:       order.CreatedAt.Format(time.RFC3339),
		UpdatedAt:       order.UpdatedAt.Format(time.RFC3339),
	}
}

func toOrderResponses(orders []*domain.Order) []OrderResponse {
	out := make([]OrderResponse, len(orders))
	for i, o := range orders {
		out[i] = toOrderResponse(o)
	}
	return out
}

func parseOrderID(c *gin.Context) (uuid.UUID, bool) {
	orderID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid order ID"})
		return uuid.Nil, false
	}
	return orderID, true
}

// HandleCheckout handles POST /v1/checkout
func HandleCheckout(services *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := cartOwner(c)
		if !ok {
			return
		}
		user, _ := middleware.GetUserFromContext(c)

		// Check if this is an idempotent request
		_, _, existingOrderID, isExisting := middleware.GetIdempotencyInfo(c)
		if isExisting {
			orderID, err := uuid.Parse(existingOrderID)
			if err != nil {
				logger.Error("Invalid existing order ID from idempotency", zap.Error(err))
				c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
				return
			}
			order, err := services.Orders.Get(c.Request.Context(), orderID, user)
			if err != nil {
				respondError(c, logger, err)
				return
			}
			c.JSON(http.StatusOK, toOrderResponse(order))
			return
		}

		var req service.CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		order, err := services.Orders.Submit(c.Request.Context(), services.Cart.Cart(c.Request.Context(), owner), user, req)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		// Store idempotency key if provided
		idempotencyKey, requestHash, _, _ := middleware.GetIdempotencyInfo(c)
		if idempotencyKey != "" && services.Idempotency != nil {
			record := &domain.IdempotencyKey{
				Key:         idempotencyKey,
				UserID:      user.ID,
				OrderID:     order.ID,
				RequestHash: requestHash,
			}
			if err := services.Idempotency.Create(c.Request.Context(), record); err != nil {
				// Don't fail the request, the order exists
				logger.Warn("Failed to store idempotency key", zap.Error(err))
			}
		}

		c.JSON(http.StatusCreated, toOrderResponse(order))
	}
}

// HandleListMyOrders handles GET /v1/orders
func HandleListMyOrders(services *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.GetUserFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}

		orders, err := services.Orders.ListForUser(c.Request.Context(), user.ID, domain.OrderStatus(c.Query("status")))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, OrderListResponse{Orders: toOrderResponses(orders), Total: len(orders)})
	}
}

// HandleGetOrder handles GET /v1/orders/:id
func HandleGetOrder(services *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.GetUserFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		orderID, ok := parseOrderID(c)
		if !ok {
			return
		}

		order, err := services.Orders.Get(c.Request.Context(), orderID, user)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toOrderResponse(order))
	}
}

// HandleCancelOrder handles POST /v1/orders/:id/cancel
func HandleCancelOrder(services *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.GetUserFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		orderID, ok := parseOrderID(c)
		if !ok {
			return
		}

		order, err := services.Orders.Cancel(c.Request.Context(), orderID, user)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toOrderResponse(order))
	}
}
