package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/api/middleware"
	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/service"
)

// HandleCreateProduct handles POST /v1/admin/products
func HandleCreateProduct(services *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.ProductRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		product, err := services.Catalog.Create(c.Request.Context(), req)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, product)
	}
}

// HandleUpdateProduct handles PATCH /v1/admin/products/:id
func HandleUpdateProduct(services *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.ProductPatchRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		product, err := services.Catalog.Update(c.Request.Context(), c.Param("id"), req.ToUpdate())
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

// HandleDeleteProduct handles DELETE /v1/admin/products/:id
func HandleDeleteProduct(services *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := services.Catalog.Delete(c.Request.Context(), c.Param("id")); err != nil {
			respondError(c, logger, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// HandleAdjustStock handles POST /v1/admin/products/:id/stock
func HandleAdjustStock(services *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.StockAdjustRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		product, err := services.Catalog.AdjustStock(c.Request.Context(), c.Param("id"), req.Delta)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, product)
	}
}

// HandleListOrders handles GET /v1/admin/orders
func HandleListOrders(services *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := queryInt(c, "limit", 50)
		if !ok {
			return
		}
		offset, ok := queryInt(c, "offset", 0)
		if !ok {
			return
		}

		orders, total, err := services.Orders.List(c.Request.Context(), domain.OrderFilter{
			Status: domain.OrderStatus(c.Query("status")),
			Search: c.Query("search"),
			Limit:  limit,
			Offset: offset,
		})
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, OrderListResponse{Orders: toOrderResponses(orders), Total: total})
	}
}

// HandleUpdateOrderStatus handles POST /v1/admin/orders/:id/status
func HandleUpdateOrderStatus(services *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseOrderID(c)
		if !ok {
			return
		}

		var req service.OrderStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		order, err := services.Orders.Advance(c.Request.Context(), orderID, req.Status)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		user, _ := middleware.GetUserFromContext(c)
		logger.Info("Order status updated by admin",
			zap.String("order_id", orderID.String()),
			zap.String("status", string(order.Status)),
			zap.String("admin_id", user.ID),
		)
		c.JSON(http.StatusOK, toOrderResponse(order))
	}
}

// HandleUpdatePaymentStatus handles POST /v1/admin/orders/:id/payment
func HandleUpdatePaymentStatus(services *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderID, ok := parseOrderID(c)
		if !ok {
			return
		}

		var req service.PaymentStatusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		order, err := services.Orders.UpdatePaymentStatus(c.Request.Context(), orderID, req.PaymentStatus)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, toOrderResponse(order))
	}
}

// HandleListUsers handles GET /v1/admin/users
func HandleListUsers(services *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		users, err := services.Auth.ListUsers(c.Request.Context(), c.Query("admins") == "true")
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"users": users})
	}
}

// HandleSetAdmin handles PUT /v1/admin/users/:id/admin
func HandleSetAdmin(services *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.SetAdminRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		actor, _ := middleware.GetUserFromContext(c)
		user, err := services.Auth.SetAdmin(c.Request.Context(), actor, c.Param("id"), req.IsAdmin)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, user)
	}
}

// StatsResponse is the admin dashboard summary
type StatsResponse struct {
	ProductCount   int                        `json:"product_count"`
	OrderCount     int                        `json:"order_count"`
	Revenue        string                     `json:"revenue"`
	TotalInventory int                        `json:"total_inventory"`
	LowStock       []*domain.Product          `json:"low_stock"`
	OrdersByStatus map[domain.OrderStatus]int `json:"orders_by_status"`
	RecentOrders   []OrderResponse            `json:"recent_orders"`
}

// HandleStats handles GET /v1/admin/stats
func HandleStats(services *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := services.Stats.Stats(c.Request.Context())
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, StatsResponse{
			ProductCount:   stats.ProductCount,
			OrderCount:     stats.OrderCount,
			Revenue:        stats.Revenue.StringFixed(2),
			TotalInventory: stats.TotalInventory,
			LowStock:       stats.LowStock,
			OrdersByStatus: stats.OrdersByStatus,
			RecentOrders:   toOrderResponses(stats.RecentOrders),
		})
	}
}
