package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/api/handlers"
	"github.com/jafarshop/storefront/internal/api/middleware"
	"github.com/jafarshop/storefront/internal/config"
	"github.com/jafarshop/storefront/internal/service"
)

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, services *service.Services, logger *zap.Logger) *gin.Engine {
	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()

	// Middleware
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware(logger))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes
	v1 := router.Group("/v1")
	v1.Use(middleware.AuthMiddleware(services.Auth, logger))
	{
		auth := v1.Group("/auth")
		{
			auth.POST("/register", handlers.HandleRegister(services, logger))
			auth.POST("/login", handlers.HandleLogin(services, logger))
			auth.POST("/logout", middleware.RequireUser(), handlers.HandleLogout(services, logger))
			auth.GET("/me", middleware.RequireUser(), handlers.HandleMe())
		}

		v1.GET("/products", handlers.HandleListProducts(services, logger))
		v1.GET("/products/:id", handlers.HandleGetProduct(services, logger))

		// Cart routes work for signed-in users and guest cart sessions
		v1.GET("/cart", handlers.HandleGetCart(services))
		v1.DELETE("/cart", handlers.HandleClearCart(services, logger))
		v1.POST("/cart/items", handlers.HandleAddCartItem(services, logger))
		v1.PATCH("/cart/items/:productId", handlers.HandleUpdateCartItem(services, logger))
		v1.DELETE("/cart/items/:productId", handlers.HandleRemoveCartItem(services, logger))

		v1.POST("/checkout",
			middleware.IdempotencyMiddleware(services.Idempotency, logger),
			handlers.HandleCheckout(services, logger),
		)

		orders := v1.Group("/orders")
		orders.Use(middleware.RequireUser())
		{
			orders.GET("", handlers.HandleListMyOrders(services, logger))
			orders.GET("/:id", handlers.HandleGetOrder(services, logger))
			orders.POST("/:id/cancel", handlers.HandleCancelOrder(services, logger))
		}

		adminRoutes := v1.Group("/admin")
		adminRoutes.Use(middleware.RequireAdmin())
		{
			adminRoutes.POST("/products", handlers.HandleCreateProduct(services, logger))
			adminRoutes.PATCH("/products/:id", handlers.HandleUpdateProduct(services, logger))
			adminRoutes.DELETE("/products/:id", handlers.HandleDeleteProduct(services, logger))
			adminRoutes.POST("/products/:id/stock", handlers.HandleAdjustStock(services, logger))

			adminRoutes.GET("/stats", handlers.HandleStats(services, logger))

			adminRoutes.GET("/orders", handlers.HandleListOrders(services, logger))
			adminRoutes.POST("/orders/:id/status", handlers.HandleUpdateOrderStatus(services, logger))
			adminRoutes.POST("/orders/:id/payment", handlers.HandleUpdatePaymentStatus(services, logger))

			adminRoutes.GET("/users", handlers.HandleListUsers(services, logger))
			adminRoutes.PUT("/users/:id/admin", handlers.HandleSetAdmin(services, logger))
		}
	}

	return router
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		status := c.Writer.Status()
		logger.Info("HTTP request",
			zap.String("method", method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
		)
	}
}
