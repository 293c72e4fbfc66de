package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/api/middleware"
	"github.com/jafarshop/storefront/internal/cart"
	"github.com/jafarshop/storefront/internal/service"
)

// CartSessionHeader identifies a guest cart when nobody is signed in
const CartSessionHeader = "X-Cart-Session"

// cartOwner resolves whose cart the request addresses: the signed-in user,
// otherwise the guest cart session.
func cartOwner(c *gin.Context) (string, bool) {
	if user, ok := middleware.GetUserFromContext(c); ok {
		return user.ID, true
	}
	if session := guestSession(c); session != "" {
		return guestOwner(session), true
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "sign in or send " + CartSessionHeader})
	return "", false
}

func guestSession(c *gin.Context) string {
	return strings.TrimSpace(c.GetHeader(CartSessionHeader))
}

func guestOwner(session string) string {
	return "guest:" + session
}

func cartResponse(store *cart.Store) service.CartResponse {
	return service.ToResponse(store.Lines())
}

// HandleGetCart handles GET /v1/cart
func HandleGetCart(services *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := cartOwner(c)
		if !ok {
			return
		}
		c.JSON(http.StatusOK, cartResponse(services.Cart.Cart(c.Request.Context(), owner)))
	}
}

// HandleAddCartItem handles POST /v1/cart/items
func HandleAddCartItem(services *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := cartOwner(c)
		if !ok {
			return
		}

		var req service.AddItemRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		store, err := services.Cart.AddItem(c.Request.Context(), owner, req.ProductID, req.Quantity)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, cartResponse(store))
	}
}

// HandleUpdateCartItem handles PATCH /v1/cart/items/:productId
func HandleUpdateCartItem(services *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := cartOwner(c)
		if !ok {
			return
		}

		var req service.UpdateQuantityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		store, err := services.Cart.UpdateQuantity(c.Request.Context(), owner, c.Param("productId"), req.Quantity)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, cartResponse(store))
	}
}

// HandleRemoveCartItem handles DELETE /v1/cart/items/:productId
func HandleRemoveCartItem(services *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := cartOwner(c)
		if !ok {
			return
		}

		store, err := services.Cart.RemoveItem(c.Request.Context(), owner, c.Param("productId"))
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusOK, cartResponse(store))
	}
}

// HandleClearCart handles DELETE /v1/cart
func HandleClearCart(services *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, ok := cartOwner(c)
		if !ok {
			return
		}

		if err := services.Cart.Clear(c.Request.Context(), owner); err != nil {
			respondError(c, logger, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}
