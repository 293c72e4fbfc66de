package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/api/middleware"
	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/service"
)

// LoginResponse represents the login response
type LoginResponse struct {
	Token string           `json:"token"`
	User  *domain.Identity `json:"user"`
}

// HandleRegister handles POST /v1/auth/register
func HandleRegister(services *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.RegisterRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		user, err := services.Auth.Register(c.Request.Context(), req.Name, req.Email, req.Password)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		c.JSON(http.StatusCreated, user)
	}
}

// HandleLogin handles POST /v1/auth/login. When the request carries a cart
// session header, that guest cart is merged into the user's cart.
func HandleLogin(services *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req service.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			bindError(c, err)
			return
		}

		token, user, err := services.Auth.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		// A guest cart sent along with the login follows the shopper
		if session := guestSession(c); session != "" {
			if _, err := services.Cart.Merge(c.Request.Context(), guestOwner(session), user.ID); err != nil {
				logger.Warn("Failed to merge guest cart",
					zap.String("user_id", user.ID),
					zap.Error(err),
				)
			}
		}
		c.JSON(http.StatusOK, LoginResponse{Token: token, User: user})
	}
}

// HandleLogout handles POST /v1/auth/logout
func HandleLogout(services *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := middleware.GetTokenFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		if err := services.Auth.Logout(c.Request.Context(), token); err != nil {
			respondError(c, logger, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// HandleMe handles GET /v1/auth/me
func HandleMe() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.GetUserFromContext(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.JSON(http.StatusOK, user)
	}
}
