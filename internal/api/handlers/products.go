package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/api/middleware"
	"github.com/jafarshop/storefront/internal/domain"
	"github.com/jafarshop/storefront/internal/service"
)

// ProductListResponse represents one page of products
type ProductListResponse struct {
	Products []*domain.Product `json:"products"`
	Total    int               `json:"total"`
	Limit    int               `json:"limit"`
	Offset   int               `json:"offset"`
}

func isAdmin(c *gin.Context) bool {
	user, ok := middleware.GetUserFromContext(c)
	return ok && user.IsAdmin
}

// HandleListProducts handles GET /v1/products. Shoppers only see active
// products; admins can pass all=true.
func HandleListProducts(services *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, ok := queryInt(c, "limit", 50)
		if !ok {
			return
		}
		offset, ok := queryInt(c, "offset", 0)
		if !ok {
			return
		}

		filter := domain.ProductFilter{
			Category:   c.Query("category"),
			Search:     c.Query("search"),
			ActiveOnly: !(isAdmin(c) && c.Query("all") == "true"),
			Limit:      limit,
			Offset:     offset,
		}

		products, total, err := services.Catalog.List(c.Request.Context(), filter)
		if err != nil {
			respondError(c, logger, err)
			return
		}

		c.JSON(http.StatusOK, ProductListResponse{
			Products: products,
			Total:    total,
			Limit:    limit,
			Offset:   offset,
		})
	}
}

// HandleGetProduct handles GET /v1/products/:id
func HandleGetProduct(services *service.Services, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		product, err := services.Catalog.GetProduct(c.Request.Context(), id)
		if err != nil {
			respondError(c, logger, err)
			return
		}
		if !product.IsActive && !isAdmin(c) {
			c.JSON(http.StatusNotFound, gin.H{"error": "product not found: " + id})
			return
		}
		c.JSON(http.StatusOK, product)
	}
}
