package middleware

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/jafarshop/storefront/internal/repository"
	"github.com/jafarshop/storefront/pkg/errors"
)

const (
	IdempotencyHeader = "Idempotency-Key"

	idempotencyKeyContextKey  = "idempotency_key"
	requestHashContextKey     = "request_hash"
	existingOrderIDContextKey = "existing_order_id"
)

// IdempotencyMiddleware lets a client retry checkout with the same
// Idempotency-Key and get the original order back. Reusing a key with a
// different body is rejected.
func IdempotencyMiddleware(keys repository.IdempotencyRepository, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(IdempotencyHeader)
		user, ok := GetUserFromContext(c)
		if key == "" || !ok {
			c.Next()
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "failed to read request body"})
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		sum := sha256.Sum256(body)
		requestHash := hex.EncodeToString(sum[:])

		existing, err := keys.Get(c.Request.Context(), user.ID, key)
		if err != nil {
			var notFound *errors.ErrNotFound
			if !stderrors.As(err, &notFound) {
				logger.Error("Failed to look up idempotency key", zap.Error(err))
				c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{"error": "storage unavailable"})
				return
			}
			c.Set(idempotencyKeyContextKey, key)
			c.Set(requestHashContextKey, requestHash)
			c.Next()
			return
		}

		if existing.RequestHash != requestHash {
			c.AbortWithStatusJSON(http.StatusUnprocessableEntity, gin.H{
				"error": "idempotency key was already used with a different request",
			})
			return
		}

		c.Set(idempotencyKeyContextKey, key)
		c.Set(requestHashContextKey, requestHash)
		c.Set(existingOrderIDContextKey, existing.OrderID.String())
		c.Next()
	}
}

// GetIdempotencyInfo returns the key and request hash of the current request
// and, for a replay, the order the key already produced
func GetIdempotencyInfo(c *gin.Context) (key, requestHash, existingOrderID string, isExisting bool) {
	key = c.GetString(idempotencyKeyContextKey)
	requestHash = c.GetString(requestHashContextKey)
	existingOrderID = c.GetString(existingOrderIDContextKey)
	return key, requestHash, existingOrderID, existingOrderID != ""
}
