package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-trader-orders/internal/logger"
	"github.com/imrishuroy/go-trader-orders/internal/upstream"
	"github.com/imrishuroy/go-trader-orders/internal/validation"
)

const (
	HeaderRequestID      = "X-Request-Id"
	HeaderOwnerID        = "X-User-Id"
	HeaderIdempotencyKey = "Idempotency-Key"

	ownerKey = "owner_id"
)

// RequestID stamps every request with X-Request-Id, generating one when the
// caller sent none, and logs the request once it completes.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(HeaderRequestID, id)
		ctx := logger.WithRequestID(c.Request.Context(), id)
		c.Request = c.Request.WithContext(ctx)

		start := time.Now()
		c.Next()
		logger.Info(c.Request.Context(), "request handled",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

// Owner requires the authenticated user id set by the gateway. The caller's
// Authorization header is kept for calls to the portfolio, asset and
// currency services.
func Owner() gin.HandlerFunc {
	return func(c *gin.Context) {
		owner := c.GetHeader(HeaderOwnerID)
		if owner == "" {
			validation.WriteProblem(c, http.StatusUnauthorized, "unauthorized", "missing "+HeaderOwnerID+" header")
			return
		}
		c.Set(ownerKey, owner)
		ctx := logger.WithOwnerID(c.Request.Context(), owner)
		if auth := c.GetHeader("Authorization"); auth != "" {
			ctx = upstream.WithAuthorization(ctx, auth)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func ownerID(c *gin.Context) string {
	return c.GetString(ownerKey)
}
