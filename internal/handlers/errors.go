package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-trader-orders/internal/logger"
	"github.com/imrishuroy/go-trader-orders/internal/orders"
	"github.com/imrishuroy/go-trader-orders/internal/validation"
)

// writeError maps service errors to problem responses.
func writeError(c *gin.Context, err error) {
	status, title, detail := classify(err)
	if status >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "request failed", zap.Error(err))
	}
	validation.WriteProblem(c, status, title, detail)
}

func classify(err error) (status int, title, detail string) {
	var ve *orders.ValidationError
	switch {
	case errors.As(err, &ve):
		return http.StatusBadRequest, "validation_failed", ve.Reason
	case errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound, "not_found", "order not found"
	case errors.Is(err, orders.ErrOrderNotActive):
		return http.StatusBadRequest, "order_not_active", "only active orders can be changed"
	case errors.Is(err, orders.ErrPortfolioNotFound):
		return http.StatusBadRequest, "portfolio_not_found", err.Error()
	case errors.Is(err, orders.ErrAssetNotFound):
		return http.StatusBadRequest, "asset_not_found", err.Error()
	case errors.Is(err, orders.ErrInvalidCursor):
		return http.StatusBadRequest, "invalid_pagination_token", "paginationToken is not valid for this query"
	case errors.Is(err, orders.ErrUpstreamUnavailable):
		return http.StatusServiceUnavailable, "upstream_unavailable", "a dependent service is unavailable, retry later"
	}
	return http.StatusInternalServerError, "internal_error", ""
}
