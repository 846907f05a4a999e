package validation

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateOrderRequest is the payload for POST /orders
type CreateOrderRequest struct {
	PortfolioID string `json:"portfolioId" validate:"required"`
	Type        string `json:"type" validate:"required,oneof=Buy Sell"`
	AssetSymbol string `json:"assetSymbol" validate:"required,max=32"`
	Quantity    int    `json:"quantity" validate:"required,min=1"`
	// Price must be > 0; checked at struct level.
	Price decimal.Decimal `json:"price"`
	// ExpiresAt defaults to createdAt + 24h.
	ExpiresAt *time.Time `json:"expiresAt,omitempty" validate:"omitempty,future"`
}

// UpdateOrderRequest is the payload for PUT /orders/:id. Absent fields are
// left untouched; cancel=true ignores the other fields.
type UpdateOrderRequest struct {
	Price     *decimal.Decimal `json:"price,omitempty"`
	Quantity  *int             `json:"quantity,omitempty" validate:"omitempty,min=1"`
	ExpiresAt *time.Time       `json:"expiresAt,omitempty" validate:"omitempty,future"`
	Cancel    bool             `json:"cancel,omitempty"`
}

// ListOrdersRequest is bound from the query string of GET /orders and from
// the body of POST /orders/query.
type ListOrdersRequest struct {
	PortfolioID       *string    `form:"portfolioId" json:"portfolioId,omitempty" validate:"omitempty,min=1"`
	Type              *string    `form:"type" json:"type,omitempty" validate:"omitempty,oneof=Buy Sell"`
	AssetSymbol       *string    `form:"assetSymbol" json:"assetSymbol,omitempty" validate:"omitempty,min=1,max=32"`
	AssetType         *string    `form:"assetType" json:"assetType,omitempty" validate:"omitempty,oneof=Stock Crypto Etf Commodity"`
	Status            *string    `form:"status" json:"status,omitempty" validate:"omitempty,oneof=Active Completed Cancelled Expired"`
	CreatedFromDate   *time.Time `form:"createdFromDate" json:"createdFromDate,omitempty"`
	CreatedToDate     *time.Time `form:"createdToDate" json:"createdToDate,omitempty"`
	CompletedFromDate *time.Time `form:"completedFromDate" json:"completedFromDate,omitempty"`
	CompletedToDate   *time.Time `form:"completedToDate" json:"completedToDate,omitempty"`
	PageSize          int        `form:"pageSize" json:"pageSize,omitempty" validate:"omitempty,min=1,max=100"`
	PaginationToken   string     `form:"paginationToken" json:"paginationToken,omitempty"`
}
