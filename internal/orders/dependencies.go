package orders

import (
	"context"

	"github.com/shopspring/decimal"
)

// Portfolio is the slice of the portfolio service's model orders need.
type Portfolio struct {
	ID       string           `json:"id"`
	Name     string           `json:"name"`
	Currency string           `json:"currency"`
	Capital  decimal.Decimal  `json:"capital"`
	Assets   []PortfolioAsset `json:"assets"`
}

type PortfolioAsset struct {
	Symbol   string `json:"symbol"`
	Quantity int    `json:"quantity"`
}

// Holding returns the held quantity of symbol, 0 when not held.
func (p Portfolio) Holding(symbol string) (int, bool) {
	for _, a := range p.Assets {
		if a.Symbol == symbol {
			return a.Quantity, true
		}
	}
	return 0, false
}

// Asset is the slice of the asset service's model orders need.
type Asset struct {
	Symbol   string          `json:"symbol"`
	Name     string          `json:"name"`
	Type     AssetType       `json:"type"`
	Currency string          `json:"currency"`
	Price    decimal.Decimal `json:"price"`
}

// PortfolioRepository returns (nil, nil) when the portfolio does not exist.
type PortfolioRepository interface {
	GetPortfolio(ctx context.Context, portfolioID string) (*Portfolio, error)
}

// AssetRepository returns (nil, nil) when the symbol is unknown.
type AssetRepository interface {
	GetAsset(ctx context.Context, symbol string) (*Asset, error)
}

type CurrencyConverter interface {
	Convert(ctx context.Context, from, to string, amount decimal.Decimal) (decimal.Decimal, error)
}

// EventPublisher is satisfied by *aws.Publisher.
type EventPublisher interface {
	Publish(ctx context.Context, body string, attributes map[string]string) error
}
