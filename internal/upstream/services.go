package upstream

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/imrishuroy/go-trader-orders/internal/orders"
)

// PortfolioClient reads portfolios. It is never cached: capital and
// holdings drive order validation.
type PortfolioClient struct {
	client *Client
}

func NewPortfolioClient(c *Client) *PortfolioClient {
	return &PortfolioClient{client: c}
}

func (p *PortfolioClient) GetPortfolio(ctx context.Context, portfolioID string) (*orders.Portfolio, error) {
	var out orders.Portfolio
	found, err := p.client.getJSON(ctx, "/portfolios/"+url.PathEscape(portfolioID), &out)
	if err != nil || !found {
		return nil, err
	}
	return &out, nil
}

// CachedPortfolios serves display lookups (portfolio names) from a TTL cache.
type CachedPortfolios struct {
	repo  orders.PortfolioRepository
	cache *ttlCache[*orders.Portfolio]
}

func NewCachedPortfolios(repo orders.PortfolioRepository, ttl time.Duration) *CachedPortfolios {
	return &CachedPortfolios{repo: repo, cache: newTTLCache[*orders.Portfolio](ttl)}
}

func (c *CachedPortfolios) GetPortfolio(ctx context.Context, portfolioID string) (*orders.Portfolio, error) {
	if p, ok := c.cache.get(portfolioID); ok {
		return p, nil
	}
	p, err := c.repo.GetPortfolio(ctx, portfolioID)
	if err != nil {
		return nil, err
	}
	c.cache.put(portfolioID, p)
	return p, nil
}

// AssetClient reads asset metadata through a TTL cache. Misses are cached too.
type AssetClient struct {
	client *Client
	cache  *ttlCache[*orders.Asset]
}

func NewAssetClient(c *Client, ttl time.Duration) *AssetClient {
	return &AssetClient{client: c, cache: newTTLCache[*orders.Asset](ttl)}
}

func (a *AssetClient) GetAsset(ctx context.Context, symbol string) (*orders.Asset, error) {
	symbol = strings.ToUpper(symbol)
	if asset, ok := a.cache.get(symbol); ok {
		return asset, nil
	}
	var out orders.Asset
	found, err := a.client.getJSON(ctx, "/assets/"+url.PathEscape(symbol), &out)
	if err != nil {
		return nil, err
	}
	var asset *orders.Asset
	if found {
		asset = &out
	}
	a.cache.put(symbol, asset)
	return asset, nil
}

// CurrencyClient converts amounts using exchange rates from the currency
// service, caching each rate for the TTL.
type CurrencyClient struct {
	client *Client
	cache  *ttlCache[decimal.Decimal]
}

func NewCurrencyClient(c *Client, ttl time.Duration) *CurrencyClient {
	return &CurrencyClient{client: c, cache: newTTLCache[decimal.Decimal](ttl)}
}

func (cc *CurrencyClient) Convert(ctx context.Context, from, to string, amount decimal.Decimal) (decimal.Decimal, error) {
	if strings.EqualFold(from, to) {
		return amount, nil
	}
	rate, err := cc.rate(ctx, strings.ToUpper(from), strings.ToUpper(to))
	if err != nil {
		return decimal.Zero, err
	}
	return amount.Mul(rate), nil
}

func (cc *CurrencyClient) rate(ctx context.Context, from, to string) (decimal.Decimal, error) {
	key := from + "/" + to
	if r, ok := cc.cache.get(key); ok {
		return r, nil
	}
	var out struct {
		Rate decimal.Decimal `json:"rate"`
	}
	found, err := cc.client.getJSON(ctx, "/currencies/rates/"+url.PathEscape(from)+"/"+url.PathEscape(to), &out)
	if err != nil {
		return decimal.Zero, err
	}
	if !found || !out.Rate.IsPositive() {
		return decimal.Zero, fmt.Errorf("no exchange rate %s: %w", key, orders.ErrUpstreamUnavailable)
	}
	cc.cache.put(key, out.Rate)
	return out.Rate, nil
}
