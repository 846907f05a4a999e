package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-trader-orders/internal/logger"
)

const (
	DefaultPageSize = 25
	MaxPageSize     = 100
	// DefaultExpiry applies when an order is created without expiresAt.
	DefaultExpiry = 24 * time.Hour
	// DefaultCurrency is assumed for portfolios that report none.
	DefaultCurrency = "DKK"
)

// Repository is the persistence the service needs; *Store implements it.
type Repository interface {
	Querier
	Create(ctx context.Context, o Order) (Order, error)
	GetByID(ctx context.Context, ownerID, orderID string) (*Order, error)
	ApplyUpdate(ctx context.Context, u UpdateInstruction) (Order, error)
}

// Dependencies are the collaborators of Service. PortfolioNames, Events and
// Metrics are optional; PortfolioNames falls back to Portfolios.
type Dependencies struct {
	Portfolios     PortfolioRepository
	PortfolioNames PortfolioRepository
	Assets         AssetRepository
	Currencies     CurrencyConverter
	Events         EventPublisher
	Metrics        PageMetrics
}

// Service orchestrates order creation, lookup, listing and the lifecycle.
type Service struct {
	repo       Repository
	pager      *Pager
	portfolios PortfolioRepository
	names      PortfolioRepository
	assets     AssetRepository
	currencies CurrencyConverter
	events     EventPublisher
	nowFunc    func() time.Time
	newID      func() string
}

func NewService(repo Repository, deps Dependencies) *Service {
	names := deps.PortfolioNames
	if names == nil {
		names = deps.Portfolios
	}
	return &Service{
		repo:       repo,
		pager:      NewPager(repo, deps.Metrics),
		portfolios: deps.Portfolios,
		names:      names,
		assets:     deps.Assets,
		currencies: deps.Currencies,
		events:     deps.Events,
		nowFunc:    time.Now,
		newID:      uuid.NewString,
	}
}

func (s *Service) now() time.Time {
	return s.nowFunc().UTC().Truncate(time.Millisecond)
}

type CreateOrderCommand struct {
	OwnerID     string
	PortfolioID string
	Type        OrderType
	AssetSymbol string
	Quantity    int
	Price       decimal.Decimal
	ExpiresAt   *time.Time
}

// CreateOrder validates the order against the portfolio and asset, then
// stores it as Active.
func (s *Service) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (Order, error) {
	now := s.now()
	if cmd.Quantity <= 0 {
		return Order{}, invalid("quantity must be greater than 0")
	}
	if !cmd.Price.IsPositive() {
		return Order{}, invalid("price must be greater than 0")
	}
	if !cmd.Type.Valid() {
		return Order{}, invalid("unknown order type")
	}
	expiresAt := now.Add(DefaultExpiry)
	if cmd.ExpiresAt != nil {
		if !cmd.ExpiresAt.After(now) {
			return Order{}, invalid("expiresAt must be in the future")
		}
		expiresAt = cmd.ExpiresAt.UTC()
	}

	portfolio, err := s.portfolios.GetPortfolio(ctx, cmd.PortfolioID)
	if err != nil {
		return Order{}, fmt.Errorf("get portfolio: %w", err)
	}
	if portfolio == nil {
		return Order{}, ErrPortfolioNotFound
	}
	asset, err := s.assets.GetAsset(ctx, cmd.AssetSymbol)
	if err != nil {
		return Order{}, fmt.Errorf("get asset: %w", err)
	}
	if asset == nil {
		return Order{}, ErrAssetNotFound
	}
	// the asset service matches symbols case-insensitively; store its spelling
	if asset.Symbol != "" {
		cmd.AssetSymbol = asset.Symbol
	}

	switch cmd.Type {
	case OrderTypeBuy:
		err = s.checkCapital(ctx, *portfolio, *asset, cmd)
	case OrderTypeSell:
		err = checkHolding(*portfolio, cmd)
	}
	if err != nil {
		return Order{}, err
	}

	o, err := s.repo.Create(ctx, Order{
		ID:          s.newID(),
		OwnerID:     cmd.OwnerID,
		PortfolioID: cmd.PortfolioID,
		Type:        cmd.Type,
		AssetSymbol: cmd.AssetSymbol,
		AssetType:   asset.Type,
		AssetName:   asset.Name,
		Quantity:    cmd.Quantity,
		Price:       cmd.Price,
		Status:      StatusActive,
		CreatedAt:   now,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		return Order{}, err
	}
	logger.Info(ctx, "order created", zap.String("order_id", o.ID), zap.Stringer("type", o.Type))
	s.publish(ctx, EventTypeCreated, o)
	return o, nil
}

func (s *Service) checkCapital(ctx context.Context, p Portfolio, a Asset, cmd CreateOrderCommand) error {
	cost := cmd.Price.Mul(decimal.NewFromInt(int64(cmd.Quantity)))
	currency := p.Currency
	if currency == "" {
		currency = DefaultCurrency
	}
	if a.Currency != "" && a.Currency != currency {
		if s.currencies == nil {
			return fmt.Errorf("convert %s to %s: no currency converter: %w", a.Currency, currency, ErrUpstreamUnavailable)
		}
		converted, err := s.currencies.Convert(ctx, a.Currency, currency, cost)
		if err != nil {
			return fmt.Errorf("convert %s to %s: %w", a.Currency, currency, err)
		}
		cost = converted
	}
	if p.Capital.LessThan(cost) {
		return invalid("insufficient capital to complete this order")
	}
	return nil
}

func checkHolding(p Portfolio, cmd CreateOrderCommand) error {
	held, ok := p.Holding(cmd.AssetSymbol)
	if !ok {
		return invalid(fmt.Sprintf("portfolio does not hold any %s", cmd.AssetSymbol))
	}
	if held < cmd.Quantity {
		return invalid(fmt.Sprintf("portfolio holds only %d %s", held, cmd.AssetSymbol))
	}
	return nil
}

// GetOrder returns ErrNotFound for unknown ids and for other owners' orders.
func (s *Service) GetOrder(ctx context.Context, ownerID, orderID string) (Order, error) {
	o, err := s.repo.GetByID(ctx, ownerID, orderID)
	if err != nil {
		return Order{}, err
	}
	if o == nil {
		return Order{}, ErrNotFound
	}
	return *o, nil
}

type ListOrdersQuery struct {
	Predicates
	PageSize        int
	PaginationToken string
}

type Pagination struct {
	PageSize        int    `json:"pageSize"`
	PaginationToken string `json:"paginationToken,omitempty"`
}

type ListResult struct {
	Orders     []OrderOverview
	Pagination Pagination
}

// ListOrders returns one page of the owner's orders, newest first.
func (s *Service) ListOrders(ctx context.Context, q ListOrdersQuery) (ListResult, error) {
	pageSize := q.PageSize
	switch {
	case pageSize == 0:
		pageSize = DefaultPageSize
	case pageSize < 0 || pageSize > MaxPageSize:
		return ListResult{}, invalid(fmt.Sprintf("pageSize must be between 1 and %d", MaxPageSize))
	}
	p := q.Predicates.WithDefaultCreatedFrom(s.now())
	if p.CreatedTo != nil && p.CreatedFrom.After(*p.CreatedTo) {
		return ListResult{}, invalid("createdFromDate must not be after createdToDate")
	}
	if p.CompletedFrom != nil && p.CompletedTo != nil && p.CompletedFrom.After(*p.CompletedTo) {
		return ListResult{}, invalid("completedFromDate must not be after completedToDate")
	}

	index := SelectIndex(p)
	key, filter := Partition(p, index)
	req := PageRequest{Index: index, KeyConditions: key, FilterConditions: filter, PageSize: pageSize}
	if q.PaginationToken != "" {
		cursor, err := DecodeCursor(q.PaginationToken, index)
		if err != nil {
			return ListResult{}, err
		}
		if cursor.OwnerID != p.OwnerID {
			return ListResult{}, fmt.Errorf("%w: minted for another owner", ErrInvalidCursor)
		}
		req.Cursor = &cursor
	}

	page, err := s.pager.FetchPage(ctx, req)
	if err != nil {
		return ListResult{}, err
	}
	seen := map[string]string{}
	out := make([]OrderOverview, 0, len(page.Items))
	for _, item := range page.Items {
		o, err := UnmarshalOrder(item)
		if err != nil {
			return ListResult{}, fmt.Errorf("unmarshal order: %w", err)
		}
		out = append(out, OrderOverview{Order: o, PortfolioName: s.portfolioName(ctx, o.PortfolioID, seen)})
	}
	logger.Debug(ctx, "orders listed",
		zap.String("index", index.IndexName()),
		zap.Int("returned", len(out)),
		zap.Bool("has_more", page.NextCursor != ""))
	return ListResult{
		Orders:     out,
		Pagination: Pagination{PageSize: len(out), PaginationToken: page.NextCursor},
	}, nil
}

// portfolioName is best effort: a failed lookup leaves the name empty.
func (s *Service) portfolioName(ctx context.Context, portfolioID string, seen map[string]string) string {
	if name, ok := seen[portfolioID]; ok {
		return name
	}
	var name string
	p, err := s.names.GetPortfolio(ctx, portfolioID)
	switch {
	case err != nil:
		logger.Warn(ctx, "portfolio lookup failed", zap.String("portfolio_id", portfolioID), zap.Error(err))
	case p != nil:
		name = p.Name
	}
	seen[portfolioID] = name
	return name
}

// Outcome tells apart the successful results of UpdateOrder.
type Outcome int

const (
	OutcomeUpdated Outcome = iota
	OutcomeCancelled
	OutcomeNoUpdatesFound
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUpdated:
		return "Updated"
	case OutcomeCancelled:
		return "Cancelled"
	case OutcomeNoUpdatesFound:
		return "NoUpdatesFound"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

type UpdateResult struct {
	Order   Order
	Outcome Outcome
}

type UpdateOrderCommand struct {
	OwnerID string
	OrderID string
	Edits   Edits
	Cancel  bool
}

// UpdateOrder edits or cancels an Active order. Terminal orders are rejected
// with ErrOrderNotActive before anything is written.
func (s *Service) UpdateOrder(ctx context.Context, cmd UpdateOrderCommand) (UpdateResult, error) {
	current, err := s.GetOrder(ctx, cmd.OwnerID, cmd.OrderID)
	if err != nil {
		return UpdateResult{}, err
	}
	if current.Status.Terminal() {
		return UpdateResult{}, ErrOrderNotActive
	}

	if cmd.Cancel {
		o, err := s.transition(ctx, current, EventCancel)
		if err != nil {
			return UpdateResult{}, err
		}
		return UpdateResult{Order: o, Outcome: OutcomeCancelled}, nil
	}

	if cmd.Edits.Empty() {
		return UpdateResult{Order: current, Outcome: OutcomeNoUpdatesFound}, nil
	}
	if err := s.validateEdits(cmd.Edits); err != nil {
		return UpdateResult{}, err
	}
	u, _ := BuildUpdate(cmd.Edits, current)
	o, err := s.repo.ApplyUpdate(ctx, u)
	if err != nil {
		return UpdateResult{}, s.resolveConflict(ctx, current, err)
	}
	logger.Info(ctx, "order updated", zap.String("order_id", o.ID), zap.Int("fields", len(u.Set)))
	s.publish(ctx, EventTypeUpdated, o)
	return UpdateResult{Order: o, Outcome: OutcomeUpdated}, nil
}

func (s *Service) validateEdits(e Edits) error {
	if e.Price != nil && !e.Price.IsPositive() {
		return invalid("price must be greater than 0")
	}
	if e.Quantity != nil && *e.Quantity <= 0 {
		return invalid("quantity must be greater than 0")
	}
	if e.ExpiresAt != nil && !e.ExpiresAt.After(s.now()) {
		return invalid("expiresAt must be in the future")
	}
	return nil
}

// ApplyEvent drives a settlement, expiry or cancellation coming from outside
// the API.
func (s *Service) ApplyEvent(ctx context.Context, ownerID, orderID string, ev Event) (Order, error) {
	current, err := s.GetOrder(ctx, ownerID, orderID)
	if err != nil {
		return Order{}, err
	}
	return s.transition(ctx, current, ev)
}

func (s *Service) transition(ctx context.Context, current Order, ev Event) (Order, error) {
	u, err := BuildTransition(current, ev, s.now())
	if err != nil {
		return Order{}, err
	}
	o, err := s.repo.ApplyUpdate(ctx, u)
	if err != nil {
		return Order{}, s.resolveConflict(ctx, current, err)
	}
	logger.Info(ctx, "order transitioned",
		zap.String("order_id", o.ID),
		zap.Stringer("event", ev),
		zap.Stringer("status", o.Status))
	if ev == EventCancel {
		s.publish(ctx, EventTypeCancelled, o)
	}
	return o, nil
}

// resolveConflict turns a failed conditional write into the error the caller
// would have seen had it read the order after the competing write.
func (s *Service) resolveConflict(ctx context.Context, current Order, err error) error {
	if !errors.Is(err, ErrStatusMismatch) {
		return err
	}
	latest, getErr := s.repo.GetByID(ctx, current.OwnerID, current.ID)
	if getErr != nil {
		return getErr
	}
	if latest == nil {
		return ErrNotFound
	}
	return ErrOrderNotActive
}

// publish is fire and forget: the order is already stored.
func (s *Service) publish(ctx context.Context, eventType string, o Order) {
	if s.events == nil {
		return
	}
	body, err := newOrderEvent(eventType, o, s.now()).marshal()
	if err == nil {
		err = s.events.Publish(ctx, body, map[string]string{
			"event_type": eventType,
			"order_id":   o.ID,
		})
	}
	if err != nil {
		logger.Warn(ctx, "publish order event failed",
			zap.String("event_type", eventType),
			zap.String("order_id", o.ID),
			zap.Error(err))
	}
}
