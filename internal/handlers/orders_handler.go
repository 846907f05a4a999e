package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-trader-orders/internal/idempotency"
	"github.com/imrishuroy/go-trader-orders/internal/logger"
	"github.com/imrishuroy/go-trader-orders/internal/orders"
	"github.com/imrishuroy/go-trader-orders/internal/validation"
)

// OrderService is implemented by *orders.Service.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd orders.CreateOrderCommand) (orders.Order, error)
	GetOrder(ctx context.Context, ownerID, orderID string) (orders.Order, error)
	ListOrders(ctx context.Context, q orders.ListOrdersQuery) (orders.ListResult, error)
	UpdateOrder(ctx context.Context, cmd orders.UpdateOrderCommand) (orders.UpdateResult, error)
}

// IdempotencyStore is implemented by *idempotency.Store.
type IdempotencyStore interface {
	Claim(ctx context.Context, key, fingerprint string) (bool, error)
	Get(ctx context.Context, key string) (*idempotency.IdempotencyRecord, error)
	MarkDone(ctx context.Context, key, orderID, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}

// HandlerConfig groups dependencies for the orders handler. Idempotency is
// optional; without it the Idempotency-Key header is ignored.
type HandlerConfig struct {
	Service     OrderService
	Idempotency IdempotencyStore
}

// envelope is the body of every 2xx response.
type envelope struct {
	Data       any                `json:"data"`
	Pagination *orders.Pagination `json:"pagination,omitempty"`
}

type updateResponse struct {
	orders.Order
	Outcome string `json:"outcome"`
}

type ordersHandler struct {
	svc   OrderService
	idem  IdempotencyStore
	valid *validatorv10.Validate
}

// RegisterOrdersRoutes registers routes for order API.
func RegisterOrdersRoutes(r gin.IRouter, cfg HandlerConfig) {
	h := &ordersHandler{svc: cfg.Service, idem: cfg.Idempotency, valid: validation.New()}

	g := r.Group("/orders", Owner())
	g.POST("", h.create)
	g.GET("", h.listFromQuery)
	g.POST("/query", h.listFromBody)
	g.GET("/:id", h.get)
	g.PUT("/:id", h.update)
}

func (h *ordersHandler) create(c *gin.Context) {
	ctx := c.Request.Context()
	owner := ownerID(c)

	var req validation.CreateOrderRequest
	if err := validation.BindAndValidate(c, &req, h.valid); err != nil {
		// BindAndValidate already wrote a 400
		return
	}
	orderType, _ := orders.ParseOrderType(req.Type)

	var idemKey string
	if k := c.GetHeader(HeaderIdempotencyKey); k != "" && h.idem != nil {
		idemKey = idempotency.Key(owner, k)
		fp, err := requestFingerprint(owner, req)
		if err != nil {
			writeError(c, err)
			return
		}
		claimed, err := h.idem.Claim(ctx, idemKey, fp)
		if err != nil {
			writeError(c, fmt.Errorf("claim idempotency key: %w: %w", orders.ErrUpstreamUnavailable, err))
			return
		}
		if !claimed {
			h.replay(c, idemKey, fp)
			return
		}
	}

	order, err := h.svc.CreateOrder(ctx, orders.CreateOrderCommand{
		OwnerID:     owner,
		PortfolioID: req.PortfolioID,
		Type:        orderType,
		AssetSymbol: req.AssetSymbol,
		Quantity:    req.Quantity,
		Price:       req.Price,
		ExpiresAt:   req.ExpiresAt,
	})
	if err != nil {
		if idemKey != "" {
			// let the client retry with the same key
			if mErr := h.idem.MarkFailed(ctx, idemKey, err.Error()); mErr != nil {
				logger.Warn(ctx, "mark idempotency failed", zap.Error(mErr))
			}
		}
		writeError(c, err)
		return
	}

	body, err := json.Marshal(envelope{Data: order})
	if err != nil {
		writeError(c, err)
		return
	}
	if idemKey != "" {
		if err := h.idem.MarkDone(ctx, idemKey, order.ID, string(body), http.StatusCreated); err != nil {
			logger.Warn(ctx, "mark idempotency done", zap.String("order_id", order.ID), zap.Error(err))
		}
	}
	c.Header("Location", "/orders/"+order.ID)
	c.Data(http.StatusCreated, "application/json; charset=utf-8", body)
}

// replay answers a duplicate create with the stored response, 422 when the
// key was first used for a different request, or 409 while the first attempt
// is still running.
func (h *ordersHandler) replay(c *gin.Context, key, fingerprint string) {
	rec, err := h.idem.Get(c.Request.Context(), key)
	if err != nil {
		writeError(c, fmt.Errorf("get idempotency record: %w: %w", orders.ErrUpstreamUnavailable, err))
		return
	}
	if rec != nil && !rec.Matches(fingerprint) {
		validation.WriteProblem(c, http.StatusUnprocessableEntity, "idempotency_key_reused",
			"this Idempotency-Key was already used with a different request body")
		return
	}
	if rec == nil || rec.Status != idempotency.StatusDone || rec.ResponseBody == "" {
		validation.WriteProblem(c, http.StatusConflict, "request_in_progress",
			"a request with this Idempotency-Key is still being processed")
		return
	}
	if rec.OrderID != "" {
		c.Header("Location", "/orders/"+rec.OrderID)
	}
	c.Header("Idempotent-Replayed", "true")
	c.Data(rec.ResponseStatus, "application/json; charset=utf-8", []byte(rec.ResponseBody))
}

// requestFingerprint hashes the bound request rather than the raw body so
// whitespace and key order do not count as a different request.
func requestFingerprint(owner string, req validation.CreateOrderRequest) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("fingerprint request: %w", err)
	}
	return idempotency.Fingerprint(owner, string(raw)), nil
}

func (h *ordersHandler) get(c *gin.Context) {
	o, err := h.svc.GetOrder(c.Request.Context(), ownerID(c), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{Data: o})
}

func (h *ordersHandler) listFromQuery(c *gin.Context) {
	var req validation.ListOrdersRequest
	if err := validation.BindQueryAndValidate(c, &req, h.valid); err != nil {
		return
	}
	h.list(c, req)
}

// listFromBody treats an empty body as a query without filters.
func (h *ordersHandler) listFromBody(c *gin.Context) {
	var req validation.ListOrdersRequest
	if err := validation.BindOptionalAndValidate(c, &req, h.valid); err != nil {
		return
	}
	h.list(c, req)
}

func (h *ordersHandler) list(c *gin.Context, req validation.ListOrdersRequest) {
	res, err := h.svc.ListOrders(c.Request.Context(), listQuery(ownerID(c), req))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, envelope{Data: res.Orders, Pagination: &res.Pagination})
}

// listQuery converts an already validated request. Enum values that fail to
// parse cannot reach here.
func listQuery(owner string, req validation.ListOrdersRequest) orders.ListOrdersQuery {
	p := orders.Predicates{
		OwnerID:       owner,
		PortfolioID:   req.PortfolioID,
		AssetSymbol:   req.AssetSymbol,
		CreatedFrom:   req.CreatedFromDate,
		CreatedTo:     req.CreatedToDate,
		CompletedFrom: req.CompletedFromDate,
		CompletedTo:   req.CompletedToDate,
	}
	if req.Type != nil {
		if v, ok := orders.ParseOrderType(*req.Type); ok {
			p.Type = &v
		}
	}
	if req.AssetType != nil {
		if v, ok := orders.ParseAssetType(*req.AssetType); ok {
			p.AssetType = &v
		}
	}
	if req.Status != nil {
		if v, ok := orders.ParseStatus(*req.Status); ok {
			p.Status = &v
		}
	}
	return orders.ListOrdersQuery{
		Predicates:      p,
		PageSize:        req.PageSize,
		PaginationToken: req.PaginationToken,
	}
}

// update answers 202 for every successful outcome, including no-op edits.
func (h *ordersHandler) update(c *gin.Context) {
	var req validation.UpdateOrderRequest
	if err := validation.BindAndValidate(c, &req, h.valid); err != nil {
		return
	}
	res, err := h.svc.UpdateOrder(c.Request.Context(), orders.UpdateOrderCommand{
		OwnerID: ownerID(c),
		OrderID: c.Param("id"),
		Edits: orders.Edits{
			Price:     req.Price,
			Quantity:  req.Quantity,
			ExpiresAt: req.ExpiresAt,
		},
		Cancel: req.Cancel,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, envelope{Data: updateResponse{Order: res.Order, Outcome: res.Outcome.String()}})
}
