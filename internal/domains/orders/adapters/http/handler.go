// Package http exposes the orders use cases over gin.
package http

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/oapi-codegen/runtime"

	"github.com/Apurer/vendor-orders/internal/domains/orders/adapters/spreadsheet"
	"github.com/Apurer/vendor-orders/internal/domains/orders/application"
	"github.com/Apurer/vendor-orders/internal/domains/orders/domain"
	"github.com/Apurer/vendor-orders/internal/domains/orders/ports"
	apierrors "github.com/Apurer/vendor-orders/internal/shared/errors"
)

// OwnerResolver returns the authenticated owner of the request, or "".
type OwnerResolver func(c *gin.Context) string

// Handler wires HTTP transport with the orders service and workflows.
type Handler struct {
	service   ports.Service
	workflows ports.WorkflowOrchestrator
	ownerID   OwnerResolver
	sessions  func() *application.Session
	inflight  *application.InFlight
	responder *apierrors.ChainedResponder
	upgrader  websocket.Upgrader
	logger    *slog.Logger
}

type Option func(*Handler)

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) {
		if logger != nil {
			h.logger = logger
		}
	}
}

// WithLiveSessions enables GET /orders/live; factory builds one session per
// connection.
func WithLiveSessions(factory func() *application.Session) Option {
	return func(h *Handler) {
		h.sessions = factory
	}
}

// WithCheckOrigin overrides the websocket origin check.
func WithCheckOrigin(check func(r *http.Request) bool) Option {
	return func(h *Handler) {
		if check != nil {
			h.upgrader.CheckOrigin = check
		}
	}
}

// NewHandler creates a Handler. A nil workflows value deletes orders inline.
func NewHandler(service ports.Service, workflows ports.WorkflowOrchestrator, ownerID OwnerResolver, opts ...Option) *Handler {
	h := &Handler{
		service:   service,
		workflows: workflows,
		ownerID:   ownerID,
		inflight:  application.NewInFlight(),
		responder: apierrors.NewChainedResponder("", MapError),
		upgrader:  websocket.Upgrader{CheckOrigin: defaultCheckOrigin},
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	h.responder.WithLogger(h.logger)
	return h
}

// Register mounts the routes on an authenticated group.
func (h *Handler) Register(rg gin.IRoutes) {
	rg.GET("/catalog", h.GetCatalog)
	rg.GET("/orders", h.ListOrders)
	rg.POST("/orders", h.AddOrder)
	rg.GET("/orders/export.xlsx", h.ExportOrders)
	rg.GET("/orders/live", h.LiveOrders)
	rg.POST("/orders/:customerKey/payments", h.RecordPayment)
	rg.DELETE("/orders/:customerKey", h.DeleteOrder)
}

// Get /v1/catalog
// Lists products with unit prices, longest name first
func (h *Handler) GetCatalog(c *gin.Context) {
	c.JSON(http.StatusOK, fromCatalog(h.service.Catalog()))
}

// Get /v1/orders
// Lists aggregated orders with the global summary
func (h *Handler) ListOrders(c *gin.Context) {
	owner, ok := h.requireOwner(c)
	if !ok {
		return
	}
	query, err := bindQuery(c)
	if err != nil {
		h.responder.Respond(c, apierrors.ErrValidation.WithDetail(err.Error()))
		return
	}
	view, err := h.service.ListOrders(c.Request.Context(), owner, query)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fromView(view, query, h.service.Catalog()))
}

// Post /v1/orders
// Adds quantity of a product to a customer's order
func (h *Handler) AddOrder(c *gin.Context) {
	owner, ok := h.requireOwner(c)
	if !ok {
		return
	}
	var payload AddOrderRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.responder.BadRequest(c, err.Error())
		return
	}
	release, err := h.inflight.Begin(application.ControlKey(owner, "add"))
	defer release()
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	record, err := h.service.AddOrUpdateOrder(c.Request.Context(), owner, ports.AddOrderInput{
		Prompt:  payload.Prompt,
		Product: payload.Product,
	})
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, fromItemRecord(record))
}

// Post /v1/orders/:customerKey/payments
// Adds a payment to the customer's running total
func (h *Handler) RecordPayment(c *gin.Context) {
	owner, ok := h.requireOwner(c)
	if !ok {
		return
	}
	customerKey := c.Param("customerKey")
	var payload PaymentRequest
	if err := c.ShouldBindJSON(&payload); err != nil {
		h.responder.RespondError(c, errors.Join(application.ErrInvalidInput, domain.ErrInvalidAmount, err))
		return
	}
	release, err := h.inflight.Begin(application.ControlKey(owner, "pay", customerKey))
	defer release()
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	result, err := h.service.RecordPayment(c.Request.Context(), owner, ports.RecordPaymentInput{
		CustomerKey: customerKey,
		Amount:      payload.Amount,
	})
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fromPaymentResult(result))
}

// Delete /v1/orders/:customerKey
// Deletes every item and the payment of a customer
func (h *Handler) DeleteOrder(c *gin.Context) {
	owner, ok := h.requireOwner(c)
	if !ok {
		return
	}
	customerKey := c.Param("customerKey")
	release, err := h.inflight.Begin(application.ControlKey(owner, "delete", customerKey))
	defer release()
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	result, err := h.deleteOrder(c.Request.Context(), ports.DeleteOrderInput{OwnerID: owner, CustomerKey: customerKey})
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	c.JSON(http.StatusOK, fromDeleteResult(result))
}

func (h *Handler) deleteOrder(ctx context.Context, input ports.DeleteOrderInput) (*ports.DeleteResult, error) {
	if h.workflows != nil {
		return h.workflows.DeleteOrder(ctx, input)
	}
	return h.service.DeleteOrder(ctx, input)
}

// Get /v1/orders/export.xlsx
// Downloads the current view as a workbook
func (h *Handler) ExportOrders(c *gin.Context) {
	owner, ok := h.requireOwner(c)
	if !ok {
		return
	}
	query, err := bindQuery(c)
	if err != nil {
		h.responder.Respond(c, apierrors.ErrValidation.WithDetail(err.Error()))
		return
	}
	view, err := h.service.ListOrders(c.Request.Context(), owner, query)
	if err != nil {
		h.responder.RespondError(c, err)
		return
	}
	file, err := spreadsheet.Build(view, h.service.Catalog())
	if err != nil {
		h.logger.ErrorContext(c.Request.Context(), "failed to build workbook",
			slog.String("owner.id", owner), slog.String("error", err.Error()))
		h.responder.InternalError(c, apierrors.FallbackDetail)
		return
	}
	c.Header("Content-Disposition", "attachment; filename=pedidos.xlsx")
	c.Header("Content-Type", spreadsheet.ContentType)
	c.Status(http.StatusOK)
	if err := file.Write(c.Writer); err != nil {
		h.logger.ErrorContext(c.Request.Context(), "failed to stream workbook",
			slog.String("owner.id", owner), slog.String("error", err.Error()))
	}
}

func (h *Handler) requireOwner(c *gin.Context) (string, bool) {
	var owner string
	if h.ownerID != nil {
		owner = strings.TrimSpace(h.ownerID(c))
	}
	if owner == "" {
		h.responder.Respond(c, apierrors.ErrUnauthorized.WithDetail("sign in to manage orders"))
		return "", false
	}
	return owner, true
}

// bindQuery reads search, sort and direction from the query string.
func bindQuery(c *gin.Context) (domain.Query, error) {
	params := c.Request.URL.Query()
	var search, sort, direction string
	if err := runtime.BindQueryParameter("form", true, false, "search", params, &search); err != nil {
		return domain.Query{}, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "sort", params, &sort); err != nil {
		return domain.Query{}, err
	}
	if err := runtime.BindQueryParameter("form", true, false, "direction", params, &direction); err != nil {
		return domain.Query{}, err
	}
	criteria, err := domain.ParseSortCriteria(sort)
	if err != nil {
		return domain.Query{}, err
	}
	dir, err := domain.ParseDirection(direction, criteria)
	if err != nil {
		return domain.Query{}, err
	}
	return domain.Query{Search: search, Sort: domain.SortSpec{Criteria: criteria, Direction: dir}}, nil
}
