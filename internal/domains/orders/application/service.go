package application

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/Apurer/vendor-orders/internal/domains/orders/domain"
	"github.com/Apurer/vendor-orders/internal/domains/orders/ports"
)

// Service orchestrates order writes and point reads over the gateway.
type Service struct {
	gateway ports.Gateway
	catalog *domain.Catalog
	logger  *slog.Logger
}

// Option configures optional collaborators of the Service.
type Option func(*Service)

// WithCatalog overrides the built-in catalog.
func WithCatalog(c *domain.Catalog) Option {
	return func(s *Service) {
		if c != nil {
			s.catalog = c
		}
	}
}

// WithLogger injects the logger used for non-fatal write problems.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func NewService(gateway ports.Gateway, opts ...Option) *Service {
	s := &Service{
		gateway: gateway,
		catalog: domain.DefaultCatalog(),
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Catalog returns the price list used for totals.
func (s *Service) Catalog() *domain.Catalog {
	return s.catalog
}

// AddOrUpdateOrder parses the prompt and adds its quantity to the customer's
// existing line for the selected product.
func (s *Service) AddOrUpdateOrder(ctx context.Context, ownerID string, input ports.AddOrderInput) (domain.ItemRecord, error) {
	product := strings.TrimSpace(input.Product)
	if product == "" {
		return domain.ItemRecord{}, mapError(domain.ErrMissingSelection)
	}
	if !s.catalog.Has(product) {
		return domain.ItemRecord{}, mapError(fmt.Errorf("%w: %q", domain.ErrUnknownProduct, product))
	}
	prompt, err := domain.ParsePrompt(input.Prompt)
	if err != nil {
		return domain.ItemRecord{}, mapError(err)
	}
	record, err := domain.NewItemRecord(ownerID, prompt.Name, product, prompt.Quantity)
	if err != nil {
		return domain.ItemRecord{}, mapError(err)
	}
	existing, err := s.gateway.ListItems(ctx, ports.Filter{OwnerID: ownerID, ID: record.ID})
	if err != nil {
		return domain.ItemRecord{}, writeError(WriteSave, err)
	}
	if len(existing) > 0 {
		record.Quantity += existing[0].Quantity
		record.CreatedAt = existing[0].CreatedAt
	}
	if err := s.gateway.UpsertItem(ctx, record); err != nil {
		return domain.ItemRecord{}, writeError(WriteSave, err)
	}
	return record, nil
}

// RecordPayment adds the amount to the last stored paid total and writes the
// new total back. Concurrent payments for the same customer from different
// processes can lose an update; the last write wins. Amounts are rounded to
// cents before they are stored.
func (s *Service) RecordPayment(ctx context.Context, ownerID string, input ports.RecordPaymentInput) (*ports.PaymentResult, error) {
	amount := input.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, mapError(domain.ErrInvalidAmount)
	}
	key := domain.CustomerKey(input.CustomerKey)
	if key == "" {
		return nil, mapError(domain.ErrMissingCustomer)
	}
	if strings.TrimSpace(ownerID) == "" {
		return nil, mapError(domain.ErrMissingOwner)
	}
	paymentID := domain.PaymentRecordID(ownerID, key)
	current, err := s.gateway.ListPayments(ctx, ports.Filter{OwnerID: ownerID, ID: paymentID})
	if err != nil {
		return nil, writeError(WritePayment, err)
	}
	paid := decimal.Zero
	name := ""
	if len(current) > 0 {
		paid = current[0].Paid
		name = current[0].CustomerName
	}

	items, itemsErr := s.gateway.ListItems(ctx, ports.Filter{OwnerID: ownerID, CustomerKey: key})
	if itemsErr != nil {
		s.logger.WarnContext(ctx, "could not read customer items for payment",
			slog.String("owner.id", ownerID), slog.String("customer.key", key), slog.String("error", itemsErr.Error()))
	} else if len(items) > 0 && items[0].CustomerName != "" {
		name = items[0].CustomerName
	}

	record, err := domain.NewPaymentRecord(ownerID, key, name, paid.Add(amount))
	if err != nil {
		return nil, mapError(err)
	}
	if len(current) > 0 {
		record.CreatedAt = current[0].CreatedAt
	}
	if err := s.gateway.UpsertPayment(ctx, record); err != nil {
		return nil, writeError(WritePayment, err)
	}

	result := &ports.PaymentResult{Record: record}
	if itemsErr == nil {
		order := domain.Aggregate(items, []domain.PaymentRecord{record})[key]
		result.Settled = order.Settled(s.catalog)
	}
	return result, nil
}

// DeleteOrder removes every item of the customer and then its payment record.
// A failing item delete is logged and skipped; a missing payment is ignored.
func (s *Service) DeleteOrder(ctx context.Context, input ports.DeleteOrderInput) (*ports.DeleteResult, error) {
	ownerID := strings.TrimSpace(input.OwnerID)
	key := domain.CustomerKey(input.CustomerKey)
	if ownerID == "" {
		return nil, mapError(domain.ErrMissingOwner)
	}
	if key == "" {
		return nil, mapError(domain.ErrMissingCustomer)
	}
	items, err := s.gateway.ListItems(ctx, ports.Filter{OwnerID: ownerID, CustomerKey: key})
	if err != nil {
		return nil, writeError(WriteDelete, err)
	}
	result := &ports.DeleteResult{}
	for _, it := range items {
		if err := s.gateway.DeleteItem(ctx, ownerID, it.ID); err != nil {
			result.ItemsFailed++
			s.logger.WarnContext(ctx, "delete item failed",
				slog.String("owner.id", ownerID), slog.String("record.id", it.ID), slog.String("error", err.Error()))
			continue
		}
		result.ItemsDeleted++
	}
	if err := s.gateway.DeletePayment(ctx, ownerID, domain.PaymentRecordID(ownerID, key)); err != nil {
		if !errors.Is(err, ports.ErrNotFound) {
			s.logger.WarnContext(ctx, "delete payment failed",
				slog.String("owner.id", ownerID), slog.String("customer.key", key), slog.String("error", err.Error()))
		}
	} else {
		result.PaymentDeleted = true
	}
	return result, nil
}

// ListOrders aggregates both collections once and applies the query.
func (s *Service) ListOrders(ctx context.Context, ownerID string, query domain.Query) (*ports.OrdersView, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, mapError(domain.ErrMissingOwner)
	}
	filter := ports.Filter{OwnerID: ownerID}
	items, err := s.gateway.ListItems(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailure, err)
	}
	payments, err := s.gateway.ListPayments(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrLoadFailure, err)
	}
	return buildView(domain.OrderList(domain.Aggregate(items, payments)), query, s.catalog), nil
}

func buildView(all []domain.Order, query domain.Query, catalog *domain.Catalog) *ports.OrdersView {
	view := &ports.OrdersView{
		Orders:  domain.View(all, query, catalog),
		Summary: domain.Summarize(all, catalog),
	}
	if len(view.Orders) == 0 {
		view.EmptyMessage = domain.EmptyMessage(query.Search)
	}
	return view
}

var _ ports.Service = (*Service)(nil)
