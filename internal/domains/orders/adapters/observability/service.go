package observability

import (
	"context"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"

	"github.com/Apurer/vendor-orders/internal/domains/orders/domain"
	"github.com/Apurer/vendor-orders/internal/domains/orders/ports"
)

const tracerName = "github.com/Apurer/vendor-orders/internal/domains/orders/adapters/observability/service"

// Service decorates the orders application port with tracing, logging, and metrics.
type Service struct {
	inner   ports.Service
	tracer  trace.Tracer
	logger  *slog.Logger
	metrics serviceMetrics
}

type Option func(*Service)

// WithLogger injects a slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTracer injects a tracer implementation.
func WithTracer(tr trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tr
	}
}

// WithMeter injects the meter used to create service metrics instruments.
func WithMeter(m metric.Meter) Option {
	return func(s *Service) {
		s.metrics = newServiceMetrics(m)
	}
}

// New wires a decorator around the core service.
func New(inner ports.Service, opts ...Option) ports.Service {
	s := &Service{
		inner:   inner,
		tracer:  nooptrace.NewTracerProvider().Tracer(tracerName),
		logger:  defaultLogger(),
		metrics: newServiceMetrics(nil),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	if s.tracer == nil {
		s.tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	if s.logger == nil {
		s.logger = defaultLogger()
	}
	return s
}

func (s *Service) Catalog() *domain.Catalog {
	return s.inner.Catalog()
}

// AddOrUpdateOrder records an order line with instrumentation.
func (s *Service) AddOrUpdateOrder(ctx context.Context, ownerID string, input ports.AddOrderInput) (domain.ItemRecord, error) {
	ctx, span := s.startSpan(ctx, "Service.AddOrUpdateOrder",
		attribute.String("owner.id", ownerID), attribute.String("product.name", input.Product))
	defer span.End()

	s.logInfo(ctx, "adding order item", slog.String("owner.id", ownerID), slog.String("product.name", input.Product))
	record, err := s.inner.AddOrUpdateOrder(ctx, ownerID, input)
	if err != nil {
		return record, s.handleError(ctx, span, err, "failed to add order item", slog.String("owner.id", ownerID))
	}
	span.SetAttributes(attribute.String("record.id", record.ID), attribute.Int("item.quantity", record.Quantity))
	s.metrics.recordItemAdded(ctx, record.ProductName)
	s.logInfo(ctx, "order item saved", slog.String("record.id", record.ID), slog.Int("quantity", record.Quantity))
	return record, nil
}

// RecordPayment adds a payment with instrumentation.
func (s *Service) RecordPayment(ctx context.Context, ownerID string, input ports.RecordPaymentInput) (*ports.PaymentResult, error) {
	ctx, span := s.startSpan(ctx, "Service.RecordPayment",
		attribute.String("owner.id", ownerID), attribute.String("customer.key", input.CustomerKey))
	defer span.End()

	s.logInfo(ctx, "recording payment", slog.String("owner.id", ownerID), slog.String("customer.key", input.CustomerKey))
	result, err := s.inner.RecordPayment(ctx, ownerID, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to record payment", slog.String("customer.key", input.CustomerKey))
	}
	if result != nil {
		span.SetAttributes(attribute.Bool("order.settled", result.Settled))
		s.metrics.recordPayment(ctx, result.Settled)
		s.logInfo(ctx, "payment recorded", slog.String("record.id", result.Record.ID), slog.String("paid", result.Record.Paid.String()))
	}
	return result, nil
}

// DeleteOrder removes a customer's order with instrumentation.
func (s *Service) DeleteOrder(ctx context.Context, input ports.DeleteOrderInput) (*ports.DeleteResult, error) {
	ctx, span := s.startSpan(ctx, "Service.DeleteOrder",
		attribute.String("owner.id", input.OwnerID), attribute.String("customer.key", input.CustomerKey))
	defer span.End()

	s.logInfo(ctx, "deleting order", slog.String("owner.id", input.OwnerID), slog.String("customer.key", input.CustomerKey))
	result, err := s.inner.DeleteOrder(ctx, input)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to delete order", slog.String("customer.key", input.CustomerKey))
	}
	if result != nil {
		span.SetAttributes(
			attribute.Int("items.deleted", result.ItemsDeleted),
			attribute.Int("items.failed", result.ItemsFailed),
		)
		s.metrics.recordDeleted(ctx, result.ItemsFailed > 0)
		s.logInfo(ctx, "order deleted",
			slog.Int("items.deleted", result.ItemsDeleted), slog.Int("items.failed", result.ItemsFailed),
			slog.Bool("payment.deleted", result.PaymentDeleted))
	}
	return result, nil
}

// ListOrders reads the aggregated view with instrumentation.
func (s *Service) ListOrders(ctx context.Context, ownerID string, query domain.Query) (*ports.OrdersView, error) {
	ctx, span := s.startSpan(ctx, "Service.ListOrders",
		attribute.String("owner.id", ownerID),
		attribute.String("sort.criteria", string(query.Sort.Criteria)),
		attribute.String("sort.direction", string(query.Sort.Direction)))
	defer span.End()

	result, err := s.inner.ListOrders(ctx, ownerID, query)
	if err != nil {
		return nil, s.handleError(ctx, span, err, "failed to list orders", slog.String("owner.id", ownerID))
	}
	if result != nil {
		span.SetAttributes(attribute.Int("order.result.count", len(result.Orders)))
	}
	return result, nil
}

func (s *Service) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	tracer := s.tracer
	if tracer == nil {
		tracer = nooptrace.NewTracerProvider().Tracer(tracerName)
	}
	return tracer.Start(ctx, name, trace.WithAttributes(attrs...))
}

func (s *Service) logInfo(ctx context.Context, msg string, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	s.logger.LogAttrs(ctx, slog.LevelInfo, msg, attrs...)
}

func (s *Service) logError(ctx context.Context, msg string, err error, attrs ...slog.Attr) {
	if s.logger == nil {
		return
	}
	if err != nil {
		attrs = append(attrs, slog.String("error", err.Error()))
	}
	s.logger.LogAttrs(ctx, slog.LevelError, msg, attrs...)
}

func (s *Service) handleError(ctx context.Context, span trace.Span, err error, msg string, attrs ...slog.Attr) error {
	if err == nil {
		return nil
	}
	if span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	s.logError(ctx, msg, err, attrs...)
	return err
}

func defaultLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type serviceMetrics struct {
	itemsAdded       metric.Int64Counter
	paymentsRecorded metric.Int64Counter
	ordersDeleted    metric.Int64Counter
}

func newServiceMetrics(m metric.Meter) serviceMetrics {
	if m == nil {
		return serviceMetrics{}
	}
	itemsAdded, _ := m.Int64Counter("orders.service.items_added", metric.WithDescription("Number of order lines added or increased"))
	paymentsRecorded, _ := m.Int64Counter("orders.service.payments_recorded", metric.WithDescription("Number of payments recorded"))
	ordersDeleted, _ := m.Int64Counter("orders.service.orders_deleted", metric.WithDescription("Number of customer orders deleted"))
	return serviceMetrics{
		itemsAdded:       itemsAdded,
		paymentsRecorded: paymentsRecorded,
		ordersDeleted:    ordersDeleted,
	}
}

func (m serviceMetrics) recordItemAdded(ctx context.Context, product string) {
	addCounter(ctx, m.itemsAdded, 1, attribute.String("product.name", product))
}

func (m serviceMetrics) recordPayment(ctx context.Context, settled bool) {
	addCounter(ctx, m.paymentsRecorded, 1, attribute.Bool("order.settled", settled))
}

func (m serviceMetrics) recordDeleted(ctx context.Context, partial bool) {
	addCounter(ctx, m.ordersDeleted, 1, attribute.Bool("delete.partial", partial))
}

func addCounter(ctx context.Context, counter metric.Int64Counter, value int64, attrs ...attribute.KeyValue) {
	if counter == nil {
		return
	}
	counter.Add(ctx, value, metric.WithAttributes(attrs...))
}

var _ ports.Service = (*Service)(nil)
