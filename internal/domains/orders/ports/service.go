package ports

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/Apurer/vendor-orders/internal/domains/orders/domain"
)

// AddOrderInput is an order-entry submission.
type AddOrderInput struct {
	Prompt  string
	Product string
}

// RecordPaymentInput adds Amount to the customer's cumulative paid total.
type RecordPaymentInput struct {
	CustomerKey string
	Amount      decimal.Decimal
}

// PaymentResult is the stored payment total plus the resulting order state.
type PaymentResult struct {
	Record  domain.PaymentRecord
	Settled bool
}

// DeleteOrderInput identifies the customer order to remove.
type DeleteOrderInput struct {
	OwnerID     string
	CustomerKey string
}

// DeleteResult reports the outcome of a cascade delete.
type DeleteResult struct {
	ItemsDeleted   int
	ItemsFailed    int
	PaymentDeleted bool
}

// OrdersView is a point-in-time read of an owner's orders.
type OrdersView struct {
	Orders       []domain.Order
	Summary      domain.Summary
	EmptyMessage string
}

// Service exposes order use cases to adapters.
type Service interface {
	Catalog() *domain.Catalog
	AddOrUpdateOrder(ctx context.Context, ownerID string, input AddOrderInput) (domain.ItemRecord, error)
	RecordPayment(ctx context.Context, ownerID string, input RecordPaymentInput) (*PaymentResult, error)
	DeleteOrder(ctx context.Context, input DeleteOrderInput) (*DeleteResult, error)
	ListOrders(ctx context.Context, ownerID string, query domain.Query) (*OrdersView, error)
}
