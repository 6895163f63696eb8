package ports

import (
	"context"
	"errors"
	"strings"

	"github.com/Apurer/vendor-orders/internal/domains/orders/domain"
)

var ErrNotFound = errors.New("record not found")

// Filter is the predicate applied to a collection. OwnerID is mandatory and
// partitions every read; the other fields narrow the match when set.
type Filter struct {
	OwnerID     string
	CustomerKey string
	ID          string
}

// Unsubscribe detaches a subscription. It is safe to call more than once.
type Unsubscribe func()

// ItemsSnapshot receives the complete current list of matching item records.
type ItemsSnapshot func(records []domain.ItemRecord)

// PaymentsSnapshot receives the complete current list of matching payment records.
type PaymentsSnapshot func(records []domain.PaymentRecord)

// StreamError receives a terminal subscription failure. No snapshots follow it.
type StreamError func(err error)

// Gateway is the record store the order logic depends on. It owns the two
// collections, order_item and order_payment, and stamps CreatedAt on insert.
type Gateway interface {
	UpsertItem(ctx context.Context, record domain.ItemRecord) error
	UpsertPayment(ctx context.Context, record domain.PaymentRecord) error
	DeleteItem(ctx context.Context, ownerID, id string) error
	DeletePayment(ctx context.Context, ownerID, id string) error
	ListItems(ctx context.Context, filter Filter) ([]domain.ItemRecord, error)
	ListPayments(ctx context.Context, filter Filter) ([]domain.PaymentRecord, error)
	SubscribeItems(ctx context.Context, filter Filter, onSnapshot ItemsSnapshot, onError StreamError) (Unsubscribe, error)
	SubscribePayments(ctx context.Context, filter Filter, onSnapshot PaymentsSnapshot, onError StreamError) (Unsubscribe, error)
}

// MatchItem reports whether the record satisfies the filter.
func (f Filter) MatchItem(r domain.ItemRecord) bool {
	return f.match(r.OwnerID, r.CustomerKey, r.ID)
}

// MatchPayment reports whether the record satisfies the filter.
func (f Filter) MatchPayment(r domain.PaymentRecord) bool {
	return f.match(r.OwnerID, r.CustomerKey, r.ID)
}

// Validate rejects filters that would read across owners.
func (f Filter) Validate() error {
	if strings.TrimSpace(f.OwnerID) == "" {
		return domain.ErrMissingOwner
	}
	return nil
}

func (f Filter) match(ownerID, customerKey, id string) bool {
	if ownerID != f.OwnerID {
		return false
	}
	if f.CustomerKey != "" && customerKey != f.CustomerKey {
		return false
	}
	if f.ID != "" && id != f.ID {
		return false
	}
	return true
}
