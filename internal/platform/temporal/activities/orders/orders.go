package orders

import (
	"context"
	"errors"

	"go.temporal.io/sdk/activity"

	"github.com/Apurer/vendor-orders/internal/domains/orders/domain"
	"github.com/Apurer/vendor-orders/internal/domains/orders/ports"
)

const (
	// ListCustomerItemsActivityName lists the item ids of a customer's order.
	ListCustomerItemsActivityName = "orders.activities.ListCustomerItems"
	// DeleteItemActivityName deletes one item record.
	DeleteItemActivityName = "orders.activities.DeleteItem"
	// DeletePaymentActivityName deletes the payment record of a customer.
	DeletePaymentActivityName = "orders.activities.DeletePayment"
)

// ItemRef addresses one item record of an owner.
type ItemRef struct {
	OwnerID string
	ID      string
}

// Activities groups activities that operate on the orders bounded context.
type Activities struct {
	gateway ports.Gateway
}

// NewActivities wires the record gateway into the Temporal activities bundle.
func NewActivities(gateway ports.Gateway) *Activities {
	return &Activities{gateway: gateway}
}

// ListCustomerItems returns the ids of every item the customer has.
func (a *Activities) ListCustomerItems(ctx context.Context, input ports.DeleteOrderInput) ([]string, error) {
	logger := activity.GetLogger(ctx)
	if a == nil || a.gateway == nil {
		logger.Error("list items activity not initialized", "customerKey", input.CustomerKey)
		return nil, errors.New("list items activity not initialized")
	}
	key := domain.CustomerKey(input.CustomerKey)
	items, err := a.gateway.ListItems(ctx, ports.Filter{OwnerID: input.OwnerID, CustomerKey: key})
	if err != nil {
		logger.Error("ListCustomerItems activity failed", "customerKey", key, "error", err)
		return nil, err
	}
	ids := make([]string, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ID)
	}
	logger.Info("ListCustomerItems activity completed", "customerKey", key, "count", len(ids))
	return ids, nil
}

// DeleteItem removes one item. An item that is already gone counts as deleted.
func (a *Activities) DeleteItem(ctx context.Context, ref ItemRef) error {
	logger := activity.GetLogger(ctx)
	if a == nil || a.gateway == nil {
		logger.Error("delete item activity not initialized", "recordId", ref.ID)
		return errors.New("delete item activity not initialized")
	}
	if err := a.gateway.DeleteItem(ctx, ref.OwnerID, ref.ID); err != nil && !errors.Is(err, ports.ErrNotFound) {
		logger.Error("DeleteItem activity failed", "recordId", ref.ID, "error", err)
		return err
	}
	logger.Info("DeleteItem activity completed", "recordId", ref.ID)
	return nil
}

// DeletePayment removes the customer's payment record. It reports whether a
// record existed.
func (a *Activities) DeletePayment(ctx context.Context, input ports.DeleteOrderInput) (bool, error) {
	logger := activity.GetLogger(ctx)
	if a == nil || a.gateway == nil {
		logger.Error("delete payment activity not initialized", "customerKey", input.CustomerKey)
		return false, errors.New("delete payment activity not initialized")
	}
	key := domain.CustomerKey(input.CustomerKey)
	err := a.gateway.DeletePayment(ctx, input.OwnerID, domain.PaymentRecordID(input.OwnerID, key))
	if errors.Is(err, ports.ErrNotFound) {
		logger.Info("DeletePayment activity found no payment", "customerKey", key)
		return false, nil
	}
	if err != nil {
		logger.Error("DeletePayment activity failed", "customerKey", key, "error", err)
		return false, err
	}
	logger.Info("DeletePayment activity completed", "customerKey", key)
	return true, nil
}
