package sequences

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/vendor-orders/internal/domains/orders/ports"
	orderactivities "github.com/Apurer/vendor-orders/internal/platform/temporal/activities/orders"
)

// RunOrderDeletionSequence deletes every item of the customer and then the
// payment record. An item that still fails after its retries is counted and
// skipped so one bad record does not keep the rest of the order alive.
func RunOrderDeletionSequence(ctx workflow.Context, input ports.DeleteOrderInput) (*ports.DeleteResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("order deletion sequence started", "ownerId", input.OwnerID, "customerKey", input.CustomerKey)
	listOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    5,
		},
	}
	deleteOptions := workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    2 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    5 * time.Second,
			MaximumAttempts:    3,
		},
	}

	var ids []string
	err := workflow.ExecuteActivity(workflow.WithActivityOptions(ctx, listOptions), orderactivities.ListCustomerItemsActivityName, input).Get(ctx, &ids)
	if err != nil {
		logger.Error("order deletion sequence failed to list items", "customerKey", input.CustomerKey, "error", err)
		return nil, err
	}

	deleteCtx := workflow.WithActivityOptions(ctx, deleteOptions)
	futures := make([]workflow.Future, 0, len(ids))
	for _, id := range ids {
		ref := orderactivities.ItemRef{OwnerID: input.OwnerID, ID: id}
		futures = append(futures, workflow.ExecuteActivity(deleteCtx, orderactivities.DeleteItemActivityName, ref))
	}
	result := &ports.DeleteResult{}
	for i, f := range futures {
		if err := f.Get(ctx, nil); err != nil {
			result.ItemsFailed++
			logger.Warn("order deletion sequence skipped item", "recordId", ids[i], "error", err)
			continue
		}
		result.ItemsDeleted++
	}

	var deleted bool
	if err := workflow.ExecuteActivity(deleteCtx, orderactivities.DeletePaymentActivityName, input).Get(ctx, &deleted); err != nil {
		logger.Warn("order deletion sequence could not delete payment", "customerKey", input.CustomerKey, "error", err)
	}
	result.PaymentDeleted = deleted
	logger.Info("order deletion sequence completed",
		"customerKey", input.CustomerKey, "itemsDeleted", result.ItemsDeleted, "itemsFailed", result.ItemsFailed)
	return result, nil
}
