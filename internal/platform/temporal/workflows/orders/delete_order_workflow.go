package orders

import (
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/vendor-orders/internal/domains/orders/ports"
	"github.com/Apurer/vendor-orders/internal/platform/temporal/sequences"
)

const (
	// DeleteOrderWorkflowName is the public identifier for registering the workflow.
	DeleteOrderWorkflowName = "orders.workflows.DeleteOrder"
	// OrderDeletionTaskQueue is the queue consumed by the worker processing order deletions.
	OrderDeletionTaskQueue = "ORDER_DELETION"
)

// DeleteOrderWorkflowInput captures the customer whose order is removed.
type DeleteOrderWorkflowInput struct {
	Command ports.DeleteOrderInput
	TraceID string
}

// DeleteOrderWorkflow cascades the deletion of a customer's order records.
func DeleteOrderWorkflow(ctx workflow.Context, input DeleteOrderWorkflowInput) (*ports.DeleteResult, error) {
	logger := workflow.GetLogger(ctx)
	key := input.Command.CustomerKey
	logger.Info("DeleteOrderWorkflow started", withTraceID(input.TraceID, "customerKey", key)...)
	result, err := sequences.RunOrderDeletionSequence(ctx, input.Command)
	if err != nil {
		logger.Error("DeleteOrderWorkflow failed", withTraceID(input.TraceID, "customerKey", key, "error", err)...)
		return nil, err
	}
	logger.Info("DeleteOrderWorkflow completed", withTraceID(input.TraceID, "customerKey", key, "itemsDeleted", result.ItemsDeleted)...)
	return result, nil
}

func withTraceID(traceID string, keyvals ...interface{}) []interface{} {
	if traceID == "" {
		return keyvals
	}
	return append(keyvals, "traceId", traceID)
}
