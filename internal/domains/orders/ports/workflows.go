package ports

import "context"

// WorkflowOrchestrator runs multi-step order operations, durably when a
// workflow engine is configured.
type WorkflowOrchestrator interface {
	DeleteOrder(ctx context.Context, input DeleteOrderInput) (*DeleteResult, error)
}
