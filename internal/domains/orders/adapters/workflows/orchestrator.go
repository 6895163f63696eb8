package workflows

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	oteltrace "go.opentelemetry.io/otel/trace"
	"go.temporal.io/api/serviceerror"
	"go.temporal.io/sdk/client"

	"github.com/Apurer/vendor-orders/internal/domains/orders/application"
	"github.com/Apurer/vendor-orders/internal/domains/orders/domain"
	"github.com/Apurer/vendor-orders/internal/domains/orders/ports"
	orderworkflows "github.com/Apurer/vendor-orders/internal/platform/temporal/workflows/orders"
)

var (
	_ ports.WorkflowOrchestrator = (*TemporalOrderWorkflows)(nil)
	_ ports.WorkflowOrchestrator = (*InlineOrderWorkflows)(nil)
)

// TemporalOrderWorkflows starts order workflows on a Temporal cluster.
type TemporalOrderWorkflows struct {
	client    client.Client
	taskQueue string
}

// NewTemporalOrderWorkflows wires a Temporal client into the orchestrator.
func NewTemporalOrderWorkflows(c client.Client) *TemporalOrderWorkflows {
	return &TemporalOrderWorkflows{client: c, taskQueue: orderworkflows.OrderDeletionTaskQueue}
}

// DeleteOrder runs the deletion cascade as a Temporal workflow and waits for
// its result. A deletion already running for the same customer is joined
// instead of started twice.
func (o *TemporalOrderWorkflows) DeleteOrder(ctx context.Context, input ports.DeleteOrderInput) (*ports.DeleteResult, error) {
	if o == nil || o.client == nil {
		return nil, errors.New("temporal order workflows not configured")
	}
	command, err := normalize(input)
	if err != nil {
		return nil, err
	}
	workflowID := buildOrderDeletionWorkflowID(command)
	options := client.StartWorkflowOptions{
		ID:        workflowID,
		TaskQueue: o.taskQueue,
	}
	run, err := o.client.ExecuteWorkflow(
		ctx,
		options,
		orderworkflows.DeleteOrderWorkflow,
		orderworkflows.DeleteOrderWorkflowInput{Command: command, TraceID: workflowTraceComponent(ctx)},
	)
	if err != nil {
		var alreadyStarted *serviceerror.WorkflowExecutionAlreadyStarted
		if errors.As(err, &alreadyStarted) {
			run = o.client.GetWorkflow(ctx, workflowID, alreadyStarted.RunId)
		} else {
			return nil, fmt.Errorf("%w: %w", application.ErrWriteFailure, err)
		}
	}
	var result ports.DeleteResult
	if err := run.Get(ctx, &result); err != nil {
		return nil, &application.WriteError{Op: application.WriteDelete, Err: err}
	}
	return &result, nil
}

// InlineOrderWorkflows executes the service directly without Temporal, useful for tests or dev fallbacks.
type InlineOrderWorkflows struct {
	service ports.Service
}

// NewInlineOrderWorkflows wraps the orders service for synchronous execution.
func NewInlineOrderWorkflows(service ports.Service) *InlineOrderWorkflows {
	return &InlineOrderWorkflows{service: service}
}

// DeleteOrder delegates to the application service without durable orchestration.
func (o *InlineOrderWorkflows) DeleteOrder(ctx context.Context, input ports.DeleteOrderInput) (*ports.DeleteResult, error) {
	if o == nil || o.service == nil {
		return nil, errors.New("inline order workflows not configured")
	}
	return o.service.DeleteOrder(ctx, input)
}

func normalize(input ports.DeleteOrderInput) (ports.DeleteOrderInput, error) {
	input.OwnerID = strings.TrimSpace(input.OwnerID)
	input.CustomerKey = domain.CustomerKey(input.CustomerKey)
	if input.OwnerID == "" {
		return input, fmt.Errorf("%w: %w", application.ErrInvalidInput, domain.ErrMissingOwner)
	}
	if input.CustomerKey == "" {
		return input, fmt.Errorf("%w: %w", application.ErrInvalidInput, domain.ErrMissingCustomer)
	}
	return input, nil
}

func buildOrderDeletionWorkflowID(input ports.DeleteOrderInput) string {
	return fmt.Sprintf("order-deletion-%s-%s", input.OwnerID, input.CustomerKey)
}

func workflowTraceComponent(ctx context.Context) string {
	traceComponent := workflowTraceID(ctx)
	if traceComponent != "" {
		return traceComponent
	}
	return fmt.Sprintf("fallback-%d", time.Now().UnixNano())
}

func workflowTraceID(ctx context.Context) string {
	span := oteltrace.SpanFromContext(ctx)
	if span == nil {
		return ""
	}
	spanCtx := span.SpanContext()
	if !spanCtx.IsValid() {
		return ""
	}
	traceID := spanCtx.TraceID()
	if !traceID.IsValid() {
		return ""
	}
	return traceID.String()
}
