package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/Apurer/vendor-orders/internal/app/stores"
	"github.com/Apurer/vendor-orders/internal/platform/config"
	platformobservability "github.com/Apurer/vendor-orders/internal/platform/observability"
	orderactivities "github.com/Apurer/vendor-orders/internal/platform/temporal/activities/orders"
	orderworkflows "github.com/Apurer/vendor-orders/internal/platform/temporal/workflows/orders"
)

func main() {
	ctx := context.Background()
	const serviceName = "vendor-orders-worker"
	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("failed to load .env: %v", err)
	}
	instruments, shutdown, err := platformobservability.Init(ctx, platformobservability.SettingsFromEnv(serviceName))
	if err != nil {
		log.Fatalf("failed to initialize observability: %v", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	settings, err := storeSettings()
	if err != nil {
		logger.Error("invalid store configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if settings.Kind == stores.KindMemory {
		logger.Warn("worker using the in-memory store; deletions will not reach the API process")
	}
	backend, err := stores.Open(ctx, settings, logger)
	if err != nil {
		logger.Error("failed to open order store", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer backend.Close()
	orderActivities := orderactivities.NewActivities(backend.Gateway)

	tracerOptions := temporalotel.TracerOptions{Tracer: instruments.Tracer("temporal-worker")}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(tracerOptions)
	if err != nil {
		logger.Error("failed to configure Temporal tracing interceptor", slog.String("error", err.Error()))
		os.Exit(1)
	}
	clientOptions := client.Options{
		HostPort:  config.String("TEMPORAL_ADDRESS", client.DefaultHostPort),
		Namespace: config.String("TEMPORAL_NAMESPACE", client.DefaultNamespace),
		Logger:    workerlog.NewStructuredLogger(logger),
	}
	clientOptions.Interceptors = append(clientOptions.Interceptors, tracingInterceptor)
	temporalClient, err := client.Dial(clientOptions)
	if err != nil {
		logger.Error("failed to create Temporal client", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer temporalClient.Close()

	w := worker.New(temporalClient, orderworkflows.OrderDeletionTaskQueue, worker.Options{})
	w.RegisterWorkflowWithOptions(orderworkflows.DeleteOrderWorkflow, workflow.RegisterOptions{Name: orderworkflows.DeleteOrderWorkflowName})
	w.RegisterActivityWithOptions(orderActivities.ListCustomerItems, activity.RegisterOptions{Name: orderactivities.ListCustomerItemsActivityName})
	w.RegisterActivityWithOptions(orderActivities.DeleteItem, activity.RegisterOptions{Name: orderactivities.DeleteItemActivityName})
	w.RegisterActivityWithOptions(orderActivities.DeletePayment, activity.RegisterOptions{Name: orderactivities.DeletePaymentActivityName})

	logger.Info("worker listening",
		slog.String("taskQueue", orderworkflows.OrderDeletionTaskQueue),
		slog.String("namespace", clientOptions.Namespace),
		slog.String("store", string(backend.Kind)))
	if err := w.Run(worker.InterruptCh()); err != nil {
		logger.Error("Temporal worker exited with error", slog.String("error", err.Error()))
		return
	}
	logger.Info("Temporal worker stopped")
}

func storeSettings() (stores.Settings, error) {
	dsn := config.String("POSTGRES_DSN", "")
	kind, err := stores.ParseKind(config.String("ORDERS_STORE", ""), dsn)
	if err != nil {
		return stores.Settings{}, err
	}
	return stores.Settings{
		Kind:        kind,
		PostgresDSN: dsn,
		PebbleDir:   config.String("PEBBLE_DIR", stores.DefaultPebbleDir),
	}, nil
}
