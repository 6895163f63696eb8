package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.temporal.io/sdk/client"
	temporalotel "go.temporal.io/sdk/contrib/opentelemetry"
	workerlog "go.temporal.io/sdk/log"

	"github.com/Apurer/vendor-orders/internal/app/stores"
	identityfirebase "github.com/Apurer/vendor-orders/internal/domains/identity/adapters/firebase"
	identitymemory "github.com/Apurer/vendor-orders/internal/domains/identity/adapters/memory"
	identityobs "github.com/Apurer/vendor-orders/internal/domains/identity/adapters/observability"
	identityapp "github.com/Apurer/vendor-orders/internal/domains/identity/application"
	identityports "github.com/Apurer/vendor-orders/internal/domains/identity/ports"
	ordersobs "github.com/Apurer/vendor-orders/internal/domains/orders/adapters/observability"
	ordersworkflows "github.com/Apurer/vendor-orders/internal/domains/orders/adapters/workflows"
	ordersapp "github.com/Apurer/vendor-orders/internal/domains/orders/application"
	ordersports "github.com/Apurer/vendor-orders/internal/domains/orders/ports"
	"github.com/Apurer/vendor-orders/internal/platform/config"
	"github.com/Apurer/vendor-orders/internal/platform/metrics"
	platformobservability "github.com/Apurer/vendor-orders/internal/platform/observability"
)

const serviceName = "vendor-orders-api"

// Run boots the orders HTTP API with observability, stores, identity, and
// workflows wired. It returns when ctx is done or the server fails.
func Run(ctx context.Context) error {
	if err := config.LoadDotEnv(); err != nil {
		return err
	}
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	instruments, shutdown, err := platformobservability.Init(ctx, platformobservability.SettingsFromEnv(serviceName))
	if err != nil {
		return fmt.Errorf("failed to initialize observability: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			instruments.Logger.Error("failed to shutdown observability", slog.String("error", err.Error()))
		}
	}()
	logger := instruments.Logger

	catalog, err := config.Catalog(cfg.CatalogFile)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	backend, err := stores.Open(ctx, stores.Settings{
		Kind:        cfg.Store,
		PostgresDSN: cfg.PostgresDSN,
		PebbleDir:   cfg.PebbleDir,
		Listen:      true,
	}, logger)
	if err != nil {
		return err
	}
	defer backend.Close()

	registry := metrics.NewRegistry()
	coreOrders := ordersapp.NewService(backend.Gateway, ordersapp.WithCatalog(catalog), ordersapp.WithLogger(logger))
	orderService := ordersobs.New(
		coreOrders,
		ordersobs.WithLogger(logger),
		ordersobs.WithTracer(instruments.Tracer("internal.orders.application")),
		ordersobs.WithMeter(instruments.Meter("internal.orders.application")),
	)
	var orderWorkflows ordersports.WorkflowOrchestrator = ordersworkflows.NewInlineOrderWorkflows(orderService)
	if temporalClient, err := connectTemporalClient(cfg, instruments); err != nil {
		logger.Warn("Temporal workflows unavailable, deleting orders inline", slog.String("error", err.Error()))
	} else {
		defer temporalClient.Close()
		orderWorkflows = ordersworkflows.NewTemporalOrderWorkflows(temporalClient)
		logger.Info("Temporal workflows enabled", slog.String("namespace", cfg.TemporalNamespace))
	}

	provider, err := buildIdentityProvider(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if cfg.EphemeralSecret {
		logger.Warn("JWT_SECRET not set, using a random secret; sessions end on restart")
	}
	identityService := identityobs.New(
		identityapp.NewService(provider, backend.Sessions, cfg.JWTSecret,
			identityapp.WithSessionTTL(cfg.SessionTTL),
			identityapp.WithLogger(logger),
		),
		identityobs.WithLogger(logger),
		identityobs.WithTracer(instruments.Tracer("internal.identity.application")),
		identityobs.WithMeter(instruments.Meter("internal.identity.application")),
	)
	go purgeSessions(ctx, backend.Sessions, cfg.SessionPurgeInterval, logger)

	router := NewRouter(Dependencies{
		ServiceName:    serviceName,
		Orders:         orderService,
		OrderWorkflows: orderWorkflows,
		LiveSessions: func() *ordersapp.Session {
			return ordersapp.NewSession(backend.Gateway,
				ordersapp.WithSessionCatalog(catalog),
				ordersapp.WithSessionLogger(logger),
				ordersapp.WithSessionMetrics(registry),
			)
		},
		Identity:       identityService,
		Metrics:        registry.Handler(),
		AllowedOrigins: cfg.CORSAllowedOrigins,
		Logger:         logger,
	})

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("orders API listening", slog.String("addr", server.Addr), slog.String("store", string(backend.Kind)))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		logger.Error("orders API server exited", slog.String("addr", server.Addr), slog.String("error", err.Error()))
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		logger.Info("orders API shutting down")
		return server.Shutdown(shutdownCtx)
	}
}

func buildIdentityProvider(ctx context.Context, cfg Config, logger *slog.Logger) (identityports.Provider, error) {
	if !cfg.UseFirebase() {
		logger.Warn("FIREBASE_PROJECT_ID not set, using the in-memory identity provider")
		return identitymemory.NewProvider(), nil
	}
	provider, err := identityfirebase.New(ctx, identityfirebase.Config{
		ProjectID:       cfg.FirebaseProjectID,
		APIKey:          cfg.FirebaseAPIKey,
		CredentialsJSON: cfg.FirebaseCredentials,
	})
	if err != nil {
		return nil, fmt.Errorf("configure firebase: %w", err)
	}
	logger.Info("identity provider configured with firebase", slog.String("project", cfg.FirebaseProjectID))
	return provider, nil
}

func purgeSessions(ctx context.Context, sessions identityports.SessionStore, interval time.Duration, logger *slog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := sessions.PurgeExpired(ctx); err != nil {
				logger.Warn("session purge failed", slog.String("error", err.Error()))
			}
		}
	}
}

func connectTemporalClient(cfg Config, instruments *platformobservability.Instruments) (client.Client, error) {
	if cfg.TemporalDisabled {
		return nil, errors.New("temporal disabled via TEMPORAL_DISABLED env")
	}
	tracerOptions := temporalotel.TracerOptions{}
	if instruments != nil {
		tracerOptions.Tracer = instruments.Tracer("temporal-client")
	}
	tracingInterceptor, err := temporalotel.NewTracingInterceptor(tracerOptions)
	if err != nil {
		return nil, err
	}
	options := client.Options{
		HostPort:  cfg.TemporalAddress,
		Namespace: cfg.TemporalNamespace,
		Logger:    workerlog.NewStructuredLogger(effectiveLogger(instruments)),
	}
	options.Interceptors = append(options.Interceptors, tracingInterceptor)
	return client.Dial(options)
}

func effectiveLogger(instruments *platformobservability.Instruments) *slog.Logger {
	if instruments != nil && instruments.Logger != nil {
		return instruments.Logger
	}
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}
