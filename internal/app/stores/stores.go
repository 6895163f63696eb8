// Package stores opens the orders gateway and identity session store
// selected by configuration.
package stores

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gorm.io/gorm"

	identitymemory "github.com/Apurer/vendor-orders/internal/domains/identity/adapters/memory"
	identitypostgres "github.com/Apurer/vendor-orders/internal/domains/identity/adapters/persistence/postgres"
	identityports "github.com/Apurer/vendor-orders/internal/domains/identity/ports"
	ordersmemory "github.com/Apurer/vendor-orders/internal/domains/orders/adapters/memory"
	orderspebble "github.com/Apurer/vendor-orders/internal/domains/orders/adapters/pebble"
	orderspostgres "github.com/Apurer/vendor-orders/internal/domains/orders/adapters/persistence/postgres"
	ordersports "github.com/Apurer/vendor-orders/internal/domains/orders/ports"
	"github.com/Apurer/vendor-orders/internal/platform/migrations"
	platformpostgres "github.com/Apurer/vendor-orders/internal/platform/postgres"
)

// Kind names an orders store backend.
type Kind string

const (
	KindMemory   Kind = "memory"
	KindPebble   Kind = "pebble"
	KindPostgres Kind = "postgres"
)

// DefaultPebbleDir is used when the pebble store is selected without a directory.
const DefaultPebbleDir = "./data/orders"

// ParseKind validates a store name. Empty selects postgres when a DSN is
// configured and memory otherwise.
func ParseKind(raw, dsn string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(raw))) {
	case "":
		if strings.TrimSpace(dsn) != "" {
			return KindPostgres, nil
		}
		return KindMemory, nil
	case KindMemory:
		return KindMemory, nil
	case KindPebble:
		return KindPebble, nil
	case KindPostgres:
		return KindPostgres, nil
	default:
		return "", fmt.Errorf("unknown store %q: use memory, pebble or postgres", raw)
	}
}

// Settings selects and locates the backend.
type Settings struct {
	Kind        Kind
	PostgresDSN string
	PebbleDir   string
	// Listen enables cross-process change notifications for postgres.
	Listen bool
}

// Stores is an opened backend.
type Stores struct {
	Kind     Kind
	Gateway  ordersports.Gateway
	Sessions identityports.SessionStore
	// DB is set for the postgres backend.
	DB *gorm.DB

	closers []func()
}

// Close releases the backend in reverse open order.
func (s *Stores) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// Open opens the backend described by settings. ctx bounds the lifetime of
// the postgres change listener.
func Open(ctx context.Context, settings Settings, logger *slog.Logger) (*Stores, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch settings.Kind {
	case KindMemory, "":
		logger.Info("orders store configured in memory")
		return &Stores{Kind: KindMemory, Gateway: ordersmemory.NewGateway(), Sessions: identitymemory.NewSessionStore()}, nil
	case KindPebble:
		dir := settings.PebbleDir
		if strings.TrimSpace(dir) == "" {
			dir = DefaultPebbleDir
		}
		gateway, err := orderspebble.Open(dir)
		if err != nil {
			return nil, fmt.Errorf("open pebble store: %w", err)
		}
		logger.Info("orders store configured with pebble", slog.String("dir", dir))
		return &Stores{
			Kind:     KindPebble,
			Gateway:  gateway,
			Sessions: identitymemory.NewSessionStore(),
			closers: []func(){func() {
				if err := gateway.Close(); err != nil {
					logger.Warn("failed to close pebble store", slog.String("error", err.Error()))
				}
			}},
		}, nil
	case KindPostgres:
		return openPostgres(ctx, settings, logger)
	default:
		return nil, fmt.Errorf("unknown store %q", settings.Kind)
	}
}

func openPostgres(ctx context.Context, settings Settings, logger *slog.Logger) (*Stores, error) {
	db, cleanup, err := platformpostgres.Open(ctx, settings.PostgresDSN, logger)
	if err != nil {
		return nil, err
	}
	if err := migrations.Run(db); err != nil {
		cleanup()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	gateway := orderspostgres.NewGateway(db)
	stores := &Stores{
		Kind:     KindPostgres,
		Gateway:  gateway,
		Sessions: identitypostgres.NewSessionStore(db),
		DB:       db,
		closers:  []func(){cleanup},
	}
	if settings.Listen {
		listenCtx, cancel := context.WithCancel(ctx)
		if err := orderspostgres.Listen(listenCtx, settings.PostgresDSN, gateway.Hub(), logger); err != nil {
			cancel()
			stores.Close()
			return nil, err
		}
		stores.closers = append(stores.closers, cancel)
	}
	logger.Info("orders store configured with postgres", slog.Bool("listen", settings.Listen))
	return stores, nil
}
