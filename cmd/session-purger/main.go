package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	identitypostgres "github.com/Apurer/vendor-orders/internal/domains/identity/adapters/persistence/postgres"
	"github.com/Apurer/vendor-orders/internal/platform/config"
	platformpostgres "github.com/Apurer/vendor-orders/internal/platform/postgres"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := config.LoadDotEnv(); err != nil {
		log.Fatalf("failed to load .env: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	dsn := config.String("POSTGRES_DSN", "")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN not set; cannot purge sessions")
	}
	db, cleanup, err := platformpostgres.Open(ctx, dsn, logger)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer cleanup()

	store := identitypostgres.NewSessionStore(db)
	if err := store.PurgeExpired(ctx); err != nil {
		log.Fatalf("failed to purge sessions: %v", err)
	}
	logger.Info("session purge completed")
}
