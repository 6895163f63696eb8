//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/Apurer/vendor-orders/internal/domains/orders/domain"
	"github.com/Apurer/vendor-orders/internal/domains/orders/ports"
	"github.com/Apurer/vendor-orders/internal/platform/migrations"
)

func setupOrdersPostgresContainer(t *testing.T) (*gorm.DB, string, func()) {
	ctx := context.Background()

	pgContainer, err := tcpostgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		tcpostgres.WithDatabase("orders_test"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	err = migrations.Run(db)
	require.NoError(t, err)

	cleanup := func() {
		sqlDB, _ := db.DB()
		if sqlDB != nil {
			sqlDB.Close()
		}
		pgContainer.Terminate(ctx)
	}

	return db, dsn, cleanup
}

func TestGateway_UpsertKeepsCreatedAt(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, _, cleanup := setupOrdersPostgresContainer(t)
	defer cleanup()

	gw := NewGateway(db)
	ctx := context.Background()

	rec, err := domain.NewItemRecord("u1", "Ana", "oreo", 1)
	require.NoError(t, err)
	require.NoError(t, gw.UpsertItem(ctx, rec))
	first, err := gw.ListItems(ctx, ports.Filter{OwnerID: "u1", ID: rec.ID})
	require.NoError(t, err)
	require.Len(t, first, 1)

	rec.Quantity = 6
	require.NoError(t, gw.UpsertItem(ctx, rec))
	second, err := gw.ListItems(ctx, ports.Filter{OwnerID: "u1", ID: rec.ID})
	require.NoError(t, err)
	require.Len(t, second, 1)
	assert.Equal(t, 6, second[0].Quantity)
	assert.True(t, first[0].CreatedAt.Equal(*second[0].CreatedAt))
}

func TestGateway_SchemaComesFromMigrations(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, _, cleanup := setupOrdersPostgresContainer(t)
	defer cleanup()

	require.NoError(t, db.Migrator().DropTable("order_item", "order_payment"))
	NewGateway(db)
	assert.False(t, db.Migrator().HasTable("order_item"))
	assert.False(t, db.Migrator().HasTable("order_payment"))

	require.NoError(t, migrations.Run(db))
	assert.True(t, db.Migrator().HasTable("order_item"))
	assert.True(t, db.Migrator().HasTable("order_payment"))
}

func TestGateway_PaymentsAndOwnership(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, _, cleanup := setupOrdersPostgresContainer(t)
	defer cleanup()

	gw := NewGateway(db)
	ctx := context.Background()

	pay, err := domain.NewPaymentRecord("u1", "ana", "Ana", decimal.RequireFromString("2.50"))
	require.NoError(t, err)
	require.NoError(t, gw.UpsertPayment(ctx, pay))

	list, err := gw.ListPayments(ctx, ports.Filter{OwnerID: "u1", CustomerKey: "ana"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, decimal.RequireFromString("2.5").Equal(list[0].Paid))

	other, err := gw.ListPayments(ctx, ports.Filter{OwnerID: "u2"})
	require.NoError(t, err)
	assert.Empty(t, other)

	assert.ErrorIs(t, gw.DeletePayment(ctx, "u2", pay.ID), ports.ErrNotFound)
	require.NoError(t, gw.DeletePayment(ctx, "u1", pay.ID))
	assert.ErrorIs(t, gw.DeletePayment(ctx, "u1", pay.ID), ports.ErrNotFound)
}

func TestGateway_ListenerDeliversRemoteWrites(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}

	db, dsn, cleanup := setupOrdersPostgresContainer(t)
	defer cleanup()

	reader := NewGateway(db)
	writer := NewGateway(db)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	require.NoError(t, Listen(ctx, dsn, reader.Hub(), nil))

	snapshots := make(chan []domain.ItemRecord, 8)
	unsubscribe, err := reader.SubscribeItems(ctx, ports.Filter{OwnerID: "u1"}, func(records []domain.ItemRecord) {
		snapshots <- records
	}, nil)
	require.NoError(t, err)
	defer unsubscribe()
	<-snapshots

	rec, err := domain.NewItemRecord("u1", "Beto", "cubo", 2)
	require.NoError(t, err)
	require.NoError(t, writer.UpsertItem(ctx, rec))

	select {
	case got := <-snapshots:
		require.Len(t, got, 1)
		assert.Equal(t, "Beto", got[0].CustomerName)
	case <-time.After(5 * time.Second):
		t.Fatal("remote write was not delivered")
	}
}
