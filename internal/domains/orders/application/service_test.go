package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Apurer/vendor-orders/internal/domains/orders/domain"
	"github.com/Apurer/vendor-orders/internal/domains/orders/ports"
)

type fakeGateway struct {
	items    map[string]domain.ItemRecord
	payments map[string]domain.PaymentRecord

	upsertItemErr    error
	upsertPaymentErr error
	listItemsErr     error
	deleteItemErr    map[string]error

	itemSubs     []ports.ItemsSnapshot
	paymentSubs  []ports.PaymentsSnapshot
	itemErrs     []ports.StreamError
	subscribeErr error
	unsubscribed int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		items:         map[string]domain.ItemRecord{},
		payments:      map[string]domain.PaymentRecord{},
		deleteItemErr: map[string]error{},
	}
}

func (f *fakeGateway) UpsertItem(_ context.Context, rec domain.ItemRecord) error {
	if f.upsertItemErr != nil {
		return f.upsertItemErr
	}
	f.items[rec.ID] = rec
	return nil
}

func (f *fakeGateway) UpsertPayment(_ context.Context, rec domain.PaymentRecord) error {
	if f.upsertPaymentErr != nil {
		return f.upsertPaymentErr
	}
	f.payments[rec.ID] = rec
	return nil
}

func (f *fakeGateway) DeleteItem(_ context.Context, ownerID, id string) error {
	if err := f.deleteItemErr[id]; err != nil {
		return err
	}
	if rec, ok := f.items[id]; !ok || rec.OwnerID != ownerID {
		return ports.ErrNotFound
	}
	delete(f.items, id)
	return nil
}

func (f *fakeGateway) DeletePayment(_ context.Context, ownerID, id string) error {
	if rec, ok := f.payments[id]; !ok || rec.OwnerID != ownerID {
		return ports.ErrNotFound
	}
	delete(f.payments, id)
	return nil
}

func (f *fakeGateway) ListItems(_ context.Context, filter ports.Filter) ([]domain.ItemRecord, error) {
	if f.listItemsErr != nil {
		return nil, f.listItemsErr
	}
	var out []domain.ItemRecord
	for _, rec := range f.items {
		if filter.MatchItem(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeGateway) ListPayments(_ context.Context, filter ports.Filter) ([]domain.PaymentRecord, error) {
	var out []domain.PaymentRecord
	for _, rec := range f.payments {
		if filter.MatchPayment(rec) {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeGateway) SubscribeItems(_ context.Context, _ ports.Filter, onSnapshot ports.ItemsSnapshot, onError ports.StreamError) (ports.Unsubscribe, error) {
	if f.subscribeErr != nil {
		return nil, f.subscribeErr
	}
	f.itemSubs = append(f.itemSubs, onSnapshot)
	f.itemErrs = append(f.itemErrs, onError)
	return func() { f.unsubscribed++ }, nil
}

func (f *fakeGateway) SubscribePayments(_ context.Context, _ ports.Filter, onSnapshot ports.PaymentsSnapshot, _ ports.StreamError) (ports.Unsubscribe, error) {
	f.paymentSubs = append(f.paymentSubs, onSnapshot)
	return func() { f.unsubscribed++ }, nil
}

func TestAddOrUpdateOrder_AccumulatesQuantity(t *testing.T) {
	gw := newFakeGateway()
	svc := NewService(gw)
	ctx := context.Background()

	first, err := svc.AddOrUpdateOrder(ctx, "u1", ports.AddOrderInput{Prompt: "ana 2", Product: "oreo"})
	require.NoError(t, err)
	assert.Equal(t, "u1:ana:oreo", first.ID)
	assert.Equal(t, "Ana", first.CustomerName)
	assert.Equal(t, 2, first.Quantity)

	second, err := svc.AddOrUpdateOrder(ctx, "u1", ports.AddOrderInput{Prompt: "ANA 3", Product: "oreo"})
	require.NoError(t, err)
	assert.Equal(t, 5, second.Quantity)
	assert.Equal(t, 5, gw.items["u1:ana:oreo"].Quantity)
	assert.Len(t, gw.items, 1)
}

func TestAddOrUpdateOrder_ValidationNeverReachesGateway(t *testing.T) {
	gw := newFakeGateway()
	gw.upsertItemErr = errors.New("must not be called")
	svc := NewService(gw)
	ctx := context.Background()

	_, err := svc.AddOrUpdateOrder(ctx, "u1", ports.AddOrderInput{Prompt: "Ana 2"})
	require.ErrorIs(t, err, domain.ErrMissingSelection)
	require.ErrorIs(t, err, ErrInvalidInput)
	assert.Equal(t, "Error: Debes seleccionar un producto.", UserMessage(err))

	_, err = svc.AddOrUpdateOrder(ctx, "u1", ports.AddOrderInput{Prompt: "Ana", Product: "oreo"})
	require.ErrorIs(t, err, domain.ErrInvalidFormat)
	assert.Equal(t, "Formato no válido. Usa 'Nombre Cantidad', ej: 'Ana 2'.", UserMessage(err))

	_, err = svc.AddOrUpdateOrder(ctx, "u1", ports.AddOrderInput{Prompt: " 4", Product: "oreo"})
	require.ErrorIs(t, err, domain.ErrEmptyName)
	assert.Equal(t, "No se pudo identificar el nombre del cliente.", UserMessage(err))

	_, err = svc.AddOrUpdateOrder(ctx, "u1", ports.AddOrderInput{Prompt: "Ana 1", Product: "brownie"})
	require.ErrorIs(t, err, domain.ErrUnknownProduct)
}

func TestAddOrUpdateOrder_WriteFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.upsertItemErr = errors.New("unavailable")
	svc := NewService(gw)

	_, err := svc.AddOrUpdateOrder(context.Background(), "u1", ports.AddOrderInput{Prompt: "Ana 1", Product: "cubo"})
	require.ErrorIs(t, err, ErrWriteFailure)
	var writeErr *WriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, WriteSave, writeErr.Op)
	assert.Equal(t, "No se pudo guardar el pedido.", UserMessage(err))
}

func TestRecordPayment_AddsToExistingTotal(t *testing.T) {
	gw := newFakeGateway()
	svc := NewService(gw)
	ctx := context.Background()
	_, err := svc.AddOrUpdateOrder(ctx, "u1", ports.AddOrderInput{Prompt: "Ana 2", Product: "oreo"})
	require.NoError(t, err)

	res, err := svc.RecordPayment(ctx, "u1", ports.RecordPaymentInput{CustomerKey: "ana", Amount: decimal.RequireFromString("1.5")})
	require.NoError(t, err)
	assert.Equal(t, "1.5", res.Record.Paid.String())
	assert.Equal(t, "Ana", res.Record.CustomerName)
	assert.False(t, res.Settled)

	res, err = svc.RecordPayment(ctx, "u1", ports.RecordPaymentInput{CustomerKey: " ANA ", Amount: decimal.RequireFromString("2.5")})
	require.NoError(t, err)
	assert.Equal(t, "4", res.Record.Paid.String())
	assert.True(t, res.Settled)
	assert.Equal(t, "u1:ana", res.Record.ID)
}

func TestRecordPayment_RejectsNonPositiveAmounts(t *testing.T) {
	svc := NewService(newFakeGateway())
	for _, amount := range []string{"0", "-3"} {
		_, err := svc.RecordPayment(context.Background(), "u1", ports.RecordPaymentInput{CustomerKey: "ana", Amount: decimal.RequireFromString(amount)})
		require.ErrorIs(t, err, domain.ErrInvalidAmount)
		require.ErrorIs(t, err, ErrInvalidInput)
	}
}

func TestRecordPayment_RoundsToCents(t *testing.T) {
	gw := newFakeGateway()
	svc := NewService(gw)
	ctx := context.Background()

	res, err := svc.RecordPayment(ctx, "u1", ports.RecordPaymentInput{CustomerKey: "ana", Amount: decimal.RequireFromString("1.005")})
	require.NoError(t, err)
	assert.Equal(t, "1.01", res.Record.Paid.StringFixed(2))
	assert.True(t, decimal.RequireFromString("1.01").Equal(gw.payments["u1:ana"].Paid))

	_, err = svc.RecordPayment(ctx, "u1", ports.RecordPaymentInput{CustomerKey: "ana", Amount: decimal.RequireFromString("0.004")})
	require.ErrorIs(t, err, domain.ErrInvalidAmount)
	assert.True(t, decimal.RequireFromString("1.01").Equal(gw.payments["u1:ana"].Paid))
}

func TestRecordPayment_MissingItemsKeepsEmptyName(t *testing.T) {
	gw := newFakeGateway()
	gw.listItemsErr = errors.New("offline")
	svc := NewService(gw)

	res, err := svc.RecordPayment(context.Background(), "u1", ports.RecordPaymentInput{CustomerKey: "ana", Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	assert.Equal(t, "", res.Record.CustomerName)
	assert.False(t, res.Settled)
}

func TestRecordPayment_WriteFailureMessage(t *testing.T) {
	gw := newFakeGateway()
	gw.upsertPaymentErr = errors.New("denied")
	svc := NewService(gw)

	_, err := svc.RecordPayment(context.Background(), "u1", ports.RecordPaymentInput{CustomerKey: "ana", Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, ErrWriteFailure)
	assert.Equal(t, "No se pudo registrar el pago.", UserMessage(err))
}

func TestDeleteOrder_CascadesAndSkipsFailures(t *testing.T) {
	gw := newFakeGateway()
	svc := NewService(gw)
	ctx := context.Background()
	for _, product := range []string{"oreo", "cubo", "manjar"} {
		_, err := svc.AddOrUpdateOrder(ctx, "u1", ports.AddOrderInput{Prompt: "Ana 1", Product: product})
		require.NoError(t, err)
	}
	_, err := svc.AddOrUpdateOrder(ctx, "u1", ports.AddOrderInput{Prompt: "Beto 1", Product: "oreo"})
	require.NoError(t, err)
	_, err = svc.RecordPayment(ctx, "u1", ports.RecordPaymentInput{CustomerKey: "ana", Amount: decimal.NewFromInt(1)})
	require.NoError(t, err)
	gw.deleteItemErr["u1:ana:cubo"] = errors.New("permission denied")

	res, err := svc.DeleteOrder(ctx, ports.DeleteOrderInput{OwnerID: "u1", CustomerKey: "Ana"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ItemsDeleted)
	assert.Equal(t, 1, res.ItemsFailed)
	assert.True(t, res.PaymentDeleted)
	assert.Contains(t, gw.items, "u1:ana:cubo")
	assert.Contains(t, gw.items, "u1:beto:oreo")
	assert.Empty(t, gw.payments)

	res, err = svc.DeleteOrder(ctx, ports.DeleteOrderInput{OwnerID: "u1", CustomerKey: "beto"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.ItemsDeleted)
	assert.False(t, res.PaymentDeleted)
}

func TestDeleteOrder_ListFailureIsWriteFailure(t *testing.T) {
	gw := newFakeGateway()
	gw.listItemsErr = errors.New("offline")
	svc := NewService(gw)

	_, err := svc.DeleteOrder(context.Background(), ports.DeleteOrderInput{OwnerID: "u1", CustomerKey: "ana"})
	require.ErrorIs(t, err, ErrWriteFailure)
	assert.Equal(t, "No se pudo eliminar el pedido.", UserMessage(err))
}

func TestListOrders_ViewAndGlobalSummary(t *testing.T) {
	gw := newFakeGateway()
	svc := NewService(gw)
	ctx := context.Background()
	created := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	gw.items["u1:ana:oreo"] = domain.ItemRecord{ID: "u1:ana:oreo", OwnerID: "u1", CustomerKey: "ana", CustomerName: "Ana", ProductName: "oreo", Quantity: 5, CreatedAt: &created}
	gw.items["u1:beto:cubo"] = domain.ItemRecord{ID: "u1:beto:cubo", OwnerID: "u1", CustomerKey: "beto", CustomerName: "Beto", ProductName: "cubo", Quantity: 1}
	gw.items["u2:ana:oreo"] = domain.ItemRecord{ID: "u2:ana:oreo", OwnerID: "u2", CustomerKey: "ana", CustomerName: "Ana", ProductName: "oreo", Quantity: 50}

	view, err := svc.ListOrders(ctx, "u1", domain.Query{Search: "beto"})
	require.NoError(t, err)
	require.Len(t, view.Orders, 1)
	assert.Equal(t, "Beto", view.Orders[0].Name)
	assert.Equal(t, "13", view.Summary.TotalDebt.String())
	assert.Equal(t, 2, view.Summary.Orders)
	assert.Empty(t, view.EmptyMessage)

	empty, err := svc.ListOrders(ctx, "u1", domain.Query{Search: "zoe"})
	require.NoError(t, err)
	assert.Equal(t, "No se encontraron clientes que coincidan con \"zoe\".", empty.EmptyMessage)

	gw.listItemsErr = errors.New("offline")
	_, err = svc.ListOrders(ctx, "u1", domain.Query{})
	require.ErrorIs(t, err, ErrLoadFailure)
	assert.Equal(t, "Error al cargar los pedidos.", UserMessage(err))
}

func TestInFlight_DisablesUntilReleased(t *testing.T) {
	guard := NewInFlight()
	key := ControlKey("u1", "pay", "ana")

	release, err := guard.Begin(key)
	require.NoError(t, err)
	assert.True(t, guard.Busy(key))

	_, err = guard.Begin(key)
	require.ErrorIs(t, err, ErrWriteInFlight)

	other, err := guard.Begin(ControlKey("u1", "pay", "beto"))
	require.NoError(t, err)
	other()

	release()
	assert.False(t, guard.Busy(key))
	release()

	again, err := guard.Begin(key)
	require.NoError(t, err)
	again()
}
