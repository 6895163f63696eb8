package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ts(minute int) *time.Time {
	t := time.Date(2024, 5, 1, 10, minute, 0, 0, time.UTC)
	return &t
}

func item(owner, name, product string, qty int, created *time.Time) ItemRecord {
	key := CustomerKey(name)
	return ItemRecord{
		ID:           ItemRecordID(owner, key, product),
		OwnerID:      owner,
		CustomerKey:  key,
		CustomerName: name,
		ProductName:  product,
		Quantity:     qty,
		CreatedAt:    created,
	}
}

func payment(owner, name, paid string, created *time.Time) PaymentRecord {
	key := CustomerKey(name)
	return PaymentRecord{
		ID:           PaymentRecordID(owner, key),
		OwnerID:      owner,
		CustomerKey:  key,
		CustomerName: name,
		Paid:         decimal.RequireFromString(paid),
		CreatedAt:    created,
	}
}

func TestCustomerKey_TrimsAndLowercases(t *testing.T) {
	assert.Equal(t, "ana gómez", CustomerKey("  Ana Gómez "))
	assert.Equal(t, CustomerKey("ANA"), CustomerKey(" ana\t"))
	assert.Equal(t, "", CustomerKey("   "))
}

func TestRecordIDs_AreDeterministic(t *testing.T) {
	assert.Equal(t, "u1:ana:oreo", ItemRecordID("u1", "ana", "oreo"))
	assert.Equal(t, "u1:ana", PaymentRecordID("u1", "ana"))
	assert.NotEqual(t, ItemRecordID("u1", "ana", "oreo"), ItemRecordID("u1", "ana", "oreo manjar"))
}

func TestNewItemRecord_RejectsMissingParts(t *testing.T) {
	_, err := NewItemRecord("", "Ana", "oreo", 1)
	require.ErrorIs(t, err, ErrMissingOwner)

	_, err = NewItemRecord("u1", "  ", "oreo", 1)
	require.ErrorIs(t, err, ErrMissingCustomer)

	_, err = NewItemRecord("u1", "Ana", "", 1)
	require.ErrorIs(t, err, ErrMissingSelection)

	rec, err := NewItemRecord("u1", " Ana ", "oreo", 0)
	require.NoError(t, err)
	assert.Equal(t, "u1:ana:oreo", rec.ID)
	assert.Equal(t, "Ana", rec.CustomerName)
}

func TestAggregate_Empty(t *testing.T) {
	assert.Empty(t, Aggregate(nil, nil))
	assert.Empty(t, Aggregate([]ItemRecord{}, []PaymentRecord{}))
}

func TestAggregate_SumsQuantitiesRegardlessOfOrder(t *testing.T) {
	records := []ItemRecord{
		item("u1", "Ana", "oreo", 2, nil),
		item("u1", "Ana", "oreo", 3, nil),
		item("u1", "Ana", "cubo", 1, nil),
		item("u1", "Ana", "oreo", 5, nil),
	}
	reversed := make([]ItemRecord, len(records))
	for i := range records {
		reversed[len(records)-1-i] = records[i]
	}

	forward := Aggregate(records, nil)
	backward := Aggregate(reversed, nil)

	require.Len(t, forward, 1)
	assert.Equal(t, map[string]int{"oreo": 10, "cubo": 1}, forward["ana"].Items)
	assert.Equal(t, forward["ana"].Items, backward["ana"].Items)
}

func TestAggregate_PaymentsOverwrite(t *testing.T) {
	orders := Aggregate(
		[]ItemRecord{item("u1", "Ana", "oreo", 1, nil)},
		[]PaymentRecord{payment("u1", "Ana", "5", nil), payment("u1", "Ana", "12", nil)},
	)
	assert.True(t, decimal.RequireFromString("12").Equal(orders["ana"].Paid))
}

func TestAggregate_PaymentWithoutItemsCreatesOrder(t *testing.T) {
	orders := Aggregate(nil, []PaymentRecord{payment("u1", "Luis", "3.5", ts(4))})
	require.Contains(t, orders, "luis")
	assert.Equal(t, "Luis", orders["luis"].Name)
	assert.Empty(t, orders["luis"].Items)
	assert.Equal(t, ts(4), orders["luis"].CreatedAt)
}

func TestAggregate_KeepsEarliestCreatedAt(t *testing.T) {
	orders := Aggregate(
		[]ItemRecord{
			item("u1", "Ana", "oreo", 1, ts(30)),
			item("u1", "Ana", "cubo", 1, nil),
			item("u1", "Ana", "manjar", 1, ts(10)),
		},
		[]PaymentRecord{payment("u1", "Ana", "1", ts(5))},
	)
	assert.Equal(t, ts(5), orders["ana"].CreatedAt)

	noTimes := Aggregate([]ItemRecord{item("u1", "Bea", "oreo", 1, nil)}, nil)
	assert.Nil(t, noTimes["bea"].CreatedAt)
}

func TestAggregate_LastNonEmptyNameWins(t *testing.T) {
	first := item("u1", "ana", "oreo", 1, nil)
	second := item("u1", "ANA", "cubo", 1, nil)
	blank := payment("u1", "Ana", "0", nil)
	blank.CustomerName = ""

	orders := Aggregate([]ItemRecord{first, second}, []PaymentRecord{blank})
	require.Len(t, orders, 1)
	assert.Equal(t, "ANA", orders["ana"].Name)

	named := payment("u1", "Ana María", "0", nil)
	named.CustomerKey = "ana"
	orders = Aggregate([]ItemRecord{first, second}, []PaymentRecord{named})
	assert.Equal(t, "Ana María", orders["ana"].Name)
}

func TestAggregate_SkipsRecordsWithoutCustomerKey(t *testing.T) {
	broken := item("u1", "Ana", "oreo", 4, nil)
	broken.CustomerKey = ""
	brokenPayment := payment("u1", "Ana", "9", nil)
	brokenPayment.CustomerKey = ""

	orders := Aggregate([]ItemRecord{broken}, []PaymentRecord{brokenPayment})
	assert.Empty(t, orders)
}

func TestAggregate_IsPure(t *testing.T) {
	items := []ItemRecord{item("u1", "Ana", "oreo", 2, ts(1)), item("u1", "Bea", "cubo", 1, ts(2))}
	payments := []PaymentRecord{payment("u1", "Ana", "1", nil)}

	first := Aggregate(items, payments)
	first["ana"].Items["oreo"] = 99
	second := Aggregate(items, payments)

	assert.Equal(t, 2, second["ana"].Items["oreo"])
	assert.Len(t, second, 2)
}

func TestOrder_TotalsAndSummaryLine(t *testing.T) {
	c := DefaultCatalog()
	o := Order{
		ID:    "ana",
		Name:  "Ana",
		Items: map[string]int{"oreo": 2, "manjar": 1, "retired": 4},
		Paid:  decimal.RequireFromString("2"),
	}

	assert.Equal(t, "5.5", o.Total(c).String())
	assert.Equal(t, "3.5", o.Balance(c).String())
	assert.False(t, o.Settled(c))
	assert.Equal(t, "1 manjar, 2 oreo, 4 retired, (ya pagó S/ 2.00)", o.ItemsSummary())

	o.Paid = decimal.RequireFromString("6")
	assert.True(t, o.Settled(c))
	assert.Equal(t, "-0.5", o.Balance(c).String())
}
