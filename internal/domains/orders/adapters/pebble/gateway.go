package pebble

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/shopspring/decimal"

	"github.com/Apurer/vendor-orders/internal/domains/orders/adapters/realtime"
	"github.com/Apurer/vendor-orders/internal/domains/orders/domain"
	"github.com/Apurer/vendor-orders/internal/domains/orders/ports"
)

var _ ports.Gateway = (*Gateway)(nil)

// Gateway keeps both order collections in an embedded Pebble store so the
// CLI works offline. Keys are "<collection>\x00<owner>\x00<record id>".
type Gateway struct {
	db  *pebble.DB
	hub *realtime.Hub
	now func() time.Time

	// writeMu serializes read-modify-write of CreatedAt.
	writeMu sync.Mutex
}

type itemDoc struct {
	ID           string     `json:"id"`
	OwnerID      string     `json:"owner_id"`
	CustomerKey  string     `json:"customer_key"`
	CustomerName string     `json:"customer_name"`
	ProductName  string     `json:"product_name"`
	Quantity     int        `json:"quantity"`
	CreatedAt    *time.Time `json:"created_at,omitempty"`
}

type paymentDoc struct {
	ID           string          `json:"id"`
	OwnerID      string          `json:"owner_id"`
	CustomerKey  string          `json:"customer_key"`
	CustomerName string          `json:"customer_name"`
	Paid         decimal.Decimal `json:"paid"`
	CreatedAt    *time.Time      `json:"created_at,omitempty"`
}

// Open opens or creates the store under dir.
func Open(dir string) (*Gateway, error) {
	db, err := pebble.Open(filepath.Clean(dir), &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("pebble open: %w", err)
	}
	return &Gateway{db: db, hub: realtime.NewHub(), now: time.Now}, nil
}

func (g *Gateway) Close() error { return g.db.Close() }

// WithClock overrides the time source for deterministic testing.
func (g *Gateway) WithClock(now func() time.Time) {
	if now != nil {
		g.now = now
	}
}

func (g *Gateway) UpsertItem(_ context.Context, record domain.ItemRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	key := recordKey(domain.CollectionItems, record.OwnerID, record.ID)

	g.writeMu.Lock()
	var existing itemDoc
	found, err := g.get(key, &existing)
	if err != nil {
		g.writeMu.Unlock()
		return err
	}
	doc := itemDoc{
		ID:           record.ID,
		OwnerID:      record.OwnerID,
		CustomerKey:  record.CustomerKey,
		CustomerName: record.CustomerName,
		ProductName:  record.ProductName,
		Quantity:     record.Quantity,
		CreatedAt:    g.createdAt(found, existing.CreatedAt),
	}
	err = g.put(key, doc)
	g.writeMu.Unlock()
	if err != nil {
		return err
	}
	g.hub.Publish(realtime.Topic{Collection: domain.CollectionItems, OwnerID: record.OwnerID})
	return nil
}

func (g *Gateway) UpsertPayment(_ context.Context, record domain.PaymentRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	key := recordKey(domain.CollectionPayments, record.OwnerID, record.ID)

	g.writeMu.Lock()
	var existing paymentDoc
	found, err := g.get(key, &existing)
	if err != nil {
		g.writeMu.Unlock()
		return err
	}
	doc := paymentDoc{
		ID:           record.ID,
		OwnerID:      record.OwnerID,
		CustomerKey:  record.CustomerKey,
		CustomerName: record.CustomerName,
		Paid:         record.Paid,
		CreatedAt:    g.createdAt(found, existing.CreatedAt),
	}
	err = g.put(key, doc)
	g.writeMu.Unlock()
	if err != nil {
		return err
	}
	g.hub.Publish(realtime.Topic{Collection: domain.CollectionPayments, OwnerID: record.OwnerID})
	return nil
}

func (g *Gateway) DeleteItem(_ context.Context, ownerID, id string) error {
	return g.delete(domain.CollectionItems, ownerID, id)
}

func (g *Gateway) DeletePayment(_ context.Context, ownerID, id string) error {
	return g.delete(domain.CollectionPayments, ownerID, id)
}

func (g *Gateway) ListItems(_ context.Context, filter ports.Filter) ([]domain.ItemRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	list := make([]domain.ItemRecord, 0)
	err := g.scan(domain.CollectionItems, filter.OwnerID, func(val []byte) error {
		var doc itemDoc
		if err := json.Unmarshal(val, &doc); err != nil {
			return err
		}
		rec := domain.ItemRecord{
			ID:           doc.ID,
			OwnerID:      doc.OwnerID,
			CustomerKey:  doc.CustomerKey,
			CustomerName: doc.CustomerName,
			ProductName:  doc.ProductName,
			Quantity:     doc.Quantity,
			CreatedAt:    doc.CreatedAt,
		}
		if filter.MatchItem(rec) {
			list = append(list, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (g *Gateway) ListPayments(_ context.Context, filter ports.Filter) ([]domain.PaymentRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	list := make([]domain.PaymentRecord, 0)
	err := g.scan(domain.CollectionPayments, filter.OwnerID, func(val []byte) error {
		var doc paymentDoc
		if err := json.Unmarshal(val, &doc); err != nil {
			return err
		}
		rec := domain.PaymentRecord{
			ID:           doc.ID,
			OwnerID:      doc.OwnerID,
			CustomerKey:  doc.CustomerKey,
			CustomerName: doc.CustomerName,
			Paid:         doc.Paid,
			CreatedAt:    doc.CreatedAt,
		}
		if filter.MatchPayment(rec) {
			list = append(list, rec)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return list, nil
}

func (g *Gateway) SubscribeItems(ctx context.Context, filter ports.Filter, onSnapshot ports.ItemsSnapshot, onError ports.StreamError) (ports.Unsubscribe, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	topic := realtime.Topic{Collection: domain.CollectionItems, OwnerID: filter.OwnerID}
	cancel := g.hub.Watch(ctx, topic, func(ctx context.Context) (func(), error) {
		records, err := g.ListItems(ctx, filter)
		if err != nil {
			return nil, err
		}
		return func() { onSnapshot(records) }, nil
	}, onError)
	return ports.Unsubscribe(cancel), nil
}

func (g *Gateway) SubscribePayments(ctx context.Context, filter ports.Filter, onSnapshot ports.PaymentsSnapshot, onError ports.StreamError) (ports.Unsubscribe, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	topic := realtime.Topic{Collection: domain.CollectionPayments, OwnerID: filter.OwnerID}
	cancel := g.hub.Watch(ctx, topic, func(ctx context.Context) (func(), error) {
		records, err := g.ListPayments(ctx, filter)
		if err != nil {
			return nil, err
		}
		return func() { onSnapshot(records) }, nil
	}, onError)
	return ports.Unsubscribe(cancel), nil
}

func (g *Gateway) delete(collection domain.Collection, ownerID, id string) error {
	key := recordKey(collection, ownerID, id)
	g.writeMu.Lock()
	_, closer, err := g.db.Get(key)
	if err != nil {
		g.writeMu.Unlock()
		if errors.Is(err, pebble.ErrNotFound) {
			return ports.ErrNotFound
		}
		return err
	}
	_ = closer.Close()
	err = g.db.Delete(key, pebble.Sync)
	g.writeMu.Unlock()
	if err != nil {
		return err
	}
	g.hub.Publish(realtime.Topic{Collection: collection, OwnerID: ownerID})
	return nil
}

func (g *Gateway) get(key []byte, dest any) (bool, error) {
	val, closer, err := g.db.Get(key)
	if errors.Is(err, pebble.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer closer.Close()
	if err := json.Unmarshal(val, dest); err != nil {
		return false, err
	}
	return true, nil
}

func (g *Gateway) put(key []byte, doc any) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return g.db.Set(key, raw, pebble.Sync)
}

func (g *Gateway) scan(collection domain.Collection, ownerID string, fn func(val []byte) error) error {
	lower := ownerPrefix(collection, ownerID)
	upper := append([]byte(nil), lower...)
	upper[len(upper)-1]++
	it, err := g.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return err
	}
	defer it.Close()
	for it.First(); it.Valid(); it.Next() {
		if err := fn(it.Value()); err != nil {
			return err
		}
	}
	return it.Error()
}

func (g *Gateway) createdAt(found bool, existing *time.Time) *time.Time {
	if found && existing != nil {
		return existing
	}
	now := g.now().UTC()
	return &now
}

func ownerPrefix(collection domain.Collection, ownerID string) []byte {
	return []byte(string(collection) + "\x00" + ownerID + "\x00")
}

func recordKey(collection domain.Collection, ownerID, id string) []byte {
	return append(ownerPrefix(collection, ownerID), id...)
}
