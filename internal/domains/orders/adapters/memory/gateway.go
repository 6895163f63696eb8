package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Apurer/vendor-orders/internal/domains/orders/adapters/realtime"
	"github.com/Apurer/vendor-orders/internal/domains/orders/domain"
	"github.com/Apurer/vendor-orders/internal/domains/orders/ports"
)

var _ ports.Gateway = (*Gateway)(nil)

// Gateway is an in-memory record store with realtime snapshots.
type Gateway struct {
	mu       sync.RWMutex
	items    map[string]domain.ItemRecord
	payments map[string]domain.PaymentRecord
	hub      *realtime.Hub
	now      func() time.Time
}

func NewGateway() *Gateway {
	return &Gateway{
		items:    map[string]domain.ItemRecord{},
		payments: map[string]domain.PaymentRecord{},
		hub:      realtime.NewHub(),
		now:      time.Now,
	}
}

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
	g.mu.Lock()
	if existing, ok := g.items[record.ID]; ok {
		record.CreatedAt = existing.CreatedAt
	} else {
		record.CreatedAt = g.stamp()
	}
	g.items[record.ID] = cloneItem(record)
	g.mu.Unlock()
	g.hub.Publish(realtime.Topic{Collection: domain.CollectionItems, OwnerID: record.OwnerID})
	return nil
}

func (g *Gateway) UpsertPayment(_ context.Context, record domain.PaymentRecord) error {
	if err := record.Validate(); err != nil {
		return err
	}
	g.mu.Lock()
	if existing, ok := g.payments[record.ID]; ok {
		record.CreatedAt = existing.CreatedAt
	} else {
		record.CreatedAt = g.stamp()
	}
	g.payments[record.ID] = clonePayment(record)
	g.mu.Unlock()
	g.hub.Publish(realtime.Topic{Collection: domain.CollectionPayments, OwnerID: record.OwnerID})
	return nil
}

func (g *Gateway) DeleteItem(_ context.Context, ownerID, id string) error {
	g.mu.Lock()
	rec, ok := g.items[id]
	if !ok || rec.OwnerID != ownerID {
		g.mu.Unlock()
		return ports.ErrNotFound
	}
	delete(g.items, id)
	g.mu.Unlock()
	g.hub.Publish(realtime.Topic{Collection: domain.CollectionItems, OwnerID: ownerID})
	return nil
}

func (g *Gateway) DeletePayment(_ context.Context, ownerID, id string) error {
	g.mu.Lock()
	rec, ok := g.payments[id]
	if !ok || rec.OwnerID != ownerID {
		g.mu.Unlock()
		return ports.ErrNotFound
	}
	delete(g.payments, id)
	g.mu.Unlock()
	g.hub.Publish(realtime.Topic{Collection: domain.CollectionPayments, OwnerID: ownerID})
	return nil
}

func (g *Gateway) ListItems(_ context.Context, filter ports.Filter) ([]domain.ItemRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	list := make([]domain.ItemRecord, 0)
	for _, rec := range g.items {
		if filter.MatchItem(rec) {
			list = append(list, cloneItem(rec))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (g *Gateway) ListPayments(_ context.Context, filter ports.Filter) ([]domain.PaymentRecord, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	list := make([]domain.PaymentRecord, 0)
	for _, rec := range g.payments {
		if filter.MatchPayment(rec) {
			list = append(list, clonePayment(rec))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
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

func (g *Gateway) stamp() *time.Time {
	now := g.now().UTC()
	return &now
}

func cloneItem(rec domain.ItemRecord) domain.ItemRecord {
	if rec.CreatedAt != nil {
		ts := *rec.CreatedAt
		rec.CreatedAt = &ts
	}
	return rec
}

func clonePayment(rec domain.PaymentRecord) domain.PaymentRecord {
	if rec.CreatedAt != nil {
		ts := *rec.CreatedAt
		rec.CreatedAt = &ts
	}
	return rec
}
