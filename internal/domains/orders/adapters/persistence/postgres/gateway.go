package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Apurer/vendor-orders/internal/domains/orders/adapters/realtime"
	"github.com/Apurer/vendor-orders/internal/domains/orders/domain"
	"github.com/Apurer/vendor-orders/internal/domains/orders/ports"
)

// ChangeChannel is the LISTEN/NOTIFY channel carrying record changes.
const ChangeChannel = "orders_changes"

var _ ports.Gateway = (*Gateway)(nil)

// Gateway persists order records in PostgreSQL using GORM. Writes are
// announced on ChangeChannel so every process watching the same owner
// re-reads its snapshot.
type Gateway struct {
	db  *gorm.DB
	hub *realtime.Hub
}

// NewGateway wires a PostgreSQL-backed gateway. Caller manages DB lifecycle
// and runs platform/migrations before the first write.
func NewGateway(db *gorm.DB) *Gateway {
	return &Gateway{db: db, hub: realtime.NewHub()}
}

// Hub exposes the change hub so a Listener can feed remote changes into it.
func (g *Gateway) Hub() *realtime.Hub { return g.hub }

type itemRecord struct {
	ID           string    `gorm:"primaryKey;column:id;size:512"`
	OwnerID      string    `gorm:"column:owner_id;index:idx_order_item_owner_customer"`
	CustomerKey  string    `gorm:"column:customer_key;index:idx_order_item_owner_customer"`
	CustomerName string    `gorm:"column:customer_name"`
	ProductName  string    `gorm:"column:product_name"`
	Quantity     int       `gorm:"column:quantity"`
	CreatedAt    time.Time `gorm:"column:created_at;index"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (itemRecord) TableName() string { return "order_item" }

type paymentRecord struct {
	ID           string          `gorm:"primaryKey;column:id;size:512"`
	OwnerID      string          `gorm:"column:owner_id;index:idx_order_payment_owner_customer"`
	CustomerKey  string          `gorm:"column:customer_key;index:idx_order_payment_owner_customer"`
	CustomerName string          `gorm:"column:customer_name"`
	Paid         decimal.Decimal `gorm:"column:paid;type:numeric(12,2)"`
	CreatedAt    time.Time       `gorm:"column:created_at;index"`
	UpdatedAt    time.Time       `gorm:"column:updated_at"`
}

func (paymentRecord) TableName() string { return "order_payment" }

type changeEvent struct {
	Collection domain.Collection `json:"collection"`
	OwnerID    string            `json:"owner_id"`
}

// UpsertItem inserts or replaces an item. created_at is kept from the first insert.
func (g *Gateway) UpsertItem(ctx context.Context, record domain.ItemRecord) error {
	if err := g.ensureDB(); err != nil {
		return err
	}
	if err := record.Validate(); err != nil {
		return err
	}
	rec := itemRecord{
		ID:           record.ID,
		OwnerID:      record.OwnerID,
		CustomerKey:  record.CustomerKey,
		CustomerName: record.CustomerName,
		ProductName:  record.ProductName,
		Quantity:     record.Quantity,
	}
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"customer_name", "product_name", "quantity", "updated_at"}),
		}).Create(&rec).Error; err != nil {
			return err
		}
		return notify(tx, domain.CollectionItems, record.OwnerID)
	})
	if err != nil {
		return err
	}
	g.hub.Publish(realtime.Topic{Collection: domain.CollectionItems, OwnerID: record.OwnerID})
	return nil
}

// UpsertPayment inserts or replaces the paid total of a customer.
func (g *Gateway) UpsertPayment(ctx context.Context, record domain.PaymentRecord) error {
	if err := g.ensureDB(); err != nil {
		return err
	}
	if err := record.Validate(); err != nil {
		return err
	}
	rec := paymentRecord{
		ID:           record.ID,
		OwnerID:      record.OwnerID,
		CustomerKey:  record.CustomerKey,
		CustomerName: record.CustomerName,
		Paid:         record.Paid,
	}
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"customer_name", "paid", "updated_at"}),
		}).Create(&rec).Error; err != nil {
			return err
		}
		return notify(tx, domain.CollectionPayments, record.OwnerID)
	})
	if err != nil {
		return err
	}
	g.hub.Publish(realtime.Topic{Collection: domain.CollectionPayments, OwnerID: record.OwnerID})
	return nil
}

// DeleteItem removes an item owned by ownerID.
func (g *Gateway) DeleteItem(ctx context.Context, ownerID, id string) error {
	return g.delete(ctx, &itemRecord{}, domain.CollectionItems, ownerID, id)
}

// DeletePayment removes a payment record owned by ownerID.
func (g *Gateway) DeletePayment(ctx context.Context, ownerID, id string) error {
	return g.delete(ctx, &paymentRecord{}, domain.CollectionPayments, ownerID, id)
}

// ListItems returns the matching items ordered by id.
func (g *Gateway) ListItems(ctx context.Context, filter ports.Filter) ([]domain.ItemRecord, error) {
	if err := g.ensureDB(); err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	var records []itemRecord
	if err := scope(g.db.WithContext(ctx), filter).Order("id").Find(&records).Error; err != nil {
		return nil, err
	}
	list := make([]domain.ItemRecord, 0, len(records))
	for i := range records {
		list = append(list, records[i].toDomain())
	}
	return list, nil
}

// ListPayments returns the matching payment records ordered by id.
func (g *Gateway) ListPayments(ctx context.Context, filter ports.Filter) ([]domain.PaymentRecord, error) {
	if err := g.ensureDB(); err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	var records []paymentRecord
	if err := scope(g.db.WithContext(ctx), filter).Order("id").Find(&records).Error; err != nil {
		return nil, err
	}
	list := make([]domain.PaymentRecord, 0, len(records))
	for i := range records {
		list = append(list, records[i].toDomain())
	}
	return list, nil
}

func (g *Gateway) SubscribeItems(ctx context.Context, filter ports.Filter, onSnapshot ports.ItemsSnapshot, onError ports.StreamError) (ports.Unsubscribe, error) {
	if err := g.ensureDB(); err != nil {
		return nil, err
	}
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
	if err := g.ensureDB(); err != nil {
		return nil, err
	}
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

func (g *Gateway) delete(ctx context.Context, model any, collection domain.Collection, ownerID, id string) error {
	if err := g.ensureDB(); err != nil {
		return err
	}
	err := g.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND owner_id = ?", id, ownerID).Delete(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ports.ErrNotFound
		}
		return notify(tx, collection, ownerID)
	})
	if err != nil {
		return err
	}
	g.hub.Publish(realtime.Topic{Collection: collection, OwnerID: ownerID})
	return nil
}

func (g *Gateway) ensureDB() error {
	if g == nil || g.db == nil {
		return errors.New("postgres order gateway not configured")
	}
	return nil
}

func scope(db *gorm.DB, filter ports.Filter) *gorm.DB {
	db = db.Where("owner_id = ?", filter.OwnerID)
	if filter.CustomerKey != "" {
		db = db.Where("customer_key = ?", filter.CustomerKey)
	}
	if filter.ID != "" {
		db = db.Where("id = ?", filter.ID)
	}
	return db
}

func notify(tx *gorm.DB, collection domain.Collection, ownerID string) error {
	payload, err := json.Marshal(changeEvent{Collection: collection, OwnerID: ownerID})
	if err != nil {
		return err
	}
	return tx.Exec("SELECT pg_notify(?, ?)", ChangeChannel, string(payload)).Error
}

func (r itemRecord) toDomain() domain.ItemRecord {
	created := r.CreatedAt.UTC()
	return domain.ItemRecord{
		ID:           r.ID,
		OwnerID:      r.OwnerID,
		CustomerKey:  r.CustomerKey,
		CustomerName: r.CustomerName,
		ProductName:  r.ProductName,
		Quantity:     r.Quantity,
		CreatedAt:    &created,
	}
}

func (r paymentRecord) toDomain() domain.PaymentRecord {
	created := r.CreatedAt.UTC()
	return domain.PaymentRecord{
		ID:           r.ID,
		OwnerID:      r.OwnerID,
		CustomerKey:  r.CustomerKey,
		CustomerName: r.CustomerName,
		Paid:         r.Paid,
		CreatedAt:    &created,
	}
}
