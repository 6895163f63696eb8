package migrations

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Run applies the schema for the bounded contexts. Intended to replace adapter-level automigrate.
func Run(db *gorm.DB) error {
	if db == nil {
		return nil
	}
	return db.AutoMigrate(
		&itemRecord{},
		&paymentRecord{},
		&sessionRecord{},
	)
}

// Item schema mirrors the orders Postgres gateway.
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

// Payment schema mirrors the orders Postgres gateway.
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

// Session schema mirrors the identity session store.
type sessionRecord struct {
	Token     string     `gorm:"primaryKey;column:token;size:512"`
	UserID    string     `gorm:"column:user_id;index"`
	Email     string     `gorm:"column:email"`
	ExpiresAt *time.Time `gorm:"column:expires_at;index"`
	CreatedAt time.Time  `gorm:"column:created_at;index"`
	UpdatedAt time.Time  `gorm:"column:updated_at;index"`
}

func (sessionRecord) TableName() string { return "identity_sessions" }
