package domain

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Collection names a record stream in the document store.
type Collection string

const (
	CollectionItems    Collection = "order_item"
	CollectionPayments Collection = "order_payment"
)

var (
	ErrMissingOwner    = errors.New("record owner is required")
	ErrMissingCustomer = errors.New("record customer key is required")
	ErrNegativeQty     = errors.New("item quantity must not be negative")
	ErrNegativePaid    = errors.New("paid total must not be negative")
	ErrInvalidAmount   = errors.New("payment amount must be a positive number")
	ErrUnknownProduct  = errors.New("product is not in the catalog")
)

// ItemRecord is the persisted line item for one (owner, customer, product).
type ItemRecord struct {
	ID           string
	OwnerID      string
	CustomerKey  string
	CustomerName string
	ProductName  string
	Quantity     int
	CreatedAt    *time.Time
}

// NewItemRecord derives the record identity from its components.
func NewItemRecord(ownerID, customerName, productName string, quantity int) (ItemRecord, error) {
	key := CustomerKey(customerName)
	rec := ItemRecord{
		ID:           ItemRecordID(ownerID, key, productName),
		OwnerID:      ownerID,
		CustomerKey:  key,
		CustomerName: strings.TrimSpace(customerName),
		ProductName:  productName,
		Quantity:     quantity,
	}
	return rec, rec.Validate()
}

// Validate checks the invariants enforced on the write path.
func (r ItemRecord) Validate() error {
	if strings.TrimSpace(r.OwnerID) == "" {
		return ErrMissingOwner
	}
	if r.CustomerKey == "" {
		return ErrMissingCustomer
	}
	if strings.TrimSpace(r.ProductName) == "" {
		return ErrMissingSelection
	}
	if r.Quantity < 0 {
		return ErrNegativeQty
	}
	return nil
}

// PaymentRecord is the cumulative paid total for one (owner, customer).
type PaymentRecord struct {
	ID           string
	OwnerID      string
	CustomerKey  string
	CustomerName string
	Paid         decimal.Decimal
	CreatedAt    *time.Time
}

// NewPaymentRecord derives the record identity from owner and customer key.
func NewPaymentRecord(ownerID, customerKey, customerName string, paid decimal.Decimal) (PaymentRecord, error) {
	rec := PaymentRecord{
		ID:           PaymentRecordID(ownerID, customerKey),
		OwnerID:      ownerID,
		CustomerKey:  customerKey,
		CustomerName: customerName,
		Paid:         paid,
	}
	return rec, rec.Validate()
}

// Validate checks the invariants enforced on the write path.
func (r PaymentRecord) Validate() error {
	if strings.TrimSpace(r.OwnerID) == "" {
		return ErrMissingOwner
	}
	if r.CustomerKey == "" {
		return ErrMissingCustomer
	}
	if r.Paid.IsNegative() {
		return ErrNegativePaid
	}
	return nil
}
