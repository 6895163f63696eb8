package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Order is the per-customer aggregate derived from item and payment records.
// It is never persisted.
type Order struct {
	ID        string
	Name      string
	Items     map[string]int
	Paid      decimal.Decimal
	CreatedAt *time.Time
}

// Total prices the aggregated items against the catalog.
func (o Order) Total(c *Catalog) decimal.Decimal {
	return c.Total(o.Items)
}

// Balance is Total minus Paid. It is negative on overpayment.
func (o Order) Balance(c *Catalog) decimal.Decimal {
	return o.Total(c).Sub(o.Paid)
}

// Settled reports whether nothing is owed.
func (o Order) Settled(c *Catalog) bool {
	return !o.Balance(c).IsPositive()
}

// Products lists the product names of the order in lexical order.
func (o Order) Products() []string {
	names := make([]string, 0, len(o.Items))
	for name := range o.Items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ItemsSummary renders the compact "qty product, ..." line shown on order
// cards, followed by the amount already paid when there is one.
func (o Order) ItemsSummary() string {
	parts := make([]string, 0, len(o.Items)+1)
	for _, name := range o.Products() {
		parts = append(parts, fmt.Sprintf("%d %s", o.Items[name], name))
	}
	if o.Paid.IsPositive() {
		parts = append(parts, fmt.Sprintf("(ya pagó %s)", FormatMoney(o.Paid)))
	}
	return strings.Join(parts, ", ")
}

// FormatMoney renders an amount in soles with two decimals.
func FormatMoney(amount decimal.Decimal) string {
	return "S/ " + amount.StringFixed(2)
}

// Clone returns a deep copy.
func (o Order) Clone() Order {
	items := make(map[string]int, len(o.Items))
	for k, v := range o.Items {
		items[k] = v
	}
	o.Items = items
	if o.CreatedAt != nil {
		ts := *o.CreatedAt
		o.CreatedAt = &ts
	}
	return o
}

// Aggregate folds item and payment snapshots into orders keyed by customer
// key. Items are processed first, then payments. Quantities are summed per
// product, paid is overwritten, CreatedAt keeps the earliest timestamp and the
// last non-empty customer name wins. Records without a customer key are
// skipped. The result depends only on its inputs.
func Aggregate(items []ItemRecord, payments []PaymentRecord) map[string]Order {
	orders := make(map[string]Order)
	entry := func(key, name string) Order {
		if o, ok := orders[key]; ok {
			return o
		}
		return Order{ID: key, Name: name, Items: map[string]int{}, Paid: decimal.Zero}
	}
	for _, it := range items {
		if it.CustomerKey == "" {
			continue
		}
		o := entry(it.CustomerKey, it.CustomerName)
		o.Items[it.ProductName] += it.Quantity
		if it.CustomerName != "" {
			o.Name = it.CustomerName
		}
		o.CreatedAt = earliest(o.CreatedAt, it.CreatedAt)
		orders[it.CustomerKey] = o
	}
	for _, p := range payments {
		if p.CustomerKey == "" {
			continue
		}
		o := entry(p.CustomerKey, p.CustomerName)
		o.Paid = p.Paid
		if p.CustomerName != "" {
			o.Name = p.CustomerName
		}
		o.CreatedAt = earliest(o.CreatedAt, p.CreatedAt)
		orders[p.CustomerKey] = o
	}
	return orders
}

func earliest(current, candidate *time.Time) *time.Time {
	if candidate == nil {
		return current
	}
	if current == nil || candidate.Before(*current) {
		ts := *candidate
		return &ts
	}
	return current
}

// OrderList flattens an aggregate mapping ordered by customer key, giving
// callers a deterministic input order for the query engine.
func OrderList(orders map[string]Order) []Order {
	keys := make([]string, 0, len(orders))
	for key := range orders {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	list := make([]Order, 0, len(keys))
	for _, key := range keys {
		list = append(list, orders[key].Clone())
	}
	return list
}
