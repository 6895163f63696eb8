package http

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Apurer/vendor-orders/internal/domains/orders/application"
	"github.com/Apurer/vendor-orders/internal/domains/orders/domain"
	"github.com/Apurer/vendor-orders/internal/domains/orders/ports"
)

// AddOrderRequest is the body of POST /orders.
type AddOrderRequest struct {
	Prompt  string `json:"prompt"`
	Product string `json:"product"`
}

// PaymentRequest is the body of POST /orders/:customerKey/payments.
type PaymentRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type Product struct {
	Name  string `json:"name"`
	Price string `json:"price"`
}

type ItemRecord struct {
	ID           string     `json:"id"`
	CustomerKey  string     `json:"customerKey"`
	CustomerName string     `json:"customerName"`
	Product      string     `json:"product"`
	Quantity     int        `json:"quantity"`
	CreatedAt    *time.Time `json:"createdAt,omitempty"`
}

type PaymentRecord struct {
	ID           string `json:"id"`
	CustomerKey  string `json:"customerKey"`
	CustomerName string `json:"customerName"`
	Paid         string `json:"paid"`
}

type PaymentResult struct {
	Payment PaymentRecord `json:"payment"`
	Settled bool          `json:"settled"`
}

type DeleteResult struct {
	ItemsDeleted   int  `json:"itemsDeleted"`
	ItemsFailed    int  `json:"itemsFailed"`
	PaymentDeleted bool `json:"paymentDeleted"`
}

type OrderItem struct {
	Product  string `json:"product"`
	Quantity int    `json:"quantity"`
}

// Order is an aggregated customer order card.
type Order struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Items        []OrderItem `json:"items"`
	ItemsSummary string      `json:"itemsSummary"`
	Total        string      `json:"total"`
	Paid         string      `json:"paid"`
	Balance      string      `json:"balance"`
	BalanceLabel string      `json:"balanceLabel"`
	Settled      bool        `json:"settled"`
	CreatedAt    *time.Time  `json:"createdAt,omitempty"`
}

type Summary struct {
	TotalPaid string `json:"totalPaid"`
	TotalDebt string `json:"totalDebt"`
	Orders    int    `json:"orders"`
}

type Sort struct {
	Criteria  string `json:"criteria"`
	Direction string `json:"direction"`
}

// OrdersView is the response of GET /orders.
type OrdersView struct {
	Orders       []Order `json:"orders"`
	Summary      Summary `json:"summary"`
	EmptyMessage string  `json:"emptyMessage,omitempty"`
	Search       string  `json:"search,omitempty"`
	Sort         Sort    `json:"sort"`
}

// LiveFrame is pushed on the live websocket after every session change.
type LiveFrame struct {
	OrdersView
	Loaded bool   `json:"loaded"`
	Error  string `json:"error,omitempty"`
}

// LiveCommand is read from the live websocket. Search replaces the filter
// term when present; ToggleSort applies a click on a sort control.
type LiveCommand struct {
	Search     *string `json:"search,omitempty"`
	ToggleSort string  `json:"toggleSort,omitempty"`
}

func fromCatalog(c *domain.Catalog) []Product {
	products := c.Products()
	out := make([]Product, 0, len(products))
	for _, p := range products {
		out = append(out, Product{Name: p.Name, Price: p.UnitPrice.StringFixed(2)})
	}
	return out
}

func fromItemRecord(r domain.ItemRecord) ItemRecord {
	return ItemRecord{
		ID:           r.ID,
		CustomerKey:  r.CustomerKey,
		CustomerName: r.CustomerName,
		Product:      r.ProductName,
		Quantity:     r.Quantity,
		CreatedAt:    r.CreatedAt,
	}
}

func fromPaymentResult(r *ports.PaymentResult) PaymentResult {
	return PaymentResult{
		Payment: PaymentRecord{
			ID:           r.Record.ID,
			CustomerKey:  r.Record.CustomerKey,
			CustomerName: r.Record.CustomerName,
			Paid:         r.Record.Paid.StringFixed(2),
		},
		Settled: r.Settled,
	}
}

func fromDeleteResult(r *ports.DeleteResult) DeleteResult {
	if r == nil {
		return DeleteResult{}
	}
	return DeleteResult{ItemsDeleted: r.ItemsDeleted, ItemsFailed: r.ItemsFailed, PaymentDeleted: r.PaymentDeleted}
}

func fromOrder(o domain.Order, c *domain.Catalog) Order {
	items := make([]OrderItem, 0, len(o.Items))
	for _, name := range o.Products() {
		items = append(items, OrderItem{Product: name, Quantity: o.Items[name]})
	}
	balance := o.Balance(c)
	return Order{
		ID:           o.ID,
		Name:         o.Name,
		Items:        items,
		ItemsSummary: o.ItemsSummary(),
		Total:        o.Total(c).StringFixed(2),
		Paid:         o.Paid.StringFixed(2),
		Balance:      balance.StringFixed(2),
		BalanceLabel: domain.FormatMoney(balance),
		Settled:      o.Settled(c),
		CreatedAt:    o.CreatedAt,
	}
}

func fromOrders(orders []domain.Order, c *domain.Catalog) []Order {
	out := make([]Order, 0, len(orders))
	for _, o := range orders {
		out = append(out, fromOrder(o, c))
	}
	return out
}

func fromSummary(s domain.Summary) Summary {
	return Summary{TotalPaid: s.TotalPaid.StringFixed(2), TotalDebt: s.TotalDebt.StringFixed(2), Orders: s.Orders}
}

func fromView(view *ports.OrdersView, query domain.Query, c *domain.Catalog) OrdersView {
	return OrdersView{
		Orders:       fromOrders(view.Orders, c),
		Summary:      fromSummary(view.Summary),
		EmptyMessage: view.EmptyMessage,
		Search:       query.Search,
		Sort:         Sort{Criteria: string(query.Sort.Criteria), Direction: string(query.Sort.Direction)},
	}
}

func fromSessionState(state application.SessionState, c *domain.Catalog) LiveFrame {
	view := &ports.OrdersView{Orders: state.Orders, Summary: state.Summary, EmptyMessage: state.EmptyMessage}
	frame := LiveFrame{OrdersView: fromView(view, state.Query, c), Loaded: state.Loaded}
	if state.Err != nil {
		frame.Error = application.UserMessage(state.Err)
	}
	return frame
}
