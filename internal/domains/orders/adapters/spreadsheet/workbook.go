// Package spreadsheet renders an orders view as an Excel workbook.
package spreadsheet

import (
	"fmt"
	"io"

	"github.com/tealeg/xlsx"

	"github.com/Apurer/vendor-orders/internal/domains/orders/domain"
	"github.com/Apurer/vendor-orders/internal/domains/orders/ports"
)

// ContentType is the media type of the generated workbook.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const (
	ordersSheet  = "Pedidos"
	summarySheet = "Resumen"
	dateLayout   = "2006-01-02 15:04"
)

var orderHeaders = []string{"Cliente", "Pedido", "Total", "Pagado", "Saldo", "Estado", "Fecha"}

// Build lays out one row per order in view order, followed by a summary sheet.
func Build(view *ports.OrdersView, catalog *domain.Catalog) (*xlsx.File, error) {
	file := xlsx.NewFile()
	sheet, err := file.AddSheet(ordersSheet)
	if err != nil {
		return nil, fmt.Errorf("add %s sheet: %w", ordersSheet, err)
	}
	header := sheet.AddRow()
	for _, h := range orderHeaders {
		header.AddCell().SetString(h)
	}
	if view == nil {
		view = &ports.OrdersView{}
	}
	for _, order := range view.Orders {
		row := sheet.AddRow()
		row.AddCell().SetString(order.Name)
		row.AddCell().SetString(order.ItemsSummary())
		setMoney(row.AddCell(), order.Total(catalog).InexactFloat64())
		setMoney(row.AddCell(), order.Paid.InexactFloat64())
		setMoney(row.AddCell(), order.Balance(catalog).InexactFloat64())
		if order.Settled(catalog) {
			row.AddCell().SetString("Pagado")
		} else {
			row.AddCell().SetString("Pendiente")
		}
		if order.CreatedAt != nil {
			row.AddCell().SetString(order.CreatedAt.Local().Format(dateLayout))
		} else {
			row.AddCell().SetString("")
		}
	}

	summary, err := file.AddSheet(summarySheet)
	if err != nil {
		return nil, fmt.Errorf("add %s sheet: %w", summarySheet, err)
	}
	addSummaryRow(summary, "Pedidos", func(c *xlsx.Cell) { c.SetInt(view.Summary.Orders) })
	addSummaryRow(summary, "Total pagado", func(c *xlsx.Cell) { setMoney(c, view.Summary.TotalPaid.InexactFloat64()) })
	addSummaryRow(summary, "Total por cobrar", func(c *xlsx.Cell) { setMoney(c, view.Summary.TotalDebt.InexactFloat64()) })
	return file, nil
}

// Write builds the workbook and streams it to w.
func Write(w io.Writer, view *ports.OrdersView, catalog *domain.Catalog) error {
	file, err := Build(view, catalog)
	if err != nil {
		return err
	}
	return file.Write(w)
}

func addSummaryRow(sheet *xlsx.Sheet, label string, value func(*xlsx.Cell)) {
	row := sheet.AddRow()
	row.AddCell().SetString(label)
	value(row.AddCell())
}

func setMoney(cell *xlsx.Cell, amount float64) {
	cell.SetFloatWithFormat(amount, "0.00")
}
