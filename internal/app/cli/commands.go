package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/Apurer/vendor-orders/internal/domains/orders/adapters/spreadsheet"
	ordersworkflows "github.com/Apurer/vendor-orders/internal/domains/orders/adapters/workflows"
	"github.com/Apurer/vendor-orders/internal/domains/orders/domain"
	"github.com/Apurer/vendor-orders/internal/domains/orders/ports"
	"github.com/Apurer/vendor-orders/internal/platform/config"
)

func catalogCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Print the product catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			catalog, err := config.Catalog(flags.catalog)
			if err != nil {
				return err
			}
			tw := newTable(cmd.OutOrStdout())
			fmt.Fprintln(tw, "PRODUCTO\tPRECIO")
			for _, p := range catalog.Products() {
				fmt.Fprintf(tw, "%s\t%s\n", p.Name, domain.FormatMoney(p.UnitPrice))
			}
			return tw.Flush()
		},
	}
}

func addCmd(flags *globalFlags) *cobra.Command {
	var product string
	cmd := &cobra.Command{
		Use:   "add <name> <quantity>",
		Short: "Add units of a product to a customer's order",
		Example: `  ordersctl add Ana 2 --product oreo
  ordersctl add "María José" 1 --product "manjar con pecana"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return flags.run(cmd, func(ctx context.Context, e *env) error {
				record, err := e.orders.AddOrUpdateOrder(ctx, e.owner, ports.AddOrderInput{
					Prompt:  strings.Join(args, " "),
					Product: product,
				})
				if err != nil {
					return describe(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %dx %s\n", record.CustomerName, record.Quantity, record.ProductName)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&product, "product", "p", "", "catalog product name")
	return cmd
}

func payCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "pay <customer> <amount>",
		Short: "Record a payment towards a customer's order",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := decimal.NewFromString(strings.TrimSpace(args[1]))
			if err != nil {
				return describe(errors.Join(domain.ErrInvalidAmount, err))
			}
			return flags.run(cmd, func(ctx context.Context, e *env) error {
				result, err := e.orders.RecordPayment(ctx, e.owner, ports.RecordPaymentInput{
					CustomerKey: domain.CustomerKey(args[0]),
					Amount:      amount,
				})
				if err != nil {
					return describe(err)
				}
				status := "pendiente"
				if result.Settled {
					status = "pagado"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: pagó %s (%s)\n",
					result.Record.CustomerName, domain.FormatMoney(result.Record.Paid), status)
				return nil
			})
		},
	}
}

func deleteCmd(flags *globalFlags) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <customer>",
		Short: "Delete a customer's order and payment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to delete the order of %q without --yes", args[0])
			}
			return flags.run(cmd, func(ctx context.Context, e *env) error {
				workflows := ordersworkflows.NewInlineOrderWorkflows(e.orders)
				result, err := workflows.DeleteOrder(ctx, ports.DeleteOrderInput{OwnerID: e.owner, CustomerKey: args[0]})
				if err != nil {
					return describe(err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deleted %d items, payment deleted: %t\n", result.ItemsDeleted, result.PaymentDeleted)
				if result.ItemsFailed > 0 {
					return fmt.Errorf("%d items could not be deleted", result.ItemsFailed)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "confirm the deletion")
	return cmd
}

type queryFlags struct {
	search    string
	sort      string
	direction string
}

func (q *queryFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&q.search, "search", "s", "", "filter by customer name")
	cmd.Flags().StringVar(&q.sort, "sort", "", "sort by name, date, or debt")
	cmd.Flags().StringVar(&q.direction, "direction", "", "asc or desc")
}

func (q *queryFlags) query() (domain.Query, error) {
	criteria, err := domain.ParseSortCriteria(q.sort)
	if err != nil {
		return domain.Query{}, err
	}
	direction, err := domain.ParseDirection(q.direction, criteria)
	if err != nil {
		return domain.Query{}, err
	}
	return domain.Query{Search: q.search, Sort: domain.SortSpec{Criteria: criteria, Direction: direction}}, nil
}

func listCmd(flags *globalFlags) *cobra.Command {
	var q queryFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders with their balance",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query, err := q.query()
			if err != nil {
				return err
			}
			return flags.run(cmd, func(ctx context.Context, e *env) error {
				view, err := e.orders.ListOrders(ctx, e.owner, query)
				if err != nil {
					return describe(err)
				}
				return printOrders(cmd.OutOrStdout(), view.Orders, view.EmptyMessage, e.catalog)
			})
		},
	}
	q.bind(cmd)
	return cmd
}

func summaryCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "summary",
		Short: "Print total collected and total owed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return flags.run(cmd, func(ctx context.Context, e *env) error {
				view, err := e.orders.ListOrders(ctx, e.owner, domain.Query{Sort: domain.DefaultSort})
				if err != nil {
					return describe(err)
				}
				printSummary(cmd.OutOrStdout(), view.Summary)
				return nil
			})
		},
	}
}

func exportCmd(flags *globalFlags) *cobra.Command {
	var (
		q   queryFlags
		out string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export orders to an xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query, err := q.query()
			if err != nil {
				return err
			}
			return flags.run(cmd, func(ctx context.Context, e *env) error {
				view, err := e.orders.ListOrders(ctx, e.owner, query)
				if err != nil {
					return describe(err)
				}
				if out == "-" {
					return spreadsheet.Write(cmd.OutOrStdout(), view, e.catalog)
				}
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				if err := spreadsheet.Write(f, view, e.catalog); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d orders to %s\n", len(view.Orders), out)
				return nil
			})
		},
	}
	q.bind(cmd)
	cmd.Flags().StringVarP(&out, "out", "o", "pedidos.xlsx", "output file, - for stdout")
	return cmd
}

func printOrders(w io.Writer, orders []domain.Order, empty string, catalog *domain.Catalog) error {
	if len(orders) == 0 {
		_, err := fmt.Fprintln(w, empty)
		return err
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "CLIENTE\tPEDIDO\tTOTAL\tPAGADO\tSALDO")
	for _, o := range orders {
		balance := domain.FormatMoney(o.Balance(catalog))
		if o.Settled(catalog) {
			balance = "pagado"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", o.Name, o.ItemsSummary(),
			domain.FormatMoney(o.Total(catalog)), domain.FormatMoney(o.Paid), balance)
	}
	return tw.Flush()
}

func printSummary(w io.Writer, s domain.Summary) {
	fmt.Fprintf(w, "Pedidos: %d\nTotal pagado: %s\nPor cobrar: %s\n",
		s.Orders, domain.FormatMoney(s.TotalPaid), domain.FormatMoney(s.TotalDebt))
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}
