package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Apurer/vendor-orders/internal/app/live"
	ordersapp "github.com/Apurer/vendor-orders/internal/domains/orders/application"
)

func watchCmd(flags *globalFlags) *cobra.Command {
	var (
		q        queryFlags
		duration time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the orders live until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			query, err := q.query()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			e, err := flags.open(ctx, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer e.Close()

			out := cmd.OutOrStdout()
			session := ordersapp.NewSession(e.stores.Gateway,
				ordersapp.WithSessionCatalog(e.catalog),
				ordersapp.WithSessionLogger(e.logger),
			)
			session.SetSearch(query.Search)
			session.SetSort(query.Sort)
			stopListening := session.OnChange(func(state ordersapp.SessionState) {
				if !state.Active {
					return
				}
				if state.Err != nil {
					fmt.Fprintln(out, ordersapp.UserMessage(state.Err))
					return
				}
				if !state.Loaded {
					return
				}
				fmt.Fprintf(out, "--- %s\n", time.Now().Format("15:04:05"))
				_ = printOrders(out, state.Orders, state.EmptyMessage, e.catalog)
				printSummary(out, state.Summary)
			})
			defer stopListening()

			if e.identity != nil {
				_, unbind := live.Bind(ctx, e.identity, session, e.logger)
				defer unbind()
				if _, err := flags.resolveOwner(ctx, e); err != nil {
					return err
				}
			} else {
				if e.owner == "" {
					return errNoOwner
				}
				if err := session.Start(ctx, e.owner); err != nil {
					return describe(err)
				}
				defer session.Stop()
			}
			// --duration counts from the moment the session is live.
			wait := ctx
			if duration > 0 {
				var cancel context.CancelFunc
				wait, cancel = context.WithTimeout(ctx, duration)
				defer cancel()
			}
			<-wait.Done()
			return nil
		},
	}
	q.bind(cmd)
	cmd.Flags().DurationVar(&duration, "duration", 0, "stop after this long, 0 follows until interrupted")
	return cmd
}
