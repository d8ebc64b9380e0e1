package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kantongapp/kantong/internal/cli"
	"github.com/kantongapp/kantong/internal/model"
)

func listCmd() *cobra.Command {
	var pendingOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List cached transactions",
		Long: `List the locally cached transactions, newest first.

With --pending, show only transactions created offline that have not yet been
confirmed by the remote store.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			app, err := buildApp(ctx, nil)
			if err != nil {
				return err
			}
			defer app.close()

			var txns []model.Transaction
			if pendingOnly {
				txns, err = app.store.GetPendingTransactions(ctx, app.userID)
			} else {
				txns, err = app.store.GetTransactionsByUser(ctx, app.userID)
			}
			if err != nil {
				return fmt.Errorf("failed to get transactions: %w", err)
			}

			if len(txns) == 0 {
				if pendingOnly {
					fmt.Println(cli.SubtleStyle.Render("No pending transactions."))
				} else {
					fmt.Println(cli.SubtleStyle.Render("No transactions found. Use 'kantong add' to record one."))
				}
				return nil
			}

			sort.Slice(txns, func(i, j int) bool {
				if !txns[i].Date.Equal(txns[j].Date) {
					return txns[i].Date.After(txns[j].Date)
				}
				return txns[i].CreatedAt.After(txns[j].CreatedAt)
			})

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer func() { _ = w.Flush() }()

			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", "Date", "Kind", "Amount", "Status", "Note")
			for _, txn := range txns {
				note := ""
				if txn.Note != nil {
					note = *txn.Note
				}
				status := string(txn.Status)
				if txn.Status == model.StatusPending {
					status = cli.WarningStyle.Render(status)
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n",
					txn.Date.Format("2006-01-02"), txn.Kind, txn.Amount, status, note)
			}

			if !pendingOnly {
				var pending int
				for _, txn := range txns {
					if txn.Status == model.StatusPending {
						pending++
					}
				}
				if pending > 0 {
					fmt.Fprintln(os.Stdout, cli.SubtleStyle.Render(
						fmt.Sprintf("%d awaiting sync", pending)))
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&pendingOnly, "pending", false, "show only transactions awaiting sync")

	return cmd
}
