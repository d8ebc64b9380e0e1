package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kantongapp/kantong/internal/cli"
	"github.com/kantongapp/kantong/internal/model"
	"github.com/kantongapp/kantong/internal/offline"
)

func addCmd() *cobra.Command {
	var (
		amount   int64
		kind     string
		date     string
		category string
		note     string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Record a new transaction",
		Long: `Record an income or expense transaction.

While online the transaction is written straight to the remote store. While
offline it is saved locally with pending status and queued for the next sync.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			app, err := buildApp(ctx, nil)
			if err != nil {
				return err
			}
			defer app.close()

			input := offline.TransactionInput{
				Amount: amount,
				Kind:   model.TransactionKind(kind),
			}
			if date != "" {
				d, err := time.Parse("2006-01-02", date)
				if err != nil {
					return fmt.Errorf("invalid date %q, expected YYYY-MM-DD: %w", date, err)
				}
				input.Date = d
			}
			if category != "" {
				input.CategoryID = &category
			}
			if note != "" {
				input.Note = &note
			}

			txn, err := app.writer.CreateTransaction(ctx, app.userID, input)
			if err != nil {
				return err
			}

			if txn.Status == model.StatusPending {
				fmt.Println(cli.WarningStyle.Render(
					fmt.Sprintf("Saved offline as %s, will sync when connectivity returns", txn.ID)))
			} else {
				fmt.Println(cli.SuccessStyle.Render(
					fmt.Sprintf("Saved %s", txn.ID)))
			}
			return nil
		},
	}

	cmd.Flags().Int64Var(&amount, "amount", 0, "amount in the smallest currency unit (required)")
	cmd.Flags().StringVar(&kind, "kind", "expense", "transaction kind (income, expense)")
	cmd.Flags().StringVar(&date, "date", "", "transaction date YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&category, "category", "", "category identifier")
	cmd.Flags().StringVar(&note, "note", "", "free-text note")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}
