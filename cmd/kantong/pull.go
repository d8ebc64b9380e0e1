package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kantongapp/kantong/internal/cli"
)

func pullCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "pull",
		Short: "Refresh the local cache from the remote store",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			app, err := buildApp(ctx, nil)
			if err != nil {
				return err
			}
			defer app.close()

			if err := app.engine.Refresh(ctx); err != nil {
				return err
			}

			txns, err := app.store.GetTransactionsByUser(ctx, app.userID)
			if err != nil {
				return err
			}

			fmt.Println(cli.SuccessStyle.Render(
				fmt.Sprintf("Cache refreshed: %d transactions", len(txns))))
			return nil
		},
	}
}
