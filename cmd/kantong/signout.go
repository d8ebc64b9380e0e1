package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kantongapp/kantong/internal/cli"
)

func signoutCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "signout",
		Short: "Clear all local data",
		Long: `Empty the local transaction and category caches and the sync queue.

Queued changes that have not reached the remote store are lost.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			app, err := buildApp(ctx, nil)
			if err != nil {
				return err
			}
			defer app.close()

			status, err := app.engine.Status(ctx)
			if err != nil {
				return err
			}

			if status.Pending > 0 && !force {
				fmt.Println(cli.WarningStyle.Render(
					fmt.Sprintf("%d queued changes have not synced and will be lost.", status.Pending)))
				fmt.Print("Continue? [y/N] ")

				reader := bufio.NewReader(os.Stdin)
				answer, _ := reader.ReadString('\n')
				if strings.ToLower(strings.TrimSpace(answer)) != "y" {
					fmt.Println("Aborted.")
					return nil
				}
			}

			if err := app.store.ClearAll(ctx); err != nil {
				return err
			}

			fmt.Println(cli.SuccessStyle.Render("Local data cleared"))
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "skip confirmation prompt")

	return cmd
}
