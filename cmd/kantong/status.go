package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kantongapp/kantong/internal/cli"
)

func statusCmd() *cobra.Command {
	var showDead bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show sync health",
		Long:  `Show connectivity, the number of queued changes, and any dead-lettered entries.`,
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

			fmt.Println(cli.TitleStyle.Render("Sync status"))

			if status.Online {
				fmt.Println("Connectivity:", cli.OnlineStyle.Render("online"))
			} else {
				fmt.Println("Connectivity:", cli.OfflineStyle.Render("offline"))
			}

			if status.Pending > 0 {
				fmt.Println("Pending:", cli.BadgeStyle.Render(fmt.Sprintf("%d", status.Pending)))
			} else {
				fmt.Println("Pending:", cli.SubtleStyle.Render("0"))
			}

			if status.DeadLetters > 0 {
				fmt.Println("Dead letters:", cli.ErrorStyle.Render(fmt.Sprintf("%d", status.DeadLetters)))
			}

			if showDead {
				letters, err := app.store.GetDeadLetters(ctx)
				if err != nil {
					return err
				}
				if len(letters) == 0 {
					fmt.Println(cli.SubtleStyle.Render("No dead letters."))
					return nil
				}
				fmt.Println()
				fmt.Println(cli.TitleStyle.Render("Dead letters"))
				for _, letter := range letters {
					fmt.Printf("%s %s %s (%d attempts, failed %s)\n  %s\n",
						letter.Entry.Kind, letter.Entry.Op, letter.Entry.EntityID(),
						letter.Entry.Attempts,
						letter.FailedAt.Format("2006-01-02 15:04:05"),
						cli.SubtleStyle.Render(letter.LastErr))
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&showDead, "dead", false, "list dead-lettered entries")

	return cmd
}
