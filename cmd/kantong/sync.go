package main

import (
	"errors"
	"fmt"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kantongapp/kantong/internal/cli"
	"github.com/kantongapp/kantong/internal/common"
)

func syncCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Replay queued changes against the remote store",
		Long: `Drain the sync queue now. Fails fast when offline.

With --watch, keep running: drain on restored connectivity and on a periodic
safety-net timer, until interrupted.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			var bar *progressbar.ProgressBar
			progress := func(done, total int) {
				if bar == nil {
					bar = progressbar.Default(int64(total), "syncing")
				}
				_ = bar.Set(done)
			}

			app, err := buildApp(ctx, progress)
			if err != nil {
				return err
			}
			defer app.close()

			if watch {
				fmt.Println(cli.SubtleStyle.Render("Watching for connectivity changes. Ctrl-C to stop."))
				// The watch session is in the foreground from the start;
				// reconcile connectivity and drain before the first tick.
				app.engine.HandleVisibility(ctx, true)
				if err := app.engine.Run(ctx); err != nil && !errors.Is(err, ctx.Err()) {
					return err
				}
				return nil
			}

			stats, err := app.engine.SyncNow(ctx)
			if err != nil {
				if errors.Is(err, common.ErrOffline) {
					return common.NewUserError("device is offline", err)
				}
				return err
			}

			if stats.Total == 0 {
				fmt.Println(cli.SuccessStyle.Render("Nothing to sync"))
				return nil
			}

			fmt.Println(cli.SuccessStyle.Render(
				fmt.Sprintf("Synced %d of %d entries (%d retrying, %d dropped)",
					stats.Synced, stats.Total, stats.Retried, stats.Dropped)))

			if stats.Dropped > 0 {
				fmt.Println(cli.WarningStyle.Render(
					"Some entries exhausted their retry budget; see 'kantong status --dead'"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and sync on connectivity events")

	return cmd
}
