package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmreid/daybook/internal/models"
	"github.com/jmreid/daybook/internal/output"
	daysync "github.com/jmreid/daybook/internal/sync"
)

var (
	syncPushOnly bool
	syncPullOnly bool
)

var syncCmd = &cobra.Command{
	Use:   "sync [collection...]",
	Short: "Sync now, bypassing the debounce",
	RunE: func(cmd *cobra.Command, args []string) error {
		if syncPushOnly && syncPullOnly {
			return fmt.Errorf("--push and --pull are mutually exclusive")
		}

		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		if rt.cfg.Sync.ServerURL == "" {
			return fmt.Errorf("no sync server configured: run 'daybook login --server <url>'")
		}

		var cols []models.Collection
		for _, arg := range args {
			col := models.Collection(arg)
			if !models.IsValidCollection(col) {
				return fmt.Errorf("unknown collection %q", arg)
			}
			cols = append(cols, col)
		}

		direction := daysync.DirectionBidirectional
		if syncPushOnly {
			direction = daysync.DirectionPush
		}
		if syncPullOnly {
			direction = daysync.DirectionPull
		}

		if err := rt.orch.TriggerManualSync(cmd.Context(), daysync.Request{
			Collections: cols,
			Direction:   direction,
		}); err != nil {
			return err
		}

		mds, err := rt.store.ListSyncMetadata(rt.cfg.UserID)
		if err != nil {
			return err
		}
		for _, md := range mds {
			output.Info("%s", output.FormatSyncStatus(md))
		}
		return nil
	},
}

func init() {
	syncCmd.Flags().BoolVar(&syncPushOnly, "push", false, "push local changes only")
	syncCmd.Flags().BoolVar(&syncPullOnly, "pull", false, "pull remote changes only")
	rootCmd.AddCommand(syncCmd)
}
