package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jmreid/daybook/internal/models"
	"github.com/jmreid/daybook/internal/output"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store and sync status",
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		if rt.cfg.UserID == "" {
			output.Warning("Not logged in")
			return nil
		}
		output.Info("User: %s", rt.cfg.UserID)

		v, err := rt.store.SchemaVersion()
		if err != nil {
			return err
		}
		output.Info("Schema: v%d", v)

		for _, col := range models.AllCollections() {
			n, err := rt.store.CountRecords(col, rt.cfg.UserID)
			if err != nil {
				return err
			}
			output.Info("  %-10s %d records", col, n)
		}

		mds, err := rt.store.ListSyncMetadata(rt.cfg.UserID)
		if err != nil {
			return err
		}
		if len(mds) == 0 {
			output.Info("Sync: never run")
			return nil
		}
		output.Info("Sync:")
		for _, md := range mds {
			output.Info("  %s", output.FormatSyncStatus(md))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
