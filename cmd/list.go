package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmreid/daybook/internal/models"
	"github.com/jmreid/daybook/internal/output"
	"github.com/jmreid/daybook/internal/store"
)

var listAll bool

var listCmd = &cobra.Command{
	Use:   "list <workouts|metrics|notes>",
	Short: "List your records in a collection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		col := models.Collection(args[0])
		if !models.IsValidCollection(col) {
			return fmt.Errorf("unknown collection %q", args[0])
		}

		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		recs, err := rt.app.List(col, store.ListOptions{IncludeDeleted: listAll})
		if err != nil {
			return err
		}
		if len(recs) == 0 {
			output.Info("No %s found", col)
			return nil
		}
		for _, rec := range recs {
			output.Info("%s", output.FormatRecord(rec))
		}
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listAll, "all", false, "include deleted records")
	rootCmd.AddCommand(listCmd)
}
