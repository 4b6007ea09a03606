package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmreid/daybook/internal/models"
	"github.com/jmreid/daybook/internal/output"
)

var deleteCmd = &cobra.Command{
	Use:   "delete <collection> <id>",
	Short: "Soft-delete a record",
	Args:  cobra.ExactArgs(2),
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

		if err := rt.app.Delete(cmd.Context(), col, args[1]); err != nil {
			return err
		}
		output.Success("Deleted %s %s", col, args[1])
		syncAfterMutation(rt, col)
		return nil
	},
}

var restoreCmd = &cobra.Command{
	Use:   "restore <collection> <id>",
	Short: "Restore a soft-deleted record",
	Args:  cobra.ExactArgs(2),
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

		if err := rt.app.Restore(cmd.Context(), col, args[1]); err != nil {
			return err
		}
		output.Success("Restored %s %s", col, args[1])
		syncAfterMutation(rt, col)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(restoreCmd)
}
