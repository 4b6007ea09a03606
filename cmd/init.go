package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/jmreid/daybook/internal/config"
	"github.com/jmreid/daybook/internal/output"
	"github.com/jmreid/daybook/internal/store"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create the local store in the current directory",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := store.Initialize(baseDir)
		if err != nil {
			return fmt.Errorf("initialize store: %w", err)
		}
		defer st.Close()

		cfg, err := config.Load(baseDir)
		if err != nil {
			return err
		}
		if cfg.Sync.DeviceID == "" {
			cfg.Sync.DeviceID = uuid.NewString()
		}
		if err := cfg.Save(); err != nil {
			return err
		}

		v, err := st.SchemaVersion()
		if err != nil {
			return err
		}
		output.Success("Initialized daybook store (schema v%d)", v)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
