package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jmreid/daybook/internal/config"
	"github.com/jmreid/daybook/internal/output"
)

var (
	loginUser   string
	loginAPIKey string
	loginServer string
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Set the active user and sync credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		if loginUser == "" {
			return fmt.Errorf("--user is required")
		}
		cfg, err := config.Load(baseDir)
		if err != nil {
			return err
		}
		cfg.UserID = loginUser
		if loginAPIKey != "" {
			cfg.Sync.APIKey = loginAPIKey
		}
		if loginServer != "" {
			cfg.Sync.ServerURL = loginServer
		}
		if err := cfg.Save(); err != nil {
			return err
		}
		output.Success("Logged in as %s", loginUser)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Clear the active user",
	RunE: func(cmd *cobra.Command, args []string) error {
		// Tear down the live runtime too, so a pending debounce can
		// never push on behalf of the session being ended.
		rt, err := openRuntime()
		if err == nil {
			rt.orch.Disable()
			rt.scope.Clear()
			rt.Close()
		}

		cfg, err := config.Load(baseDir)
		if err != nil {
			return err
		}
		cfg.UserID = ""
		cfg.Sync.APIKey = ""
		if err := cfg.Save(); err != nil {
			return err
		}
		output.Success("Logged out")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginUser, "user", "", "user id")
	loginCmd.Flags().StringVar(&loginAPIKey, "api-key", "", "sync server API key")
	loginCmd.Flags().StringVar(&loginServer, "server", "", "sync server URL")
	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}
