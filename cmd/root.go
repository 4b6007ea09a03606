package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var (
	version string
	baseDir string
)

// SetVersion sets the version string
func SetVersion(v string) {
	version = v
}

var rootCmd = &cobra.Command{
	Use:   "daybook",
	Short: "Local-first personal data tracking",
	Long: `daybook - a local-first tracker for workouts, metrics, and notes.

Every write lands in the local store first and succeeds offline; sync with a
remote backend is a background concern.`,
}

// Execute runs the root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initBaseDir)
	rootCmd.SetGlobalNormalizationFunc(normalizeFlagName)
	rootCmd.PersistentFlags().StringVar(&baseDir, "dir", "", "base directory (default: current directory)")
	rootCmd.Version = version
}

// normalizeFlagName lets underscore spellings like --api_key resolve to
// their dashed flag names, matching the config file keys.
func normalizeFlagName(f *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

// initBaseDir resolves the working directory for the store and config.
func initBaseDir() {
	if baseDir != "" {
		return
	}
	if env := os.Getenv("DAYBOOK_DIR"); env != "" {
		baseDir = env
		return
	}
	wd, err := os.Getwd()
	if err != nil {
		baseDir = "."
		return
	}
	baseDir = wd
}
