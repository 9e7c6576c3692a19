package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/daedaleanai/depbuild/log"
)

var rootCmd = &cobra.Command{
	Use:   "depbuild",
	Args:  cobra.NoArgs,
	Short: "Fetches a pinned third-party source tree and builds it with make",
	Long: `depbuild fetches a pinned revision of a third-party source tree and builds it
with the tree's own Makefile. Without configuration it makes a shallow clone of
raylib 5.0 into ./raylib and runs 'make PLATFORM=PLATFORM_DESKTOP' in ./raylib/src.

Settings are read from depbuild.yaml in the working directory or the user
configuration directory, from DEPBUILD_* environment variables and from flags.`,
	Run: runRun,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd.PersistentFlags().BoolVarP(&log.Verbose, "verbose", "v", false, "Print debug output")
	if rootCmd.Execute() != nil {
		os.Exit(1)
	}
}
