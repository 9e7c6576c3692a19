package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/daedaleanai/depbuild/log"
)

var cleanAll bool

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Args:  cobra.NoArgs,
	Short: "Removes build results",
	Long: `Runs 'make clean' in the source directory and forgets the last build.
With --all the whole clone directory is removed, so the next run fetches again.`,
	Run: runClean,
}

func init() {
	cleanCmd.Flags().BoolVar(&cleanAll, "all", false, "Remove the clone directory")
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) {
	p := loadPipeline()
	exitOnError(p.Clean(context.Background(), cleanAll))
	log.Success("Done.\n")
}
