package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/daedaleanai/depbuild/log"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Args:  cobra.NoArgs,
	Short: "Fetches the source tree without building it",
	Long:  `Fetches the source tree without building it. Fails if the clone directory already exists.`,
	Run:   runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) {
	p := loadPipeline()
	exitOnError(p.Fetch(context.Background()))
	log.Success("Done.\n")
}
