package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/daedaleanai/depbuild/log"
)

var buildCmd = &cobra.Command{
	Use:   "build",
	Args:  cobra.NoArgs,
	Short: "Builds an already fetched source tree",
	Long: `Runs make in the source directory of an already fetched tree. The build
is recorded in a stamp file that 'depbuild status' checks.`,
	Run: runBuild,
}

func init() {
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) {
	p := loadPipeline()
	ctx := context.Background()
	if p.Recipe.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Recipe.Timeout)
		defer cancel()
	}
	exitOnError(p.Build(ctx))
	log.Success("Done.\n")
}
