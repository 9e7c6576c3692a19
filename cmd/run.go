package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/daedaleanai/depbuild/log"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Args:  cobra.NoArgs,
	Short: "Fetches the source tree and builds it",
	Long: `Fetches the source tree and builds it. Fails without building if the
clone directory already exists. This is what depbuild does when run without a command.`,
	Run: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) {
	p := loadPipeline()
	log.Log("Working directory is '%s'.\n", p.WorkDir)
	exitOnError(p.Run(context.Background()))
	log.Success("Done.\n")
}
