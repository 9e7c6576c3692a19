package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/daedaleanai/depbuild/log"
	"github.com/daedaleanai/depbuild/util"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Args:  cobra.NoArgs,
	Short: "Prints whether the source tree is fetched and built as configured",
	Long: `Prints whether the source tree is fetched and built as configured.
Exits with status 1 if anything does not match.`,
	Run: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	p := loadPipeline()
	log.Log("Checking '%s' (%s at '%s'):\n", p.CloneDir(), p.Recipe.URL, p.Recipe.Ref)
	log.IndentationLevel = 1

	status := p.Inspect()
	if !status.Fetched() {
		log.Log("Not fetched yet.\n")
		log.IndentationLevel = 0
		return
	}

	log.Log("Checkout type: %s.\n", status.Kind)
	if status.Commit != "" {
		log.Log("Checked out: '%s'.\n", status.Commit)
	}
	if status.Stamp != nil {
		log.Log("Last build: %s for '%s' (%s).\n", status.Stamp.BuiltAt, status.Stamp.Platform, strings.Join(status.Stamp.MakeArgs, " "))
		if version, err := util.ParseVersion(status.Stamp.ToolVersion); err != nil {
			log.Debug("%s.\n", err)
		} else if util.ToolVersion.Less(version) {
			log.Warning("Built by a newer depbuild (%s).\n", version)
		}
	}
	for _, artifact := range status.Artifacts {
		log.Log("Artifact: '%s'.\n", artifact)
	}
	for _, problem := range status.Problems {
		log.Error("%s.\n", problem)
	}

	log.IndentationLevel = 0
	if log.ErrorOccured() {
		log.Error("Checkout does not match the configuration.\n")
		os.Exit(1)
	}
	log.Success("Checkout is up to date.\n")
}
