package cmd

import (
	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Prints a shell completion script",
	Long: `Prints a shell completion script for depbuild.

Besides commands and flags, the script completes the values of --fetcher
(git, go-git, archive) and --platform (the PLATFORM_* values raylib's
Makefile accepts). Shorthands such as "web" are accepted by --platform but
not offered.

  bash:        source <(depbuild completion bash)
  zsh:         depbuild completion zsh > "${fpath[1]}/_depbuild"
  fish:        depbuild completion fish | source
  powershell:  depbuild completion powershell | Out-String | Invoke-Expression
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		switch args[0] {
		case "bash":
			cmd.Root().GenBashCompletion(out)
		case "zsh":
			cmd.Root().GenZshCompletion(out)
		case "fish":
			cmd.Root().GenFishCompletion(out, true)
		case "powershell":
			cmd.Root().GenPowerShellCompletionWithDesc(out)
		}
	},
	Hidden: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(completionCmd)
}
