package cmd

import (
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/daedaleanai/depbuild/config"
	"github.com/daedaleanai/depbuild/log"
	"github.com/daedaleanai/depbuild/pipeline"
	"github.com/daedaleanai/depbuild/runner"
)

var settings = viper.New()

var configFile string
var workDir string

// Flag names differing from their configuration key.
var flagKeys = map[string]string{
	"var": config.KeyVars,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Configuration file (default: depbuild.yaml in the working or user config directory)")
	flags.StringVarP(&workDir, "workdir", "C", "", "Directory to fetch and build in (default: current directory)")
	if err := addRecipeFlags(flags, settings); err != nil {
		panic(err)
	}

	rootCmd.RegisterFlagCompletionFunc(config.KeyFetcher, cobra.FixedCompletions(
		[]string{config.FetcherGit, config.FetcherGoGit, config.FetcherArchive}, cobra.ShellCompDirectiveNoFileComp))
	rootCmd.RegisterFlagCompletionFunc(config.KeyPlatform, cobra.FixedCompletions(
		[]string{"PLATFORM_DESKTOP", "PLATFORM_DESKTOP_SDL", "PLATFORM_WEB", "PLATFORM_DRM", "PLATFORM_ANDROID"}, cobra.ShellCompDirectiveNoFileComp))
}

// addRecipeFlags registers one flag per recipe setting on `flags` and binds
// them to `v`, so flags take precedence over all other configuration sources.
func addRecipeFlags(flags *pflag.FlagSet, v *viper.Viper) error {
	d := config.Default()
	flags.String(config.KeyURL, d.URL, "Repository to fetch")
	flags.String(config.KeyRef, d.Ref, "Tag or branch to fetch")
	flags.String(config.KeyDir, d.Dir, "Clone directory, relative to the working directory")
	flags.String(config.KeySourceDir, d.SourceDir, "Directory inside the clone to run make in")
	flags.String(config.KeyPlatform, d.Platform, "Value of the PLATFORM make variable, e.g. PLATFORM_DESKTOP or web")
	flags.StringToString("var", nil, "Additional make variable NAME=VALUE (repeatable)")
	flags.IntP(config.KeyJobs, "j", 0, "Number of parallel make jobs (0: make's default)")
	flags.String(config.KeyGit, d.Git, "git executable")
	flags.String(config.KeyMake, d.Make, "make executable")
	flags.String(config.KeyFetcher, d.Fetcher, "How to fetch: git, go-git or archive")
	flags.Duration(config.KeyTimeout, 0, "Abort the run after this long (0: no limit)")
	flags.String(config.KeyNetrc, "", "netrc file with credentials for go-git and archive fetches (default: ~/.netrc)")

	for _, name := range []string{
		config.KeyURL, config.KeyRef, config.KeyDir, config.KeySourceDir, config.KeyPlatform, "var",
		config.KeyJobs, config.KeyGit, config.KeyMake, config.KeyFetcher, config.KeyTimeout, config.KeyNetrc,
	} {
		key, renamed := flagKeys[name]
		if !renamed {
			key = name
		}
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			return eris.Wrapf(err, "failed to bind flag '%s'", name)
		}
	}
	return nil
}

func getWorkDir() string {
	dir := workDir
	if dir == "" {
		var err error
		dir, err = os.Getwd()
		if err != nil {
			log.Fatal("Failed to get working directory: %s.\n", err)
		}
	}
	dir, err := filepath.Abs(dir)
	if err != nil {
		log.Fatal("Invalid working directory '%s': %s.\n", workDir, err)
	}
	return dir
}

func loadPipeline() *pipeline.Pipeline {
	dir := getWorkDir()
	recipe, err := config.Load(settings, dir, configFile)
	if err != nil {
		log.Fatal("%s.\n", err)
	}
	p, err := pipeline.New(recipe, dir, runner.Exec{})
	if err != nil {
		log.Fatal("%s.\n", err)
	}
	return p
}

// exitOnError reports `err` and terminates. The exit status of a failed
// child process is passed on.
func exitOnError(err error) {
	if err == nil {
		return
	}
	log.IndentationLevel = 0
	log.Error("%s.\n", err)
	log.Debug("%s\n", eris.ToString(err, true))

	code := runner.ExitCode(err)
	if code <= 0 {
		code = 1
	}
	os.Exit(code)
}
