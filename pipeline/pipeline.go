// Package pipeline fetches a pinned source tree and builds it with make.
//
// A run is strictly sequential: fetch, enter, build. The first failing step
// ends the run with a *StepError and nothing after it is invoked. The
// working directory of the process is never changed; commands get their
// directory through runner.Command.Dir instead.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/daedaleanai/depbuild/config"
	"github.com/daedaleanai/depbuild/log"
	"github.com/daedaleanai/depbuild/module"
	"github.com/daedaleanai/depbuild/netrc"
	"github.com/daedaleanai/depbuild/runner"
	"github.com/daedaleanai/depbuild/util"
)

// Pipeline runs a recipe relative to a working directory.
type Pipeline struct {
	Recipe  config.Recipe
	WorkDir string
	Fetcher module.Fetcher
	Runner  runner.Runner
}

// New returns a pipeline for `recipe` that starts external programs through `r`.
func New(recipe config.Recipe, workDir string, r runner.Runner) (*Pipeline, error) {
	fetcher, err := NewFetcher(recipe, r)
	if err != nil {
		return nil, err
	}
	return &Pipeline{
		Recipe:  recipe,
		WorkDir: workDir,
		Fetcher: fetcher,
		Runner:  r,
	}, nil
}

// NewFetcher returns the fetcher selected by the recipe.
func NewFetcher(recipe config.Recipe, r runner.Runner) (module.Fetcher, error) {
	switch recipe.Fetcher {
	case config.FetcherGoGit:
		return module.GoGit{Netrc: loadNetrc(recipe.Netrc)}, nil
	case config.FetcherArchive:
		return module.Archive{Netrc: loadNetrc(recipe.Netrc)}, nil
	case config.FetcherGit, "":
		return module.GitCLI{Runner: r, Git: recipe.Git}, nil
	}
	return nil, eris.Errorf("unknown fetcher '%s'", recipe.Fetcher)
}

func loadNetrc(netrcPath string) *netrc.Netrc {
	if netrcPath == "" {
		defaultPath, err := netrc.DefaultPath()
		if err != nil {
			log.Warning("%s. netrc not parsed.\n", err)
			return nil
		}
		netrcPath = defaultPath
	}
	n, err := netrc.Load(netrcPath)
	if err != nil {
		log.Warning("%s.\n", err)
		return nil
	}
	return n
}

// MakeArgs returns the arguments passed to make: an optional -jN, the
// PLATFORM variable, then the extra variables ordered by name.
func MakeArgs(recipe config.Recipe) []string {
	args := []string{}
	if recipe.Jobs > 0 {
		args = append(args, fmt.Sprintf("-j%d", recipe.Jobs))
	}
	if recipe.Platform != "" {
		args = append(args, "PLATFORM="+recipe.Platform)
	}
	for _, v := range util.OrderedEntries(recipe.Vars) {
		args = append(args, v.Key+"="+v.Value)
	}
	return args
}

// CloneDir is the directory the source tree is fetched into.
func (p *Pipeline) CloneDir() string {
	return p.Recipe.CloneDir(p.WorkDir)
}

// BuildDir is the directory make runs in.
func (p *Pipeline) BuildDir() string {
	return p.Recipe.BuildDir(p.WorkDir)
}

// Run fetches and then builds.
func (p *Pipeline) Run(ctx context.Context) error {
	if p.Recipe.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Recipe.Timeout)
		defer cancel()
	}

	if err := p.Fetch(ctx); err != nil {
		return err
	}
	return p.Build(ctx)
}

// Fetch obtains the source tree. It fails if the clone directory exists.
func (p *Pipeline) Fetch(ctx context.Context) error {
	cloneDir := p.CloneDir()
	log.Log("Fetching '%s' at '%s' into '%s'.\n", p.Recipe.URL, p.Recipe.Ref, cloneDir)

	if err := os.MkdirAll(filepath.Dir(cloneDir), util.DirMode); err != nil {
		return &StepError{StepFetch, eris.Wrap(err, "failed to create parent directory")}
	}
	if err := p.Fetcher.Fetch(ctx, p.Recipe.URL, p.Recipe.Ref, cloneDir); err != nil {
		return &StepError{StepFetch, err}
	}
	log.Success("Fetched '%s'.\n", p.Recipe.Ref)
	return nil
}

// Enter resolves the build directory inside the fetched tree.
func (p *Pipeline) Enter() (string, error) {
	buildDir := p.BuildDir()
	if !util.DirExists(buildDir) {
		return "", &StepError{StepEnter, eris.Wrapf(os.ErrNotExist, "directory '%s'", buildDir)}
	}
	log.Debug("Build directory is '%s'.\n", buildDir)
	return buildDir, nil
}

// Build runs make in the build directory of an already fetched tree and
// stamps the checkout on success.
func (p *Pipeline) Build(ctx context.Context) error {
	buildDir, err := p.Enter()
	if err != nil {
		return err
	}

	// A stale stamp must not outlive a failed rebuild.
	if err := module.RemoveStamp(p.CloneDir()); err != nil {
		log.Warning("%s.\n", err)
	}

	args := MakeArgs(p.Recipe)
	log.Log("Building in '%s'.\n", buildDir)
	err = p.Runner.Run(ctx, runner.Command{Name: p.makeProgram(), Args: args, Dir: buildDir})
	if err != nil {
		return &StepError{StepBuild, err}
	}

	p.stamp(buildDir, args)
	log.Success("Built '%s' for '%s'.\n", p.Recipe.Ref, p.Recipe.Platform)
	return nil
}

func (p *Pipeline) makeProgram() string {
	if p.Recipe.Make == "" {
		return "make"
	}
	return p.Recipe.Make
}

// stamp records the build. Failures only warn since the build itself succeeded.
func (p *Pipeline) stamp(buildDir string, args []string) {
	artifacts, err := module.FindArtifacts(buildDir)
	if err != nil {
		log.Warning("%s.\n", err)
	}
	for _, artifact := range artifacts {
		log.Debug("Artifact: '%s'.\n", filepath.Join(buildDir, artifact))
	}

	stamp := module.Stamp{
		URL:         p.Recipe.URL,
		Ref:         p.Recipe.Ref,
		Commit:      p.commit(),
		Platform:    p.Recipe.Platform,
		MakeArgs:    args,
		Artifacts:   artifacts,
		ToolVersion: util.ToolVersion.String(),
		BuiltAt:     time.Now().UTC().Format(time.RFC3339),
	}
	if err := module.WriteStamp(p.CloneDir(), stamp); err != nil {
		log.Warning("Failed to write build stamp: %s.\n", err)
	}
}

func (p *Pipeline) commit() string {
	cloneDir := p.CloneDir()
	if mod, err := module.OpenGitModule(cloneDir); err == nil {
		head, err := mod.Head()
		if err == nil {
			return head
		}
		log.Debug("%s.\n", err)
	}
	if metadata, ok, _ := module.ReadArchiveMetadata(cloneDir); ok {
		return "sha256:" + metadata.Sha256
	}
	return ""
}

// Clean runs `make clean` in the build directory. With `all` set the whole
// checkout is removed instead.
func (p *Pipeline) Clean(ctx context.Context, all bool) error {
	cloneDir := p.CloneDir()
	if all {
		if !util.PathExists(cloneDir) {
			log.Log("Nothing to remove at '%s'.\n", cloneDir)
			return nil
		}
		log.Log("Removing '%s'.\n", cloneDir)
		if err := os.RemoveAll(cloneDir); err != nil {
			return eris.Wrapf(err, "failed to remove '%s'", cloneDir)
		}
		return nil
	}

	buildDir, err := p.Enter()
	if err != nil {
		return err
	}
	args := append(MakeArgs(p.Recipe), "clean")
	if err := p.Runner.Run(ctx, runner.Command{Name: p.makeProgram(), Args: args, Dir: buildDir}); err != nil {
		return &StepError{StepBuild, err}
	}
	return module.RemoveStamp(cloneDir)
}
