package module

import (
	"context"
	"errors"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	githttp "github.com/go-git/go-git/v5/plumbing/transport/http"
	"github.com/rotisserie/eris"

	"github.com/daedaleanai/depbuild/log"
	"github.com/daedaleanai/depbuild/netrc"
	"github.com/daedaleanai/depbuild/runner"
	"github.com/daedaleanai/depbuild/util"
)

// Fetcher obtains the source tree of `url` at revision `ref` into the
// directory `dest`, which must not exist yet.
type Fetcher interface {
	Fetch(ctx context.Context, url, ref, dest string) error
}

// ErrDestinationExists is returned when the clone directory is already present.
var ErrDestinationExists = errors.New("destination already exists")

func checkDestination(dest string) error {
	if util.PathExists(dest) {
		return eris.Wrapf(ErrDestinationExists, "directory '%s'", dest)
	}
	return nil
}

// CloneArgs returns the arguments passed to git for a shallow clone of `ref`
// into `dir`. Detached-HEAD advice is silenced since tags always detach.
func CloneArgs(url, ref, dir string) []string {
	return []string{
		"-c", "advice.detachedHead=false",
		"clone",
		"--depth", "1",
		"--branch", ref,
		url,
		dir,
	}
}

// CloneEnv is added to the environment of git. git runs outside the
// terminal's foreground process group, where a credential prompt would stop
// it, so it has to fail instead. Credential helpers still apply.
var CloneEnv = []string{"GIT_TERMINAL_PROMPT=0"}

// GitCLI fetches by running the git executable.
type GitCLI struct {
	Runner runner.Runner
	// Git is the git executable, "git" if empty.
	Git string
}

func (f GitCLI) Fetch(ctx context.Context, url, ref, dest string) error {
	if err := checkDestination(dest); err != nil {
		return err
	}

	git := f.Git
	if git == "" {
		git = "git"
	}
	// git creates the clone directory relative to its own working directory.
	return f.Runner.Run(ctx, runner.Command{
		Name: git,
		Args: CloneArgs(url, ref, filepath.Base(dest)),
		Dir:  filepath.Dir(dest),
		Env:  CloneEnv,
	})
}

// GoGit fetches in-process using go-git. Credentials for http(s) remotes
// are taken from Netrc when set.
type GoGit struct {
	Netrc *netrc.Netrc
}

func (f GoGit) Fetch(ctx context.Context, url, ref, dest string) error {
	if err := checkDestination(dest); err != nil {
		return err
	}

	log.Log("Cloning '%s' at '%s'.\n", url, ref)
	log.Spinner.Start()
	defer log.Spinner.Stop()

	var err error
	for _, name := range referenceCandidates(ref) {
		log.Debug("Trying reference '%s'.\n", name)
		_, err = git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
			URL:           url,
			Auth:          f.auth(url),
			ReferenceName: name,
			SingleBranch:  true,
			Depth:         1,
			Tags:          git.NoTags,
		})
		if err == nil {
			return nil
		}
		removeAll(dest)
		if !isMissingReference(err) {
			break
		}
	}
	return eris.Wrapf(err, "failed to clone '%s' at '%s'", url, ref)
}

func (f GoGit) auth(url string) transport.AuthMethod {
	if f.Netrc == nil || !(strings.HasPrefix(url, "https://") || strings.HasPrefix(url, "http://")) {
		return nil
	}
	auth := f.Netrc.GetAuthForUrl(url)
	if auth == nil {
		return nil
	}
	log.Debug("Using netrc credentials for '%s'.\n", url)
	return &githttp.BasicAuth{Username: auth.User, Password: auth.Password}
}

// referenceCandidates lists the references `ref` may name, in the order git
// itself tries them for `clone --branch`.
func referenceCandidates(ref string) []plumbing.ReferenceName {
	if strings.HasPrefix(ref, "refs/") {
		return []plumbing.ReferenceName{plumbing.ReferenceName(ref)}
	}
	return []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(ref),
		plumbing.NewTagReferenceName(ref),
	}
}

func isMissingReference(err error) bool {
	return errors.Is(err, plumbing.ErrReferenceNotFound) || errors.Is(err, git.NoMatchingRefSpecError{})
}
