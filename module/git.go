package module

import (
	"path/filepath"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rotisserie/eris"

	"github.com/daedaleanai/depbuild/log"
)

// GitModule is a source tree backed by a git repository.
type GitModule struct {
	path string
	repo *git.Repository
}

// OpenGitModule opens the git checkout at `modulePath`.
func OpenGitModule(modulePath string) (GitModule, error) {
	repo, err := git.PlainOpen(modulePath)
	if err != nil {
		return GitModule{}, eris.Wrapf(err, "failed to open git repository '%s'", modulePath)
	}
	return GitModule{modulePath, repo}, nil
}

// Path returns the on-disk path of the module.
func (m GitModule) Path() string {
	return m.path
}

// Name returns the name of the module.
func (m GitModule) Name() string {
	return filepath.Base(m.path)
}

// Head returns the commit hash currently checked out.
func (m GitModule) Head() (string, error) {
	head, err := m.repo.Head()
	if err != nil {
		return "", eris.Wrap(err, "failed to get repo HEAD")
	}
	return head.Hash().String(), nil
}

// IsDirty returns whether the underlying repository has any uncommited changes.
// Files ignored by the repository, such as build outputs, do not count.
func (m GitModule) IsDirty() (bool, error) {
	worktree, err := m.repo.Worktree()
	if err != nil {
		return false, eris.Wrap(err, "failed to get repo worktree")
	}
	status, err := worktree.Status()
	if err != nil {
		return false, eris.Wrap(err, "failed to get repo status")
	}
	return !status.IsClean(), nil
}

// HasOrigin returns whether the underlying repository has a remote called origin that matches `url`.
func (m GitModule) HasOrigin(url string) (bool, error) {
	remotes, err := m.repo.Remotes()
	if err != nil {
		return false, eris.Wrap(err, "failed to get repo remotes")
	}
	for _, remote := range remotes {
		if remote.Config().Name != git.DefaultRemoteName {
			continue
		}
		for _, remoteURL := range remote.Config().URLs {
			if remoteURL == url {
				return true, nil
			}
		}
	}
	return false, nil
}

// HasVersionCheckedOut returns whether HEAD is the commit `version` resolves to.
func (m GitModule) HasVersionCheckedOut(version string) (bool, error) {
	// A shallow clone only knows the fetched reference, so try it under each name git would.
	var hash *plumbing.Hash
	var err error
	for _, name := range referenceCandidates(version) {
		hash, err = m.repo.ResolveRevision(plumbing.Revision(name))
		if err == nil {
			break
		}
	}
	if hash == nil {
		hash, err = m.repo.ResolveRevision(plumbing.Revision(version))
	}
	if err != nil {
		return false, eris.Wrapf(err, "failed to resolve revision '%s'", version)
	}
	log.Debug("Version '%s' was resolved to commit hash '%s'.\n", version, hash.String())

	head, err := m.Head()
	if err != nil {
		return false, err
	}
	return head == hash.String(), nil
}
