package pipeline

import (
	"fmt"

	"github.com/daedaleanai/depbuild/log"
	"github.com/daedaleanai/depbuild/module"
	"github.com/daedaleanai/depbuild/util"
)

// Checkout kinds reported by Inspect.
const (
	KindMissing = "missing"
	KindGit     = "git"
	KindArchive = "archive"
	KindUnknown = "unknown"
)

// Status describes the checkout of a recipe on disk.
type Status struct {
	CloneDir  string
	Kind      string
	Commit    string
	Dirty     bool
	Stamp     *module.Stamp
	Artifacts []string
	// Problems lists everything that makes the checkout not match the recipe.
	Problems []string
}

// Fetched reports whether anything exists at the clone directory.
func (s Status) Fetched() bool {
	return s.Kind != KindMissing
}

// Inspect examines the checkout without modifying it.
func (p *Pipeline) Inspect() Status {
	status := Status{CloneDir: p.CloneDir(), Kind: KindMissing}
	problem := func(format string, a ...interface{}) {
		status.Problems = append(status.Problems, fmt.Sprintf(format, a...))
	}

	if !util.PathExists(status.CloneDir) {
		return status
	}

	if mod, err := module.OpenGitModule(status.CloneDir); err == nil {
		status.Kind = KindGit
		p.inspectGit(mod, &status, problem)
	} else if metadata, ok, err := module.ReadArchiveMetadata(status.CloneDir); ok {
		status.Kind = KindArchive
		status.Commit = "sha256:" + metadata.Sha256
		if metadata.URL != p.Recipe.URL {
			problem("Archive was downloaded from '%s', not '%s'", metadata.URL, p.Recipe.URL)
		}
	} else {
		if err != nil {
			log.Debug("%s.\n", err)
		}
		status.Kind = KindUnknown
		problem("'%s' is neither a git checkout nor a downloaded archive", status.CloneDir)
		return status
	}

	stamp, ok, err := module.ReadStamp(status.CloneDir)
	if err != nil {
		problem("Unreadable build stamp: %s", err)
	} else if ok {
		status.Stamp = &stamp
		if stamp.Platform != p.Recipe.Platform {
			problem("Built for platform '%s', not '%s'", stamp.Platform, p.Recipe.Platform)
		}
		if status.Commit != "" && stamp.Commit != status.Commit {
			problem("Built from '%s', but '%s' is checked out", stamp.Commit, status.Commit)
		}
	} else {
		problem("Not built yet")
	}

	buildDir := p.BuildDir()
	if !util.DirExists(buildDir) {
		problem("Build directory '%s' does not exist", buildDir)
		return status
	}
	artifacts, err := module.FindArtifacts(buildDir)
	if err != nil {
		problem("%s", err)
	}
	status.Artifacts = artifacts
	if status.Stamp != nil && len(artifacts) == 0 {
		problem("No build artifacts in '%s'", buildDir)
	}
	return status
}

func (p *Pipeline) inspectGit(mod module.GitModule, status *Status, problem func(string, ...interface{})) {
	head, err := mod.Head()
	if err != nil {
		problem("%s", err)
	}
	status.Commit = head

	dirty, err := mod.IsDirty()
	if err != nil {
		problem("%s", err)
	}
	status.Dirty = dirty
	if dirty {
		problem("Checkout has uncommited changes")
	}

	hasOrigin, err := mod.HasOrigin(p.Recipe.URL)
	if err != nil {
		problem("%s", err)
	} else if !hasOrigin {
		problem("Checkout origin does not match '%s'", p.Recipe.URL)
	}

	matches, err := mod.HasVersionCheckedOut(p.Recipe.Ref)
	if err != nil {
		problem("%s", err)
	} else if !matches {
		problem("Checked out commit is not '%s'", p.Recipe.Ref)
	}
}
