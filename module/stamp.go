package module

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/daedaleanai/depbuild/util"
)

const stampFileName = "depbuild.yaml"

// Stamp records a successful build of a checkout.
type Stamp struct {
	URL         string   `yaml:"url"`
	Ref         string   `yaml:"ref"`
	Commit      string   `yaml:"commit,omitempty"`
	Platform    string   `yaml:"platform,omitempty"`
	MakeArgs    []string `yaml:"make_args"`
	Artifacts   []string `yaml:"artifacts"`
	ToolVersion string   `yaml:"tool_version"`
	BuiltAt     string   `yaml:"built_at"`
}

// StampPath returns where the stamp of the checkout at `cloneDir` lives.
// Git checkouts keep it inside .git so the worktree stays clean.
func StampPath(cloneDir string) string {
	gitDir := filepath.Join(cloneDir, ".git")
	if util.DirExists(gitDir) {
		return filepath.Join(gitDir, stampFileName)
	}
	return filepath.Join(cloneDir, "."+stampFileName)
}

// WriteStamp stores `stamp` for the checkout at `cloneDir`.
func WriteStamp(cloneDir string, stamp Stamp) error {
	return util.WriteYaml(StampPath(cloneDir), stamp)
}

// ReadStamp loads the stamp of the checkout at `cloneDir`. The boolean is
// false when the checkout has never been built successfully.
func ReadStamp(cloneDir string) (Stamp, bool, error) {
	p := StampPath(cloneDir)
	if !util.FileExists(p) {
		return Stamp{}, false, nil
	}
	var stamp Stamp
	if err := util.ReadYaml(p, &stamp); err != nil {
		return Stamp{}, false, err
	}
	return stamp, true, nil
}

// RemoveStamp deletes the stamp, if any.
func RemoveStamp(cloneDir string) error {
	if err := os.Remove(StampPath(cloneDir)); err != nil && !os.IsNotExist(err) {
		return eris.Wrap(err, "failed to remove build stamp")
	}
	return nil
}

var artifactSuffixes = []string{".a", ".so", ".dylib", ".dll", ".lib"}

// IsArtifact reports whether `name` looks like a static or shared library.
func IsArtifact(name string) bool {
	for _, suffix := range artifactSuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	// Versioned shared objects, e.g. libraylib.so.5.0.0.
	return strings.Contains(name, ".so.")
}

// FindArtifacts lists the library files directly inside `dir`, sorted by name.
func FindArtifacts(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read '%s'", dir)
	}
	files := util.FilteredSlice(entries, func(e os.DirEntry) bool {
		return !e.IsDir() && IsArtifact(e.Name())
	})
	names := util.MappedSlice(files, func(e os.DirEntry) string { return e.Name() })
	return util.OrderedSlice(names), nil
}
