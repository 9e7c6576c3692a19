package util

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v2"
)

// FileMode is the default FileMode used when creating files.
const FileMode = 0664

// DirMode is the default FileMode used when creating directories.
const DirMode = 0775

// FileExists checks whether some file exists.
func FileExists(file string) bool {
	stat, err := os.Stat(file)
	return err == nil && !stat.IsDir()
}

// DirExists checks whether some directory exists.
func DirExists(dir string) bool {
	stat, err := os.Stat(dir)
	return err == nil && stat.IsDir()
}

// PathExists checks whether anything (file, directory, symlink) exists at `p`.
func PathExists(p string) bool {
	_, err := os.Lstat(p)
	return err == nil
}

// IsWithin reports whether the relative path `rel` stays inside its base directory.
func IsWithin(rel string) bool {
	if rel == "" || filepath.IsAbs(rel) {
		return false
	}
	clean := filepath.Clean(rel)
	return clean != "." && clean != ".." && !strings.HasPrefix(clean, ".."+string(filepath.Separator))
}

// ReadYaml reads and decodes the YAML file at `filePath` into `v`.
func ReadYaml(filePath string, v interface{}) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return eris.Wrapf(err, "failed to read '%s'", filePath)
	}
	if err := yaml.Unmarshal(data, v); err != nil {
		return eris.Wrapf(err, "failed to parse '%s'", filePath)
	}
	return nil
}

// WriteYaml encodes `v` as YAML and writes it to `filePath`.
func WriteYaml(filePath string, v interface{}) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return eris.Wrapf(err, "failed to encode '%s'", filePath)
	}
	if err := os.WriteFile(filePath, data, FileMode); err != nil {
		return eris.Wrapf(err, "failed to write '%s'", filePath)
	}
	return nil
}
