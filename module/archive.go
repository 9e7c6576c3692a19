package module

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	securejoin "github.com/cyphar/filepath-securejoin"
	"github.com/rotisserie/eris"

	"github.com/daedaleanai/depbuild/log"
	"github.com/daedaleanai/depbuild/netrc"
	"github.com/daedaleanai/depbuild/util"
)

const archiveMetadataFileName = ".metadata"

// ArchiveMetadata records where an archive checkout came from.
type ArchiveMetadata struct {
	URL    string
	Sha256 string
}

// Archive fetches a .tar.gz source archive over http(s). The archive must
// contain a single root directory, whose contents become `dest`. The
// revision is fixed by the url itself, so `ref` is only logged.
type Archive struct {
	Client *http.Client
	Netrc  *netrc.Netrc
}

// IsArchiveURL reports whether `url` names a .tar.gz archive.
func IsArchiveURL(url string) bool {
	return strings.HasSuffix(url, ".tar.gz") || strings.HasSuffix(url, ".tgz")
}

func (f Archive) Fetch(ctx context.Context, url, ref, dest string) error {
	if !IsArchiveURL(url) {
		return eris.Errorf("'%s' is not a .tar.gz archive", url)
	}
	if err := checkDestination(dest); err != nil {
		return err
	}

	log.Log("Downloading '%s' (%s).\n", url, ref)
	log.Spinner.Start()
	defer log.Spinner.Stop()

	sum, err := f.download(ctx, url, dest)
	if err != nil {
		removeAll(dest)
		return eris.Wrapf(err, "failed to fetch '%s'", url)
	}

	metadata := ArchiveMetadata{URL: url, Sha256: sum}
	if err := util.WriteYaml(filepath.Join(dest, archiveMetadataFileName), metadata); err != nil {
		removeAll(dest)
		return err
	}
	return nil
}

func (f Archive) download(ctx context.Context, url, dest string) (string, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", eris.Wrap(err, "invalid request")
	}
	if f.Netrc != nil {
		if auth := f.Netrc.GetAuthForUrl(url); auth != nil {
			request.SetBasicAuth(auth.User, auth.Password)
		}
	}

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	response, err := client.Do(request)
	if err != nil {
		return "", eris.Wrap(err, "failed to download archive")
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		return "", eris.Errorf("failed to download archive: %s", response.Status)
	}

	hasher := sha256.New()
	if err := extractTarGz(io.TeeReader(response.Body, hasher), dest); err != nil {
		return "", err
	}
	// Drain whatever the tar reader left unread so the checksum covers the whole file.
	if _, err := io.Copy(hasher, response.Body); err != nil {
		return "", eris.Wrap(err, "failed to read archive")
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// ReadArchiveMetadata returns the metadata of the archive checkout at `dir`.
func ReadArchiveMetadata(dir string) (ArchiveMetadata, bool, error) {
	p := filepath.Join(dir, archiveMetadataFileName)
	if !util.FileExists(p) {
		return ArchiveMetadata{}, false, nil
	}
	var metadata ArchiveMetadata
	if err := util.ReadYaml(p, &metadata); err != nil {
		return ArchiveMetadata{}, false, err
	}
	return metadata, true, nil
}

func getRoot(p string) string {
	firstSlash := strings.IndexByte(p, '/')
	if firstSlash == -1 {
		return p
	}
	return p[0:firstSlash]
}

// This leaves a leading /, which is fine because the result is joined onto dest.
func stripRoot(p string) string {
	root := getRoot(p)
	if p == root {
		return "/"
	}
	return p[len(root):]
}

func isWithin(dest, p string) bool {
	return p == dest || strings.HasPrefix(p, dest+string(filepath.Separator))
}

// target maps an archive member name onto dest. Symlinks extracted earlier
// are resolved as if dest were the file system root, so no member is ever
// written outside dest through one of them.
func target(dest, name string) (string, error) {
	rel := filepath.FromSlash(stripRoot(name))
	if !isWithin(dest, filepath.Join(dest, rel)) {
		return "", eris.Errorf("archive entry '%s' escapes the destination", name)
	}
	parent, err := securejoin.SecureJoin(dest, filepath.Dir(rel))
	if err != nil {
		return "", eris.Wrapf(err, "invalid archive entry '%s'", name)
	}
	p := filepath.Join(parent, filepath.Base(rel))
	if !isWithin(dest, p) {
		return "", eris.Errorf("archive entry '%s' escapes the destination", name)
	}
	return p, nil
}

func extractTarGz(r io.Reader, dest string) error {
	dest = filepath.Clean(dest)

	gzFile, err := gzip.NewReader(r)
	if err != nil {
		return eris.Wrap(err, "failed to decompress")
	}
	defer gzFile.Close()

	tarReader := tar.NewReader(gzFile)
	tarRootDir := ""
	for {
		header, err := tarReader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return eris.Wrap(err, "failed to decompress")
		}
		// GitHub archives carry a pax global header ahead of the tree.
		if header.Typeflag == tar.TypeXGlobalHeader {
			continue
		}

		name := strings.TrimPrefix(header.Name, "./")
		headerRootDir := getRoot(name)
		if header.Typeflag != tar.TypeDir && headerRootDir == strings.TrimSuffix(name, "/") {
			return eris.New("failed to decompress: archive can't have files outside root directory")
		}
		if tarRootDir == "" {
			tarRootDir = headerRootDir
		} else if tarRootDir != headerRootDir {
			return eris.New("failed to decompress: archive can't have more than one root directory")
		}

		p, err := target(dest, name)
		if err != nil {
			return err
		}

		// Directories may be visited after the files inside them. Missing ones are
		// created with a default mode, which is corrected once the entry shows up.
		switch header.Typeflag {
		case tar.TypeDir:
			log.Debug("Creating directory '%s'.\n", p)
			if err := os.MkdirAll(p, os.FileMode(header.Mode)); err != nil {
				return eris.Wrap(err, "failed to create directory")
			}
			// MkdirAll does nothing for directories that already exist.
			if err := os.Chmod(p, os.FileMode(header.Mode)); err != nil {
				return eris.Wrap(err, "failed to change filemode")
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(p), util.DirMode); err != nil {
				return eris.Wrap(err, "failed to create directory")
			}
			file, err := os.OpenFile(p, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, os.FileMode(header.Mode))
			if err != nil {
				return eris.Wrap(err, "failed to create file")
			}
			_, err = io.Copy(file, tarReader)
			file.Close()
			if err != nil {
				return eris.Wrap(err, "failed to write file")
			}
		case tar.TypeLink:
			if getRoot(header.Linkname) != tarRootDir {
				return eris.New("failed to decompress: archive can't have more than one root directory")
			}
			oldname, err := target(dest, header.Linkname)
			if err != nil {
				return err
			}
			if err := os.MkdirAll(filepath.Dir(p), util.DirMode); err != nil {
				return eris.Wrap(err, "failed to create directory")
			}
			if err := os.Link(oldname, p); err != nil {
				return eris.Wrap(err, "failed to create link")
			}
		case tar.TypeSymlink:
			linkname := filepath.FromSlash(header.Linkname)
			if filepath.IsAbs(linkname) || !isWithin(dest, filepath.Join(filepath.Dir(p), linkname)) {
				return eris.Errorf("failed to decompress: symlink '%s' points outside the destination", header.Name)
			}
			if err := os.MkdirAll(filepath.Dir(p), util.DirMode); err != nil {
				return eris.Wrap(err, "failed to create directory")
			}
			if err := os.Symlink(header.Linkname, p); err != nil {
				return eris.Wrap(err, "failed to create symlink")
			}
		default:
			return eris.Errorf("unknown tar type flag %d for entry '%s'", header.Typeflag, header.Name)
		}
	}

	if tarRootDir == "" {
		return eris.New("failed to decompress: archive is empty")
	}
	return nil
}

func removeAll(p string) {
	if err := os.RemoveAll(p); err != nil {
		log.Warning("Failed to remove '%s': %s.\n", p, err)
	}
}
