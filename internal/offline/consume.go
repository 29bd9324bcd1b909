package offline

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/idftools/eim/internal/archive"
	"github.com/idftools/eim/internal/config"
	"github.com/idftools/eim/internal/eimerrors"
)

// Staging is an extracted offline archive, consumed read-only by the
// pipeline.
type Staging struct {
	Root string
}

// Open extracts the .tar.zst at archivePath into scratchDir and returns
// the staging view. A directory path is accepted as-is (an already
// extracted archive).
func Open(archivePath, scratchDir string) (*Staging, error) {
	info, err := os.Stat(archivePath)
	if err != nil {
		return nil, eimerrors.Wrap(eimerrors.KindArchive, "open offline archive", err)
	}
	if info.IsDir() {
		return &Staging{Root: archivePath}, nil
	}
	if !strings.HasSuffix(archivePath, ArchiveExt) {
		return nil, eimerrors.New(eimerrors.KindArchive, "offline archive must be a "+ArchiveExt+" bundle: "+archivePath)
	}
	if err := archive.Extract(archivePath, scratchDir); err != nil {
		return nil, eimerrors.Wrap(eimerrors.KindArchive, "extract offline archive", err)
	}
	return &Staging{Root: scratchDir}, nil
}

// Request loads the archive's embedded config.toml: the InstallRequest
// naming exactly one version.
func (s *Staging) Request() (*config.InstallRequest, error) {
	req, err := config.LoadFile(filepath.Join(s.Root, ConfigFileName))
	if err != nil {
		return nil, err
	}
	if len(req.Versions) != 1 {
		return nil, eimerrors.New(eimerrors.KindConfig, fmt.Sprintf("offline archive config must name exactly one version, found %d", len(req.Versions)))
	}
	return req, nil
}

// SourceTree returns the staged source tree for version, verifying it
// exists.
func (s *Staging) SourceTree(version string) (string, error) {
	p := filepath.Join(s.Root, SourceTreeRel(version, config.FrameworkDirname))
	if info, err := os.Stat(p); err != nil || !info.IsDir() {
		return "", eimerrors.New(eimerrors.KindArchive, "offline archive has no source tree for "+version)
	}
	return p, nil
}

// DistDir returns the verified tool-blob directory.
func (s *Staging) DistDir() string {
	return filepath.Join(s.Root, DistDirName)
}

// CopyTree copies the directory tree at src into dst, preserving file
// modes and symlinks. It is the offline replacement for the source
// acquirer.
func CopyTree(src, dst string) error {
	return filepath.Walk(src, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case info.IsDir():
			return os.MkdirAll(target, info.Mode().Perm())
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}
			os.Remove(target)
			return os.Symlink(link, target)
		default:
			return copyFile(path, target, info.Mode().Perm())
		}
	})
}

func copyFile(src, dst string, perm os.FileMode) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, perm)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
