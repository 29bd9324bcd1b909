// Package archive decompresses zip/tar/tar.gz/tar.xz/tar.zst archives and
// verifies SHA-256 checksums for the installation pipeline's downloaded
// blobs (tool archives, offline-archive containers).
package archive

import (
	"archive/tar"
	"archive/zip"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
)

// Extract dispatches on archivePath's extension and unpacks into destDir,
// which is created if absent. Returns an error whose message contains
// "unsupported" for any other extension.
func Extract(archivePath, destDir string) error {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("extract %s: %w", archivePath, err)
	}

	lower := strings.ToLower(archivePath)
	switch {
	case strings.HasSuffix(lower, ".zip"):
		return extractZipWithFallback(archivePath, destDir)
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return extractTarGz(archivePath, destDir)
	case strings.HasSuffix(lower, ".tar.xz"):
		return extractTarXz(archivePath, destDir)
	case strings.HasSuffix(lower, ".tar.zst"):
		return extractTarZst(archivePath, destDir)
	case strings.HasSuffix(lower, ".tar"):
		return extractTarPlain(archivePath, destDir)
	default:
		return fmt.Errorf("extract %s: unsupported archive format", archivePath)
	}
}

func extractTarGz(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("extract %s: %w", archivePath, err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return fmt.Errorf("extract %s: %w", archivePath, err)
	}
	defer gz.Close()

	return extractTarReader(tar.NewReader(gz), destDir)
}

func extractTarXz(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("extract %s: %w", archivePath, err)
	}
	defer f.Close()

	xr, err := xz.NewReader(f)
	if err != nil {
		return fmt.Errorf("extract %s: %w", archivePath, err)
	}
	return extractTarReader(tar.NewReader(xr), destDir)
}

// extractTarZst uses streaming decode with a bounded internal buffer so
// multi-GB archives (ESP-IDF toolchain tarballs) never load the whole
// archive into memory.
func extractTarZst(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("extract %s: %w", archivePath, err)
	}
	defer f.Close()

	zr, err := zstd.NewReader(f, zstd.WithDecoderLowmem(true))
	if err != nil {
		return fmt.Errorf("extract %s: %w", archivePath, err)
	}
	defer zr.Close()

	return extractTarReader(tar.NewReader(zr), destDir)
}

func extractTarPlain(archivePath, destDir string) error {
	f, err := os.Open(archivePath)
	if err != nil {
		return fmt.Errorf("extract %s: %w", archivePath, err)
	}
	defer f.Close()
	return extractTarReader(tar.NewReader(f), destDir)
}

func extractTarReader(tr *tar.Reader, destDir string) error {
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("extract: read tar header: %w", err)
		}

		cleanName := strings.TrimPrefix(header.Name, "./")
		target := filepath.Join(destDir, cleanName)
		if !isWithin(target, destDir) {
			return fmt.Errorf("extract: entry %q escapes destination", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("extract: mkdir %s: %w", target, err)
			}
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("extract: mkdir %s: %w", target, err)
			}
			out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(header.Mode))
			if err != nil {
				return fmt.Errorf("extract: create %s: %w", target, err)
			}
			if _, err := io.Copy(out, tr); err != nil {
				out.Close()
				return fmt.Errorf("extract: write %s: %w", target, err)
			}
			out.Close()
		case tar.TypeSymlink:
			if filepath.IsAbs(header.Linkname) {
				return fmt.Errorf("extract: absolute symlink target %q not allowed", header.Linkname)
			}
			resolved := filepath.Join(filepath.Dir(target), header.Linkname)
			if !isWithin(resolved, destDir) {
				return fmt.Errorf("extract: symlink %q escapes destination", header.Name)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("extract: mkdir %s: %w", target, err)
			}
			os.Remove(target)
			if err := os.Symlink(header.Linkname, target); err != nil {
				return fmt.Errorf("extract: symlink %s: %w", target, err)
			}
		}
	}
}

func extractZip(archivePath, destDir string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("extract %s: %w", archivePath, err)
	}
	defer r.Close()

	for _, f := range r.File {
		cleanName := strings.TrimPrefix(f.Name, "./")
		target := filepath.Join(destDir, cleanName)
		if !isWithin(target, destDir) {
			return fmt.Errorf("extract: entry %q escapes destination", f.Name)
		}

		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("extract: mkdir %s: %w", target, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("extract: mkdir %s: %w", target, err)
		}

		rc, err := f.Open()
		if err != nil {
			return fmt.Errorf("extract: open %s in zip: %w", f.Name, err)
		}
		out, err := os.OpenFile(target, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode())
		if err != nil {
			rc.Close()
			return fmt.Errorf("extract: create %s: %w", target, err)
		}
		if _, err := io.Copy(out, rc); err != nil {
			out.Close()
			rc.Close()
			return fmt.Errorf("extract: write %s: %w", target, err)
		}
		out.Close()
		rc.Close()
	}
	return nil
}

func isWithin(target, base string) bool {
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return false
	}
	absBase, err := filepath.Abs(base)
	if err != nil {
		return false
	}
	return absTarget == absBase || strings.HasPrefix(absTarget, absBase+string(os.PathSeparator))
}
