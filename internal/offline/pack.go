package offline

import (
	"archive/tar"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"

	"github.com/idftools/eim/internal/eimerrors"
)

// DefaultCompressionLevel balances build time against archive size for
// multi-GB source-plus-toolchain bundles.
const DefaultCompressionLevel = zstd.SpeedBetterCompression

// Pack writes the staging tree rooted at stagingRoot into a .tar.zst at
// outPath using standard zstd framing. Symlinks are preserved; entry
// names are slash-separated and relative to stagingRoot.
func Pack(stagingRoot, outPath string, level zstd.EncoderLevel) error {
	out, err := os.Create(outPath)
	if err != nil {
		return eimerrors.Wrap(eimerrors.KindArchive, "create archive", err)
	}
	defer out.Close()

	zw, err := zstd.NewWriter(out, zstd.WithEncoderLevel(level))
	if err != nil {
		return eimerrors.Wrap(eimerrors.KindArchive, "init zstd encoder", err)
	}
	tw := tar.NewWriter(zw)

	walkErr := filepath.Walk(stagingRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(stagingRoot, path)
		if err != nil {
			return err
		}
		if rel == "." {
			return nil
		}

		var link string
		if info.Mode()&os.ModeSymlink != 0 {
			if link, err = os.Readlink(path); err != nil {
				return err
			}
		}
		header, err := tar.FileInfoHeader(info, link)
		if err != nil {
			return err
		}
		header.Name = filepath.ToSlash(rel)
		if err := tw.WriteHeader(header); err != nil {
			return err
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		f, err := os.Open(path)
		if err != nil {
			return err
		}
		_, err = io.Copy(tw, f)
		f.Close()
		return err
	})
	if walkErr != nil {
		tw.Close()
		zw.Close()
		return eimerrors.Wrap(eimerrors.KindArchive, fmt.Sprintf("pack %s", stagingRoot), walkErr)
	}

	if err := tw.Close(); err != nil {
		zw.Close()
		return eimerrors.Wrap(eimerrors.KindArchive, "finalize tar", err)
	}
	if err := zw.Close(); err != nil {
		return eimerrors.Wrap(eimerrors.KindArchive, "finalize zstd stream", err)
	}
	return nil
}
