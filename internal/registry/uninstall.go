package registry

import (
	"os"
	"path/filepath"

	"github.com/idftools/eim/internal/eimerrors"
)

// Uninstall removes inst's activation artifact and its on-disk source
// tree. If parentDir hosts multiple versions and removing inst's tree
// empties it, parentDir is removed too. All removals clear read-only
// attributes before unlinking (clearReadOnly is a no-op on POSIX, where
// a writable parent directory is enough to unlink a read-only file).
func Uninstall(inst Installation, parentDir string) error {
	if inst.ActivationArtifactPath != "" {
		if err := removeClearingReadOnly(inst.ActivationArtifactPath); err != nil {
			return eimerrors.Wrap(eimerrors.KindRegistry, "remove activation artifact", err)
		}
	}

	if inst.SourcePath != "" {
		if err := removeTreeClearingReadOnly(inst.SourcePath); err != nil {
			return eimerrors.Wrap(eimerrors.KindRegistry, "remove installation tree", err)
		}
	}

	if parentDir == "" {
		return nil
	}
	entries, err := os.ReadDir(parentDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return eimerrors.Wrap(eimerrors.KindRegistry, "list parent dir", err)
	}
	if len(entries) == 0 {
		if err := os.Remove(parentDir); err != nil {
			return eimerrors.Wrap(eimerrors.KindRegistry, "remove empty parent dir", err)
		}
	}
	return nil
}

func removeClearingReadOnly(path string) error {
	clearReadOnly(path)
	return os.Remove(path)
}

func removeTreeClearingReadOnly(root string) error {
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		clearReadOnly(path)
		return nil
	})
	return os.RemoveAll(root)
}
