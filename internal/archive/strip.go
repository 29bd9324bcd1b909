package archive

import (
	"fmt"
	"os"
	"path/filepath"
)

// StripContainerDirs moves the contents of root's single top-level
// directory (exactly n levels deep) up and removes the wrapper
// directories. If root does not have exactly one top-level entry at every
// level down to n, the tree is left untouched and an error is returned.
//
// The operation is transactional: root is first renamed aside, the strip
// is attempted against a fresh directory, and on any failure the original
// tree is restored byte-identical.
func StripContainerDirs(root string, n int) error {
	if n <= 0 {
		return nil
	}

	backup := root + ".eim-strip-backup"
	if err := os.Rename(root, backup); err != nil {
		return fmt.Errorf("strip container dirs: %w", err)
	}

	if err := stripInto(backup, root, n); err != nil {
		os.RemoveAll(root)
		if restoreErr := os.Rename(backup, root); restoreErr != nil {
			return fmt.Errorf("strip container dirs: %w (restore failed: %v)", err, restoreErr)
		}
		return fmt.Errorf("strip container dirs: %w", err)
	}

	os.RemoveAll(backup)
	return nil
}

// stripInto walks n levels into src, requiring exactly one entry at each
// level, then copies the remaining subtree into dst via rename.
func stripInto(src, dst string, n int) error {
	cur := src
	for i := 0; i < n; i++ {
		entries, err := os.ReadDir(cur)
		if err != nil {
			return fmt.Errorf("read %s: %w", cur, err)
		}
		if len(entries) != 1 || !entries[0].IsDir() {
			return fmt.Errorf("%s does not have exactly one top-level directory", cur)
		}
		cur = filepath.Join(cur, entries[0].Name())
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dst, err)
	}
	return os.Rename(cur, dst)
}
