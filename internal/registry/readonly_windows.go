//go:build windows

package registry

import "os"

// clearReadOnly clears the read-only attribute so a subsequent unlink
// succeeds; Windows refuses to delete read-only files regardless of
// parent directory permissions.
func clearReadOnly(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	mode := info.Mode()
	if mode&0o200 == 0 {
		os.Chmod(path, mode|0o200)
	}
}
