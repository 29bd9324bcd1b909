//go:build !windows

package registry

// clearReadOnly is a no-op on POSIX: unlinking a read-only file only
// requires a writable parent directory, which os.RemoveAll already has.
func clearReadOnly(path string) {}
