//go:build !windows

package archive

// extractZipWithFallback just uses the Go zip reader on POSIX hosts; there
// is no native long-path/permission quirk to work around here.
func extractZipWithFallback(archivePath, destDir string) error {
	return extractZip(archivePath, destDir)
}
