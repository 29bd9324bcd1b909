//go:build windows

package archive

import (
	"context"
	"fmt"

	"github.com/idftools/eim/internal/execrun"
)

// extractZipWithFallback retries via the host's native extractor
// (PowerShell Expand-Archive) when the Go zip reader fails, to cover
// long-path and permission edge cases archive/zip doesn't handle on
// Windows.
func extractZipWithFallback(archivePath, destDir string) error {
	if err := extractZip(archivePath, destDir); err == nil {
		return nil
	}
	script := fmt.Sprintf("Expand-Archive -LiteralPath %q -DestinationPath %q -Force", archivePath, destDir)
	res, err := execrun.Default().RunScript(context.Background(), script)
	if err != nil {
		return fmt.Errorf("extract %s: native fallback failed: %w", archivePath, err)
	}
	if res.ExitCode != 0 {
		return fmt.Errorf("extract %s: native fallback exited %d: %s", archivePath, res.ExitCode, res.Stderr)
	}
	return nil
}
