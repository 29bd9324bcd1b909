package toolinstall

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/idftools/eim/internal/catalog"
	"github.com/idftools/eim/internal/eimerrors"
)

// retry policy for tool downloads and installs (spec'd bounded retry).
const (
	maxAttempts = 3
	retryDelay  = 2 * time.Second
)

// EnsureInstalled makes tool present at its selected version under
// installRoot, short-circuiting when a probe reports the version is
// already correct. A DifferentVersion probe installs into the expected
// version's own directory, never overwriting the other version in place.
// Transient failures are retried up to maxAttempts.
func (in *Installer) EnsureInstalled(ctx context.Context, tool catalog.ToolSpec, sel catalog.Selection, downloadDir, installRoot string) (*Result, error) {
	probe, err := in.VerifyInstallation(ctx, tool, sel.VersionLabel, installRoot)
	if err != nil {
		return nil, err
	}
	switch probe.State {
	case ProbeCorrect:
		in.Logger.Info("toolinstall: already installed", "tool", tool.Name, "version", sel.VersionLabel)
		return &Result{
			Name:         tool.Name,
			VersionLabel: sel.VersionLabel,
			InstallDir:   ToolVersionDir(installRoot, tool.Name, sel.VersionLabel),
			ProbedOutput: probe.InstalledVersion,
		}, nil
	case ProbeDifferentVersion:
		in.Logger.Info("toolinstall: different version present, installing alongside",
			"tool", tool.Name, "installed", probe.InstalledVersion, "expected", sel.VersionLabel)
	}

	installDir := ToolVersionDir(installRoot, tool.Name, sel.VersionLabel)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, eimerrors.Cancelled
		}
		res, err := in.Install(ctx, tool, sel, downloadDir, installDir)
		if err == nil {
			if fixErr := fixNinjaBits(installDir); fixErr != nil {
				return nil, fixErr
			}
			return res, nil
		}
		lastErr = err
		in.Logger.Warn("toolinstall: attempt failed", "tool", tool.Name, "attempt", attempt, "error", err)
		if attempt < maxAttempts {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return nil, eimerrors.Cancelled
			}
		}
	}
	return nil, lastErr
}

// fixNinjaBits sets mode 0755 on every file named ninja under dir. Zip
// archives lose the executable bit, and ninja ships zipped on every
// platform.
func fixNinjaBits(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	return filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() && info.Name() == "ninja" {
			if chmodErr := os.Chmod(path, 0o755); chmodErr != nil {
				return chmodErr
			}
		}
		return nil
	})
}
