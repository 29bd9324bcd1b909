package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"runtime"
)

// ToolsManifestRelPath is where the tool catalog manifest lives inside a
// framework source tree, relative to its root.
const ToolsManifestRelPath = "tools/tools.json"

// VersionPaths are every per-version filesystem path, derived
// deterministically from an InstallRequest and a single version string
// (spec.md §3). Once created, a VersionPaths is immutable.
type VersionPaths struct {
	Version                string
	VersionRoot            string
	SourceRoot             string
	ToolDownloadDir        string
	ToolInstallDir         string
	VEDir                  string
	InterpreterPath        string
	ActivationArtifactPath string
	ResolvedVersionLabel   string
	UsingExistingSource    bool
}

// DerivePaths computes a VersionPaths for the given version. If
// version_root already holds a valid framework tree (a parseable tool
// manifest is present), UsingExistingSource is true, source_root is
// version_root itself, and the resolved label is the caller-supplied
// ExplicitVersion if set, else the short commit id of the existing tree
// (callers needing the commit id pass it in via shortCommitOfExisting).
func (r *InstallRequest) DerivePaths(version, shortCommitOfExisting string) *VersionPaths {
	versionRoot := filepath.Join(r.InstallationRoot, version)

	sourceRoot := filepath.Join(versionRoot, FrameworkDirname)
	usingExisting := false
	if isValidFrameworkTree(versionRoot) {
		sourceRoot = versionRoot
		usingExisting = true
	}

	label := version
	if usingExisting {
		if r.ExplicitVersion != "" {
			label = r.ExplicitVersion
		} else if shortCommitOfExisting != "" {
			label = shortCommitOfExisting
		}
	}

	toolInstallDir := filepath.Join(versionRoot, "tools")
	interpreterPath := interpreterPathFor(versionRoot)

	return &VersionPaths{
		Version:                version,
		VersionRoot:            versionRoot,
		SourceRoot:             sourceRoot,
		ToolDownloadDir:        filepath.Join(versionRoot, "dist"),
		ToolInstallDir:         toolInstallDir,
		VEDir:                  filepath.Join(versionRoot, "python", "venv"),
		InterpreterPath:        interpreterPath,
		ActivationArtifactPath: activationArtifactPath(r.InstallationRoot, version),
		ResolvedVersionLabel:   label,
		UsingExistingSource:    usingExisting,
	}
}

func interpreterPathFor(versionRoot string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(versionRoot, "python", "venv", "Scripts", "python.exe")
	}
	return filepath.Join(versionRoot, "python", "venv", "bin", "python")
}

func activationArtifactPath(installationRoot, version string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(installationRoot, version, "Microsoft."+version+".PowerShell_profile.ps1")
	}
	return filepath.Join(installationRoot, version, "activate_"+version+".sh")
}

// isValidFrameworkTree reports whether dir's tool manifest is present and
// parses as JSON (spec.md §3 VersionPaths invariant).
func isValidFrameworkTree(dir string) bool {
	data, err := os.ReadFile(filepath.Join(dir, ToolsManifestRelPath))
	if err != nil {
		return false
	}
	return json.Valid(data)
}
