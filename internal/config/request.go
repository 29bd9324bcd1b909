// Package config implements the Settings & Path Model (C9): merging
// defaults, an optional TOML config file, and caller overrides into an
// InstallRequest, and deterministically deriving every per-version path
// from it.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	// FrameworkDirname is the directory name the source tree is checked
	// out into under each version's root (mirrors upstream's own
	// top-level directory name).
	FrameworkDirname = "esp-idf"

	// EnvHome overrides the default installation root, the same way
	// TSUKU_HOME overrides the teacher's tool root.
	EnvHome = "EIM_HOME"
)

// Flags holds the boolean installation-policy switches from spec.md §3.
type Flags struct {
	NonInteractive         bool
	WizardAskAll           bool
	RecurseSubmodules      bool
	InstallPrerequisites   bool
	SkipPrerequisitesCheck bool
}

// InstallRequest is the caller's declarative install request (spec.md §3).
// Zero values mean "still default"; Merge only overrides a field
// when the overlay's value is present and differs from the default.
type InstallRequest struct {
	InstallationRoot  string
	Versions          []string
	ChipTargets       []string // empty or {"all"} means every target
	RepoOverride      string   // upstream source repository override (owner/repo stub)
	SourceMirror      string
	ToolMirror        string
	InterpreterMirror string
	FeatureTags       []string
	Flags             Flags
	LocalArchivePath  string // if set, source/tool/interpreter mirrors are ignored
	ExplicitVersion   string // caller-supplied label for an existing/local tree
}

// MirrorsIgnored reports whether mirror overrides are inert because a
// local offline archive was requested (spec.md §3 invariant).
func (r *InstallRequest) MirrorsIgnored() bool {
	return r.LocalArchivePath != ""
}

// TargetsAll reports whether the chip-target set matches every target.
func (r *InstallRequest) TargetsAll() bool {
	if len(r.ChipTargets) == 0 {
		return true
	}
	for _, t := range r.ChipTargets {
		if t == "all" {
			return true
		}
	}
	return false
}

// DefaultInstallationRoot returns the OS-appropriate default root: a
// system-wide fixed path on the hidden-console OS, a user-home
// subdirectory elsewhere.
func DefaultInstallationRoot() (string, error) {
	if home := os.Getenv(EnvHome); home != "" {
		return home, nil
	}
	if runtime.GOOS == "windows" {
		root := os.Getenv("SystemDrive")
		if root == "" {
			root = "C:"
		}
		return filepath.Join(root+string(filepath.Separator), "eim"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".eim"), nil
}

// DefaultInstallRequest returns an InstallRequest populated with
// hard-coded defaults (the lowest tier of the merge precedence in
// spec.md §4.9).
func DefaultInstallRequest() (*InstallRequest, error) {
	root, err := DefaultInstallationRoot()
	if err != nil {
		return nil, err
	}
	return &InstallRequest{
		InstallationRoot: root,
		ChipTargets:      []string{"all"},
		Flags: Flags{
			InstallPrerequisites: true,
		},
	}, nil
}
