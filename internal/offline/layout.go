// Package offline implements the Offline Archive Builder/Consumer (C11):
// building a self-contained .tar.zst bundle holding every network-sourced
// input for one framework version, and opening such a bundle so the
// normal installation pipeline can run against it with no network.
package offline

import (
	"path/filepath"
	"strings"
)

// On-disk names inside an offline archive's staging tree.
const (
	// DistDirName holds the verified tool archive blobs, filenames
	// matching their URL basenames.
	DistDirName = "dist"
	// WheelsDirPrefix prefixes one prebuilt-wheel directory per supported
	// interpreter minor, e.g. wheels_py311.
	WheelsDirPrefix = "wheels_py"
	// ScoopDirName optionally stages the Windows host-bootstrap bundle.
	ScoopDirName = "scoop"
	// ConfigFileName is the InstallRequest naming exactly one version and
	// referencing this archive.
	ConfigFileName = "config.toml"
	// ArchiveExt is the packed container's extension.
	ArchiveExt = ".tar.zst"
)

// WheelsDirName returns the wheel directory name for an interpreter
// minor version ("3.11" -> "wheels_py311").
func WheelsDirName(minor string) string {
	return WheelsDirPrefix + strings.ReplaceAll(minor, ".", "")
}

// SourceTreeRel is where a version's framework source tree lives inside
// the staging root: <version>/<framework-dirname>.
func SourceTreeRel(version, frameworkDirname string) string {
	return filepath.Join(version, frameworkDirname)
}
