package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMergeOnlyOverridesNonDefaultFields(t *testing.T) {
	base, err := DefaultInstallRequest()
	require.NoError(t, err)

	overlay := &InstallRequest{
		SourceMirror: "https://mirror.example.com",
	}
	merged := Merge(base, overlay)

	require.Equal(t, base.InstallationRoot, merged.InstallationRoot)
	require.Equal(t, "https://mirror.example.com", merged.SourceMirror)
}

func TestMergeIgnoresMirrorsWhenLocalArchiveSet(t *testing.T) {
	base, err := DefaultInstallRequest()
	require.NoError(t, err)

	overlay := &InstallRequest{
		SourceMirror:     "https://mirror.example.com",
		ToolMirror:       "https://tools.example.com",
		LocalArchivePath: "/tmp/archive.tar.zst",
	}
	merged := Merge(base, overlay)

	require.Empty(t, merged.SourceMirror)
	require.Empty(t, merged.ToolMirror)
	require.Equal(t, "/tmp/archive.tar.zst", merged.LocalArchivePath)
}

func TestLoadFileMissingFileReturnsDefaults(t *testing.T) {
	req, err := LoadFile(filepath.Join(t.TempDir(), "missing.toml"))
	require.NoError(t, err)
	defaults, _ := DefaultInstallRequest()
	require.Equal(t, defaults, req)
}

func TestLoadFileUnknownKeysIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	content := `
installation_root = "/opt/eim"
totally_unknown_key = "ignored"

[also_unknown]
x = 1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	req, err := LoadFile(path)
	require.NoError(t, err)
	require.Equal(t, "/opt/eim", req.InstallationRoot)
}

func TestDerivePathsForFreshInstall(t *testing.T) {
	req := &InstallRequest{InstallationRoot: "/opt/eim"}
	paths := req.DerivePaths("v5.1.2", "")

	require.Equal(t, "/opt/eim/v5.1.2", paths.VersionRoot)
	require.Equal(t, filepath.Join("/opt/eim/v5.1.2", FrameworkDirname), paths.SourceRoot)
	require.False(t, paths.UsingExistingSource)
	require.Equal(t, "v5.1.2", paths.ResolvedVersionLabel)
}

func TestDerivePathsUsesExistingFrameworkTree(t *testing.T) {
	root := t.TempDir()
	versionRoot := filepath.Join(root, "master")
	require.NoError(t, os.MkdirAll(filepath.Join(versionRoot, "tools"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(versionRoot, ToolsManifestRelPath), []byte(`{"tools":[]}`), 0o644))

	req := &InstallRequest{InstallationRoot: root}
	paths := req.DerivePaths("master", "abc1234")

	require.True(t, paths.UsingExistingSource)
	require.Equal(t, versionRoot, paths.SourceRoot)
	require.Equal(t, "abc1234", paths.ResolvedVersionLabel)
}

func TestDerivePathsExplicitVersionWinsOverShortCommit(t *testing.T) {
	root := t.TempDir()
	versionRoot := filepath.Join(root, "master")
	require.NoError(t, os.MkdirAll(filepath.Join(versionRoot, "tools"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(versionRoot, ToolsManifestRelPath), []byte(`{}`), 0o644))

	req := &InstallRequest{InstallationRoot: root, ExplicitVersion: "my-label"}
	paths := req.DerivePaths("master", "abc1234")

	require.Equal(t, "my-label", paths.ResolvedVersionLabel)
}

func TestTargetsAll(t *testing.T) {
	require.True(t, (&InstallRequest{}).TargetsAll())
	require.True(t, (&InstallRequest{ChipTargets: []string{"all"}}).TargetsAll())
	require.False(t, (&InstallRequest{ChipTargets: []string{"esp32"}}).TargetsAll())
}
