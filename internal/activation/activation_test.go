package activation

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/idftools/eim/internal/config"
	"github.com/idftools/eim/internal/log"
	"github.com/idftools/eim/internal/registry"
)

func fixturePaths(t *testing.T) *config.VersionPaths {
	t.Helper()
	root := t.TempDir()
	req := &config.InstallRequest{InstallationRoot: root}
	return req.DerivePaths("v5.1.2", "")
}

func TestComputeEnvCoreVariables(t *testing.T) {
	paths := fixturePaths(t)
	env := ComputeEnv(paths)

	asMap := map[string]string{}
	for _, kv := range env {
		asMap[kv[0]] = kv[1]
	}
	require.Equal(t, paths.SourceRoot, asMap["IDF_PATH"])
	require.Equal(t, paths.ToolInstallDir, asMap["IDF_TOOLS_PATH"])
	require.Equal(t, paths.VEDir, asMap["IDF_PYTHON_ENV_PATH"])
	require.Equal(t, "file://"+paths.ToolInstallDir, asMap["IDF_COMPONENT_LOCAL_STORAGE_URL"])
}

func TestComputeEnvRomElfsUsesDeepestSubdir(t *testing.T) {
	paths := fixturePaths(t)
	deep := filepath.Join(paths.ToolInstallDir, "esp-rom-elfs", "20230320", "elfs")
	require.NoError(t, os.MkdirAll(deep, 0o755))

	env := ComputeEnv(paths)
	var got string
	for _, kv := range env {
		if kv[0] == "ESP_ROM_ELF_DIR" {
			got = kv[1]
		}
	}
	require.Equal(t, deep, got)
}

func TestComputeEnvOpenocdScriptsFirstMatch(t *testing.T) {
	paths := fixturePaths(t)
	first := filepath.Join(paths.ToolInstallDir, "openocd-esp32", "a-version", "share", "scripts")
	second := filepath.Join(paths.ToolInstallDir, "openocd-esp32", "b-version", "share", "scripts")
	require.NoError(t, os.MkdirAll(first, 0o755))
	require.NoError(t, os.MkdirAll(second, 0o755))

	env := ComputeEnv(paths)
	var got string
	for _, kv := range env {
		if kv[0] == "OPENOCD_SCRIPTS" {
			got = kv[1]
		}
	}
	require.Equal(t, first, got)
}

func TestWritePosixScriptEscapesSpacesAndIsExecutable(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix artifact")
	}
	root := filepath.Join(t.TempDir(), "with space")
	require.NoError(t, os.MkdirAll(root, 0o755))
	req := &config.InstallRequest{InstallationRoot: root}
	paths := req.DerivePaths("v5.1.2", "")
	require.NoError(t, os.MkdirAll(paths.VersionRoot, 0o755))

	require.NoError(t, writePosixScript(paths, []string{filepath.Join(paths.ToolInstallDir, "ninja", "1.11.1")}))

	data, err := os.ReadFile(paths.ActivationArtifactPath)
	require.NoError(t, err)
	content := string(data)
	require.Contains(t, content, `with\ space`)
	require.Contains(t, content, "export IDF_PATH=")
	require.Contains(t, content, "export PATH=")
	require.True(t, strings.HasPrefix(content, "#!/bin/sh\n"))

	info, err := os.Stat(paths.ActivationArtifactPath)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o755), info.Mode().Perm())
}

func TestTerminalProfileGUIDIsDeterministic(t *testing.T) {
	require.Equal(t, TerminalProfileGUID("v5.1.2"), TerminalProfileGUID("v5.1.2"))
	require.NotEqual(t, TerminalProfileGUID("v5.1.2"), TerminalProfileGUID("v5.2.0"))
	require.True(t, strings.HasPrefix(TerminalProfileGUID("v5.1.2"), "{"))
}

func TestInsertTerminalProfilePreservesOtherEntries(t *testing.T) {
	settings := filepath.Join(t.TempDir(), "settings.json")
	seed := `{"$schema": "https://aka.ms/terminal-profiles-schema", "profiles": {"defaults": {}, "list": [{"guid": "{x}", "name": "PowerShell"}]}}`
	require.NoError(t, os.WriteFile(settings, []byte(seed), 0o644))

	paths := fixturePaths(t)
	require.NoError(t, insertTerminalProfile(settings, paths, log.NewNoop()))

	data, err := os.ReadFile(settings)
	require.NoError(t, err)
	content := string(data)
	require.Contains(t, content, `"PowerShell"`)
	require.Contains(t, content, "ESP-IDF v5.1.2")
	require.Contains(t, content, "terminal-profiles-schema")

	// Idempotent: a second insert replaces, never duplicates.
	require.NoError(t, insertTerminalProfile(settings, paths, log.NewNoop()))
	data, err = os.ReadFile(settings)
	require.NoError(t, err)
	require.Equal(t, 1, strings.Count(string(data), "ESP-IDF v5.1.2"))
}

func TestWriteEmitsArtifactAndRegistersInstallation(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix artifact")
	}
	paths := fixturePaths(t)
	require.NoError(t, os.MkdirAll(paths.VersionRoot, 0o755))
	regPath := filepath.Join(t.TempDir(), "registry.json")

	w := &Writer{Logger: log.NewNoop(), RegistryPath: regPath}
	inst, err := w.Write(paths, nil)
	require.NoError(t, err)
	require.FileExists(t, paths.ActivationArtifactPath)

	reg, err := registry.Load(regPath)
	require.NoError(t, err)
	require.Len(t, reg.Doc.Installations, 1)
	require.Equal(t, inst.ID, reg.Doc.SelectedID)
	require.Equal(t, "v5.1.2", reg.Doc.Installations[0].DisplayName)
}

func TestWriteReplacesExistingEntryForSameVersion(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("posix artifact")
	}
	paths := fixturePaths(t)
	require.NoError(t, os.MkdirAll(paths.VersionRoot, 0o755))
	regPath := filepath.Join(t.TempDir(), "registry.json")
	w := &Writer{Logger: log.NewNoop(), RegistryPath: regPath}

	first, err := w.Write(paths, nil)
	require.NoError(t, err)
	second, err := w.Write(paths, nil)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)

	reg, err := registry.Load(regPath)
	require.NoError(t, err)
	require.Len(t, reg.Doc.Installations, 1)
}
