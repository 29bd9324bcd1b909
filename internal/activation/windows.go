package activation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/idftools/eim/internal/config"
	"github.com/idftools/eim/internal/log"
)

// writeWindowsProfile emits the PowerShell profile
// Microsoft.<version>.PowerShell_profile.ps1 at
// paths.ActivationArtifactPath's directory: it sets the computed env-var
// set and prepends the export paths to PATH (semicolon separator).
func writeWindowsProfile(paths *config.VersionPaths, exportPaths []string) error {
	var b strings.Builder
	b.WriteString("# Activation profile for ESP-IDF " + paths.ResolvedVersionLabel + ". Generated by eim.\n\n")

	for _, kv := range ComputeEnv(paths) {
		fmt.Fprintf(&b, "$env:%s = \"%s\"\n", kv[0], kv[1])
	}
	if len(exportPaths) > 0 {
		fmt.Fprintf(&b, "$env:PATH = \"%s;\" + $env:PATH\n", strings.Join(exportPaths, ";"))
	}
	fmt.Fprintf(&b, "\nWrite-Host \"ESP-IDF %s activated.\"\n", paths.ResolvedVersionLabel)

	return os.WriteFile(paths.ActivationArtifactPath, []byte(b.String()), 0o644)
}

// terminalProfileNamespace seeds the deterministic GUID for Windows
// Terminal profile entries, so re-running the installer for the same
// version updates its entry in place instead of accumulating duplicates.
var terminalProfileNamespace = uuid.MustParse("8a7c1f74-3e52-4d15-9b0a-6fd1c60f2b61")

// TerminalProfileGUID derives the stable Windows Terminal profile id for
// a version string.
func TerminalProfileGUID(version string) string {
	return "{" + uuid.NewSHA1(terminalProfileNamespace, []byte(version)).String() + "}"
}

// insertTerminalProfile adds (or replaces) a profile entry in the Windows
// Terminal settings JSON at settingsPath, keyed by the deterministic GUID
// for the version. The rest of the document is preserved verbatim at the
// JSON level. Failure here degrades to a warning at the caller.
func insertTerminalProfile(settingsPath string, paths *config.VersionPaths, logger log.Logger) error {
	data, err := os.ReadFile(settingsPath)
	if err != nil {
		return err
	}

	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse terminal settings: %w", err)
	}

	profilesAny, ok := doc["profiles"].(map[string]any)
	if !ok {
		return fmt.Errorf("terminal settings missing profiles object")
	}
	list, _ := profilesAny["list"].([]any)

	guid := TerminalProfileGUID(paths.ResolvedVersionLabel)
	entry := map[string]any{
		"guid":              guid,
		"name":              "ESP-IDF " + paths.ResolvedVersionLabel,
		"commandline":       fmt.Sprintf("powershell.exe -NoExit -File \"%s\"", paths.ActivationArtifactPath),
		"startingDirectory": paths.SourceRoot,
	}

	replaced := false
	for i, p := range list {
		if m, ok := p.(map[string]any); ok && m["guid"] == guid {
			list[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		list = append(list, entry)
	}
	profilesAny["list"] = list

	out, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return err
	}
	tmp := settingsPath + ".eim-tmp"
	if err := os.WriteFile(tmp, out, 0o644); err != nil {
		return err
	}
	if err := os.Rename(tmp, settingsPath); err != nil {
		os.Remove(tmp)
		return err
	}
	logger.Info("activation: terminal profile updated", "guid", guid)
	return nil
}

// defaultTerminalSettingsPath is the Windows Terminal settings location
// for the packaged (Store) install.
func defaultTerminalSettingsPath() string {
	localAppData := os.Getenv("LOCALAPPDATA")
	if localAppData == "" {
		return ""
	}
	return filepath.Join(localAppData, "Packages", "Microsoft.WindowsTerminal_8wekyb3d8bbwe", "LocalState", "settings.json")
}
