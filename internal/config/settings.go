package config

import (
	"fmt"
	"os"
	"reflect"

	"github.com/BurntSushi/toml"
)

// fileRequest mirrors InstallRequest for TOML decoding. Unknown keys are
// ignored by BurntSushi/toml's default decode behavior; missing keys keep
// their zero value and fall back to defaults during Merge.
type fileRequest struct {
	InstallationRoot       string   `toml:"installation_root"`
	Versions               []string `toml:"versions"`
	ChipTargets            []string `toml:"chip_targets"`
	RepoOverride           string   `toml:"repo_override"`
	SourceMirror           string   `toml:"source_mirror"`
	ToolMirror             string   `toml:"tool_mirror"`
	InterpreterMirror      string   `toml:"interpreter_mirror"`
	FeatureTags            []string `toml:"feature_tags"`
	NonInteractive         bool     `toml:"non_interactive"`
	WizardAskAll           bool     `toml:"wizard_ask_all"`
	RecurseSubmodules      bool     `toml:"recurse_submodules"`
	InstallPrerequisites   bool     `toml:"install_prerequisites"`
	SkipPrerequisitesCheck bool     `toml:"skip_prerequisites_check"`
	LocalArchivePath       string   `toml:"local_archive_path"`
	ExplicitVersion        string   `toml:"explicit_version"`
}

// LoadFile reads a TOML config file and merges it over defaults. A missing
// file is not an error: it behaves as an empty overlay.
func LoadFile(path string) (*InstallRequest, error) {
	req, err := DefaultInstallRequest()
	if err != nil {
		return nil, err
	}
	if path == "" {
		return req, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return req, nil
	}

	var fr fileRequest
	if _, err := toml.DecodeFile(path, &fr); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}

	overlay := &InstallRequest{
		InstallationRoot:  fr.InstallationRoot,
		Versions:          fr.Versions,
		ChipTargets:       fr.ChipTargets,
		RepoOverride:      fr.RepoOverride,
		SourceMirror:      fr.SourceMirror,
		ToolMirror:        fr.ToolMirror,
		InterpreterMirror: fr.InterpreterMirror,
		FeatureTags:       fr.FeatureTags,
		Flags: Flags{
			NonInteractive:         fr.NonInteractive,
			WizardAskAll:           fr.WizardAskAll,
			RecurseSubmodules:      fr.RecurseSubmodules,
			InstallPrerequisites:   fr.InstallPrerequisites,
			SkipPrerequisitesCheck: fr.SkipPrerequisitesCheck,
		},
		LocalArchivePath: fr.LocalArchivePath,
		ExplicitVersion:  fr.ExplicitVersion,
	}

	return Merge(req, overlay), nil
}

// Merge overlays non-default fields of overlay onto base, implementing the
// precedence rule from spec.md §4.9: a value is only overridden if the
// overlay's value is present and not equal to the default. base is the
// lower-precedence request (defaults or defaults+file); overlay is the
// higher-precedence one (file, or CLI/programmatic caller overrides).
func Merge(base, overlay *InstallRequest) *InstallRequest {
	defaults, _ := DefaultInstallRequest()
	out := *base

	if overlay.InstallationRoot != "" && overlay.InstallationRoot != defaults.InstallationRoot {
		out.InstallationRoot = overlay.InstallationRoot
	}
	if len(overlay.Versions) > 0 {
		out.Versions = overlay.Versions
	}
	if len(overlay.ChipTargets) > 0 && !reflect.DeepEqual(overlay.ChipTargets, defaults.ChipTargets) {
		out.ChipTargets = overlay.ChipTargets
	}
	if overlay.RepoOverride != "" {
		out.RepoOverride = overlay.RepoOverride
	}
	if overlay.SourceMirror != "" {
		out.SourceMirror = overlay.SourceMirror
	}
	if overlay.ToolMirror != "" {
		out.ToolMirror = overlay.ToolMirror
	}
	if overlay.InterpreterMirror != "" {
		out.InterpreterMirror = overlay.InterpreterMirror
	}
	if len(overlay.FeatureTags) > 0 {
		out.FeatureTags = overlay.FeatureTags
	}
	if overlay.Flags != (Flags{}) {
		out.Flags = overlay.Flags
	}
	if overlay.LocalArchivePath != "" {
		out.LocalArchivePath = overlay.LocalArchivePath
	}
	if overlay.ExplicitVersion != "" {
		out.ExplicitVersion = overlay.ExplicitVersion
	}

	if out.MirrorsIgnored() {
		out.SourceMirror = ""
		out.ToolMirror = ""
		out.InterpreterMirror = ""
	}

	return &out
}

// IsDefaultField reports whether the named field of req still holds its
// hard-coded default value, so callers (the interactive wizard) can prompt
// only when a value hasn't been set by file or overlay.
func IsDefaultField(req *InstallRequest, field string) bool {
	defaults, err := DefaultInstallRequest()
	if err != nil {
		return false
	}
	switch field {
	case "installation_root":
		return req.InstallationRoot == defaults.InstallationRoot
	case "chip_targets":
		return reflect.DeepEqual(req.ChipTargets, defaults.ChipTargets)
	case "source_mirror":
		return req.SourceMirror == defaults.SourceMirror
	case "tool_mirror":
		return req.ToolMirror == defaults.ToolMirror
	case "interpreter_mirror":
		return req.InterpreterMirror == defaults.InterpreterMirror
	default:
		return false
	}
}
