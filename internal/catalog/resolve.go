package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// FilterByTargets keeps a tool if chipTargets contains "all", or the
// tool's SupportedTargets is absent, or SupportedTargets contains "all",
// or the intersection of SupportedTargets and chipTargets is non-empty.
func FilterByTargets(tools []ToolSpec, chipTargets []string) []ToolSpec {
	if containsPlatform(chipTargets, "all") {
		return tools
	}
	wanted := make(map[string]bool, len(chipTargets))
	for _, t := range chipTargets {
		wanted[t] = true
	}

	out := make([]ToolSpec, 0, len(tools))
	for _, tool := range tools {
		if len(tool.SupportedTargets) == 0 || containsPlatform(tool.SupportedTargets, "all") {
			out = append(out, tool)
			continue
		}
		for _, st := range tool.SupportedTargets {
			if wanted[st] {
				out = append(out, tool)
				break
			}
		}
	}
	return out
}

// Selection pairs a tool's chosen version label with its platform Download.
type Selection struct {
	VersionLabel string
	Download     Download
}

// SelectDownloads picks the preferred version of each tool, then selects
// the Download matching hostPlatformTag (falling back to "any"). Tools
// with no download for the platform are skipped and returned in warnings.
func SelectDownloads(tools []ToolSpec, hostPlatformTag string) (map[string]Selection, []string) {
	out := make(map[string]Selection, len(tools))
	var warnings []string

	for _, tool := range tools {
		version, ok := tool.Preferred()
		if !ok {
			warnings = append(warnings, fmt.Sprintf("tool %q has no versions", tool.Name))
			continue
		}
		dl, ok := version.Platforms[hostPlatformTag]
		if !ok {
			dl, ok = version.Platforms["any"]
		}
		if !ok {
			warnings = append(warnings, fmt.Sprintf("tool %q has no download for platform %q", tool.Name, hostPlatformTag))
			continue
		}
		out[tool.Name] = Selection{VersionLabel: version.Label, Download: dl}
	}
	return out, warnings
}

// ComputeExportPaths unions (a) every configured ExportPaths entry,
// resolved against toolInstallRoot, that exists on disk, and (b) every
// subdirectory literally named "bin" recursively under toolInstallRoot.
// The result is deduplicated, sorted lexicographically, and any path
// containing "clang" is moved to the end (toolchain precedence rule).
func ComputeExportPaths(tools []ToolSpec, toolInstallRoot string) ([]string, error) {
	set := make(map[string]bool)

	for _, tool := range tools {
		for _, rel := range tool.ExportPaths {
			abs := filepath.Join(toolInstallRoot, rel)
			if info, err := os.Stat(abs); err == nil && info.IsDir() {
				set[abs] = true
			}
		}
	}

	err := filepath.Walk(toolInstallRoot, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() && info.Name() == "bin" {
			set[path] = true
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: compute export paths: %w", err)
	}

	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)

	var clang []string
	rest := make([]string, 0, len(out))
	for _, p := range out {
		if strings.Contains(p, "clang") {
			clang = append(clang, p)
		} else {
			rest = append(rest, p)
		}
	}
	return append(rest, clang...), nil
}
