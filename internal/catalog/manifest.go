// Package catalog implements the Tool Catalog Resolver (C5): parsing the
// framework's tool manifest, applying per-platform overrides, filtering by
// chip target, and resolving a concrete download set and export-path list
// for the host.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"
)

// Download is one platform's distribution of a ToolVersion.
type Download struct {
	URL    string `json:"url"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// ToolVersion is one released version of a tool, with per-platform downloads.
type ToolVersion struct {
	Label     string              `json:"version"`
	Status    string              `json:"status"` // "recommended" | other
	Platforms map[string]Download `json:"platforms"`
}

// Override replaces a tool's install policy and/or export paths for a set
// of host platforms.
type Override struct {
	Platforms   []string `json:"platforms"`
	Install     string   `json:"install,omitempty"`
	ExportPaths []string `json:"export_paths,omitempty"`
}

// ToolSpec describes one required host tool.
type ToolSpec struct {
	Name               string            `json:"name"`
	Description        string            `json:"description"`
	Install            string            `json:"install,omitempty"`
	ExportPaths        []string          `json:"export_paths"`
	ExportVars         map[string]string `json:"export_vars"`
	SupportedTargets   []string          `json:"supported_targets,omitempty"`
	VersionCmd         []string          `json:"version_cmd,omitempty"`
	VersionRegex       string            `json:"version_regex,omitempty"`
	StripContainerDirs int               `json:"strip_container_dirs,omitempty"`
	PlatformOverrides  []Override        `json:"platform_overrides,omitempty"`
	Versions           []ToolVersion     `json:"versions"`
}

// Manifest is the parsed tool catalog (spec.md §3 ToolManifest).
type Manifest struct {
	SchemaVersion string     `json:"version"`
	Tools         []ToolSpec `json:"tools"`
}

// ParseManifest reads and parses the JSON tool manifest at path. The
// schema_version field is advisory and not validated.
func ParseManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read manifest %s: %w", path, err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("catalog: parse manifest %s: %w", path, err)
	}
	return &m, nil
}

// Preferred returns the preferred ToolVersion for t: the first version with
// status "recommended", else the first version in declaration order.
func (t *ToolSpec) Preferred() (ToolVersion, bool) {
	if len(t.Versions) == 0 {
		return ToolVersion{}, false
	}
	for _, v := range t.Versions {
		if v.Status == "recommended" {
			return v, true
		}
	}
	return t.Versions[0], true
}
