package catalog

// ApplyPlatformOverrides scans each tool's platform_overrides for the first
// entry whose platforms set contains hostPlatformTag and replaces the
// tool's Install policy and/or ExportPaths with its non-empty fields.
// After this pass every tool's PlatformOverrides is cleared, which is what
// makes the operation idempotent under repeated application (spec.md §8
// property 1): applying it again is a no-op because there is nothing left
// to scan.
func ApplyPlatformOverrides(m *Manifest, hostPlatformTag string) *Manifest {
	out := &Manifest{SchemaVersion: m.SchemaVersion, Tools: make([]ToolSpec, len(m.Tools))}
	for i, tool := range m.Tools {
		out.Tools[i] = applyOverridesToTool(tool, hostPlatformTag)
	}
	return out
}

func applyOverridesToTool(tool ToolSpec, hostPlatformTag string) ToolSpec {
	for _, ov := range tool.PlatformOverrides {
		if !containsPlatform(ov.Platforms, hostPlatformTag) {
			continue
		}
		if ov.Install != "" {
			tool.Install = ov.Install
		}
		if len(ov.ExportPaths) > 0 {
			tool.ExportPaths = ov.ExportPaths
		}
		break
	}
	tool.PlatformOverrides = nil
	return tool
}

func containsPlatform(platforms []string, tag string) bool {
	for _, p := range platforms {
		if p == tag {
			return true
		}
	}
	return false
}
