package activation

import (
	"fmt"
	"os"
	"strings"

	"github.com/idftools/eim/internal/config"
)

// writePosixScript emits activate_<version>.sh at
// paths.ActivationArtifactPath: it exports the computed env-var set,
// prepends the export paths to PATH (colon separator), and prints a
// banner. Spaces in paths are escaped with a backslash. Mode 0755.
func writePosixScript(paths *config.VersionPaths, exportPaths []string) error {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	b.WriteString("# Activation script for ESP-IDF " + paths.ResolvedVersionLabel + ". Generated by eim.\n\n")

	for _, kv := range ComputeEnv(paths) {
		fmt.Fprintf(&b, "export %s=%s\n", kv[0], escapePosix(kv[1]))
	}

	if len(exportPaths) > 0 {
		escaped := make([]string, len(exportPaths))
		for i, p := range exportPaths {
			escaped[i] = escapePosix(p)
		}
		fmt.Fprintf(&b, "export PATH=%s:$PATH\n", strings.Join(escaped, ":"))
	}

	fmt.Fprintf(&b, "\necho \"ESP-IDF %s activated. Run 'idf.py --help' to get started.\"\n", paths.ResolvedVersionLabel)

	return os.WriteFile(paths.ActivationArtifactPath, []byte(b.String()), 0o755)
}

// escapePosix escapes spaces so paths survive unquoted shell word
// splitting.
func escapePosix(s string) string {
	return strings.ReplaceAll(s, " ", `\ `)
}
