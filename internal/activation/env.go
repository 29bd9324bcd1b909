// Package activation implements the Post-Install Artifact Writer (C12):
// computing the environment an installed framework version needs, emitting
// the per-OS activation artifact, and registering the installation.
package activation

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/idftools/eim/internal/config"
)

// ComputeEnv returns the environment variable set an activated
// installation exports, in a deterministic order.
func ComputeEnv(paths *config.VersionPaths) [][2]string {
	tools := paths.ToolInstallDir
	env := [][2]string{
		{"IDF_PATH", paths.SourceRoot},
		{"IDF_TOOLS_PATH", tools},
		{"IDF_PYTHON_ENV_PATH", paths.VEDir},
		{"IDF_COMPONENT_LOCAL_STORAGE_URL", "file://" + tools},
	}
	if dir := deepestSubdir(filepath.Join(tools, "esp-rom-elfs")); dir != "" {
		env = append(env, [2]string{"ESP_ROM_ELF_DIR", dir})
	}
	if dir := firstNamedDir(filepath.Join(tools, "openocd-esp32"), "scripts"); dir != "" {
		env = append(env, [2]string{"OPENOCD_SCRIPTS", dir})
	}
	return env
}

// deepestSubdir walks root and returns the deepest directory found (root
// itself when it has no subdirectories, "" when root is absent). The
// esp-rom-elfs tool nests its payload one versioned directory down.
func deepestSubdir(root string) string {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return ""
	}
	deepest, maxDepth := root, 0
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		depth := len(splitPathSegments(rel))
		if depth > maxDepth {
			maxDepth, deepest = depth, path
		}
		return nil
	})
	return deepest
}

// firstNamedDir returns the lexicographically first directory named name
// under root, or "".
func firstNamedDir(root, name string) string {
	var found string
	filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil || !info.IsDir() {
			return nil
		}
		if info.Name() == name && (found == "" || path < found) {
			found = path
		}
		return nil
	})
	return found
}

func splitPathSegments(rel string) []string {
	if rel == "." {
		return nil
	}
	return strings.Split(filepath.ToSlash(rel), "/")
}
