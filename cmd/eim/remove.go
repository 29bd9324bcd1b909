package main

import (
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/idftools/eim/internal/registry"
)

var removeCmd = &cobra.Command{
	Use:   "remove <version>",
	Short: "Remove an installed ESP-IDF version",
	Long: `Remove an installed version: delete its registry entry, its activation
script, and its on-disk tree. Filesystem removal is best-effort; the
registry entry is always removed.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reg := openRegistry()
		inst, ok := reg.RemoveByNameOrID(args[0])
		if !ok {
			printError("No installation matches %q", args[0])
			exitWithCode(ExitNotFound)
		}
		saveRegistry(reg)

		if err := uninstallTree(inst); err != nil {
			printNotice("Registry entry removed; some files could not be deleted: %v", err)
			return
		}
		printSuccess("Removed %s", inst.DisplayName)
	},
}

// uninstallTree removes inst's on-disk footprint: the version root that
// holds both the source tree and the tools, plus the parent directory
// when this was its last version.
func uninstallTree(inst registry.Installation) error {
	versionRoot := filepath.Dir(inst.ToolsRoot)
	parent := filepath.Dir(versionRoot)
	inst.SourcePath = versionRoot
	return registry.Uninstall(inst, parent)
}
