package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/idftools/eim/internal/config"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Scan the installation root for unregistered ESP-IDF trees",
	Long: `Scan the default installation root's immediate children for valid
framework trees (a parseable tool manifest) and report any that the
registry does not know about. Discovered trees can be brought under
management with 'eim import'.`,
	Run: func(cmd *cobra.Command, args []string) {
		root, err := config.DefaultInstallationRoot()
		if err != nil {
			printError("Cannot resolve installation root: %v", err)
			exitWithCode(ExitGeneral)
		}

		entries, err := os.ReadDir(root)
		if err != nil {
			if os.IsNotExist(err) {
				printNotice("Installation root %s does not exist.", root)
				return
			}
			printError("Cannot read %s: %v", root, err)
			exitWithCode(ExitGeneral)
		}

		reg := openRegistry()
		registered := map[string]bool{}
		for _, inst := range reg.List() {
			registered[filepath.Clean(inst.SourcePath)] = true
		}

		found := 0
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			child := filepath.Join(root, e.Name())
			tree, ok := frameworkTreeIn(child)
			if !ok {
				continue
			}
			found++
			if registered[filepath.Clean(tree)] {
				fmt.Printf("  %-16s %s (registered)\n", e.Name(), tree)
			} else {
				fmt.Printf("  %-16s %s (unregistered)\n", e.Name(), tree)
			}
		}
		if found == 0 {
			printNotice("No framework trees found under %s.", root)
		}
	},
}

// frameworkTreeIn locates a valid framework tree directly in dir or one
// level down at the conventional source dirname.
func frameworkTreeIn(dir string) (string, bool) {
	candidates := []string{
		dir,
		filepath.Join(dir, config.FrameworkDirname),
	}
	for _, c := range candidates {
		data, err := os.ReadFile(filepath.Join(c, config.ToolsManifestRelPath))
		if err == nil && json.Valid(data) {
			return c, true
		}
	}
	return "", false
}
