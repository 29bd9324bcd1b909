package main

import (
	"encoding/json"
	"os"

	"github.com/spf13/cobra"

	"github.com/idftools/eim/internal/registry"
)

var importCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Import installations from another manager's registry JSON",
	Long: `Import installation entries from an external registry document (the same
JSON schema eim persists). Entries whose display name is already
registered are skipped. This is the only bridge from external on-disk
state into the registry.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := os.ReadFile(args[0])
		if err != nil {
			printError("Cannot read %s: %v", args[0], err)
			exitWithCode(ExitUsage)
		}

		var doc registry.Document
		if err := json.Unmarshal(data, &doc); err != nil {
			printError("Cannot parse %s: %v", args[0], err)
			exitWithCode(ExitUsage)
		}

		reg := openRegistry()
		existing := map[string]bool{}
		for _, inst := range reg.List() {
			existing[inst.DisplayName] = true
		}

		imported := 0
		for _, inst := range doc.Installations {
			if existing[inst.DisplayName] {
				printNotice("Skipping %s: name already registered", inst.DisplayName)
				continue
			}
			if inst.ID == "" {
				inst.ID = registry.NewID()
			}
			reg.Add(inst)
			imported++
		}
		if imported > 0 {
			saveRegistry(reg)
		}
		printSuccess("Imported %d installation(s)", imported)
	},
}
