package main

import (
	"github.com/spf13/cobra"
)

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove every installed ESP-IDF version",
	Run: func(cmd *cobra.Command, args []string) {
		reg := openRegistry()
		installs := reg.List()
		if len(installs) == 0 {
			printNotice("Nothing to purge.")
			return
		}

		for _, inst := range installs {
			if _, ok := reg.RemoveByNameOrID(inst.ID); !ok {
				continue
			}
			if err := uninstallTree(inst); err != nil {
				printNotice("Could not fully delete %s: %v", inst.DisplayName, err)
			}
		}
		reg.Doc.SelectedID = ""
		saveRegistry(reg)
		printSuccess("Purged %d installation(s)", len(installs))
	},
}
