package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed ESP-IDF versions",
	Run: func(cmd *cobra.Command, args []string) {
		reg := openRegistry()
		installs := reg.List()

		jsonOutput, _ := cmd.Flags().GetBool("json")
		if jsonOutput {
			printJSON(reg.Doc)
			return
		}

		if len(installs) == 0 {
			printNotice("No ESP-IDF versions installed.")
			return
		}
		for _, inst := range installs {
			marker := "  "
			if inst.ID == reg.Doc.SelectedID {
				marker = "* "
			}
			fmt.Printf("%s%-16s %s\n", marker, inst.DisplayName, inst.SourcePath)
		}
	},
}

func init() {
	listCmd.Flags().Bool("json", false, "Output in JSON format")
}
