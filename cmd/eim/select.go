package main

import (
	"github.com/spf13/cobra"
)

var selectCmd = &cobra.Command{
	Use:   "select <version>",
	Short: "Select the active ESP-IDF version",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		reg := openRegistry()
		if err := reg.Select(args[0]); err != nil {
			printError("%v", err)
			exitWithCode(ExitNotFound)
		}
		saveRegistry(reg)
		printSuccess("Selected %s", args[0])
	},
}
