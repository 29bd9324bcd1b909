package main

import (
	"github.com/spf13/cobra"
)

var renameCmd = &cobra.Command{
	Use:   "rename <version> <new-name>",
	Short: "Rename an installed ESP-IDF version",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		reg := openRegistry()
		if err := reg.Rename(args[0], args[1]); err != nil {
			printError("%v", err)
			exitWithCode(ExitGeneral)
		}
		saveRegistry(reg)
		printSuccess("Renamed %s to %s", args[0], args[1])
	},
}
