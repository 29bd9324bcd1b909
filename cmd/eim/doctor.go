package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/idftools/eim/internal/platform"
	"github.com/idftools/eim/internal/prereq"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Report prerequisite status without installing anything",
	Run: func(cmd *cobra.Command, args []string) {
		if target, err := platform.DetectTarget(); err == nil {
			line := "Host: " + target.Platform
			if target.LinuxFamily() != "" {
				line += " (" + target.LinuxFamily() + ", " + target.Libc() + ")"
			}
			fmt.Println(line)
		}

		checker := prereq.New()
		mgr := checker.PackageManager()
		if mgr == "" {
			printNotice("Package manager: none detected")
		} else {
			fmt.Printf("Package manager: %s\n", mgr)
		}

		allOK := true
		for _, rep := range checker.Doctor(globalCtx) {
			if rep.Satisfied {
				okColor.Printf("  ok       %s\n", rep.Name)
			} else {
				allOK = false
				errColor.Printf("  missing  %s\n", rep.Name)
			}
		}
		if !allOK {
			printNotice("Run 'eim install --install-all-prerequisites' or install the missing packages with your package manager.")
			exitWithCode(ExitGeneral)
		}
	},
}
