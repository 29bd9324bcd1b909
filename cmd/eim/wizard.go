package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/idftools/eim/internal/config"
	"github.com/idftools/eim/internal/pipeline"
)

var wizardAskAll bool

var wizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Install interactively, prompting for unset options",
	Long: `Run the installation pipeline after prompting for the installation
directory and the chip targets when their effective values are still the
hard-coded defaults, and for a version when none is configured. With
--ask-all the installation directory and chip targets are prompted even
when the config file or flags already set them. No other option is
prompted.`,
	Run: func(cmd *cobra.Command, args []string) {
		req := buildInstallRequest()
		req.Flags.WizardAskAll = wizardAskAll

		if req.Flags.NonInteractive {
			printError("wizard cannot run with --non-interactive; use 'eim install'")
			exitWithCode(ExitUsage)
		}

		in := bufio.NewReader(os.Stdin)
		if wizardAskAll || config.IsDefaultField(req, "installation_root") {
			if v := prompt(in, "Installation directory", req.InstallationRoot); v != "" {
				req.InstallationRoot = v
			}
		}
		if len(req.Versions) == 0 {
			v := prompt(in, "ESP-IDF version (e.g. v5.1.2, master)", "master")
			if v == "" {
				v = "master"
			}
			req.Versions = []string{v}
		}
		if wizardAskAll || config.IsDefaultField(req, "chip_targets") {
			if v := prompt(in, "Chip targets (comma separated)", "all"); v != "" {
				req.ChipTargets = strings.Split(v, ",")
			}
		}

		renderer := newEventRenderer()
		defer renderer.Close()
		if err := pipeline.New().InstallBatch(globalCtx, req, renderer.Sink()); err != nil {
			exitWithCode(ExitInstallFailed)
		}
		printSuccess("Installed: %v", req.Versions)
	},
}

func prompt(in *bufio.Reader, label, def string) string {
	fmt.Printf("%s [%s]: ", label, def)
	line, err := in.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(line)
}

func init() {
	wizardCmd.Flags().BoolVar(&wizardAskAll, "ask-all", false, "Prompt for every option, even ones already configured")
}
