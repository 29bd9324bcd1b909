package main

import (
	"github.com/spf13/cobra"

	"github.com/idftools/eim/internal/config"
	"github.com/idftools/eim/internal/pipeline"
)

var installFlags struct {
	installationPath string
	versions         []string
	targets          []string
	repo             string
	sourceMirror     string
	toolMirror       string
	pythonMirror     string
	features         []string
	nonInteractive   bool
	recurseSubs      bool
	installPrereqs   bool
	skipPrereqCheck  bool
	localArchive     string
	versionLabel     string
}

var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Install one or more ESP-IDF versions",
	Long: `Install the requested ESP-IDF versions: fetch the source tree, download
and verify the matching toolchains, provision the Python environment,
and write the activation script. With --local-archive the same pipeline
runs entirely from an offline bundle, with no network access.`,
	Run: func(cmd *cobra.Command, args []string) {
		req := buildInstallRequest()
		if len(req.Versions) == 0 {
			printError("No versions requested. Pass --version (repeatable) or set versions in the config file.")
			exitWithCode(ExitUsage)
		}

		renderer := newEventRenderer()
		defer renderer.Close()

		o := pipeline.New()
		if err := o.InstallBatch(globalCtx, req, renderer.Sink()); err != nil {
			exitWithCode(ExitInstallFailed)
		}
		if !renderer.jsonMode {
			printSuccess("Installed: %v", req.Versions)
		}
	},
}

// buildInstallRequest merges defaults, the optional config file, and the
// CLI flag overlay, in that precedence order.
func buildInstallRequest() *config.InstallRequest {
	base, err := config.LoadFile(configPath)
	if err != nil {
		printError("Config error: %v", err)
		exitWithCode(ExitUsage)
	}

	overlay := &config.InstallRequest{
		InstallationRoot:  installFlags.installationPath,
		Versions:          installFlags.versions,
		ChipTargets:       installFlags.targets,
		RepoOverride:      installFlags.repo,
		SourceMirror:      installFlags.sourceMirror,
		ToolMirror:        installFlags.toolMirror,
		InterpreterMirror: installFlags.pythonMirror,
		FeatureTags:       installFlags.features,
		Flags: config.Flags{
			NonInteractive:         installFlags.nonInteractive,
			RecurseSubmodules:      installFlags.recurseSubs,
			InstallPrerequisites:   installFlags.installPrereqs,
			SkipPrerequisitesCheck: installFlags.skipPrereqCheck,
		},
		LocalArchivePath: installFlags.localArchive,
		ExplicitVersion:  installFlags.versionLabel,
	}
	return config.Merge(base, overlay)
}

func init() {
	f := installCmd.Flags()
	f.StringVarP(&installFlags.installationPath, "installation-path", "p", "", "Base directory to install into")
	f.StringSliceVar(&installFlags.versions, "version", nil, "ESP-IDF version to install (repeatable)")
	f.StringSliceVarP(&installFlags.targets, "target", "t", nil, "Chip targets to install tools for (default all)")
	f.StringVar(&installFlags.repo, "repo", "", "Upstream source repository override (owner/repo)")
	f.StringVar(&installFlags.sourceMirror, "idf-mirror", "", "Mirror for the source repository")
	f.StringVar(&installFlags.toolMirror, "tool-mirror", "", "Mirror for tool downloads")
	f.StringVar(&installFlags.pythonMirror, "python-mirror", "", "Index URL mirror for Python packages")
	f.StringSliceVar(&installFlags.features, "feature", nil, "Extra requirement feature tags (repeatable)")
	f.BoolVarP(&installFlags.recurseSubs, "recurse-submodules", "r", false, "Materialize submodules")
	f.BoolVar(&installFlags.skipPrereqCheck, "skip-prerequisites-check", false, "Skip the prerequisite probe entirely")
	f.StringVar(&installFlags.localArchive, "local-archive", "", "Install from an offline .tar.zst archive instead of the network")
	f.StringVar(&installFlags.versionLabel, "version-label", "", "Explicit label for an existing source tree")
}
