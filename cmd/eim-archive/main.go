package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/idftools/eim/internal/buildinfo"
	"github.com/idftools/eim/internal/config"
	"github.com/idftools/eim/internal/log"
	"github.com/idftools/eim/internal/offline"
	"github.com/idftools/eim/internal/progress"
)

var flags struct {
	createFromConfig   string
	archivePath        string
	installDir         string
	pythonVersion      string
	wheelPyVersions    string
	idfVersionOverride string
	buildAllVersions   bool
	listVersions       bool
	verbose            int
}

var errColor = color.New(color.FgRed, color.Bold)

var rootCmd = &cobra.Command{
	Use:   "eim-archive",
	Short: "Build and unpack offline ESP-IDF installation archives",
	Long: `eim-archive builds self-contained .tar.zst bundles holding everything an
ESP-IDF install needs (source tree with submodules, verified toolchain
blobs, constraints file, prebuilt wheels per Python minor), and unpacks
existing bundles for inspection or manual staging.`,
	Run: run,
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()
	rootCmd.SetContext(ctx)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) {
	level := slog.LevelWarn
	switch {
	case flags.verbose >= 2:
		level = slog.LevelDebug
	case flags.verbose == 1:
		level = slog.LevelInfo
	}
	log.SetDefault(log.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	switch {
	case flags.listVersions:
		listVersions()
	case flags.archivePath != "":
		extractArchive(cmd.Context())
	case flags.createFromConfig != "":
		buildArchives(cmd.Context())
	default:
		cmd.Help()
		os.Exit(2)
	}
}

// listVersions reports the versions the loaded config would build.
func listVersions() {
	req := loadRequest()
	if len(req.Versions) == 0 {
		fmt.Println("No versions configured. Set versions in the config file or pass --idf-version-override.")
		return
	}
	for _, v := range req.Versions {
		fmt.Println(v)
	}
}

// extractArchive unpacks an existing bundle into --install-dir.
func extractArchive(ctx context.Context) {
	dest := flags.installDir
	if dest == "" {
		errColor.Fprintln(os.Stderr, "--archive requires --install-dir")
		os.Exit(2)
	}
	staging, err := offline.Open(flags.archivePath, dest)
	if err != nil {
		errColor.Fprintf(os.Stderr, "Extract failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Extracted to %s\n", staging.Root)
}

// buildArchives builds one bundle per requested version.
func buildArchives(ctx context.Context) {
	req := loadRequest()

	versions := req.Versions
	if flags.idfVersionOverride != "" {
		versions = []string{flags.idfVersionOverride}
	}
	if len(versions) == 0 {
		errColor.Fprintln(os.Stderr, "No versions to build. Configure versions or pass --idf-version-override.")
		os.Exit(2)
	}
	if !flags.buildAllVersions {
		versions = versions[:1]
	}

	minors := wheelMinors()
	outDir := flags.installDir
	if outDir == "" {
		outDir = "."
	}

	builder := offline.NewBuilder()
	failed := false
	for _, version := range versions {
		staging, err := os.MkdirTemp("", "eim-archive-*")
		if err != nil {
			errColor.Fprintf(os.Stderr, "Cannot create staging directory: %v\n", err)
			os.Exit(1)
		}

		spinner := progress.NewSpinner(os.Stderr)
		spinner.Start("Building archive for " + version)
		summary, err := builder.Build(ctx, offline.BuildOptions{
			Version:                version,
			StagingDir:             staging,
			OutPath:                filepath.Join(outDir, "esp-idf-"+sanitize(version)+offline.ArchiveExt),
			RepoStub:               req.RepoOverride,
			SourceMirror:           req.SourceMirror,
			ToolMirror:             req.ToolMirror,
			ChipTargets:            req.ChipTargets,
			WheelInterpreterMinors: minors,
		})
		os.RemoveAll(staging)
		if err != nil {
			spinner.Stop()
			errColor.Fprintf(os.Stderr, "Build of %s failed: %v\n", version, err)
			failed = true
			continue
		}
		spinner.StopWithMessage("Built " + summary.ArchivePath)
		printSummary(summary)
	}
	if failed {
		os.Exit(1)
	}
}

func loadRequest() *config.InstallRequest {
	path := flags.createFromConfig
	if path == "default" || path == "" {
		path = "config.toml"
	}
	req, err := config.LoadFile(path)
	if err != nil {
		errColor.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(2)
	}
	return req
}

func wheelMinors() []string {
	if flags.wheelPyVersions != "" {
		parts := strings.Split(flags.wheelPyVersions, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return parts
	}
	if flags.pythonVersion != "" {
		return []string{flags.pythonVersion}
	}
	return nil
}

func printSummary(s *offline.Summary) {
	fmt.Printf("version: %s\n", s.Version)
	if s.ArchivePath != "" {
		fmt.Printf("archive: %s (%d bytes)\n", s.ArchivePath, s.ArchiveSize)
	}
	for _, i := range s.Interpreters {
		status := "ok"
		if !i.OK {
			status = "failed: " + i.Error
		}
		fmt.Printf("  python %s: %s\n", i.Minor, status)
		for _, pkg := range i.BuiltFromSource {
			fmt.Printf("    built from source: %s\n", pkg)
		}
	}
	if s.Warning != "" {
		fmt.Printf("warning: %s\n", s.Warning)
	}
}

func sanitize(version string) string {
	return strings.NewReplacer("/", "-", ":", "-").Replace(version)
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&flags.createFromConfig, "create-from-config", "", `Build archives from a TOML config path (or "default")`)
	f.StringVar(&flags.archivePath, "archive", "", "Extract an existing archive instead of building")
	f.StringVar(&flags.installDir, "install-dir", "", "Destination directory for --archive extraction or built bundles")
	f.StringVar(&flags.pythonVersion, "python-version", "", "Interpreter minor to build wheels for (e.g. 3.11)")
	f.StringVar(&flags.wheelPyVersions, "wheel-python-versions", "", "Comma-separated interpreter minors to build wheel sets for")
	f.StringVar(&flags.idfVersionOverride, "idf-version-override", "", "Build this version label instead of the configured ones")
	f.BoolVar(&flags.buildAllVersions, "build-all-versions", false, "Build every configured version, not just the first")
	f.BoolVar(&flags.listVersions, "list-versions", false, "List the versions the config would build")
	f.CountVarP(&flags.verbose, "verbose", "v", "Increase verbosity")

	rootCmd.Version = buildinfo.Version()
}
