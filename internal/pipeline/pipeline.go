// Package pipeline implements the Pipeline Orchestrator (C10): the
// per-version installation state machine tying the fetcher, source
// acquirer, tool installer, VE provisioner, and post-install writer
// together, publishing progress events along the way.
//
// The orchestrator holds no component singletons; each stage is a
// function invoked with explicit parameters, swappable in tests.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/idftools/eim/internal/activation"
	"github.com/idftools/eim/internal/catalog"
	"github.com/idftools/eim/internal/config"
	"github.com/idftools/eim/internal/eimerrors"
	"github.com/idftools/eim/internal/execrun"
	"github.com/idftools/eim/internal/fetch"
	"github.com/idftools/eim/internal/log"
	"github.com/idftools/eim/internal/offline"
	"github.com/idftools/eim/internal/prereq"
	"github.com/idftools/eim/internal/progress"
	"github.com/idftools/eim/internal/source"
	"github.com/idftools/eim/internal/toolinstall"
	"github.com/idftools/eim/internal/venv"
)

// Stage spans within one version's [0,100] progression.
const (
	spanPrereqStart = 5
	spanDownload    = 10
	spanExtract     = 55
	spanTools       = 65
	spanToolsEnd    = 85
	spanPython      = 85
	spanConfigure   = 95
)

// batchShare is how much of the overall percentage a batch's versions
// share; the trailing remainder is reserved for global post-install.
const batchShare = 90

// Orchestrator drives installs. Stage functions default to the real
// components and are swappable in tests.
type Orchestrator struct {
	Logger log.Logger
	// RegistryPath overrides the registry location (tests).
	RegistryPath string

	checkPrereqs   func(ctx context.Context) []string
	installPrereqs func(ctx context.Context, missing []string) error
	acquireSource  func(ctx context.Context, opts source.Options) (*source.Result, error)
	installTool    func(ctx context.Context, tool catalog.ToolSpec, sel catalog.Selection, downloadDir, installRoot string) (*toolinstall.Result, error)
	provisionVE    func(ctx context.Context, opts venv.Options) (*venv.Result, error)
	writeArtifact  func(paths *config.VersionPaths, exportPaths []string) error
}

// New returns an Orchestrator wired to the real components.
func New() *Orchestrator {
	o := &Orchestrator{Logger: log.Default()}

	checker := prereq.New()
	o.checkPrereqs = checker.Check
	o.installPrereqs = checker.Install

	acquirer := source.New()
	o.acquireSource = acquirer.Acquire

	o.provisionVE = func(ctx context.Context, opts venv.Options) (*venv.Result, error) {
		return venv.New().Provision(ctx, opts)
	}
	return o
}

// installerFor builds the tool installer for one run, offline-aware.
func (o *Orchestrator) installerFor(offlineMode bool) *toolinstall.Installer {
	f := fetch.New()
	f.Offline = offlineMode
	return &toolinstall.Installer{Fetcher: f, Runner: execrun.Default(), Logger: o.Logger}
}

// InstallBatch installs every version in req in order, mapping version i
// of N into [i/N, (i+1)/N] of the batch share and halting on the first
// error. The trailing share is global post-install.
func (o *Orchestrator) InstallBatch(ctx context.Context, req *config.InstallRequest, sink progress.Sink) error {
	versions := req.Versions
	if len(versions) == 0 {
		return eimerrors.New(eimerrors.KindConfig, "no versions requested")
	}

	em := progress.NewEmitter(sink, "")
	n := len(versions)
	for i, version := range versions {
		lo := i * batchShare / n
		hi := (i + 1) * batchShare / n
		if err := o.InstallSingleVersion(ctx, req, version, em.Span(lo, hi).Tagged(version)); err != nil {
			return err
		}
	}

	em.Emit(progress.StageConfigure, 95, "finalizing", "")
	em.Emit(progress.StageComplete, 100, "all versions installed", "")
	return nil
}

// InstallSingleVersion runs the per-version state machine:
// Checking -> Prerequisites -> Download -> Extract -> Tools -> Python ->
// Configure -> Complete, with Error reachable from every state. The
// returned error, when non-nil, has already been published as a terminal
// Error event.
func (o *Orchestrator) InstallSingleVersion(ctx context.Context, req *config.InstallRequest, version string, em *progress.Emitter) error {
	fail := func(err error) error {
		kind := eimerrors.KindConfig
		detail := err.Error()
		var typed *eimerrors.Error
		if errors.As(err, &typed) {
			kind = typed.Kind
			detail = typed.Detail
		}
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			kind = eimerrors.KindCancelled
			detail = "operation cancelled"
		}
		em.Error(kind.String(), detail)
		var tagged *eimerrors.Error
		if errors.As(err, &tagged) {
			return tagged.WithVersion(version)
		}
		return err
	}

	// Checking: validate the target path, derive every per-version path.
	em.Emit(progress.StageChecking, 0, "checking installation path", "")
	var staging *offline.Staging
	if req.LocalArchivePath != "" {
		var err error
		staging, err = offline.Open(req.LocalArchivePath, filepath.Join(req.InstallationRoot, ".eim-staging"))
		if err != nil {
			return fail(err)
		}
	}
	paths, err := o.checkPaths(req, version)
	if err != nil {
		return fail(err)
	}

	// Prerequisites.
	em.Emit(progress.StagePrerequisites, spanPrereqStart, "checking prerequisites", "")
	if !req.Flags.SkipPrerequisitesCheck {
		if missing := o.checkPrereqs(ctx); len(missing) > 0 {
			if !req.Flags.InstallPrerequisites {
				return fail(eimerrors.PrerequisiteMissing(missing))
			}
			if err := o.installPrereqs(ctx, missing); err != nil {
				return fail(err)
			}
			if still := o.checkPrereqs(ctx); len(still) > 0 {
				return fail(eimerrors.PrerequisiteMissing(still))
			}
		}
	}

	// Download: populate the source tree.
	em.Emit(progress.StageDownload, spanDownload, "fetching source tree", "")
	if err := o.populateSource(ctx, req, version, paths, staging, em); err != nil {
		return fail(err)
	}

	// Extract: the source tree is on disk; nothing left to unpack for the
	// git path, a copy completion marker for the offline path.
	em.Emit(progress.StageExtract, spanExtract, "source tree ready", "")

	// Tools.
	em.Emit(progress.StageTools, spanTools, "resolving tool catalog", "")
	exportPaths, err := o.installTools(ctx, req, paths, staging, em)
	if err != nil {
		return fail(err)
	}

	// Python.
	em.Emit(progress.StagePython, spanPython, "provisioning python environment", "")
	if err := o.provisionPython(ctx, req, version, paths, staging); err != nil {
		return fail(err)
	}

	// Configure: activation artifact + registry.
	em.Emit(progress.StageConfigure, spanConfigure, "writing activation artifact", "")
	if o.writeArtifact != nil {
		if err := o.writeArtifact(paths, exportPaths); err != nil {
			return fail(err)
		}
	} else {
		writer := activation.New()
		writer.Logger = o.Logger
		writer.RegistryPath = o.RegistryPath
		if _, err := writer.Write(paths, exportPaths); err != nil {
			return fail(err)
		}
	}

	em.Emit(progress.StageComplete, 100, fmt.Sprintf("version %s installed", paths.ResolvedVersionLabel), "")
	return nil
}

// checkPaths validates the version root per the Checking-state contract:
// it must be empty, nonexistent, or already hold a valid framework tree.
func (o *Orchestrator) checkPaths(req *config.InstallRequest, version string) (*config.VersionPaths, error) {
	paths := req.DerivePaths(version, "")
	if paths.UsingExistingSource {
		return paths, nil
	}

	entries, err := os.ReadDir(paths.VersionRoot)
	if err != nil {
		if os.IsNotExist(err) {
			return paths, nil
		}
		return nil, eimerrors.Wrap(eimerrors.KindPathInvalid, "read installation directory", err)
	}
	// A partially populated root from an aborted run is resumable when it
	// contains an entry named after the source directory (its contents are
	// not inspected); any other non-empty root is refused.
	for _, e := range entries {
		if e.Name() == config.FrameworkDirname {
			return paths, nil
		}
	}
	if len(entries) > 0 {
		return nil, eimerrors.New(eimerrors.KindPathInvalid, "installation directory "+paths.VersionRoot+" is not empty")
	}
	return paths, nil
}

// populateSource fills paths.SourceRoot, from the staged offline tree or
// from a shallow network acquisition.
func (o *Orchestrator) populateSource(ctx context.Context, req *config.InstallRequest, version string, paths *config.VersionPaths, staging *offline.Staging, em *progress.Emitter) error {
	if paths.UsingExistingSource {
		o.Logger.Info("pipeline: using existing source tree", "path", paths.SourceRoot)
		return nil
	}
	if _, err := os.Stat(filepath.Join(paths.SourceRoot, config.ToolsManifestRelPath)); err == nil {
		o.Logger.Info("pipeline: source tree already populated", "path", paths.SourceRoot)
		return nil
	}

	if staging != nil {
		src, err := staging.SourceTree(version)
		if err != nil {
			return err
		}
		return offline.CopyTree(src, paths.SourceRoot)
	}

	span := em.Span(spanDownload, spanExtract)
	_, err := o.acquireSource(ctx, source.Options{
		URL:            source.ResolveRepoURL(req.RepoOverride, req.SourceMirror),
		Ref:            version,
		DestDir:        paths.SourceRoot,
		WithSubmodules: req.Flags.RecurseSubmodules,
		Progress: func(percent int, detail string) {
			span.Emit(progress.StageDownload, percent, "fetching source tree", detail)
		},
	})
	return err
}

// installTools resolves the catalog and materializes each selected tool,
// scaling per-tool progress into the tools span. Returns the computed
// export paths.
func (o *Orchestrator) installTools(ctx context.Context, req *config.InstallRequest, paths *config.VersionPaths, staging *offline.Staging, em *progress.Emitter) ([]string, error) {
	manifest, err := catalog.ParseManifest(filepath.Join(paths.SourceRoot, config.ToolsManifestRelPath))
	if err != nil {
		return nil, err
	}
	tag, err := catalog.HostPlatformTag()
	if err != nil {
		return nil, err
	}
	manifest = catalog.ApplyPlatformOverrides(manifest, tag)

	targets := req.ChipTargets
	if req.TargetsAll() {
		targets = []string{"all"}
	}
	tools := catalog.FilterByTargets(manifest.Tools, targets)
	selections, warnings := catalog.SelectDownloads(tools, tag)
	for _, w := range warnings {
		o.Logger.Warn("pipeline: " + w)
	}

	downloadDir := paths.ToolDownloadDir
	installer := o.installerFor(false)
	if staging != nil {
		downloadDir = staging.DistDir()
		installer = o.installerFor(true)
	}
	installFn := o.installTool
	if installFn == nil {
		installFn = installer.EnsureInstalled
	}

	// Deterministic install order for reproducible progress streams.
	names := make([]string, 0, len(selections))
	for name := range selections {
		names = append(names, name)
	}
	sort.Strings(names)

	span := em.Span(spanTools, spanToolsEnd)
	byName := toolsByName(tools)
	for i, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, eimerrors.Cancelled
		}
		sel := selections[name]
		if req.ToolMirror != "" && staging == nil {
			sel.Download.URL = fetch.RewriteDownloadSet([]string{sel.Download.URL}, req.ToolMirror)[0]
		}
		span.Emit(progress.StageTools, i*100/len(names), "installing "+name, sel.VersionLabel)
		start := time.Now()
		if _, err := installFn(ctx, byName[name], sel, downloadDir, paths.ToolInstallDir); err != nil {
			return nil, err
		}
		span.Emit(progress.StageTools, (i+1)*100/len(names), "installed "+name,
			fmt.Sprintf("%s, %s in %s", sel.VersionLabel, formatSize(sel.Download.Size), time.Since(start).Round(time.Millisecond)))
	}
	span.Emit(progress.StageTools, 100, "tools installed", "")

	return catalog.ComputeExportPaths(tools, paths.ToolInstallDir)
}

func formatSize(bytes int64) string {
	switch {
	case bytes >= 1<<20:
		return fmt.Sprintf("%.1f MiB", float64(bytes)/(1<<20))
	case bytes >= 1<<10:
		return fmt.Sprintf("%.1f KiB", float64(bytes)/(1<<10))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

func toolsByName(tools []catalog.ToolSpec) map[string]catalog.ToolSpec {
	out := make(map[string]catalog.ToolSpec, len(tools))
	for _, t := range tools {
		out[t.Name] = t
	}
	return out
}

// provisionPython provisions the version's VE, online or from the staged
// wheel cache.
func (o *Orchestrator) provisionPython(ctx context.Context, req *config.InstallRequest, version string, paths *config.VersionPaths, staging *offline.Staging) error {
	opts := venv.Options{
		VEDir:            paths.VEDir,
		FrameworkVersion: version,
		RequirementFiles: requirementFiles(paths.SourceRoot, req.FeatureTags),
		Mode:             venv.ModeOnline,
		PackageMirror:    req.InterpreterMirror,
		ConstraintsURL:   "https://dl.espressif.com/dl/esp-idf",
	}
	if staging != nil {
		opts.Mode = venv.ModeOffline
		opts.OfflineArchiveDir = staging.Root
	}
	_, err := o.provisionVE(ctx, opts)
	return err
}

// requirementFiles returns the core requirements file followed by one
// per enabled feature, keeping only files that exist in this tree.
func requirementFiles(sourceRoot string, features []string) []string {
	reqDir := filepath.Join(sourceRoot, "tools", "requirements")
	candidates := []string{filepath.Join(reqDir, "requirements.core.txt")}
	for _, f := range features {
		candidates = append(candidates, filepath.Join(reqDir, "requirements."+f+".txt"))
	}

	var out []string
	for _, c := range candidates {
		if _, err := os.Stat(c); err == nil {
			out = append(out, c)
		}
	}
	if len(out) == 0 {
		// Pre-5.0 trees keep a single flat requirements.txt.
		flat := filepath.Join(sourceRoot, "requirements.txt")
		if _, err := os.Stat(flat); err == nil {
			out = append(out, flat)
		}
	}
	return out
}
