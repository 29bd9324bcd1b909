package offline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/BurntSushi/toml"

	"github.com/idftools/eim/internal/archive"
	"github.com/idftools/eim/internal/catalog"
	"github.com/idftools/eim/internal/config"
	"github.com/idftools/eim/internal/eimerrors"
	"github.com/idftools/eim/internal/execrun"
	"github.com/idftools/eim/internal/fetch"
	"github.com/idftools/eim/internal/log"
	"github.com/idftools/eim/internal/source"
	"github.com/idftools/eim/internal/venv"
)

// BuildOptions configures one archive build.
type BuildOptions struct {
	Version      string
	StagingDir   string
	OutPath      string
	RepoStub     string
	SourceMirror string
	ToolMirror   string
	ChipTargets  []string
	// WheelInterpreterMinors lists the interpreter minors ("3.10",
	// "3.11") to build wheel sets for. Empty defaults to the running
	// host's detected interpreter only.
	WheelInterpreterMinors []string
	// ConstraintsBaseURL is where espidf.constraints files live.
	ConstraintsBaseURL string
	// ScoopDir optionally stages a Windows host-bootstrap bundle.
	ScoopDir string
	// SkipPack leaves the staging tree unpacked (used by --install-dir
	// style extraction flows and tests).
	SkipPack bool
}

// InterpreterSummary reports one interpreter minor's wheel-set outcome.
type InterpreterSummary struct {
	Minor           string   `json:"minor"`
	OK              bool     `json:"ok"`
	Error           string   `json:"error,omitempty"`
	BuiltFromSource []string `json:"built_from_source,omitempty"`
}

// Summary is the machine-readable build result for one version.
type Summary struct {
	Version      string               `json:"version"`
	ArchivePath  string               `json:"archive_path,omitempty"`
	ArchiveSize  int64                `json:"archive_size,omitempty"`
	Interpreters []InterpreterSummary `json:"interpreters"`
	// Warning is set when some interpreters failed but the archive was
	// still produced.
	Warning string `json:"warning,omitempty"`
}

// Builder assembles offline archives.
type Builder struct {
	Acquirer *source.Acquirer
	Fetcher  *fetch.Fetcher
	Runner   *execrun.Runner
	Logger   log.Logger
}

// NewBuilder returns a Builder on the default collaborators.
func NewBuilder() *Builder {
	return &Builder{
		Acquirer: source.New(),
		Fetcher:  fetch.New(),
		Runner:   execrun.Default(),
		Logger:   log.Default(),
	}
}

// Build assembles a self-contained archive for opts.Version: source tree
// with submodules, verified tool blobs, constraints file, per-interpreter
// wheel sets, optional bootstrap bundle, and the embedded config. Partial
// wheel-set failure still produces the archive with a warning status.
func (b *Builder) Build(ctx context.Context, opts BuildOptions) (*Summary, error) {
	summary := &Summary{Version: opts.Version}

	srcDir := filepath.Join(opts.StagingDir, SourceTreeRel(opts.Version, config.FrameworkDirname))
	if _, err := b.Acquirer.Acquire(ctx, source.Options{
		URL:            source.ResolveRepoURL(opts.RepoStub, opts.SourceMirror),
		Ref:            opts.Version,
		DestDir:        srcDir,
		WithSubmodules: true,
	}); err != nil {
		return nil, err
	}

	if err := b.syncComponents(ctx, srcDir); err != nil {
		b.Logger.Warn("offline: component sync failed", "error", err)
	}

	if err := b.downloadToolBlobs(ctx, srcDir, opts); err != nil {
		return nil, err
	}

	if err := b.downloadConstraints(ctx, opts); err != nil {
		return nil, err
	}

	merged, err := b.mergeRequirements(srcDir, opts.StagingDir)
	if err != nil {
		return nil, err
	}
	summary.Interpreters = b.buildWheelSets(ctx, opts, merged)

	failed := 0
	for _, s := range summary.Interpreters {
		if !s.OK {
			failed++
		}
	}
	if failed == len(summary.Interpreters) && failed > 0 {
		return summary, eimerrors.New(eimerrors.KindVE, "no interpreter produced a wheel set")
	}
	if failed > 0 {
		summary.Warning = fmt.Sprintf("%d of %d interpreter wheel sets failed", failed, len(summary.Interpreters))
	}

	if opts.ScoopDir != "" {
		if err := CopyTree(opts.ScoopDir, filepath.Join(opts.StagingDir, ScoopDirName)); err != nil {
			return nil, eimerrors.Wrap(eimerrors.KindArchive, "stage bootstrap bundle", err)
		}
	}

	if err := b.writeConfig(opts); err != nil {
		return nil, err
	}

	if !opts.SkipPack {
		if err := Pack(opts.StagingDir, opts.OutPath, DefaultCompressionLevel); err != nil {
			return nil, err
		}
		summary.ArchivePath = opts.OutPath
		if info, statErr := os.Stat(opts.OutPath); statErr == nil {
			summary.ArchiveSize = info.Size()
		}
	}
	return summary, nil
}

// syncComponents runs the framework's component-manifest synchronization
// in a disposable VE, populating components/ under the staging source
// tree so offline installs never reach for the component registry.
func (b *Builder) syncComponents(ctx context.Context, srcDir string) error {
	interp, err := venv.DetectInterpreter(ctx, b.Runner)
	if err != nil {
		return err
	}
	veDir := filepath.Join(srcDir, "..", ".eim-sync-ve")
	defer os.RemoveAll(veDir)

	res, err := b.Runner.Run(ctx, interp, []string{"-m", "venv", veDir})
	if err != nil || res.ExitCode != 0 {
		return eimerrors.New(eimerrors.KindVE, "disposable VE creation failed")
	}
	vePython := venv.InterpreterPath(veDir)

	helper := filepath.Join(srcDir, "tools", "idf_tools.py")
	if _, statErr := os.Stat(helper); statErr != nil {
		return nil // older trees have no sync step
	}
	res, err = b.Runner.RunIn(ctx, vePython, []string{helper, "download-components"}, srcDir)
	if err != nil {
		return eimerrors.Wrap(eimerrors.KindVE, "component sync", err)
	}
	if res.ExitCode != 0 {
		return eimerrors.New(eimerrors.KindVE, "component sync exited "+fmt.Sprint(res.ExitCode)+": "+res.Stderr)
	}
	return nil
}

// downloadToolBlobs resolves the tool catalog for every platform tag the
// archive should serve (the build host's) and downloads each blob into
// dist/, verifying checksums.
func (b *Builder) downloadToolBlobs(ctx context.Context, srcDir string, opts BuildOptions) error {
	manifest, err := catalog.ParseManifest(filepath.Join(srcDir, config.ToolsManifestRelPath))
	if err != nil {
		return err
	}
	tag, err := catalog.HostPlatformTag()
	if err != nil {
		return err
	}
	manifest = catalog.ApplyPlatformOverrides(manifest, tag)
	targets := opts.ChipTargets
	if len(targets) == 0 {
		targets = []string{"all"}
	}
	tools := catalog.FilterByTargets(manifest.Tools, targets)
	selections, warnings := catalog.SelectDownloads(tools, tag)
	for _, w := range warnings {
		b.Logger.Warn("offline: " + w)
	}

	distDir := filepath.Join(opts.StagingDir, DistDirName)
	for name, sel := range selections {
		url := sel.Download.URL
		if opts.ToolMirror != "" {
			url = fetch.RewriteDownloadSet([]string{url}, opts.ToolMirror)[0]
		}
		path, err := b.Fetcher.Download(ctx, url, distDir, "", sel.Download.SHA256)
		if err != nil {
			return err
		}
		if !archive.Verify(sel.Download.SHA256, path) {
			actual, _ := archive.Sha256Of(path)
			os.Remove(path)
			return eimerrors.Checksum(path, sel.Download.SHA256, actual)
		}
		b.Logger.Info("offline: staged tool blob", "tool", name, "path", path)
	}
	return nil
}

func (b *Builder) downloadConstraints(ctx context.Context, opts BuildOptions) error {
	name, err := venv.ConstraintsFileName(opts.Version)
	if err != nil {
		return err
	}
	base := strings.TrimSuffix(opts.ConstraintsBaseURL, "/")
	if base == "" {
		base = "https://dl.espressif.com/dl/esp-idf"
	}
	_, err = b.Fetcher.Download(ctx, base+"/"+name, opts.StagingDir, name, "")
	return err
}

// mergeRequirements concatenates the core requirements file and every
// feature requirements file into one pip input for wheel downloading.
func (b *Builder) mergeRequirements(srcDir, stagingDir string) (string, error) {
	reqDir := filepath.Join(srcDir, "tools", "requirements")
	entries, err := os.ReadDir(reqDir)
	if err != nil {
		return "", eimerrors.Wrap(eimerrors.KindVE, "list requirements files", err)
	}

	var merged strings.Builder
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "requirements.") || !strings.HasSuffix(e.Name(), ".txt") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(reqDir, e.Name()))
		if err != nil {
			return "", eimerrors.Wrap(eimerrors.KindVE, "read "+e.Name(), err)
		}
		merged.WriteString("# " + e.Name() + "\n")
		merged.Write(data)
		merged.WriteString("\n")
	}

	out := filepath.Join(stagingDir, "requirements.merged.txt")
	if err := os.WriteFile(out, []byte(merged.String()), 0o644); err != nil {
		return "", eimerrors.Wrap(eimerrors.KindVE, "write merged requirements", err)
	}
	return out, nil
}

// buildWheelSets creates one wheels_py<MMm>/ per requested interpreter
// minor, running pip in download-only mode inside a disposable VE. The
// first attempt restricts to prebuilt wheels; on failure it retries
// without the restriction and records which packages had to be built
// from source.
func (b *Builder) buildWheelSets(ctx context.Context, opts BuildOptions, mergedReq string) []InterpreterSummary {
	minors := opts.WheelInterpreterMinors
	if len(minors) == 0 {
		minors = []string{""} // host default interpreter
	}

	results := make([]InterpreterSummary, len(minors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(2) // pip downloads are bandwidth-bound; more buys nothing

	for i, minor := range minors {
		g.Go(func() error {
			results[i] = b.buildOneWheelSet(gctx, opts, mergedReq, minor)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (b *Builder) buildOneWheelSet(ctx context.Context, opts BuildOptions, mergedReq, minor string) InterpreterSummary {
	sum := InterpreterSummary{Minor: minor}

	interp := "python" + minor
	if minor == "" {
		detected, err := venv.DetectInterpreter(ctx, b.Runner)
		if err != nil {
			sum.Error = err.Error()
			return sum
		}
		interp = detected
	}

	veDir := filepath.Join(opts.StagingDir, ".eim-wheel-ve-"+strings.ReplaceAll(minor, ".", ""))
	defer os.RemoveAll(veDir)
	res, err := b.Runner.Run(ctx, interp, []string{"-m", "venv", veDir})
	if err != nil || res.ExitCode != 0 {
		sum.Error = "disposable VE creation failed for " + interp
		return sum
	}
	vePython := venv.InterpreterPath(veDir)

	if minor == "" {
		out, err := b.Runner.Run(ctx, vePython, []string{"-c", "import sys; print(f'{sys.version_info[0]}.{sys.version_info[1]}')"})
		if err != nil || out.ExitCode != 0 {
			sum.Error = "could not detect interpreter minor"
			return sum
		}
		minor = strings.TrimSpace(out.Stdout)
		sum.Minor = minor
	}
	wheelDir := filepath.Join(opts.StagingDir, WheelsDirName(minor))

	constraints, err := venv.ConstraintsFileName(opts.Version)
	if err != nil {
		sum.Error = err.Error()
		return sum
	}
	baseArgs := []string{"-m", "pip", "download", "-r", mergedReq, "--constraint", filepath.Join(opts.StagingDir, constraints), "--dest", wheelDir}

	res, err = b.Runner.Run(ctx, vePython, append(baseArgs, "--only-binary=:all:"))
	if err == nil && res.ExitCode == 0 {
		sum.OK = true
		return sum
	}
	b.Logger.Warn("offline: binary-only wheel download failed, retrying with source builds", "minor", minor)

	res, err = b.Runner.Run(ctx, vePython, baseArgs)
	if err != nil {
		sum.Error = err.Error()
		return sum
	}
	if res.ExitCode != 0 {
		sum.Error = strings.TrimSpace(res.Stderr)
		return sum
	}
	sum.OK = true
	sum.BuiltFromSource = sdistPackages(wheelDir)
	return sum
}

// sdistPackages lists package archives in wheelDir that are source
// distributions rather than wheels.
func sdistPackages(wheelDir string) []string {
	entries, err := os.ReadDir(wheelDir)
	if err != nil {
		return nil
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".zip") {
			out = append(out, name)
		}
	}
	return out
}

// writeConfig materializes the archive's config.toml: an InstallRequest
// naming exactly one version and pointing at this archive.
func (b *Builder) writeConfig(opts BuildOptions) error {
	doc := map[string]any{
		"versions":           []string{opts.Version},
		"chip_targets":       opts.ChipTargets,
		"local_archive_path": filepath.Base(opts.OutPath),
	}
	f, err := os.Create(filepath.Join(opts.StagingDir, ConfigFileName))
	if err != nil {
		return eimerrors.Wrap(eimerrors.KindConfig, "create config.toml", err)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(doc); err != nil {
		return eimerrors.Wrap(eimerrors.KindConfig, "encode config.toml", err)
	}
	return nil
}
