package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/idftools/eim/internal/catalog"
	"github.com/idftools/eim/internal/config"
	"github.com/idftools/eim/internal/eimerrors"
	"github.com/idftools/eim/internal/log"
	"github.com/idftools/eim/internal/progress"
	"github.com/idftools/eim/internal/source"
	"github.com/idftools/eim/internal/toolinstall"
	"github.com/idftools/eim/internal/venv"
)

const manifestJSON = `{
  "version": "1",
  "tools": [
    {
      "name": "ninja",
      "description": "build system",
      "export_paths": [""],
      "versions": [
        {"version": "1.11.1", "status": "recommended",
         "platforms": {"any": {"url": "https://example.com/ninja.zip", "sha256": "00", "size": 10}}}
      ]
    }
  ]
}`

// fakeOrchestrator stubs every stage with cheap local work so the state
// machine and its event stream can be exercised hermetically.
func fakeOrchestrator(t *testing.T) *Orchestrator {
	t.Helper()
	return &Orchestrator{
		Logger:       log.NewNoop(),
		checkPrereqs: func(ctx context.Context) []string { return nil },
		installPrereqs: func(ctx context.Context, missing []string) error {
			t.Fatal("installPrereqs should not run when nothing is missing")
			return nil
		},
		acquireSource: func(ctx context.Context, opts source.Options) (*source.Result, error) {
			toolsDir := filepath.Join(opts.DestDir, "tools")
			if err := os.MkdirAll(toolsDir, 0o755); err != nil {
				return nil, err
			}
			if err := os.WriteFile(filepath.Join(toolsDir, "tools.json"), []byte(manifestJSON), 0o644); err != nil {
				return nil, err
			}
			if opts.Progress != nil {
				opts.Progress(50, "")
				opts.Progress(100, "")
			}
			return &source.Result{ResolvedCommit: "a1b2c3d4e5f60718293a4b5c6d7e8f9012345678"}, nil
		},
		installTool: func(ctx context.Context, tool catalog.ToolSpec, sel catalog.Selection, downloadDir, installRoot string) (*toolinstall.Result, error) {
			dir := toolinstall.ToolVersionDir(installRoot, tool.Name, sel.VersionLabel)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
			return &toolinstall.Result{Name: tool.Name, VersionLabel: sel.VersionLabel, InstallDir: dir}, nil
		},
		provisionVE: func(ctx context.Context, opts venv.Options) (*venv.Result, error) {
			return &venv.Result{InterpreterPath: opts.VEDir, InterpreterMinor: "3.11"}, nil
		},
		writeArtifact: func(paths *config.VersionPaths, exportPaths []string) error { return nil },
	}
}

func requestInto(t *testing.T, versions ...string) *config.InstallRequest {
	t.Helper()
	return &config.InstallRequest{
		InstallationRoot: t.TempDir(),
		Versions:         versions,
		ChipTargets:      []string{"all"},
	}
}

func collect(events *[]progress.Event) progress.Sink {
	return func(e progress.Event) { *events = append(*events, e) }
}

// Property 9: a successful single-version install emits non-decreasing
// percentages and terminates with Complete at 100.
func TestInstallSingleVersionProgressIsMonotonicAndCompletes(t *testing.T) {
	o := fakeOrchestrator(t)
	req := requestInto(t, "v5.1.2")

	var events []progress.Event
	em := progress.NewEmitter(collect(&events), "v5.1.2")
	require.NoError(t, o.InstallSingleVersion(context.Background(), req, "v5.1.2", em))

	require.NotEmpty(t, events)
	last := -1
	for _, e := range events {
		require.GreaterOrEqual(t, e.Percentage, last, "stage %s", e.Stage)
		last = e.Percentage
	}
	final := events[len(events)-1]
	require.Equal(t, progress.StageComplete, final.Stage)
	require.Equal(t, 100, final.Percentage)
}

func TestInstallSingleVersionWalksStatesInOrder(t *testing.T) {
	o := fakeOrchestrator(t)
	req := requestInto(t, "v5.1.2")

	var events []progress.Event
	require.NoError(t, o.InstallSingleVersion(context.Background(), req, "v5.1.2", progress.NewEmitter(collect(&events), "v5.1.2")))

	var stages []progress.Stage
	seen := map[progress.Stage]bool{}
	for _, e := range events {
		if !seen[e.Stage] {
			seen[e.Stage] = true
			stages = append(stages, e.Stage)
		}
	}
	require.Equal(t, []progress.Stage{
		progress.StageChecking,
		progress.StagePrerequisites,
		progress.StageDownload,
		progress.StageExtract,
		progress.StageTools,
		progress.StagePython,
		progress.StageConfigure,
		progress.StageComplete,
	}, stages)
}

func TestInstallBatchMapsVersionsIntoNinetyPercent(t *testing.T) {
	o := fakeOrchestrator(t)
	req := requestInto(t, "v5.1.2", "v5.2.1")

	var events []progress.Event
	require.NoError(t, o.InstallBatch(context.Background(), req, collect(&events)))

	last := -1
	for _, e := range events {
		require.GreaterOrEqual(t, e.Percentage, last)
		last = e.Percentage
	}
	final := events[len(events)-1]
	require.Equal(t, progress.StageComplete, final.Stage)
	require.Equal(t, 100, final.Percentage)

	// The first version's terminal event lands at its span top (45), not
	// at 100: the second half belongs to the second version.
	var firstComplete int
	for _, e := range events {
		if e.Stage == progress.StageComplete {
			firstComplete = e.Percentage
			break
		}
	}
	require.Equal(t, 45, firstComplete)
}

func TestPrerequisiteFailureEmitsErrorEvent(t *testing.T) {
	o := fakeOrchestrator(t)
	o.checkPrereqs = func(ctx context.Context) []string { return []string{"cmake"} }
	req := requestInto(t, "v5.1.2")

	var events []progress.Event
	err := o.InstallSingleVersion(context.Background(), req, "v5.1.2", progress.NewEmitter(collect(&events), "v5.1.2"))
	require.Error(t, err)

	final := events[len(events)-1]
	require.Equal(t, progress.StageError, final.Stage)
	require.Zero(t, final.Percentage)
	require.Equal(t, "PrerequisiteMissing", final.Message)
	require.Contains(t, final.Detail, "cmake")
}

// Scenario S5: a checksum failure during tool install halts the version
// with an Error event and leaves no registry write behind.
func TestToolChecksumFailureHaltsVersion(t *testing.T) {
	o := fakeOrchestrator(t)
	o.installTool = func(ctx context.Context, tool catalog.ToolSpec, sel catalog.Selection, downloadDir, installRoot string) (*toolinstall.Result, error) {
		return nil, eimerrors.Checksum("cmake.tar.gz", "aa", "bb")
	}
	registered := false
	o.writeArtifact = func(paths *config.VersionPaths, exportPaths []string) error {
		registered = true
		return nil
	}
	req := requestInto(t, "v5.1.2")

	var events []progress.Event
	err := o.InstallSingleVersion(context.Background(), req, "v5.1.2", progress.NewEmitter(collect(&events), "v5.1.2"))
	require.Error(t, err)
	require.False(t, registered)

	final := events[len(events)-1]
	require.Equal(t, progress.StageError, final.Stage)
	require.Equal(t, "Checksum", final.Message)

	var typed *eimerrors.Error
	require.ErrorAs(t, err, &typed)
	require.Equal(t, "v5.1.2", typed.Version)
}

func TestBatchHaltsOnFirstError(t *testing.T) {
	o := fakeOrchestrator(t)
	calls := 0
	o.acquireSource = func(ctx context.Context, opts source.Options) (*source.Result, error) {
		calls++
		return nil, eimerrors.New(eimerrors.KindGit, "clone failed")
	}
	req := requestInto(t, "v5.1.2", "v5.2.1")

	var events []progress.Event
	require.Error(t, o.InstallBatch(context.Background(), req, collect(&events)))
	require.Equal(t, 1, calls)
}

func TestCheckPathsRejectsNonEmptyDir(t *testing.T) {
	o := fakeOrchestrator(t)
	req := requestInto(t, "v5.1.2")
	versionRoot := filepath.Join(req.InstallationRoot, "v5.1.2")
	require.NoError(t, os.MkdirAll(versionRoot, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(versionRoot, "stray.txt"), []byte("x"), 0o644))

	var events []progress.Event
	err := o.InstallSingleVersion(context.Background(), req, "v5.1.2", progress.NewEmitter(collect(&events), "v5.1.2"))
	require.Error(t, err)
	require.Equal(t, progress.StageError, events[len(events)-1].Stage)
	require.Equal(t, "PathInvalid", events[len(events)-1].Message)
}

func TestInstallBatchRejectsEmptyVersionList(t *testing.T) {
	o := fakeOrchestrator(t)
	req := requestInto(t)
	require.Error(t, o.InstallBatch(context.Background(), req, nil))
}
