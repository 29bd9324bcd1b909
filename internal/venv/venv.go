// Package venv implements the VE Provisioner (C7): detecting a suitable
// host interpreter, creating a dedicated virtual environment, and
// installing the framework's pinned requirements into it — either
// downloading a constraints file and packages (Online) or installing
// entirely from a bundled wheel cache (Offline).
package venv

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	goversion "github.com/aquasecurity/go-version/pkg/version"

	"github.com/idftools/eim/internal/eimerrors"
	"github.com/idftools/eim/internal/execrun"
	"github.com/idftools/eim/internal/fetch"
	"github.com/idftools/eim/internal/log"
)

// minInterpreterConstraint bounds the supported interpreter range:
// version >= 3.10, < 3.14.
const (
	minInterpreterConstraint = ">= 3.10, < 3.14"
)

// Mode selects where packages and the constraints file come from.
type Mode int

const (
	ModeOnline Mode = iota
	ModeOffline
)

// Options configures one provisioning run.
type Options struct {
	VEDir             string
	FrameworkVersion  string // e.g. "v5.2.1", used to name the constraints file
	RequirementFiles  []string
	Mode              Mode
	PackageMirror     string // Online: --index-url
	ConstraintsURL    string // Online: base URL of espidf.constraints.<maj>.<min>.txt
	OfflineArchiveDir string // Offline: directory holding constraints + wheels_py<MMm>/
	Reinstall         bool
}

// Result reports what was provisioned.
type Result struct {
	InterpreterPath  string
	InterpreterMinor string // e.g. "3.11"
	ConstraintsPath  string
	WheelDir         string // only set in Offline mode
}

// Provisioner creates and populates virtual environments.
type Provisioner struct {
	Runner  *execrun.Runner
	Fetcher *fetch.Fetcher
	Logger  log.Logger
}

// New returns a Provisioner built on the default Runner and Fetcher.
func New() *Provisioner {
	return &Provisioner{
		Runner:  execrun.Default(),
		Fetcher: fetch.New(),
		Logger:  log.Default(),
	}
}

// Provision implements provision_ve per spec: detect → sanity-probe →
// create VE → resolve constraints → resolve wheel dir (Offline only) →
// install each requirements file in order.
func (p *Provisioner) Provision(ctx context.Context, opts Options) (*Result, error) {
	if opts.Reinstall {
		if err := os.RemoveAll(opts.VEDir); err != nil {
			return nil, eimerrors.Wrap(eimerrors.KindVE, "remove existing VE", err)
		}
	}

	interpreter, err := DetectInterpreter(ctx, p.Runner)
	if err != nil {
		return nil, err
	}
	if err := SanityProbe(ctx, p.Runner, interpreter); err != nil {
		return nil, err
	}

	veExists := dirExists(opts.VEDir)
	if !veExists {
		if err := p.createVE(ctx, interpreter, opts.VEDir); err != nil {
			return nil, err
		}
	}
	vePython := InterpreterPath(opts.VEDir)

	minor, err := interpreterMinor(ctx, p.Runner, vePython)
	if err != nil {
		return nil, err
	}

	result := &Result{InterpreterPath: vePython, InterpreterMinor: minor}

	constraintsPath, err := p.resolveConstraints(ctx, opts)
	if err != nil {
		return nil, err
	}
	result.ConstraintsPath = constraintsPath

	var wheelDir string
	if opts.Mode == ModeOffline {
		wheelDir, err = ResolveWheelDir(opts.OfflineArchiveDir, minor)
		if err != nil {
			return nil, err
		}
		result.WheelDir = wheelDir
	}

	for _, reqFile := range opts.RequirementFiles {
		if err := p.installRequirements(ctx, vePython, reqFile, constraintsPath, wheelDir, opts); err != nil {
			return nil, err
		}
	}

	return result, nil
}

func (p *Provisioner) createVE(ctx context.Context, interpreter, veDir string) error {
	if err := os.MkdirAll(filepath.Dir(veDir), 0o755); err != nil {
		return eimerrors.Wrap(eimerrors.KindPathInvalid, "create VE parent dir", err)
	}
	res, err := p.Runner.Run(ctx, interpreter, []string{"-m", "venv", veDir})
	if err != nil {
		return eimerrors.Wrap(eimerrors.KindVE, "venv creation failed to spawn", err)
	}
	if res.ExitCode != 0 {
		return eimerrors.New(eimerrors.KindVE, fmt.Sprintf("venv creation exited %d: %s", res.ExitCode, res.Stderr))
	}
	return nil
}

func (p *Provisioner) resolveConstraints(ctx context.Context, opts Options) (string, error) {
	filename, err := ConstraintsFileName(opts.FrameworkVersion)
	if err != nil {
		return "", err
	}

	if opts.Mode == ModeOffline {
		src := filepath.Join(opts.OfflineArchiveDir, filename)
		if _, err := os.Stat(src); err != nil {
			return "", eimerrors.Wrap(eimerrors.KindVE, "offline constraints file missing", err)
		}
		return src, nil
	}

	dest := filepath.Join(opts.VEDir, "..", filename)
	if info, err := os.Stat(dest); err == nil && time.Since(info.ModTime()) < 24*time.Hour {
		return dest, nil
	}
	url := strings.TrimSuffix(opts.ConstraintsURL, "/") + "/" + filename
	path, err := p.Fetcher.Download(ctx, url, filepath.Dir(dest), filename, "")
	if err != nil {
		return "", err
	}
	return path, nil
}

func (p *Provisioner) installRequirements(ctx context.Context, vePython, reqFile, constraintsPath, wheelDir string, opts Options) error {
	args := []string{"-m", "pip", "install", "--upgrade", "-r", reqFile}
	if constraintsPath != "" {
		args = append(args, "--constraint", constraintsPath)
	}
	switch opts.Mode {
	case ModeOffline:
		args = append(args, "--no-index", "--find-links", wheelDir)
	default:
		if opts.PackageMirror != "" {
			args = append(args, "--index-url", opts.PackageMirror)
		}
	}

	overlay := map[string]string{
		"VIRTUAL_ENV": opts.VEDir,
		"PIP_USER":    "0",
	}
	res, err := p.Runner.RunWithEnv(ctx, vePython, args, "", overlay)
	if err != nil {
		return eimerrors.Wrap(eimerrors.KindVE, fmt.Sprintf("pip install %s failed to spawn", reqFile), err)
	}
	if res.ExitCode != 0 {
		return eimerrors.New(eimerrors.KindVE, fmt.Sprintf("pip install %s exited %d: %s", reqFile, res.ExitCode, res.Stderr))
	}
	return nil
}

// constraintsVersionPattern extracts the major.minor prefix of a
// framework version label ("v5.1.2" -> "v5.1", "5.2" -> "5.2").
var constraintsVersionPattern = regexp.MustCompile(`^(v?\d+\.\d+)`)

// ConstraintsFileName returns the dependency pin file name for a
// framework version: espidf.constraints.<major>.<minor>.txt. Refs with no
// numeric version (branches like "master") pin against the default
// constraints set.
func ConstraintsFileName(frameworkVersion string) (string, error) {
	m := constraintsVersionPattern.FindStringSubmatch(frameworkVersion)
	if m == nil {
		return "espidf.constraints.txt", nil
	}
	return fmt.Sprintf("espidf.constraints.%s.txt", m[1]), nil
}

func interpreterMinor(ctx context.Context, runner *execrun.Runner, python string) (string, error) {
	res, err := runner.Run(ctx, python, []string{"-c", "import sys; print(f'{sys.version_info[0]}.{sys.version_info[1]}')"})
	if err != nil {
		return "", eimerrors.Wrap(eimerrors.KindVE, "query interpreter version", err)
	}
	if res.ExitCode != 0 {
		return "", eimerrors.New(eimerrors.KindVE, "querying interpreter version failed: "+res.Stderr)
	}
	return strings.TrimSpace(res.Stdout), nil
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

var versionLinePattern = regexp.MustCompile(`(\d+)\.(\d+)\.(\d+)`)

// parseSanityVersion extracts a semantic version from `python --version`
// output of the form "Python 3.11.6".
func parseSanityVersion(output string) (*goversion.Version, error) {
	m := versionLinePattern.FindStringSubmatch(output)
	if m == nil {
		return nil, eimerrors.New(eimerrors.KindVE, "could not parse interpreter version from: "+output)
	}
	v, err := goversion.Parse(fmt.Sprintf("%s.%s.%s", m[1], m[2], m[3]))
	if err != nil {
		return nil, eimerrors.Wrap(eimerrors.KindVE, "parse interpreter version", err)
	}
	return &v, nil
}
