package venv

import (
	"context"
	"os/exec"
	"path/filepath"
	"runtime"

	goversion "github.com/aquasecurity/go-version/pkg/version"

	"github.com/idftools/eim/internal/eimerrors"
	"github.com/idftools/eim/internal/execrun"
)

// knownInterpreterNames are looked up on PATH in order, matching the hosts
// IDF's installer targets. No fixed install location is checked.
var knownInterpreterNames = []string{"python3.12", "python3.11", "python3.10", "python3", "python"}

// DetectInterpreter finds a usable host interpreter: a known-good binary
// name resolved via PATH, preferring newer supported minors.
func DetectInterpreter(ctx context.Context, runner *execrun.Runner) (string, error) {
	for _, name := range knownInterpreterNames {
		bin := name
		if runtime.GOOS == "windows" && name == "python" {
			bin = "python.exe"
		}
		if path, err := exec.LookPath(bin); err == nil {
			return path, nil
		}
	}
	return "", eimerrors.PrerequisiteMissing(knownInterpreterNames)
}

// SanityProbe runs the sanity checks required before provisioning: version
// within range, pip/venv available, stdlib imports work, ctypes (FFI) and
// ssl (TLS) import successfully.
func SanityProbe(ctx context.Context, runner *execrun.Runner, interpreter string) error {
	res, err := runner.Run(ctx, interpreter, []string{"--version"})
	if err != nil {
		return eimerrors.Wrap(eimerrors.KindVE, "run interpreter --version", err)
	}
	output := res.Stdout + res.Stderr
	v, err := parseSanityVersion(output)
	if err != nil {
		return err
	}
	constraint, err := goversion.NewConstraints(minInterpreterConstraint)
	if err != nil {
		return eimerrors.Wrap(eimerrors.KindVE, "parse interpreter version constraint", err)
	}
	if !constraint.Check(*v) {
		return eimerrors.New(eimerrors.KindVE, "interpreter "+v.String()+" does not satisfy "+minInterpreterConstraint)
	}

	probeScript := "import pip, venv, ctypes, ssl, sys; sys.exit(0)"
	res, err = runner.Run(ctx, interpreter, []string{"-c", probeScript})
	if err != nil {
		return eimerrors.Wrap(eimerrors.KindVE, "run interpreter sanity probe", err)
	}
	if res.ExitCode != 0 {
		return eimerrors.New(eimerrors.KindVE, "interpreter sanity probe failed: "+res.Stderr)
	}

	// ensurepip is probed separately from pip: some distro-packaged
	// interpreters ship a working pip but a stubbed-out ensurepip, which
	// breaks venv creation later with a much less actionable message.
	res, err = runner.Run(ctx, interpreter, []string{"-c", "import ensurepip"})
	if err != nil {
		return eimerrors.Wrap(eimerrors.KindVE, "run ensurepip probe", err)
	}
	if res.ExitCode != 0 {
		return eimerrors.New(eimerrors.KindVE, "interpreter has no ensurepip (install your distro's python3-venv package): "+res.Stderr)
	}
	return nil
}

// InterpreterPath returns the VE's own interpreter binary path, OS-specific.
func InterpreterPath(veDir string) string {
	if runtime.GOOS == "windows" {
		return filepath.Join(veDir, "Scripts", "python.exe")
	}
	return filepath.Join(veDir, "bin", "python")
}
