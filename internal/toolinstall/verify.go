package toolinstall

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/idftools/eim/internal/catalog"
	"github.com/idftools/eim/internal/eimerrors"
)

// ProbeState classifies the outcome of verifying an installed tool.
type ProbeState int

const (
	// ProbeMissing means no installation was found for the expected version.
	ProbeMissing ProbeState = iota
	// ProbeCorrect means the installed binary reports the expected
	// major.minor version (or, for tools with no version command, the
	// expected directory exists).
	ProbeCorrect
	// ProbeDifferentVersion means a binary was found but reports a
	// different major.minor than expected.
	ProbeDifferentVersion
)

// Probe is the result of VerifyInstallation.
type Probe struct {
	State            ProbeState
	InstalledVersion string
	ExpectedVersion  string
}

// VerifyInstallation checks whether tool at expectedVersion is already
// correctly installed under installRoot (the per-version tools root; the
// tool's own directory is <installRoot>/<name>/<version>).
//
// Resolution order: the exact binary inside each export path is tried
// first (with an .exe suffix on Windows), then the version command is
// invoked with PATH overlaid to include the expected directories. A tool
// with no version command is Correct iff its directory exists. Versions
// are compared by major.minor.
func (in *Installer) VerifyInstallation(ctx context.Context, tool catalog.ToolSpec, expectedVersion, installRoot string) (Probe, error) {
	probe := Probe{State: ProbeMissing, ExpectedVersion: expectedVersion}

	versionDir := ToolVersionDir(installRoot, tool.Name, expectedVersion)
	if _, err := os.Stat(versionDir); err != nil {
		return probe, nil
	}
	if len(tool.VersionCmd) == 0 {
		probe.State = ProbeCorrect
		return probe, nil
	}

	output, err := in.probeInstalled(ctx, tool, versionDir)
	if err != nil {
		return probe, err
	}
	if output == "" {
		return probe, nil
	}

	probe.InstalledVersion = output
	if sameMajorMinor(expectedVersion, output) {
		probe.State = ProbeCorrect
	} else {
		probe.State = ProbeDifferentVersion
	}
	return probe, nil
}

// probeInstalled locates and runs the tool's version command inside
// versionDir, returning the parsed version string ("" when the binary is
// absent).
func (in *Installer) probeInstalled(ctx context.Context, tool catalog.ToolSpec, versionDir string) (string, error) {
	binName := tool.VersionCmd[0]

	for _, rel := range exportPathCandidates(tool) {
		candidate := filepath.Join(versionDir, rel, binName)
		paths := []string{candidate}
		if runtime.GOOS == "windows" && !strings.HasSuffix(candidate, ".exe") {
			paths = append(paths, candidate+".exe")
		}
		for _, p := range paths {
			if info, err := os.Stat(p); err == nil && !info.IsDir() {
				return in.runVersionCmd(ctx, tool, p, nil)
			}
		}
	}

	// Fallback: invoke by name with PATH overlaid to the expected dirs.
	var dirs []string
	for _, rel := range exportPathCandidates(tool) {
		dirs = append(dirs, filepath.Join(versionDir, rel))
	}
	overlay := map[string]string{
		"PATH": strings.Join(dirs, string(os.PathListSeparator)) + string(os.PathListSeparator) + os.Getenv("PATH"),
	}
	out, err := in.runVersionCmd(ctx, tool, binName, overlay)
	if err != nil {
		// A missing binary is Missing, not a probe failure.
		return "", nil
	}
	return out, err
}

func (in *Installer) runVersionCmd(ctx context.Context, tool catalog.ToolSpec, bin string, overlay map[string]string) (string, error) {
	res, err := in.Runner.RunWithEnv(ctx, bin, tool.VersionCmd[1:], "", overlay)
	if err != nil {
		return "", eimerrors.Wrap(eimerrors.KindToolProbe, fmt.Sprintf("run %s version command", tool.Name), err)
	}
	combined := res.Stdout + "\n" + res.Stderr

	if tool.VersionRegex == "" {
		return strings.TrimSpace(combined), nil
	}
	re, err := regexp.Compile(tool.VersionRegex)
	if err != nil {
		return "", eimerrors.Wrap(eimerrors.KindToolProbe, "compile version regex", err)
	}
	m := re.FindStringSubmatch(combined)
	if m == nil {
		return "", eimerrors.New(eimerrors.KindToolProbe, fmt.Sprintf("version regex did not match output for %s", tool.Name))
	}
	if len(m) > 1 {
		return m[1], nil
	}
	return m[0], nil
}

// exportPathCandidates returns the relative directories a tool's binary
// may live in, defaulting to the tool root itself.
func exportPathCandidates(tool catalog.ToolSpec) []string {
	if len(tool.ExportPaths) == 0 {
		return []string{"."}
	}
	return tool.ExportPaths
}

// ToolVersionDir is where one (tool, version) pair installs:
// <installRoot>/<tool>/<version>. Different versions never share a
// directory, so a DifferentVersion probe installs alongside, not over.
func ToolVersionDir(installRoot, toolName, versionLabel string) string {
	return filepath.Join(installRoot, toolName, versionLabel)
}

// sameMajorMinor compares two version strings on their first two numeric
// components only.
func sameMajorMinor(a, b string) bool {
	return majorMinor(a) != "" && majorMinor(a) == majorMinor(b)
}

var majorMinorPattern = regexp.MustCompile(`^v?(\d+)\.(\d+)`)

func majorMinor(v string) string {
	m := majorMinorPattern.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil {
		return ""
	}
	return m[1] + "." + m[2]
}
