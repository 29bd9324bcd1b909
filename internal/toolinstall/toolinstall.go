// Package toolinstall implements the Tool Installer (C6): downloading,
// verifying, extracting, and probing one host tool from the resolved
// catalog.Selection.
package toolinstall

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/Masterminds/semver/v3"

	"github.com/idftools/eim/internal/archive"
	"github.com/idftools/eim/internal/catalog"
	"github.com/idftools/eim/internal/eimerrors"
	"github.com/idftools/eim/internal/execrun"
	"github.com/idftools/eim/internal/fetch"
	"github.com/idftools/eim/internal/log"
)

// Result describes one successfully installed tool.
type Result struct {
	Name         string
	VersionLabel string
	InstallDir   string
	ProbedOutput string
}

// Installer downloads, extracts, and probes tools.
type Installer struct {
	Fetcher *fetch.Fetcher
	Runner  *execrun.Runner
	Logger  log.Logger
}

// New returns an Installer built on the default Fetcher and Runner.
func New() *Installer {
	return &Installer{
		Fetcher: fetch.New(),
		Runner:  execrun.Default(),
		Logger:  log.Default(),
	}
}

// Install downloads sel's archive, extracts it into installDir, strips
// container directories per tool.StripContainerDirs, fixes executable
// bits under every exported bin directory, and probes the resulting
// binary's reported version.
func (in *Installer) Install(ctx context.Context, tool catalog.ToolSpec, sel catalog.Selection, downloadDir, installDir string) (*Result, error) {
	archivePath, err := in.Fetcher.Download(ctx, sel.Download.URL, downloadDir, "", sel.Download.SHA256)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(installDir, 0o755); err != nil {
		return nil, eimerrors.Wrap(eimerrors.KindPathInvalid, "create tool install dir", err)
	}
	if err := archive.Extract(archivePath, installDir); err != nil {
		return nil, eimerrors.Wrap(eimerrors.KindArchive, fmt.Sprintf("extract %s", tool.Name), err)
	}

	if tool.StripContainerDirs > 0 {
		if err := archive.StripContainerDirs(installDir, tool.StripContainerDirs); err != nil {
			return nil, eimerrors.Wrap(eimerrors.KindArchive, fmt.Sprintf("strip container dirs for %s", tool.Name), err)
		}
	}

	if err := fixExecutableBits(installDir, tool.ExportPaths); err != nil {
		return nil, err
	}

	output, err := in.probeVersion(ctx, tool, installDir)
	if err != nil {
		in.Logger.Warn("toolinstall: version probe failed", "tool", tool.Name, "error", err)
	} else {
		in.compareVersion(tool.Name, sel.VersionLabel, output)
	}

	return &Result{
		Name:         tool.Name,
		VersionLabel: sel.VersionLabel,
		InstallDir:   installDir,
		ProbedOutput: output,
	}, nil
}

// probeVersion runs tool.VersionCmd with PATH overlaid to include every
// export path, then extracts the version substring per tool.VersionRegex.
func (in *Installer) probeVersion(ctx context.Context, tool catalog.ToolSpec, installDir string) (string, error) {
	if len(tool.VersionCmd) == 0 {
		return "", nil
	}

	binDirs, err := exportPathsAbs(installDir, tool.ExportPaths)
	if err != nil {
		return "", err
	}
	overlay := map[string]string{"PATH": strings.Join(binDirs, string(os.PathListSeparator)) + string(os.PathListSeparator) + os.Getenv("PATH")}

	res, err := in.Runner.RunWithEnv(ctx, tool.VersionCmd[0], tool.VersionCmd[1:], "", overlay)
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

// compareVersion logs a warning (never a hard failure: tool binaries
// often report a build suffix a strict semver parse rejects) when the
// probed version doesn't match the version the manifest selected.
func (in *Installer) compareVersion(name, expected, probed string) {
	ev, err := semver.NewVersion(expected)
	if err != nil {
		return
	}
	pv, err := semver.NewVersion(probed)
	if err != nil {
		return
	}
	if !ev.Equal(pv) {
		in.Logger.Warn("toolinstall: probed version differs from manifest", "tool", name, "expected", expected, "probed", probed)
	}
}

func exportPathsAbs(installDir string, exportPaths []string) ([]string, error) {
	if len(exportPaths) == 0 {
		return []string{installDir}, nil
	}
	out := make([]string, 0, len(exportPaths))
	for _, rel := range exportPaths {
		out = append(out, filepath.Join(installDir, rel))
	}
	return out, nil
}

// fixExecutableBits sets the executable bit on every regular file inside
// the tool's export paths. No-op on Windows, where os.Chmod's mode bits
// are mostly ignored but harmless to set.
func fixExecutableBits(installDir string, exportPaths []string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	dirs, err := exportPathsAbs(installDir, exportPaths)
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if e.IsDir() {
				continue
			}
			path := filepath.Join(dir, e.Name())
			info, err := e.Info()
			if err != nil {
				continue
			}
			if info.Mode()&0o111 == 0 {
				if err := os.Chmod(path, info.Mode()|0o755); err != nil {
					return eimerrors.Wrap(eimerrors.KindPathInvalid, fmt.Sprintf("chmod %s", path), err)
				}
			}
		}
	}
	return nil
}
