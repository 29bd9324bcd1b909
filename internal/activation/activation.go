package activation

import (
	"runtime"

	"github.com/idftools/eim/internal/config"
	"github.com/idftools/eim/internal/eimerrors"
	"github.com/idftools/eim/internal/log"
	"github.com/idftools/eim/internal/registry"
)

// Writer emits activation artifacts and registers installations.
type Writer struct {
	Logger log.Logger
	// RegistryPath overrides the default registry location (tests).
	RegistryPath string
	// TerminalSettingsPath overrides the Windows Terminal settings
	// location (tests). Empty means the default packaged-install path.
	TerminalSettingsPath string
}

// New returns a Writer on the default logger and registry location.
func New() *Writer {
	return &Writer{Logger: log.Default()}
}

// Write emits the per-OS activation artifact for paths, then adds the
// resulting Installation to the registry. Terminal-profile insertion
// failure degrades to a warning; every other failure is fatal.
func (w *Writer) Write(paths *config.VersionPaths, exportPaths []string) (*registry.Installation, error) {
	var err error
	if runtime.GOOS == "windows" {
		err = writeWindowsProfile(paths, exportPaths)
	} else {
		err = writePosixScript(paths, exportPaths)
	}
	if err != nil {
		return nil, eimerrors.Wrap(eimerrors.KindPathInvalid, "write activation artifact", err)
	}

	if runtime.GOOS == "windows" {
		settingsPath := w.TerminalSettingsPath
		if settingsPath == "" {
			settingsPath = defaultTerminalSettingsPath()
		}
		if settingsPath != "" {
			if tpErr := insertTerminalProfile(settingsPath, paths, w.Logger); tpErr != nil {
				w.Logger.Warn("activation: terminal profile insertion failed", "error", tpErr)
			}
		}
	}

	inst := registry.Installation{
		ID:                     registry.NewID(),
		DisplayName:            paths.ResolvedVersionLabel,
		SourcePath:             paths.SourceRoot,
		InterpreterPath:        paths.InterpreterPath,
		ToolsRoot:              paths.ToolInstallDir,
		ActivationArtifactPath: paths.ActivationArtifactPath,
	}

	regPath := w.RegistryPath
	if regPath == "" {
		regPath, err = registry.DefaultPath()
		if err != nil {
			return nil, eimerrors.Wrap(eimerrors.KindRegistry, "resolve registry path", err)
		}
	}
	reg, err := registry.Load(regPath)
	if err != nil {
		return nil, err
	}
	// Re-installing a version replaces its registry entry instead of
	// accumulating duplicates.
	if prev, ok := reg.RemoveByNameOrID(inst.DisplayName); ok {
		inst.ID = prev.ID
	}
	reg.Add(inst)
	if reg.Doc.SelectedID == "" {
		reg.Doc.SelectedID = inst.ID
	}
	if err := reg.Save(); err != nil {
		return nil, err
	}
	return &inst, nil
}
