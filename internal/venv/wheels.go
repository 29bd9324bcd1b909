package venv

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/idftools/eim/internal/eimerrors"
)

// ResolveWheelDir looks up the interpreter-minor-keyed wheel directory
// inside archiveDir, trying the compact ("wheels_py311"), dot
// ("wheels_py3.11") and underscore ("wheels_py3_11") naming variants before
// falling back to a generic "wheels/" directory for archives built before
// per-interpreter wheel sets existed.
func ResolveWheelDir(archiveDir, minor string) (string, error) {
	compact := strings.ReplaceAll(minor, ".", "")
	candidates := []string{
		filepath.Join(archiveDir, "wheels_py"+compact),
		filepath.Join(archiveDir, "wheels_py"+minor),
		filepath.Join(archiveDir, "wheels_py"+strings.ReplaceAll(minor, ".", "_")),
		filepath.Join(archiveDir, "wheels"),
	}

	var tried []string
	for _, c := range candidates {
		tried = append(tried, filepath.Base(c))
		if info, err := os.Stat(c); err == nil && info.IsDir() {
			return c, nil
		}
	}
	return "", eimerrors.New(eimerrors.KindVE, "no compatible wheel directory for interpreter "+minor+"; tried: "+strings.Join(tried, ", "))
}
