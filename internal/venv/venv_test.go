package venv

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveWheelDirPrefersCompactName(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "wheels_py311"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "wheels"), 0o755))

	got, err := ResolveWheelDir(dir, "3.11")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "wheels_py311"), got)
}

func TestResolveWheelDirFallsBackToUnderscoreVariant(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "wheels_py3_11"), 0o755))

	got, err := ResolveWheelDir(dir, "3.11")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "wheels_py3_11"), got)
}

func TestResolveWheelDirFallsBackToGenericWheels(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "wheels"), 0o755))

	got, err := ResolveWheelDir(dir, "3.12")
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "wheels"), got)
}

func TestResolveWheelDirFailsWhenNothingMatches(t *testing.T) {
	dir := t.TempDir()
	_, err := ResolveWheelDir(dir, "3.9")
	require.Error(t, err)
}

func TestInterpreterPathIsOSSpecific(t *testing.T) {
	p := InterpreterPath("/tmp/ve")
	require.Contains(t, p, "python")
}

func TestParseSanityVersionExtractsSemver(t *testing.T) {
	v, err := parseSanityVersion("Python 3.11.6\n")
	require.NoError(t, err)
	require.Equal(t, "3.11.6", v.String())
}

func TestParseSanityVersionRejectsGarbage(t *testing.T) {
	_, err := parseSanityVersion("not a version string")
	require.Error(t, err)
}

func TestConstraintsFileNameMatchesFrameworkMajorMinor(t *testing.T) {
	name, err := ConstraintsFileName("v5.1.2")
	require.NoError(t, err)
	require.Equal(t, "espidf.constraints.v5.1.txt", name)

	name, err = ConstraintsFileName("5.2")
	require.NoError(t, err)
	require.Equal(t, "espidf.constraints.5.2.txt", name)

	name, err = ConstraintsFileName("master")
	require.NoError(t, err)
	require.Equal(t, "espidf.constraints.txt", name)
}
