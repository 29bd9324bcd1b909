package execrun

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRunCapturesStdoutAndExitCode(t *testing.T) {
	r := Default()
	res, err := r.Run(context.Background(), "echo", []string{"hello world"})
	require.NoError(t, err)
	require.Equal(t, 0, res.ExitCode)
	require.Contains(t, res.Stdout, "hello world")
}

func TestRunNonZeroExitIsNotAnError(t *testing.T) {
	r := Default()
	res, err := r.Run(context.Background(), "sh", []string{"-c", "exit 3"})
	require.NoError(t, err)
	require.Equal(t, 3, res.ExitCode)
}

func TestRunWithEnvOverlayPreservesInheritedEnv(t *testing.T) {
	r := Default()
	t.Setenv("EIM_TEST_INHERITED", "inherited-value")
	res, err := r.RunWithEnv(context.Background(), "sh", []string{"-c", "echo $EIM_TEST_OVERLAY $EIM_TEST_INHERITED"}, "", map[string]string{
		"EIM_TEST_OVERLAY": "overlay-value",
	})
	require.NoError(t, err)
	require.Contains(t, res.Stdout, "overlay-value")
	require.Contains(t, res.Stdout, "inherited-value")
}

func TestRunPreservesSpacesAndNonASCIIArgs(t *testing.T) {
	r := Default()
	arg := "a path with spaces/日本語"
	res, err := r.Run(context.Background(), "printf", []string{"%s", arg})
	require.NoError(t, err)
	require.Equal(t, arg, res.Stdout)
}

func TestSpawnStreamingYieldsLines(t *testing.T) {
	r := Default()
	h, err := r.SpawnStreaming(context.Background(), "sh", []string{"-c", "echo one; echo two >&2"}, "")
	require.NoError(t, err)

	var got []Line
	for l := range h.Lines {
		got = append(got, l)
	}
	require.NoError(t, h.Wait())
	require.Len(t, got, 2)
}
