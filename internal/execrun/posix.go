//go:build !windows

package execrun

import (
	"context"
	"os"
	"os/exec"
)

func newPlatformRunner() *Runner {
	return &Runner{hideConsole: false}
}

// applyPlatformAttrs is a no-op on POSIX: there is no console to hide.
func applyPlatformAttrs(*exec.Cmd, bool) {}

// runScriptPlatform runs text through the user's login shell (or /bin/sh).
func runScriptPlatform(ctx context.Context, r *Runner, text string, streaming bool) (Result, error) {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	return r.Run(ctx, shell, []string{"-c", text})
}

func spawnScriptPlatform(ctx context.Context, r *Runner, text string) (*Handle, error) {
	shell := os.Getenv("SHELL")
	if shell == "" {
		shell = "/bin/sh"
	}
	return r.SpawnStreaming(ctx, shell, []string{"-c", text}, "")
}
