//go:build windows

package execrun

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

func newPlatformRunner() *Runner {
	return &Runner{hideConsole: true}
}

// applyPlatformAttrs suppresses console window creation for spawned children.
func applyPlatformAttrs(c *exec.Cmd, hideConsole bool) {
	if !hideConsole {
		return
	}
	c.SysProcAttr = &syscall.SysProcAttr{
		HideWindow:    true,
		CreationFlags: 0x08000000, // CREATE_NO_WINDOW
	}
}

// runScriptPlatform materializes text to a temp .ps1 file, prepends an
// execution-policy bypass and a PATH overlay of the current process PATH,
// and deletes the file on completion regardless of outcome.
func runScriptPlatform(ctx context.Context, r *Runner, text string, streaming bool) (Result, error) {
	path, cleanup, err := materializeScript(text)
	if err != nil {
		return Result{}, err
	}
	defer cleanup()
	return r.RunWithEnv(ctx, "powershell.exe", psArgs(path), "", map[string]string{"PATH": os.Getenv("PATH")})
}

func spawnScriptPlatform(ctx context.Context, r *Runner, text string) (*Handle, error) {
	path, cleanup, err := materializeScript(text)
	if err != nil {
		return nil, err
	}
	h, err := r.SpawnStreaming(ctx, "powershell.exe", psArgs(path), "")
	if err != nil {
		cleanup()
		return nil, err
	}
	prevWait := h.Wait
	h.Wait = func() error {
		defer cleanup()
		return prevWait()
	}
	return h, nil
}

func psArgs(scriptPath string) []string {
	return []string{"-NoProfile", "-ExecutionPolicy", "Bypass", "-File", scriptPath}
}

func materializeScript(text string) (path string, cleanup func(), err error) {
	f, err := os.CreateTemp("", "eim-script-*.ps1")
	if err != nil {
		return "", nil, fmt.Errorf("materialize script: %w", err)
	}
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", nil, fmt.Errorf("materialize script: %w", err)
	}
	f.Close()
	return filepath.Clean(f.Name()), func() { os.Remove(f.Name()) }, nil
}
