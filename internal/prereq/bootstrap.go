package prereq

import (
	"context"
	"fmt"
	"runtime"

	"github.com/idftools/eim/internal/eimerrors"
)

// installAttempts caps the per-tool retry loop during bootstrap.
const installAttempts = 3

// Install bootstraps each missing tool through the user-level package
// manager. Only supported on Windows (scoop); elsewhere the caller is
// expected to install prerequisites through the system package manager
// and Install returns a PrerequisiteMissing error listing them.
//
// Each tool is retried up to installAttempts, with a post-install
// verification probe deciding success.
func (c *Checker) Install(ctx context.Context, missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	if runtime.GOOS != "windows" {
		return eimerrors.PrerequisiteMissing(missing)
	}
	if c.PackageManager() != "scoop" {
		return eimerrors.New(eimerrors.KindPrerequisiteMissing, "scoop not found; install it from https://scoop.sh and retry")
	}

	for _, tool := range missing {
		if err := c.installOne(ctx, tool); err != nil {
			return err
		}
	}
	return nil
}

func (c *Checker) installOne(ctx context.Context, tool string) error {
	for attempt := 1; attempt <= installAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return eimerrors.Cancelled
		}
		res, err := c.Runner.Run(ctx, "scoop", []string{"install", tool})
		if err != nil {
			return eimerrors.Wrap(eimerrors.KindPrerequisiteMissing, "spawn scoop", err)
		}
		if res.ExitCode == 0 && c.toolPresent(ctx, tool) {
			c.Logger.Info("prereq: installed", "tool", tool, "attempt", attempt)
			return nil
		}
		c.Logger.Warn("prereq: install attempt failed", "tool", tool, "attempt", attempt, "stderr", res.Stderr)
	}
	return eimerrors.New(eimerrors.KindPrerequisiteMissing, fmt.Sprintf("could not install %s after %d attempts", tool, installAttempts))
}
