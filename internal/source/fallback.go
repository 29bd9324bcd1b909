package source

import (
	"context"
	"fmt"
	"regexp"
	"strconv"

	"github.com/idftools/eim/internal/eimerrors"
	"github.com/idftools/eim/internal/execrun"
)

// receivingPattern matches git's stderr progress lines of the form
// "Receiving objects:  47% (1234/2600), 1.2 MiB | 800 KiB/s".
var receivingPattern = regexp.MustCompile(`Receiving objects:\s+(\d+)% `)

// ParseReceivingPercent extracts the percentage from one git stderr
// progress line, returning ok=false for non-progress lines.
func ParseReceivingPercent(line string) (int, bool) {
	m := receivingPattern.FindStringSubmatch(line)
	if m == nil {
		return 0, false
	}
	pct, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return pct, true
}

// cliClone is the fallback path when the native clone of a ref fails:
// the host's git binary performs the same single step (shallow clone of
// one branch/tag, or init+fetch of one commit), with progress scaled
// from its stderr lines into the acquisition's progress stream.
func (a *Acquirer) cliClone(ctx context.Context, url, dest, ref string, kind RefKind, onPercent func(int)) error {
	runner := execrun.Default()

	runStep := func(argv []string, cwd string) error {
		h, err := runner.SpawnStreaming(ctx, "git", argv, cwd)
		if err != nil {
			return eimerrors.Wrap(eimerrors.KindGit, "spawn git", err)
		}
		for line := range h.Lines {
			if pct, ok := ParseReceivingPercent(line.Text); ok && onPercent != nil {
				onPercent(pct)
			}
		}
		if err := h.Wait(); err != nil {
			return eimerrors.Wrap(eimerrors.KindGit, fmt.Sprintf("git %v", argv), err)
		}
		return nil
	}

	switch kind {
	case RefCommit:
		if err := runStep([]string{"init", dest}, ""); err != nil {
			return err
		}
		if err := runStep([]string{"remote", "add", "origin", url}, dest); err != nil {
			return err
		}
		if err := runStep([]string{"fetch", "--progress", "--depth", "1", "origin", ref}, dest); err != nil {
			return err
		}
		return runStep([]string{"checkout", "--detach", ref}, dest)
	default:
		return runStep([]string{"clone", "--progress", "--depth", "1", "--single-branch", "--branch", ref, url, dest}, "")
	}
}
