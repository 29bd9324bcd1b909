// Package source implements the Source-Tree Acquirer (C4): obtaining a
// working copy of the framework's git source tree without ever performing
// a recursive full-history clone. Three ref kinds are supported: branches,
// tags, and raw commit hashes. Submodules, when requested, are fetched
// individually at their pinned commit — never via go-git's recursive
// submodule update, which would re-clone full history per submodule.
package source

import (
	"context"
	"fmt"
	"os"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/idftools/eim/internal/eimerrors"
	"github.com/idftools/eim/internal/log"
)

// RefKind classifies the ref string the caller asked to acquire.
type RefKind int

const (
	RefBranch RefKind = iota
	RefTag
	RefCommit
)

// Options configures a single acquisition.
type Options struct {
	URL            string
	Ref            string
	DestDir        string
	WithSubmodules bool
	// Progress receives clone progress. detail is empty for the parent
	// tree and the submodule path for submodule materialization.
	Progress func(percent int, detail string)
}

// Result reports what was actually checked out.
type Result struct {
	ResolvedCommit string
	Submodules     []SubmoduleResult
}

// SubmoduleResult reports a single materialized submodule.
type SubmoduleResult struct {
	Path           string
	ResolvedCommit string
}

// Acquirer fetches source trees per Options.
type Acquirer struct {
	Logger log.Logger
}

// New returns an Acquirer using the default logger.
func New() *Acquirer {
	return &Acquirer{Logger: log.Default()}
}

// Acquire clones opts.URL into opts.DestDir at opts.Ref with history depth
// 1, then — if requested — manually materializes each submodule at its
// pinned commit, also at depth 1. No step in this path ever performs a
// full-history or recursive clone.
func (a *Acquirer) Acquire(ctx context.Context, opts Options) (*Result, error) {
	if opts.URL == "" || opts.DestDir == "" {
		return nil, eimerrors.New(eimerrors.KindGit, "source: URL and DestDir are required")
	}

	kind, ref := NormalizeRef(opts.Ref)

	var repo *git.Repository
	var err error

	switch kind {
	case RefCommit:
		repo, err = a.shallowCloneAtCommit(ctx, opts.URL, opts.DestDir, ref)
	default:
		repo, err = a.shallowCloneAtRef(ctx, opts.URL, opts.DestDir, ref)
	}
	if err != nil {
		// Native clone failed; retry this single step with the host's git
		// binary, scaling its stderr progress into the progress stream.
		a.Logger.Warn("source: native clone failed, falling back to git CLI", "ref", ref, "error", err)
		if rmErr := os.RemoveAll(opts.DestDir); rmErr != nil {
			return nil, eimerrors.Wrap(eimerrors.KindGit, "source: clear failed clone", rmErr)
		}
		onPercent := func(pct int) {
			if opts.Progress != nil {
				opts.Progress(pct, "")
			}
		}
		if cliErr := a.cliClone(ctx, opts.URL, opts.DestDir, ref, kind, onPercent); cliErr != nil {
			return nil, cliErr
		}
		repo, err = git.PlainOpen(opts.DestDir)
		if err != nil {
			return nil, eimerrors.Wrap(eimerrors.KindGit, "source: open CLI-cloned repository", err)
		}
	}
	if opts.Progress != nil {
		opts.Progress(100, "")
	}

	head, err := repo.Head()
	if err != nil {
		return nil, eimerrors.Wrap(eimerrors.KindGit, "source: resolve HEAD", err)
	}
	result := &Result{ResolvedCommit: head.Hash().String()}

	if opts.WithSubmodules {
		subs, err := a.materializeSubmodules(ctx, repo, opts.URL, opts.Progress)
		if err != nil {
			return nil, err
		}
		result.Submodules = subs
	}

	return result, nil
}

// shallowCloneAtRef clones a branch or tag with depth 1, trying branch
// resolution first and falling back to a tag reference name.
func (a *Acquirer) shallowCloneAtRef(ctx context.Context, url, dest, ref string) (*git.Repository, error) {
	branchRef := plumbing.NewBranchReferenceName(ref)
	repo, err := git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
		URL:           url,
		ReferenceName: branchRef,
		SingleBranch:  true,
		Depth:         1,
		Tags:          git.NoTags,
	})
	if err == nil {
		return repo, nil
	}
	a.Logger.Debug("source: branch clone failed, trying tag", "ref", ref, "error", err)

	tagRef := plumbing.NewTagReferenceName(ref)
	repo, err = git.PlainCloneContext(ctx, dest, false, &git.CloneOptions{
		URL:           url,
		ReferenceName: tagRef,
		SingleBranch:  true,
		Depth:         1,
		Tags:          git.NoTags,
	})
	if err != nil {
		return nil, eimerrors.Wrap(eimerrors.KindGit, fmt.Sprintf("source: clone %s at ref %s", url, ref), err)
	}
	return repo, nil
}

// shallowCloneAtCommit performs the "single-commit fetch": an empty repo
// is initialized, a single object is fetched at depth 1 directly by hash
// (supported by GitHub's and similar smart-HTTP servers), and the
// worktree is checked out at that commit. This avoids ever fetching
// branch history to reach an arbitrary pinned commit.
func (a *Acquirer) shallowCloneAtCommit(ctx context.Context, url, dest, commit string) (*git.Repository, error) {
	repo, err := git.PlainInit(dest, false)
	if err != nil {
		return nil, eimerrors.Wrap(eimerrors.KindGit, "source: init working tree", err)
	}

	if _, err := repo.CreateRemote(&config.RemoteConfig{
		Name: git.DefaultRemoteName,
		URLs: []string{url},
	}); err != nil {
		return nil, eimerrors.Wrap(eimerrors.KindGit, "source: create remote", err)
	}

	const fetchedRef = "refs/eim/fetched"
	err = repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: git.DefaultRemoteName,
		RefSpecs:   []config.RefSpec{config.RefSpec(commit + ":" + fetchedRef)},
		Depth:      1,
		Tags:       git.NoTags,
	})
	if err != nil {
		return nil, eimerrors.Wrap(eimerrors.KindGit, fmt.Sprintf("source: fetch commit %s from %s", commit, url), err)
	}

	wt, err := repo.Worktree()
	if err != nil {
		return nil, eimerrors.Wrap(eimerrors.KindGit, "source: open worktree", err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: plumbing.NewHash(commit), Force: true}); err != nil {
		return nil, eimerrors.Wrap(eimerrors.KindGit, fmt.Sprintf("source: checkout %s", commit), err)
	}

	return repo, nil
}

// materializeSubmodules fetches each submodule individually at its pinned
// commit (as recorded in the parent tree's gitlink), recursing into nested
// submodules, and never using go-git's Submodules.Update, which performs a
// full non-shallow clone per submodule. Relative submodule URLs are
// resolved against the parent's origin.
func (a *Acquirer) materializeSubmodules(ctx context.Context, repo *git.Repository, parentOrigin string, progress func(percent int, detail string)) ([]SubmoduleResult, error) {
	wt, err := repo.Worktree()
	if err != nil {
		return nil, eimerrors.Wrap(eimerrors.KindGit, "source: open worktree for submodules", err)
	}
	subs, err := wt.Submodules()
	if err != nil {
		return nil, eimerrors.Wrap(eimerrors.KindGit, "source: read .gitmodules", err)
	}

	var results []SubmoduleResult
	for i, sub := range subs {
		if err := ctx.Err(); err != nil {
			return nil, eimerrors.Cancelled
		}
		status, err := sub.Status()
		if err != nil {
			return nil, eimerrors.Wrap(eimerrors.KindGit, fmt.Sprintf("source: status of submodule %s", sub.Config().Name), err)
		}
		pinned := status.Expected.String()
		subPath := sub.Config().Path
		subDest := wt.Filesystem.Join(wt.Filesystem.Root(), subPath)
		subURL := ResolveSubmoduleURL(parentOrigin, sub.Config().URL)

		a.Logger.Info("source: materializing submodule", "path", subPath, "commit", pinned)
		if progress != nil {
			progress(i*100/len(subs), subPath)
		}

		// The submodule working directory already exists as an empty
		// directory in the parent checkout; PlainInit tolerates that.
		os.Remove(subDest)
		subRepo, err := a.shallowCloneAtCommit(ctx, subURL, subDest, pinned)
		if err != nil {
			// CLI fallback for this single submodule step.
			a.Logger.Warn("source: native submodule fetch failed, falling back to git CLI", "path", subPath, "error", err)
			if rmErr := os.RemoveAll(subDest); rmErr != nil {
				return nil, eimerrors.Wrap(eimerrors.KindGit, "source: clear failed submodule", rmErr)
			}
			onPercent := func(pct int) {
				if progress != nil {
					progress((i*100+pct)/len(subs), subPath)
				}
			}
			if cliErr := a.cliClone(ctx, subURL, subDest, pinned, RefCommit, onPercent); cliErr != nil {
				return nil, cliErr
			}
			subRepo, err = git.PlainOpen(subDest)
			if err != nil {
				return nil, eimerrors.Wrap(eimerrors.KindGit, fmt.Sprintf("source: open submodule %s", subPath), err)
			}
		}
		results = append(results, SubmoduleResult{Path: subPath, ResolvedCommit: pinned})

		// Nested submodules are pinned the same way one level down.
		nested, err := a.materializeSubmodules(ctx, subRepo, subURL, progress)
		if err != nil {
			return nil, err
		}
		for _, n := range nested {
			results = append(results, SubmoduleResult{Path: subPath + "/" + n.Path, ResolvedCommit: n.ResolvedCommit})
		}
	}
	return results, nil
}
