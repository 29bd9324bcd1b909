package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/stretchr/testify/require"
)

// buildSourceRepo creates a local bare-free git repo with one commit on
// "master" tagged "v1.0", returning its filesystem path for use as a
// go-git clone URL.
func buildSourceRepo(t *testing.T) (path string, commit string) {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	require.NoError(t, err)

	wt, err := repo.Worktree()
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "sdkconfig.h"), []byte("#define IDF_VER 1\n"), 0o644))
	_, err = wt.Add("sdkconfig.h")
	require.NoError(t, err)

	h, err := wt.Commit("initial", &git.CommitOptions{Author: &object.Signature{
		Name: "eim-test", Email: "eim-test@example.com", When: time.Now(),
	}})
	require.NoError(t, err)

	_, err = repo.CreateTag("v1.0", h, nil)
	require.NoError(t, err)

	return dir, h.String()
}

func TestAcquireShallowCloneByBranch(t *testing.T) {
	srcPath, _ := buildSourceRepo(t)
	dest := t.TempDir()

	a := New()
	result, err := a.Acquire(context.Background(), Options{
		URL:     srcPath,
		Ref:     "master",
		DestDir: filepath.Join(dest, "checkout"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.ResolvedCommit)
	require.FileExists(t, filepath.Join(dest, "checkout", "sdkconfig.h"))
}

func TestAcquireShallowCloneByCommit(t *testing.T) {
	srcPath, commit := buildSourceRepo(t)
	dest := t.TempDir()

	a := New()
	result, err := a.Acquire(context.Background(), Options{
		URL:     srcPath,
		Ref:     commit,
		DestDir: filepath.Join(dest, "checkout"),
	})
	require.NoError(t, err)
	require.Equal(t, commit, result.ResolvedCommit)
	require.FileExists(t, filepath.Join(dest, "checkout", "sdkconfig.h"))
}

func TestAcquireShallowCloneByTag(t *testing.T) {
	srcPath, _ := buildSourceRepo(t)
	dest := t.TempDir()

	a := New()
	result, err := a.Acquire(context.Background(), Options{
		URL:     srcPath,
		Ref:     "v1.0",
		DestDir: filepath.Join(dest, "checkout"),
	})
	require.NoError(t, err)
	require.NotEmpty(t, result.ResolvedCommit)
}

func TestAcquireRequiresURLAndDest(t *testing.T) {
	a := New()
	_, err := a.Acquire(context.Background(), Options{})
	require.Error(t, err)
}
