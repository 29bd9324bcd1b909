package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsEmptyRegistry(t *testing.T) {
	r, err := Load(filepath.Join(t.TempDir(), "registry.json"))
	require.NoError(t, err)
	require.Empty(t, r.Doc.Installations)
	require.Equal(t, SchemaVersion, r.Doc.SchemaVersion)
}

func TestAddThenSaveThenLoadRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	r, err := Load(path)
	require.NoError(t, err)

	inst := Installation{ID: "abc", DisplayName: "v5.2.1", SourcePath: "/tmp/eim/v5.2.1/esp-idf"}
	r.Add(inst)
	require.NoError(t, r.Save())

	reloaded, err := Load(path)
	require.NoError(t, err)
	require.Len(t, reloaded.Doc.Installations, 1)
	require.Equal(t, inst, reloaded.Doc.Installations[0])
}

func TestAddReplacesExistingEntryWithSameID(t *testing.T) {
	r := &Registry{Path: filepath.Join(t.TempDir(), "registry.json")}
	r.Add(Installation{ID: "abc", DisplayName: "v1"})
	r.Add(Installation{ID: "abc", DisplayName: "v2"})
	require.Len(t, r.Doc.Installations, 1)
	require.Equal(t, "v2", r.Doc.Installations[0].DisplayName)
}

func TestRemoveByNameOrIDMovesSelectionWhenSelectedRemoved(t *testing.T) {
	r := &Registry{Path: filepath.Join(t.TempDir(), "registry.json")}
	r.Add(Installation{ID: "a", DisplayName: "v1"})
	r.Add(Installation{ID: "b", DisplayName: "v2"})
	r.Doc.SelectedID = "a"

	removed, ok := r.RemoveByNameOrID("a")
	require.True(t, ok)
	require.Equal(t, "a", removed.ID)
	require.Equal(t, "b", r.Doc.SelectedID)
}

func TestRemoveByNameOrIDClearsSelectionWhenNoneRemain(t *testing.T) {
	r := &Registry{Path: filepath.Join(t.TempDir(), "registry.json")}
	r.Add(Installation{ID: "a", DisplayName: "v1"})
	r.Doc.SelectedID = "a"

	_, ok := r.RemoveByNameOrID("v1")
	require.True(t, ok)
	require.Empty(t, r.Doc.SelectedID)
}

func TestSelectRejectsUnknownKey(t *testing.T) {
	r := &Registry{Path: filepath.Join(t.TempDir(), "registry.json")}
	require.Error(t, r.Select("nope"))
}

func TestSelectMatchesByDisplayNameOrID(t *testing.T) {
	r := &Registry{Path: filepath.Join(t.TempDir(), "registry.json")}
	r.Add(Installation{ID: "a", DisplayName: "v1"})
	require.NoError(t, r.Select("v1"))
	require.Equal(t, "a", r.Doc.SelectedID)
}

func TestRenameRejectsDuplicateName(t *testing.T) {
	r := &Registry{Path: filepath.Join(t.TempDir(), "registry.json")}
	r.Add(Installation{ID: "a", DisplayName: "v1"})
	r.Add(Installation{ID: "b", DisplayName: "v2"})

	err := r.Rename("a", "v2")
	require.Error(t, err)
}

func TestRenameSucceedsWithNewUniqueName(t *testing.T) {
	r := &Registry{Path: filepath.Join(t.TempDir(), "registry.json")}
	r.Add(Installation{ID: "a", DisplayName: "v1"})
	require.NoError(t, r.Rename("a", "v1-renamed"))
	require.Equal(t, "v1-renamed", r.Doc.Installations[0].DisplayName)
}

func TestListIsSortedByID(t *testing.T) {
	r := &Registry{Path: filepath.Join(t.TempDir(), "registry.json")}
	r.Add(Installation{ID: "zzz"})
	r.Add(Installation{ID: "aaa"})
	list := r.List()
	require.Equal(t, "aaa", list[0].ID)
	require.Equal(t, "zzz", list[1].ID)
}

func TestSaveLeavesNoTempFileBehind(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "registry.json")
	r := &Registry{Path: path}
	r.Add(Installation{ID: "a"})
	require.NoError(t, r.Save())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "registry.json", entries[0].Name())
}

func TestNewIDReturnsUniqueValues(t *testing.T) {
	require.NotEqual(t, NewID(), NewID())
}

func TestPersistedDocumentUsesStableKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	r := &Registry{Path: path, Doc: Document{SchemaVersion: SchemaVersion, HostGitPath: "/usr/bin/git"}}
	r.Add(Installation{
		ID:                     "a",
		DisplayName:            "v5.1.2",
		SourcePath:             "/tmp/eim1/v5.1.2/esp-idf",
		InterpreterPath:        "/tmp/eim1/v5.1.2/python/venv/bin/python",
		ToolsRoot:              "/tmp/eim1/v5.1.2/tools",
		ActivationArtifactPath: "/tmp/eim1/v5.1.2/activate_v5.1.2.sh",
	})
	require.NoError(t, r.Save())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	for _, key := range []string{"schemaVersion", "gitPath", "idfSelectedId", "idfInstalled", "idfToolsPath", "activationScript"} {
		require.Contains(t, string(data), `"`+key+`"`)
	}
}

// Concurrent saves must never leave a partially written document visible
// to a concurrent load: readers see either the pre-state or the post-state.
func TestConcurrentSavesNeverCorruptDocument(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.json")
	seed := &Registry{Path: path}
	seed.Add(Installation{ID: "seed"})
	require.NoError(t, seed.Save())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			r := &Registry{Path: path}
			r.Add(Installation{ID: "seed"})
			r.Add(Installation{ID: "writer"})
			require.NoError(t, r.Save())
		}
	}()

	for i := 0; i < 50; i++ {
		r, err := Load(path)
		require.NoError(t, err)
		require.NotEmpty(t, r.Doc.Installations)
	}
	<-done
}

func TestDefaultPathHonorsEnvOverride(t *testing.T) {
	want := filepath.Join(t.TempDir(), "custom.json")
	t.Setenv(EnvRegistryPath, want)
	got, err := DefaultPath()
	require.NoError(t, err)
	require.Equal(t, want, got)
}
