package source

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolveRepoURL(t *testing.T) {
	tests := []struct {
		name   string
		stub   string
		mirror string
		want   string
	}{
		{"defaults", "", "", "https://github.com/espressif/esp-idf.git"},
		{"stub only", "espressif/esp-adf", "", "https://github.com/espressif/esp-adf.git"},
		{"mirror only", "", "https://jihulab.com/esp-mirror", "https://jihulab.com/esp-mirror/espressif/esp-idf.git"},
		{"mirror trailing slash", "owner/repo", "https://mirror.example/", "https://mirror.example/owner/repo.git"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ResolveRepoURL(tt.stub, tt.mirror))
		})
	}
}

func TestNormalizeRef(t *testing.T) {
	tests := []struct {
		ref      string
		wantKind RefKind
		wantRef  string
	}{
		{"master", RefBranch, "master"},
		{"release-v5.2", RefBranch, "release/v5.2"},
		{"release/v5.2", RefBranch, "release/v5.2"},
		{"a1b2c3d4e5f60718293a4b5c6d7e8f9012345678", RefCommit, "a1b2c3d4e5f60718293a4b5c6d7e8f9012345678"},
		{"v5.1.2", RefTag, "v5.1.2"},
		{"a1b2c3d", RefTag, "a1b2c3d"}, // short hashes are not commit refs
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			kind, ref := NormalizeRef(tt.ref)
			require.Equal(t, tt.wantKind, kind)
			require.Equal(t, tt.wantRef, ref)
		})
	}
}

func TestResolveSubmoduleURL(t *testing.T) {
	tests := []struct {
		name   string
		origin string
		sub    string
		want   string
	}{
		{"absolute passes through", "https://github.com/espressif/esp-idf.git", "https://github.com/espressif/esp-coredump.git", "https://github.com/espressif/esp-coredump.git"},
		{"sibling https", "https://github.com/espressif/esp-idf.git", "../esp-coredump.git", "https://github.com/espressif/esp-coredump.git"},
		{"two levels up", "https://github.com/espressif/esp-idf.git", "../../other/repo.git", "https://github.com/other/repo.git"},
		{"dot relative", "https://github.com/espressif/esp-idf.git", "./components/foo.git", "https://github.com/espressif/esp-idf/components/foo.git"},
		{"ssh host path", "git@github.com:espressif/esp-idf.git", "../esp-coredump.git", "git@github.com:espressif/esp-coredump.git"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, ResolveSubmoduleURL(tt.origin, tt.sub))
		})
	}
}

func TestParseReceivingPercent(t *testing.T) {
	pct, ok := ParseReceivingPercent("Receiving objects:  47% (1234/2600), 1.2 MiB | 800 KiB/s")
	require.True(t, ok)
	require.Equal(t, 47, pct)

	_, ok = ParseReceivingPercent("Resolving deltas: 100% (12/12), done.")
	require.False(t, ok)
}
