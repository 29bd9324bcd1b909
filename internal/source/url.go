package source

import (
	"strings"
)

// DefaultHost is the upstream origin used when no mirror is configured.
const DefaultHost = "https://github.com"

// DefaultRepoStub is the framework repository used when the caller gives
// no override.
const DefaultRepoStub = "espressif/esp-idf"

// ResolveRepoURL builds the clone URL for a repository stub
// ("owner/repo") against an optional mirror origin. An empty stub uses
// the default framework repository.
func ResolveRepoURL(repoStub, mirror string) string {
	host := DefaultHost
	if mirror != "" {
		host = strings.TrimSuffix(mirror, "/")
	}
	if repoStub == "" {
		repoStub = DefaultRepoStub
	}
	return host + "/" + strings.Trim(repoStub, "/") + ".git"
}

// NormalizeRef classifies ref per the acquisition rules and returns the
// normalized ref name:
//   - "master" is the master branch;
//   - a value containing "release" is a branch, with a leading "release-"
//     rewritten to "release/" (the upstream branch naming);
//   - a 40-hex string is a commit;
//   - everything else is a tag.
func NormalizeRef(ref string) (RefKind, string) {
	if ref == "master" {
		return RefBranch, ref
	}
	if strings.Contains(ref, "release") {
		return RefBranch, strings.Replace(ref, "release-", "release/", 1)
	}
	if len(ref) == 40 && isHex(ref) {
		return RefCommit, ref
	}
	return RefTag, ref
}

func isHex(s string) bool {
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'f', r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// ResolveSubmoduleURL resolves a possibly-relative submodule URL ("./x",
// "../x") against the parent repository's origin. Both HTTPS origins and
// SSH host:path origins are handled; absolute URLs pass through.
func ResolveSubmoduleURL(parentOrigin, subURL string) string {
	if !strings.HasPrefix(subURL, "./") && !strings.HasPrefix(subURL, "../") {
		return subURL
	}

	base := strings.TrimSuffix(parentOrigin, ".git")

	// SSH form: git@host:owner/repo. Split host:path so the path part can
	// be walked like a URL path.
	var prefix, path string
	if i := strings.Index(base, "://"); i >= 0 {
		j := strings.Index(base[i+3:], "/")
		if j < 0 {
			prefix, path = base, ""
		} else {
			prefix, path = base[:i+3+j], base[i+3+j:]
		}
	} else if i := strings.LastIndex(base, ":"); i >= 0 && strings.Contains(base[:i], "@") {
		prefix, path = base[:i+1], "/"+base[i+1:]
	} else {
		prefix, path = "", base
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	rel := subURL
	for {
		if cut, ok := strings.CutPrefix(rel, "../"); ok {
			rel = cut
			if len(segments) > 0 {
				segments = segments[:len(segments)-1]
			}
			continue
		}
		if cut, ok := strings.CutPrefix(rel, "./"); ok {
			rel = cut
			continue
		}
		break
	}
	segments = append(segments, strings.Split(rel, "/")...)

	joined := strings.Join(segments, "/")
	if strings.HasSuffix(prefix, ":") {
		return prefix + joined
	}
	return prefix + "/" + joined
}
