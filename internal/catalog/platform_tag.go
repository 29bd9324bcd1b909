package catalog

import (
	"fmt"
	"runtime"
)

// HostPlatformTag computes the platform tag for goos/goarch, mapping to
// one of the fixed closed set the tool manifest keys its downloads by.
// Unknown combinations fail the resolver rather than guessing.
func HostPlatformTag() (string, error) {
	return hostPlatformTagFor(runtime.GOOS, runtime.GOARCH)
}

func hostPlatformTagFor(goos, goarch string) (string, error) {
	switch {
	case goos == "windows" && goarch == "amd64":
		return "win64", nil
	case goos == "darwin" && goarch == "arm64":
		return "macos-arm64", nil
	case goos == "darwin" && goarch == "amd64":
		return "macos", nil
	case goos == "linux" && goarch == "amd64":
		return "linux-amd64", nil
	case goos == "linux" && goarch == "arm64":
		return "linux-arm64", nil
	case goos == "linux" && goarch == "386":
		return "linux-i686", nil
	case goos == "linux" && goarch == "arm":
		return "linux-armel", nil
	default:
		return "", fmt.Errorf("catalog: unsupported host platform %s/%s", goos, goarch)
	}
}
