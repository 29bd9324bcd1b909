// Package fetch implements the Fetcher (C3): HTTP download with progress
// reporting, mirror rewriting, and mirror ranking by latency probe.
package fetch

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/idftools/eim/internal/archive"
	"github.com/idftools/eim/internal/eimerrors"
	"github.com/idftools/eim/internal/httputil"
	"github.com/idftools/eim/internal/log"
	"github.com/idftools/eim/internal/progress"
)

// GithubPrefix is the upstream host rewritten by mirror substitution.
const GithubPrefix = "https://github.com"

// Fetcher downloads files over HTTPS, verifying checksums and reporting
// progress the way the teacher's download_file action does.
type Fetcher struct {
	Client *http.Client
	Logger log.Logger
	// Offline disables all network access: only checksum-verified cache
	// hits succeed. Used when installing from an offline archive.
	Offline bool
}

// New returns a Fetcher with the secure default HTTP client.
func New() *Fetcher {
	return &Fetcher{
		Client: httputil.NewSecureClient(httputil.DefaultOptions()),
		Logger: log.Default(),
	}
}

// Download fetches url into destDir/filename (filename defaults to the
// URL's basename), verifying sha256Hex if non-empty. The destination is
// written via a temp-file-then-rename so partial downloads are never
// mistaken for complete ones.
func (f *Fetcher) Download(ctx context.Context, url, destDir, filename, sha256Hex string) (string, error) {
	if !allowedScheme(url) {
		return "", eimerrors.New(eimerrors.KindNetwork, "download url must use https: "+url)
	}
	if filename == "" {
		filename = filepath.Base(strings.SplitN(url, "?", 2)[0])
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", eimerrors.Wrap(eimerrors.KindPathInvalid, "create destination dir", err)
	}
	destPath := filepath.Join(destDir, filename)
	tmpPath := destPath + ".download"

	if sha256Hex != "" {
		if archive.Verify(sha256Hex, destPath) {
			f.Logger.Debug("fetch: cache hit", "path", destPath)
			return destPath, nil
		}
	}
	if f.Offline {
		return "", eimerrors.New(eimerrors.KindNetwork, "offline mode: "+filename+" not present in the archive's dist cache")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", eimerrors.Wrap(eimerrors.KindNetwork, "build request", err)
	}
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := f.Client.Do(req)
	if err != nil {
		return "", eimerrors.Wrap(eimerrors.KindNetwork, "download "+url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", eimerrors.New(eimerrors.KindNetwork, fmt.Sprintf("bad status %s from %s", resp.Status, url))
	}
	if enc := resp.Header.Get("Content-Encoding"); enc != "" && enc != "identity" {
		return "", eimerrors.New(eimerrors.KindNetwork, "compressed responses not supported: "+enc)
	}
	if resp.ContentLength < 0 {
		return "", eimerrors.New(eimerrors.KindNetwork, "server did not advertise Content-Length for "+url)
	}

	out, err := os.Create(tmpPath)
	if err != nil {
		return "", eimerrors.Wrap(eimerrors.KindPathInvalid, "create temp file", err)
	}

	var copyErr error
	if progress.ShouldShowProgress() && resp.ContentLength > 0 {
		pw := progress.NewWriter(out, resp.ContentLength, os.Stdout)
		_, copyErr = io.Copy(pw, resp.Body)
		pw.Finish()
	} else {
		_, copyErr = io.Copy(out, resp.Body)
	}
	closeErr := out.Close()
	if copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		os.Remove(tmpPath)
		return "", eimerrors.Wrap(eimerrors.KindNetwork, "write download", copyErr)
	}

	if sha256Hex != "" && !archive.Verify(sha256Hex, tmpPath) {
		actual, _ := archive.Sha256Of(tmpPath)
		os.Remove(tmpPath)
		return "", eimerrors.Checksum(filename, sha256Hex, actual)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		os.Remove(tmpPath)
		return "", eimerrors.Wrap(eimerrors.KindPathInvalid, "rename downloaded file", err)
	}
	return destPath, nil
}

// allowedScheme requires https for all remote downloads. Plain http is
// tolerated only for loopback hosts (local fixture servers, offline
// archive staging).
func allowedScheme(rawURL string) bool {
	if strings.HasPrefix(rawURL, "https://") {
		return true
	}
	if !strings.HasPrefix(rawURL, "http://") {
		return false
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	host := u.Hostname()
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// probeTimeout bounds each mirror latency probe so one slow/dead mirror
// cannot stall ranking.
const probeTimeout = 5 * time.Second
