package fetch

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/idftools/eim/internal/log"
)

// RewriteDownloadSet replaces the GithubPrefix host in each url with mirror,
// leaving urls that don't use GitHub untouched. An empty mirror is a no-op.
func RewriteDownloadSet(urls []string, mirror string) []string {
	if mirror == "" {
		return urls
	}
	out := make([]string, len(urls))
	for i, u := range urls {
		if strings.HasPrefix(u, GithubPrefix) {
			out[i] = mirror + strings.TrimPrefix(u, GithubPrefix)
		} else {
			out[i] = u
		}
	}
	return out
}

// MirrorLatency pairs a mirror base URL with its measured probe latency.
// Mirrors that failed to respond carry Err and sort last.
type MirrorLatency struct {
	Mirror  string
	Latency time.Duration
	Err     error
}

// RankMirrors probes each candidate mirror concurrently with a HEAD request
// against probePath and returns them ordered fastest-first. Unreachable
// mirrors are ordered after all reachable ones, in input order among
// themselves.
func RankMirrors(ctx context.Context, client *http.Client, mirrors []string, probePath string) []MirrorLatency {
	results := make([]MirrorLatency, len(mirrors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	var mu sync.Mutex
	for i, m := range mirrors {
		g.Go(func() error {
			lat, err := probeMirror(gctx, client, m, probePath)
			mu.Lock()
			results[i] = MirrorLatency{Mirror: m, Latency: lat, Err: err}
			mu.Unlock()
			return nil
		})
	}
	// Probe failures are recorded per-mirror, never fail the group.
	_ = g.Wait()

	sort.SliceStable(results, func(a, b int) bool {
		if (results[a].Err == nil) != (results[b].Err == nil) {
			return results[a].Err == nil
		}
		if results[a].Err != nil {
			return false
		}
		return results[a].Latency < results[b].Latency
	})
	return results
}

func probeMirror(ctx context.Context, client *http.Client, mirror, probePath string) (time.Duration, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodHead, mirror+probePath, nil)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return time.Since(start), nil
}

// bestMirror is a convenience for picking the single fastest reachable
// mirror, falling back to GithubPrefix if none respond.
func bestMirror(ctx context.Context, client *http.Client, mirrors []string, probePath string, logger log.Logger) string {
	if len(mirrors) == 0 {
		return GithubPrefix
	}
	ranked := RankMirrors(ctx, client, mirrors, probePath)
	if ranked[0].Err != nil {
		logger.Warn("fetch: no mirror reachable, using upstream", "upstream", GithubPrefix)
		return GithubPrefix
	}
	return ranked[0].Mirror
}
