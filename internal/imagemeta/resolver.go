// Package imagemeta looks up the intrinsic pixel size of overlay images.
// Lookups are cached per URL, deduplicated while in flight and isolated from
// each other: a failed image is remembered as unknown without affecting any
// other URL.
package imagemeta

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultTimeout = 10 * time.Second
	maxImageBytes  = 32 * 1024 * 1024
)

var ErrImageLoad = errors.New("image load failed")

// Dimensions is the natural size of an image in pixels.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Known reports whether both sides are positive.
func (d Dimensions) Known() bool {
	return d.Width > 0 && d.Height > 0
}

// State describes where a URL is in its lookup lifecycle.
type State string

const (
	StateUnknown  State = "unknown"
	StatePending  State = "pending"
	StateResolved State = "resolved"
	StateFailed   State = "failed"
)

// Fetcher opens the bytes of an image.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (io.ReadCloser, error)
}

type entry struct {
	state State
	dims  Dimensions
	err   error
}

type Resolver struct {
	fetcher Fetcher
	timeout time.Duration
	logger  *slog.Logger

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]entry
	wg    sync.WaitGroup
}

func NewResolver(fetcher Fetcher, timeout time.Duration, logger *slog.Logger) *Resolver {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Resolver{
		fetcher: fetcher,
		timeout: timeout,
		logger:  logger,
		cache:   make(map[string]entry),
	}
}

// Lookup returns the cached dimensions for url without blocking.
func (r *Resolver) Lookup(url string) (Dimensions, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.cache[url]
	if !ok || e.state != StateResolved {
		return Dimensions{}, false
	}
	return e.dims, true
}

// State returns the lookup state of url.
func (r *Resolver) State(url string) State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.cache[url]; ok {
		return e.state
	}
	return StateUnknown
}

// Snapshot returns every resolved URL.
func (r *Resolver) Snapshot() map[string]Dimensions {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Dimensions, len(r.cache))
	for url, e := range r.cache {
		if e.state == StateResolved {
			out[url] = e.dims
		}
	}
	return out
}

// Prefetch starts background lookups for every URL not already resolved,
// failed or pending. It returns immediately.
func (r *Resolver) Prefetch(urls []string) {
	for _, url := range urls {
		if !r.claim(url) {
			continue
		}
		r.wg.Add(1)
		go func(url string) {
			defer r.wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
			defer cancel()
			r.load(ctx, url)
		}(url)
	}
}

// Wait blocks until every background lookup started by Prefetch returns.
func (r *Resolver) Wait() {
	r.wg.Wait()
}

// Resolve returns the dimensions of url, loading them if needed. Failures are
// cached; call Forget to retry a URL.
func (r *Resolver) Resolve(ctx context.Context, url string) (Dimensions, error) {
	r.mu.RLock()
	e, ok := r.cache[url]
	r.mu.RUnlock()
	if ok {
		switch e.state {
		case StateResolved:
			return e.dims, nil
		case StateFailed:
			return Dimensions{}, e.err
		}
	}

	r.claim(url)
	return r.load(ctx, url)
}

// Forget drops any cached result for url.
func (r *Resolver) Forget(url string) {
	r.mu.Lock()
	delete(r.cache, url)
	r.mu.Unlock()
}

// claim marks url pending. It reports false when the URL already has an
// entry.
func (r *Resolver) claim(url string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cache[url]; ok {
		return false
	}
	r.cache[url] = entry{state: StatePending}
	return true
}

// load runs one shared lookup per URL. The lookup is detached from the
// caller's cancellation and bounded by the resolver timeout, so a caller that
// gives up returns early while the result is still cached for everyone else.
func (r *Resolver) load(ctx context.Context, url string) (Dimensions, error) {
	ch := r.group.DoChan(url, func() (any, error) {
		r.mu.RLock()
		e := r.cache[url]
		r.mu.RUnlock()
		switch e.state {
		case StateResolved:
			return e.dims, nil
		case StateFailed:
			return Dimensions{}, e.err
		}

		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
		defer cancel()
		dims, err := r.decode(loadCtx, url)

		r.mu.Lock()
		if err != nil {
			r.cache[url] = entry{state: StateFailed, err: err}
		} else {
			r.cache[url] = entry{state: StateResolved, dims: dims}
		}
		r.mu.Unlock()

		if err != nil && r.logger != nil {
			r.logger.Warn("image dimensions unknown", "url", url, "error", err)
		}
		return dims, err
	})

	select {
	case <-ctx.Done():
		return Dimensions{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Dimensions{}, res.Err
		}
		return res.Val.(Dimensions), nil
	}
}

func (r *Resolver) decode(ctx context.Context, url string) (Dimensions, error) {
	rc, err := r.fetcher.Fetch(ctx, url)
	if err != nil {
		return Dimensions{}, fmt.Errorf("%w: %s: %v", ErrImageLoad, url, err)
	}
	defer rc.Close()

	br := bufio.NewReaderSize(io.LimitReader(rc, maxImageBytes), sniffLen)
	head, _ := br.Peek(sniffLen)

	var dims Dimensions
	if looksLikeSVG(head) {
		dims, err = svgDimensions(br)
	} else {
		var cfg image.Config
		cfg, _, err = image.DecodeConfig(br)
		dims = Dimensions{Width: cfg.Width, Height: cfg.Height}
	}
	if err != nil {
		return Dimensions{}, fmt.Errorf("%w: %s: %v", ErrImageLoad, url, err)
	}
	if !dims.Known() {
		return Dimensions{}, fmt.Errorf("%w: %s: empty image", ErrImageLoad, url)
	}
	return dims, nil
}

// HTTPFetcher loads http(s) URLs. Other schemes are rejected.
type HTTPFetcher struct {
	client *http.Client
}

func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) (io.ReadCloser, error) {
	if !strings.HasPrefix(url, "http://") && !strings.HasPrefix(url, "https://") {
		return nil, fmt.Errorf("unsupported url scheme")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	return resp.Body, nil
}
