// Package asset implements the viewer-side asset interface of §6/§4.10:
// fetching `(uri, sha256)` image/font assets with retry-with-backoff,
// deduplicating concurrent fetches of the same key, and falling back to
// a placeholder on failure rather than erroring the connection.
//
// This is viewer-local behavior — spec.md §1 explicitly treats asset
// decoders as an external collaborator — so this package only owns the
// fetch-and-cache policy, not image/font decoding itself.
package asset

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/hackvr/hackvr-core/internal/logging"
	"github.com/hackvr/hackvr-core/internal/workerpool"
)

// maxConcurrentFetches bounds the total number of in-flight outbound
// HTTP requests across all keys. Per-key dedup (via entry.once) already
// collapses repeat requests for the same asset; this bounds the
// cross-key fan-out a scene with many distinct sprites/fonts can cause.
const maxConcurrentFetches = 8

var log = logging.L("asset")

// Key identifies one asset by its (uri, sha256) tuple, per §6.
type Key struct {
	URI    string
	SHA256 string
}

func (k Key) String() string {
	return fmt.Sprintf("%s#%s", k.URI, k.SHA256)
}

// Kind distinguishes the two placeholder families of §4.10.
type Kind int

const (
	KindImage Kind = iota
	KindFont
)

// RetryConfig controls fetch backoff, grounded on the source tree's
// retry-with-jitter shape, re-targeted from agent-update manifests to
// viewer assets.
type RetryConfig struct {
	MaxRetries    int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
	JitterFrac    float64
}

// DefaultRetryConfig matches spec.md §5's "must not devolve into denial
// of service": a small bounded number of attempts with real backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:    3,
		InitialDelay:  500 * time.Millisecond,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
		JitterFrac:    0.3,
	}
}

// entry is one content-addressed cache slot. Bytes is nil while a fetch
// is in flight; Failed records a terminal failure so repeated pick
// attempts on the same key reuse the placeholder instead of re-fetching
// every frame.
type entry struct {
	once   sync.Once
	bytes  []byte
	failed bool
	err    error
}

// Cache is the viewer's asset cache: keyed by (uri, sha256), tolerant of
// concurrent fetches for the same key (§5's "deduplicate in-flight
// requests").
type Cache struct {
	client *http.Client
	cfg    RetryConfig
	pool   *workerpool.Pool

	mu      sync.Mutex
	entries map[Key]*entry
}

// NewCache returns a Cache using client (or http.DefaultClient if nil)
// and cfg for retry behavior. Outbound fetches run on a small bounded
// worker pool rather than directly on each caller's goroutine, so a
// scene referencing many distinct assets at once cannot open more than
// maxConcurrentFetches sockets simultaneously.
func NewCache(client *http.Client, cfg RetryConfig) *Cache {
	if client == nil {
		client = http.DefaultClient
	}
	return &Cache{
		client:  client,
		cfg:     cfg,
		pool:    workerpool.New(maxConcurrentFetches, 256),
		entries: make(map[Key]*entry),
	}
}

// Close stops accepting new fetches and waits (up to ctx's deadline) for
// in-flight ones to finish, releasing the pool's worker goroutines.
func (c *Cache) Close(ctx context.Context) {
	c.pool.StopAccepting()
	c.pool.Drain(ctx)
}

// Get fetches (or returns the already-cached/in-flight-deduplicated
// bytes for) key, verifying the content hash. On any failure — network,
// non-2xx status, or hash mismatch — it returns ok=false and the caller
// is expected to render the Kind-appropriate placeholder (§4.10); Get
// itself never returns an error to the caller, since a failed fetch is
// not a protocol error.
func (c *Cache) Get(ctx context.Context, key Key) (data []byte, ok bool) {
	c.mu.Lock()
	e, exists := c.entries[key]
	if !exists {
		e = &entry{}
		c.entries[key] = e
	}
	c.mu.Unlock()

	e.once.Do(func() {
		done := make(chan struct{})
		submitted := c.pool.Submit(func() {
			e.bytes, e.err = c.fetchWithRetry(ctx, key)
			close(done)
		})
		if !submitted {
			// Pool is stopped or its queue is full: fetch inline rather than
			// block a caller indefinitely on a pool that will never drain it.
			e.bytes, e.err = c.fetchWithRetry(ctx, key)
		} else {
			<-done
		}
		e.failed = e.err != nil
	})

	if e.failed {
		return nil, false
	}
	return e.bytes, true
}

// Placeholder returns the fixed-size placeholder payload for kind
// (§4.10): a flat magenta (or magenta/white checker) image, or any font
// covering ASCII for text. This core returns a description rather than
// rendering the actual pixels/glyphs, since rasterization belongs to the
// renderer collaborator spec.md §1 excludes.
type Placeholder struct {
	Kind        Kind
	Description string
}

func PlaceholderFor(kind Kind) Placeholder {
	switch kind {
	case KindFont:
		return Placeholder{Kind: KindFont, Description: "fallback font covering ASCII"}
	default:
		return Placeholder{Kind: KindImage, Description: "flat magenta / magenta-white checker"}
	}
}

func (c *Cache) fetchWithRetry(ctx context.Context, key Key) ([]byte, error) {
	delay := c.cfg.InitialDelay
	var lastErr error

	for attempt := 0; attempt <= c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			jittered := applyJitter(delay, c.cfg.JitterFrac)
			log.Debug("retrying asset fetch", "uri", key.URI, "attempt", attempt, "delay", jittered)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(jittered):
			}
			delay = time.Duration(float64(delay) * c.cfg.BackoffFactor)
			if delay > c.cfg.MaxDelay {
				delay = c.cfg.MaxDelay
			}
		}

		data, err := c.fetchOnce(ctx, key)
		if err == nil {
			return data, nil
		}
		lastErr = err
	}

	log.Warn("asset fetch failed, placeholder will be used", "uri", key.URI, "error", lastErr)
	return nil, lastErr
}

func (c *Cache) fetchOnce(ctx context.Context, key Key) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, key.URI, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("asset: %s returned status %d", key.URI, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	sum := sha256.Sum256(data)
	got := hex.EncodeToString(sum[:])
	if got != key.SHA256 {
		return nil, fmt.Errorf("asset: %s hash mismatch: got %s, want %s", key.URI, got, key.SHA256)
	}
	return data, nil
}

func applyJitter(d time.Duration, frac float64) time.Duration {
	if frac <= 0 {
		return d
	}
	jitter := float64(d) * frac * (2*rand.Float64() - 1)
	result := time.Duration(float64(d) + jitter)
	if result < 0 {
		return 0
	}
	return result
}

// VerifyHash is exposed standalone for callers (e.g. tests, or a
// non-HTTP asset source) that already have the bytes and just need the
// §6 hash check without going through the HTTP fetch path.
func VerifyHash(data []byte, sha256Hex string) bool {
	sum := sha256.Sum256(data)
	return bytes.Equal(sum[:], mustDecodeHex(sha256Hex))
}

func mustDecodeHex(s string) []byte {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil
	}
	return b
}
