package readversion

import (
	"sync"
	"time"

	"github.com/cuemby/objstore/pkg/obs/metrics"
)

// Mode selects how a cached read version may be used.
type Mode int

const (
	// ModeServer never uses a cached version: always ask the store for a
	// fresh one.
	ModeServer Mode = iota
	// ModeCached accepts any cached version regardless of age.
	ModeCached
	// ModeStale accepts a cached version only if its age is within
	// Policy.MaxStaleness.
	ModeStale
)

// Policy governs whether Cache.Get may hand back a cached version.
type Policy struct {
	Mode         Mode
	MaxStaleness time.Duration
}

// Server is the always-fresh policy.
func Server() Policy { return Policy{Mode: ModeServer} }

// Cached accepts any cached version.
func Cached() Policy { return Policy{Mode: ModeCached} }

// Stale accepts a cached version up to maxAge old.
func Stale(maxAge time.Duration) Policy { return Policy{Mode: ModeStale, MaxStaleness: maxAge} }

// Cache holds at most one (version, acquired_at) pair, protected by a mutex.
// One Cache belongs to exactly one session; it is never shared across
// sessions (§5).
type Cache struct {
	mu         sync.Mutex
	version    int64
	acquiredAt time.Time
	hasValue   bool
}

// Get returns the cached version if policy permits its use, given the
// current age of the cached value.
func (c *Cache) Get(policy Policy) (version int64, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.hasValue || policy.Mode == ModeServer {
		metrics.ReadVersionCacheMissesTotal.Inc()
		return 0, false
	}
	switch policy.Mode {
	case ModeCached:
		metrics.ReadVersionCacheHitsTotal.Inc()
		return c.version, true
	case ModeStale:
		if time.Since(c.acquiredAt) <= policy.MaxStaleness {
			metrics.ReadVersionCacheHitsTotal.Inc()
			return c.version, true
		}
		metrics.ReadVersionCacheMissesTotal.Inc()
		return 0, false
	default:
		metrics.ReadVersionCacheMissesTotal.Inc()
		return 0, false
	}
}

// Update monotonically replaces the cached pair: a version older than what's
// already cached is ignored, so a slow concurrent read can't regress a
// session's view after a faster one already advanced it.
func (c *Cache) Update(version int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasValue || version >= c.version {
		c.version = version
		c.acquiredAt = time.Now()
		c.hasValue = true
	}
}

// Clear drops the cached version, forcing the next Get to miss.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.hasValue = false
}

// Info reports the cached version and its age, if any.
func (c *Cache) Info() (version int64, age time.Duration, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.hasValue {
		return 0, 0, false
	}
	return c.version, time.Since(c.acquiredAt), true
}
