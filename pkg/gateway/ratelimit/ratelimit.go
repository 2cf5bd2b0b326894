package ratelimit

import (
	"crypto/sha256"
	"encoding/hex"
	"math"
	"strings"
	"sync"
	"time"
)

// Cost is how many tokens one call draws from a client's bucket.
type Cost int

const (
	// CostText covers chat, query, search and model listing.
	CostText Cost = 1
	// CostMedia covers image generation and editing, image and video
	// analysis, and speech synthesis: calls that carry or return media.
	CostMedia Cost = 3
)

// CostForPath prices a studio route. Unknown paths cost a text call.
func CostForPath(path string) Cost {
	switch {
	case strings.HasPrefix(path, "/v1/images/"),
		strings.HasPrefix(path, "/v1/video/"),
		path == "/v1/speech":
		return CostMedia
	default:
		return CostText
	}
}

type Config struct {
	// RPS refills the bucket in tokens per second; Burst is its capacity.
	RPS   float64
	Burst int
	// MediaCost overrides CostMedia when > 0.
	MediaCost int

	MaxConcurrentRequests int
	// MaxLiveSessions caps open /v1/live sockets per client.
	MaxLiveSessions int

	// Bounds for the in-memory client map.
	MaxEntries int
	EntryTTL   time.Duration
}

// Limiter tracks every client seen recently in one process.
type Limiter struct {
	cfg Config

	mu      sync.Mutex
	clients map[string]*client
}

type client struct {
	mu       sync.Mutex
	tokens   float64
	filled   time.Time
	lastSeen time.Time

	inflight chan struct{}
	live     chan struct{}
}

func New(cfg Config) *Limiter {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10_000
	}
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = 30 * time.Minute
	}
	return &Limiter{cfg: cfg, clients: make(map[string]*client)}
}

// ClientKeyFromIP buckets a client address for the in-memory maps so raw
// addresses are never kept or logged.
func ClientKeyFromIP(ip string) string {
	sum := sha256.Sum256([]byte(ip))
	return "ip_" + hex.EncodeToString(sum[:16])
}

// Permit is held for the duration of an admitted call. Release is idempotent.
type Permit struct {
	once    sync.Once
	release func()
}

func (p *Permit) Release() {
	if p == nil || p.release == nil {
		return
	}
	p.once.Do(p.release)
}

type Decision struct {
	Allowed bool
	// RetryAfter is whole seconds until the bucket can cover the cost.
	RetryAfter int
	Permit     *Permit
}

func allow(release func()) Decision {
	return Decision{Allowed: true, Permit: &Permit{release: release}}
}

// AcquireRequest admits one single-shot call of the given cost. The bucket is
// charged only when a concurrency slot is also free.
func (l *Limiter) AcquireRequest(key string, cost Cost, now time.Time) Decision {
	c := l.client(key, now)

	var slot func()
	if l.cfg.MaxConcurrentRequests > 0 {
		select {
		case c.inflight <- struct{}{}:
			slot = func() { <-c.inflight }
		default:
			return Decision{RetryAfter: 1}
		}
	}

	if ok, retry := c.take(l.price(cost), l.cfg.RPS, l.cfg.Burst, now); !ok {
		if slot != nil {
			slot()
		}
		return Decision{RetryAfter: retry}
	}
	if slot == nil {
		slot = func() {}
	}
	return allow(slot)
}

// AcquireLive reserves a live session slot. The upgrade request already paid
// its token, so only the session cap applies.
func (l *Limiter) AcquireLive(key string, now time.Time) Decision {
	c := l.client(key, now)
	if l.cfg.MaxLiveSessions <= 0 {
		return allow(func() {})
	}
	select {
	case c.live <- struct{}{}:
		return allow(func() { <-c.live })
	default:
		return Decision{RetryAfter: 1}
	}
}

func (l *Limiter) price(cost Cost) float64 {
	if cost == CostMedia && l.cfg.MediaCost > 0 {
		cost = Cost(l.cfg.MediaCost)
	}
	if cost < 1 {
		cost = 1
	}
	return float64(cost)
}

func (l *Limiter) client(key string, now time.Time) *client {
	if key == "" {
		key = "anonymous"
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	c, ok := l.clients[key]
	if !ok {
		if len(l.clients) >= l.cfg.MaxEntries {
			l.evictLocked(now)
		}
		c = &client{
			inflight: make(chan struct{}, max(1, l.cfg.MaxConcurrentRequests)),
			live:     make(chan struct{}, max(1, l.cfg.MaxLiveSessions)),
		}
		l.clients[key] = c
	}
	c.mu.Lock()
	c.lastSeen = now
	c.mu.Unlock()
	return c
}

// evictLocked drops idle clients; if none are idle it drops the least
// recently seen one that holds no slot.
func (l *Limiter) evictLocked(now time.Time) {
	var oldestKey string
	var oldest time.Time
	for k, c := range l.clients {
		c.mu.Lock()
		seen := c.lastSeen
		c.mu.Unlock()
		if len(c.inflight) > 0 || len(c.live) > 0 {
			continue
		}
		if now.Sub(seen) > l.cfg.EntryTTL {
			delete(l.clients, k)
			continue
		}
		if oldestKey == "" || seen.Before(oldest) {
			oldestKey, oldest = k, seen
		}
	}
	if len(l.clients) >= l.cfg.MaxEntries && oldestKey != "" {
		delete(l.clients, oldestKey)
	}
}

// take draws n tokens. A cost larger than the bucket is capped at its
// capacity so media calls stay possible with a small burst.
func (c *client) take(n, rps float64, burst int, now time.Time) (bool, int) {
	if rps <= 0 || burst <= 0 {
		return true, 0
	}
	capacity := float64(burst)
	n = math.Min(n, capacity)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.filled.IsZero() {
		c.tokens, c.filled = capacity, now
	}
	if elapsed := now.Sub(c.filled).Seconds(); elapsed > 0 {
		c.tokens = math.Min(capacity, c.tokens+elapsed*rps)
		c.filled = now
	}
	if c.tokens >= n {
		c.tokens -= n
		return true, 0
	}
	return false, max(1, int(math.Ceil((n-c.tokens)/rps)))
}
