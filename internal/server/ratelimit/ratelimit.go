// Package ratelimit limits requests per client and route with token buckets.
package ratelimit

import (
	"sync"
	"time"
)

// idleTTL is how long an unused bucket survives cleanup
const idleTTL = time.Hour

// bucket refills at a steady rate up to its capacity
type bucket struct {
	mu         sync.Mutex
	capacity   float64
	perSecond  float64
	tokens     float64
	lastRefill time.Time
	lastUsed   time.Time
}

func newBucket(capacity int, perSecond float64, now time.Time) *bucket {
	return &bucket{
		capacity:   float64(capacity),
		perSecond:  perSecond,
		tokens:     float64(capacity),
		lastRefill: now,
		lastUsed:   now,
	}
}

func (b *bucket) refill(now time.Time) {
	if elapsed := now.Sub(b.lastRefill); elapsed > 0 {
		b.tokens = min(b.capacity, b.tokens+elapsed.Seconds()*b.perSecond)
	}
	b.lastRefill = now
}

// take consumes a token if one is available and reports the bucket state
// after the attempt.
func (b *bucket) take(now time.Time) (ok bool, remaining int, full time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refill(now)
	b.lastUsed = now
	if b.tokens >= 1 {
		b.tokens--
		ok = true
	}

	full = now
	if missing := b.capacity - b.tokens; missing > 0 {
		full = now.Add(time.Duration(missing / b.perSecond * float64(time.Second)))
	}
	return ok, int(b.tokens), full
}

// nextToken is how long until one token is available
func (b *bucket) nextToken(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.tokens >= 1 {
		return 0
	}
	return time.Duration((1 - b.tokens) / b.perSecond * float64(time.Second))
}

func (b *bucket) idleSince(now time.Time) time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()
	return now.Sub(b.lastUsed)
}

// Info contains information about rate limit status.
type Info struct {
	Allowed    bool
	Limit      int
	Remaining  int
	ResetTime  time.Time
	RetryAfter time.Duration
}

// Limiter keeps one bucket per client, method and matched route.
type Limiter struct {
	config  *Config
	mu      sync.Mutex
	buckets map[string]*bucket
	now     func() time.Time
	stop    chan struct{}
	once    sync.Once
}

// NewLimiter creates a limiter and starts its cleanup loop. A nil config
// selects DefaultConfig.
func NewLimiter(config *Config) *Limiter {
	if config == nil {
		config = DefaultConfig()
	}
	l := &Limiter{
		config:  config,
		buckets: make(map[string]*bucket),
		now:     time.Now,
		stop:    make(chan struct{}),
	}
	if config.Enabled && config.CleanupInterval > 0 {
		go l.cleanupLoop(config.CleanupInterval)
	}
	return l
}

// Allow reports whether a request from clientID to path may proceed.
func (l *Limiter) Allow(clientID, path, method string) (bool, Info) {
	switch {
	case !l.config.Enabled, l.config.Whitelist[clientID]:
		return true, Info{Allowed: true}
	case l.config.Blacklist[clientID]:
		return false, Info{}
	}

	rule := Match(path, method, l.config.Rules)
	key := clientID + " " + method + " "
	if rule == nil {
		// Unmatched routes share one default bucket per client.
		rule = &Rule{Limit: l.config.DefaultLimit, Window: l.config.DefaultWindow}
		key += "*"
	} else {
		key += rule.Pattern
	}
	if rule.Limit <= 0 || rule.Window <= 0 {
		return true, Info{Allowed: true}
	}

	now := l.now()
	b := l.bucketFor(key, *rule, now)
	allowed, remaining, full := b.take(now)

	info := Info{
		Allowed:   allowed,
		Limit:     rule.Limit,
		Remaining: remaining,
		ResetTime: full,
	}
	if !allowed {
		info.RetryAfter = b.nextToken(now)
	}
	return allowed, info
}

func (l *Limiter) bucketFor(key string, rule Rule, now time.Time) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.buckets[key]; ok {
		return b
	}
	capacity := rule.Burst
	if capacity <= 0 {
		capacity = rule.Limit
	}
	b := newBucket(capacity, float64(rule.Limit)/rule.Window.Seconds(), now)
	l.buckets[key] = b
	return b
}

func (l *Limiter) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			l.evictIdle()
		case <-l.stop:
			return
		}
	}
}

// evictIdle drops buckets unused for longer than idleTTL
func (l *Limiter) evictIdle() {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if b.idleSince(now) > idleTTL {
			delete(l.buckets, key)
		}
	}
}

// Stop ends the cleanup loop. It is safe to call more than once.
func (l *Limiter) Stop() {
	l.once.Do(func() { close(l.stop) })
}
