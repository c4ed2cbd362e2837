package ratelimit

import (
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is advanced by hand
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newTestLimiter(t *testing.T, cfg *Config) (*Limiter, *fakeClock) {
	t.Helper()
	clock := &fakeClock{t: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLimiter(cfg)
	l.now = clock.Now
	t.Cleanup(l.Stop)
	return l, clock
}

func TestMatch(t *testing.T) {
	rules := DefaultRules()

	tests := []struct {
		path    string
		method  string
		pattern string
	}{
		{"/applications", http.MethodPost, "/applications"},
		{"/applications/abc/turns", http.MethodPost, "/applications/*/turns"},
		{"/applications/abc/report", http.MethodPost, "/applications/*/report"},
		{"/orgs/o1/extract", http.MethodPost, "/orgs/*/extract"},
		{"/orgs/o1/jobs/j1/extract", http.MethodPost, "/orgs/*/jobs/*/extract"},
		{"/applications/abc/turns/", http.MethodPost, "/applications/*/turns"},
		{"/applications/abc/turns", http.MethodGet, ""},
		{"/applications/abc/other", http.MethodPost, ""},
		{"/applications/a/b/turns", http.MethodPost, ""},
		{"/unknown", http.MethodPost, ""},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rule := Match(tt.path, tt.method, rules)
			if tt.pattern == "" {
				assert.Nil(t, rule)
				return
			}
			require.NotNil(t, rule)
			assert.Equal(t, tt.pattern, rule.Pattern)
		})
	}
}

func TestMatch_HealthIsUnlimited(t *testing.T) {
	rule := Match("/health", http.MethodGet, nil)
	require.NotNil(t, rule)
	assert.Zero(t, rule.Limit)
}

func TestLimiter_DefaultLimit(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 3, DefaultWindow: time.Minute})

	for i := 0; i < 3; i++ {
		allowed, info := l.Allow("127.0.0.1", "/other", http.MethodGet)
		require.True(t, allowed, "request %d", i+1)
		assert.Equal(t, 3, info.Limit)
		assert.Equal(t, 2-i, info.Remaining)
	}

	allowed, info := l.Allow("127.0.0.1", "/other", http.MethodGet)
	assert.False(t, allowed)
	assert.Equal(t, 0, info.Remaining)
	assert.InDelta(t, 20, info.RetryAfter.Seconds(), 0.001)
}

func TestLimiter_Refill(t *testing.T) {
	l, clock := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 60, DefaultWindow: time.Minute})
	l.config.Rules = []Rule{{Pattern: "/x", Method: http.MethodPost, Limit: 60, Window: time.Minute, Burst: 1}}

	allowed, _ := l.Allow("c", "/x", http.MethodPost)
	require.True(t, allowed)
	allowed, _ = l.Allow("c", "/x", http.MethodPost)
	require.False(t, allowed)

	clock.Advance(time.Second)
	allowed, _ = l.Allow("c", "/x", http.MethodPost)
	assert.True(t, allowed)
}

func TestLimiter_RoutesShareBucketAcrossIDs(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
		Rules:         []Rule{{Pattern: "/applications/*/report", Method: http.MethodPost, Limit: 2, Window: time.Hour}},
	})

	for i := 0; i < 2; i++ {
		allowed, _ := l.Allow("c", fmt.Sprintf("/applications/app-%d/report", i), http.MethodPost)
		require.True(t, allowed)
	}
	allowed, _ := l.Allow("c", "/applications/app-9/report", http.MethodPost)
	assert.False(t, allowed, "a fresh id must not reset the route limit")

	allowed, _ = l.Allow("other-client", "/applications/app-9/report", http.MethodPost)
	assert.True(t, allowed, "clients are limited independently")
}

func TestLimiter_WhitelistAndBlacklist(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{
		Enabled:       true,
		DefaultLimit:  1,
		DefaultWindow: time.Minute,
		Whitelist:     IPSet([]string{"10.0.0.1"}),
		Blacklist:     IPSet([]string{"10.0.0.2"}),
	})

	for i := 0; i < 5; i++ {
		allowed, _ := l.Allow("10.0.0.1", "/x", http.MethodGet)
		assert.True(t, allowed)
	}
	allowed, _ := l.Allow("10.0.0.2", "/x", http.MethodGet)
	assert.False(t, allowed)
}

func TestLimiter_Disabled(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: false, DefaultLimit: 1, DefaultWindow: time.Minute})
	for i := 0; i < 5; i++ {
		allowed, info := l.Allow("c", "/x", http.MethodGet)
		assert.True(t, allowed)
		assert.Zero(t, info.Limit)
	}
}

func TestLimiter_HealthNeverLimited(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 1, DefaultWindow: time.Minute})
	for i := 0; i < 5; i++ {
		allowed, _ := l.Allow("c", "/health", http.MethodGet)
		assert.True(t, allowed)
	}
}

func TestLimiter_Concurrent(t *testing.T) {
	l, _ := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 50, DefaultWindow: time.Hour})

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		granted int
	)
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := l.Allow("c", "/x", http.MethodGet); ok {
				mu.Lock()
				granted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, granted)
}

func TestLimiter_EvictIdle(t *testing.T) {
	l, clock := newTestLimiter(t, &Config{Enabled: true, DefaultLimit: 10, DefaultWindow: time.Minute})

	l.Allow("old", "/x", http.MethodGet)
	clock.Advance(2 * time.Hour)
	l.Allow("new", "/x", http.MethodGet)

	l.evictIdle()

	l.mu.Lock()
	defer l.mu.Unlock()
	assert.Len(t, l.buckets, 1)
	assert.Contains(t, l.buckets, "new GET *")
}

func TestIPSet(t *testing.T) {
	set := IPSet([]string{" 10.0.0.1 ", "10.0.0.2,10.0.0.3", ""})
	assert.Equal(t, map[string]bool{"10.0.0.1": true, "10.0.0.2": true, "10.0.0.3": true}, set)
}

func TestNewLimiter_NilConfig(t *testing.T) {
	l := NewLimiter(nil)
	defer l.Stop()
	assert.True(t, l.config.Enabled)
	assert.NotEmpty(t, l.config.Rules)
	l.Stop()
}
