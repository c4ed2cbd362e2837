package ratelimit

import (
	"net/http"
	"strings"
	"time"
)

// Rule limits one route. Pattern segments equal to "*" match any single path
// segment, so "/applications/*/turns" covers every application.
type Rule struct {
	Pattern string
	Method  string
	Limit   int           // requests per Window
	Window  time.Duration
	Burst   int // bucket capacity; Limit when 0
}

// Config holds rate limiting configuration.
type Config struct {
	Enabled         bool
	DefaultLimit    int
	DefaultWindow   time.Duration
	CleanupInterval time.Duration
	Whitelist       map[string]bool
	Blacklist       map[string]bool
	Rules           []Rule
}

// DefaultConfig returns the limits used when none are configured
func DefaultConfig() *Config {
	return &Config{
		Enabled:         true,
		DefaultLimit:    1000,
		DefaultWindow:   time.Minute,
		CleanupInterval: 5 * time.Minute,
		Whitelist:       map[string]bool{},
		Blacklist:       map[string]bool{},
		Rules:           DefaultRules(),
	}
}

// DefaultRules returns the per-route limits of the interview API. Every
// limited route triggers at least one completion call.
func DefaultRules() []Rule {
	return []Rule{
		// Report and extraction run the larger models
		{Pattern: "/applications/*/report", Method: http.MethodPost, Limit: 10, Window: time.Hour, Burst: 2},
		{Pattern: "/orgs/*/jobs/*/extract", Method: http.MethodPost, Limit: 30, Window: time.Hour, Burst: 5},
		{Pattern: "/orgs/*/extract", Method: http.MethodPost, Limit: 30, Window: time.Hour, Burst: 5},

		// One request per candidate message
		{Pattern: "/applications/*/turns", Method: http.MethodPost, Limit: 60, Window: time.Minute, Burst: 10},
		{Pattern: "/applications", Method: http.MethodPost, Limit: 100, Window: time.Minute, Burst: 10},
	}
}

// IPSet turns a list of addresses into a lookup set, skipping blanks
func IPSet(ips []string) map[string]bool {
	set := make(map[string]bool, len(ips))
	for _, ip := range ips {
		// Env values arrive as one comma-separated string.
		for _, part := range strings.Split(ip, ",") {
			if part = strings.TrimSpace(part); part != "" {
				set[part] = true
			}
		}
	}
	return set
}
