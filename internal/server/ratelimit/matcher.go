package ratelimit

import (
	"net/http"
	"strings"
)

// unlimited is returned for routes that are never limited
var unlimited = Rule{Pattern: "/health", Method: http.MethodGet}

// Match returns the first rule whose method and pattern fit the request, or
// nil when none does. GET /health always matches an unlimited rule.
func Match(path, method string, rules []Rule) *Rule {
	if path == unlimited.Pattern && method == unlimited.Method {
		r := unlimited
		return &r
	}

	segments := splitPath(path)
	for i := range rules {
		if rules[i].Method == method && matchSegments(splitPath(rules[i].Pattern), segments) {
			return &rules[i]
		}
	}
	return nil
}

func matchSegments(pattern, path []string) bool {
	if len(pattern) != len(path) {
		return false
	}
	for i, p := range pattern {
		if p != "*" && p != path[i] {
			return false
		}
	}
	return true
}

func splitPath(p string) []string {
	p = strings.Trim(p, "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}
