package interview

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jonathan/jobchat/internal/db"
	"github.com/jonathan/jobchat/internal/llm"
)

// fakeClient returns scripted replies and records every request.
// onComplete, when set, runs before each reply is returned.
type fakeClient struct {
	mu         sync.Mutex
	replies    []string
	err        error
	requests   []llm.Request
	onComplete func()
}

func (f *fakeClient) Complete(_ context.Context, req llm.Request) (string, error) {
	if f.onComplete != nil {
		f.onComplete()
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if f.err != nil {
		return "", f.err
	}
	if len(f.replies) == 0 {
		return "Tell me about yourself.", nil
	}
	reply := f.replies[0]
	if len(f.replies) > 1 {
		f.replies = f.replies[1:]
	}
	return reply, nil
}

func (f *fakeClient) GetModel(tier llm.ModelTier) string { return "fake-" + string(tier) }

func (f *fakeClient) Close() error { return nil }

func (f *fakeClient) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

const (
	testOrgID       = "org-1"
	testJobID       = "job-1"
	testCandidateID = "cand-1"
)

var fixedNow = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

// seedStore stores one organization, job and candidate
func seedStore(t *testing.T) *db.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := db.NewMemoryStore()

	require.NoError(t, store.Set(ctx, db.CollectionOrgs, testOrgID, map[string]any{
		"companyName":    "Acme Robotics",
		"industry":       "Technology",
		"companyValues":  []any{map[string]any{"name": "Ownership", "description": "Own outcomes"}},
		"stripeCustomer": "cus_123",
	}))
	require.NoError(t, store.Set(ctx, db.CollectionJobs, testJobID, map[string]any{
		"jobTitle":          "Backend Engineer",
		"jobDescription":    "Build and run Go services",
		"requiredSkills":    []any{map[string]any{"skill": "Go", "level": "expert"}},
		"requiredQuestions": []any{"Why Acme?"},
		"techStack":         map[string]any{"stack": []any{map[string]any{"skill": "PostgreSQL"}}},
		"salaryRange":       "confidential",
	}))
	require.NoError(t, store.Set(ctx, db.CollectionCandidates, testCandidateID, map[string]any{
		"name":            "Sam Doe",
		"resumeBreakdown": "Five years of Go at a fintech.",
	}))
	return store
}

func newTestService(store db.Store, client llm.Client) *Service {
	svc := NewService(store, client, Options{})
	svc.now = func() time.Time { return fixedNow }
	return svc
}
