package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/jobchat/internal/config"
	"github.com/jonathan/jobchat/internal/db"
	"github.com/jonathan/jobchat/internal/interview"
	"github.com/jonathan/jobchat/internal/types"
)

// TestMain runs before all tests and loads .env if available
func TestMain(m *testing.M) {
	_ = godotenv.Load()
	os.Exit(m.Run())
}

func seed(t *testing.T) *db.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := db.NewMemoryStore()
	require.NoError(t, store.Set(ctx, db.CollectionOrgs, "org-1", map[string]any{"companyName": "Acme", "industry": "Robotics"}))
	require.NoError(t, store.Set(ctx, db.CollectionJobs, "job-1", map[string]any{"jobTitle": "Backend Engineer", "jobDescription": "Go services"}))
	require.NoError(t, store.Set(ctx, db.CollectionCandidates, "cand-1", map[string]any{"name": "Sam"}))
	return store
}

func TestCompilePrompt(t *testing.T) {
	var out bytes.Buffer
	err := compilePrompt(context.Background(), seed(t), "org-1", "job-1", "cand-1", &out)
	require.NoError(t, err)

	assert.Contains(t, out.String(), "Acme")
	assert.Contains(t, out.String(), "Backend Engineer")
	assert.NotContains(t, out.String(), "{{.")
}

func TestCompilePrompt_MissingJob(t *testing.T) {
	var out bytes.Buffer
	err := compilePrompt(context.Background(), seed(t), "org-1", "job-404", "cand-1", &out)
	require.Error(t, err)
	assert.Equal(t, interview.CodeNotFound, interview.CodeOf(err))
	assert.Empty(t, out.String())
}

type stubExtractor struct {
	job, org int
	err      error
}

func (s *stubExtractor) ExtractAndSaveJob(_ context.Context, _ *types.ExtractRequest) (*types.ExtractResponse, error) {
	s.job++
	return &types.ExtractResponse{Success: true, ExtractedData: map[string]any{"jobTitle": "SRE"}}, s.err
}

func (s *stubExtractor) ExtractAndSaveOrg(_ context.Context, _ *types.ExtractRequest) (*types.ExtractResponse, error) {
	s.org++
	return &types.ExtractResponse{Success: true, ExtractedData: map[string]any{"companyName": "Acme"}}, s.err
}

func TestExtractAndPrint_SelectsTarget(t *testing.T) {
	ex := &stubExtractor{}

	var out bytes.Buffer
	require.NoError(t, extractAndPrint(context.Background(), ex, &types.ExtractRequest{OrgID: "o", JobID: "j", TextInput: "x"}, &out))
	assert.Equal(t, 1, ex.job)
	assert.JSONEq(t, `{"jobTitle":"SRE"}`, out.String())

	out.Reset()
	require.NoError(t, extractAndPrint(context.Background(), ex, &types.ExtractRequest{OrgID: "o", TextInput: "x"}, &out))
	assert.Equal(t, 1, ex.org)
	assert.JSONEq(t, `{"companyName":"Acme"}`, out.String())
}

func TestExtractAndPrint_Error(t *testing.T) {
	ex := &stubExtractor{err: errors.New("boom")}

	var out bytes.Buffer
	err := extractAndPrint(context.Background(), ex, &types.ExtractRequest{OrgID: "o", TextInput: "x"}, &out)
	assert.EqualError(t, err, "boom")
	assert.Empty(t, out.String())
}

func TestReadInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "job.txt")
	require.NoError(t, os.WriteFile(path, []byte("We are hiring"), 0644))

	text, err := readInput(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "We are hiring", text)

	text, err = readInput("-", strings.NewReader("from stdin"))
	require.NoError(t, err)
	assert.Equal(t, "from stdin", text)

	_, err = readInput(filepath.Join(t.TempDir(), "missing.txt"), nil)
	assert.ErrorContains(t, err, "failed to read input")
}

func TestRateLimitConfig(t *testing.T) {
	rl := rateLimitConfig(config.RateLimitConfig{
		Enabled:       true,
		DefaultLimit:  5,
		DefaultWindow: time.Minute,
		Whitelist:     []string{"10.0.0.1,10.0.0.2"},
	})

	assert.True(t, rl.Enabled)
	assert.Equal(t, 5, rl.DefaultLimit)
	assert.True(t, rl.Whitelist["10.0.0.2"])
	assert.NotEmpty(t, rl.Rules)
}

func TestCommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "migrate", "compile-prompt", "extract"} {
		assert.True(t, names[want], want)
	}
}
