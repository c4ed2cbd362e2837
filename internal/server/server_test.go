package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/jonathan/jobchat/internal/db"
	"github.com/jonathan/jobchat/internal/extraction"
	"github.com/jonathan/jobchat/internal/interview"
	"github.com/jonathan/jobchat/internal/llm"
	"github.com/jonathan/jobchat/internal/server/middleware"
	"github.com/jonathan/jobchat/internal/server/ratelimit"
	"github.com/jonathan/jobchat/internal/types"
)

// stubInterviewer records requests and returns canned results
type stubInterviewer struct {
	create *types.CreateApplicationResponse
	turn   *types.InterviewTurnResponse
	report *types.GenerateReportResponse
	err    error

	lastTurn   *types.InterviewTurnRequest
	lastReport *types.GenerateReportRequest
}

func (s *stubInterviewer) CreateApplication(_ context.Context, _ *types.CreateApplicationRequest) (*types.CreateApplicationResponse, error) {
	return s.create, s.err
}

func (s *stubInterviewer) SendTurn(_ context.Context, req *types.InterviewTurnRequest) (*types.InterviewTurnResponse, error) {
	s.lastTurn = req
	return s.turn, s.err
}

func (s *stubInterviewer) GenerateReport(_ context.Context, req *types.GenerateReportRequest) (*types.GenerateReportResponse, error) {
	s.lastReport = req
	return s.report, s.err
}

type stubExtractor struct {
	lastJob *types.ExtractRequest
	lastOrg *types.ExtractRequest
	err     error
}

func (s *stubExtractor) ExtractAndSaveJob(_ context.Context, req *types.ExtractRequest) (*types.ExtractResponse, error) {
	s.lastJob = req
	return &types.ExtractResponse{Success: true, ExtractedData: map[string]any{"jobTitle": "SRE"}}, s.err
}

func (s *stubExtractor) ExtractAndSaveOrg(_ context.Context, req *types.ExtractRequest) (*types.ExtractResponse, error) {
	s.lastOrg = req
	return &types.ExtractResponse{Success: true, ExtractedData: map[string]any{"companyName": "Acme"}}, s.err
}

func newStubServer(t *testing.T, iv Interviewer, ex Extractor) *Server {
	t.Helper()
	s := New(Config{Port: 0, RateLimit: &ratelimit.Config{Enabled: false}}, iv, ex)
	t.Cleanup(s.Close)
	return s
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestHealthEndpoint(t *testing.T) {
	s := newStubServer(t, &stubInterviewer{}, &stubExtractor{})

	rec := do(t, s.Handler(), http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, rec)["status"])
	assert.NotEmpty(t, rec.Header().Get(middleware.HeaderRequestID))
}

func TestCreateApplication_Status(t *testing.T) {
	tests := []struct {
		name     string
		existing bool
		want     int
	}{
		{"new", false, http.StatusCreated},
		{"existing", true, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iv := &stubInterviewer{create: &types.CreateApplicationResponse{Success: true, ApplicationID: "a1", IsExisting: tt.existing}}
			s := newStubServer(t, iv, &stubExtractor{})

			rec := do(t, s.Handler(), http.MethodPost, "/applications", types.CreateApplicationRequest{CandidateID: "c", JobID: "j", OrgID: "o"})

			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "a1", decode[types.CreateApplicationResponse](t, rec).ApplicationID)
		})
	}
}

func TestSendTurn_PathFillsApplicationID(t *testing.T) {
	iv := &stubInterviewer{turn: &types.InterviewTurnResponse{Response: "Why Go?"}}
	s := newStubServer(t, iv, &stubExtractor{})

	rec := do(t, s.Handler(), http.MethodPost, "/applications/app-7/turns", map[string]any{
		"candidateId": "c", "jobId": "j", "orgId": "o", "message": "Hi",
	})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Why Go?", decode[types.InterviewTurnResponse](t, rec).Response)
	require.NotNil(t, iv.lastTurn)
	assert.Equal(t, "app-7", iv.lastTurn.ApplicationID)
}

func TestSendTurn_PathMismatch(t *testing.T) {
	iv := &stubInterviewer{}
	s := newStubServer(t, iv, &stubExtractor{})

	rec := do(t, s.Handler(), http.MethodPost, "/applications/app-7/turns", map[string]any{"applicationId": "app-8"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, interview.CodeInvalidArgument, decode[ErrorResponse](t, rec).Code)
	assert.Nil(t, iv.lastTurn)
}

func TestInvalidJSONBody(t *testing.T) {
	s := newStubServer(t, &stubInterviewer{}, &stubExtractor{})

	req := httptest.NewRequest(http.MethodPost, "/applications", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, interview.CodeInvalidArgument, body.Code)
	assert.Contains(t, body.Error, "invalid JSON body")
}

func TestServiceErrorsMapToStatus(t *testing.T) {
	iv := &stubInterviewer{err: &interview.MalformedReportError{Message: "expected 3 section markers, found 1"}}
	s := newStubServer(t, iv, &stubExtractor{})

	rec := do(t, s.Handler(), http.MethodPost, "/applications/a1/report", map[string]any{})

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode[ErrorResponse](t, rec)
	assert.Equal(t, interview.CodeMalformedReport, body.Code)
	assert.Equal(t, "a1", iv.lastReport.ApplicationID)
}

func TestExtractRoutes(t *testing.T) {
	ex := &stubExtractor{}
	s := newStubServer(t, &stubInterviewer{}, ex)

	rec := do(t, s.Handler(), http.MethodPost, "/orgs/o1/jobs/j1/extract", map[string]any{"textInput": "We are hiring an SRE"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ex.lastJob)
	assert.Equal(t, "o1", ex.lastJob.OrgID)
	assert.Equal(t, "j1", ex.lastJob.JobID)

	rec = do(t, s.Handler(), http.MethodPost, "/orgs/o1/extract", map[string]any{"textInput": "Acme builds robots"})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, ex.lastOrg)
	assert.Equal(t, "o1", ex.lastOrg.OrgID)
}

func TestUnknownRouteAndMethod(t *testing.T) {
	s := newStubServer(t, &stubInterviewer{}, &stubExtractor{})

	assert.Equal(t, http.StatusNotFound, do(t, s.Handler(), http.MethodGet, "/nope", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, s.Handler(), http.MethodGet, "/applications", nil).Code)
}

func TestCORSPreflight(t *testing.T) {
	s := newStubServer(t, &stubInterviewer{}, &stubExtractor{})

	rec := do(t, s.Handler(), http.MethodOptions, "/applications", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRateLimit(t *testing.T) {
	iv := &stubInterviewer{report: &types.GenerateReportResponse{Success: true}}
	s := New(Config{RateLimit: &ratelimit.Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
		Rules: []ratelimit.Rule{
			{Pattern: "/applications/*/report", Method: http.MethodPost, Limit: 1, Window: time.Hour},
		},
	}}, iv, &stubExtractor{})
	t.Cleanup(s.Close)

	rec := do(t, s.Handler(), http.MethodPost, "/applications/a1/report", map[string]any{})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("X-RateLimit-Limit"))

	rec = do(t, s.Handler(), http.MethodPost, "/applications/a2/report", map[string]any{})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Equal(t, "rate-limited", decode[map[string]any](t, rec)["code"])
}

func TestRequestLogging(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	s := New(Config{RateLimit: &ratelimit.Config{Enabled: false}, Logger: zap.New(core)},
		&stubInterviewer{err: errors.New("boom")}, &stubExtractor{})
	t.Cleanup(s.Close)

	do(t, s.Handler(), http.MethodGet, "/health", nil)
	do(t, s.Handler(), http.MethodPost, "/applications", map[string]any{})

	completed := logs.FilterMessage("request completed").All()
	require.Len(t, completed, 1)
	assert.Equal(t, "/health", completed[0].ContextMap()["path"])

	failed := logs.FilterMessage("request failed").All()
	require.Len(t, failed, 1)
	assert.EqualValues(t, http.StatusInternalServerError, failed[0].ContextMap()["status"])
}

// scriptedClient plays back completion replies in order
type scriptedClient struct {
	mu      sync.Mutex
	replies []string
}

func (c *scriptedClient) Complete(_ context.Context, _ llm.Request) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.replies) == 0 {
		return "", errors.New("no scripted reply")
	}
	reply := c.replies[0]
	c.replies = c.replies[1:]
	return reply, nil
}

func (c *scriptedClient) GetModel(tier llm.ModelTier) string { return "scripted-" + string(tier) }

func (c *scriptedClient) Close() error { return nil }

func TestInterviewFlow(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryStore()
	require.NoError(t, store.Set(ctx, db.CollectionOrgs, "org-1", map[string]any{"companyName": "Acme", "industry": "Robotics"}))
	require.NoError(t, store.Set(ctx, db.CollectionJobs, "job-1", map[string]any{"jobTitle": "Backend Engineer", "jobDescription": "Go services", "orgId": "org-1"}))
	require.NoError(t, store.Set(ctx, db.CollectionCandidates, "cand-1", map[string]any{"name": "Sam"}))

	client := &scriptedClient{replies: []string{
		"Welcome Sam. What drew you to Acme?",
		"SECTION 1: Solid Go background.\nSECTION 2: Expand on testing.\nSECTION 3: 7.5",
		`{"jobTitle": "Senior Backend Engineer", "jobDescription": "Own Go services"}`,
	}}
	s := newStubServer(t,
		interview.NewService(store, client, interview.Options{}),
		extraction.NewService(store, client, extraction.Options{}),
	)
	h := s.Handler()

	rec := do(t, h, http.MethodPost, "/applications", types.CreateApplicationRequest{CandidateID: "cand-1", JobID: "job-1", OrgID: "org-1"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[types.CreateApplicationResponse](t, rec)

	rec = do(t, h, http.MethodPost, "/applications", types.CreateApplicationRequest{CandidateID: "cand-1", JobID: "job-1", OrgID: "org-1"})
	require.Equal(t, http.StatusOK, rec.Code)
	again := decode[types.CreateApplicationResponse](t, rec)
	assert.True(t, again.IsExisting)
	assert.Equal(t, created.ApplicationID, again.ApplicationID)
	assert.Equal(t, created.ReportID, again.ReportID)

	rec = do(t, h, http.MethodPost, "/applications/"+created.ApplicationID+"/turns", map[string]any{
		"candidateId": "cand-1", "jobId": "job-1", "orgId": "org-1", "message": "Hello",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Welcome Sam. What drew you to Acme?", decode[types.InterviewTurnResponse](t, rec).Response)

	history := []types.ChatMessage{
		{Role: "user", Content: "Hello"},
		{Role: "model", Content: "Welcome Sam. What drew you to Acme?"},
	}
	rec = do(t, h, http.MethodPost, "/applications/"+created.ApplicationID+"/report", map[string]any{
		"candidateId": "cand-1", "jobId": "job-1", "orgId": "org-1", "history": history,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	report := decode[types.GenerateReportResponse](t, rec)
	assert.InDelta(t, 7.5, report.Score, 1e-9)

	rec = do(t, h, http.MethodPost, "/applications/"+created.ApplicationID+"/report", map[string]any{
		"candidateId": "cand-1", "jobId": "job-1", "orgId": "org-1", "history": history,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = do(t, h, http.MethodPost, "/orgs/org-1/jobs/job-1/extract", map[string]any{"textInput": "Senior backend role owning Go services"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var job types.Job
	require.NoError(t, store.Get(ctx, db.CollectionJobs, "job-1", &job))
	assert.Equal(t, "Senior Backend Engineer", job.JobTitle)
}
