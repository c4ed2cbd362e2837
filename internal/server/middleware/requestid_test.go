package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, header string) (seen string, rec *httptest.ResponseRecorder) {
	t.Helper()
	handler := RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
	}))
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	if header != "" {
		req.Header.Set(HeaderRequestID, header)
	}
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return seen, rec
}

func TestRequestID_Generated(t *testing.T) {
	seen, rec := serve(t, "")

	_, err := uuid.Parse(seen)
	require.NoError(t, err)
	assert.Equal(t, seen, rec.Header().Get(HeaderRequestID))
}

func TestRequestID_Propagated(t *testing.T) {
	seen, rec := serve(t, "req-123")

	assert.Equal(t, "req-123", seen)
	assert.Equal(t, "req-123", rec.Header().Get(HeaderRequestID))
}

func TestRequestID_OversizedReplaced(t *testing.T) {
	seen, _ := serve(t, strings.Repeat("x", maxRequestIDLen+1))

	_, err := uuid.Parse(seen)
	assert.NoError(t, err)
}

func TestGetRequestID_Missing(t *testing.T) {
	assert.Empty(t, GetRequestID(context.Background()))
}
