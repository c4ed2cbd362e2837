// Package server provides the HTTP JSON API of the interview service.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/jonathan/jobchat/internal/interview"
	"github.com/jonathan/jobchat/internal/logger"
	"github.com/jonathan/jobchat/internal/server/middleware"
	"github.com/jonathan/jobchat/internal/server/ratelimit"
	"github.com/jonathan/jobchat/internal/types"
)

var tracer = otel.Tracer("github.com/jonathan/jobchat/internal/server")

// maxBodyBytes bounds request bodies; transcripts and job postings fit easily
const maxBodyBytes = 2 << 20

// Interviewer runs the interview lifecycle
type Interviewer interface {
	CreateApplication(ctx context.Context, req *types.CreateApplicationRequest) (*types.CreateApplicationResponse, error)
	SendTurn(ctx context.Context, req *types.InterviewTurnRequest) (*types.InterviewTurnResponse, error)
	GenerateReport(ctx context.Context, req *types.GenerateReportRequest) (*types.GenerateReportResponse, error)
}

// Extractor turns free text into stored job and organization data
type Extractor interface {
	ExtractAndSaveJob(ctx context.Context, req *types.ExtractRequest) (*types.ExtractResponse, error)
	ExtractAndSaveOrg(ctx context.Context, req *types.ExtractRequest) (*types.ExtractResponse, error)
}

// Config holds server configuration
type Config struct {
	Port      int
	RateLimit *ratelimit.Config // nil selects ratelimit.DefaultConfig
	Logger    *zap.Logger
}

// Server represents the HTTP server
type Server struct {
	httpServer  *http.Server
	interviews  Interviewer
	extractor   Extractor
	rateLimiter *ratelimit.Limiter
	log         *zap.Logger
	handler     http.Handler
}

// New creates a new server instance
func New(cfg Config, interviews Interviewer, extractor Extractor) *Server {
	s := &Server{
		interviews:  interviews,
		extractor:   extractor,
		rateLimiter: ratelimit.NewLimiter(cfg.RateLimit),
		log:         logger.OrNop(cfg.Logger),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("POST /applications", s.handleCreateApplication)
	mux.HandleFunc("POST /applications/{application_id}/turns", s.handleSendTurn)
	mux.HandleFunc("POST /applications/{application_id}/report", s.handleGenerateReport)
	mux.HandleFunc("POST /orgs/{org_id}/jobs/{job_id}/extract", s.handleExtractJob)
	mux.HandleFunc("POST /orgs/{org_id}/extract", s.handleExtractOrg)

	s.handler = middleware.RequestID(s.withLogging(s.withRateLimit(s.withCORS(mux))))
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Port),
		Handler:     s.handler,
		ReadTimeout: 30 * time.Second,
		// Report generation may retry a slow model call.
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler returns the fully wrapped request handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server starting", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		s.rateLimiter.Stop()
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.log.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	defer s.rateLimiter.Stop()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	s.log.Info("server stopped")
	return nil
}

// Close stops background work without serving. Used when Start was never called.
func (s *Server) Close() {
	s.rateLimiter.Stop()
}

// withCORS adds CORS headers
func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, "+middleware.HeaderRequestID)
		w.Header().Set("Access-Control-Expose-Headers", middleware.HeaderRequestID+", Retry-After")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// withRateLimit rejects clients over their per-route budget
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowed, info := s.rateLimiter.Allow(clientID(r), r.URL.Path, r.Method)
		setRateLimitHeaders(w, info)
		if !allowed {
			s.rateLimitResponse(w, r, info)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// withLogging logs one line per request
func (s *Server) withLogging(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		fields := []zap.Field{
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", rec.status),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
		}
		switch {
		case rec.status >= 500:
			s.log.Error("request failed", fields...)
		case rec.status >= 400:
			s.log.Warn("request rejected", fields...)
		default:
			s.log.Info("request completed", fields...)
		}
	})
}

// clientID identifies the caller by remote IP
func clientID(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

// setRateLimitHeaders sets standard rate limit headers on the response.
func setRateLimitHeaders(w http.ResponseWriter, info ratelimit.Info) {
	if info.Limit > 0 {
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))
	}
}

// rateLimitResponse writes a 429 Too Many Requests response with rate limit information.
func (s *Server) rateLimitResponse(w http.ResponseWriter, r *http.Request, info ratelimit.Info) {
	response := map[string]any{
		"error":     "Rate limit exceeded. Please try again later.",
		"code":      "rate-limited",
		"limit":     info.Limit,
		"remaining": info.Remaining,
	}
	if !info.ResetTime.IsZero() {
		response["reset_at"] = info.ResetTime.Format(time.RFC3339)
	}
	if info.RetryAfter > 0 {
		seconds := int(info.RetryAfter.Seconds() + 0.999)
		response["retry_after"] = seconds
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	s.log.Warn("rate limit exceeded",
		zap.String("client", clientID(r)),
		zap.String("path", r.URL.Path),
		zap.Int("limit", info.Limit),
	)
	s.jsonResponse(w, http.StatusTooManyRequests, response)
}

// jsonResponse writes a JSON response
func (s *Server) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error("error encoding JSON response", zap.Error(err))
	}
}

// errorResponse writes err with the status its code maps to
func (s *Server) errorResponse(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		s.log.Error("request error",
			zap.Error(err),
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetRequestID(r.Context())),
		)
	}
	s.jsonResponse(w, status, errorBody(err))
}

// decodeBody reads a JSON request body into dst. An empty body leaves dst unchanged.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return &interview.InvalidArgumentError{Message: "invalid JSON body", Cause: err}
	}
	return nil
}

// pathParam fills *field from the route, rejecting a body that names a different id
func pathParam(r *http.Request, name string, field *string) error {
	value := r.PathValue(name)
	if *field != "" && *field != value {
		return &interview.InvalidArgumentError{Message: fmt.Sprintf("%s in body (%s) does not match path (%s)", name, *field, value)}
	}
	*field = value
	return nil
}

// startSpan opens the server span of a handler
func startSpan(r *http.Request, op string) (context.Context, trace.Span) {
	ctx, span := tracer.Start(r.Context(), "http."+op)
	span.SetAttributes(
		attribute.String("http.method", r.Method),
		attribute.String("http.route", r.Pattern),
		attribute.String("request_id", middleware.GetRequestID(r.Context())),
	)
	return ctx, span
}
