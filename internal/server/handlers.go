package server

import (
	"net/http"

	"go.opentelemetry.io/otel/codes"

	"github.com/jonathan/jobchat/internal/types"
)

// handleHealth returns server health status
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCreateApplication creates the application for a candidate and job.
// A repeated request returns the existing application with 200 instead of 201.
func (s *Server) handleCreateApplication(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "CreateApplication")
	defer span.End()

	var req types.CreateApplicationRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	resp, err := s.interviews.CreateApplication(ctx, &req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.errorResponse(w, r, err)
		return
	}

	status := http.StatusCreated
	if resp.IsExisting {
		status = http.StatusOK
	}
	s.jsonResponse(w, status, resp)
}

// handleSendTurn forwards one candidate message to the interviewer
func (s *Server) handleSendTurn(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "SendTurn")
	defer span.End()

	var req types.InterviewTurnRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if err := pathParam(r, "application_id", &req.ApplicationID); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	resp, err := s.interviews.SendTurn(ctx, &req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleGenerateReport writes the final report of an interview
func (s *Server) handleGenerateReport(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "GenerateReport")
	defer span.End()

	var req types.GenerateReportRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if err := pathParam(r, "application_id", &req.ApplicationID); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	resp, err := s.interviews.GenerateReport(ctx, &req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleExtractJob extracts job data from text and merges it into the job
func (s *Server) handleExtractJob(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "ExtractJob")
	defer span.End()

	var req types.ExtractRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if err := pathParam(r, "org_id", &req.OrgID); err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if err := pathParam(r, "job_id", &req.JobID); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	resp, err := s.extractor.ExtractAndSaveJob(ctx, &req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}

// handleExtractOrg extracts organization data from text and merges it into the organization
func (s *Server) handleExtractOrg(w http.ResponseWriter, r *http.Request) {
	ctx, span := startSpan(r, "ExtractOrg")
	defer span.End()

	var req types.ExtractRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.errorResponse(w, r, err)
		return
	}
	if err := pathParam(r, "org_id", &req.OrgID); err != nil {
		s.errorResponse(w, r, err)
		return
	}

	resp, err := s.extractor.ExtractAndSaveOrg(ctx, &req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		s.errorResponse(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, resp)
}
