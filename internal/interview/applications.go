package interview

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/jonathan/jobchat/internal/db"
	"github.com/jonathan/jobchat/internal/logger"
	"github.com/jonathan/jobchat/internal/types"
)

// applicationNamespace seeds deterministic application ids
var applicationNamespace = uuid.MustParse("6f1d3c2a-8b4e-4f5a-9c7d-2e0b1a3f4c5d")

// ApplicationID returns the id of the one application a candidate may hold for a job
func ApplicationID(candidateID, jobID string) string {
	return uuid.NewSHA1(applicationNamespace, []byte(candidateID+"\x00"+jobID)).String()
}

// CreateApplication creates the application and its empty report for a
// (candidate, job) pair, or returns the existing pair with IsExisting set.
// The application, report and the back-references on the candidate and job
// documents are written in one atomic batch.
func (s *Service) CreateApplication(ctx context.Context, req *types.CreateApplicationRequest) (*types.CreateApplicationResponse, error) {
	req.CandidateID = strings.TrimSpace(req.CandidateID)
	req.JobID = strings.TrimSpace(req.JobID)
	req.OrgID = strings.TrimSpace(req.OrgID)
	if err := req.Validate(); err != nil {
		return nil, invalidRequest(err)
	}

	applicationID := ApplicationID(req.CandidateID, req.JobID)
	ctx, span := tracer.Start(ctx, "interview.CreateApplication")
	defer span.End()
	span.SetAttributes(attribute.String("application_id", applicationID))

	log := logger.WithFields(s.log, logger.InterviewFields(req.OrgID, req.JobID, req.CandidateID, applicationID)...)

	if _, err := s.assembler.Assemble(ctx, req.OrgID, req.JobID, req.CandidateID); err != nil {
		return nil, err
	}

	if existing, err := s.findExisting(ctx, req.CandidateID, req.JobID, applicationID); err != nil {
		return nil, err
	} else if existing != nil {
		log.Info("application already exists")
		return existing, nil
	}

	now := s.now()
	reportID := uuid.NewString()
	app := types.Application{
		CandidateID:     req.CandidateID,
		JobID:           req.JobID,
		OrgID:           req.OrgID,
		ApplicationDate: now,
		Status:          types.StatusApplied,
		Messages:        []types.ChatMessage{},
		ReportID:        reportID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	report := types.Report{
		CandidateID:       req.CandidateID,
		ApplicationID:     applicationID,
		JobID:             req.JobID,
		QuestionResponses: []types.ChatMessage{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	batch := db.NewBatch().
		Create(db.CollectionApplications, applicationID, app).
		Create(db.CollectionReports, reportID, report).
		ArrayUnion(db.CollectionCandidates, req.CandidateID, "applications", applicationID).
		ArrayUnion(db.CollectionJobs, req.JobID, "applications", applicationID)

	if err := s.store.Commit(ctx, batch); err != nil {
		if errors.Is(err, db.ErrConflict) {
			// Lost a race with a concurrent create for the same pair.
			existing, findErr := s.findExisting(ctx, req.CandidateID, req.JobID, applicationID)
			if findErr != nil {
				return nil, findErr
			}
			if existing != nil {
				log.Info("application created concurrently")
				return existing, nil
			}
		}
		span.RecordError(err)
		return nil, &InternalError{Message: "failed to create application", Cause: err}
	}

	log.Info("application created", zap.String(logger.FieldReportID, reportID))
	return &types.CreateApplicationResponse{
		Success:       true,
		ApplicationID: applicationID,
		ReportID:      reportID,
		Message:       "Application created successfully",
	}, nil
}

// findExisting looks up the application under its deterministic id, then
// falls back to applications stored under arbitrary ids for the same pair.
func (s *Service) findExisting(ctx context.Context, candidateID, jobID, applicationID string) (*types.CreateApplicationResponse, error) {
	var app types.Application
	err := s.store.Get(ctx, db.CollectionApplications, applicationID, &app, "reportID")
	switch {
	case err == nil:
		return existingResponse(applicationID, app.ReportID), nil
	case !errors.Is(err, db.ErrNotFound):
		return nil, storeError(err, db.CollectionApplications, applicationID)
	}

	docs, err := s.store.Query(ctx, db.CollectionApplications, "candidateId", db.OpEqual, candidateID, 0)
	if err != nil {
		return nil, &InternalError{Message: "failed to query applications", Cause: err}
	}
	for _, doc := range docs {
		var legacy types.Application
		if err := doc.Decode(&legacy); err != nil {
			return nil, &InternalError{Message: "failed to decode application", Cause: err}
		}
		if legacy.JobID == jobID {
			return existingResponse(doc.ID, legacy.ReportID), nil
		}
	}
	return nil, nil
}

func existingResponse(applicationID, reportID string) *types.CreateApplicationResponse {
	return &types.CreateApplicationResponse{
		Success:       true,
		ApplicationID: applicationID,
		ReportID:      reportID,
		Message:       "Application already exists",
		IsExisting:    true,
	}
}
