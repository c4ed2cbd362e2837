package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/jonathan/jobchat/internal/db"
	"github.com/jonathan/jobchat/internal/llm"
	"github.com/jonathan/jobchat/internal/logger"
	"github.com/jonathan/jobchat/internal/types"
)

// SendTurn submits one candidate message and returns the interviewer's reply.
// The system instruction is compiled on the first turn of an application and
// reused verbatim afterwards. The caller-supplied history is passed through
// as-is; both the message and the reply are appended to the application.
func (s *Service) SendTurn(ctx context.Context, req *types.InterviewTurnRequest) (*types.InterviewTurnResponse, error) {
	req.Message = strings.TrimSpace(req.Message)
	if err := req.Validate(); err != nil {
		return nil, invalidRequest(err)
	}

	ctx, span := tracer.Start(ctx, "interview.SendTurn")
	defer span.End()
	span.SetAttributes(
		attribute.String("application_id", req.ApplicationID),
		attribute.Int("history_len", len(req.History)),
	)
	log := logger.WithFields(s.log, logger.InterviewFields(req.OrgID, req.JobID, req.CandidateID, req.ApplicationID)...)

	app, err := s.loadApplication(ctx, req.ApplicationID, req.CandidateID, req.JobID, req.OrgID)
	if err != nil {
		return nil, err
	}
	if app.Status == types.StatusCompleted {
		return nil, &InvalidArgumentError{Message: fmt.Sprintf("interview for application %s is already completed", req.ApplicationID)}
	}

	instruction, err := s.systemInstruction(ctx, req.ApplicationID, app, log)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	reply, err := s.client.Complete(ctx, llm.Request{
		SystemInstruction: instruction,
		History:           toLLMHistory(req.History),
		Prompt:            req.Message,
		Temperature:       s.interviewTemperature,
		Tier:              s.interviewTier,
	})
	if err != nil {
		span.RecordError(err)
		log.Error("interview turn failed", zap.Error(err))
		return nil, &UpstreamUnavailableError{Message: "the interviewer could not respond", Cause: err}
	}

	switch err := s.recordTurn(ctx, req.ApplicationID, app.Status, req.Message, reply); {
	case errors.Is(err, db.ErrPrecondition):
		// The report was written while the model was answering; the
		// completed transcript is final.
		log.Warn("interview completed during turn, turn not recorded")
	case err != nil:
		// The reply is still returned: the client holds the transcript.
		log.Error("failed to record interview turn", zap.Error(err))
	}

	log.Debug("interview turn completed", zap.String("reply", logger.Truncate(reply, 200)))
	return &types.InterviewTurnResponse{Response: reply}, nil
}

// loadApplication reads an application and checks that it belongs to the
// given candidate, job and organization.
func (s *Service) loadApplication(ctx context.Context, applicationID, candidateID, jobID, orgID string) (*types.Application, error) {
	var app types.Application
	if err := s.store.Get(ctx, db.CollectionApplications, applicationID, &app); err != nil {
		return nil, storeError(err, db.CollectionApplications, applicationID)
	}
	if app.CandidateID != candidateID || app.JobID != jobID || (app.OrgID != "" && app.OrgID != orgID) {
		return nil, &InvalidArgumentError{
			Message: fmt.Sprintf("application %s does not belong to candidate %s and job %s", applicationID, candidateID, jobID),
		}
	}
	return &app, nil
}

// systemInstruction returns the cached instruction of an application,
// compiling and storing it when absent. A concurrent first turn that stored
// its instruction first wins; this call then adopts the stored one.
func (s *Service) systemInstruction(ctx context.Context, applicationID string, app *types.Application, log *zap.Logger) (string, error) {
	if app.ChatPrompt != "" {
		return app.ChatPrompt, nil
	}

	ic, err := s.assembler.Assemble(ctx, app.OrgID, app.JobID, app.CandidateID)
	if err != nil {
		return "", err
	}
	instruction, err := s.compile(ic)
	if err != nil {
		return "", err
	}

	wrote, err := s.store.SetFieldIfEmpty(ctx, db.CollectionApplications, applicationID, "chatPrompt", instruction)
	if err != nil {
		return "", storeError(err, db.CollectionApplications, applicationID)
	}
	if wrote {
		log.Info("system instruction compiled", zap.Int("length", len(instruction)))
		return instruction, nil
	}

	var stored types.Application
	if err := s.store.Get(ctx, db.CollectionApplications, applicationID, &stored, "chatPrompt"); err != nil {
		return "", storeError(err, db.CollectionApplications, applicationID)
	}
	log.Info("adopted concurrently compiled system instruction")
	return stored.ChatPrompt, nil
}

// recordTurn appends a turn to the transcript. It fails with
// db.ErrPrecondition once the application is completed.
func (s *Service) recordTurn(ctx context.Context, applicationID, status, message, reply string) error {
	now := s.now()
	sent := now
	received := now.Add(time.Millisecond)

	fields := map[string]any{"updatedAt": now}
	if status != types.StatusInterviewing {
		fields["status"] = types.StatusInterviewing
	}

	batch := db.NewBatch().
		RequireNot(db.CollectionApplications, applicationID, "status", types.StatusCompleted).
		ArrayAppend(db.CollectionApplications, applicationID, "messages",
			types.ChatMessage{Role: types.RoleUser, Content: message, Timestamp: &sent},
			types.ChatMessage{Role: types.RoleModel, Content: reply, Timestamp: &received},
		).
		Update(db.CollectionApplications, applicationID, fields)
	return s.store.Commit(ctx, batch)
}

func toLLMHistory(history []types.ChatMessage) []llm.Message {
	out := make([]llm.Message, 0, len(history))
	for _, m := range history {
		role := llm.RoleUser
		if types.NormalizeRole(m.Role) == types.RoleModel {
			role = llm.RoleModel
		}
		out = append(out, llm.Message{Role: role, Text: m.Content})
	}
	return out
}
