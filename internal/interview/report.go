package interview

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/jonathan/jobchat/internal/db"
	"github.com/jonathan/jobchat/internal/llm"
	"github.com/jonathan/jobchat/internal/logger"
	"github.com/jonathan/jobchat/internal/prompts"
	"github.com/jonathan/jobchat/internal/types"
)

// Score bounds
const (
	MinScore = 0.0
	MaxScore = 10.0
)

var (
	sectionMarker = regexp.MustCompile(`SECTION ([1-3]):\s*`)
	decimalScore  = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
)

// ParsedReport is the content of a well-formed report response
type ParsedReport struct {
	Summary           string
	CandidateFeedback string
	Score             float64
}

// ParseReport splits a report response on its section markers. The first
// three markers must be SECTION 1, 2 and 3 in that order; text before the
// first marker and from a fourth marker on is ignored. The score must be a
// plain decimal in [MinScore, MaxScore] and is rounded to one decimal.
func ParseReport(raw string) (*ParsedReport, error) {
	matches := sectionMarker.FindAllStringSubmatchIndex(raw, -1)
	if len(matches) < 3 {
		return nil, &MalformedReportError{Message: fmt.Sprintf("expected 3 section markers, found %d", len(matches))}
	}

	fragments := make([]string, 3)
	for i := 0; i < 3; i++ {
		number := raw[matches[i][2]:matches[i][3]]
		if number != strconv.Itoa(i+1) {
			return nil, &MalformedReportError{Message: fmt.Sprintf("section %s appears where section %d was expected", number, i+1)}
		}
		end := len(raw)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		fragments[i] = strings.TrimSpace(raw[matches[i][1]:end])
	}

	if fragments[0] == "" {
		return nil, &MalformedReportError{Message: "section 1 (report) is empty"}
	}
	if fragments[1] == "" {
		return nil, &MalformedReportError{Message: "section 2 (candidate feedback) is empty"}
	}

	score, err := parseScore(fragments[2])
	if err != nil {
		return nil, err
	}

	return &ParsedReport{
		Summary:           fragments[0],
		CandidateFeedback: fragments[1],
		Score:             score,
	}, nil
}

func parseScore(fragment string) (float64, error) {
	text := strings.Trim(fragment, "* \t\r\n")
	text = strings.TrimSuffix(text, "/10")
	text = strings.TrimSpace(text)

	if !decimalScore.MatchString(text) {
		return 0, &MalformedReportError{Message: fmt.Sprintf("score %q is not a decimal number", fragment)}
	}
	score, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return 0, &MalformedReportError{Message: fmt.Sprintf("score %q is not a number", fragment), Cause: err}
	}
	if score < MinScore || score > MaxScore {
		return 0, &MalformedReportError{Message: fmt.Sprintf("score %v is outside [%v, %v]", score, MinScore, MaxScore)}
	}
	score = math.Round(score*10) / 10
	if score == 0 {
		// "-0" parses to negative zero
		score = 0
	}
	return score, nil
}

// reportContext is the JSON payload given to the report writer
type reportContext struct {
	Organization types.Organization `json:"organization"`
	Job          types.Job          `json:"job"`
	Candidate    reportCandidate    `json:"candidate"`
	Transcript   []transcriptEntry  `json:"transcript"`
}

type reportCandidate struct {
	Name   string `json:"name"`
	Resume string `json:"resume"`
}

type transcriptEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// BuildReportPrompt renders the user prompt carrying the context and transcript
func BuildReportPrompt(ic *Context, history []types.ChatMessage) (string, error) {
	transcript := make([]transcriptEntry, 0, len(history))
	for _, m := range history {
		role := "candidate"
		if types.NormalizeRole(m.Role) == types.RoleModel {
			role = "interviewer"
		}
		transcript = append(transcript, transcriptEntry{Role: role, Content: m.Content})
	}

	payload, err := json.MarshalIndent(reportContext{
		Organization: ic.Organization,
		Job:          WithDefaults(ic.Job),
		Candidate:    reportCandidate{Name: ic.Candidate.Name, Resume: orNA(ic.Candidate.ResumeText())},
		Transcript:   transcript,
	}, "", "  ")
	if err != nil {
		return "", &InternalError{Message: "failed to encode report context", Cause: err}
	}

	prompt, err := prompts.Render(prompts.ReportFile, prompts.KeyReportUser, map[string]string{
		"ReportContext": string(payload),
	})
	if err != nil {
		return "", &PromptCompilationError{Message: "failed to render report prompt", Cause: err}
	}
	return prompt, nil
}

// GenerateReport asks the completion service for the final evaluation of an
// interview and persists it. The report fields and the application's
// transition to Completed are committed together or not at all.
func (s *Service) GenerateReport(ctx context.Context, req *types.GenerateReportRequest) (*types.GenerateReportResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, invalidRequest(err)
	}

	ctx, span := tracer.Start(ctx, "interview.GenerateReport")
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
	if req.ReportID != "" && req.ReportID != app.ReportID {
		return nil, &InvalidArgumentError{Message: fmt.Sprintf("report %s does not belong to application %s", req.ReportID, req.ApplicationID)}
	}
	if app.ReportID == "" {
		return nil, &InternalError{Message: fmt.Sprintf("application %s has no report", req.ApplicationID)}
	}
	if app.Status == types.StatusCompleted {
		return nil, &AlreadyExistsError{Message: fmt.Sprintf("report for application %s was already generated", req.ApplicationID)}
	}
	log = log.With(zap.String(logger.FieldReportID, app.ReportID))

	orgID := app.OrgID
	if orgID == "" {
		orgID = req.OrgID
	}
	ic, err := s.assembler.Assemble(ctx, orgID, app.JobID, app.CandidateID)
	if err != nil {
		return nil, err
	}

	instruction, err := prompts.Get(prompts.ReportFile, prompts.KeyReportSystem)
	if err != nil {
		return nil, &PromptCompilationError{Message: "failed to load report instruction", Cause: err}
	}
	prompt, err := BuildReportPrompt(ic, req.History)
	if err != nil {
		return nil, err
	}

	raw, err := s.client.Complete(ctx, llm.Request{
		SystemInstruction: instruction,
		Prompt:            prompt,
		Temperature:       s.reportTemperature,
		Tier:              s.reportTier,
	})
	if err != nil {
		span.RecordError(err)
		log.Error("report generation failed", zap.Error(err))
		return nil, &UpstreamUnavailableError{Message: "the report could not be generated", Cause: err}
	}

	parsed, err := ParseReport(raw)
	if err != nil {
		span.RecordError(err)
		log.Warn("malformed report response", zap.Error(err), zap.String("response", logger.Truncate(raw, 500)))
		return nil, err
	}

	now := s.now()
	batch := db.NewBatch().
		RequireNot(db.CollectionApplications, req.ApplicationID, "status", types.StatusCompleted).
		Update(db.CollectionReports, app.ReportID, map[string]any{
			"questionResponses": req.History,
			"summary":           parsed.Summary,
			"candidateFeedback": parsed.CandidateFeedback,
			"score":             parsed.Score,
			"updatedAt":         now,
		}).
		Update(db.CollectionApplications, req.ApplicationID, map[string]any{
			"status":      types.StatusCompleted,
			"completedAt": now,
			"updatedAt":   now,
		})
	if err := s.store.Commit(ctx, batch); err != nil {
		span.RecordError(err)
		if errors.Is(err, db.ErrPrecondition) {
			log.Warn("report generated concurrently, discarding this one")
			return nil, &AlreadyExistsError{Message: fmt.Sprintf("report for application %s was already generated", req.ApplicationID)}
		}
		return nil, &InternalError{Message: "failed to save report", Cause: err}
	}

	log.Info("report generated", zap.Float64("score", parsed.Score))
	return &types.GenerateReportResponse{
		Success:           true,
		Summary:           parsed.Summary,
		CandidateFeedback: parsed.CandidateFeedback,
		Score:             parsed.Score,
	}, nil
}
