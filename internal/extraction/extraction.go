// Package extraction turns free text into JSON documents that validate against
// a JSON Schema, and merges validated job and organization data into the store.
package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/jonathan/jobchat/internal/db"
	"github.com/jonathan/jobchat/internal/interview"
	"github.com/jonathan/jobchat/internal/llm"
	"github.com/jonathan/jobchat/internal/logger"
	"github.com/jonathan/jobchat/internal/prompts"
	"github.com/jonathan/jobchat/internal/schemas"
	"github.com/jonathan/jobchat/internal/types"
)

var tracer = otel.Tracer("github.com/jonathan/jobchat/internal/extraction")

// DefaultTemperature keeps extraction close to deterministic
const DefaultTemperature float32 = 0.1

// Extra rules appended to the extraction instruction per target document
const (
	jobInstructions = `- riskTolerance must be "high", "medium" or "low" when the text implies it, otherwise null.
- Put questions or topics the text says must be covered in an interview into requiredQuestions.
- Give techStack.stack weights between 0 and 1 reflecting how central each technology is to the role.`
	orgInstructions = `- Summarise the company in companyDescription in at most three sentences.
- List each stated company value once in companyValues.`
)

// Options tunes a Service. Zero values select the defaults.
type Options struct {
	Temperature float32
	Tier        llm.ModelTier
	Logger      *zap.Logger
}

// Service runs schema-directed extraction
type Service struct {
	store       db.Store
	client      llm.Client
	log         *zap.Logger
	temperature float32
	tier        llm.ModelTier
	now         func() time.Time
}

// NewService wires a Service
func NewService(store db.Store, client llm.Client, opts Options) *Service {
	s := &Service{
		store:       store,
		client:      client,
		log:         logger.OrNop(opts.Logger),
		temperature: opts.Temperature,
		tier:        opts.Tier,
		now:         func() time.Time { return time.Now().UTC() },
	}
	if s.temperature <= 0 {
		s.temperature = DefaultTemperature
	}
	if s.tier == "" {
		s.tier = llm.TierStandard
	}
	return s
}

// Extract asks the completion service to turn text into a JSON object matching
// schema and returns the object only if it validates. Invalid output yields
// *interview.SchemaValidationError carrying every violation.
func (s *Service) Extract(ctx context.Context, text, schema, customInstructions string) (map[string]any, error) {
	text = CleanText(text)
	if text == "" {
		return nil, &interview.InvalidArgumentError{Message: "text to extract from is empty"}
	}
	if !json.Valid([]byte(schema)) {
		return nil, &interview.InvalidArgumentError{Message: "target schema is not valid JSON"}
	}

	ctx, span := tracer.Start(ctx, "extraction.Extract")
	defer span.End()

	text, truncated := truncateInput(text)
	hash := contentHash(text)
	span.SetAttributes(
		attribute.Int("text_len", len(text)),
		attribute.Bool("truncated", truncated),
		attribute.String("input_hash", hash),
	)
	if truncated {
		s.log.Warn("extraction input truncated", zap.Int("max_chars", MaxInputChars), zap.String("input_hash", hash))
	}

	system, err := prompts.Render(prompts.ExtractionFile, prompts.KeyExtractionSystem, map[string]string{
		"Schema":             schema,
		"CustomInstructions": strings.TrimSpace(customInstructions),
	})
	if err != nil {
		return nil, &interview.PromptCompilationError{Message: "failed to render extraction instruction", Cause: err}
	}
	prompt, err := prompts.Render(prompts.ExtractionFile, prompts.KeyExtractionUser, map[string]string{"Text": text})
	if err != nil {
		return nil, &interview.PromptCompilationError{Message: "failed to render extraction prompt", Cause: err}
	}

	raw, err := s.client.Complete(ctx, llm.Request{
		SystemInstruction: system,
		Prompt:            prompt,
		Temperature:       s.temperature,
		Tier:              s.tier,
		JSON:              true,
	})
	if err != nil {
		span.RecordError(err)
		return nil, &interview.UpstreamUnavailableError{Message: "extraction call failed", Cause: err}
	}

	var obj map[string]any
	if err := json.Unmarshal([]byte(llm.CleanJSONBlock(raw)), &obj); err != nil || obj == nil {
		s.log.Warn("extraction returned non-object output",
			zap.String("input_hash", hash),
			zap.String("response", logger.Truncate(raw, 300)),
		)
		return nil, &interview.SchemaValidationError{
			Violations: []schemas.FieldError{{Field: "(root)", Message: "response is not a JSON object"}},
			Cause:      err,
		}
	}

	if err := schemas.ValidateValue(schema, obj); err != nil {
		var validationErr *schemas.ValidationError
		if errors.As(err, &validationErr) {
			span.RecordError(err)
			return nil, &interview.SchemaValidationError{Violations: validationErr.Errors, Cause: err}
		}
		return nil, &interview.InvalidArgumentError{Message: "target schema could not be loaded", Cause: err}
	}
	return obj, nil
}

// ExtractAndSaveJob extracts job data from free text and merges it into the
// job document together with an updatedAt timestamp.
func (s *Service) ExtractAndSaveJob(ctx context.Context, req *types.ExtractRequest) (*types.ExtractResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, &interview.InvalidArgumentError{Message: "orgId and textInput are required", Cause: err}
	}
	if strings.TrimSpace(req.JobID) == "" {
		return nil, &interview.InvalidArgumentError{Message: "jobId is required"}
	}
	log := logger.WithFields(s.log, logger.InterviewFields(req.OrgID, req.JobID, "", "")...)

	var owner struct {
		OrgID string `json:"orgId"`
	}
	if err := s.store.Get(ctx, db.CollectionJobs, req.JobID, &owner, "orgId"); err != nil {
		return nil, notFoundOr(err, db.CollectionJobs, req.JobID)
	}
	if owner.OrgID != "" && owner.OrgID != req.OrgID {
		return nil, &interview.InvalidArgumentError{Message: fmt.Sprintf("job %s does not belong to organization %s", req.JobID, req.OrgID)}
	}

	data, err := s.Extract(ctx, req.TextInput, schemas.Job(), jobInstructions)
	if err != nil {
		log.Warn("job extraction failed", zap.Error(err))
		return nil, err
	}
	if err := s.merge(ctx, db.CollectionJobs, req.JobID, data); err != nil {
		return nil, err
	}

	log.Info("job data extracted", zap.Int("fields", len(data)))
	return &types.ExtractResponse{Success: true, ExtractedData: data}, nil
}

// ExtractAndSaveOrg extracts organization data from free text and merges it
// into the organization document together with an updatedAt timestamp.
func (s *Service) ExtractAndSaveOrg(ctx context.Context, req *types.ExtractRequest) (*types.ExtractResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, &interview.InvalidArgumentError{Message: "orgId and textInput are required", Cause: err}
	}
	log := logger.WithFields(s.log, logger.InterviewFields(req.OrgID, "", "", "")...)

	var exists map[string]any
	if err := s.store.Get(ctx, db.CollectionOrgs, req.OrgID, &exists, "companyName"); err != nil {
		return nil, notFoundOr(err, db.CollectionOrgs, req.OrgID)
	}

	data, err := s.Extract(ctx, req.TextInput, schemas.Organization(), orgInstructions)
	if err != nil {
		log.Warn("organization extraction failed", zap.Error(err))
		return nil, err
	}
	if err := s.merge(ctx, db.CollectionOrgs, req.OrgID, data); err != nil {
		return nil, err
	}

	log.Info("organization data extracted", zap.Int("fields", len(data)))
	return &types.ExtractResponse{Success: true, ExtractedData: data}, nil
}

// merge writes the non-null extracted fields onto an existing document
func (s *Service) merge(ctx context.Context, collection, id string, data map[string]any) error {
	fields := make(map[string]any, len(data)+1)
	for k, v := range data {
		if v != nil {
			fields[k] = v
		}
	}
	fields["updatedAt"] = s.now()

	if err := s.store.Update(ctx, collection, id, fields); err != nil {
		return notFoundOr(err, collection, id)
	}
	return nil
}

func notFoundOr(err error, collection, id string) error {
	if errors.Is(err, db.ErrNotFound) {
		return &interview.NotFoundError{Collection: collection, ID: id}
	}
	return &interview.InternalError{Message: fmt.Sprintf("failed to access %s/%s", collection, id), Cause: err}
}
