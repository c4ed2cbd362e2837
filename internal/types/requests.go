package types

import "github.com/go-playground/validator/v10"

var validate = validator.New()

// CreateApplicationRequest creates (or returns) the application for a candidate and job.
type CreateApplicationRequest struct {
	CandidateID string `json:"candidateId" validate:"required"`
	JobID       string `json:"jobId" validate:"required"`
	OrgID       string `json:"orgId" validate:"required"`
}

// CreateApplicationResponse reports the application and report ids.
type CreateApplicationResponse struct {
	Success       bool   `json:"success"`
	ApplicationID string `json:"applicationId"`
	ReportID      string `json:"reportId"`
	Message       string `json:"message"`
	IsExisting    bool   `json:"isExisting"`
}

// InterviewTurnRequest carries one candidate message plus the conversation so far.
type InterviewTurnRequest struct {
	ApplicationID string        `json:"applicationId" validate:"required"`
	CandidateID   string        `json:"candidateId" validate:"required"`
	JobID         string        `json:"jobId" validate:"required"`
	OrgID         string        `json:"orgId" validate:"required"`
	Message       string        `json:"message" validate:"required"`
	History       []ChatMessage `json:"history"`
}

// InterviewTurnResponse is the interviewer's reply
type InterviewTurnResponse struct {
	Response string `json:"response"`
}

// GenerateReportRequest asks for the final report of a finished interview.
type GenerateReportRequest struct {
	CandidateID   string        `json:"candidateId" validate:"required"`
	JobID         string        `json:"jobId" validate:"required"`
	OrgID         string        `json:"orgId" validate:"required"`
	ApplicationID string        `json:"applicationId" validate:"required"`
	ReportID      string        `json:"reportId"`
	History       []ChatMessage `json:"history" validate:"required,min=1,dive"`
}

// GenerateReportResponse carries the persisted report fields.
type GenerateReportResponse struct {
	Success           bool    `json:"success"`
	Summary           string  `json:"summary"`
	CandidateFeedback string  `json:"candidateFeedback"`
	Score             float64 `json:"score"`
}

// ExtractRequest carries free text to be turned into a structured document.
type ExtractRequest struct {
	OrgID     string `json:"orgId" validate:"required"`
	JobID     string `json:"jobId"`
	TextInput string `json:"textInput" validate:"required"`
}

// ExtractResponse returns the validated object that was merged into the target document.
type ExtractResponse struct {
	Success       bool           `json:"success"`
	ExtractedData map[string]any `json:"extractedData"`
}

// Validate validates the CreateApplicationRequest using the validator.
func (r *CreateApplicationRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the InterviewTurnRequest using the validator.
func (r *InterviewTurnRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the GenerateReportRequest using the validator.
func (r *GenerateReportRequest) Validate() error {
	return validate.Struct(r)
}

// Validate validates the ExtractRequest using the validator.
func (r *ExtractRequest) Validate() error {
	return validate.Struct(r)
}
