package types

import "time"

// Application lifecycle states
const (
	StatusApplied      = "Applied"
	StatusInterviewing = "Interviewing"
	StatusCompleted    = "Completed"
)

// Application binds one candidate to one job within one organization
type Application struct {
	CandidateID     string        `json:"candidateId"`
	JobID           string        `json:"jobID"`
	OrgID           string        `json:"orgID"`
	ApplicationDate time.Time     `json:"applicationDate"`
	Status          string        `json:"status"`
	Messages        []ChatMessage `json:"messages"`
	ReportID        string        `json:"reportID"`
	ChatPrompt      string        `json:"chatPrompt,omitempty"`
	CompletedAt     *time.Time    `json:"completedAt,omitempty"`
	CreatedAt       time.Time     `json:"createdAt"`
	UpdatedAt       time.Time     `json:"updatedAt"`
}

// Report holds the scored outcome of an interview. Score is nil until the report is generated.
type Report struct {
	CandidateID       string        `json:"candidateId"`
	ApplicationID     string        `json:"applicationId"`
	JobID             string        `json:"jobID"`
	QuestionResponses []ChatMessage `json:"questionResponses"`
	Summary           string        `json:"summary"`
	CandidateFeedback string        `json:"candidateFeedback"`
	Score             *float64      `json:"score"`
	CreatedAt         time.Time     `json:"createdAt"`
	UpdatedAt         time.Time     `json:"updatedAt"`
}
