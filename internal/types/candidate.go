package types

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Candidate is the projection of a candidate document used to build interview prompts.
type Candidate struct {
	Name            string          `json:"name"`
	ResumeBreakdown json.RawMessage `json:"resumeBreakdown"`
}

// CandidateFields lists the document keys read into Candidate.
var CandidateFields = []string{"name", "resumeBreakdown"}

// ResumeText renders the resume breakdown as prompt text.
// Free-text resumes are returned as-is; structured ones are pretty-printed JSON.
func (c Candidate) ResumeText() string {
	raw := bytes.TrimSpace(c.ResumeBreakdown)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return strings.TrimSpace(text)
	}

	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return string(raw)
	}
	return buf.String()
}
