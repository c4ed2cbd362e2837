package logger

import (
	"strings"

	"go.uber.org/zap"
)

// Structured log field keys
const (
	FieldApplicationID = "application_id"
	FieldReportID      = "report_id"
	FieldJobID         = "job_id"
	FieldOrgID         = "org_id"
	FieldCandidateID   = "candidate_id"
	FieldModel         = "ai_model"
)

// StringField describes a string-valued structured logging field.
type StringField struct {
	Key   string
	Value string
}

// StringFields converts key/value pairs into zap fields, trimming whitespace
// and omitting entries with empty keys or values.
func StringFields(fields ...StringField) []zap.Field {
	result := make([]zap.Field, 0, len(fields))
	for _, field := range fields {
		key := strings.TrimSpace(field.Key)
		if key == "" {
			continue
		}

		value := strings.TrimSpace(field.Value)
		if value == "" {
			continue
		}

		result = append(result, zap.String(key, value))
	}

	return result
}

// WithFields attaches fields to the logger, defaulting to a no-op logger when nil.
func WithFields(logger *zap.Logger, fields ...zap.Field) *zap.Logger {
	logger = OrNop(logger)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(fields...)
}

// InterviewFields returns the identifiers of an interview, skipping empty ones.
func InterviewFields(orgID, jobID, candidateID, applicationID string) []zap.Field {
	return StringFields(
		StringField{Key: FieldOrgID, Value: orgID},
		StringField{Key: FieldJobID, Value: jobID},
		StringField{Key: FieldCandidateID, Value: candidateID},
		StringField{Key: FieldApplicationID, Value: applicationID},
	)
}
