package interview

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"

	"github.com/jonathan/jobchat/internal/db"
	"github.com/jonathan/jobchat/internal/llm"
	"github.com/jonathan/jobchat/internal/schemas"
)

func TestCodeOf(t *testing.T) {
	type required struct {
		Name string `validate:"required"`
	}
	validationErr := validator.New().Struct(required{})

	tests := []struct {
		name string
		err  error
		want Code
	}{
		{"nil", nil, ""},
		{"invalid argument", &InvalidArgumentError{Message: "x"}, CodeInvalidArgument},
		{"validator", validationErr, CodeInvalidArgument},
		{"not found", &NotFoundError{Collection: db.CollectionJobs, ID: "j"}, CodeNotFound},
		{"store not found", fmt.Errorf("get: %w", db.ErrNotFound), CodeNotFound},
		{"store conflict", db.ErrConflict, CodeAlreadyExists},
		{"already exists", &AlreadyExistsError{Message: "x"}, CodeAlreadyExists},
		{"prompt", &PromptCompilationError{Message: "x"}, CodePromptCompilation},
		{"upstream", &UpstreamUnavailableError{Message: "x"}, CodeUpstreamUnavailable},
		{"llm call", &llm.CallError{Model: "m", Attempts: 3, Cause: errors.New("boom")}, CodeUpstreamUnavailable},
		{"deadline", context.DeadlineExceeded, CodeUpstreamUnavailable},
		{"malformed", &MalformedReportError{Message: "x"}, CodeMalformedReport},
		{"schema", &SchemaValidationError{}, CodeSchemaValidation},
		{"schema raw", &schemas.ValidationError{}, CodeSchemaValidation},
		{"wrapped typed", fmt.Errorf("outer: %w", &NotFoundError{}), CodeNotFound},
		{"unknown", errors.New("boom"), CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CodeOf(tt.err))
		})
	}
}

func TestNotFoundError_Message(t *testing.T) {
	err := &NotFoundError{Collection: db.CollectionJobs, ID: "job-9"}
	assert.Equal(t, "job not found: job-9", err.Error())
}

func TestSchemaValidationError_Message(t *testing.T) {
	err := &SchemaValidationError{Violations: []schemas.FieldError{
		{Field: "jobTitle", Message: "Invalid type. Expected: string, given: integer"},
	}}
	assert.Contains(t, err.Error(), "jobTitle: Invalid type")
}

func TestInvalidRequest_NamesFields(t *testing.T) {
	type req struct {
		JobID string `validate:"required"`
		OrgID string `validate:"required"`
	}
	err := invalidRequest(validator.New().Struct(req{}))

	var invalid *InvalidArgumentError
	assert.ErrorAs(t, err, &invalid)
	assert.Contains(t, invalid.Message, "JobID")
	assert.Contains(t, invalid.Message, "OrgID")
}
