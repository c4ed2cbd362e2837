package interview

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jonathan/jobchat/internal/db"
	"github.com/jonathan/jobchat/internal/llm"
	"github.com/jonathan/jobchat/internal/schemas"
)

// Code is a stable, caller-visible error classification
type Code string

// Error codes
const (
	CodeInvalidArgument     Code = "invalid-argument"
	CodeNotFound            Code = "not-found"
	CodeAlreadyExists       Code = "already-exists"
	CodePromptCompilation   Code = "prompt-compilation"
	CodeUpstreamUnavailable Code = "upstream-unavailable"
	CodeMalformedReport     Code = "malformed-report"
	CodeSchemaValidation    Code = "schema-validation"
	CodeInternal            Code = "internal"
)

// InvalidArgumentError represents missing or malformed caller input
type InvalidArgumentError struct {
	Message string
	Cause   error
}

func (e *InvalidArgumentError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid argument: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("invalid argument: %s", e.Message)
}

func (e *InvalidArgumentError) Unwrap() error { return e.Cause }

func (e *InvalidArgumentError) Code() Code { return CodeInvalidArgument }

// NotFoundError represents a referenced document that does not exist
type NotFoundError struct {
	Collection string
	ID         string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", singular(e.Collection), e.ID)
}

func (e *NotFoundError) Code() Code { return CodeNotFound }

// AlreadyExistsError represents a duplicate creation or a repeated terminal transition
type AlreadyExistsError struct {
	Message string
}

func (e *AlreadyExistsError) Error() string {
	return fmt.Sprintf("already exists: %s", e.Message)
}

func (e *AlreadyExistsError) Code() Code { return CodeAlreadyExists }

// PromptCompilationError represents a system instruction that could not be rendered
type PromptCompilationError struct {
	Message string
	Cause   error
}

func (e *PromptCompilationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("prompt compilation failed: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("prompt compilation failed: %s", e.Message)
}

func (e *PromptCompilationError) Unwrap() error { return e.Cause }

func (e *PromptCompilationError) Code() Code { return CodePromptCompilation }

// UpstreamUnavailableError represents a failed or timed out completion call
type UpstreamUnavailableError struct {
	Message string
	Cause   error
}

func (e *UpstreamUnavailableError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("AI service unavailable: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("AI service unavailable: %s", e.Message)
}

func (e *UpstreamUnavailableError) Unwrap() error { return e.Cause }

func (e *UpstreamUnavailableError) Code() Code { return CodeUpstreamUnavailable }

// MalformedReportError represents model output that breaks the three-section report format
type MalformedReportError struct {
	Message string
	Cause   error
}

func (e *MalformedReportError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("malformed report: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("malformed report: %s", e.Message)
}

func (e *MalformedReportError) Unwrap() error { return e.Cause }

func (e *MalformedReportError) Code() Code { return CodeMalformedReport }

// SchemaValidationError represents extracted data that failed its JSON Schema
type SchemaValidationError struct {
	Violations []schemas.FieldError
	Cause      error
}

func (e *SchemaValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Message))
	}
	if len(parts) == 0 && e.Cause != nil {
		return fmt.Sprintf("schema validation failed: %v", e.Cause)
	}
	return fmt.Sprintf("schema validation failed: %s", strings.Join(parts, "; "))
}

func (e *SchemaValidationError) Unwrap() error { return e.Cause }

func (e *SchemaValidationError) Code() Code { return CodeSchemaValidation }

// InternalError represents an unclassified failure
type InternalError struct {
	Message string
	Cause   error
}

func (e *InternalError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *InternalError) Unwrap() error { return e.Cause }

func (e *InternalError) Code() Code { return CodeInternal }

type coded interface {
	error
	Code() Code
}

// CodeOf classifies any error into the taxonomy. Typed errors report their own
// code; well-known lower-level errors are mapped; everything else is internal.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}

	var c coded
	if errors.As(err, &c) {
		return c.Code()
	}

	var validationErrs validator.ValidationErrors
	var schemaErr *schemas.ValidationError
	var callErr *llm.CallError
	var timeoutErr *llm.TimeoutError
	switch {
	case errors.As(err, &validationErrs):
		return CodeInvalidArgument
	case errors.Is(err, db.ErrNotFound):
		return CodeNotFound
	case errors.Is(err, db.ErrConflict):
		return CodeAlreadyExists
	case errors.As(err, &schemaErr):
		return CodeSchemaValidation
	case errors.As(err, &callErr), errors.As(err, &timeoutErr), errors.Is(err, context.DeadlineExceeded):
		return CodeUpstreamUnavailable
	}
	return CodeInternal
}

// invalidRequest wraps a validator failure with the offending field names
func invalidRequest(err error) error {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		fields := make([]string, 0, len(validationErrs))
		for _, fe := range validationErrs {
			fields = append(fields, fe.Field())
		}
		return &InvalidArgumentError{
			Message: fmt.Sprintf("missing or invalid fields: %s", strings.Join(fields, ", ")),
			Cause:   err,
		}
	}
	return &InvalidArgumentError{Message: "invalid request", Cause: err}
}

// storeError converts a store failure on collection/id into the taxonomy
func storeError(err error, collection, id string) error {
	if errors.Is(err, db.ErrNotFound) {
		return &NotFoundError{Collection: collection, ID: id}
	}
	return &InternalError{Message: fmt.Sprintf("failed to access %s/%s", collection, id), Cause: err}
}

func singular(collection string) string {
	switch collection {
	case db.CollectionOrgs:
		return "organization"
	case db.CollectionJobs:
		return "job"
	case db.CollectionCandidates:
		return "candidate"
	case db.CollectionApplications:
		return "application"
	case db.CollectionReports:
		return "report"
	}
	return strings.TrimSuffix(collection, "s")
}
