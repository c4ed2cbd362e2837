package server

import (
	"errors"
	"net/http"

	"github.com/jonathan/jobchat/internal/interview"
	"github.com/jonathan/jobchat/internal/schemas"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error      string               `json:"error"`
	Code       interview.Code       `json:"code"`
	Violations []schemas.FieldError `json:"violations,omitempty"`
}

// HTTPStatus returns the appropriate HTTP status code for an error
func HTTPStatus(err error) int {
	switch interview.CodeOf(err) {
	case interview.CodeInvalidArgument:
		return http.StatusBadRequest
	case interview.CodeNotFound:
		return http.StatusNotFound
	case interview.CodeAlreadyExists:
		return http.StatusConflict
	case interview.CodeUpstreamUnavailable:
		return http.StatusServiceUnavailable
	case interview.CodeMalformedReport:
		return http.StatusBadGateway
	case interview.CodeSchemaValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// errorBody builds the response for err. Internal failures never expose
// their cause.
func errorBody(err error) ErrorResponse {
	code := interview.CodeOf(err)
	resp := ErrorResponse{Error: err.Error(), Code: code}

	switch code {
	case interview.CodeInternal, interview.CodePromptCompilation:
		resp.Error = "internal error"
	case interview.CodeUpstreamUnavailable:
		resp.Error = "AI service unavailable"
		var uerr *interview.UpstreamUnavailableError
		if errors.As(err, &uerr) {
			resp.Error += ": " + uerr.Message
		}
	case interview.CodeSchemaValidation:
		var verr *interview.SchemaValidationError
		if errors.As(err, &verr) {
			resp.Violations = verr.Violations
		}
	}
	return resp
}
