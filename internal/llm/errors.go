package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/googleapis/gax-go/v2/apierror"
	"google.golang.org/grpc/codes"
)

// TimeoutError is returned when a single completion call exceeds its time budget
type TimeoutError struct {
	Timeout time.Duration
	Cause   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("completion call timed out after %s", e.Timeout)
}

func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

// CallError wraps the final failure of a completion call after retries
type CallError struct {
	Model    string
	Attempts int
	Cause    error
}

func (e *CallError) Error() string {
	return fmt.Sprintf("completion call to %s failed after %d attempt(s): %v", e.Model, e.Attempts, e.Cause)
}

func (e *CallError) Unwrap() error {
	return e.Cause
}

// IsRetryable reports whether a failed call is worth repeating:
// timeouts, rate limiting, and transient server errors.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var timeout *TimeoutError
	if errors.As(err, &timeout) {
		return true
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, ErrEmptyResponse) {
		return false
	}

	var apiErr *apierror.APIError
	if errors.As(err, &apiErr) {
		if code := apiErr.HTTPCode(); code > 0 {
			return code == http.StatusTooManyRequests || code >= http.StatusInternalServerError
		}
		if st := apiErr.GRPCStatus(); st != nil {
			switch st.Code() {
			case codes.ResourceExhausted, codes.Unavailable, codes.Internal, codes.DeadlineExceeded:
				return true
			}
		}
	}
	return false
}
