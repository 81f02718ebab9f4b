package domain

import (
	"errors"
	"fmt"
	"strconv"
)

// ErrNoSuites is returned when no suite source produced any suite.
var ErrNoSuites = errors.New("no suites loaded")

// ErrReportNotFound is returned when a report ID cannot be found in the store.
var ErrReportNotFound = errors.New("report not found")

// ErrUnknownIdentity is returned when a case names an identity with no binding.
var ErrUnknownIdentity = errors.New("unknown client identity")

// ErrLockNotAcquired is returned when another runner holds the service lock.
var ErrLockNotAcquired = errors.New("lock not acquired")

// ErrOperationUndefined is returned when neither the predefined registry nor
// the bound client knows an operation.
var ErrOperationUndefined = errors.New("operation undefined")

// ConfigurationError aborts the run, or the single case that hit it.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := e.Reason
	if e.Field != "" {
		msg = e.Field + ": " + msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// ResolutionError fails the owning case when an expression cannot be evaluated.
type ResolutionError struct {
	Expr string
	Err  error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("cannot resolve %q: %v", e.Expr, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// AssertionError describes a structural mismatch between expected and actual.
type AssertionError struct {
	Path     string
	Reason   string
	Expected any
	Actual   any
}

func (e *AssertionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("assertion failed at %s: %s", e.Path, e.Reason)
	}
	return fmt.Sprintf("assertion failed at %s, expect: %v, actual: %v", e.Path, e.Expected, e.Actual)
}

// DispatchFailure wraps an error raised while calling an operation that is not
// a structured service response (unreachable endpoint, malformed input).
type DispatchFailure struct {
	Operation string
	Err       error
}

func (e *DispatchFailure) Error() string {
	return fmt.Sprintf("dispatch %s: %v", e.Operation, e.Err)
}

func (e *DispatchFailure) Unwrap() error { return e.Err }

// Describe renders the compact descriptor stored in CaseNode.ErrorInfo.
func Describe(err error) string {
	if err == nil {
		return ""
	}
	kind := "Error"
	var (
		cfg  *ConfigurationError
		res  *ResolutionError
		asrt *AssertionError
		disp *DispatchFailure
	)
	switch {
	case errors.As(err, &asrt):
		kind = "AssertionError"
	case errors.As(err, &res):
		kind = "ResolutionError"
	case errors.As(err, &cfg):
		kind = "ConfigurationError"
	case errors.As(err, &disp):
		kind = "DispatchFailure"
	}
	return kind + "(" + strconv.Quote(err.Error()) + ")"
}

// ServiceError is a structured failure reported by the remote service. Its
// payload stands in for the response; only an assertion decides whether the
// case failed.
type ServiceError struct {
	Code       string
	Message    string
	StatusCode int
	RequestID  string
}

func (e *ServiceError) Error() string {
	return fmt.Sprintf("service error %d %s: %s", e.StatusCode, e.Code, e.Message)
}

// Response renders the error in the shape of a service response.
func (e *ServiceError) Response() map[string]any {
	return map[string]any{
		"Error": map[string]any{
			"Code":    e.Code,
			"Message": e.Message,
		},
		"ResponseMetadata": map[string]any{
			"HTTPStatusCode": e.StatusCode,
			"RequestId":      e.RequestID,
		},
	}
}
