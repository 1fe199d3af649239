package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// TaskErrorType categorizes failures surfaced by the task and chat services.
type TaskErrorType string

const (
	ValidationError              TaskErrorType = "validation"
	NotFoundError                TaskErrorType = "not_found"
	AmbiguousPrefixError         TaskErrorType = "ambiguous_prefix"
	CollaboratorUnavailableError TaskErrorType = "collaborator_unavailable"
	InternalError                TaskErrorType = "internal"
)

// TaskError provides structured error information with an HTTP status suggestion.
type TaskError struct {
	Type    TaskErrorType  `json:"type"`
	Message string         `json:"message"`
	Code    int            `json:"code"`
	Details map[string]any `json:"details,omitempty"`
	cause   error
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *TaskError) Unwrap() error {
	return e.cause
}

// Is matches any TaskError of the same type, so errors.Is(err, &TaskError{Type: NotFoundError}) works.
func (e *TaskError) Is(target error) bool {
	t, ok := target.(*TaskError)
	if !ok {
		return false
	}
	return t.Type == e.Type
}

func details(d []map[string]any) map[string]any {
	if len(d) > 0 {
		return d[0]
	}
	return nil
}

func NewValidationError(message string, d ...map[string]any) *TaskError {
	return &TaskError{
		Type:    ValidationError,
		Message: message,
		Code:    http.StatusBadRequest,
		Details: details(d),
	}
}

func NewNotFoundError(message string) *TaskError {
	return &TaskError{
		Type:    NotFoundError,
		Message: message,
		Code:    http.StatusNotFound,
	}
}

// NewAmbiguousPrefixError reports that prefix matched every id in candidates.
func NewAmbiguousPrefixError(prefix string, candidates []string) *TaskError {
	return &TaskError{
		Type:    AmbiguousPrefixError,
		Message: fmt.Sprintf("prefix %q matches %d tasks", prefix, len(candidates)),
		Code:    http.StatusConflict,
		Details: map[string]any{
			"prefix":     prefix,
			"candidates": candidates,
		},
	}
}

func NewCollaboratorUnavailableError(message string, cause error) *TaskError {
	return &TaskError{
		Type:    CollaboratorUnavailableError,
		Message: message,
		Code:    http.StatusBadGateway,
		cause:   cause,
	}
}

func NewInternalError(message string, cause ...error) *TaskError {
	e := &TaskError{
		Type:    InternalError,
		Message: message,
		Code:    http.StatusInternalServerError,
	}
	if len(cause) > 0 {
		e.cause = cause[0]
	}
	return e
}

// IsTaskError reports whether err is, or wraps, a TaskError and returns it.
func IsTaskError(err error) (*TaskError, bool) {
	var taskErr *TaskError
	if stderrors.As(err, &taskErr) {
		return taskErr, true
	}
	return nil, false
}

// TypeOf returns the TaskErrorType of err, or InternalError for anything else.
func TypeOf(err error) TaskErrorType {
	if taskErr, ok := IsTaskError(err); ok {
		return taskErr.Type
	}
	return InternalError
}

// Candidates returns the ids attached to an ambiguous prefix error.
func Candidates(err error) []string {
	taskErr, ok := IsTaskError(err)
	if !ok || taskErr.Type != AmbiguousPrefixError {
		return nil
	}
	ids, _ := taskErr.Details["candidates"].([]string)
	return ids
}
