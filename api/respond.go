package api

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"
	"strings"

	"taskchat/errors"
	"taskchat/logger"
)

const maxBodySize = 1024 * 1024 // 1 MB

// ErrorResponse defines the JSON structure for error responses
type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    string         `json:"type,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// decodeJSON reads a size-limited JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) *errors.TaskError {
	return invalidBody(readJSON(w, r, dst))
}

// decodeOptionalJSON is decodeJSON for requests whose body may be empty, whatever
// their Content-Length says. An empty body leaves dst untouched.
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst any) *errors.TaskError {
	err := readJSON(w, r, dst)
	if stderrors.Is(err, io.EOF) {
		return nil
	}
	return invalidBody(err)
}

func readJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	return json.NewDecoder(r.Body).Decode(dst)
}

func invalidBody(err error) *errors.TaskError {
	if err == nil {
		return nil
	}
	if strings.Contains(err.Error(), "http: request body too large") {
		return errors.NewValidationError("request body too large", map[string]any{
			"max_size_bytes": maxBodySize,
		})
	}
	return errors.NewValidationError("invalid JSON payload", map[string]any{
		"error": err.Error(),
	})
}

func respondJSON(w http.ResponseWriter, status int, body any, lg *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		lg.Error("Failed to encode response", map[string]any{"error": err.Error()})
	}
}

// respondWithFailure writes err as a structured error, treating anything that is not a TaskError as internal.
func respondWithFailure(w http.ResponseWriter, err error, lg *logger.Logger) {
	if taskErr, ok := errors.IsTaskError(err); ok {
		respondWithError(w, taskErr, lg)
		return
	}
	respondWithError(w, errors.NewInternalError(err.Error()), lg)
}

// respondWithError sends a structured error response
func respondWithError(w http.ResponseWriter, taskErr *errors.TaskError, lg *logger.Logger) {
	fields := map[string]any{
		"error_type":    string(taskErr.Type),
		"error_message": taskErr.Message,
		"status_code":   taskErr.Code,
		"error_details": taskErr.Details,
	}
	// client mistakes are routine; only server-side failures are errors
	if taskErr.Code >= http.StatusInternalServerError {
		lg.Error("HTTP error response", fields)
	} else {
		lg.Warn("HTTP error response", fields)
	}

	respondJSON(w, taskErr.Code, ErrorResponse{
		Error:   taskErr.Message,
		Type:    string(taskErr.Type),
		Details: taskErr.Details,
	}, lg)
}
