package middleware

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"taskchat/logger"
)

const RequestIDHeader = "X-Request-ID"

// statusRecorder captures the status code written by the next handler.
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

// WriteHeader is not always called, so the recorder starts at 200.
func newStatusRecorder(w http.ResponseWriter) *statusRecorder {
	return &statusRecorder{w, http.StatusOK}
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.statusCode = code
	sr.ResponseWriter.WriteHeader(code)
}

// Logging logs every request with its status, duration and request id. A missing
// X-Request-ID header is filled in and echoed back.
func Logging(lg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			requestID := r.Header.Get(RequestIDHeader)
			if requestID == "" {
				requestID = uuid.New().String()
				r.Header.Set(RequestIDHeader, requestID)
			}
			w.Header().Set(RequestIDHeader, requestID)

			sr := newStatusRecorder(w)
			next.ServeHTTP(sr, r)

			lg.HTTP(r.Method, r.URL.Path, sr.statusCode, time.Since(start), map[string]any{
				"request_id":  requestID,
				"remote_addr": r.RemoteAddr,
				"user_agent":  r.UserAgent(),
			})
		})
	}
}
