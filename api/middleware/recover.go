package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"taskchat/logger"
)

// Recover turns a handler panic into a 500 and logs the stack.
func Recover(lg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if rec == http.ErrAbortHandler {
						panic(rec)
					}
					lg.Error("Handler panicked", map[string]any{
						"panic": fmt.Sprint(rec),
						"path":  r.URL.Path,
						"stack": string(debug.Stack()),
					})
					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					w.Write([]byte(`{"error":"internal server error","type":"internal"}` + "\n"))
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
