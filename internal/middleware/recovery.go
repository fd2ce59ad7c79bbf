package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"msgtree/internal/httputil"
)

// Recovery turns a panic in a handler into a 500 problem response
func Recovery(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if rec == http.ErrAbortHandler {
					panic(rec)
				}

				attrs := []any{
					"error", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				}
				if caller, ok := httputil.GetCaller(r); ok {
					attrs = append(attrs, "api_client_id", caller.APIClientID)
				}
				logger.Error("panic recovered", attrs...)

				httputil.RespondError(w, http.StatusInternalServerError, "internal server error")
			}()

			next.ServeHTTP(w, r)
		})
	}
}
