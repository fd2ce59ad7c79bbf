package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"msgtree/internal/auth"
	"msgtree/internal/httputil"
)

// APIKeyHeader carries a static API key
const APIKeyHeader = "X-API-Key"

// Authenticate resolves the caller from an X-API-Key header or a Bearer token
// and stores it in the request context. Requests without a valid credential get 401.
// verifier may be nil when no JWKS endpoint is configured.
func Authenticate(keys auth.CallerResolver, verifier auth.JWTVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if apiKey := r.Header.Get(APIKeyHeader); apiKey != "" {
				caller, ok := keys.Lookup(apiKey)
				if !ok {
					logger.Debug("unknown api key", "path", r.URL.Path)
					httputil.RespondError(w, http.StatusUnauthorized, "invalid api key")
					return
				}
				next.ServeHTTP(w, httputil.WithCaller(r, caller))
				return
			}

			token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !found || token == "" || verifier == nil {
				httputil.RespondError(w, http.StatusUnauthorized, "missing credentials")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				logger.Debug("token rejected", "path", r.URL.Path, "error", err)
				httputil.RespondError(w, http.StatusUnauthorized, "invalid token")
				return
			}

			caller, err := claims.Caller()
			if err != nil {
				httputil.RespondError(w, http.StatusUnauthorized, "invalid api_client_id claim")
				return
			}

			next.ServeHTTP(w, httputil.WithCaller(r, caller))
		})
	}
}

// SkipPaths bypasses mw for the exact paths given (health checks, metrics scrapes)
func SkipPaths(mw func(http.Handler) http.Handler, paths ...string) func(http.Handler) http.Handler {
	skip := make(map[string]struct{}, len(paths))
	for _, p := range paths {
		skip[p] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		wrapped := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := skip[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}
			wrapped.ServeHTTP(w, r)
		})
	}
}
