package gateway

import (
	"context"
	"net/http"

	"github.com/fjod/go_cart/storefront/internal/guard"
	"github.com/google/uuid"
)

type requestIDKey struct{}

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		w.Header().Set("X-Request-ID", requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func getRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(requestIDKey{}).(string); ok {
		return requestID
	}
	return ""
}

// GuardMiddleware runs the route guard for the request path. While the
// session is resolving the client is asked to retry instead of redirected.
func GuardMiddleware(decide func(path string) guard.Decision) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch d := decide(r.URL.Path); d {
			case guard.Allow:
				next.ServeHTTP(w, r)
			case guard.Pending:
				w.Header().Set("Retry-After", "1")
				respondError(w, http.StatusServiceUnavailable, "session_resolving", "session is still resolving")
			default:
				http.Redirect(w, r, d.Target(), http.StatusSeeOther)
			}
		})
	}
}
