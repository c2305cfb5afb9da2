// Package requesttime scopes one "now" and one request ID to each HTTP
// request, so everything a request triggers logs and timestamps consistently.
package requesttime

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"healthtrack/pkg/requestcontext"
)

// HeaderRequestID carries a caller-supplied correlation ID.
const HeaderRequestID = "X-Request-ID"

// Middleware captures the current time at the start of the request and
// reuses the caller's request ID, minting one when absent.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if requestID == "" {
			requestID = uuid.NewString()
		}
		ctx := requestcontext.WithTime(r.Context(), time.Now())
		ctx = requestcontext.WithRequestID(ctx, requestID)
		w.Header().Set(HeaderRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
