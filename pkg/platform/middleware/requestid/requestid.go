// Package requestid propagates an X-Request-ID header into the request context.
package requestid

import (
	"net/http"

	"github.com/google/uuid"

	"smartid/pkg/requestcontext"
)

const Header = "X-Request-ID"

// Middleware reuses an incoming request ID or mints one, echoes it on the
// response, and stores it for logging.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(Header)
		if reqID == "" || len(reqID) > 128 {
			reqID = uuid.NewString()
		}
		w.Header().Set(Header, reqID)
		next.ServeHTTP(w, r.WithContext(requestcontext.WithRequestID(r.Context(), reqID)))
	})
}
