// Package caller authenticates the account behind an HTTP request.
package caller

import (
	"log/slog"
	"net/http"
	"strings"

	"smartid/pkg/domain"
	dErrors "smartid/pkg/domain-errors"
	"smartid/pkg/platform/httputil"
	"smartid/pkg/requestcontext"
)

// Verifier resolves a bearer token to the account it speaks for.
type Verifier interface {
	Caller(token string) (domain.AccountID, error)
}

const bearerPrefix = "Bearer "

// Authenticate binds the bearer token's account to the request context.
// Requests without an Authorization header pass through anonymously so public
// queries stay open; a present but invalid token is rejected.
func Authenticate(v Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}
			ctx := r.Context()
			token, ok := strings.CutPrefix(header, bearerPrefix)
			if !ok {
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "bearer token required"))
				return
			}
			account, err := v.Caller(token)
			if err != nil {
				if logger != nil {
					logger.WarnContext(ctx, "rejected caller token",
						"error", err,
						"request_id", requestcontext.RequestID(ctx),
					)
				}
				httputil.WriteError(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(requestcontext.WithCaller(ctx, account)))
		})
	}
}

// Require rejects anonymous requests.
func Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requestcontext.Caller(r.Context()).IsZero() {
			httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
