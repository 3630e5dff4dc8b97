package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "smartid/pkg/domain-errors"
	"smartid/pkg/platform/httputil"
	"smartid/pkg/requestcontext"
)

const Header = "X-Admin-Token"

// RequireAdminToken guards operator endpoints such as mining ledger blocks.
// An empty expected token disables the endpoints entirely.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get(Header)
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				if logger != nil {
					logger.WarnContext(ctx, "admin token mismatch",
						"request_id", requestcontext.RequestID(ctx),
					)
				}
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthenticated, "admin token required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
