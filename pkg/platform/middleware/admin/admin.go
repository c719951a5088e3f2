package admin

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	dErrors "lifeline/pkg/domain-errors"
	"lifeline/pkg/platform/httputil"
	request "lifeline/pkg/platform/middleware/request"
	"lifeline/pkg/requestcontext"
)

const (
	// HeaderAdminSecret carries the shared admin secret.
	HeaderAdminSecret = "X-Admin-Secret"
	// QueryAdminSecret is accepted for clients that cannot set headers.
	QueryAdminSecret = "adminSecret"

	actorAdmin = "admin"
)

// RequireAdminSecret guards every admin-scoped route with a shared-secret
// comparison. Each call is checked independently; there is no session.
// An empty expected secret rejects everything.
func RequireAdminSecret(expectedSecret string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			secret := r.Header.Get(HeaderAdminSecret)
			if secret == "" {
				secret = r.URL.Query().Get(QueryAdminSecret)
			}
			ctx := r.Context()
			// Use constant-time comparison to prevent timing attacks
			if expectedSecret == "" || secret == "" ||
				subtle.ConstantTimeCompare([]byte(secret), []byte(expectedSecret)) != 1 {
				logger.WarnContext(ctx, "admin secret mismatch",
					"request_id", request.GetRequestID(ctx),
					"path", r.URL.Path,
				)
				httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "admin secret required"))
				return
			}

			next.ServeHTTP(w, r.WithContext(requestcontext.WithActor(ctx, actorAdmin)))
		})
	}
}
