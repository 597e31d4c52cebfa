package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/akademika-id/akademika/internal/observability"
	"github.com/akademika-id/akademika/internal/platform/httpx"
	"github.com/akademika-id/akademika/internal/shared"
)

// Verifier validates a bearer access token and returns its subject.
type Verifier interface {
	VerifySubject(token string) (int64, error)
}

// PrincipalLoader resolves the subject's current identity and role from the
// store. Loading per request means an administrative role change applies to
// the next request, not only after outstanding tokens expire.
type PrincipalLoader interface {
	LoadPrincipal(ctx context.Context, userID int64) (*shared.Principal, error)
}

// Middleware is the authorization gate guarding protected routes.
type Middleware struct {
	Verifier Verifier
	Loader   PrincipalLoader
	Service  *Service
	Logger   *slog.Logger
	Metrics  *observability.Metrics
}

// Authenticate verifies the bearer token and places the current principal in
// the request context. Missing, malformed or expired tokens all answer 401.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			httpx.RespondError(w, r, shared.ErrUnauthenticated)
			return
		}
		userID, err := m.Verifier.VerifySubject(token)
		if err != nil {
			httpx.RespondError(w, r, shared.ErrUnauthenticated)
			return
		}
		principal, err := m.Loader.LoadPrincipal(r.Context(), userID)
		if err != nil {
			if !errors.Is(err, shared.ErrUnauthenticated) && m.Logger != nil {
				m.Logger.Error("load principal", slog.Int64("user_id", userID), slog.Any("error", err))
			}
			httpx.RespondError(w, r, shared.ErrUnauthenticated)
			return
		}
		ctx := shared.ContextWithPrincipal(r.Context(), principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Require guards a route with a statically declared permission. The principal
// must already be in context via Authenticate; absence answers 401, a missing
// permission answers 403.
func (m Middleware) Require(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := shared.PrincipalFromContext(r.Context())
			err := m.Service.Authorize(r.Context(), principal, permission)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}
			if errors.Is(err, shared.ErrForbidden) {
				if m.Metrics != nil {
					m.Metrics.ObserveDenial()
				}
				if m.Logger != nil {
					m.Logger.Warn("permission denied",
						slog.Int64("user_id", principal.UserID),
						slog.String("permission", permission),
						slog.String("path", r.URL.Path))
				}
			}
			httpx.RespondError(w, r, err)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", false
	}
	token := strings.TrimSpace(header[len(prefix):])
	return token, token != ""
}
