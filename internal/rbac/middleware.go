package rbac

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/sistemas-pedidos/pedidos-api/internal/platform/httpx"
	"github.com/sistemas-pedidos/pedidos-api/internal/shared"
)

// TokenVerifier turns a bearer token into an actor.
type TokenVerifier interface {
	Verify(raw string) (shared.Actor, error)
}

// Middleware wires actor authentication and role gates for HTTP handlers.
type Middleware struct {
	Tokens TokenVerifier
	Logger *slog.Logger
}

// Authenticate resolves the bearer token into an actor stored on the request context.
func (m Middleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := shared.BearerToken(r.Header.Get("Authorization"))
		if raw == "" {
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", shared.ErrTokenMissing.Error())
			return
		}
		actor, err := m.Tokens.Verify(raw)
		if err != nil {
			if m.Logger != nil && !errors.Is(err, shared.ErrTokenInvalid) {
				m.Logger.Error("rbac verify token", slog.Any("error", err))
			}
			httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid bearer token")
			return
		}
		next.ServeHTTP(w, r.WithContext(shared.ContextWithActor(r.Context(), actor)))
	})
}

// RequireAny ensures the current actor holds at least one of the roles.
func (m Middleware) RequireAny(roles ...shared.Role) func(http.Handler) http.Handler {
	normalized := normalizeRoles(roles)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := shared.ActorFromContext(r.Context())
			if !ok {
				httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", shared.ErrTokenMissing.Error())
				return
			}
			if len(normalized) == 0 || hasAnyRole(actor.Role, normalized) {
				next.ServeHTTP(w, r)
				return
			}
			if m.Logger != nil {
				m.Logger.Warn("rbac role denied", slog.Int64("actor_id", actor.ID), slog.String("role", string(actor.Role)), slog.String("path", r.URL.Path))
			}
			httpx.RespondError(w, roleDenied{required: normalized})
		})
	}
}

type roleDenied struct {
	required []shared.Role
}

func (e roleDenied) Error() string {
	names := make([]string, 0, len(e.required))
	for _, role := range e.required {
		names = append(names, string(role))
	}
	return "requires role " + strings.Join(names, " or ")
}

func (e roleDenied) Unwrap() error { return httpx.ErrForbidden }

func (e roleDenied) FailedCondition() string { return "role" }

func normalizeRoles(roles []shared.Role) []shared.Role {
	seen := make(map[shared.Role]struct{}, len(roles))
	normalized := make([]shared.Role, 0, len(roles))
	for _, role := range roles {
		role = shared.Role(strings.TrimSpace(strings.ToLower(string(role))))
		if role == "" {
			continue
		}
		if _, ok := seen[role]; ok {
			continue
		}
		seen[role] = struct{}{}
		normalized = append(normalized, role)
	}
	return normalized
}

func hasAnyRole(granted shared.Role, required []shared.Role) bool {
	for _, role := range required {
		if granted == role {
			return true
		}
	}
	return false
}
