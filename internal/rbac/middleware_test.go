package rbac

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/sistemas-pedidos/pedidos-api/internal/shared"
)

func newTestMiddleware(t *testing.T) (Middleware, *shared.TokenManager) {
	t.Helper()
	tokens := shared.NewTokenManager("test-secret", "pedidos")
	return Middleware{Tokens: tokens}, tokens
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor, _ := shared.ActorFromContext(r.Context())
		w.Header().Set("X-Actor", string(actor.Role))
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestAuthenticateRejectsMissingToken(t *testing.T) {
	m, _ := newTestMiddleware(t)
	rec := httptest.NewRecorder()
	m.Authenticate(okHandler()).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthenticateRejectsForeignSignature(t *testing.T) {
	m, _ := newTestMiddleware(t)
	other := shared.NewTokenManager("other-secret", "pedidos")
	token, err := other.Issue(shared.Actor{ID: 7, Role: shared.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	m.Authenticate(okHandler()).ServeHTTP(rec, req)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAnyRole(t *testing.T) {
	m, tokens := newTestMiddleware(t)
	chain := m.Authenticate(m.RequireAny(shared.RoleAdmin)(okHandler()))

	admin, err := tokens.Issue(shared.Actor{ID: 1, Role: shared.RoleAdmin}, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+admin)
	rec := httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, "admin", rec.Header().Get("X-Actor"))

	requester, err := tokens.Issue(shared.Actor{ID: 2, Role: shared.RoleRequester}, time.Hour)
	require.NoError(t, err)
	req = httptest.NewRequest(http.MethodPost, "/", nil)
	req.Header.Set("Authorization", "Bearer "+requester)
	rec = httptest.NewRecorder()
	chain.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "role", body["condition"])
}
