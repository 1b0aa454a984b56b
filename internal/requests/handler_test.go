package requests

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"

	"github.com/sistemas-pedidos/pedidos-api/internal/platform/httpx"
	"github.com/sistemas-pedidos/pedidos-api/internal/rbac"
	"github.com/sistemas-pedidos/pedidos-api/internal/shared"
)

type handlerHarness struct {
	router http.Handler
	tokens *shared.TokenManager
	svc    *Service
	repo   *memoryRequestRepo
}

func newHandlerHarness(t *testing.T) *handlerHarness {
	t.Helper()
	svc, repo := newTestService(t, stubReceiptCounter{})
	tokens := shared.NewTokenManager("handler-secret", "")
	mw := rbac.Middleware{Tokens: tokens}
	h := NewHandler(slog.Default(), svc, mw)
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(mw.Authenticate)
		h.MountRoutes(r)
	})
	return &handlerHarness{router: r, tokens: tokens, svc: svc, repo: repo}
}

func (h *handlerHarness) do(t *testing.T, actor shared.Actor, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := h.tokens.Issue(actor, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

func decodeProblem(t *testing.T, rec *httptest.ResponseRecorder) httpx.ProblemDetail {
	t.Helper()
	var p httpx.ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	return p
}

func TestHandlerCreateAndShow(t *testing.T) {
	h := newHandlerHarness(t)
	rec := h.do(t, requester, http.MethodPost, "/api/requests",
		`{"observations":"toner","items":[{"productId":1,"quantity":3},{"productId":2,"quantity":1}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created requestResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.Equal(t, requester.ID, created.RequesterID)
	require.Equal(t, StatusPending, created.Status)
	require.Len(t, created.Items, 2)
	require.Equal(t, 3, created.Items[0].Quantity)

	rec = h.do(t, requester, http.MethodGet, "/api/requests/1", "")
	require.Equal(t, http.StatusOK, rec.Code)

	rec = h.do(t, stranger, http.MethodGet, "/api/requests/1", "")
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerReviewRequiresAdmin(t *testing.T) {
	h := newHandlerHarness(t)
	pr, items := createRequest(t, h.svc, 2)
	path := "/api/requests/" + strconv.FormatInt(pr.ID, 10) + "/items/" + strconv.FormatInt(items[0].ID, 10) + "/review"

	rec := h.do(t, requester, http.MethodPatch, path, `{"status":"approved"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "role", decodeProblem(t, rec).Condition)

	rec = h.do(t, admin, http.MethodPatch, path, `{"status":"approved"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Item          itemResponse `json:"item"`
		RequestStatus Status       `json:"requestStatus"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, ItemApproved, body.Item.Status)
	require.Equal(t, StatusApproved, body.RequestStatus)

	rec = h.do(t, admin, http.MethodPatch, "/api/requests/"+strconv.FormatInt(pr.ID, 10)+"/items/"+strconv.FormatInt(items[0].ID, 10), `{"quantity":5}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerUnknownProduct(t *testing.T) {
	h := newHandlerHarness(t)
	h.repo.failItem = &pgconn.PgError{Code: "23503", ConstraintName: "request_items_product_id_fkey"}

	rec := h.do(t, requester, http.MethodPost, "/api/requests", `{"items":[{"productId":999,"quantity":1}]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	require.Equal(t, "productId", decodeProblem(t, rec).Field)
	require.Empty(t, h.repo.requests)
}

func TestHandlerBadInput(t *testing.T) {
	h := newHandlerHarness(t)

	rec := h.do(t, requester, http.MethodPost, "/api/requests", `{"items":[]}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, requester, http.MethodPost, "/api/requests", `{"items":[{"productId":1,"quantity":1}],"unknown":true}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, requester, http.MethodGet, "/api/requests/abc", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, requester, http.MethodDelete, "/api/requests/1/items/0", "")
	require.Equal(t, http.StatusBadRequest, rec.Code)
}
