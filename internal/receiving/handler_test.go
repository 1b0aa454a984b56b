package receiving

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/sistemas-pedidos/pedidos-api/internal/platform/httpx"
	"github.com/sistemas-pedidos/pedidos-api/internal/rbac"
	"github.com/sistemas-pedidos/pedidos-api/internal/requests"
	"github.com/sistemas-pedidos/pedidos-api/internal/shared"
)

type handlerHarness struct {
	router http.Handler
	tokens *shared.TokenManager
	fix    *fixture
}

func newHandlerHarness(t *testing.T, status requests.Status) *handlerHarness {
	t.Helper()
	fix := newFixture(t, status)
	tokens := shared.NewTokenManager("handler-secret", "")
	mw := rbac.Middleware{Tokens: tokens}
	h := NewHandler(slog.Default(), fix.svc, mw)
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(mw.Authenticate)
		h.MountRoutes(r)
	})
	return &handlerHarness{router: r, tokens: tokens, fix: fix}
}

func (h *handlerHarness) do(t *testing.T, actor shared.Actor, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	token, err := h.tokens.Issue(actor, time.Hour)
	require.NoError(t, err)
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
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

func TestHandlerRecordReceipt(t *testing.T) {
	h := newHandlerHarness(t, requests.StatusApproved)
	rec := h.do(t, admin, http.MethodPost, "/api/requests/1/items/10/receipts",
		`{"quantityReceived":4,"invoiceNumber":"NF-9","invoiceDate":"2024-06-01","supplierId":null,"receiptCondition":"damaged"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var body struct {
		Receipt struct {
			ID               int64  `json:"id"`
			ReceiptCondition string `json:"receiptCondition"`
			NetQuantity      int    `json:"netQuantity"`
		} `json:"receipt"`
		Fulfillment struct {
			Status          string `json:"status"`
			QuantityPending int    `json:"quantityPending"`
		} `json:"fulfillment"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "damaged", body.Receipt.ReceiptCondition)
	require.Equal(t, 4, body.Receipt.NetQuantity)
	require.Equal(t, "partial", body.Fulfillment.Status)
	require.Equal(t, 6, body.Fulfillment.QuantityPending)
}

func TestHandlerRecordReceiptErrors(t *testing.T) {
	h := newHandlerHarness(t, requests.StatusPending)

	rec := h.do(t, admin, http.MethodPost, "/api/requests/1/items/10/receipts", `{"quantityReceived":2,"invoiceNumber":" "}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "invoiceNumber", decodeProblem(t, rec).Field)

	rec = h.do(t, admin, http.MethodPost, "/api/requests/1/items/10/receipts", `{"quantityReceived":2,"invoiceNumber":"NF"}`, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "status", decodeProblem(t, rec).Condition)

	rec = h.do(t, requester, http.MethodPost, "/api/requests/1/items/10/receipts", `{"quantityReceived":2,"invoiceNumber":"NF"}`, nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
	require.Equal(t, "role", decodeProblem(t, rec).Condition)

	rec = h.do(t, admin, http.MethodPost, "/api/requests/1/items/999/receipts", `{"quantityReceived":2,"invoiceNumber":"NF"}`, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = h.do(t, admin, http.MethodPost, "/api/requests/1/items/10/receipts", `{"quantityReceived":2,"unknown":true}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = h.do(t, admin, http.MethodPost, "/api/requests/x/items/10/receipts", `{}`, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandlerDuplicateSubmission(t *testing.T) {
	h := newHandlerHarness(t, requests.StatusApproved)
	headers := map[string]string{IdempotencyHeader: "abc-1"}
	body := `{"quantityReceived":1,"invoiceNumber":"NF"}`
	rec := h.do(t, admin, http.MethodPost, "/api/requests/1/items/10/receipts", body, headers)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = h.do(t, admin, http.MethodPost, "/api/requests/1/items/10/receipts", body, headers)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandlerStatusShape(t *testing.T) {
	h := newHandlerHarness(t, requests.StatusApproved)
	rec := h.do(t, admin, http.MethodPost, "/api/requests/1/items/11/receipts", `{"quantityReceived":6,"invoiceNumber":"NF"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = h.do(t, requester, http.MethodGet, "/api/requests/1/receipts/status", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Summary map[string]int `json:"summary"`
		Items   []struct {
			ItemID          int64  `json:"itemId"`
			ProductName     string `json:"productName"`
			QuantityOrdered int    `json:"quantityOrdered"`
			Status          string `json:"status"`
		} `json:"items"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 2, body.Summary["totalItems"])
	require.Equal(t, 1, body.Summary["overDeliveredItems"])
	require.Equal(t, 1, body.Summary["pendingItems"])
	require.Len(t, body.Items, 2)
	require.Equal(t, "over_delivered", body.Items[1].Status)

	rec = h.do(t, outsider, http.MethodGet, "/api/requests/1/receipts/status", "", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestHandlerListAndSummary(t *testing.T) {
	h := newHandlerHarness(t, requests.StatusApproved)
	for i := 0; i < 2; i++ {
		rec := h.do(t, admin, http.MethodPost, "/api/requests/1/items/10/receipts", `{"quantityReceived":2,"rejectedQuantity":1,"invoiceNumber":"NF"}`, nil)
		require.Equal(t, http.StatusCreated, rec.Code)
	}
	rec := h.do(t, requester, http.MethodGet, "/api/requests/1/items/10/receipts", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list, 2)

	rec = h.do(t, requester, http.MethodGet, "/api/requests/1/receipts/summary", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var totals map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &totals))
	require.EqualValues(t, 2, totals["totalRejected"])

	rec = h.do(t, requester, http.MethodGet, "/api/requests/1/items/10/fulfillment", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHandlerExportAdminOnly(t *testing.T) {
	h := newHandlerHarness(t, requests.StatusApproved)
	rec := h.do(t, requester, http.MethodGet, "/api/reports/receipts.csv", "", nil)
	require.Equal(t, http.StatusForbidden, rec.Code)

	rec = h.do(t, admin, http.MethodGet, "/api/reports/receipts.csv?from=2024-01-01&to=2024-12-31", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))

	rec = h.do(t, admin, http.MethodGet, "/api/reports/receipts.csv?from=yesterday", "", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "from", decodeProblem(t, rec).Field)
}
