package receiving

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sistemas-pedidos/pedidos-api/internal/platform/httpx"
	"github.com/sistemas-pedidos/pedidos-api/internal/rbac"
	"github.com/sistemas-pedidos/pedidos-api/internal/shared"
)

// IdempotencyHeader carries the client's submission key.
const IdempotencyHeader = "Idempotency-Key"

const maxIdempotencyKey = 128

// Handler serves the receiving JSON endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers receiving routes. Actor authentication is expected upstream.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/requests/{id}/items/{itemId}/receipts", h.record)
	r.Get("/requests/{id}/items/{itemId}/receipts", h.list)
	r.Get("/requests/{id}/items/{itemId}/fulfillment", h.itemFulfillment)
	r.Get("/requests/{id}/receipts/status", h.status)
	r.Get("/requests/{id}/receipts/summary", h.totals)
	r.With(h.rbac.RequireAny(shared.RoleAdmin)).Get("/reports/receipts.csv", h.export)
}

func (h *Handler) record(w http.ResponseWriter, r *http.Request) {
	actor, requestID, itemID, ok := h.itemScope(w, r)
	if !ok {
		return
	}
	var input ReceiptInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	key := strings.TrimSpace(r.Header.Get(IdempotencyHeader))
	if len(key) > maxIdempotencyKey {
		httpx.RespondError(w, &ValidationError{Field: IdempotencyHeader, Message: fmt.Sprintf("must be at most %d characters", maxIdempotencyKey)})
		return
	}
	result, err := h.service.RecordReceipt(r.Context(), actor, requestID, itemID, input, key)
	if err != nil {
		h.fail(w, "record receipt", err)
		return
	}
	resp := recordResponse{Receipt: toReceiptResponse(result.Receipt), Warning: result.Warning}
	if result.Fulfillment != nil {
		f := toFulfillmentResponse(*result.Fulfillment)
		resp.Fulfillment = &f
	}
	httpx.JSON(w, http.StatusCreated, resp)
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	actor, requestID, itemID, ok := h.itemScope(w, r)
	if !ok {
		return
	}
	receipts, err := h.service.ListReceipts(r.Context(), actor, requestID, itemID)
	if err != nil {
		h.fail(w, "list receipts", err)
		return
	}
	out := make([]receiptResponse, 0, len(receipts))
	for _, receipt := range receipts {
		out = append(out, toReceiptResponse(receipt))
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) itemFulfillment(w http.ResponseWriter, r *http.Request) {
	actor, requestID, itemID, ok := h.itemScope(w, r)
	if !ok {
		return
	}
	f, err := h.service.ItemFulfillment(r.Context(), actor, requestID, itemID)
	if err != nil {
		h.fail(w, "item fulfillment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toFulfillmentResponse(f))
}

func (h *Handler) status(w http.ResponseWriter, r *http.Request) {
	actor, requestID, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	rf, err := h.service.RequestFulfillment(r.Context(), actor, requestID)
	if err != nil {
		h.fail(w, "request fulfillment", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toStatusResponse(rf))
}

func (h *Handler) totals(w http.ResponseWriter, r *http.Request) {
	actor, requestID, ok := h.requestScope(w, r)
	if !ok {
		return
	}
	totals, err := h.service.ReceiptTotals(r.Context(), actor, requestID)
	if err != nil {
		h.fail(w, "receipt totals", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toTotalsResponse(totals))
}

func (h *Handler) export(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	filter, err := ParseExportFilter(r.URL.Query().Get)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var buf bytes.Buffer
	if err := h.service.Export(r.Context(), actor, filter, &buf); err != nil {
		h.fail(w, "export receipts", err)
		return
	}
	filename := fmt.Sprintf("receipts-%s.csv", time.Now().UTC().Format("20060102"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	status := httpx.StatusFor(err)
	if status >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) requestScope(w http.ResponseWriter, r *http.Request) (shared.Actor, int64, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return shared.Actor{}, 0, false
	}
	requestID, err := parseID(chi.URLParam(r, "id"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request id")
		return shared.Actor{}, 0, false
	}
	return actor, requestID, true
}

func (h *Handler) itemScope(w http.ResponseWriter, r *http.Request) (shared.Actor, int64, int64, bool) {
	actor, requestID, ok := h.requestScope(w, r)
	if !ok {
		return shared.Actor{}, 0, 0, false
	}
	itemID, err := parseID(chi.URLParam(r, "itemId"))
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid item id")
		return shared.Actor{}, 0, 0, false
	}
	return actor, requestID, itemID, true
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}
