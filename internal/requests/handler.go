package requests

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sistemas-pedidos/pedidos-api/internal/platform/httpx"
	"github.com/sistemas-pedidos/pedidos-api/internal/rbac"
	"github.com/sistemas-pedidos/pedidos-api/internal/shared"
)

// Handler serves the request lifecycle JSON endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	rbac    rbac.Middleware
}

// NewHandler builds a Handler.
func NewHandler(logger *slog.Logger, service *Service, rbac rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, rbac: rbac}
}

// MountRoutes registers lifecycle routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/requests", h.create)
	r.Get("/requests/{id}", h.show)
	r.Post("/requests/{id}/items", h.addItem)
	r.Patch("/requests/{id}/items/{itemId}", h.updateItem)
	r.Delete("/requests/{id}/items/{itemId}", h.deleteItem)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(shared.RoleAdmin))
		r.Patch("/requests/{id}/items/{itemId}/review", h.reviewItem)
		r.Post("/requests/{id}/complete", h.complete)
		r.Post("/requests/{id}/reopen", h.reopen)
	})
}

type itemResponse struct {
	ID               int64      `json:"id"`
	RequestID        int64      `json:"requestId"`
	ProductID        int64      `json:"productId"`
	ProductName      string     `json:"productName"`
	Quantity         int        `json:"quantity"`
	Status           ItemStatus `json:"status"`
	Deadline         *time.Time `json:"deadline,omitempty"`
	AdminNotes       string     `json:"adminNotes,omitempty"`
	SuspensionReason string     `json:"suspensionReason,omitempty"`
}

type requestResponse struct {
	ID              int64          `json:"id"`
	RequesterID     int64          `json:"requesterId"`
	Status          Status         `json:"status"`
	Observations    string         `json:"observations,omitempty"`
	AdminNotes      string         `json:"adminNotes,omitempty"`
	CompletionNotes string         `json:"completionNotes,omitempty"`
	CompletedBy     *int64         `json:"completedBy,omitempty"`
	CompletedAt     *time.Time     `json:"completedAt,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	Items           []itemResponse `json:"items,omitempty"`
}

type completeRequest struct {
	Notes string `json:"notes"`
}

func toItemResponse(item Item) itemResponse {
	return itemResponse{
		ID:               item.ID,
		RequestID:        item.RequestID,
		ProductID:        item.ProductID,
		ProductName:      item.ProductName,
		Quantity:         item.Quantity,
		Status:           item.Status,
		Deadline:         item.Deadline,
		AdminNotes:       item.AdminNotes,
		SuspensionReason: item.SuspensionReason,
	}
}

func toRequestResponse(pr PurchaseRequest, items []Item) requestResponse {
	resp := requestResponse{
		ID:              pr.ID,
		RequesterID:     pr.RequesterID,
		Status:          pr.Status,
		Observations:    pr.Observations,
		AdminNotes:      pr.AdminNotes,
		CompletionNotes: pr.CompletionNotes,
		CompletedBy:     pr.CompletedBy,
		CompletedAt:     pr.CompletedAt,
		CreatedAt:       pr.CreatedAt,
	}
	for _, item := range items {
		resp.Items = append(resp.Items, toItemResponse(item))
	}
	return resp
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	actor, ok := h.actor(w, r)
	if !ok {
		return
	}
	var input CreateInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	pr, items, err := h.service.Create(r.Context(), actor, input)
	if err != nil {
		h.fail(w, "create request", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRequestResponse(pr, items))
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.scope(w, r)
	if !ok {
		return
	}
	pr, items, err := h.service.View(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "show request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRequestResponse(pr, items))
}

func (h *Handler) addItem(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.scope(w, r)
	if !ok {
		return
	}
	var input ItemInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	item, err := h.service.AddItem(r.Context(), actor, id, input)
	if err != nil {
		h.fail(w, "add item", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toItemResponse(item))
}

func (h *Handler) updateItem(w http.ResponseWriter, r *http.Request) {
	actor, id, itemID, ok := h.itemScope(w, r)
	if !ok {
		return
	}
	var input UpdateItemInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	item, err := h.service.UpdateItem(r.Context(), actor, id, itemID, input)
	if err != nil {
		h.fail(w, "update item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toItemResponse(item))
}

func (h *Handler) deleteItem(w http.ResponseWriter, r *http.Request) {
	actor, id, itemID, ok := h.itemScope(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteItem(r.Context(), actor, id, itemID); err != nil {
		h.fail(w, "delete item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) reviewItem(w http.ResponseWriter, r *http.Request) {
	actor, id, itemID, ok := h.itemScope(w, r)
	if !ok {
		return
	}
	var input ReviewInput
	if err := httpx.DecodeJSON(r, &input); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
		return
	}
	item, pr, err := h.service.ReviewItem(r.Context(), actor, id, itemID, input)
	if err != nil {
		h.fail(w, "review item", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"item":          toItemResponse(item),
		"requestStatus": pr.Status,
	})
}

func (h *Handler) complete(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.scope(w, r)
	if !ok {
		return
	}
	var input completeRequest
	if r.ContentLength != 0 {
		if err := httpx.DecodeJSON(r, &input); err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid JSON body")
			return
		}
	}
	pr, err := h.service.Complete(r.Context(), actor, id, input.Notes)
	if err != nil {
		h.fail(w, "complete request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRequestResponse(pr, nil))
}

func (h *Handler) reopen(w http.ResponseWriter, r *http.Request) {
	actor, id, ok := h.scope(w, r)
	if !ok {
		return
	}
	pr, err := h.service.Reopen(r.Context(), actor, id)
	if err != nil {
		h.fail(w, "reopen request", err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRequestResponse(pr, nil))
}

func (h *Handler) fail(w http.ResponseWriter, op string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (shared.Actor, bool) {
	actor, ok := shared.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
	}
	return actor, ok
}

func (h *Handler) scope(w http.ResponseWriter, r *http.Request) (shared.Actor, int64, bool) {
	actor, ok := h.actor(w, r)
	if !ok {
		return shared.Actor{}, 0, false
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid request id")
		return shared.Actor{}, 0, false
	}
	return actor, id, true
}

func (h *Handler) itemScope(w http.ResponseWriter, r *http.Request) (shared.Actor, int64, int64, bool) {
	actor, id, ok := h.scope(w, r)
	if !ok {
		return shared.Actor{}, 0, 0, false
	}
	itemID, err := strconv.ParseInt(chi.URLParam(r, "itemId"), 10, 64)
	if err != nil || itemID <= 0 {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid item id")
		return shared.Actor{}, 0, 0, false
	}
	return actor, id, itemID, true
}
