package httpx

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/cafehub/go-coffee-pos/internal/orders"
)

type orderEngine interface {
	Create(ctx context.Context, req orders.CreateOrder) (*orders.Detail, bool, error)
	Transition(ctx context.Context, id uuid.UUID, status string) (*orders.Detail, error)
	Get(ctx context.Context, id uuid.UUID) (*orders.Detail, error)
	List(ctx context.Context, f orders.ListFilter) ([]orders.Detail, error)
}

type OrdersHandler struct {
	Engine orderEngine
	Log    *zap.Logger
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/api/orders", h.createOrder)
	r.Get("/api/orders", h.listOrders)
	r.Get("/api/orders/{id}", h.getOrder)
	r.Patch("/api/orders/{id}/status", h.transitionOrder)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	var req orders.CreateOrder
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "invalid json")
		return
	}

	d, replayed, err := h.Engine.Create(r.Context(), req)
	if err != nil {
		respondError(w, h.Log, err)
		return
	}
	code := http.StatusCreated
	if replayed {
		code = http.StatusOK
	}
	writeData(w, code, d)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	var f orders.ListFilter
	if raw := r.URL.Query().Get("status"); raw != "" {
		st, ok := orders.ParseStatus(raw)
		if !ok {
			writeError(w, http.StatusBadRequest, CodeInvalidRequest, "unknown status filter")
			return
		}
		f.Status = &st
	}
	if r.URL.Query().Get("excludeFulfilled") == "true" {
		f.ExcludeFulfilled = true
	}

	list, err := h.Engine.List(r.Context(), f)
	if err != nil {
		respondError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "order not found")
		return
	}
	d, err := h.Engine.Get(r.Context(), id)
	if err != nil {
		respondError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusOK, d)
}

func (h *OrdersHandler) transitionOrder(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "order not found")
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Status == "" {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "status is required")
		return
	}

	d, err := h.Engine.Transition(r.Context(), id, body.Status)
	if err != nil {
		respondError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusOK, d)
}
