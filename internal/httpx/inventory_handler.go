package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cafehub/go-coffee-pos/internal/inventory"
)

type inventoryLedger interface {
	List(ctx context.Context) ([]inventory.Record, error)
	Available(ctx context.Context, productID int64) (int, error)
	Adjust(ctx context.Context, productID int64, delta int) (*inventory.AdjustResult, error)
}

type InventoryHandler struct {
	Ledger inventoryLedger
	Log    *zap.Logger
}

func (h *InventoryHandler) Register(r *chi.Mux) {
	r.Get("/api/inventory", h.listInventory)
	r.Patch("/api/inventory/{id}", h.adjustInventory)
}

func (h *InventoryHandler) listInventory(w http.ResponseWriter, r *http.Request) {
	recs, err := h.Ledger.List(r.Context())
	if err != nil {
		respondError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusOK, recs)
}

func (h *InventoryHandler) adjustInventory(w http.ResponseWriter, r *http.Request) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "inventory record not found")
		return
	}

	var body struct {
		Change *int `json:"change"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Change == nil {
		writeError(w, http.StatusBadRequest, CodeInvalidRequest, "change is required")
		return
	}

	res, err := h.Ledger.Adjust(r.Context(), productID, *body.Change)
	if err != nil {
		respondError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusOK, res)
}
