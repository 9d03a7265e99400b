package httpx

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cafehub/go-coffee-pos/internal/inventory"
	"github.com/cafehub/go-coffee-pos/internal/orders"
	"github.com/cafehub/go-coffee-pos/internal/stats"
)

type summarizer interface {
	Summary(ctx context.Context) (*stats.Summary, error)
}

type StatsHandler struct {
	Stats  summarizer
	Ledger inventoryLedger
	Engine orderEngine
	Log    *zap.Logger
}

func (h *StatsHandler) Register(r *chi.Mux) {
	r.Get("/api/stats/dashboard", h.dashboard)
	r.Get("/api/admin/partial", h.adminPartial)
}

func (h *StatsHandler) dashboard(w http.ResponseWriter, r *http.Request) {
	s, err := h.Stats.Summary(r.Context())
	if err != nil {
		respondError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusOK, s)
}

// adminPartial bundles the counters, the inventory ledger and the open
// orders into one payload, so the admin screen can refresh its numbers
// without reloading the whole page.
func (h *StatsHandler) adminPartial(w http.ResponseWriter, r *http.Request) {
	summary, err := h.Stats.Summary(r.Context())
	if err != nil {
		respondError(w, h.Log, err)
		return
	}
	inv, err := h.Ledger.List(r.Context())
	if err != nil {
		respondError(w, h.Log, err)
		return
	}
	open, err := h.Engine.List(r.Context(), orders.ListFilter{ExcludeFulfilled: true})
	if err != nil {
		respondError(w, h.Log, err)
		return
	}

	writeData(w, http.StatusOK, struct {
		Summary   *stats.Summary     `json:"summary"`
		Inventory []inventory.Record `json:"inventory"`
		Orders    []orders.Detail    `json:"orders"`
	}{summary, inv, open})
}
