package httpx

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/cafehub/go-coffee-pos/internal/catalog"
	"github.com/cafehub/go-coffee-pos/internal/inventory"
)

type catalogReader interface {
	ListProducts(ctx context.Context) ([]catalog.Product, error)
	GetProduct(ctx context.Context, id int64) (*catalog.Product, error)
}

// menuEntry decorates a catalog product with the quantity still orderable,
// so clients can cap cart additions without a second round-trip.
type menuEntry struct {
	catalog.Product
	Available int `json:"available"`
}

type CatalogHandler struct {
	Catalog catalogReader
	Ledger  inventoryLedger
	Log     *zap.Logger
}

func (h *CatalogHandler) Register(r *chi.Mux) {
	r.Get("/api/menus", h.listMenus)
	r.Get("/api/menus/{id}", h.getMenu)
}

func (h *CatalogHandler) listMenus(w http.ResponseWriter, r *http.Request) {
	products, err := h.Catalog.ListProducts(r.Context())
	if err != nil {
		respondError(w, h.Log, err)
		return
	}

	available := map[int64]int{}
	recs, err := h.Ledger.List(r.Context())
	if err != nil {
		respondError(w, h.Log, err)
		return
	}
	for _, rec := range recs {
		available[rec.ProductID] = rec.Available
	}

	out := make([]menuEntry, 0, len(products))
	for _, p := range products {
		out = append(out, menuEntry{Product: p, Available: available[p.ID]})
	}
	writeData(w, http.StatusOK, out)
}

func (h *CatalogHandler) getMenu(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, CodeNotFound, "product not found")
		return
	}
	p, err := h.Catalog.GetProduct(r.Context(), id)
	if err != nil {
		respondError(w, h.Log, err)
		return
	}

	avail, err := h.Ledger.Available(r.Context(), id)
	if err != nil && !errors.Is(err, inventory.ErrNotFound) {
		respondError(w, h.Log, err)
		return
	}
	writeData(w, http.StatusOK, menuEntry{Product: *p, Available: avail})
}
