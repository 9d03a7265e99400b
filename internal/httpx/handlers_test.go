package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/cafehub/go-coffee-pos/internal/catalog"
	"github.com/cafehub/go-coffee-pos/internal/inventory"
	"github.com/cafehub/go-coffee-pos/internal/orders"
	"github.com/cafehub/go-coffee-pos/internal/stats"
)

type fakeEngine struct {
	orders map[uuid.UUID]*orders.Detail
	byReq  map[string]uuid.UUID
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{
		orders: map[uuid.UUID]*orders.Detail{},
		byReq:  map[string]uuid.UUID{},
	}
}

func (f *fakeEngine) Create(_ context.Context, req orders.CreateOrder) (*orders.Detail, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, err
	}
	if req.ClientRequestID != "" {
		if id, ok := f.byReq[req.ClientRequestID]; ok {
			return f.orders[id], true, nil
		}
	}
	d := &orders.Detail{
		ID:          uuid.New(),
		OrderDate:   time.Now(),
		Status:      orders.StatusReceived,
		TotalAmount: req.TotalAmount,
	}
	for _, it := range req.Items {
		d.Items = append(d.Items, orders.Item{
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			Price:       it.Price,
		})
	}
	f.orders[d.ID] = d
	if req.ClientRequestID != "" {
		f.byReq[req.ClientRequestID] = d.ID
	}
	return d, false, nil
}

func (f *fakeEngine) Transition(_ context.Context, id uuid.UUID, raw string) (*orders.Detail, error) {
	st, ok := orders.ParseStatus(raw)
	if !ok || st == orders.StatusPending {
		return nil, fmt.Errorf("%w: %q", orders.ErrInvalidStatus, raw)
	}
	d, okd := f.orders[id]
	if !okd {
		return nil, orders.ErrNotFound
	}
	if !orders.CanTransition(d.Status, st) {
		return nil, fmt.Errorf("%w: %s -> %s", orders.ErrInvalidTransition, d.Status, st)
	}
	d.Status = st
	return d, nil
}

func (f *fakeEngine) Get(_ context.Context, id uuid.UUID) (*orders.Detail, error) {
	d, ok := f.orders[id]
	if !ok {
		return nil, orders.ErrNotFound
	}
	return d, nil
}

func (f *fakeEngine) List(_ context.Context, filter orders.ListFilter) ([]orders.Detail, error) {
	out := []orders.Detail{}
	for _, d := range f.orders {
		if filter.Status != nil && d.Status != *filter.Status {
			continue
		}
		if filter.ExcludeFulfilled && d.Status == orders.StatusFulfilled {
			continue
		}
		out = append(out, *d)
	}
	return out, nil
}

type fakeLedger struct {
	records map[int64]*inventory.Record
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{records: map[int64]*inventory.Record{
		1: {ProductID: 1, ProductName: "Americano (ICE)", Stock: 10, Available: 8},
		2: {ProductID: 2, ProductName: "Cafe Latte", Stock: 3, Available: 3},
	}}
}

func (f *fakeLedger) List(context.Context) ([]inventory.Record, error) {
	out := []inventory.Record{}
	for _, r := range f.records {
		out = append(out, *r)
	}
	return out, nil
}

func (f *fakeLedger) Available(_ context.Context, productID int64) (int, error) {
	r, ok := f.records[productID]
	if !ok {
		return 0, inventory.ErrNotFound
	}
	return r.Available, nil
}

func (f *fakeLedger) Adjust(_ context.Context, productID int64, delta int) (*inventory.AdjustResult, error) {
	r, ok := f.records[productID]
	if !ok {
		return nil, inventory.ErrNotFound
	}
	r.Stock = inventory.ClampStock(r.Stock, delta)
	return &inventory.AdjustResult{ProductID: r.ProductID, ProductName: r.ProductName, Stock: r.Stock}, nil
}

type fakeCatalog struct {
	products map[int64]*catalog.Product
}

func (f *fakeCatalog) ListProducts(context.Context) ([]catalog.Product, error) {
	out := []catalog.Product{}
	for _, p := range f.products {
		out = append(out, *p)
	}
	return out, nil
}

func (f *fakeCatalog) GetProduct(_ context.Context, id int64) (*catalog.Product, error) {
	p, ok := f.products[id]
	if !ok {
		return nil, catalog.ErrNotFound
	}
	return p, nil
}

type fakeStats struct {
	summary stats.Summary
}

func (f *fakeStats) Summary(context.Context) (*stats.Summary, error) {
	s := f.summary
	return &s, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeEngine, *fakeLedger) {
	t.Helper()
	log := zap.NewNop()
	eng := newFakeEngine()
	led := newFakeLedger()
	cat := &fakeCatalog{products: map[int64]*catalog.Product{
		1: {ID: 1, Name: "Americano (ICE)", Price: decimal.NewFromInt(4000)},
		2: {ID: 2, Name: "Cafe Latte", Price: decimal.NewFromInt(5000)},
	}}
	st := &fakeStats{summary: stats.Summary{TotalQuantity: 4, ReceivedCount: 2}}

	router := NewRouter()
	(&OrdersHandler{Engine: eng, Log: log}).Register(router)
	(&InventoryHandler{Ledger: led, Log: log}).Register(router)
	(&CatalogHandler{Catalog: cat, Ledger: led, Log: log}).Register(router)
	(&StatsHandler{Stats: st, Ledger: led, Engine: eng, Log: log}).Register(router)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv, eng, led
}

func doJSON(t *testing.T, method, url string, body any) (*http.Response, map[string]json.RawMessage) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, url, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var env map[string]json.RawMessage
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return resp, env
}

func errCode(t *testing.T, env map[string]json.RawMessage) string {
	t.Helper()
	var e apiError
	require.Contains(t, env, "error")
	require.NoError(t, json.Unmarshal(env["error"], &e))
	return e.Code
}

func TestCreateOrderReturns201(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/orders", map[string]any{
		"clientRequestId": "req-1",
		"totalAmount":     9000,
		"items": []map[string]any{
			{"productId": 1, "productName": "Americano (ICE)", "quantity": 1, "price": 4000},
			{"productId": 2, "productName": "Cafe Latte", "quantity": 1, "price": 5000},
		},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var d orders.Detail
	require.NoError(t, json.Unmarshal(env["data"], &d))
	require.Equal(t, orders.StatusReceived, d.Status)
	require.Len(t, d.Items, 2)
	require.True(t, decimal.NewFromInt(9000).Equal(d.TotalAmount))
}

func TestCreateOrderReplayReturns200(t *testing.T) {
	srv, _, _ := newTestServer(t)

	body := map[string]any{
		"clientRequestId": "req-replay",
		"totalAmount":     4000,
		"items": []map[string]any{
			{"productId": 1, "quantity": 1, "price": 4000},
		},
	}
	first, firstEnv := doJSON(t, http.MethodPost, srv.URL+"/api/orders", body)
	require.Equal(t, http.StatusCreated, first.StatusCode)

	second, secondEnv := doJSON(t, http.MethodPost, srv.URL+"/api/orders", body)
	require.Equal(t, http.StatusOK, second.StatusCode)
	require.JSONEq(t, string(firstEnv["data"]), string(secondEnv["data"]))
}

func TestCreateOrderEmptyItemsRejected(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, env := doJSON(t, http.MethodPost, srv.URL+"/api/orders", map[string]any{
		"totalAmount": 4000,
		"items":       []map[string]any{},
	})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, CodeInvalidRequest, errCode(t, env))
}

func TestCreateOrderMalformedJSON(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/orders", "application/json", bytes.NewBufferString("{nope"))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetOrderUnknownID(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/orders/"+uuid.NewString(), nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, CodeNotFound, errCode(t, env))
}

func TestGetOrderMalformedID(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/orders/not-a-uuid", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, CodeNotFound, errCode(t, env))
}

func TestTransitionOrder(t *testing.T) {
	srv, eng, _ := newTestServer(t)

	d, _, err := eng.Create(context.Background(), orders.CreateOrder{
		TotalAmount: decimal.NewFromInt(4000),
		Items:       []orders.CreateItem{{ProductID: 1, Quantity: 1, Price: decimal.NewFromInt(4000)}},
	})
	require.NoError(t, err)

	resp, env := doJSON(t, http.MethodPatch, srv.URL+"/api/orders/"+d.ID.String()+"/status",
		map[string]string{"status": "IN_PROGRESS"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got orders.Detail
	require.NoError(t, json.Unmarshal(env["data"], &got))
	require.Equal(t, orders.StatusInProgress, got.Status)
}

func TestTransitionUnknownStatusRejected(t *testing.T) {
	srv, eng, _ := newTestServer(t)

	d, _, err := eng.Create(context.Background(), orders.CreateOrder{
		TotalAmount: decimal.NewFromInt(4000),
		Items:       []orders.CreateItem{{ProductID: 1, Quantity: 1, Price: decimal.NewFromInt(4000)}},
	})
	require.NoError(t, err)

	resp, env := doJSON(t, http.MethodPatch, srv.URL+"/api/orders/"+d.ID.String()+"/status",
		map[string]string{"status": "shipped"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, CodeInvalidRequest, errCode(t, env))
}

func TestTransitionMissingStatus(t *testing.T) {
	srv, eng, _ := newTestServer(t)

	d, _, err := eng.Create(context.Background(), orders.CreateOrder{
		TotalAmount: decimal.NewFromInt(4000),
		Items:       []orders.CreateItem{{ProductID: 1, Quantity: 1, Price: decimal.NewFromInt(4000)}},
	})
	require.NoError(t, err)

	resp, env := doJSON(t, http.MethodPatch, srv.URL+"/api/orders/"+d.ID.String()+"/status",
		map[string]string{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, CodeInvalidRequest, errCode(t, env))
}

func TestListOrdersUnknownStatusFilter(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/orders?status=bogus", nil)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, CodeInvalidRequest, errCode(t, env))
}

func TestListOrdersExcludeFulfilled(t *testing.T) {
	srv, eng, _ := newTestServer(t)

	a, _, err := eng.Create(context.Background(), orders.CreateOrder{
		TotalAmount: decimal.NewFromInt(4000),
		Items:       []orders.CreateItem{{ProductID: 1, Quantity: 1, Price: decimal.NewFromInt(4000)}},
	})
	require.NoError(t, err)
	_, _, err = eng.Create(context.Background(), orders.CreateOrder{
		TotalAmount: decimal.NewFromInt(5000),
		Items:       []orders.CreateItem{{ProductID: 2, Quantity: 1, Price: decimal.NewFromInt(5000)}},
	})
	require.NoError(t, err)
	_, err = eng.Transition(context.Background(), a.ID, string(orders.StatusFulfilled))
	require.NoError(t, err)

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/orders?excludeFulfilled=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var list []orders.Detail
	require.NoError(t, json.Unmarshal(env["data"], &list))
	require.Len(t, list, 1)
	require.NotEqual(t, a.ID, list[0].ID)
}

func TestAdjustInventory(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, env := doJSON(t, http.MethodPatch, srv.URL+"/api/inventory/2",
		map[string]int{"change": -1})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res inventory.AdjustResult
	require.NoError(t, json.Unmarshal(env["data"], &res))
	require.Equal(t, 2, res.Stock)
}

func TestAdjustInventoryClampsAtZero(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, env := doJSON(t, http.MethodPatch, srv.URL+"/api/inventory/2",
		map[string]int{"change": -99})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var res inventory.AdjustResult
	require.NoError(t, json.Unmarshal(env["data"], &res))
	require.Equal(t, 0, res.Stock)
}

func TestAdjustInventoryMissingChange(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, env := doJSON(t, http.MethodPatch, srv.URL+"/api/inventory/1", map[string]any{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Equal(t, CodeInvalidRequest, errCode(t, env))
}

func TestAdjustInventoryUnknownProduct(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, env := doJSON(t, http.MethodPatch, srv.URL+"/api/inventory/404",
		map[string]int{"change": 1})
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, CodeNotFound, errCode(t, env))
}

func TestListMenusCarriesAvailability(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/menus", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var menus []struct {
		ID        int64 `json:"id"`
		Available int   `json:"available"`
	}
	require.NoError(t, json.Unmarshal(env["data"], &menus))
	require.Len(t, menus, 2)
	byID := map[int64]int{}
	for _, m := range menus {
		byID[m.ID] = m.Available
	}
	require.Equal(t, 8, byID[1])
	require.Equal(t, 3, byID[2])
}

func TestGetMenuUnknownProduct(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/menus/404", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.Equal(t, CodeNotFound, errCode(t, env))
}

func TestDashboardSummary(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/stats/dashboard", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var s stats.Summary
	require.NoError(t, json.Unmarshal(env["data"], &s))
	require.Equal(t, 4, s.TotalQuantity)
	require.Equal(t, 2, s.ReceivedCount)
}

func TestAdminPartialBundlesSections(t *testing.T) {
	srv, eng, _ := newTestServer(t)

	a, _, err := eng.Create(context.Background(), orders.CreateOrder{
		TotalAmount: decimal.NewFromInt(4000),
		Items:       []orders.CreateItem{{ProductID: 1, Quantity: 1, Price: decimal.NewFromInt(4000)}},
	})
	require.NoError(t, err)
	_, err = eng.Transition(context.Background(), a.ID, string(orders.StatusFulfilled))
	require.NoError(t, err)
	_, _, err = eng.Create(context.Background(), orders.CreateOrder{
		TotalAmount: decimal.NewFromInt(5000),
		Items:       []orders.CreateItem{{ProductID: 2, Quantity: 1, Price: decimal.NewFromInt(5000)}},
	})
	require.NoError(t, err)

	resp, env := doJSON(t, http.MethodGet, srv.URL+"/api/admin/partial", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var partial struct {
		Summary   stats.Summary      `json:"summary"`
		Inventory []inventory.Record `json:"inventory"`
		Orders    []orders.Detail    `json:"orders"`
	}
	require.NoError(t, json.Unmarshal(env["data"], &partial))
	require.Len(t, partial.Inventory, 2)
	require.Len(t, partial.Orders, 1)
	require.Equal(t, orders.StatusReceived, partial.Orders[0].Status)
}

func TestHealthz(t *testing.T) {
	srv, _, _ := newTestServer(t)

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
