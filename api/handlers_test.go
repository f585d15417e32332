/*
handlers_test.go - HTTP tests for the API handlers

Tests for:
- Container creation, validation and not-found mapping
- Transfer, undo and remove through the log endpoints
- Catalog, consistency, health and metrics endpoints
*/
package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/spirits-ledger/api"
	"github.com/warp/spirits-ledger/catalog"
	"github.com/warp/spirits-ledger/events"
	"github.com/warp/spirits-ledger/inventory"
	"github.com/warp/spirits-ledger/inventory/store"
	"github.com/warp/spirits-ledger/metrics"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type fixture struct {
	store   *store.Memory
	svc     *inventory.Service
	handler *api.Handler
	router  http.Handler
	metrics *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cat, err := catalog.Default()
	require.NoError(t, err)

	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	n := 0
	m := metrics.New()
	rec := events.NewRecorder(100)
	mem := store.NewMemory()
	opts := append(cat.Options(),
		inventory.WithClock(func() time.Time { return now }),
		inventory.WithIDs(func() string { n++; return fmt.Sprintf("id-%03d", n) }),
		inventory.WithRecorder(m),
		inventory.WithNotifier(rec),
		inventory.WithLogger(zerolog.Nop()),
	)
	svc := inventory.NewService(mem, opts...)

	h := api.NewHandler(svc, cat)
	h.Events = rec
	h.Reset = mem.Reset
	h.Scheduler = api.NewConsistencyScheduler(svc, zerolog.Nop())
	h.Scheduler.Observer = m

	return &fixture{
		store:   mem,
		svc:     svc,
		handler: h,
		router:  api.NewRouter(h, api.RouterOptions{Metrics: m.Handler()}),
		metrics: m,
	}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (f *fixture) createTankAndBarrel(t *testing.T) {
	t.Helper()
	rec := f.do(t, http.MethodPost, "/api/containers", map[string]any{
		"id": "tank", "name": "Tank 1", "type": "tank", "tare_weight_lbs": "500",
		"fill": map[string]any{
			"quantity":     map[string]any{"unit": "proof_gallons", "value": 80},
			"proof":        100,
			"product_type": "Bourbon",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	rec = f.do(t, http.MethodPost, "/api/containers", map[string]any{
		"id": "barrel", "name": "Barrel 1", "type": "barrel", "tare_weight_lbs": 120,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

// =============================================================================
// CONTAINERS
// =============================================================================

func TestCreateContainer_Filled(t *testing.T) {
	f := newFixture(t)

	// GIVEN: a barrel filled with 20 wine gallons at 100 proof
	rec := f.do(t, http.MethodPost, "/api/containers", map[string]any{
		"id": "b1", "name": "B-1", "type": "barrel", "tare_weight_lbs": "120",
		"fill": map[string]any{
			"quantity":     map[string]any{"unit": "wine_gallons", "value": "20"},
			"proof":        "100",
			"product_type": "Bourbon",
			"fill_date":    "2025-02-01",
		},
	})

	// THEN: created with derived weights and one log entry
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decodeBody[api.ResultDTO](t, rec)
	require.Len(t, res.Containers, 1)
	c := res.Containers[0]
	assert.Equal(t, "Barrel", c.TypeLabel)
	assert.Equal(t, "filled", c.Status)
	assert.True(t, c.Fill.NetWeightLbs.Equal(d("149.08")))
	assert.True(t, c.Fill.GrossWeightLbs.Equal(d("269.08")))
	assert.True(t, c.Fill.ProofGallons.Equal(d("20")))
	assert.Equal(t, "2025-02-01", c.Fill.FillDate)
	assert.Equal(t, "storage", c.Fill.Account)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "CREATE_FILLED_CONTAINER", res.Entries[0].Type)
	assert.False(t, res.Entries[0].Undoable)

	// WHEN: read back
	rec = f.do(t, http.MethodGet, "/api/containers/b1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	got := decodeBody[api.ContainerDTO](t, rec)
	assert.Equal(t, "B-1", got.Name)
	assert.Equal(t, int64(1), got.Version)
}

func TestCreateContainer_ValidationErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		body  any
		field string
	}{
		{
			name: "unknown unit",
			body: map[string]any{
				"name": "B", "type": "barrel", "tare_weight_lbs": 100,
				"fill": map[string]any{"quantity": map[string]any{"unit": "liters", "value": 1}, "proof": 80, "product_type": "Gin"},
			},
			field: "quantity",
		},
		{
			name: "bad fill date",
			body: map[string]any{
				"name": "B", "type": "barrel", "tare_weight_lbs": 100,
				"fill": map[string]any{"quantity": map[string]any{"unit": "wg", "value": 1}, "proof": 80, "product_type": "Gin", "fill_date": "03/10/2025"},
			},
			field: "fill_date",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, http.MethodPost, "/api/containers", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			resp := decodeBody[api.ErrorResponse](t, rec)
			assert.Equal(t, tt.field, resp.Field)
			assert.NotEmpty(t, resp.Error)
		})
	}

	rec := f.do(t, http.MethodPost, "/api/containers", map[string]any{"name": "", "type": "barrel", "tare_weight_lbs": 100})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "domain validation maps to 400")

	req := httptest.NewRequest(http.MethodPost, "/api/containers", bytes.NewBufferString("{not json"))
	out := httptest.NewRecorder()
	f.router.ServeHTTP(out, req)
	assert.Equal(t, http.StatusBadRequest, out.Code)
	assert.Equal(t, "Invalid request body", decodeBody[api.ErrorResponse](t, out).Error)
}

func TestGetContainer_NotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/containers/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/containers/missing/adjust", map[string]any{
		"quantity": map[string]any{"unit": "net_lbs", "value": 1},
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// TRANSFERS, UNDO, REMOVE
// =============================================================================

func TestTransferAndUndo(t *testing.T) {
	f := newFixture(t)
	f.createTankAndBarrel(t)

	// GIVEN: 30 proof gallons moved from the tank to the barrel
	rec := f.do(t, http.MethodPost, "/api/transfers", map[string]any{
		"source_id": "tank", "destination_id": "barrel",
		"quantity": map[string]any{"unit": "pg", "value": 30},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[api.ResultDTO](t, rec)
	require.Len(t, res.Entries, 2)
	assert.Equal(t, "TRANSFER_OUT", res.Entries[0].Type)
	assert.True(t, res.Entries[0].NetWeightLbsChange.Equal(d("-223.62")))
	in := res.Entries[1]
	assert.Equal(t, "TRANSFER_IN", in.Type)
	assert.Equal(t, "Tank 1", in.SourceContainerName)

	// WHEN: eligibility is queried
	rec = f.do(t, http.MethodGet, "/api/entries/"+in.ID+"/eligibility", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	el := decodeBody[api.EligibilityDTO](t, rec)
	assert.True(t, el.Undoable)
	assert.Equal(t, "hard", el.Mode)
	assert.Equal(t, "2025-04-09T09:00:00Z", el.ExpiresAt)

	// WHEN: the TRANSFER_IN is undone
	rec = f.do(t, http.MethodPost, "/api/entries/"+in.ID+"/undo", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	undone := decodeBody[api.ResultDTO](t, rec)
	assert.Equal(t, []string{in.ID}, undone.Deleted)

	// THEN: the barrel is empty again and the entry is gone
	rec = f.do(t, http.MethodGet, "/api/containers/barrel", nil)
	assert.Equal(t, "empty", decodeBody[api.ContainerDTO](t, rec).Status)
	rec = f.do(t, http.MethodGet, "/api/entries/"+in.ID, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/containers/barrel/entries", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeBody[[]api.EntryDTO](t, rec)
	require.Len(t, entries, 1)
	assert.Equal(t, "CREATE_EMPTY_CONTAINER", entries[0].Type)
}

func TestUndo_IneligibleIs422(t *testing.T) {
	f := newFixture(t)
	f.createTankAndBarrel(t)

	rec := f.do(t, http.MethodGet, "/api/entries?type=CREATE_FILLED_CONTAINER", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decodeBody[[]api.EntryDTO](t, rec)
	require.Len(t, entries, 1)

	rec = f.do(t, http.MethodPost, "/api/entries/"+entries[0].ID+"/undo", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "CREATE_FILLED_CONTAINER entries cannot be undone", decodeBody[api.ErrorResponse](t, rec).Error)
}

func TestRemoveEntry_ShowsUpInConsistency(t *testing.T) {
	f := newFixture(t)
	f.createTankAndBarrel(t)

	rec := f.do(t, http.MethodPost, "/api/containers/tank/adjust", map[string]any{
		"quantity": map[string]any{"unit": "net_lbs", "value": "50"},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	sample := decodeBody[api.ResultDTO](t, rec).Entries[0]

	// GIVEN: a consistent ledger
	rec = f.do(t, http.MethodGet, "/api/consistency", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decodeBody[api.ConsistencyDTO](t, rec).Mismatches)

	// WHEN: the sample entry is removed without touching the tank
	rec = f.do(t, http.MethodDelete, "/api/entries/"+sample.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{sample.ID}, decodeBody[api.ResultDTO](t, rec).Deleted)

	// THEN: the tank drifts from its log by the removed amount
	rec = f.do(t, http.MethodGet, "/api/consistency", nil)
	report := decodeBody[api.ConsistencyDTO](t, rec)
	assert.Equal(t, 1, report.Mismatches)
	require.Len(t, report.Discrepancies, 1)
	assert.Equal(t, "tank", report.Discrepancies[0].ContainerID)
	assert.True(t, report.Discrepancies[0].NetWeightDrift.Equal(d("-50")))

	rec = f.do(t, http.MethodGet, "/api/consistency/last", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	last := decodeBody[api.ConsistencyDTO](t, rec)
	assert.Equal(t, 1, last.Mismatches)
	assert.Empty(t, last.NextRunAt)
}

func TestLastConsistency_ReportsNextRunWhileScheduled(t *testing.T) {
	// GIVEN: a running hourly scheduler
	// WHEN: a check runs and the last report is read
	// THEN: the report carries the next scheduled run, about an hour out
	f := newFixture(t)
	f.handler.Scheduler.CheckInterval = time.Hour
	f.handler.Scheduler.Start()
	defer f.handler.Scheduler.Stop()

	rec := f.do(t, http.MethodGet, "/api/consistency", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/consistency/last", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	last := decodeBody[api.ConsistencyDTO](t, rec)
	require.NotEmpty(t, last.NextRunAt)

	next, err := time.Parse(time.RFC3339, last.NextRunAt)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Hour), next, 5*time.Minute)
}

func TestListEntries_Filters(t *testing.T) {
	f := newFixture(t)
	f.createTankAndBarrel(t)

	rec := f.do(t, http.MethodGet, "/api/entries?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]api.EntryDTO](t, rec), 1)

	rec = f.do(t, http.MethodGet, "/api/entries?container_id=tank", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]api.EntryDTO](t, rec), 1)

	rec = f.do(t, http.MethodGet, "/api/entries?type=NOPE", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "type", decodeBody[api.ErrorResponse](t, rec).Field)

	rec = f.do(t, http.MethodGet, "/api/entries?limit=-1", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// =============================================================================
// OPERATIONS
// =============================================================================

func TestProofDownAndBottle(t *testing.T) {
	f := newFixture(t)
	f.createTankAndBarrel(t)

	rec := f.do(t, http.MethodPost, "/api/containers/tank/proof-down", map[string]any{"target_proof": 80})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeBody[api.ResultDTO](t, rec)
	require.Len(t, res.Entries, 1)
	assert.Equal(t, "PROOF_DOWN", res.Entries[0].Type)
	assert.True(t, res.Entries[0].PriorProof.Decimal.Equal(d("100")))
	assert.True(t, res.Containers[0].Fill.WineGallons.Equal(d("100")))

	rec = f.do(t, http.MethodPost, "/api/containers/tank/bottle", map[string]any{
		"bottles": 12, "bottle_size_ml": 700,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "700 mL is not in the catalog")

	rec = f.do(t, http.MethodPost, "/api/containers/tank/bottle", map[string]any{
		"bottles": 12, "bottle_size_ml": 750, "remainder": "keep",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "BOTTLE_PARTIAL", decodeBody[api.ResultDTO](t, rec).Entries[0].Type)
}

func TestAccountAndDelete(t *testing.T) {
	f := newFixture(t)
	f.createTankAndBarrel(t)

	rec := f.do(t, http.MethodPost, "/api/containers/tank/account", map[string]any{"account": "processing"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "processing", decodeBody[api.ResultDTO](t, rec).Containers[0].Fill.Account)

	rec = f.do(t, http.MethodDelete, "/api/containers/barrel", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/containers", nil)
	assert.Len(t, decodeBody[[]api.ContainerDTO](t, rec), 1)
	rec = f.do(t, http.MethodGet, "/api/containers?include_retired=true", nil)
	assert.Len(t, decodeBody[[]api.ContainerDTO](t, rec), 2)
}

func TestProducts(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/admin/seed", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 9, decodeBody[map[string]int](t, rec)["created"])

	rec = f.do(t, http.MethodPost, "/api/products", map[string]any{"name": "gin"})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "names are unique ignoring case")

	rec = f.do(t, http.MethodPost, "/api/products", map[string]any{"name": "Aquavit", "description": "caraway"})
	require.Equal(t, http.StatusCreated, rec.Code)
	p := decodeBody[api.ProductDTO](t, rec)

	rec = f.do(t, http.MethodPut, "/api/products/"+p.ID, map[string]any{"name": "Akvavit"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Akvavit", decodeBody[api.ProductDTO](t, rec).Name)

	rec = f.do(t, http.MethodDelete, "/api/products/"+p.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "DELETE_PRODUCT", decodeBody[api.ResultDTO](t, rec).Entries[0].Type)

	rec = f.do(t, http.MethodGet, "/api/products", nil)
	assert.Len(t, decodeBody[[]api.ProductDTO](t, rec), 9)
}

// =============================================================================
// ADMIN AND INFRASTRUCTURE
// =============================================================================

func TestCatalogEndpoint(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/api/catalog", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	cat := decodeBody[api.CatalogDTO](t, rec)

	caps := map[string]decimal.Decimal{}
	for _, ct := range cat.ContainerTypes {
		caps[ct.Type] = ct.CapacityGallons
	}
	assert.True(t, caps["barrel"].Equal(d("53")))
	assert.Contains(t, cat.BottleSizesML, 750)
	assert.Contains(t, cat.EntryTypes, "UNDO_REVERSAL")
	assert.Equal(t, "hard", cat.UndoMode)
}

func TestEventsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.createTankAndBarrel(t)

	rec := f.do(t, http.MethodGet, "/api/events", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var evs []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &evs))
	require.NotEmpty(t, evs)
	assert.Equal(t, "containers", evs[0]["collection"])
}

func TestHealthAndMetrics(t *testing.T) {
	f := newFixture(t)
	f.createTankAndBarrel(t)

	rec := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	rec = f.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `spirits_operations_total{op="create_container",outcome="ok"} 2`)
}

func TestReadyz_StoreDown(t *testing.T) {
	f := newFixture(t)
	router := api.NewRouter(f.handler, api.RouterOptions{
		Ready: func(context.Context) error { return fmt.Errorf("disk gone") },
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "metrics are only mounted when configured")
}

func TestImportContainers_ReportsRowsAndCommitsTheRest(t *testing.T) {
	f := newFixture(t)

	// GIVEN: four rows, one with a bad unit and one reusing a name
	rec := f.do(t, http.MethodPost, "/api/containers/import", map[string]any{
		"containers": []map[string]any{
			{"name": "B-1", "type": "barrel", "tare_weight_lbs": 120,
				"fill": map[string]any{"quantity": map[string]any{"unit": "wg", "value": 50}, "proof": 125, "product_type": "Bourbon"}},
			{"name": "B-2", "type": "barrel", "tare_weight_lbs": 120,
				"fill": map[string]any{"quantity": map[string]any{"unit": "cups", "value": 50}, "proof": 125, "product_type": "Bourbon"}},
			{"name": "b-1", "type": "barrel", "tare_weight_lbs": 120},
			{"name": "Tote 9", "type": "tote", "tare_weight_lbs": 150},
		},
	})

	// THEN: valid rows land, bad rows are reported by their request position
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decodeBody[api.ImportResultDTO](t, rec)
	assert.Len(t, res.Created, 2)
	require.Len(t, res.Errors, 2)
	assert.Equal(t, 2, res.Errors[0].Row)
	assert.Equal(t, 3, res.Errors[1].Row)
	assert.Equal(t, "CREATE_BULK_CONTAINERS", res.Entries[len(res.Entries)-1].Type)

	// WHEN: nothing is valid
	rec = f.do(t, http.MethodPost, "/api/containers/import", map[string]any{
		"containers": []map[string]any{{"name": "B-1", "type": "barrel", "tare_weight_lbs": 120}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, decodeBody[api.ImportResultDTO](t, rec).Errors, 1)
}
