/*
scenarios.go - Demo scenario loaders and default seeding

PURPOSE:

	Provides pre-built scenarios that populate the ledger with realistic
	cellar data for testing and demos. Every scenario goes through the
	inventory service, so the log it leaves behind is the same one real
	operations would write.

AVAILABLE SCENARIOS:

	warehouse:       Barrels, a tank and an empty tote in storage
	bottling-day:    A tote of gin, partly bottled
	production-run:  Fermentation, distillation into a receiver, proofing down

HOW SCENARIOS WORK:
 1. Reset the store (when a reset function is configured)
 2. Seed the catalog's default products
 3. Run the scenario's operations

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "warehouse"}

NOTE:

	Scenarios reset the store. Only use in development/demo environments.

SEE ALSO:
  - catalog/default.yaml: default products
*/
package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/warp/spirits-ledger/catalog"
	"github.com/warp/spirits-ledger/gauge"
	"github.com/warp/spirits-ledger/inventory"
)

// ScenarioDTO describes a loadable demo data set.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	load func(ctx context.Context, svc *inventory.Service) error
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "warehouse",
			Name:        "Warehouse",
			Description: "Two filled barrels, a vodka tank and an empty tote in storage",
		},
		load: loadWarehouseScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "bottling-day",
			Name:        "Bottling Day",
			Description: "A tote of gin with 120 bottles already drawn off",
		},
		load: loadBottlingDayScenario,
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "production-run",
			Name:        "Production Run",
			Description: "Fermentation, a distillation run into a receiver, then proofing down",
		},
		load: loadProductionRunScenario,
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, _ *http.Request) {
	out := make([]ScenarioDTO, 0, len(scenarios))
	for _, s := range scenarios {
		out = append(out, s.ScenarioDTO)
	}
	writeJSON(w, http.StatusOK, out)
}

// LoadScenario resets the store and loads a predefined scenario.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decode(w, r, &req) {
		return
	}
	var chosen *scenario
	for i := range scenarios {
		if scenarios[i].ID == req.ScenarioID {
			chosen = &scenarios[i]
		}
	}
	if chosen == nil {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	ctx := r.Context()
	if h.Reset != nil {
		if err := h.Reset(ctx); err != nil {
			writeError(w, http.StatusInternalServerError, "Failed to reset store", err)
			return
		}
	}
	if _, err := SeedDefaults(ctx, h.Service, h.Catalog, h.Log); err != nil {
		h.writeServiceError(w, err)
		return
	}
	if err := chosen.load(ctx, h.Service); err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("Failed to load scenario: %v", err), err)
		return
	}

	h.Log.Info().Str("scenario", chosen.ID).Msg("scenario loaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "loaded", "scenario": chosen.ID})
}

// SeedDefaults creates the catalog's default products when the ledger has
// none. A nil catalog seeds nothing.
func SeedDefaults(ctx context.Context, svc *inventory.Service, cat *catalog.Catalog, log zerolog.Logger) (int, error) {
	if cat == nil {
		return 0, nil
	}
	n, err := svc.SeedProducts(ctx, cat.DefaultProducts())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Info().Int("products", n).Msg("seeded default products")
	}
	return n, nil
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func filled(id, name string, t inventory.ContainerType, tare string, q gauge.Quantity, proof, product string) inventory.CreateContainerRequest {
	return inventory.CreateContainerRequest{
		ID:            inventory.ContainerID(id),
		Name:          name,
		Type:          t,
		TareWeightLbs: dec(tare),
		Fill: &inventory.FillSpec{
			Quantity:    q,
			Strength:    gauge.AtProof(dec(proof)),
			ProductType: product,
		},
	}
}

func empty(id, name string, t inventory.ContainerType, tare string) inventory.CreateContainerRequest {
	return inventory.CreateContainerRequest{
		ID:            inventory.ContainerID(id),
		Name:          name,
		Type:          t,
		TareWeightLbs: dec(tare),
	}
}

func loadWarehouseScenario(ctx context.Context, svc *inventory.Service) error {
	_, err := svc.ImportContainers(ctx, []inventory.CreateContainerRequest{
		filled("b-101", "B-101", inventory.TypeBarrel, "120", gauge.WineGallons(dec("50")), "125", "Bourbon"),
		filled("b-102", "B-102", inventory.TypeBarrel, "118", gauge.GrossWeight(dec("480")), "118", "Rye Whiskey"),
		filled("t-1", "Tank 1", inventory.TypeTank, "900", gauge.ProofGallons(dec("600")), "190", "Vodka"),
		empty("tote-1", "Tote 1", inventory.TypeTote, "150"),
	})
	return err
}

func loadBottlingDayScenario(ctx context.Context, svc *inventory.Service) error {
	if _, err := svc.CreateContainer(ctx,
		filled("tote-gin", "Gin Tote", inventory.TypeTote, "150", gauge.WineGallons(dec("100")), "80", "Gin")); err != nil {
		return err
	}
	_, err := svc.Bottle(ctx, inventory.BottleRequest{
		ContainerID:  "tote-gin",
		Bottles:      120,
		BottleSizeML: 750,
		Remainder:    inventory.RemainderKeep,
	})
	return err
}

func loadProductionRunScenario(ctx context.Context, svc *inventory.Service) error {
	if _, err := svc.ImportContainers(ctx, []inventory.CreateContainerRequest{
		filled("wash", "Wash Tank", inventory.TypeTank, "900", gauge.ProofGallons(dec("120")), "16", "Bourbon"),
		empty("receiver", "Receiver", inventory.TypeTote, "150"),
	}); err != nil {
		return err
	}
	batch, err := svc.RecordFermentation(ctx, inventory.FermentationRequest{
		Name:               "Mash 12",
		StartVolumeGallons: decimal.NewNullDecimal(dec("750")),
		OriginalGravity:    decimal.NewNullDecimal(dec("1.065")),
		FinalGravity:       decimal.NewNullDecimal(dec("0.998")),
		Ingredients:        "corn 70%, rye 18%, malted barley 12%",
	})
	if err != nil {
		return err
	}
	if _, err := svc.RecordDistillation(ctx, inventory.DistillationRequest{
		Name:          "Spirit Run 12",
		ProductType:   "Bourbon",
		SourceBatchID: batch.ID,
		Charge:        &inventory.ChargeSpec{ContainerID: "wash", Quantity: gauge.ProofGallons(dec("100"))},
		Yield:         gauge.WineGallons(dec("60")),
		YieldStrength: gauge.AtProof(dec("140")),
		ReceiverID:    "receiver",
	}); err != nil {
		return err
	}
	_, err = svc.ProofDown(ctx, inventory.ProofDownRequest{ContainerID: "receiver", TargetProof: dec("125")})
	return err
}
