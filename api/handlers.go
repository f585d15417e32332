/*
handlers.go - HTTP API handlers for the spirits ledger

PURPOSE:
  Exposes the inventory service via REST API. Handles HTTP request/response
  and JSON serialization, and delegates every rule to the inventory package.

ENDPOINTS:
  Containers:
    GET    /api/containers                   List live containers (?status=, ?include_retired=true)
    POST   /api/containers                   Create empty or filled container
    POST   /api/containers/import            Bulk create
    GET    /api/containers/{id}              Get container
    PATCH  /api/containers/{id}              Edit name/type/tare
    DELETE /api/containers/{id}              Retire container
    POST   /api/containers/{id}/fill         Refill or correct fill
    POST   /api/containers/{id}/account      Change account
    POST   /api/containers/{id}/adjust       Sample draw or top-up
    POST   /api/containers/{id}/bottle       Bottle from container
    POST   /api/containers/{id}/proof-down   Add water to a target proof
    GET    /api/containers/{id}/entries      Log for one container

  Transfers:
    POST   /api/transfers                    Move spirit between containers

  Log:
    GET    /api/entries                      Newest first (?container_id=, ?type=, ?since=, ?limit=)
    GET    /api/entries/{id}                 One entry
    GET    /api/entries/{id}/eligibility     Can it be undone now?
    POST   /api/entries/{id}/undo            Reverse and remove/supersede
    DELETE /api/entries/{id}                 Remove without touching containers

  Products and production:
    GET/POST       /api/products
    PUT/DELETE     /api/products/{id}
    GET            /api/batches              (?kind=fermentation|distillation)
    POST           /api/batches/fermentation
    POST           /api/batches/distillation

  Admin:
    GET    /api/catalog                      Container types, bottle sizes
    GET    /api/consistency                  Run the log-vs-snapshot check
    GET    /api/consistency/last             Last scheduled check
    GET    /api/events                       Recently published changes
    POST   /api/admin/seed                   Seed default products
    GET    /api/scenarios                    Demo scenarios
    POST   /api/scenarios/load               Reset and load a demo scenario

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Container, product, entry or batch not found
  - 409: Concurrent modification, retry
  - 422: Entry not eligible for undo
  - 500: Persistence and internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - inventory/errors.go: error categories
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/warp/spirits-ledger/catalog"
	"github.com/warp/spirits-ledger/events"
	"github.com/warp/spirits-ledger/inventory"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *inventory.Service
	Catalog *catalog.Catalog

	// Optional.
	Scheduler *ConsistencyScheduler
	Events    *events.Recorder
	Reset     func(ctx context.Context) error
	Log       zerolog.Logger
}

// NewHandler creates a handler over the service. cat may be nil.
func NewHandler(svc *inventory.Service, cat *catalog.Catalog) *Handler {
	return &Handler{Service: svc, Catalog: cat, Log: zerolog.Nop()}
}

func (h *Handler) label(t inventory.ContainerType) string {
	if h.Catalog == nil {
		return string(t)
	}
	return h.Catalog.Label(t)
}

func (h *Handler) writeResult(w http.ResponseWriter, status int, res inventory.Result) {
	writeJSON(w, status, toResultDTO(res, h.label))
}

// =============================================================================
// CONTAINER HANDLERS
// =============================================================================

func (h *Handler) ListContainers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := inventory.ContainerFilter{
		Status:         inventory.Status(q.Get("status")),
		IncludeRetired: q.Get("include_retired") == "true",
	}
	containers, err := h.Service.Containers(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	dtos := make([]ContainerDTO, 0, len(containers))
	for _, c := range containers {
		dtos = append(dtos, toContainerDTO(c, h.label))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetContainer(w http.ResponseWriter, r *http.Request) {
	c, err := h.Service.Container(r.Context(), containerID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toContainerDTO(*c, h.label))
}

func (h *Handler) CreateContainer(w http.ResponseWriter, r *http.Request) {
	var req CreateContainerRequest
	if !decode(w, r, &req) {
		return
	}
	domain, err := req.toDomain()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	res, err := h.Service.CreateContainer(r.Context(), domain)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeResult(w, http.StatusCreated, res)
}

// ImportContainers commits every valid row and reports the rest. Row
// numbers in the response refer to the request's rows, starting at 1.
func (h *Handler) ImportContainers(w http.ResponseWriter, r *http.Request) {
	var req ImportContainersRequest
	if !decode(w, r, &req) {
		return
	}
	rows := make([]inventory.CreateContainerRequest, 0, len(req.Containers))
	rowNumbers := make([]int, 0, len(req.Containers))
	var rowErrors []inventory.ImportRowError
	for i, row := range req.Containers {
		domain, err := row.toDomain()
		if err != nil {
			rowErrors = append(rowErrors, inventory.ImportRowError{Row: i + 1, Name: row.Name, Reason: errorReason(err)})
			continue
		}
		rows = append(rows, domain)
		rowNumbers = append(rowNumbers, i+1)
	}
	if len(rows) == 0 && len(rowErrors) > 0 {
		writeJSON(w, http.StatusBadRequest, ImportResultDTO{Errors: rowErrors})
		return
	}

	res, err := h.Service.ImportContainers(r.Context(), rows)
	for _, e := range res.Errors {
		e.Row = rowNumbers[e.Row-1]
		rowErrors = append(rowErrors, e)
	}
	sort.Slice(rowErrors, func(i, j int) bool { return rowErrors[i].Row < rowErrors[j].Row })
	if err != nil {
		if errors.Is(err, inventory.ErrValidation) && len(rowErrors) > 0 {
			writeJSON(w, http.StatusBadRequest, ImportResultDTO{Errors: rowErrors})
			return
		}
		h.writeServiceError(w, err)
		return
	}

	dto := ImportResultDTO{
		ResultDTO: toResultDTO(res.Result, h.label),
		Created:   make([]ContainerDTO, 0, len(res.Created)),
		Errors:    rowErrors,
	}
	for _, c := range res.Created {
		dto.Created = append(dto.Created, toContainerDTO(c, h.label))
	}
	if dto.Errors == nil {
		dto.Errors = []inventory.ImportRowError{}
	}
	writeJSON(w, http.StatusCreated, dto)
}

func (h *Handler) UpdateContainer(w http.ResponseWriter, r *http.Request) {
	var req UpdateContainerRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.Service.UpdateContainerInfo(r.Context(), containerID(r), req.toDomain())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeResult(w, http.StatusOK, res)
}

func (h *Handler) DeleteContainer(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.DeleteContainer(r.Context(), containerID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeResult(w, http.StatusOK, res)
}

func (h *Handler) FillContainer(w http.ResponseWriter, r *http.Request) {
	var req FillRequest
	if !decode(w, r, &req) {
		return
	}
	spec, err := req.FillDTO.toSpec()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	mode := inventory.FillMode(req.Mode)
	if mode == "" {
		mode = inventory.FillRefill
	}
	res, err := h.Service.Fill(r.Context(), inventory.FillRequest{
		ContainerID: containerID(r),
		Mode:        mode,
		FillSpec:    spec,
		Notes:       req.Notes,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeResult(w, http.StatusOK, res)
}

func (h *Handler) ChangeAccount(w http.ResponseWriter, r *http.Request) {
	var req ChangeAccountRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.Service.ChangeAccount(r.Context(), containerID(r), inventory.Account(req.Account))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeResult(w, http.StatusOK, res)
}

func (h *Handler) AdjustContainer(w http.ResponseWriter, r *http.Request) {
	var req AdjustRequest
	if !decode(w, r, &req) {
		return
	}
	q, err := req.Quantity.toQuantity("quantity")
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	res, err := h.Service.Adjust(r.Context(), inventory.AdjustRequest{
		ContainerID: containerID(r),
		Quantity:    q,
		Addition:    req.Addition,
		Notes:       req.Notes,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeResult(w, http.StatusOK, res)
}

func (h *Handler) BottleContainer(w http.ResponseWriter, r *http.Request) {
	var req BottleRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.Service.Bottle(r.Context(), inventory.BottleRequest{
		ContainerID:    containerID(r),
		Bottles:        req.Bottles,
		BottleSizeML:   req.BottleSizeML,
		Remainder:      inventory.RemainderAction(req.Remainder),
		Adjustment:     req.Adjustment,
		AdjustmentGain: req.AdjustmentGain,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeResult(w, http.StatusOK, res)
}

func (h *Handler) ProofDown(w http.ResponseWriter, r *http.Request) {
	var req ProofDownRequest
	if !decode(w, r, &req) {
		return
	}
	res, err := h.Service.ProofDown(r.Context(), inventory.ProofDownRequest{
		ContainerID: containerID(r),
		TargetProof: req.TargetProof,
		Notes:       req.Notes,
	})
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeResult(w, http.StatusOK, res)
}

func (h *Handler) ContainerEntries(w http.ResponseWriter, r *http.Request) {
	id := containerID(r)
	if _, err := h.Service.Container(r.Context(), id); err != nil {
		h.writeServiceError(w, err)
		return
	}
	filter, err := entryFilter(r)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	filter.ContainerID = id
	h.writeEntries(w, r, filter)
}

// =============================================================================
// TRANSFER HANDLERS
// =============================================================================

func (h *Handler) Transfer(w http.ResponseWriter, r *http.Request) {
	var req TransferRequest
	if !decode(w, r, &req) {
		return
	}
	domain, err := req.toDomain()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	res, err := h.Service.Transfer(r.Context(), domain)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeResult(w, http.StatusOK, res)
}

// =============================================================================
// LOG HANDLERS
// =============================================================================

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
	filter, err := entryFilter(r)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	filter.ContainerID = inventory.ContainerID(r.URL.Query().Get("container_id"))
	h.writeEntries(w, r, filter)
}

func (h *Handler) writeEntries(w http.ResponseWriter, r *http.Request, filter inventory.EntryFilter) {
	entries, err := h.Service.Entries(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	dtos := make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) GetEntry(w http.ResponseWriter, r *http.Request) {
	e, err := h.Service.Entry(r.Context(), entryID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEntryDTO(*e))
}

func (h *Handler) EntryEligibility(w http.ResponseWriter, r *http.Request) {
	el, err := h.Service.Eligibility(r.Context(), entryID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	dto := EligibilityDTO{
		EntryID:  string(el.EntryID),
		Undoable: el.Undoable,
		Reason:   el.Reason,
		Mode:     h.Service.UndoMode(),
	}
	if el.Undoable {
		dto.ExpiresAt = formatTime(el.ExpiresAt)
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) UndoEntry(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.Undo(r.Context(), entryID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeResult(w, http.StatusOK, res)
}

// RemoveEntry deletes a log entry and leaves every container as it is.
func (h *Handler) RemoveEntry(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.Remove(r.Context(), entryID(r))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeResult(w, http.StatusOK, res)
}

// =============================================================================
// PRODUCT HANDLERS
// =============================================================================

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.Service.Products(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	dtos := make([]ProductDTO, 0, len(products))
	for _, p := range products {
		dtos = append(dtos, toProductDTO(p))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.Service.CreateProduct(r.Context(), req.Name, req.Description)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(p))
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decode(w, r, &req) {
		return
	}
	p, err := h.Service.UpdateProduct(r.Context(), inventory.ProductID(chi.URLParam(r, "id")), req.Name, req.Description)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	res, err := h.Service.DeleteProduct(r.Context(), inventory.ProductID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	h.writeResult(w, http.StatusOK, res)
}

// =============================================================================
// PRODUCTION HANDLERS
// =============================================================================

func (h *Handler) ListBatches(w http.ResponseWriter, r *http.Request) {
	batches, err := h.Service.Batches(r.Context(), inventory.BatchKind(r.URL.Query().Get("kind")))
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	dtos := make([]BatchDTO, 0, len(batches))
	for _, b := range batches {
		dtos = append(dtos, toBatchDTO(b))
	}
	writeJSON(w, http.StatusOK, dtos)
}

func (h *Handler) RecordFermentation(w http.ResponseWriter, r *http.Request) {
	var req FermentationRequest
	if !decode(w, r, &req) {
		return
	}
	domain, err := req.toDomain()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	b, err := h.Service.RecordFermentation(r.Context(), domain)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toBatchDTO(b))
}

func (h *Handler) RecordDistillation(w http.ResponseWriter, r *http.Request) {
	var req DistillationRequest
	if !decode(w, r, &req) {
		return
	}
	domain, err := req.toDomain()
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	res, err := h.Service.RecordDistillation(r.Context(), domain)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, DistillationResultDTO{
		ResultDTO: toResultDTO(res.Result, h.label),
		Batch:     toBatchDTO(res.Batch),
	})
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

func (h *Handler) GetCatalog(w http.ResponseWriter, _ *http.Request) {
	l := h.Service.Ledger()
	dto := CatalogDTO{
		ContainerTypes: make([]ContainerTypeDTO, 0, len(inventory.ContainerTypes)),
		EntryTypes:     make([]string, 0, len(inventory.EntryTypes)),
		UndoMode:       h.Service.UndoMode(),
	}
	for _, t := range inventory.ContainerTypes {
		dto.ContainerTypes = append(dto.ContainerTypes, ContainerTypeDTO{
			Type:            string(t),
			Label:           h.label(t),
			CapacityGallons: l.Capacity(t),
		})
	}
	for _, t := range inventory.EntryTypes {
		dto.EntryTypes = append(dto.EntryTypes, string(t))
	}
	if h.Catalog != nil {
		dto.BottleSizesML = h.Catalog.BottleSizes()
	}
	if dto.BottleSizesML == nil {
		dto.BottleSizesML = []int{}
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) CheckConsistency(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.CheckConsistency(r.Context())
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	if h.Scheduler != nil {
		h.Scheduler.record(report)
	}
	writeJSON(w, http.StatusOK, toConsistencyDTO(report))
}

func (h *Handler) LastConsistency(w http.ResponseWriter, _ *http.Request) {
	if h.Scheduler == nil {
		writeError(w, http.StatusNotFound, "Consistency scheduler is not running", nil)
		return
	}
	report, ok := h.Scheduler.Last()
	if !ok {
		writeError(w, http.StatusNotFound, "No consistency check has run yet", nil)
		return
	}
	dto := toConsistencyDTO(report)
	if next, ok := h.Scheduler.NextRunTime(); ok {
		dto.NextRunAt = formatTime(next)
	}
	writeJSON(w, http.StatusOK, dto)
}

func (h *Handler) RecentEvents(w http.ResponseWriter, _ *http.Request) {
	if h.Events == nil {
		writeJSON(w, http.StatusOK, []events.Event{})
		return
	}
	evs := h.Events.Events()
	if evs == nil {
		evs = []events.Event{}
	}
	writeJSON(w, http.StatusOK, evs)
}

func (h *Handler) SeedProducts(w http.ResponseWriter, r *http.Request) {
	n, err := SeedDefaults(r.Context(), h.Service, h.Catalog, h.Log)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"created": n})
}

// =============================================================================
// HELPERS
// =============================================================================

func containerID(r *http.Request) inventory.ContainerID {
	return inventory.ContainerID(chi.URLParam(r, "id"))
}

func entryID(r *http.Request) inventory.EntryID {
	return inventory.EntryID(chi.URLParam(r, "id"))
}

// entryFilter reads ?type= (repeatable or comma separated), ?since= (RFC 3339
// or YYYY-MM-DD) and ?limit=.
func entryFilter(r *http.Request) (inventory.EntryFilter, error) {
	q := r.URL.Query()
	var f inventory.EntryFilter
	for _, raw := range q["type"] {
		for _, t := range strings.Split(raw, ",") {
			et := inventory.EntryType(strings.TrimSpace(t))
			if !et.Valid() {
				return f, badField("type", "unknown entry type "+strconv.Quote(string(et)))
			}
			f.Types = append(f.Types, et)
		}
	}
	if s := q.Get("since"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			t, err = parseDate("since", s)
			if err != nil {
				return f, err
			}
		}
		f.Since = &t
	}
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return f, badField("limit", "limit must be a non-negative integer")
		}
		f.Limit = n
	}
	return f, nil
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	return true
}

func errorReason(err error) string {
	var ve *inventory.ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	return err.Error()
}

func badField(field, reason string) error {
	return &inventory.ValidationError{Field: field, Reason: reason}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeServiceError maps inventory error categories to HTTP status codes.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	var ve *inventory.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: ve.Reason, Field: ve.Field})
	case errors.Is(err, inventory.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, inventory.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, inventory.ErrConflict):
		writeError(w, http.StatusConflict, err.Error(), nil)
	case errors.Is(err, inventory.ErrIneligible):
		var ee *inventory.EligibilityError
		if errors.As(err, &ee) {
			writeError(w, http.StatusUnprocessableEntity, ee.Reason, nil)
			return
		}
		writeError(w, http.StatusUnprocessableEntity, err.Error(), nil)
	default:
		h.Log.Error().Err(err).Msg("request failed")
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
