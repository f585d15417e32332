/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the inventory model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

QUANTITIES:
  Every amount is a decimal. Responses encode decimals as JSON strings so no
  precision is lost; requests accept either strings or numbers.
  A quantity is {"unit": "...", "value": ...} where unit is one of
  gross_lbs, net_lbs, wine_gallons, proof_gallons.

DATES:
  Fill and batch dates are YYYY-MM-DD. Timestamps are RFC 3339.

SEE ALSO:
  - handlers.go: Uses these types
  - inventory/types.go: the domain model behind them
*/
package api

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/spirits-ledger/gauge"
	"github.com/warp/spirits-ledger/inventory"
)

const dateLayout = "2006-01-02"

// =============================================================================
// REQUEST TYPES
// =============================================================================

// QuantityDTO is one measured amount.
type QuantityDTO struct {
	Unit  string          `json:"unit"`
	Value decimal.Decimal `json:"value"`
}

func (q QuantityDTO) toQuantity(field string) (gauge.Quantity, error) {
	u, err := gauge.ParseUnit(q.Unit)
	if err != nil {
		return gauge.Quantity{}, badField(field, err.Error())
	}
	return gauge.Quantity{Unit: u, Value: q.Value}, nil
}

// FillDTO describes new contents for a container.
type FillDTO struct {
	Quantity     QuantityDTO         `json:"quantity"`
	Proof        decimal.Decimal     `json:"proof"`
	TemperatureF decimal.NullDecimal `json:"temperature_f"`
	ProductType  string              `json:"product_type"`
	Account      string              `json:"account,omitempty"`
	FillDate     string              `json:"fill_date,omitempty"`
}

func (f FillDTO) toSpec() (inventory.FillSpec, error) {
	q, err := f.Quantity.toQuantity("quantity")
	if err != nil {
		return inventory.FillSpec{}, err
	}
	spec := inventory.FillSpec{
		Quantity:    q,
		Strength:    gauge.Strength{Proof: f.Proof, TemperatureF: f.TemperatureF},
		ProductType: f.ProductType,
		Account:     inventory.Account(f.Account),
	}
	if f.FillDate != "" {
		d, err := parseDate("fill_date", f.FillDate)
		if err != nil {
			return inventory.FillSpec{}, err
		}
		spec.FillDate = &d
	}
	return spec, nil
}

// CreateContainerRequest adds a container. Omit fill for an empty one.
type CreateContainerRequest struct {
	ID            string          `json:"id,omitempty"`
	Name          string          `json:"name"`
	Type          string          `json:"type"`
	TareWeightLbs decimal.Decimal `json:"tare_weight_lbs"`
	Fill          *FillDTO        `json:"fill,omitempty"`
}

func (r CreateContainerRequest) toDomain() (inventory.CreateContainerRequest, error) {
	req := inventory.CreateContainerRequest{
		ID:            inventory.ContainerID(r.ID),
		Name:          r.Name,
		Type:          inventory.ContainerType(r.Type),
		TareWeightLbs: r.TareWeightLbs,
	}
	if r.Fill != nil {
		spec, err := r.Fill.toSpec()
		if err != nil {
			return req, err
		}
		req.Fill = &spec
	}
	return req, nil
}

// ImportContainersRequest is a bulk create.
type ImportContainersRequest struct {
	Containers []CreateContainerRequest `json:"containers"`
}

// UpdateContainerRequest edits container info. Absent fields are unchanged.
type UpdateContainerRequest struct {
	Name          *string          `json:"name,omitempty"`
	Type          *string          `json:"type,omitempty"`
	TareWeightLbs *decimal.Decimal `json:"tare_weight_lbs,omitempty"`
}

func (r UpdateContainerRequest) toDomain() inventory.ContainerInfo {
	info := inventory.ContainerInfo{Name: r.Name, TareWeightLbs: r.TareWeightLbs}
	if r.Type != nil {
		t := inventory.ContainerType(*r.Type)
		info.Type = &t
	}
	return info
}

// FillRequest refills an empty container or corrects a fill.
type FillRequest struct {
	Mode string `json:"mode"`
	FillDTO
	Notes string `json:"notes,omitempty"`
}

type ChangeAccountRequest struct {
	Account string `json:"account"`
}

// TransferRequest moves spirit between containers. With all=true the
// quantity is ignored.
type TransferRequest struct {
	SourceID      string       `json:"source_id"`
	DestinationID string       `json:"destination_id"`
	Quantity      *QuantityDTO `json:"quantity,omitempty"`
	All           bool         `json:"all,omitempty"`
	Notes         string       `json:"notes,omitempty"`
}

func (r TransferRequest) toDomain() (inventory.TransferRequest, error) {
	req := inventory.TransferRequest{
		SourceID:      inventory.ContainerID(r.SourceID),
		DestinationID: inventory.ContainerID(r.DestinationID),
		All:           r.All,
		Notes:         r.Notes,
	}
	if r.All {
		return req, nil
	}
	if r.Quantity == nil {
		return req, badField("quantity", "quantity is required unless all is set")
	}
	q, err := r.Quantity.toQuantity("quantity")
	if err != nil {
		return req, err
	}
	req.Quantity = q
	return req, nil
}

// AdjustRequest is a sample draw, or a top-up when addition is true.
type AdjustRequest struct {
	Quantity QuantityDTO `json:"quantity"`
	Addition bool        `json:"addition,omitempty"`
	Notes    string      `json:"notes,omitempty"`
}

type BottleRequest struct {
	Bottles        int             `json:"bottles"`
	BottleSizeML   int             `json:"bottle_size_ml"`
	Remainder      string          `json:"remainder,omitempty"`
	Adjustment     decimal.Decimal `json:"adjustment_wine_gallons"`
	AdjustmentGain bool            `json:"adjustment_gain,omitempty"`
}

type ProofDownRequest struct {
	TargetProof decimal.Decimal `json:"target_proof"`
	Notes       string          `json:"notes,omitempty"`
}

type ProductRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

type FermentationRequest struct {
	Name               string              `json:"name"`
	Date               string              `json:"date,omitempty"`
	StartVolumeGallons decimal.NullDecimal `json:"start_volume_gallons"`
	OriginalGravity    decimal.NullDecimal `json:"original_gravity"`
	FinalGravity       decimal.NullDecimal `json:"final_gravity"`
	Ingredients        string              `json:"ingredients,omitempty"`
	Notes              string              `json:"notes,omitempty"`
}

func (r FermentationRequest) toDomain() (inventory.FermentationRequest, error) {
	req := inventory.FermentationRequest{
		Name:               r.Name,
		StartVolumeGallons: r.StartVolumeGallons,
		OriginalGravity:    r.OriginalGravity,
		FinalGravity:       r.FinalGravity,
		Ingredients:        r.Ingredients,
		Notes:              r.Notes,
	}
	if r.Date != "" {
		d, err := parseDate("date", r.Date)
		if err != nil {
			return req, err
		}
		req.Date = d
	}
	return req, nil
}

// ChargeDTO names the tank a distillation charge is drawn from.
type ChargeDTO struct {
	ContainerID string      `json:"container_id"`
	Quantity    QuantityDTO `json:"quantity"`
}

type DistillationRequest struct {
	Name              string              `json:"name"`
	Date              string              `json:"date,omitempty"`
	ProductType       string              `json:"product_type"`
	SourceBatchID     string              `json:"source_batch_id,omitempty"`
	Charge            *ChargeDTO          `json:"charge,omitempty"`
	Yield             QuantityDTO         `json:"yield"`
	YieldProof        decimal.Decimal     `json:"yield_proof"`
	YieldTemperatureF decimal.NullDecimal `json:"yield_temperature_f"`
	ReceiverID        string              `json:"receiver_id"`
	Notes             string              `json:"notes,omitempty"`
}

func (r DistillationRequest) toDomain() (inventory.DistillationRequest, error) {
	yield, err := r.Yield.toQuantity("yield")
	if err != nil {
		return inventory.DistillationRequest{}, err
	}
	req := inventory.DistillationRequest{
		Name:          r.Name,
		ProductType:   r.ProductType,
		SourceBatchID: inventory.BatchID(r.SourceBatchID),
		Yield:         yield,
		YieldStrength: gauge.Strength{Proof: r.YieldProof, TemperatureF: r.YieldTemperatureF},
		ReceiverID:    inventory.ContainerID(r.ReceiverID),
		Notes:         r.Notes,
	}
	if r.Date != "" {
		d, err := parseDate("date", r.Date)
		if err != nil {
			return req, err
		}
		req.Date = d
	}
	if r.Charge != nil {
		q, err := r.Charge.Quantity.toQuantity("charge.quantity")
		if err != nil {
			return req, err
		}
		req.Charge = &inventory.ChargeSpec{ContainerID: inventory.ContainerID(r.Charge.ContainerID), Quantity: q}
	}
	return req, nil
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

type FillStateDTO struct {
	ProductType    string              `json:"product_type,omitempty"`
	Proof          decimal.Decimal     `json:"proof"`
	ObservedProof  decimal.NullDecimal `json:"observed_proof"`
	TemperatureF   decimal.NullDecimal `json:"temperature_f"`
	FillDate       string              `json:"fill_date,omitempty"`
	GrossWeightLbs decimal.Decimal     `json:"gross_weight_lbs"`
	NetWeightLbs   decimal.Decimal     `json:"net_weight_lbs"`
	WineGallons    decimal.Decimal     `json:"wine_gallons"`
	ProofGallons   decimal.Decimal     `json:"proof_gallons"`
	SpiritDensity  decimal.Decimal     `json:"spirit_density"`
	Account        string              `json:"account,omitempty"`
	EmptiedDate    string              `json:"emptied_date,omitempty"`
}

type ContainerDTO struct {
	ID            string          `json:"id"`
	Name          string          `json:"name"`
	Type          string          `json:"type"`
	TypeLabel     string          `json:"type_label,omitempty"`
	TareWeightLbs decimal.Decimal `json:"tare_weight_lbs"`
	Status        string          `json:"status"`
	Fill          FillStateDTO    `json:"fill"`
	Version       int64           `json:"version"`
	Retired       bool            `json:"retired,omitempty"`
	CreatedAt     string          `json:"created_at"`
	UpdatedAt     string          `json:"updated_at"`
}

type EntryDTO struct {
	ID                       string              `json:"id"`
	Type                     string              `json:"type"`
	Timestamp                string              `json:"timestamp"`
	ContainerID              string              `json:"container_id,omitempty"`
	ContainerName            string              `json:"container_name,omitempty"`
	ProductType              string              `json:"product_type,omitempty"`
	Proof                    decimal.Decimal     `json:"proof"`
	PriorProof               decimal.NullDecimal `json:"prior_proof"`
	NetWeightLbsChange       decimal.Decimal     `json:"net_weight_lbs_change"`
	ProofGallonsChange       decimal.Decimal     `json:"proof_gallons_change"`
	SourceContainerID        string              `json:"source_container_id,omitempty"`
	SourceContainerName      string              `json:"source_container_name,omitempty"`
	DestinationContainerID   string              `json:"destination_container_id,omitempty"`
	DestinationContainerName string              `json:"destination_container_name,omitempty"`
	BatchID                  string              `json:"batch_id,omitempty"`
	BatchName                string              `json:"batch_name,omitempty"`
	ReversesEntryID          string              `json:"reverses_entry_id,omitempty"`
	Notes                    string              `json:"notes,omitempty"`
	Undoable                 bool                `json:"undoable"`
}

type ProductDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"created_at"`
}

type BatchDTO struct {
	ID                  string              `json:"id"`
	Name                string              `json:"name"`
	Kind                string              `json:"kind"`
	Date                string              `json:"date"`
	Notes               string              `json:"notes,omitempty"`
	StartVolumeGallons  decimal.NullDecimal `json:"start_volume_gallons"`
	OriginalGravity     decimal.NullDecimal `json:"original_gravity"`
	FinalGravity        decimal.NullDecimal `json:"final_gravity"`
	Ingredients         string              `json:"ingredients,omitempty"`
	SourceBatchID       string              `json:"source_batch_id,omitempty"`
	ChargeContainerID   string              `json:"charge_container_id,omitempty"`
	ChargeProof         decimal.NullDecimal `json:"charge_proof"`
	ChargeProofGallons  decimal.NullDecimal `json:"charge_proof_gallons"`
	ProductType         string              `json:"product_type,omitempty"`
	YieldProof          decimal.NullDecimal `json:"yield_proof"`
	YieldWineGallons    decimal.NullDecimal `json:"yield_wine_gallons"`
	YieldProofGallons   decimal.NullDecimal `json:"yield_proof_gallons"`
	ReceiverContainerID string              `json:"receiver_container_id,omitempty"`
	CreatedAt           string              `json:"created_at"`
}

// ResultDTO is what an operation committed.
type ResultDTO struct {
	Containers []ContainerDTO `json:"containers"`
	Entries    []EntryDTO     `json:"entries"`
	Deleted    []string       `json:"deleted,omitempty"`
}

type ImportResultDTO struct {
	ResultDTO
	Created []ContainerDTO             `json:"created"`
	Errors  []inventory.ImportRowError `json:"errors"`
}

type DistillationResultDTO struct {
	ResultDTO
	Batch BatchDTO `json:"batch"`
}

type EligibilityDTO struct {
	EntryID   string `json:"entry_id"`
	Undoable  bool   `json:"undoable"`
	Reason    string `json:"reason,omitempty"`
	ExpiresAt string `json:"expires_at,omitempty"`
	Mode      string `json:"mode"`
}

type DiscrepancyDTO struct {
	ContainerID          string          `json:"container_id"`
	ContainerName        string          `json:"container_name"`
	Entries              int             `json:"entries"`
	SnapshotNetWeightLbs decimal.Decimal `json:"snapshot_net_weight_lbs"`
	LoggedNetWeightLbs   decimal.Decimal `json:"logged_net_weight_lbs"`
	NetWeightDrift       decimal.Decimal `json:"net_weight_drift"`
	SnapshotProofGallons decimal.Decimal `json:"snapshot_proof_gallons"`
	LoggedProofGallons   decimal.Decimal `json:"logged_proof_gallons"`
	ProofGallonsDrift    decimal.Decimal `json:"proof_gallons_drift"`
	NetMismatch          bool            `json:"net_mismatch"`
}

type ConsistencyDTO struct {
	CheckedAt     string           `json:"checked_at"`
	Containers    int              `json:"containers"`
	Entries       int              `json:"entries"`
	Mismatches    int              `json:"mismatches"`
	Discrepancies []DiscrepancyDTO `json:"discrepancies"`

	// NextRunAt is set on the scheduler's last report while it is running.
	NextRunAt string `json:"next_run_at,omitempty"`
}

type ContainerTypeDTO struct {
	Type            string          `json:"type"`
	Label           string          `json:"label"`
	CapacityGallons decimal.Decimal `json:"capacity_gallons"`
}

type CatalogDTO struct {
	ContainerTypes []ContainerTypeDTO `json:"container_types"`
	BottleSizesML  []int              `json:"bottle_sizes_ml"`
	EntryTypes     []string           `json:"entry_types"`
	UndoMode       string             `json:"undo_mode"`
}

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format(dateLayout)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func parseDate(field, s string) (time.Time, error) {
	t, err := time.Parse(dateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, badField(field, fmt.Sprintf("%s must be YYYY-MM-DD", field))
	}
	return t, nil
}

func toContainerDTO(c inventory.Container, label func(inventory.ContainerType) string) ContainerDTO {
	dto := ContainerDTO{
		ID:            string(c.ID),
		Name:          c.Name,
		Type:          string(c.Type),
		TareWeightLbs: c.TareWeightLbs,
		Status:        string(c.Status),
		Fill: FillStateDTO{
			ProductType:    c.Fill.ProductType,
			Proof:          c.Fill.Proof,
			ObservedProof:  c.Fill.ObservedProof,
			TemperatureF:   c.Fill.TemperatureF,
			FillDate:       formatDate(c.Fill.FillDate),
			GrossWeightLbs: c.Fill.GrossWeightLbs,
			NetWeightLbs:   c.Fill.NetWeightLbs,
			WineGallons:    c.Fill.WineGallons,
			ProofGallons:   c.Fill.ProofGallons,
			SpiritDensity:  c.Fill.SpiritDensity,
			Account:        string(c.Fill.Account),
			EmptiedDate:    formatDate(c.Fill.EmptiedDate),
		},
		Version:   c.Version,
		Retired:   c.Retired,
		CreatedAt: formatTime(c.CreatedAt),
		UpdatedAt: formatTime(c.UpdatedAt),
	}
	if label != nil {
		dto.TypeLabel = label(c.Type)
	}
	return dto
}

func toEntryDTO(e inventory.Entry) EntryDTO {
	return EntryDTO{
		ID:                       string(e.ID),
		Type:                     string(e.Type),
		Timestamp:                formatTime(e.Timestamp),
		ContainerID:              string(e.ContainerID),
		ContainerName:            e.ContainerName,
		ProductType:              e.ProductType,
		Proof:                    e.Proof,
		PriorProof:               e.PriorProof,
		NetWeightLbsChange:       e.NetWeightLbsChange,
		ProofGallonsChange:       e.ProofGallonsChange,
		SourceContainerID:        string(e.SourceContainerID),
		SourceContainerName:      e.SourceContainerName,
		DestinationContainerID:   string(e.DestinationContainerID),
		DestinationContainerName: e.DestinationContainerName,
		BatchID:                  string(e.BatchID),
		BatchName:                e.BatchName,
		ReversesEntryID:          string(e.ReversesEntryID),
		Notes:                    e.Notes,
		Undoable:                 e.Type.Undoable(),
	}
}

func toProductDTO(p inventory.Product) ProductDTO {
	return ProductDTO{
		ID:          string(p.ID),
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   formatTime(p.CreatedAt),
	}
}

func toBatchDTO(b inventory.ProductionBatch) BatchDTO {
	return BatchDTO{
		ID:                  string(b.ID),
		Name:                b.Name,
		Kind:                string(b.Kind),
		Date:                formatDate(&b.Date),
		Notes:               b.Notes,
		StartVolumeGallons:  b.StartVolumeGallons,
		OriginalGravity:     b.OriginalGravity,
		FinalGravity:        b.FinalGravity,
		Ingredients:         b.Ingredients,
		SourceBatchID:       string(b.SourceBatchID),
		ChargeContainerID:   string(b.ChargeContainerID),
		ChargeProof:         b.ChargeProof,
		ChargeProofGallons:  b.ChargeProofGallons,
		ProductType:         b.ProductType,
		YieldProof:          b.YieldProof,
		YieldWineGallons:    b.YieldWineGallons,
		YieldProofGallons:   b.YieldProofGallons,
		ReceiverContainerID: string(b.ReceiverContainerID),
		CreatedAt:           formatTime(b.CreatedAt),
	}
}

func toResultDTO(r inventory.Result, label func(inventory.ContainerType) string) ResultDTO {
	dto := ResultDTO{
		Containers: make([]ContainerDTO, 0, len(r.Containers)),
		Entries:    make([]EntryDTO, 0, len(r.Entries)),
	}
	for _, c := range r.Containers {
		dto.Containers = append(dto.Containers, toContainerDTO(c, label))
	}
	for _, e := range r.Entries {
		dto.Entries = append(dto.Entries, toEntryDTO(e))
	}
	for _, id := range r.Deleted {
		dto.Deleted = append(dto.Deleted, string(id))
	}
	return dto
}

func toConsistencyDTO(r inventory.ConsistencyReport) ConsistencyDTO {
	dto := ConsistencyDTO{
		CheckedAt:     formatTime(r.CheckedAt),
		Containers:    r.Containers,
		Entries:       r.Entries,
		Mismatches:    r.Mismatches(),
		Discrepancies: make([]DiscrepancyDTO, 0, len(r.Discrepancies)),
	}
	for _, d := range r.Discrepancies {
		dto.Discrepancies = append(dto.Discrepancies, DiscrepancyDTO{
			ContainerID:          string(d.ContainerID),
			ContainerName:        d.ContainerName,
			Entries:              d.Entries,
			SnapshotNetWeightLbs: d.SnapshotNetWeightLbs,
			LoggedNetWeightLbs:   d.LoggedNetWeightLbs,
			NetWeightDrift:       d.NetWeightDrift,
			SnapshotProofGallons: d.SnapshotProofGallons,
			LoggedProofGallons:   d.LoggedProofGallons,
			ProofGallonsDrift:    d.ProofGallonsDrift,
			NetMismatch:          d.NetMismatch,
		})
	}
	return dto
}
