/*
Package inventory is the container ledger for bulk spirits.

PURPOSE:
  Holds the current fill state of every container, the transaction log that
  explains how it got there, and the orchestrators that change both in one
  atomic write set.

KEY CONCEPTS IN THIS FILE (types.go):
  - Container / Fill: mutable snapshot of what a container holds
  - Entry: one signed quantity change in the transaction log
  - Product / ProductionBatch: reference data written alongside

SNAPSHOT PLUS LOG:
  Containers are the source of truth for current quantities. The log is an
  audit trail whose deltas should sum to each container's contents, but the
  snapshot is never rebuilt from it. CheckConsistency reports where the two
  disagree.

VERSIONING:
  Container.Version increases by one on every committed change. Each write
  set names the version its orchestrator read; the store rejects the write
  with a ConflictError when the container has moved on.

SEE ALSO:
  - ledger.go: fill/empty state machine
  - store.go: persistence contract
  - service.go: orchestrator entry point
*/
package inventory

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type (
	ContainerID string
	EntryID     string
	ProductID   string
	BatchID     string
)

// =============================================================================
// ENUMERATIONS
// =============================================================================

// ContainerType is the physical kind of vessel. Each has a nominal capacity
// supplied by the catalog.
type ContainerType string

const (
	TypeBarrel    ContainerType = "barrel"
	TypeDrum      ContainerType = "drum"
	TypeTank      ContainerType = "tank"
	TypeTote      ContainerType = "tote"
	TypeSmallTote ContainerType = "small_tote"
	TypeStill     ContainerType = "still"
	TypeFermenter ContainerType = "fermenter"
)

// ContainerTypes lists every supported type.
var ContainerTypes = []ContainerType{
	TypeBarrel, TypeDrum, TypeTank, TypeTote, TypeSmallTote, TypeStill, TypeFermenter,
}

func (t ContainerType) Valid() bool {
	for _, ct := range ContainerTypes {
		if ct == t {
			return true
		}
	}
	return false
}

type Status string

const (
	StatusEmpty  Status = "empty"
	StatusFilled Status = "filled"
)

// Account is the bonded-premises account a fill is held under.
type Account string

const (
	AccountStorage    Account = "storage"
	AccountProduction Account = "production"
	AccountProcessing Account = "processing"
)

func (a Account) Valid() bool {
	switch a {
	case AccountStorage, AccountProduction, AccountProcessing:
		return true
	}
	return false
}

// EntryType is the closed set of transaction log record kinds.
type EntryType string

const (
	EntryCreateEmptyContainer   EntryType = "CREATE_EMPTY_CONTAINER"
	EntryCreateFilledContainer  EntryType = "CREATE_FILLED_CONTAINER"
	EntryRefillContainer        EntryType = "REFILL_CONTAINER"
	EntryEditFillDataCorrection EntryType = "EDIT_FILL_DATA_CORRECTION"
	EntryEditFillFromEmpty      EntryType = "EDIT_FILL_FROM_EMPTY"
	EntryEditEmptyFromFilled    EntryType = "EDIT_EMPTY_FROM_FILLED"
	EntryTransferOut            EntryType = "TRANSFER_OUT"
	EntryTransferIn             EntryType = "TRANSFER_IN"
	EntrySampleAdjust           EntryType = "SAMPLE_ADJUST"
	EntryBottlePartial          EntryType = "BOTTLE_PARTIAL"
	EntryBottleEmpty            EntryType = "BOTTLE_EMPTY"
	EntryBottlingGain           EntryType = "BOTTLING_GAIN"
	EntryBottlingLoss           EntryType = "BOTTLING_LOSS"
	EntryProofDown              EntryType = "PROOF_DOWN"
	EntryChangeAccount          EntryType = "CHANGE_ACCOUNT"
	EntryDeleteFilledContainer  EntryType = "DELETE_FILLED_CONTAINER"
	EntryDeleteEmptyContainer   EntryType = "DELETE_EMPTY_CONTAINER"
	EntryDeleteProduct          EntryType = "DELETE_PRODUCT"
	EntryCreateBulkContainers   EntryType = "CREATE_BULK_CONTAINERS"
	EntryProduction             EntryType = "PRODUCTION"
	EntryDistillationFinish     EntryType = "DISTILLATION_FINISH"
	EntryUndoReversal           EntryType = "UNDO_REVERSAL"
)

// EntryTypes lists every entry type in log order of introduction.
var EntryTypes = []EntryType{
	EntryCreateEmptyContainer, EntryCreateFilledContainer, EntryRefillContainer,
	EntryEditFillDataCorrection, EntryEditFillFromEmpty, EntryEditEmptyFromFilled,
	EntryTransferOut, EntryTransferIn, EntrySampleAdjust,
	EntryBottlePartial, EntryBottleEmpty, EntryBottlingGain, EntryBottlingLoss,
	EntryProofDown, EntryChangeAccount,
	EntryDeleteFilledContainer, EntryDeleteEmptyContainer, EntryDeleteProduct,
	EntryCreateBulkContainers, EntryProduction, EntryDistillationFinish,
	EntryUndoReversal,
}

func (t EntryType) Valid() bool {
	for _, et := range EntryTypes {
		if et == t {
			return true
		}
	}
	return false
}

// Undoable reports whether the entry's effect can be reversed on its
// container. Every type is removable.
func (t EntryType) Undoable() bool {
	switch t {
	case EntryTransferIn, EntryTransferOut, EntrySampleAdjust,
		EntryBottlePartial, EntryBottleEmpty, EntryBottlingGain, EntryBottlingLoss,
		EntryProofDown:
		return true
	}
	return false
}

// ChangesContents reports whether the entry's deltas moved spirit in or out
// of its container. BOTTLING_GAIN records spirit found beyond the contents;
// the container never held it, so consistency sums and undo skip it.
func (t EntryType) ChangesContents() bool {
	return t != EntryBottlingGain
}

// =============================================================================
// CONTAINER
// =============================================================================

type Container struct {
	ID            ContainerID
	Name          string
	Type          ContainerType
	TareWeightLbs decimal.Decimal
	Status        Status
	Fill          Fill
	Version       int64
	Retired       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// IsFilled reports whether the container currently holds spirit.
func (c Container) IsFilled() bool {
	return c.Status == StatusFilled
}

// Fill is the container's current contents. On an empty container the
// quantities are zero and ProductType and Account remember the last fill.
type Fill struct {
	ProductType    string
	Proof          decimal.Decimal
	ObservedProof  decimal.NullDecimal
	TemperatureF   decimal.NullDecimal
	FillDate       *time.Time
	GrossWeightLbs decimal.Decimal
	NetWeightLbs   decimal.Decimal
	WineGallons    decimal.Decimal
	ProofGallons   decimal.Decimal
	SpiritDensity  decimal.Decimal
	Account        Account
	EmptiedDate    *time.Time
}

// =============================================================================
// PRODUCT
// =============================================================================

// Product is referenced by name from fills and entries. Renaming a product
// does not rewrite those references.
type Product struct {
	ID          ProductID
	Name        string
	Description string
	CreatedAt   time.Time
}

// =============================================================================
// PRODUCTION BATCH
// =============================================================================

type BatchKind string

const (
	BatchFermentation BatchKind = "fermentation"
	BatchDistillation BatchKind = "distillation"
)

type ProductionBatch struct {
	ID    BatchID
	Name  string
	Kind  BatchKind
	Date  time.Time
	Notes string

	// Fermentation
	StartVolumeGallons decimal.NullDecimal
	OriginalGravity    decimal.NullDecimal
	FinalGravity       decimal.NullDecimal
	Ingredients        string

	// Distillation
	SourceBatchID       BatchID
	ChargeContainerID   ContainerID
	ChargeProof         decimal.NullDecimal
	ChargeProofGallons  decimal.NullDecimal
	ProductType         string
	YieldProof          decimal.NullDecimal
	YieldWineGallons    decimal.NullDecimal
	YieldProofGallons   decimal.NullDecimal
	ReceiverContainerID ContainerID

	CreatedAt time.Time
}

// =============================================================================
// TRANSACTION LOG ENTRY
// =============================================================================

// Entry is one record in the transaction log. NetWeightLbsChange and
// ProofGallonsChange are the signed change to the referenced container
// (negative means removed).
type Entry struct {
	ID            EntryID
	Type          EntryType
	Timestamp     time.Time
	ContainerID   ContainerID
	ContainerName string
	ProductType   string
	Proof         decimal.Decimal
	PriorProof    decimal.NullDecimal

	NetWeightLbsChange decimal.Decimal
	ProofGallonsChange decimal.Decimal

	SourceContainerID        ContainerID
	SourceContainerName      string
	DestinationContainerID   ContainerID
	DestinationContainerName string

	BatchID   BatchID
	BatchName string

	// ReversesEntryID is set on UNDO_REVERSAL entries.
	ReversesEntryID EntryID

	Notes string
}

func sameName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
