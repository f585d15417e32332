package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/spirits-ledger/gauge"
)

// DefaultDistillateProduct is used when a distillation names no product.
const DefaultDistillateProduct = "Low Wines"

// =============================================================================
// FERMENTATION
// =============================================================================

type FermentationRequest struct {
	Name               string
	Date               time.Time
	StartVolumeGallons decimal.NullDecimal
	OriginalGravity    decimal.NullDecimal
	FinalGravity       decimal.NullDecimal
	Ingredients        string
	Notes              string
}

// RecordFermentation stores a fermentation batch. It touches no container.
func (s *Service) RecordFermentation(ctx context.Context, req FermentationRequest) (b ProductionBatch, err error) {
	const op = "record_fermentation"
	defer s.observe(op, time.Now(), &err)

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return ProductionBatch{}, invalid(op, "name", "batch name is required")
	}
	if req.StartVolumeGallons.Valid && req.StartVolumeGallons.Decimal.IsNegative() {
		return ProductionBatch{}, invalid(op, "startVolume", "start volume cannot be negative")
	}
	b = ProductionBatch{
		ID:                 BatchID(s.newID()),
		Name:               name,
		Kind:               BatchFermentation,
		Date:               s.dateOr(req.Date),
		StartVolumeGallons: req.StartVolumeGallons,
		OriginalGravity:    req.OriginalGravity,
		FinalGravity:       req.FinalGravity,
		Ingredients:        req.Ingredients,
		Notes:              req.Notes,
		CreatedAt:          s.now(),
	}
	if _, err := s.commit(ctx, op, WriteSet{Batches: []ProductionBatch{b}}); err != nil {
		return ProductionBatch{}, err
	}
	return b, nil
}

// =============================================================================
// DISTILLATION
// =============================================================================

// ChargeSpec pulls the still charge from a filled container.
type ChargeSpec struct {
	ContainerID ContainerID
	Quantity    gauge.Quantity
}

type DistillationRequest struct {
	Name          string
	Date          time.Time
	ProductType   string
	SourceBatchID BatchID
	Charge        *ChargeSpec
	Yield         gauge.Quantity
	YieldStrength gauge.Strength
	ReceiverID    ContainerID
	Notes         string
}

type DistillationResult struct {
	Result
	Batch ProductionBatch
}

// RecordDistillation stores a distillation run and fills an empty receiving
// container with its yield. When a charge is given, it is drawn from its
// container with TRANSFER_OUT. The run itself is logged as
// DISTILLATION_FINISH and the receiver's fill as PRODUCTION.
func (s *Service) RecordDistillation(ctx context.Context, req DistillationRequest) (res DistillationResult, err error) {
	const op = "record_distillation"
	defer s.observe(op, time.Now(), &err)

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return res, invalid(op, "name", "batch name is required")
	}
	product := strings.TrimSpace(req.ProductType)
	if product == "" {
		product = DefaultDistillateProduct
	}
	if err := quantityUnit(op, req.Yield); err != nil {
		return res, err
	}
	if !req.Yield.Value.IsPositive() {
		return res, invalid(op, "yield", "yield must be greater than 0")
	}
	if err := validateProof(op, req.YieldStrength.Proof); err != nil {
		return res, err
	}
	if !req.YieldStrength.Proof.IsPositive() {
		return res, invalid(op, "yieldProof", "yield proof must be greater than 0")
	}
	if req.SourceBatchID != "" {
		src, err := s.store.GetBatch(ctx, req.SourceBatchID)
		if err != nil {
			return res, err
		}
		if src == nil {
			return res, &NotFoundError{Kind: "batch", ID: string(req.SourceBatchID)}
		}
	}
	if req.ReceiverID == "" {
		return res, invalid(op, "receiverId", "select a container to store the distillation yield")
	}
	recv, err := s.liveContainer(ctx, req.ReceiverID)
	if err != nil {
		return res, err
	}
	if recv.IsFilled() {
		return res, invalid(op, "receiverId", "receiving container %s is not empty", recv.Name)
	}

	date := s.dateOr(req.Date)
	now := s.now()
	batchID := BatchID(s.newID())
	var ws WriteSet

	nextRecv, m := s.ledger.ApplyFill(recv, FillSpec{
		Quantity:    req.Yield,
		Strength:    req.YieldStrength,
		ProductType: product,
		Account:     AccountStorage,
		FillDate:    &date,
	}, now)
	if !nextRecv.IsFilled() {
		return res, invalid(op, "yield", "yield must be greater than 0")
	}
	if err := s.ledger.CheckCapacity(op, nextRecv, m.WineGallons); err != nil {
		return res, err
	}

	batch := ProductionBatch{
		ID:                  batchID,
		Name:                name,
		Kind:                BatchDistillation,
		Date:                date,
		Notes:               req.Notes,
		SourceBatchID:       req.SourceBatchID,
		ProductType:         product,
		YieldProof:          decimal.NewNullDecimal(m.Proof),
		YieldWineGallons:    decimal.NewNullDecimal(m.WineGallons),
		YieldProofGallons:   decimal.NewNullDecimal(m.ProofGallons),
		ReceiverContainerID: recv.ID,
		CreatedAt:           now,
	}

	if req.Charge != nil {
		tank, out, err := s.chargeFrom(ctx, op, *req.Charge, batch)
		if err != nil {
			return res, err
		}
		batch.ChargeContainerID = tank.orig.ID
		batch.ChargeProof = decimal.NewNullDecimal(tank.orig.Fill.Proof)
		batch.ChargeProofGallons = decimal.NewNullDecimal(out.ProofGallonsChange.Neg())
		ws.Containers = append(ws.Containers, s.update(tank.orig, tank.next))
		ws.Append = append(ws.Append, out)
	}

	finish := Entry{
		ID:                 EntryID(s.newID()),
		Type:               EntryDistillationFinish,
		ProductType:        product,
		Proof:              m.Proof,
		NetWeightLbsChange: m.NetWeightLbs,
		ProofGallonsChange: m.ProofGallons,
		BatchID:            batchID,
		BatchName:          name,
		Notes:              fmt.Sprintf("Produced %s PG of %s.", m.ProofGallons.StringFixed(3), product),
	}

	fill := s.entry(EntryProduction, nextRecv)
	fill.NetWeightLbsChange = m.NetWeightLbs
	fill.ProofGallonsChange = m.ProofGallons
	fill.BatchID = batchID
	fill.BatchName = name
	fill.Notes = fmt.Sprintf("Filled with %s PG from distillation batch %s.", m.ProofGallons.StringFixed(3), name)

	ws.Containers = append(ws.Containers, s.update(recv, nextRecv))
	ws.Batches = []ProductionBatch{batch}
	ws.Append = append(ws.Append, finish, fill)

	committed, err := s.commit(ctx, op, ws)
	if err != nil {
		return res, err
	}
	return DistillationResult{Result: committed, Batch: batch}, nil
}

type containerChange struct {
	orig, next Container
}

// chargeFrom draws a still charge from a filled container.
func (s *Service) chargeFrom(ctx context.Context, op string, spec ChargeSpec, batch ProductionBatch) (containerChange, Entry, error) {
	if err := deltaUnit(op, spec.Quantity); err != nil {
		return containerChange{}, Entry{}, err
	}
	tank, err := s.liveContainer(ctx, spec.ContainerID)
	if err != nil {
		return containerChange{}, Entry{}, err
	}
	if !tank.IsFilled() {
		return containerChange{}, Entry{}, invalid(op, "chargeContainerId", "container %s is empty", tank.Name)
	}
	if tank.Type == TypeStill {
		return containerChange{}, Entry{}, invalid(op, "chargeContainerId", "cannot charge from still %s", tank.Name)
	}
	proof := tank.Fill.Proof
	if !proof.IsPositive() {
		return containerChange{}, Entry{}, invalid(op, "chargeContainerId", "container %s has no proof", tank.Name)
	}

	pulled := gauge.Resolve(spec.Quantity, proof, decimal.Zero)
	if pulled.ProofGallons.GreaterThan(tank.Fill.ProofGallons.Add(gauge.Tolerance)) {
		return containerChange{}, Entry{}, invalid(op, "charge", "cannot pull %s PG from tank that only has %s PG",
			pulled.ProofGallons.StringFixed(3), tank.Fill.ProofGallons.StringFixed(3))
	}
	lbs, pg := pulled.NetWeightLbs, pulled.ProofGallons
	if tank.Fill.ProofGallons.Sub(pg).Abs().LessThanOrEqual(gauge.Tolerance) {
		lbs, pg = tank.Fill.NetWeightLbs, tank.Fill.ProofGallons
	}
	lbs = decimal.Min(lbs, tank.Fill.NetWeightLbs)
	next := s.ledger.ApplyDelta(tank, lbs.Neg(), s.now())

	out := s.entry(EntryTransferOut, tank)
	out.NetWeightLbsChange = lbs.Neg()
	out.ProofGallonsChange = pg.Neg()
	out.BatchID = batch.ID
	out.BatchName = batch.Name
	out.Notes = fmt.Sprintf("Charged to distillation batch %s.", batch.Name)

	return containerChange{orig: tank, next: next}, out, nil
}

func (s *Service) dateOr(t time.Time) time.Time {
	if t.IsZero() {
		return *dateOf(s.now())
	}
	return t
}

// Batches lists production batches of one kind, or all when kind is empty.
func (s *Service) Batches(ctx context.Context, kind BatchKind) ([]ProductionBatch, error) {
	return s.store.ListBatches(ctx, kind)
}
