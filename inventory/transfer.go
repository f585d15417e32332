package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/spirits-ledger/gauge"
)

// TransferRequest moves spirit from a filled source into an empty
// destination, or into a filled destination holding the same product.
type TransferRequest struct {
	SourceID      ContainerID
	DestinationID ContainerID
	Quantity      gauge.Quantity
	// All moves the source's entire contents and ignores Quantity.
	All   bool
	Notes string
}

// Transfer writes TRANSFER_OUT on the source and TRANSFER_IN on the
// destination. Both entries carry the same proof gallons with opposite sign.
func (s *Service) Transfer(ctx context.Context, req TransferRequest) (res Result, err error) {
	const op = "transfer"
	defer s.observe(op, time.Now(), &err)

	if req.SourceID == req.DestinationID {
		return Result{}, invalid(op, "destinationId", "source and destination must differ")
	}
	if req.DestinationID == "" {
		return Result{}, invalid(op, "destinationId", "destination is required")
	}
	src, err := s.liveContainer(ctx, req.SourceID)
	if err != nil {
		return Result{}, err
	}
	dst, err := s.liveContainer(ctx, req.DestinationID)
	if err != nil {
		return Result{}, err
	}
	if !src.IsFilled() {
		return Result{}, invalid(op, "sourceId", "source container %s is empty", src.Name)
	}
	if dst.IsFilled() && !sameName(dst.Fill.ProductType, src.Fill.ProductType) {
		return Result{}, invalid(op, "destinationId", "destination %s holds %s and cannot take %s",
			dst.Name, dst.Fill.ProductType, src.Fill.ProductType)
	}

	proof := src.Fill.Proof
	moved, err := s.transferWeight(op, src, req)
	if err != nil {
		return Result{}, err
	}

	density := gauge.DensityOf(proof)
	pgMoved := decimal.Zero
	if density.IsPositive() {
		pgMoved = gauge.ProofGallonsOf(moved.Div(density), proof).Round(3)
	}

	now := s.now()
	nextSrc := s.ledger.ApplyDelta(src, moved.Neg(), now)

	var nextDst Container
	if dst.IsFilled() {
		combined := gauge.WeightedProof(dst.Fill.Proof, dst.Fill.NetWeightLbs, proof, moved)
		m := gauge.FromNetWeight(dst.Fill.NetWeightLbs.Add(moved), combined, dst.TareWeightLbs)
		nextDst = s.ledger.ApplyMeasure(dst, m, now)
	} else {
		nextDst, _ = s.ledger.ApplyFill(dst, FillSpec{
			Quantity:    gauge.NetWeight(moved),
			Strength:    gauge.AtProof(proof),
			ProductType: src.Fill.ProductType,
			Account:     src.Fill.Account,
		}, now)
	}
	if err := s.ledger.CheckCapacity(op, nextDst, nextDst.Fill.WineGallons); err != nil {
		return Result{}, err
	}

	out := s.entry(EntryTransferOut, src)
	out.NetWeightLbsChange = moved.Neg()
	out.ProofGallonsChange = pgMoved.Neg()
	out.DestinationContainerID = dst.ID
	out.DestinationContainerName = dst.Name
	out.Notes = noteOr(req.Notes, fmt.Sprintf("To %s", dst.Name))

	in := s.entry(EntryTransferIn, src)
	in.ContainerID = dst.ID
	in.ContainerName = dst.Name
	in.NetWeightLbsChange = moved
	in.ProofGallonsChange = pgMoved
	in.SourceContainerID = src.ID
	in.SourceContainerName = src.Name
	in.Notes = noteOr(req.Notes, fmt.Sprintf("From %s", src.Name))

	return s.commit(ctx, op, WriteSet{
		Containers: []ContainerWrite{s.update(src, nextSrc), s.update(dst, nextDst)},
		Append:     []Entry{out, in},
	})
}

// transferWeight validates the requested amount against the source and
// returns the net pounds to move.
func (s *Service) transferWeight(op string, src Container, req TransferRequest) (decimal.Decimal, error) {
	available := src.Fill.NetWeightLbs
	if req.All {
		return available, nil
	}
	q := req.Quantity
	if err := deltaUnit(op, q); err != nil {
		return decimal.Zero, err
	}
	proof := src.Fill.Proof
	if q.Unit.IsVolume() && !proof.IsPositive() {
		return decimal.Zero, invalid(op, "proof", "cannot transfer by %s when proof is 0", q.Unit.Label())
	}
	have := src.Measure().In(q.Unit)
	if q.Value.GreaterThan(have.Add(gauge.Tolerance)) {
		return decimal.Zero, invalid(op, "amount", "cannot transfer > %s %s", have.StringFixed(2), q.Unit.Label())
	}
	if have.Sub(q.Value).Abs().LessThanOrEqual(gauge.Tolerance) {
		return available, nil
	}
	moved := gauge.NetWeightOf(q, proof, decimal.Zero)
	return decimal.Min(moved, available), nil
}

func noteOr(given, fallback string) string {
	if given != "" {
		return given
	}
	return fallback
}
