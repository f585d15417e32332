package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/spirits-ledger/gauge"
)

type ProofDownRequest struct {
	ContainerID ContainerID
	TargetProof decimal.Decimal
	Notes       string
}

// ProofDown adds water to lower proof while holding proof gallons constant.
//
//	finalWineGallons = proofGallons / (targetProof/100)
//	waterAdded       = finalWineGallons - wineGallons
//
// Under linear mixing the water's weight at 8.328 lb/gal is exactly the
// difference between the net weights at the old and new proof, so the new
// snapshot is taken straight from FromProofGallons.
func (s *Service) ProofDown(ctx context.Context, req ProofDownRequest) (res Result, err error) {
	const op = "proof_down"
	defer s.observe(op, time.Now(), &err)

	c, err := s.liveContainer(ctx, req.ContainerID)
	if err != nil {
		return Result{}, err
	}
	if !c.IsFilled() {
		return Result{}, invalid(op, "containerId", "container %s is empty", c.Name)
	}
	current := c.Fill.Proof
	if !req.TargetProof.IsPositive() || !req.TargetProof.LessThan(current) {
		return Result{}, invalid(op, "targetProof", "target proof must be greater than 0 and less than current proof %s", current.String())
	}

	m := gauge.FromProofGallons(c.Fill.ProofGallons, req.TargetProof, c.TareWeightLbs)
	if err := s.ledger.CheckCapacity(op, c, m.WineGallons); err != nil {
		return Result{}, err
	}
	waterGallons := m.WineGallons.Sub(c.Fill.WineGallons)
	waterLbs := m.NetWeightLbs.Sub(c.Fill.NetWeightLbs)

	next := s.ledger.ApplyMeasure(c, m, s.now())
	next.Fill.ObservedProof = decimal.NullDecimal{}
	next.Fill.TemperatureF = decimal.NullDecimal{}

	e := s.entry(EntryProofDown, c)
	e.Proof = req.TargetProof
	e.PriorProof = decimal.NewNullDecimal(current)
	e.NetWeightLbsChange = waterLbs
	e.ProofGallonsChange = m.ProofGallons.Sub(c.Fill.ProofGallons)
	e.Notes = noteOr(req.Notes, fmt.Sprintf("Proofed down from %s to %s with %s gal water.",
		current.String(), req.TargetProof.String(), waterGallons.StringFixed(2)))

	return s.commit(ctx, op, WriteSet{
		Containers: []ContainerWrite{s.update(c, next)},
		Append:     []Entry{e},
	})
}
