package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/spirits-ledger/gauge"
)

// AdjustRequest is a sample draw or a top-up.
type AdjustRequest struct {
	ContainerID ContainerID
	Quantity    gauge.Quantity
	Addition    bool
	Notes       string
}

// Adjust applies a one-directional change at the container's current proof.
// Removals are bounded by the current contents.
func (s *Service) Adjust(ctx context.Context, req AdjustRequest) (res Result, err error) {
	const op = "adjust"
	defer s.observe(op, time.Now(), &err)

	if err := deltaUnit(op, req.Quantity); err != nil {
		return Result{}, err
	}
	c, err := s.liveContainer(ctx, req.ContainerID)
	if err != nil {
		return Result{}, err
	}
	if !c.IsFilled() {
		return Result{}, invalid(op, "containerId", "container %s is empty", c.Name)
	}
	q, proof := req.Quantity, c.Fill.Proof
	if q.Unit.IsVolume() && !proof.IsPositive() {
		return Result{}, invalid(op, "proof", "cannot adjust by %s when proof is 0", q.Unit.Label())
	}

	lbs := gauge.NetWeightOf(q, proof, decimal.Zero)
	if !req.Addition {
		have := c.Measure().In(q.Unit)
		if q.Value.GreaterThan(have.Add(gauge.Tolerance)) {
			return Result{}, invalid(op, "amount", "cannot remove > %s %s", have.StringFixed(2), q.Unit.Label())
		}
		if have.Sub(q.Value).Abs().LessThanOrEqual(gauge.Tolerance) {
			lbs = c.Fill.NetWeightLbs
		}
		lbs = decimal.Min(lbs, c.Fill.NetWeightLbs).Neg()
	}

	next := s.ledger.ApplyDelta(c, lbs, s.now())
	if req.Addition {
		if err := s.ledger.CheckCapacity(op, next, next.Fill.WineGallons); err != nil {
			return Result{}, err
		}
	}

	verb := "Removed"
	if req.Addition {
		verb = "Added"
	}
	e := s.entry(EntrySampleAdjust, c)
	e.NetWeightLbsChange = next.Fill.NetWeightLbs.Sub(c.Fill.NetWeightLbs)
	e.ProofGallonsChange = next.Fill.ProofGallons.Sub(c.Fill.ProofGallons)
	e.Notes = noteOr(req.Notes, fmt.Sprintf("%s %s %s.", verb, q.Value.String(), q.Unit.Label()))

	return s.commit(ctx, op, WriteSet{
		Containers: []ContainerWrite{s.update(c, next)},
		Append:     []Entry{e},
	})
}
