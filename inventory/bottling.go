package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/spirits-ledger/gauge"
)

// RemainderAction says what happens to spirit left after a partial bottling.
type RemainderAction string

const (
	// RemainderKeep leaves the remainder in the container.
	RemainderKeep RemainderAction = "keep"
	// RemainderLoss empties the container and logs the remainder as loss.
	RemainderLoss RemainderAction = "loss"
	// RemainderAdjust empties the container and logs an operator-entered
	// loss or gain in wine gallons.
	RemainderAdjust RemainderAction = "adjust"
)

type BottleRequest struct {
	ContainerID  ContainerID
	Bottles      int
	BottleSizeML int
	Remainder    RemainderAction
	// Adjustment is the manual amount in wine gallons for RemainderAdjust.
	Adjustment     decimal.Decimal
	AdjustmentGain bool
}

// Bottle removes bottles*size mL from a container.
//
// Three outcomes, split at the 0.001 wine-gallon tolerance:
//   - bottled < available: BOTTLE_PARTIAL, then the remainder action
//   - bottled = available: BOTTLE_EMPTY, container empties cleanly
//   - bottled > available: BOTTLE_EMPTY for the prior contents and
//     BOTTLING_GAIN for the excess
func (s *Service) Bottle(ctx context.Context, req BottleRequest) (res Result, err error) {
	const op = "bottle"
	defer s.observe(op, time.Now(), &err)

	if req.Bottles <= 0 {
		return Result{}, invalid(op, "bottles", "number of bottles must be greater than 0")
	}
	if req.BottleSizeML <= 0 {
		return Result{}, invalid(op, "bottleSizeMl", "bottle size must be greater than 0")
	}
	if !s.knownBottleSize(req.BottleSizeML) {
		return Result{}, invalid(op, "bottleSizeMl", "unsupported bottle size %d mL", req.BottleSizeML)
	}
	c, err := s.liveContainer(ctx, req.ContainerID)
	if err != nil {
		return Result{}, err
	}
	if !c.IsFilled() {
		return Result{}, invalid(op, "containerId", "container %s is empty", c.Name)
	}
	action := req.Remainder
	if action == "" {
		action = RemainderKeep
	}

	proof, density := c.Fill.Proof, gauge.DensityOf(c.Fill.Proof)
	available := c.Fill.WineGallons
	wgBottled := gauge.BottledWineGallons(req.Bottles, req.BottleSizeML)
	lbsBottled := wgBottled.Mul(density).Round(2)
	pgBottled := gauge.ProofGallonsOf(wgBottled, proof).Round(3)
	label := fmt.Sprintf("%d x %dmL", req.Bottles, req.BottleSizeML)
	now := s.now()

	diff := wgBottled.Sub(available)
	switch {
	case diff.GreaterThan(gauge.Tolerance):
		gainLbs := diff.Mul(density).Round(2)
		gain := s.entry(EntryBottlingGain, c)
		gain.NetWeightLbsChange = gainLbs
		gain.ProofGallonsChange = gauge.ProofGallonsOf(diff, proof).Round(3)
		gain.Notes = fmt.Sprintf("Gain of %s WG recorded during bottling.", diff.StringFixed(2))

		empty := s.entry(EntryBottleEmpty, c)
		empty.NetWeightLbsChange = c.Fill.NetWeightLbs.Neg()
		empty.ProofGallonsChange = c.Fill.ProofGallons.Neg()
		empty.Notes = fmt.Sprintf("Bottled %s. Container emptied with gain.", label)

		return s.commit(ctx, op, WriteSet{
			Containers: []ContainerWrite{s.update(c, s.ledger.Empty(c, now))},
			Append:     []Entry{gain, empty},
		})

	case diff.Abs().LessThanOrEqual(gauge.Tolerance):
		empty := s.entry(EntryBottleEmpty, c)
		empty.NetWeightLbsChange = c.Fill.NetWeightLbs.Neg()
		empty.ProofGallonsChange = c.Fill.ProofGallons.Neg()
		empty.Notes = fmt.Sprintf("Bottled %s. Container emptied.", label)

		return s.commit(ctx, op, WriteSet{
			Containers: []ContainerWrite{s.update(c, s.ledger.Empty(c, now))},
			Append:     []Entry{empty},
		})
	}

	partial := s.entry(EntryBottlePartial, c)
	partial.NetWeightLbsChange = lbsBottled.Neg()
	partial.ProofGallonsChange = pgBottled.Neg()
	partial.Notes = fmt.Sprintf("Bottled %s units.", label)
	entries := []Entry{partial}

	var next Container
	switch action {
	case RemainderKeep:
		next = s.ledger.ApplyDelta(c, lbsBottled.Neg(), now)

	case RemainderLoss:
		loss := s.entry(EntryBottlingLoss, c)
		loss.NetWeightLbsChange = c.Fill.NetWeightLbs.Sub(lbsBottled).Neg()
		loss.ProofGallonsChange = c.Fill.ProofGallons.Sub(pgBottled).Neg()
		loss.Notes = fmt.Sprintf("Remainder of %s WG written off as loss.", available.Sub(wgBottled).StringFixed(2))
		entries = append(entries, loss)
		next = s.ledger.Empty(c, now)

	case RemainderAdjust:
		if req.Adjustment.IsNegative() {
			return Result{}, invalid(op, "adjustment", "adjustment must be a positive number of wine gallons")
		}
		wg := req.Adjustment
		kind, word := EntryBottlingLoss, "loss"
		if req.AdjustmentGain {
			kind, word = EntryBottlingGain, "gain"
		} else {
			wg = wg.Neg()
		}
		adj := s.entry(kind, c)
		adj.NetWeightLbsChange = wg.Mul(density).Round(2)
		adj.ProofGallonsChange = gauge.ProofGallonsOf(wg.Abs(), proof).Round(3)
		if wg.IsNegative() {
			adj.ProofGallonsChange = adj.ProofGallonsChange.Neg()
		}
		adj.Notes = fmt.Sprintf("Manual bottling %s: %s WG.", word, req.Adjustment.StringFixed(2))
		entries = append(entries, adj)
		next = s.ledger.Empty(c, now)

	default:
		return Result{}, invalid(op, "remainder", "unknown remainder action %q", action)
	}

	return s.commit(ctx, op, WriteSet{
		Containers: []ContainerWrite{s.update(c, next)},
		Append:     entries,
	})
}

func (s *Service) knownBottleSize(ml int) bool {
	if len(s.bottleSizes) == 0 {
		return true
	}
	for _, size := range s.bottleSizes {
		if size == ml {
			return true
		}
	}
	return false
}
