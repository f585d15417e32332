/*
undo.go - Reversing and removing transaction log entries

PURPOSE:
  Undo applies the inverse of an eligible entry to its container. Remove
  deletes an entry and leaves every container alone.

ELIGIBILITY:
  An entry can be undone when all of these hold:
    - its type is in the undoable set (EntryType.Undoable)
    - its container still exists and is not retired
    - it is no older than the retention window (30 days by default)
    - it has not already been reversed

INVERSE:
  The entry's net weight change is negated and applied at the container's
  current proof, not the proof at the time of the entry. Two exceptions:
    - PROOF_DOWN removes the water and restores the prior proof
    - an empty container is refilled at the entry's proof and product
  Paired entries (TRANSFER_OUT/TRANSFER_IN) are independent: undoing one
  side leaves the other container untouched.

STRATEGIES:
  HardUndo deletes the original entry. SoftUndo keeps it and appends an
  UNDO_REVERSAL entry pointing at it.

REMOVE:
  Remove never touches containers, so afterwards the log no longer sums to
  the container's contents. CheckConsistency will report it.
*/
package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/spirits-ledger/gauge"
)

// =============================================================================
// STRATEGY
// =============================================================================

// UndoStrategy decides how an undo is written to the log.
type UndoStrategy interface {
	Name() string
	// Record returns the entries to append and delete given the original
	// entry and the reversal that was applied to its container.
	Record(original, reversal Entry) (appendEntries []Entry, deleteIDs []EntryID)
}

// HardUndo deletes the original entry.
type HardUndo struct{}

func (HardUndo) Name() string { return "hard" }

func (HardUndo) Record(original, _ Entry) ([]Entry, []EntryID) {
	return nil, []EntryID{original.ID}
}

// SoftUndo keeps the original and appends the reversal.
type SoftUndo struct{}

func (SoftUndo) Name() string { return "soft" }

func (SoftUndo) Record(_, reversal Entry) ([]Entry, []EntryID) {
	return []Entry{reversal}, nil
}

// ParseUndoMode maps "hard" or "soft" to a strategy.
func ParseUndoMode(mode string) (UndoStrategy, error) {
	switch mode {
	case "", "hard":
		return HardUndo{}, nil
	case "soft":
		return SoftUndo{}, nil
	}
	return nil, fmt.Errorf("unknown undo mode %q", mode)
}

// =============================================================================
// ELIGIBILITY
// =============================================================================

type Eligibility struct {
	EntryID   EntryID
	Undoable  bool
	Reason    string
	ExpiresAt time.Time
}

// Eligibility reports whether an entry can be undone right now.
func (s *Service) Eligibility(ctx context.Context, id EntryID) (Eligibility, error) {
	e, err := s.Entry(ctx, id)
	if err != nil {
		return Eligibility{}, err
	}
	el, _, err := s.eligibility(ctx, *e)
	return el, err
}

func (s *Service) eligibility(ctx context.Context, e Entry) (Eligibility, Container, error) {
	el := Eligibility{EntryID: e.ID, ExpiresAt: e.Timestamp.Add(s.retention)}

	if !e.Type.Undoable() {
		el.Reason = fmt.Sprintf("%s entries cannot be undone", e.Type)
		return el, Container{}, nil
	}
	if e.ContainerID == "" {
		el.Reason = "entry has no container"
		return el, Container{}, nil
	}
	c, err := s.store.GetContainer(ctx, e.ContainerID)
	if err != nil {
		return el, Container{}, err
	}
	if c == nil || c.Retired {
		el.Reason = fmt.Sprintf("container %s no longer exists", e.ContainerName)
		return el, Container{}, nil
	}
	if s.now().After(el.ExpiresAt) {
		el.Reason = fmt.Sprintf("entry is older than %d days", int(s.retention.Hours()/24))
		return el, *c, nil
	}
	rev, err := s.store.ReversalOf(ctx, e.ID)
	if err != nil {
		return el, *c, err
	}
	if rev != nil {
		el.Reason = "entry has already been undone"
		return el, *c, nil
	}
	el.Undoable = true
	return el, *c, nil
}

// =============================================================================
// UNDO
// =============================================================================

// Undo reverses an eligible entry on its container.
func (s *Service) Undo(ctx context.Context, id EntryID) (res Result, err error) {
	const op = "undo"
	defer s.observe(op, time.Now(), &err)

	e, err := s.Entry(ctx, id)
	if err != nil {
		return Result{}, err
	}
	el, c, err := s.eligibility(ctx, *e)
	if err != nil {
		return Result{}, err
	}
	if !el.Undoable {
		return Result{}, &EligibilityError{EntryID: e.ID, Reason: el.Reason}
	}

	next, err := s.reverse(op, c, *e)
	if err != nil {
		return Result{}, err
	}

	rev := s.entry(EntryUndoReversal, c)
	rev.ProductType = e.ProductType
	rev.Proof = next.Fill.Proof
	rev.NetWeightLbsChange = next.Fill.NetWeightLbs.Sub(c.Fill.NetWeightLbs)
	rev.ProofGallonsChange = next.Fill.ProofGallons.Sub(c.Fill.ProofGallons)
	rev.ReversesEntryID = e.ID
	rev.Notes = fmt.Sprintf("Undo of %s entry %s.", e.Type, e.ID)

	appendEntries, deleteIDs := s.undo.Record(*e, rev)
	return s.commit(ctx, op, WriteSet{
		Containers: []ContainerWrite{s.update(c, next)},
		Append:     appendEntries,
		Delete:     deleteIDs,
	})
}

// reverse computes the container after undoing e.
func (s *Service) reverse(op string, c Container, e Entry) (Container, error) {
	now := s.now()

	if !e.Type.ChangesContents() {
		return c, nil
	}
	if e.Type == EntryProofDown {
		if !c.IsFilled() {
			return Container{}, invalid(op, "entryId", "container %s is empty", c.Name)
		}
		if !e.PriorProof.Valid {
			return Container{}, invalid(op, "entryId", "entry does not record the proof before dilution")
		}
		net := c.Fill.NetWeightLbs.Sub(e.NetWeightLbsChange)
		if net.LessThan(gauge.Tolerance.Neg()) {
			return Container{}, invalid(op, "entryId", "container %s holds less water than the entry added", c.Name)
		}
		m := gauge.FromNetWeight(decimal.Max(decimal.Zero, net), e.PriorProof.Decimal, c.TareWeightLbs)
		return s.ledger.ApplyMeasure(c, m, now), nil
	}

	delta := e.NetWeightLbsChange.Neg()
	switch {
	case delta.IsNegative():
		if delta.Abs().GreaterThan(c.Fill.NetWeightLbs.Add(gauge.Tolerance)) {
			return Container{}, invalid(op, "entryId", "container %s holds only %s lbs, cannot remove %s lbs",
				c.Name, c.Fill.NetWeightLbs.StringFixed(2), delta.Abs().StringFixed(2))
		}
		return s.ledger.ApplyDelta(c, delta, now), nil

	case delta.IsPositive():
		var next Container
		if c.IsFilled() {
			next = s.ledger.ApplyDelta(c, delta, now)
		} else {
			next, _ = s.ledger.ApplyFill(c, FillSpec{
				Quantity:    gauge.NetWeight(delta),
				Strength:    gauge.AtProof(e.Proof),
				ProductType: e.ProductType,
				Account:     c.Fill.Account,
				FillDate:    c.Fill.FillDate,
			}, now)
		}
		if err := s.ledger.CheckCapacity(op, next, next.Fill.WineGallons); err != nil {
			return Container{}, err
		}
		return next, nil
	}
	return c, nil
}

// =============================================================================
// REMOVE
// =============================================================================

// Remove deletes a log entry without touching any container.
func (s *Service) Remove(ctx context.Context, id EntryID) (res Result, err error) {
	const op = "remove_entry"
	defer s.observe(op, time.Now(), &err)

	e, err := s.Entry(ctx, id)
	if err != nil {
		return Result{}, err
	}
	return s.commit(ctx, op, WriteSet{Delete: []EntryID{e.ID}})
}
