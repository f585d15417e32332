package inventory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/spirits-ledger/gauge"
)

type FillMode string

const (
	// FillRefill puts new spirit into an empty container.
	FillRefill FillMode = "refill"
	// FillEdit re-derives the fill of any container, e.g. after a re-gauge.
	FillEdit FillMode = "edit"
)

type FillRequest struct {
	ContainerID ContainerID
	Mode        FillMode
	FillSpec
	Notes string
}

// Fill replaces a container's contents from one measured quantity. The log
// entry type depends on the mode and on the status before and after.
func (s *Service) Fill(ctx context.Context, req FillRequest) (res Result, err error) {
	op := "fill_" + string(req.Mode)
	defer s.observe(op, time.Now(), &err)

	if req.Mode != FillRefill && req.Mode != FillEdit {
		return Result{}, invalid(op, "mode", "unknown fill mode %q", req.Mode)
	}
	c, err := s.liveContainer(ctx, req.ContainerID)
	if err != nil {
		return Result{}, err
	}
	if req.Mode == FillRefill && c.IsFilled() {
		return Result{}, invalid(op, "containerId", "container %s is not empty", c.Name)
	}
	if err := s.validateFill(op, req.FillSpec); err != nil {
		return Result{}, err
	}

	next, m := s.ledger.ApplyFill(c, req.FillSpec, s.now())
	if req.Mode == FillRefill && !next.IsFilled() {
		return Result{}, invalid(op, "amount", "refill amount must be greater than 0")
	}
	if err := s.ledger.CheckCapacity(op, next, next.Fill.WineGallons); err != nil {
		return Result{}, err
	}

	t := classifyFill(req.Mode, c.Status, next.Status)
	e := s.entry(t, next)
	if !next.IsFilled() {
		e.ProductType = c.Fill.ProductType
		e.Proof = c.Fill.Proof
	}
	e.NetWeightLbsChange = next.Fill.NetWeightLbs.Sub(c.Fill.NetWeightLbs)
	e.ProofGallonsChange = next.Fill.ProofGallons.Sub(c.Fill.ProofGallons)
	if c.IsFilled() {
		e.PriorProof = decimal.NewNullDecimal(c.Fill.Proof)
	}
	e.Notes = noteOr(req.Notes, fillNote(t, m))

	return s.commit(ctx, op, WriteSet{
		Containers: []ContainerWrite{s.update(c, next)},
		Append:     []Entry{e},
	})
}

func classifyFill(mode FillMode, before, after Status) EntryType {
	if mode == FillRefill {
		return EntryRefillContainer
	}
	switch {
	case before == StatusEmpty && after == StatusFilled:
		return EntryEditFillFromEmpty
	case before == StatusFilled && after == StatusEmpty:
		return EntryEditEmptyFromFilled
	}
	return EntryEditFillDataCorrection
}

func fillNote(t EntryType, m gauge.Measure) string {
	switch t {
	case EntryRefillContainer:
		return fmt.Sprintf("Refilled with %s PG at %s proof.", m.ProofGallons.StringFixed(3), m.Proof.String())
	case EntryEditEmptyFromFilled:
		return "Fill data edited: container marked empty."
	}
	return fmt.Sprintf("Fill data edited: %s lbs net, %s PG.", m.NetWeightLbs.StringFixed(2), m.ProofGallons.StringFixed(3))
}

// validateFill checks a FillSpec before conversion.
func (s *Service) validateFill(op string, spec FillSpec) error {
	if err := quantityUnit(op, spec.Quantity); err != nil {
		return err
	}
	if err := validateProof(op, spec.Strength.Proof); err != nil {
		return err
	}
	if spec.Strength.TemperatureF.Valid && spec.Strength.TemperatureF.Decimal.IsNegative() {
		return invalid(op, "temperatureF", "temperature cannot be negative")
	}
	if spec.Quantity.Unit.IsVolume() && spec.Quantity.Value.IsPositive() && !spec.Strength.Proof.IsPositive() {
		return invalid(op, "proof", "proof must be greater than 0 to fill by %s", spec.Quantity.Unit.Label())
	}
	if spec.Account != "" && !spec.Account.Valid() {
		return invalid(op, "account", "unknown account %q", spec.Account)
	}
	if spec.Quantity.Value.IsPositive() && strings.TrimSpace(spec.ProductType) == "" {
		return invalid(op, "productType", "product type is required")
	}
	return nil
}
