package inventory

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/spirits-ledger/gauge"
)

// =============================================================================
// CONTAINER LEDGER - Fill/empty state machine
// =============================================================================
//
//	empty  --(net > 0.001)-->  filled
//	filled --(net > 0.001)-->  filled
//	filled --(net <= 0.001)--> empty
//
// Every method returns a new Container; the input is never modified.

// Capacities maps a container type to its nominal capacity in wine gallons.
// A missing or zero entry means the type is not capacity-checked.
type Capacities map[ContainerType]decimal.Decimal

// Ledger computes container snapshots from quantity changes.
type Ledger struct {
	Gauge      gauge.Engine
	Capacities Capacities
}

// FillSpec describes new contents for a container.
type FillSpec struct {
	Quantity    gauge.Quantity
	Strength    gauge.Strength
	ProductType string
	Account     Account
	FillDate    *time.Time
}

// Measure returns the container's current contents as a gauge measure.
func (c Container) Measure() gauge.Measure {
	return gauge.Measure{
		Proof:          c.Fill.Proof,
		NetWeightLbs:   c.Fill.NetWeightLbs,
		GrossWeightLbs: c.Fill.GrossWeightLbs,
		WineGallons:    c.Fill.WineGallons,
		ProofGallons:   c.Fill.ProofGallons,
		SpiritDensity:  c.Fill.SpiritDensity,
	}
}

// ApplyFill replaces the container's contents from scratch.
func (l Ledger) ApplyFill(c Container, spec FillSpec, now time.Time) (Container, gauge.Measure) {
	m := l.Gauge.Resolve(spec.Quantity, spec.Strength, c.TareWeightLbs)

	next := c
	next.Fill.ProductType = spec.ProductType
	next.Fill.Account = spec.Account
	if next.Fill.Account == "" {
		next.Fill.Account = AccountStorage
	}
	next.Fill.ObservedProof = decimal.NullDecimal{}
	next.Fill.TemperatureF = spec.Strength.TemperatureF
	if spec.Strength.TemperatureF.Valid {
		next.Fill.ObservedProof = decimal.NewNullDecimal(spec.Strength.Proof)
	}
	fillDate := spec.FillDate
	if fillDate == nil {
		fillDate = dateOf(now)
	}
	next.Fill.FillDate = fillDate

	if m.IsEmpty() {
		return l.Empty(next, now), m
	}
	return setMeasure(next, m), m
}

// ApplyDelta adds netDelta pounds at the container's current proof.
func (l Ledger) ApplyDelta(c Container, netDelta decimal.Decimal, now time.Time) Container {
	net := c.Fill.NetWeightLbs.Add(netDelta)
	m := gauge.FromNetWeight(decimal.Max(decimal.Zero, net), c.Fill.Proof, c.TareWeightLbs)
	if m.IsEmpty() {
		return l.Empty(c, now)
	}
	return setMeasure(c, m)
}

// ApplyMeasure sets the container's contents to m, emptying it if m is empty.
func (l Ledger) ApplyMeasure(c Container, m gauge.Measure, now time.Time) Container {
	if m.IsEmpty() {
		return l.Empty(c, now)
	}
	return setMeasure(c, m)
}

// Empty zeroes the contents. Product and account are kept for reference.
func (l Ledger) Empty(c Container, now time.Time) Container {
	next := c
	next.Status = StatusEmpty
	next.Fill.Proof = decimal.Zero
	next.Fill.NetWeightLbs = decimal.Zero
	next.Fill.GrossWeightLbs = c.TareWeightLbs
	next.Fill.WineGallons = decimal.Zero
	next.Fill.ProofGallons = decimal.Zero
	next.Fill.SpiritDensity = decimal.Zero
	next.Fill.ObservedProof = decimal.NullDecimal{}
	next.Fill.TemperatureF = decimal.NullDecimal{}
	next.Fill.EmptiedDate = dateOf(now)
	return next
}

// Capacity returns the nominal capacity of the container's type.
func (l Ledger) Capacity(t ContainerType) decimal.Decimal {
	return l.Capacities[t]
}

// CheckCapacity fails when wineGallons would exceed the container's capacity.
func (l Ledger) CheckCapacity(op string, c Container, wineGallons decimal.Decimal) error {
	limit := l.Capacity(c.Type)
	if !limit.IsPositive() {
		return nil
	}
	if wineGallons.GreaterThan(limit.Add(gauge.Tolerance)) {
		return invalid(op, "wineGallons", "resulting volume of %s wine gallons exceeds %s capacity of %s wine gallons",
			wineGallons.StringFixed(2), c.Name, limit.StringFixed(2))
	}
	return nil
}

func setMeasure(c Container, m gauge.Measure) Container {
	next := c
	next.Status = StatusFilled
	next.Fill.Proof = m.Proof
	next.Fill.NetWeightLbs = m.NetWeightLbs
	next.Fill.GrossWeightLbs = m.GrossWeightLbs
	next.Fill.WineGallons = m.WineGallons
	next.Fill.ProofGallons = m.ProofGallons
	next.Fill.SpiritDensity = m.SpiritDensity
	next.Fill.EmptiedDate = nil
	return next
}

func dateOf(t time.Time) *time.Time {
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
	return &d
}
