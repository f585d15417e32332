/*
Package gauge provides the quantity conversion engine for bulk spirits.

PURPOSE:
  Converts between the three ways a quantity of spirit is expressed on the
  floor: weight on the scale (pounds), volume (wine gallons), and alcohol
  content (proof gallons). Every container state change in the inventory
  package is computed here, so there is exactly one density model and one
  rounding policy in the whole system.

KEY CONCEPTS IN THIS FILE (types.go):
  - Measure: the full five-value description of a quantity
  - Unit / Quantity: a tagged value expressed in exactly one unit
  - Strength: an observed proof with an optional temperature reading

DESIGN PRINCIPLES:
  1. Pure: no storage, no clock, no I/O
  2. Precision: decimal.Decimal everywhere, rounded only on output
  3. One model: FromWeight, FromWineGallons and FromProofGallons all share
     DensityOf, so round-tripping between representations is lossless up
     to rounding
  4. No validation: proof outside [0,200] is the caller's problem. Negative
     proof is clamped to zero, nothing is rejected.

USAGE:
  m := gauge.FromWeight(tare, gross, proof)
  m  = gauge.Resolve(gauge.ProofGallons(pg), proof, tare)

SEE ALSO:
  - density.go: DensityOf and the physical constants
  - convert.go: FromWeight / FromWineGallons / FromProofGallons / Resolve
  - correction.go: temperature correction table and Engine
*/
package gauge

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// =============================================================================
// MEASURE - All representations of one quantity
// =============================================================================

// Measure is the result of every conversion. Weights are rounded to 2 places,
// volumes and density to 3.
type Measure struct {
	Proof          decimal.Decimal
	NetWeightLbs   decimal.Decimal
	GrossWeightLbs decimal.Decimal
	WineGallons    decimal.Decimal
	ProofGallons   decimal.Decimal
	SpiritDensity  decimal.Decimal
}

// In returns the measure expressed in unit u.
func (m Measure) In(u Unit) decimal.Decimal {
	switch u {
	case UnitGrossPounds:
		return m.GrossWeightLbs
	case UnitNetPounds:
		return m.NetWeightLbs
	case UnitWineGallons:
		return m.WineGallons
	case UnitProofGallons:
		return m.ProofGallons
	}
	return decimal.Zero
}

// IsEmpty reports whether the net weight is within Tolerance of zero.
func (m Measure) IsEmpty() bool {
	return m.NetWeightLbs.LessThanOrEqual(Tolerance)
}

func (m Measure) rounded() Measure {
	return Measure{
		Proof:          m.Proof,
		NetWeightLbs:   m.NetWeightLbs.Round(weightPlaces),
		GrossWeightLbs: m.GrossWeightLbs.Round(weightPlaces),
		WineGallons:    m.WineGallons.Round(volumePlaces),
		ProofGallons:   m.ProofGallons.Round(volumePlaces),
		SpiritDensity:  m.SpiritDensity.Round(volumePlaces),
	}
}

// =============================================================================
// QUANTITY - Tagged union of the supported input units
// =============================================================================

type Unit string

const (
	UnitGrossPounds  Unit = "gross_lbs"
	UnitNetPounds    Unit = "net_lbs"
	UnitWineGallons  Unit = "wine_gallons"
	UnitProofGallons Unit = "proof_gallons"
)

// ParseUnit accepts the canonical unit names plus a few common aliases.
func ParseUnit(s string) (Unit, error) {
	switch s {
	case "gross_lbs", "gross", "grossWeightLbs":
		return UnitGrossPounds, nil
	case "net_lbs", "net", "weight", "netWeightLbs":
		return UnitNetPounds, nil
	case "wine_gallons", "wg", "wineGallons":
		return UnitWineGallons, nil
	case "proof_gallons", "pg", "proofGallons":
		return UnitProofGallons, nil
	}
	return "", fmt.Errorf("unknown unit %q", s)
}

// IsVolume reports whether converting the unit to weight depends on proof.
func (u Unit) IsVolume() bool {
	return u == UnitWineGallons || u == UnitProofGallons
}

// Label is the human-readable unit name used in error messages.
func (u Unit) Label() string {
	switch u {
	case UnitGrossPounds:
		return "lbs gross"
	case UnitNetPounds:
		return "lbs"
	case UnitWineGallons:
		return "wine gallons"
	case UnitProofGallons:
		return "proof gallons"
	}
	return string(u)
}

// Quantity is a value in exactly one unit.
type Quantity struct {
	Unit  Unit            `json:"unit"`
	Value decimal.Decimal `json:"value"`
}

func GrossWeight(lbs decimal.Decimal) Quantity  { return Quantity{Unit: UnitGrossPounds, Value: lbs} }
func NetWeight(lbs decimal.Decimal) Quantity    { return Quantity{Unit: UnitNetPounds, Value: lbs} }
func WineGallons(gal decimal.Decimal) Quantity  { return Quantity{Unit: UnitWineGallons, Value: gal} }
func ProofGallons(gal decimal.Decimal) Quantity { return Quantity{Unit: UnitProofGallons, Value: gal} }

func (q Quantity) String() string {
	return fmt.Sprintf("%s %s", q.Value.String(), q.Unit.Label())
}

// =============================================================================
// STRENGTH - Observed proof plus optional temperature
// =============================================================================

// Strength is a proof reading as taken. When TemperatureF is set, an Engine
// maps it through its correction table to a true proof.
type Strength struct {
	Proof        decimal.Decimal
	TemperatureF decimal.NullDecimal
}

// AtProof is a strength that needs no temperature correction.
func AtProof(proof decimal.Decimal) Strength {
	return Strength{Proof: proof}
}

// Observed is a hydrometer reading taken at tempF.
func Observed(proof, tempF decimal.Decimal) Strength {
	return Strength{Proof: proof, TemperatureF: decimal.NewNullDecimal(tempF)}
}
