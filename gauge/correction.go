package gauge

import "github.com/shopspring/decimal"

// =============================================================================
// TEMPERATURE CORRECTION
// =============================================================================

var (
	two  = decimal.NewFromInt(2)
	five = decimal.NewFromInt(5)
)

// CorrectionTable maps temperature (°F, even degrees) to observed proof
// (multiples of 5) to the number of proof degrees to add.
type CorrectionTable map[int]map[int]decimal.Decimal

// Correction looks up the adjustment for a reading. Temperature is rounded to
// the nearest even degree and proof to the nearest 5; a missing row or column
// means no correction.
func (t CorrectionTable) Correction(observedProof, tempF decimal.Decimal) decimal.Decimal {
	if t == nil {
		return decimal.Zero
	}
	temp := int(tempF.Div(two).Round(0).Mul(two).IntPart())
	proof := int(observedProof.Div(five).Round(0).Mul(five).IntPart())
	row, ok := t[temp]
	if !ok {
		return decimal.Zero
	}
	c, ok := row[proof]
	if !ok {
		return decimal.Zero
	}
	return c
}

// TrueProof applies the correction and clamps to [0,200].
func (t CorrectionTable) TrueProof(observedProof, tempF decimal.Decimal) decimal.Decimal {
	p := observedProof.Add(t.Correction(observedProof, tempF))
	if p.IsNegative() {
		return decimal.Zero
	}
	if p.GreaterThan(MaxProof) {
		return MaxProof
	}
	return p
}

// =============================================================================
// ENGINE - Conversions with a correction table bound in
// =============================================================================

// Engine is the conversion entry point used by orchestrators. The zero value
// applies no temperature correction.
type Engine struct {
	Corrections CorrectionTable
}

// TrueProof resolves a strength reading to the proof all later math uses.
func (e Engine) TrueProof(s Strength) decimal.Decimal {
	if !s.TemperatureF.Valid {
		return s.Proof
	}
	return e.Corrections.TrueProof(s.Proof, s.TemperatureF.Decimal)
}

// Resolve converts q at the true proof of s.
func (e Engine) Resolve(q Quantity, s Strength, tare decimal.Decimal) Measure {
	return Resolve(q, e.TrueProof(s), tare)
}
