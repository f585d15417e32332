package gauge

import "github.com/shopspring/decimal"

// =============================================================================
// CONVERSIONS
// =============================================================================

// FromWeight derives a measure from a scale reading. The gross reading is
// kept as given; a reading below tare yields zero net.
func FromWeight(tare, gross, proof decimal.Decimal) Measure {
	net := decimal.Max(decimal.Zero, gross.Sub(tare))
	density := DensityOf(proof)
	wg := decimal.Zero
	if density.IsPositive() {
		wg = net.Div(density)
	}
	return Measure{
		Proof:          proof,
		NetWeightLbs:   net,
		GrossWeightLbs: gross,
		WineGallons:    wg,
		ProofGallons:   ProofGallonsOf(wg, proof),
		SpiritDensity:  density,
	}.rounded()
}

// FromNetWeight is FromWeight for a known net weight. Negative net is
// treated as empty.
func FromNetWeight(net, proof, tare decimal.Decimal) Measure {
	return FromWeight(tare, tare.Add(decimal.Max(decimal.Zero, net)), proof)
}

// FromWineGallons derives a measure from a volume.
func FromWineGallons(wg, proof, tare decimal.Decimal) Measure {
	wg = decimal.Max(decimal.Zero, wg)
	density := DensityOf(proof)
	net := wg.Mul(density)
	return Measure{
		Proof:          proof,
		NetWeightLbs:   net,
		GrossWeightLbs: net.Add(tare),
		WineGallons:    wg,
		ProofGallons:   ProofGallonsOf(wg, proof),
		SpiritDensity:  density,
	}.rounded()
}

// FromProofGallons derives a measure from an alcohol-adjusted volume. At
// proof 0 there is no volume that holds any proof gallons, so the result is
// empty.
func FromProofGallons(pg, proof, tare decimal.Decimal) Measure {
	wg := decimal.Zero
	if proof.IsPositive() {
		wg = pg.Div(proof.Div(hundred))
	}
	return FromWineGallons(wg, proof, tare)
}

// Resolve dispatches a Quantity to the matching conversion.
func Resolve(q Quantity, proof, tare decimal.Decimal) Measure {
	switch q.Unit {
	case UnitGrossPounds:
		return FromWeight(tare, q.Value, proof)
	case UnitNetPounds:
		return FromNetWeight(q.Value, proof, tare)
	case UnitWineGallons:
		return FromWineGallons(q.Value, proof, tare)
	case UnitProofGallons:
		return FromProofGallons(q.Value, proof, tare)
	}
	return FromWeight(tare, tare, proof)
}

// NetWeightOf converts a quantity to pounds net at proof. A gross reading is
// taken against tare.
func NetWeightOf(q Quantity, proof, tare decimal.Decimal) decimal.Decimal {
	if q.Unit == UnitNetPounds {
		return q.Value
	}
	return Resolve(q, proof, tare).NetWeightLbs
}
