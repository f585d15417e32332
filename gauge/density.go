package gauge

import "github.com/shopspring/decimal"

// =============================================================================
// CONSTANTS
// =============================================================================

var (
	// WaterDensity is pounds per gallon of water (proof 0).
	WaterDensity = decimal.RequireFromString("8.328")

	// EthanolDensity is pounds per gallon of pure ethanol (proof 200).
	EthanolDensity = decimal.RequireFromString("6.58")

	// MaxProof is absolute alcohol.
	MaxProof = decimal.NewFromInt(200)

	// Tolerance is the boundary used for every "is it empty / is it the
	// same amount" comparison: 0.001 in whatever unit is being compared.
	Tolerance = decimal.RequireFromString("0.001")

	// MLPerGallon converts bottle volumes to wine gallons.
	MLPerGallon = decimal.RequireFromString("3785.411784")

	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

const (
	weightPlaces = 2
	volumePlaces = 3
	proofPlaces  = 2
)

// =============================================================================
// DENSITY MODEL
// =============================================================================

// DensityOf returns lbs/gallon of an ethanol/water mixture at proof.
//
// Linear mixing of the component densities by volume fraction:
//
//	density = (proof/200)*ethanol + (1 - proof/200)*water
//
// Strictly decreasing in proof. Negative proof is treated as water; proof
// above 200 is extrapolated, not rejected.
func DensityOf(proof decimal.Decimal) decimal.Decimal {
	proof = clampProof(proof)
	ethanolFraction := proof.Div(MaxProof)
	waterFraction := one.Sub(ethanolFraction)
	return ethanolFraction.Mul(EthanolDensity).Add(waterFraction.Mul(WaterDensity))
}

// WaterWeight converts gallons of added water to pounds.
func WaterWeight(gallons decimal.Decimal) decimal.Decimal {
	return gallons.Mul(WaterDensity)
}

// ProofGallonsOf is wineGallons * proof/100.
func ProofGallonsOf(wineGallons, proof decimal.Decimal) decimal.Decimal {
	return wineGallons.Mul(clampProof(proof)).Div(hundred)
}

// BottledWineGallons converts a bottle run to wine gallons.
func BottledWineGallons(bottles int, sizeML int) decimal.Decimal {
	return decimal.NewFromInt(int64(bottles)).Mul(decimal.NewFromInt(int64(sizeML))).Div(MLPerGallon)
}

// WeightedProof blends two lots by net weight, rounded to 2 places.
func WeightedProof(proofA, netA, proofB, netB decimal.Decimal) decimal.Decimal {
	total := netA.Add(netB)
	if !total.IsPositive() {
		return decimal.Zero
	}
	return proofA.Mul(netA).Add(proofB.Mul(netB)).Div(total).Round(proofPlaces)
}

func clampProof(proof decimal.Decimal) decimal.Decimal {
	if proof.IsNegative() {
		return decimal.Zero
	}
	return proof
}
