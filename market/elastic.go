package market

import (
	"math"

	"github.com/pthm-cable/agora/config"
	"github.com/pthm-cable/agora/econ"
)

// Elasticity exponent range; sensitivity interpolates between them.
const (
	minExponent = 0.25
	maxExponent = 3.0
)

// logitEpsilon keeps the band-position logit finite at the band edges.
const logitEpsilon = 1e-6

// Breakdown carries every intermediate of one elastic price computation,
// enough to reconstruct why a price moved.
type Breakdown struct {
	Supply   float64 // after flooring to >= 1
	Demand   float64 // after flooring to >= 1
	Ratio    float64
	Exponent float64
	Raw      float64 // vanilla * ratio^exponent
	Anchored float64 // raw pulled toward vanilla
	MinPrice float64 // band lower bound
	MaxPrice float64 // band upper bound
	Bias     float64 // logit of vanilla's band position
	Sigma    float64 // logistic band compression
	Elastic  float64 // price inside the band
	Blended  float64 // after external influence
	Final    float64
	Bypass   bool // sentinel resource or non-positive vanilla
	Fallback bool // non-finite value in the chain
}

// Elastic maps a vanilla price and a supply/demand pair to a bounded
// adjusted price. Pure: identical arguments produce identical results.
// Currency, the no-resource sentinel and non-positive vanilla prices
// pass through unchanged; any non-finite intermediate short-circuits to
// the vanilla price.
func Elastic(r econ.Resource, vanilla, supply, demand float64, cfg *config.MarketConfig) (float64, Breakdown) {
	if !r.Tradeable() || vanilla <= 0 {
		return vanilla, Breakdown{Final: vanilla, Bypass: true}
	}
	if !econ.Finite(vanilla, supply, demand) {
		return vanilla, Breakdown{Final: vanilla, Fallback: true}
	}

	bd := Breakdown{
		Supply:   math.Max(1, supply),
		Demand:   math.Max(1, demand),
		Exponent: econ.Lerp(minExponent, maxExponent, cfg.Sensitivity),
	}
	bd.Ratio = bd.Demand / bd.Supply
	bd.Raw = vanilla * math.Pow(bd.Ratio, bd.Exponent)
	bd.Anchored = econ.Lerp(bd.Raw, vanilla, cfg.PriceAnchoringStrength)

	bd.MinPrice = vanilla * cfg.MinPriceMultiplier
	bd.MaxPrice = vanilla * cfg.MaxPriceMultiplier
	if bd.MinPrice > bd.MaxPrice {
		bd.MinPrice, bd.MaxPrice = bd.MaxPrice, bd.MinPrice
	}
	bandWidth := bd.MaxPrice - bd.MinPrice
	halfBand := bandWidth / 2

	// Center the logistic curve on vanilla's position within the band so
	// a balanced market maps back to the vanilla price.
	pos := econ.Clamp((vanilla-bd.MinPrice)/bandWidth, logitEpsilon, 1-logitEpsilon)
	bd.Bias = econ.Logit(pos)
	arg := econ.Clamp((bd.Anchored-vanilla)/(cfg.LogisticSmoothingScale*halfBand)+bd.Bias, -60, 60)
	bd.Sigma = econ.Sigmoid(arg)
	bd.Elastic = bd.MinPrice + bandWidth*bd.Sigma

	bd.Blended = econ.Lerp(bd.Elastic, vanilla, cfg.ExternalPriceInfluence)
	bd.Final = econ.Clamp(bd.Blended, bd.MinPrice, bd.MaxPrice)

	if !econ.Finite(bd.Raw, bd.Anchored, bd.Elastic, bd.Blended, bd.Final) {
		return vanilla, Breakdown{Final: vanilla, Fallback: true}
	}
	return bd.Final, bd
}
