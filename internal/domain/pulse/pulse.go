// Package pulse maps net demand onto a bounded 0..100 pressure index.
package pulse

import "math"

// DefaultLiquidity is k, the demand per seat that moves pulse by one logit.
const DefaultLiquidity = 5.0

// Neutral is the pulse of an opportunity with no net demand.
const Neutral = 50.0

// Transform converts demand to pulse for a fixed liquidity constant.
type Transform struct {
	K float64
}

// New returns a Transform; a non-positive k falls back to the default.
func New(k float64) Transform {
	if k <= 0 || math.IsNaN(k) || math.IsInf(k, 0) {
		k = DefaultLiquidity
	}
	return Transform{K: k}
}

// Liquidity returns L = k·max(1, capacity).
func (t Transform) Liquidity(capacity int) float64 {
	return t.K * float64(max(1, capacity))
}

// Of returns 100·sigmoid(d/L).
func (t Transform) Of(d float64, capacity int) float64 {
	return 100 * Sigmoid(d/t.Liquidity(capacity))
}

// Centered rescales a pulse value to [-0.5, 0.5] for use as a model feature.
func Centered(p float64) float64 {
	return (p - Neutral) / 100
}

// Sigmoid is the logistic function, computed without overflow for large |x|.
func Sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}
