package trust

import (
	"math"
	"time"
)

// Decay kernels. All three hop families return exactly 1.0 for a direct
// edge (hops = 1); recency returns 1.0 at age zero and domainDecay
// returns 1.0 at depth zero. Stateless and deterministic.

// hopDecay maps a path length in hops to a multiplicative weight.
//
//	exponential: param^(hops-1), param in (0, 1]
//	linear:      max(0, 1 - (hops-1)*param)
//	cutoff:      1 if hops <= param else 0
func hopDecay(fn DecayFunction, param float64, hops int) float64 {
	if hops <= 1 {
		return 1.0
	}
	switch fn {
	case DecayLinear:
		d := 1.0 - float64(hops-1)*param
		if d < 0 {
			return 0
		}
		return d
	case DecayCutoff:
		if float64(hops) <= param {
			return 1.0
		}
		return 0
	default: // exponential
		return math.Pow(param, float64(hops-1))
	}
}

// recencyDecay halves an endorsement's weight every halfLifeDays.
func recencyDecay(age time.Duration, halfLifeDays float64) float64 {
	if age <= 0 {
		return 1.0
	}
	ageDays := age.Hours() / 24
	return math.Pow(0.5, ageDays/halfLifeDays)
}

// domainDecay weights an edge declared at the given 1-based ancestor
// depth of the queried domain. Depth 0 is an exact or wildcard match.
func domainDecay(factor float64, depth int) float64 {
	if depth <= 0 {
		return 1.0
	}
	return math.Pow(factor, float64(depth))
}
