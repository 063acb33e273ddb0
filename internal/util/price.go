// Package util provides common numeric helpers for price and score
// calculations.
package util

import "math"

// RoundToTick rounds x to the nearest tick increment.
// For example, with tick=0.01, 1.2345 becomes 1.23 or 1.24 depending on rounding.
func RoundToTick(x, tick float64) float64 {
	if tick == 0 || math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	tick = math.Abs(tick)
	return math.Round(x/tick) * tick
}

// Log1pRatio returns log1p(x)/log1p(max), the log-scaled position of x within
// [0, max]. Returns 0 when max is 0, which would otherwise divide by zero.
func Log1pRatio(x, max float64) float64 {
	if max <= 0 {
		return 0
	}
	if x < 0 {
		x = 0
	}
	return math.Log1p(x) / math.Log1p(max)
}

// Clamp constrains x to the closed interval [lo, hi].
func Clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}
