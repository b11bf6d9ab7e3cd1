// Package rating implements the Elo aggregate-update rule: one rating
// change per match set, computed and committed in a single transaction
// with the game rows.
package rating

import "math"

// DefaultKFactor is the maximum rating change per match set
const DefaultKFactor = 32

// Expected returns the expected score of a player rated r1 against r2
func Expected(r1, r2 int) float64 {
	return 1.0 / (1.0 + math.Pow(10, float64(r2-r1)/400.0))
}

// Delta returns the rounded rating change for an actual score against an
// expected score. Rounding is independent per engine, which keeps the
// total rating across a pair preserved to within one point.
func Delta(k int, actual, expected float64) int {
	return int(math.Round(float64(k) * (actual - expected)))
}
