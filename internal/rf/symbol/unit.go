package symbol

import "math"

const (
	// MaxUnit is the largest unit InferUnit can return: one second in
	// microseconds is always part of the candidate set.
	MaxUnit = 1000000

	// unitTolerance is the largest relative quantisation error accepted
	// for any timing when growing the unit.
	unitTolerance = 0.05
)

// unitFactors are tried in order on every growth step.
var unitFactors = []int{2, 3, 5, 7, 11, 17, 19, 23}

// InferUnit finds the symbol period (in microseconds) that expresses every
// timing as a whole number of symbols.
//
// Starting from one microsecond, each step multiplies the unit by whichever
// factor yields the smallest worst-case relative truncation error, provided
// that error stays below 5%. Growth stops when no factor qualifies. One
// second is always included in the timing set, which caps the result at
// MaxUnit.
//
// Non-positive timings are ignored.
func InferUnit(timings []int) int {
	times := make([]int, 0, len(timings)+1)
	times = append(times, MaxUnit)
	for _, t := range timings {
		if t > 0 {
			times = append(times, t)
		}
	}

	unit := 1
	for {
		best := 0
		bestErr := unitTolerance
		for _, f := range unitFactors {
			candidate := unit * f
			if e := truncationError(times, candidate); e < bestErr {
				bestErr = e
				best = candidate
			}
		}
		if best == 0 {
			return unit
		}
		unit = best
	}
}

// truncationError is the worst relative error of flooring each timing to
// a multiple of unit.
func truncationError(times []int, unit int) float64 {
	worst := 0.0
	u := float64(unit)
	for _, t := range times {
		v := float64(t)
		e := math.Abs(v-math.Floor(v/u)*u) / v
		if e > worst {
			worst = e
		}
	}
	return worst
}
