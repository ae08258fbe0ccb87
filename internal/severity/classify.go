package severity

import "math/bits"

// threshold is the lower bound num/den of the next level up.
type threshold struct {
	num, den uint64
	level    Level
}

// Evaluated from the most severe bound down. A ratio exactly on a bound
// belongs to the higher bucket.
var thresholds = []threshold{
	{9, 10, Terminal},
	{3, 4, Critical},
	{1, 2, Urgent},
	{1, 4, Warning},
}

// Classify maps used/limit onto a Level:
//
//	r < 0.25  Normal
//	r < 0.50  Warning
//	r < 0.75  Urgent
//	r < 0.90  Critical
//	otherwise Terminal
//
// A zero limit is treated as a ratio of 0 and yields Normal. The comparison
// is exact; no floating point is involved.
func Classify(used, limit uint64) Level {
	if limit == 0 {
		return Normal
	}
	for _, t := range thresholds {
		if atLeast(used, limit, t.num, t.den) {
			return t.level
		}
	}
	return Normal
}

// atLeast reports used/limit >= num/den using 128-bit products.
func atLeast(used, limit, num, den uint64) bool {
	lhsHi, lhsLo := bits.Mul64(used, den)
	rhsHi, rhsLo := bits.Mul64(limit, num)
	if lhsHi != rhsHi {
		return lhsHi > rhsHi
	}
	return lhsLo >= rhsLo
}

// Ratio returns used/limit for display, or 0 when limit is 0.
func Ratio(used, limit uint64) float64 {
	if limit == 0 {
		return 0
	}
	return float64(used) / float64(limit)
}
