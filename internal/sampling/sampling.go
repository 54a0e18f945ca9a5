// Package sampling implements shared weighted-sampling helpers.
package sampling

const eps = 1e-3

// SampleOne returns an index drawn from the given distribution, using x
// as the uniform variate. pv must sum to 1 up to floating point error.
func SampleOne(pv []float64, x float64) int {
	var cumProb float64
	for i, p := range pv {
		cumProb += p
		if cumProb > x {
			return i
		}
	}

	if cumProb < 1.0-eps { // Leave room for floating point error.
		panic("probability distribution does not sum to 1!")
	}

	return len(pv) - 1
}

// SampleWeighted returns an index drawn proportionally to the given
// non-negative weights, which need not be normalized. It panics if all
// weights are zero.
func SampleWeighted(weights []float64, x float64) int {
	var total float64
	for _, w := range weights {
		total += w
	}

	if total <= 0 {
		panic("no positive weights to sample")
	}

	target := x * total
	var cum float64
	for i, w := range weights {
		cum += w
		if cum > target {
			return i
		}
	}

	return len(weights) - 1
}
