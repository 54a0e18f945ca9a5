// Package f64 provides float64 vector primitives for the hot loops of
// regret matching and strategy averaging.
package f64

// ScalUnitary is
//
//	for i := range x {
//		x[i] *= alpha
//	}
func ScalUnitary(alpha float64, x []float64) {
	for i := range x {
		x[i] *= alpha
	}
}

// ScalUnitaryTo is
//
//	for i, v := range x {
//		dst[i] = alpha * v
//	}
func ScalUnitaryTo(dst []float64, alpha float64, x []float64) {
	for i, v := range x {
		dst[i] = alpha * v
	}
}

// Add is
//
//	for i, v := range s {
//		dst[i] += v
//	}
func Add(dst, s []float64) {
	for i, v := range s {
		dst[i] += v
	}
}

// AddConst is
//
//	for i := range x {
//		x[i] += alpha
//	}
func AddConst(alpha float64, x []float64) {
	for i := range x {
		x[i] += alpha
	}
}

// AxpyUnitary is
//
//	for i, v := range x {
//		y[i] += alpha * v
//	}
func AxpyUnitary(alpha float64, x, y []float64) {
	for i, v := range x {
		y[i] += alpha * v
	}
}

// Sum is
//
//	var sum float64
//	for i := range x {
//	    sum += x[i]
//	}
func Sum(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v
	}
	return sum
}

// Dot is
//
//	var sum float64
//	for i, v := range x {
//	    sum += v * y[i]
//	}
func Dot(x, y []float64) float64 {
	var sum float64
	for i, v := range x {
		sum += v * y[i]
	}
	return sum
}

// PositivePart is
//
//	for i := range x {
//		if x[i] < 0 {
//			x[i] = 0
//		}
//	}
func PositivePart(x []float64) {
	for i := range x {
		if x[i] < 0 {
			x[i] = 0
		}
	}
}

// UniformDist returns the uniform distribution over n entries.
func UniformDist(n int) []float64 {
	result := make([]float64, n)
	AddConst(1.0/float64(n), result)
	return result
}
