package utils

import (
	"gonum.org/v1/gonum/floats"
)

func ConstArray(N int, val float64) (v []float64) {
	v = make([]float64, N)
	for i := range v {
		v[i] = val
	}
	return
}

// Norm2 is the Euclidean norm
func Norm2(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	return floats.Norm(v, 2)
}

// Axpy computes y += alpha*x
func Axpy(alpha float64, x, y []float64) {
	floats.AddScaled(y, alpha, x)
}

// Sub computes dst = a - b
func Sub(dst, a, b []float64) {
	floats.SubTo(dst, a, b)
}
