package utils

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBandLU(t *testing.T) {
	{ // Test a nonsymmetric scrambled system is solved to round off
		A := permuteSym(laplace2D(12, 2.5), 11)
		n, _ := A.Dims()
		x := make([]float64, n)
		for i := range x {
			x[i] = math.Cos(0.3 * float64(i))
		}
		b := denseMulVec(A, x)
		lu, err := NewBandLU(A)
		require.NoError(t, err)
		xs := make([]float64, n)
		lu.SolveTo(xs, b)
		assert.InDeltaSlice(t, x, xs, 1.e-11)
		// in place
		lu.SolveTo(b, b)
		assert.InDeltaSlice(t, x, b, 1.e-11)
	}
	{ // Test pivoting handles a zero leading diagonal
		dok := NewDOK(3, 3)
		dok.Set(0, 1, 2)
		dok.Set(1, 0, 1)
		dok.Set(1, 1, 1)
		dok.Set(1, 2, 1)
		dok.Set(2, 1, 1)
		dok.Set(2, 2, 3)
		A := dok.ToCSR()
		x := []float64{1, -2, 3}
		b := denseMulVec(A, x)
		lu, err := NewBandLU(A)
		require.NoError(t, err)
		xs := make([]float64, 3)
		lu.SolveTo(xs, b)
		assert.InDeltaSlice(t, x, xs, 1.e-13)
	}
	{ // Test singular matrices are reported
		dok := NewDOK(2, 2)
		dok.Set(0, 0, 1)
		dok.Set(0, 1, 1)
		dok.Set(1, 0, 1)
		dok.Set(1, 1, 1)
		_, err := NewBandLU(dok.ToCSR())
		assert.True(t, errors.Is(err, ErrSingular))
		_, err = NewBandLU(NewCSR(3, 3))
		assert.True(t, errors.Is(err, ErrSingular))
	}
}

func TestBandCholesky(t *testing.T) {
	{ // Test an SPD system
		A := permuteSym(laplace2D(9, 0.), 5)
		n, _ := A.Dims()
		x := make([]float64, n)
		for i := range x {
			x[i] = 1 + float64(i%7)
		}
		b := denseMulVec(A, x)
		ch, err := NewBandCholesky(A)
		require.NoError(t, err)
		xs := make([]float64, n)
		require.NoError(t, ch.SolveTo(xs, b))
		assert.InDeltaSlice(t, x, xs, 1.e-11)
	}
	{ // Test a singular pressure Laplacian without a pinned dof
		dok := NewDOK(2, 2)
		dok.Set(0, 0, 1)
		dok.Set(0, 1, -1)
		dok.Set(1, 0, -1)
		dok.Set(1, 1, 1)
		_, err := NewBandCholesky(dok.ToCSR())
		assert.True(t, errors.Is(err, ErrSingular))
	}
	{ // Test an indefinite matrix is rejected
		dok := NewDOK(2, 2)
		dok.Set(0, 0, 1)
		dok.Set(1, 1, -1)
		_, err := NewBandCholesky(dok.ToCSR())
		assert.True(t, errors.Is(err, ErrSingular))
	}
}
