package utils

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

const dlamchE = 1.0 / (1 << 53)

// ErrSingular is wrapped by the banded factorizations when a zero (or non-positive) pivot is met
var ErrSingular = errors.New("matrix is singular")

// BandLU is an LU factorization with partial pivoting of a general sparse matrix, computed on the band
// structure produced by an RCM permutation of the matrix. Row interchanges only reach kl rows below the
// pivot, so U keeps an upper bandwidth of kl+ku.
type BandLU struct {
	N, KL, KU  int
	perm, iper []int
	ab         []float64 // row i holds columns i-KL .. i+KU+KL
	ldab       int
	piv        []int
	work       []float64
}

// NewBandLU factorizes A. The error wraps ErrSingular when a pivot column vanishes.
func NewBandLU(A CSR) (lu *BandLU, err error) {
	var (
		n, nc = A.Dims()
	)
	if n != nc {
		panic(fmt.Errorf("BandLU needs a square matrix, have %dx%d", n, nc))
	}
	lu = &BandLU{N: n}
	lu.perm = RCM(A)
	lu.iper = InversePermutation(lu.perm)
	lu.KL, lu.KU = Bandwidth(A, lu.perm)
	lu.ldab = 2*lu.KL + lu.KU + 1
	lu.ab = make([]float64, n*lu.ldab)
	lu.piv = make([]int, n)
	lu.work = make([]float64, n)
	A.DoNonZero(func(i, j int, v float64) {
		ii, jj := lu.iper[i], lu.iper[j]
		lu.ab[lu.index(ii, jj)] += v
	})
	err = lu.factorize(A.MaxAbs())
	return
}

func (lu *BandLU) index(i, j int) int { return i*lu.ldab + j - i + lu.KL }

func (lu *BandLU) factorize(anorm float64) (err error) {
	var (
		n, kl, ku = lu.N, lu.KL, lu.KU
		tiny      = float64(n) * dlamchE * anorm
	)
	if anorm == 0 {
		return fmt.Errorf("zero matrix of order %d: %w", n, ErrSingular)
	}
	for k := 0; k < n; k++ {
		var (
			p    = k
			pmax = math.Abs(lu.ab[lu.index(k, k)])
			iMax = min(n-1, k+kl)
			jMax = min(n-1, k+ku+kl)
		)
		for i := k + 1; i <= iMax; i++ {
			if v := math.Abs(lu.ab[lu.index(i, k)]); v > pmax {
				p, pmax = i, v
			}
		}
		lu.piv[k] = p
		if pmax <= tiny {
			return fmt.Errorf("zero pivot at elimination step %d of %d: %w", k, n, ErrSingular)
		}
		if p != k {
			for j := k; j <= jMax; j++ {
				a, b := lu.index(k, j), lu.index(p, j)
				lu.ab[a], lu.ab[b] = lu.ab[b], lu.ab[a]
			}
		}
		pivot := lu.ab[lu.index(k, k)]
		for i := k + 1; i <= iMax; i++ {
			ik := lu.index(i, k)
			if lu.ab[ik] == 0 {
				continue
			}
			l := lu.ab[ik] / pivot
			lu.ab[ik] = l
			rowI := lu.ab[lu.index(i, k+1) : lu.index(i, jMax)+1]
			rowK := lu.ab[lu.index(k, k+1) : lu.index(k, jMax)+1]
			for jj, akj := range rowK {
				rowI[jj] -= l * akj
			}
		}
	}
	return
}

// SolveTo solves A*dst = b, dst and b may alias
func (lu *BandLU) SolveTo(dst, b []float64) {
	var (
		n, kl, ku = lu.N, lu.KL, lu.KU
		x         = lu.work
	)
	if len(dst) != n || len(b) != n {
		panic(fmt.Errorf("BandLU.SolveTo: order %d, len(dst) = %d, len(b) = %d", n, len(dst), len(b)))
	}
	for i := 0; i < n; i++ {
		x[i] = b[lu.perm[i]]
	}
	// L: apply the recorded Gauss transforms in order
	for k := 0; k < n; k++ {
		if p := lu.piv[k]; p != k {
			x[k], x[p] = x[p], x[k]
		}
		xk := x[k]
		if xk == 0 {
			continue
		}
		for i := k + 1; i <= min(n-1, k+kl); i++ {
			x[i] -= lu.ab[lu.index(i, k)] * xk
		}
	}
	// U
	for i := n - 1; i >= 0; i-- {
		sum := x[i]
		for j := i + 1; j <= min(n-1, i+ku+kl); j++ {
			sum -= lu.ab[lu.index(i, j)] * x[j]
		}
		x[i] = sum / lu.ab[lu.index(i, i)]
	}
	for i := 0; i < n; i++ {
		dst[lu.perm[i]] = x[i]
	}
}

// BandCholesky factorizes a symmetric positive definite sparse matrix as a gonum symmetric band
// matrix after RCM reordering
type BandCholesky struct {
	N, K       int
	perm, iper []int
	chol       mat.BandCholesky
	xp, bp     *mat.VecDense
}

// NewBandCholesky fails with an error wrapping ErrSingular when A is not positive definite
// (or numerically singular)
func NewBandCholesky(A CSR) (bc *BandCholesky, err error) {
	var (
		n, nc = A.Dims()
	)
	if n != nc {
		panic(fmt.Errorf("BandCholesky needs a square matrix, have %dx%d", n, nc))
	}
	if n == 0 {
		return nil, fmt.Errorf("empty matrix: %w", ErrSingular)
	}
	bc = &BandCholesky{N: n}
	bc.perm = RCM(A)
	bc.iper = InversePermutation(bc.perm)
	kl, ku := Bandwidth(A, bc.perm)
	bc.K = max(kl, ku)
	sb := mat.NewSymBandDense(n, bc.K, nil)
	A.DoNonZero(func(i, j int, v float64) {
		ii, jj := bc.iper[i], bc.iper[j]
		if ii <= jj {
			sb.SetSymBand(ii, jj, sb.At(ii, jj)+v)
		}
	})
	if ok := bc.chol.Factorize(sb); !ok {
		return nil, fmt.Errorf("band Cholesky of order %d failed, matrix not positive definite: %w",
			n, ErrSingular)
	}
	bc.xp = mat.NewVecDense(n, nil)
	bc.bp = mat.NewVecDense(n, nil)
	// A trial solve surfaces a numerically singular factor through gonum's condition estimate
	ones := make([]float64, n)
	for i := range ones {
		ones[i] = 1
	}
	if err = bc.SolveTo(make([]float64, n), ones); err != nil {
		return nil, err
	}
	return
}

// SolveTo solves A*dst = b
func (bc *BandCholesky) SolveTo(dst, b []float64) (err error) {
	var (
		n = bc.N
	)
	if len(dst) != n || len(b) != n {
		panic(fmt.Errorf("BandCholesky.SolveTo: order %d, len(dst) = %d, len(b) = %d", n, len(dst), len(b)))
	}
	for i := 0; i < n; i++ {
		bc.bp.SetVec(i, b[bc.perm[i]])
	}
	if err = bc.chol.SolveVecTo(bc.xp, bc.bp); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return fmt.Errorf("band Cholesky of order %d is ill conditioned (%g): %w", n, float64(cond), ErrSingular)
		}
		return
	}
	for i := 0; i < n; i++ {
		dst[bc.perm[i]] = bc.xp.AtVec(i)
	}
	return
}
