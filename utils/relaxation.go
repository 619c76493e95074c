package utils

import (
	"fmt"
)

// Preconditioner applies an approximate inverse: z = M^-1 r
type Preconditioner func(z, r []float64)

// Smoother holds the diagonal positions of a square CSR matrix for point relaxation sweeps
type Smoother struct {
	A       CSR
	diagPos []int
	invDiag []float64
}

// NewSmoother fails when a diagonal entry is missing or zero
func NewSmoother(A CSR) (s *Smoother, err error) {
	var (
		n, nc             = A.Dims()
		indptr, ind, data = A.Raw()
	)
	if n != nc {
		panic(fmt.Errorf("smoother needs a square matrix, have %dx%d", n, nc))
	}
	s = &Smoother{
		A:       A,
		diagPos: make([]int, n),
		invDiag: make([]float64, n),
	}
	for i := 0; i < n; i++ {
		s.diagPos[i] = -1
		for k := indptr[i]; k < indptr[i+1]; k++ {
			if ind[k] == i {
				s.diagPos[i] = k
				break
			}
		}
		if s.diagPos[i] < 0 || data[s.diagPos[i]] == 0 {
			return nil, fmt.Errorf("zero diagonal in row %d of \"%s\": %w", i, A.Name(), ErrSingular)
		}
		s.invDiag[i] = 1. / data[s.diagPos[i]]
	}
	return
}

// Jacobi computes z = D^-1 r
func (s *Smoother) Jacobi(z, r []float64) {
	for i, d := range s.invDiag {
		z[i] = d * r[i]
	}
}

// GaussSeidel performs one in-place sweep on A*x = b, forward or backward
func (s *Smoother) GaussSeidel(x, b []float64, backward bool) {
	var (
		n                 = len(s.invDiag)
		indptr, ind, data = s.A.Raw()
	)
	sweep := func(i int) {
		sum := b[i]
		for k := indptr[i]; k < indptr[i+1]; k++ {
			if k != s.diagPos[i] {
				sum -= data[k] * x[ind[k]]
			}
		}
		x[i] = sum * s.invDiag[i]
	}
	if backward {
		for i := n - 1; i >= 0; i-- {
			sweep(i)
		}
		return
	}
	for i := 0; i < n; i++ {
		sweep(i)
	}
}

// SymmetricGaussSeidel computes z = M_SGS^-1 r, one forward and one backward sweep from z = 0
func (s *Smoother) SymmetricGaussSeidel(z, r []float64) {
	for i := range z {
		z[i] = 0
	}
	s.GaussSeidel(z, r, false)
	s.GaussSeidel(z, r, true)
}

// Richardson runs a fixed number of preconditioned Richardson sweeps from a zero guess,
// x_{k+1} = x_k + M^-1 (b - A x_k). The result is a fixed linear function of b.
type Richardson struct {
	A       CSR
	Sweeps  int
	Precond Preconditioner
	r, z    []float64
}

func NewRichardson(A CSR, sweeps int, pc Preconditioner) (rs *Richardson) {
	n, _ := A.Dims()
	if sweeps < 1 {
		sweeps = 1
	}
	rs = &Richardson{
		A:       A,
		Sweeps:  sweeps,
		Precond: pc,
		r:       make([]float64, n),
		z:       make([]float64, n),
	}
	return
}

func (rs *Richardson) SolveTo(x, b []float64) {
	for i := range x {
		x[i] = 0
	}
	for sweep := 0; sweep < rs.Sweeps; sweep++ {
		if sweep == 0 {
			copy(rs.r, b)
		} else {
			rs.A.MulVecTo(rs.r, x)
			for i := range rs.r {
				rs.r[i] = b[i] - rs.r[i]
			}
		}
		rs.Precond(rs.z, rs.r)
		for i := range x {
			x[i] += rs.z[i]
		}
	}
}

// Chebyshev runs a fixed number of Jacobi preconditioned Chebyshev iterations, the spectrum of D^-1 A
// is assumed to lie in [LMin, LMax]
type Chebyshev struct {
	A            CSR
	Iterations   int
	LMin, LMax   float64
	smoother     *Smoother
	r, d, z, tmp []float64
}

func NewChebyshev(A CSR, iterations int, lmin, lmax float64) (ch *Chebyshev, err error) {
	if !(lmin > 0 && lmax > lmin) {
		return nil, fmt.Errorf("invalid Chebyshev eigenvalue bounds [%g, %g]", lmin, lmax)
	}
	n, _ := A.Dims()
	ch = &Chebyshev{
		A:          A,
		Iterations: max(iterations, 1),
		LMin:       lmin,
		LMax:       lmax,
		r:          make([]float64, n),
		d:          make([]float64, n),
		z:          make([]float64, n),
		tmp:        make([]float64, n),
	}
	if ch.smoother, err = NewSmoother(A); err != nil {
		return nil, err
	}
	return
}

func (ch *Chebyshev) SolveTo(x, b []float64) {
	var (
		theta = 0.5 * (ch.LMax + ch.LMin)
		delta = 0.5 * (ch.LMax - ch.LMin)
		sigma = theta / delta
		rho   = 1. / sigma
	)
	for i := range x {
		x[i] = 0
	}
	copy(ch.r, b)
	ch.smoother.Jacobi(ch.z, ch.r)
	for i := range ch.d {
		ch.d[i] = ch.z[i] / theta
	}
	for it := 0; it < ch.Iterations; it++ {
		for i := range x {
			x[i] += ch.d[i]
		}
		if it == ch.Iterations-1 {
			break
		}
		ch.A.MulVecTo(ch.tmp, ch.d)
		for i := range ch.r {
			ch.r[i] -= ch.tmp[i]
		}
		ch.smoother.Jacobi(ch.z, ch.r)
		rhoNew := 1. / (2.*sigma - rho)
		for i := range ch.d {
			ch.d[i] = rhoNew*rho*ch.d[i] + 2.*rhoNew/delta*ch.z[i]
		}
		rho = rhoNew
	}
}
