package krylov

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas64"
	"gonum.org/v1/gonum/floats"
)

// Operator computes dst = A*x
type Operator func(dst, x []float64)

// Preconditioner computes dst ~ M^-1 r
type Preconditioner func(dst, r []float64) error

/*
GMRES is restarted GMRES(m) with right preconditioning, A M^-1 (M x) = b. The residual that is monitored
and tested is the true residual b - A x. With Flexible set the preconditioned directions Z_j = M_j^-1 V_j
are stored (FGMRES), which allows M to change between applications.
*/
type GMRES struct {
	Restart           int
	Flexible          bool
	RelativeTolerance float64 // relative to the initial residual norm
	AbsoluteTolerance float64
	MaxIterations     int
	Monitor           func(iteration int, rnorm float64)
}

// Result reports a solve. Non-convergence is not an error.
type Result struct {
	Converged                      bool
	Iterations                     int
	ResidualNorm, RelativeResidual float64
	History                        []float64
	Breakdown                      bool
	Stagnated                      bool // a cycle failed to reduce the residual, x holds the previous iterate
}

type givens struct {
	c, s float64
}

// state is the Krylov workspace of a single solve
type state struct {
	n, m     int
	v        []float64 // m+1 basis vectors, column j at v[j*ldv:]
	z        []float64 // m preconditioned directions, flexible only
	ldv      int
	h        []float64 // Hessenberg, column major
	ldh      int
	givs     []givens
	s, y     []float64
	w, r, zt []float64
	xprev    []float64
}

func newState(n, m int, flexible bool) (st *state) {
	st = &state{
		n:     n,
		m:     m,
		ldv:   n,
		v:     make([]float64, n*(m+1)),
		ldh:   m + 1,
		h:     make([]float64, (m+1)*m),
		givs:  make([]givens, m),
		s:     make([]float64, m+1),
		y:     make([]float64, m),
		w:     make([]float64, n),
		r:     make([]float64, n),
		zt:    make([]float64, n),
		xprev: make([]float64, n),
	}
	if flexible {
		st.z = make([]float64, n*m)
	}
	return
}

func (st *state) vcol(j int) []float64 { return st.v[j*st.ldv : j*st.ldv+st.n] }

func (st *state) zcol(j int) []float64 {
	if st.z == nil {
		return st.zt
	}
	return st.z[j*st.ldv : j*st.ldv+st.n]
}

// Solve iterates on A x = b from the initial guess held in x. M may be nil.
func (g GMRES) Solve(A Operator, M Preconditioner, b, x []float64) (res Result, err error) {
	var (
		n     = len(b)
		m     = g.Restart
		maxit = g.MaxIterations
	)
	if len(x) != n {
		panic(fmt.Errorf("GMRES: len(b) = %d, len(x) = %d", n, len(x)))
	}
	if m <= 0 || m > n {
		m = n
	}
	if maxit <= 0 {
		maxit = m
	}
	if M == nil {
		M = func(dst, r []float64) error { copy(dst, r); return nil }
	}
	st := newState(n, m, g.Flexible)

	residual := func() float64 {
		A(st.r, x)
		floats.SubTo(st.r, b, st.r)
		return floats.Norm(st.r, 2)
	}
	beta := residual()
	r0 := beta
	tol := math.Max(g.RelativeTolerance*r0, g.AbsoluteTolerance)
	res.ResidualNorm = beta
	res.History = append(res.History, beta)
	g.monitor(0, beta)
	if beta <= tol {
		res.Converged = true
		if r0 > 0 {
			res.RelativeResidual = 1
		}
		return
	}

	for res.Iterations < maxit {
		var (
			k         int
			breakdown bool
		)
		v0 := st.vcol(0)
		copy(v0, st.r)
		floats.Scale(1/beta, v0)
		clear(st.s)
		st.s[0] = beta

		for k < m && res.Iterations < maxit {
			var (
				i  = k
				zi = st.zcol(i)
				hi = st.h[i*st.ldh : (i+1)*st.ldh]
			)
			if err = M(zi, st.vcol(i)); err != nil {
				return
			}
			A(st.w, zi)
			wnorm0 := floats.Norm(st.w, 2)
			// Modified Gram-Schmidt
			for j := 0; j <= i; j++ {
				vj := st.vcol(j)
				hji := floats.Dot(vj, st.w)
				hi[j] = hji
				floats.AddScaled(st.w, -hji, vj)
			}
			hnext := floats.Norm(st.w, 2)
			hi[i+1] = hnext
			for j := 0; j < i; j++ {
				hi[j], hi[j+1] = rotvec(hi[j], hi[j+1], st.givs[j])
			}
			st.givs[i] = drotg(hi[i], hi[i+1])
			hi[i], hi[i+1] = rotvec(hi[i], hi[i+1], st.givs[i])
			if math.Abs(hi[i]) <= singularTol*wnorm0 || hi[i] == 0 {
				// A M^-1 v_i adds nothing new, the triangular factor ends at the previous column
				res.Iterations++
				res.History = append(res.History, math.Abs(st.s[i]))
				g.monitor(res.Iterations, math.Abs(st.s[i]))
				breakdown = true
				break
			}
			st.s[i], st.s[i+1] = rotvec(st.s[i], st.s[i+1], st.givs[i])

			k++
			res.Iterations++
			rnorm := math.Abs(st.s[k])
			res.History = append(res.History, rnorm)
			g.monitor(res.Iterations, rnorm)
			if rnorm <= tol {
				break
			}
			if hnext <= breakdownTol*wnorm0 {
				breakdown = true
				break
			}
			vk := st.vcol(k)
			copy(vk, st.w)
			floats.Scale(1/hnext, vk)
		}
		copy(st.xprev, x)
		if err = g.update(st, k, M, x); err != nil {
			return
		}
		betaPrev := beta
		if beta = residual(); !(beta <= betaPrev) {
			copy(x, st.xprev)
			beta = betaPrev
			res.ResidualNorm = beta
			res.Stagnated = true
			break
		}
		res.ResidualNorm = beta
		if beta <= tol {
			res.Converged = true
			break
		}
		if breakdown {
			res.Breakdown = true
			break
		}
	}
	if r0 > 0 {
		res.RelativeResidual = res.ResidualNorm / r0
	}
	return
}

const (
	breakdownTol = 1.e-14
	singularTol  = 1.e-12
)

// update adds the minimizer over the k directions of the current cycle to x
func (g GMRES) update(st *state, k int, M Preconditioner, x []float64) (err error) {
	if k == 0 {
		return
	}
	y := st.y[:k]
	copy(y, st.s[:k])
	// H is upper triangular in column major order, Dtrsv sees its transpose in row major order
	blas64.Implementation().Dtrsv(blas.Lower, blas.Trans, blas.NonUnit, k, st.h, st.ldh, y, 1)
	if g.Flexible {
		for j := 0; j < k; j++ {
			floats.AddScaled(x, y[j], st.zcol(j))
		}
		return
	}
	clear(st.w)
	for j := 0; j < k; j++ {
		floats.AddScaled(st.w, y[j], st.vcol(j))
	}
	if err = M(st.zt, st.w); err != nil {
		return
	}
	floats.Add(x, st.zt)
	return
}

func (g GMRES) monitor(it int, rnorm float64) {
	if g.Monitor != nil {
		g.Monitor(it, rnorm)
	}
}

func drotg(a, b float64) givens {
	if b == 0 {
		return givens{c: 1, s: 0}
	}
	if math.Abs(b) > math.Abs(a) {
		tmp := -a / b
		s := 1 / math.Sqrt(1+tmp*tmp)
		return givens{c: tmp * s, s: s}
	}
	tmp := -b / a
	c := 1 / math.Sqrt(1+tmp*tmp)
	return givens{c: c, s: tmp * c}
}

func rotvec(x, y float64, g givens) (rx, ry float64) {
	rx = g.c*x - g.s*y
	ry = g.s*x + g.c*y
	return
}
