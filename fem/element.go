package fem

import (
	"math"
)

// Quadrature on the reference triangle, points in barycentric coordinates, weights sum to one
type TriRule struct {
	L [][3]float64
	W []float64
}

// Strang-Fix 7 point rule, exact for polynomials of degree 5
var Tri7 = func() (tr TriRule) {
	var (
		a1, b1, w1 = 0.470142064105115, 0.059715871789770, 0.132394152788506
		a2, b2, w2 = 0.101286507323456, 0.797426985353087, 0.125939180544827
		third      = 1. / 3.
	)
	tr.L = [][3]float64{
		{third, third, third},
		{a1, a1, b1}, {a1, b1, a1}, {b1, a1, a1},
		{a2, a2, b2}, {a2, b2, a2}, {b2, a2, a2},
	}
	tr.W = []float64{0.225, w1, w1, w1, w2, w2, w2}
	return
}()

// Gauss-Legendre rule on [0,1], exact for polynomials of degree 5
type EdgeRule struct {
	T, W []float64
}

var Edge3 = func() (er EdgeRule) {
	d := math.Sqrt(0.15)
	er.T = []float64{0.5 - d, 0.5, 0.5 + d}
	er.W = []float64{5. / 18., 8. / 18., 5. / 18.}
	return
}()

// P2 local node order: the three vertices, then the midpoints of edges 01, 12, 20
const NpP2 = 6

// edgeNodes[i] are the two vertices spanning local edge node 3+i
var edgeNodes = [3][2]int{{0, 1}, {1, 2}, {2, 0}}

// P2Basis evaluates the quadratic Lagrange basis at barycentric point L
func P2Basis(L [3]float64) (N [NpP2]float64) {
	for i := 0; i < 3; i++ {
		N[i] = L[i] * (2*L[i] - 1)
	}
	for e, vv := range edgeNodes {
		N[3+e] = 4 * L[vv[0]] * L[vv[1]]
	}
	return
}

// Element holds the affine geometry of one triangle
type Element struct {
	X, Y  [3]float64
	Area  float64
	GradL [3][2]float64 // physical gradients of the barycentric coordinates
}

func NewElement(x, y [3]float64) (el Element) {
	el.X, el.Y = x, y
	twoA := (x[1]-x[0])*(y[2]-y[0]) - (x[2]-x[0])*(y[1]-y[0])
	el.Area = 0.5 * twoA
	for i := 0; i < 3; i++ {
		j, k := (i+1)%3, (i+2)%3
		el.GradL[i] = [2]float64{(y[j] - y[k]) / twoA, (x[k] - x[j]) / twoA}
	}
	return
}

// Map returns the physical point of barycentric coordinates L
func (el Element) Map(L [3]float64) (x, y float64) {
	for i := 0; i < 3; i++ {
		x += L[i] * el.X[i]
		y += L[i] * el.Y[i]
	}
	return
}

// P2Grad returns the physical gradients of the quadratic basis at L
func (el Element) P2Grad(L [3]float64) (G [NpP2][2]float64) {
	for i := 0; i < 3; i++ {
		s := 4*L[i] - 1
		G[i] = [2]float64{s * el.GradL[i][0], s * el.GradL[i][1]}
	}
	for e, vv := range edgeNodes {
		a, b := vv[0], vv[1]
		for d := 0; d < 2; d++ {
			G[3+e][d] = 4 * (L[a]*el.GradL[b][d] + L[b]*el.GradL[a][d])
		}
	}
	return
}

// edgeBarycentric returns the barycentric point at parameter t along local edge le, from vertex le
// toward vertex (le+1)%3
func edgeBarycentric(le int, t float64) (L [3]float64) {
	L[le] = 1 - t
	L[(le+1)%3] = t
	return
}
