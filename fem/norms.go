package fem

import (
	"math"
)

// MixedField is an exact solution: velocity components and pressure
type MixedField func(x, y float64) (ux, uy, p float64)

// Interpolate returns the nodal interpolant of fn as a mixed vector
func (asm *Assembler) Interpolate(fn MixedField) (w []float64) {
	dm := asm.Dofs
	w = make([]float64, dm.NU+dm.NP)
	for node := 0; node < dm.NNodes; node++ {
		ux, uy, p := fn(dm.NodeX[node], dm.NodeY[node])
		w[VelocityDof(node, 0)] = ux
		w[VelocityDof(node, 1)] = uy
		if node < dm.NVerts {
			w[dm.NU+node] = p
		}
	}
	return
}

// ErrorL2 returns the L2 norms of the velocity and pressure errors of w against fn
func (asm *Assembler) ErrorL2(w []float64, fn MixedField) (eu, ep float64) {
	dm := asm.Dofs
	for k := range dm.ElemNodes {
		el := dm.Element(k)
		for q, L := range Tri7.L {
			var (
				wq = Tri7.W[q] * el.Area
				N  = P2Basis(L)
				G  = el.P2Grad(L)
				s  = asm.evalState(w, k, N, G, L)
			)
			x, y := el.Map(L)
			ux, uy, p := fn(x, y)
			eu += wq * ((s.u[0]-ux)*(s.u[0]-ux) + (s.u[1]-uy)*(s.u[1]-uy))
			ep += wq * (s.p - p) * (s.p - p)
		}
	}
	return math.Sqrt(eu), math.Sqrt(ep)
}

// DivergenceL2 is the L2 norm of div(u), a measure of how well the discrete velocity conserves mass
func (asm *Assembler) DivergenceL2(w []float64) (nrm float64) {
	dm := asm.Dofs
	for k := range dm.ElemNodes {
		el := dm.Element(k)
		for q, L := range Tri7.L {
			s := asm.evalState(w, k, P2Basis(L), el.P2Grad(L), L)
			nrm += Tri7.W[q] * el.Area * s.div * s.div
		}
	}
	return math.Sqrt(nrm)
}
