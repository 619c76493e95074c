package fem

import (
	"fmt"
	"sort"

	"github.com/notargets/gopcd/types"
	"github.com/notargets/gopcd/utils"
)

// Assembler delivers the algebraic Taylor-Hood operators of a Problem
type Assembler struct {
	*Problem
	Dofs *DofMap

	bcDofs                    []int
	bcValues                  []float64
	inflowVerts, outflowVerts []int
	ap, mp                    utils.CSR // state independent PCD forms
	aup, apu                  utils.CSR
}

func NewAssembler(pr *Problem) (asm *Assembler, err error) {
	if err = pr.Validate(); err != nil {
		return nil, types.NewAssemblyError("problem", "%v", err)
	}
	asm = &Assembler{
		Problem: pr,
		Dofs:    NewDofMap(pr.Mesh),
	}
	asm.collectBCs()
	asm.assembleStateIndependent()
	return
}

func (asm *Assembler) collectBCs() {
	var (
		dm     = asm.Dofs
		values = make(map[int]float64)
	)
	for _, m := range asm.dirichletMarkers() {
		g := asm.VelocityBCs[m]
		for _, be := range dm.Mesh.BEdges {
			if be.Marker != m {
				continue
			}
			for _, node := range dm.BoundaryNodes(be) {
				gx, gy := g(dm.NodeX[node], dm.NodeY[node])
				values[VelocityDof(node, 0)] = gx
				values[VelocityDof(node, 1)] = gy
			}
		}
	}
	asm.bcDofs = make([]int, 0, len(values))
	for d := range values {
		asm.bcDofs = append(asm.bcDofs, d)
	}
	sort.Ints(asm.bcDofs)
	asm.bcValues = make([]float64, len(asm.bcDofs))
	for i, d := range asm.bcDofs {
		asm.bcValues[i] = values[d]
	}
	markedVerts := func(marker int) (verts []int) {
		seen := make(map[int]bool)
		for _, be := range dm.Mesh.BEdges {
			if be.Marker != marker {
				continue
			}
			for _, v := range be.V {
				if !seen[v] {
					seen[v] = true
					verts = append(verts, v)
				}
			}
		}
		sort.Ints(verts)
		return
	}
	asm.inflowVerts = markedVerts(asm.InflowMarker)
	asm.outflowVerts = markedVerts(asm.OutflowMarker)
}

// VelocityBCDofs returns the constrained velocity dofs and their prescribed values
func (asm *Assembler) VelocityBCDofs() (dofs []int, values []float64) {
	return asm.bcDofs, asm.bcValues
}

func (asm *Assembler) Structure() (types.BlockStructure, error) {
	st := asm.Dofs.Structure()
	return st, st.Validate()
}

func (asm *Assembler) Viscosity() float64 { return asm.Nu }

// state evaluates the discrete velocity and pressure at one quadrature point
type state struct {
	u     [2]float64
	gradU [2][2]float64 // gradU[c][d] = d u_c / d x_d
	div   float64
	p     float64
}

func (asm *Assembler) evalState(w []float64, k int, N [NpP2]float64, G [NpP2][2]float64,
	L [3]float64) (s state) {
	var (
		nodes = asm.Dofs.ElemNodes[k]
		nu    = asm.Dofs.NU
	)
	for a := 0; a < NpP2; a++ {
		for c := 0; c < 2; c++ {
			uc := w[VelocityDof(nodes[a], c)]
			s.u[c] += uc * N[a]
			s.gradU[c][0] += uc * G[a][0]
			s.gradU[c][1] += uc * G[a][1]
		}
	}
	for i := 0; i < 3; i++ {
		s.p += w[nu+nodes[i]] * L[i]
	}
	s.div = s.gradU[0][0] + s.gradU[1][1]
	return
}

func (asm *Assembler) checkState(w []float64, operator string) error {
	if n := asm.Dofs.NU + asm.Dofs.NP; len(w) != n {
		return types.NewAssemblyError(operator, "state vector has length %d, expected %d", len(w), n)
	}
	return nil
}

// AssembleResidual returns F(w), without boundary conditions
func (asm *Assembler) AssembleResidual(w []float64) (F []float64, err error) {
	if err = asm.checkState(w, "residual"); err != nil {
		return
	}
	var (
		dm    = asm.Dofs
		nu    = asm.Nu
		alpha = asm.Alpha
	)
	F = make([]float64, dm.NU+dm.NP)
	for k := range dm.ElemNodes {
		var (
			el    = dm.Element(k)
			nodes = dm.ElemNodes[k]
		)
		for q, L := range Tri7.L {
			var (
				wq   = Tri7.W[q] * el.Area
				N    = P2Basis(L)
				G    = el.P2Grad(L)
				s    = asm.evalState(w, k, N, G, L)
				f    [2]float64
				conv [2]float64
			)
			if asm.Force != nil {
				x, y := el.Map(L)
				f[0], f[1] = asm.Force(x, y)
			}
			for c := 0; c < 2; c++ {
				conv[c] = s.u[0]*s.gradU[c][0] + s.u[1]*s.gradU[c][1] + (1-alpha)*s.u[c]*s.div
			}
			for a := 0; a < NpP2; a++ {
				for c := 0; c < 2; c++ {
					F[VelocityDof(nodes[a], c)] += wq * (nu*(s.gradU[c][0]*G[a][0]+s.gradU[c][1]*G[a][1]) +
						(conv[c]-f[c])*N[a] - s.p*G[a][c])
				}
			}
			for i := 0; i < 3; i++ {
				F[dm.NU+nodes[i]] += wq * L[i] * s.div
			}
		}
	}
	for _, be := range dm.Mesh.BEdges {
		g, ok := asm.Traction[be.Marker]
		if !ok {
			continue
		}
		var (
			el      = dm.Element(be.K)
			nodes   = dm.ElemNodes[be.K]
			_, _, h = dm.Mesh.EdgeNormal(be)
		)
		for t, tt := range Edge3.T {
			L := edgeBarycentric(be.LocalEdge, tt)
			x, y := el.Map(L)
			gx, gy := g(x, y)
			N := P2Basis(L)
			wt := Edge3.W[t] * h
			for a := 0; a < NpP2; a++ {
				F[VelocityDof(nodes[a], 0)] -= wt * gx * N[a]
				F[VelocityDof(nodes[a], 1)] -= wt * gy * N[a]
			}
		}
	}
	return
}

// AssembleJacobian returns the Newton derivative or the Picard (frozen convection) linearization of F
// at w, without boundary conditions and without a right hand side
func (asm *Assembler) AssembleJacobian(w []float64, mode types.NonlinearType) (sys types.BlockSystem, err error) {
	if err = asm.checkState(w, "Jacobian"); err != nil {
		return
	}
	var (
		dm     = asm.Dofs
		nu     = asm.Nu
		alpha  = asm.Alpha
		auu    = utils.NewDOK(dm.NU, dm.NU)
		newton = mode == types.Newton
	)
	for k := range dm.ElemNodes {
		var (
			el    = dm.Element(k)
			nodes = dm.ElemNodes[k]
			local [2 * NpP2][2 * NpP2]float64
		)
		for q, L := range Tri7.L {
			var (
				wq = Tri7.W[q] * el.Area
				N  = P2Basis(L)
				G  = el.P2Grad(L)
				s  = asm.evalState(w, k, N, G, L)
			)
			for a := 0; a < NpP2; a++ {
				for b := 0; b < NpP2; b++ {
					var (
						diff = nu * (G[b][0]*G[a][0] + G[b][1]*G[a][1])
						adv  = (s.u[0]*G[b][0] + s.u[1]*G[b][1]) * N[a]
						mass = N[b] * N[a]
						diag = wq * (diff + adv + (1-alpha)*s.div*mass)
					)
					for c := 0; c < 2; c++ {
						local[2*a+c][2*b+c] += diag
						if !newton {
							continue
						}
						for d := 0; d < 2; d++ {
							local[2*a+c][2*b+d] += wq * (mass*s.gradU[c][d] + (1-alpha)*s.u[c]*G[b][d]*N[a])
						}
					}
				}
			}
		}
		for a := 0; a < NpP2; a++ {
			for c := 0; c < 2; c++ {
				row := VelocityDof(nodes[a], c)
				for b := 0; b < NpP2; b++ {
					for d := 0; d < 2; d++ {
						if v := local[2*a+c][2*b+d]; v != 0 {
							auu.AddTo(row, VelocityDof(nodes[b], d), v)
						}
					}
				}
			}
		}
	}
	sys = types.BlockSystem{
		Auu: auu.ToCSR().SetName("Auu"),
		Aup: asm.aup.Clone(),
		Apu: asm.apu.Clone(),
	}
	return
}

// assembleStateIndependent builds the divergence couplings and the pressure Laplacian and mass matrix
func (asm *Assembler) assembleStateIndependent() {
	var (
		dm  = asm.Dofs
		aup = utils.NewDOK(dm.NU, dm.NP)
		apu = utils.NewDOK(dm.NP, dm.NU)
		ap  = utils.NewDOK(dm.NP, dm.NP)
		mp  = utils.NewDOK(dm.NP, dm.NP)
	)
	for k := range dm.ElemNodes {
		var (
			el    = dm.Element(k)
			nodes = dm.ElemNodes[k]
			b     [3][2 * NpP2]float64
			m     [3][3]float64
		)
		for q, L := range Tri7.L {
			var (
				wq = Tri7.W[q] * el.Area
				G  = el.P2Grad(L)
			)
			for i := 0; i < 3; i++ {
				for a := 0; a < NpP2; a++ {
					for c := 0; c < 2; c++ {
						b[i][2*a+c] += wq * L[i] * G[a][c]
					}
				}
				for j := 0; j < 3; j++ {
					m[i][j] += wq * L[i] * L[j]
				}
			}
		}
		for i := 0; i < 3; i++ {
			for a := 0; a < NpP2; a++ {
				for c := 0; c < 2; c++ {
					if v := b[i][2*a+c]; v != 0 {
						apu.AddTo(nodes[i], VelocityDof(nodes[a], c), v)
						aup.AddTo(VelocityDof(nodes[a], c), nodes[i], -v)
					}
				}
			}
			for j := 0; j < 3; j++ {
				gij := el.GradL[i][0]*el.GradL[j][0] + el.GradL[i][1]*el.GradL[j][1]
				ap.AddTo(nodes[i], nodes[j], el.Area*gij)
				mp.AddTo(nodes[i], nodes[j], m[i][j])
			}
		}
	}
	asm.aup = aup.ToCSR().SetName("Aup")
	asm.apu = apu.ToCSR().SetName("Apu")
	asm.ap = ap.ToCSR().SetName("Ap")
	asm.mp = mp.ToCSR().SetName("Mp")
}

// AssemblePCDOperators returns the pressure Laplacian, the pressure mass matrix, the pressure convection
// operator int (u.grad p) q and, for BRM2, the inflow correction int (u.n) p q ds
func (asm *Assembler) AssemblePCDOperators(w []float64, variant types.PCDVariant) (forms types.PCDForms, err error) {
	if err = asm.checkState(w, "PCD operators"); err != nil {
		return
	}
	var (
		dm = asm.Dofs
		kp = utils.NewDOK(dm.NP, dm.NP)
	)
	for k := range dm.ElemNodes {
		var (
			el    = dm.Element(k)
			nodes = dm.ElemNodes[k]
		)
		for q, L := range Tri7.L {
			var (
				wq = Tri7.W[q] * el.Area
				N  = P2Basis(L)
				G  = el.P2Grad(L)
				s  = asm.evalState(w, k, N, G, L)
			)
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					adv := s.u[0]*el.GradL[j][0] + s.u[1]*el.GradL[j][1]
					kp.AddTo(nodes[i], nodes[j], wq*adv*L[i])
				}
			}
		}
	}
	forms = types.PCDForms{
		Ap: asm.ap.Clone(),
		Mp: asm.mp.Clone(),
		Kp: kp.ToCSR().SetName("Kp"),
	}
	switch variant {
	case types.BRM1:
		forms.BCDofs = append([]int{}, asm.inflowVerts...)
	case types.BRM2:
		forms.BCDofs = append([]int{}, asm.outflowVerts...)
		forms.Rp = asm.assembleInflowCorrection(w)
	default:
		return forms, types.NewAssemblyError("PCD operators", "unknown PCD variant %v", variant)
	}
	return
}

func (asm *Assembler) assembleInflowCorrection(w []float64) utils.CSR {
	var (
		dm = asm.Dofs
		rp = utils.NewDOK(dm.NP, dm.NP)
	)
	for _, be := range dm.Mesh.BEdges {
		if be.Marker != asm.InflowMarker {
			continue
		}
		var (
			nodes     = dm.ElemNodes[be.K]
			nx, ny, h = dm.Mesh.EdgeNormal(be)
		)
		for t, tt := range Edge3.T {
			var (
				L  = edgeBarycentric(be.LocalEdge, tt)
				N  = P2Basis(L)
				wt = Edge3.W[t] * h
				un float64
			)
			for a := 0; a < NpP2; a++ {
				un += N[a] * (w[VelocityDof(nodes[a], 0)]*nx + w[VelocityDof(nodes[a], 1)]*ny)
			}
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					if v := wt * un * L[i] * L[j]; v != 0 {
						rp.AddTo(nodes[i], nodes[j], v)
					}
				}
			}
		}
	}
	return rp.ToCSR().SetName("Rp")
}

// ApplyBCs imposes the velocity Dirichlet conditions: constrained rows of Auu become identity rows,
// those of Aup zero rows, and the residual entries become w_i - g_i. sys or r may be nil.
func (asm *Assembler) ApplyBCs(sys *types.BlockSystem, r, w []float64) {
	if sys != nil {
		sys.Auu = sys.Auu.ZeroRows(asm.bcDofs, 1)
		sys.Aup = sys.Aup.ZeroRows(asm.bcDofs, 0)
	}
	if r != nil {
		if len(r) < asm.Dofs.NU || len(w) < asm.Dofs.NU {
			panic(fmt.Errorf("ApplyBCs: vectors of length %d, %d are shorter than the velocity block %d",
				len(r), len(w), asm.Dofs.NU))
		}
		for i, d := range asm.bcDofs {
			r[d] = w[d] - asm.bcValues[i]
		}
	}
}

// SetBoundaryValues writes the prescribed velocities into w
func (asm *Assembler) SetBoundaryValues(w []float64) {
	for i, d := range asm.bcDofs {
		w[d] = asm.bcValues[i]
	}
}
