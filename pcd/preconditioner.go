package pcd

import (
	"fmt"

	"github.com/notargets/gopcd/types"
)

/*
PCDPreconditioner applies the pressure convection-diffusion approximation of the inverse Schur complement

	S^-1 ~ Mp^-1 Fp Ap^-1

Ap and Fp hold identity rows on the artificial pressure BC dofs, so the residual entries there pass
through the Ap and Fp stages unchanged and the map stays nonsingular.
*/
type PCDPreconditioner struct {
	ops            types.PCDOperators
	cfg            SubSolverConfig
	Subsolvers     PreconditionerSubsolvers
	t1, t2         []float64
	applications   int
	factorizations int
}

func NewPCDPreconditioner(ops types.PCDOperators, cfg SubSolverConfig) (pc *PCDPreconditioner, err error) {
	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("PCD sub-solver configuration: %w", err)
	}
	pc = &PCDPreconditioner{cfg: cfg}
	if err = pc.Update(ops); err != nil {
		return nil, err
	}
	return
}

// Update swaps in new operators. Ap and Mp are refactorized only when their values changed, Fp is
// always replaced.
func (pc *PCDPreconditioner) Update(ops types.PCDOperators) (err error) {
	if err = ops.Validate(); err != nil {
		return
	}
	var (
		np, _  = ops.Mp.Dims()
		ap, mp = pc.Subsolvers.Ap, pc.Subsolvers.Mp
		builds int
	)
	// Both sub-solvers are built before either is swapped in
	if ap == nil || !pc.ops.Ap.Equal(ops.Ap) {
		if ap, err = newLaplaceSolver(ops.Ap, pc.cfg); err != nil {
			return
		}
		builds++
	}
	if mp == nil || !pc.ops.Mp.Equal(ops.Mp) {
		if mp, err = newMassSolver(ops.Mp, pc.cfg); err != nil {
			return
		}
		builds++
	}
	pc.Subsolvers.Ap, pc.Subsolvers.Mp = ap, mp
	pc.factorizations += builds
	pc.ops = ops
	if len(pc.t1) != np {
		pc.t1, pc.t2 = make([]float64, np), make([]float64, np)
	}
	return
}

// Apply computes dst = Mp^-1 Fp Ap^-1 rp
func (pc *PCDPreconditioner) Apply(dst, rp []float64) (err error) {
	np := len(pc.t1)
	if len(dst) != np || len(rp) != np {
		panic(fmt.Errorf("PCD apply: %d pressure dofs, len(dst) = %d, len(rp) = %d", np, len(dst), len(rp)))
	}
	if err = pc.Subsolvers.Ap.SolveTo(pc.t2, rp); err != nil {
		return
	}
	pc.ops.Fp.MulVecTo(pc.t1, pc.t2)
	if err = pc.Subsolvers.Mp.SolveTo(dst, pc.t1); err != nil {
		return
	}
	pc.applications++
	return
}

// Exact reports whether both sub-solves are direct, the preconditioner is then a fixed linear operator
func (pc *PCDPreconditioner) Exact() bool {
	return pc.Subsolvers.Ap.Exact() && pc.Subsolvers.Mp.Exact()
}

func (pc *PCDPreconditioner) Operators() types.PCDOperators { return pc.ops }

func (pc *PCDPreconditioner) Applications() int { return pc.applications }

// Factorizations counts the sub-solver (re)builds of Ap and Mp
func (pc *PCDPreconditioner) Factorizations() int { return pc.factorizations }
