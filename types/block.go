package types

import (
	"fmt"

	"github.com/notargets/gopcd/utils"
)

// BlockStructure declares the sizes of the velocity and pressure fields of a mixed vector [u; p]
type BlockStructure struct {
	NU, NP int
}

func (bs BlockStructure) Validate() error {
	if bs.NU <= 0 || bs.NP <= 0 {
		return NewAssemblyError("block structure",
			"need a two field (velocity, pressure) structure, have NU = %d, NP = %d", bs.NU, bs.NP)
	}
	return nil
}

func (bs BlockStructure) Size() int { return bs.NU + bs.NP }

// Split returns views of the velocity and pressure parts of a mixed vector
func (bs BlockStructure) Split(x []float64) (u, p []float64) {
	if len(x) != bs.Size() {
		panic(fmt.Errorf("mixed vector of length %d does not match block structure %d + %d",
			len(x), bs.NU, bs.NP))
	}
	return x[:bs.NU], x[bs.NU:]
}

/*
BlockSystem is the linearized saddle point operator

	[ Auu Aup ] [u]   [Bu]
	[ Apu App ] [p] = [Bp]

App may be empty, it is then treated as the zero block.
*/
type BlockSystem struct {
	Auu, Aup, Apu, App utils.CSR
	Bu, Bp             []float64
}

func (bs BlockSystem) Structure() BlockStructure {
	nu, _ := bs.Auu.Dims()
	np, _ := bs.Apu.Dims()
	return BlockStructure{NU: nu, NP: np}
}

// Validate checks that the four blocks and the right hand side conform to one block structure
func (bs BlockSystem) Validate() error {
	var (
		check = func(name string, A utils.CSR, nr, nc int) error {
			if A.IsEmpty() {
				return NewAssemblyError(name, "block is missing")
			}
			if r, c := A.Dims(); r != nr || c != nc {
				return NewAssemblyError(name, "block is %dx%d, expected %dx%d", r, c, nr, nc)
			}
			return nil
		}
	)
	st := bs.Structure()
	if err := st.Validate(); err != nil {
		return err
	}
	nu, np := st.NU, st.NP
	if err := check("Auu", bs.Auu, nu, nu); err != nil {
		return err
	}
	if err := check("Aup", bs.Aup, nu, np); err != nil {
		return err
	}
	if err := check("Apu", bs.Apu, np, nu); err != nil {
		return err
	}
	if !bs.App.IsEmpty() {
		if err := check("App", bs.App, np, np); err != nil {
			return err
		}
	}
	if bs.Bu != nil && len(bs.Bu) != nu {
		return NewAssemblyError("Bu", "velocity right hand side has length %d, expected %d", len(bs.Bu), nu)
	}
	if bs.Bp != nil && len(bs.Bp) != np {
		return NewAssemblyError("Bp", "pressure right hand side has length %d, expected %d", len(bs.Bp), np)
	}
	return nil
}

// MulVec computes dst = A*x for mixed vectors
func (bs BlockSystem) MulVec(dst, x []float64) {
	var (
		st     = bs.Structure()
		du, dp = st.Split(dst)
		xu, xp = st.Split(x)
	)
	bs.Auu.MulVecTo(du, xu)
	bs.Aup.MulVecAddTo(du, 1, xp, 1)
	bs.Apu.MulVecTo(dp, xu)
	if !bs.App.IsEmpty() {
		bs.App.MulVecAddTo(dp, 1, xp, 1)
	}
}

// RHS returns a freshly allocated [Bu; Bp], missing parts are zero
func (bs BlockSystem) RHS() (b []float64) {
	st := bs.Structure()
	b = make([]float64, st.Size())
	copy(b[:st.NU], bs.Bu)
	copy(b[st.NU:], bs.Bp)
	return
}

// PCDForms are the raw pressure forms delivered by an assembler, before boundary conditions and
// before they are combined into the convection-diffusion operator
type PCDForms struct {
	Ap, Mp, Kp utils.CSR
	Rp         utils.CSR // inflow correction int (u.n) p q ds, empty for BRM1
	BCDofs     []int     // pressure dofs carrying the artificial Dirichlet condition
}

// PCDOperators are the assembled operators used by the PCD Schur complement approximation
// S^-1 ~ Mp^-1 Fp Ap^-1
type PCDOperators struct {
	Ap, Mp, Fp, Kp utils.CSR
	Nu             float64
	BCDofs         []int
	Variant        PCDVariant
}

func (po PCDOperators) Validate() error {
	np, _ := po.Mp.Dims()
	if np == 0 {
		return NewAssemblyError("Mp", "pressure mass matrix is missing")
	}
	for _, op := range []struct {
		name string
		A    utils.CSR
	}{{"Ap", po.Ap}, {"Fp", po.Fp}} {
		if op.A.IsEmpty() {
			return NewAssemblyError(op.name, "operator is missing")
		}
		if r, c := op.A.Dims(); r != np || c != np {
			return NewAssemblyError(op.name, "operator is %dx%d, expected %dx%d", r, c, np, np)
		}
	}
	for _, d := range po.BCDofs {
		if d < 0 || d >= np {
			return NewAssemblyError("BCDofs", "pressure dof %d out of range [0,%d)", d, np)
		}
	}
	if !(po.Nu > 0) {
		return NewAssemblyError("Fp", "viscosity must be positive, have %g", po.Nu)
	}
	return nil
}
