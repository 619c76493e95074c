package pcd

import (
	"fmt"
	"time"

	"github.com/notargets/gopcd/types"
	"github.com/notargets/gopcd/utils"
)

// Assembler delivers the discrete operators of a mixed velocity / pressure problem
type Assembler interface {
	Structure() (types.BlockStructure, error)
	Viscosity() float64
	AssembleResidual(w []float64) ([]float64, error)
	AssembleJacobian(w []float64, mode types.NonlinearType) (types.BlockSystem, error)
	AssemblePCDOperators(w []float64, variant types.PCDVariant) (types.PCDForms, error)
	// ApplyBCs imposes the velocity Dirichlet rows on sys and r = w - g on the residual, either may be nil
	ApplyBCs(sys *types.BlockSystem, r, w []float64)
}

// LinearOperatorSet owns the linearized block system and the PCD operators of the current iterate
type LinearOperatorSet struct {
	asm       Assembler
	structure types.BlockStructure
	System    types.BlockSystem
	PCD       types.PCDOperators
	havePCD   bool

	AssemblyTime              time.Duration
	JacobianBuilds, PCDBuilds int
}

func NewLinearOperatorSet(asm Assembler) (ops *LinearOperatorSet, err error) {
	var st types.BlockStructure
	if st, err = asm.Structure(); err != nil {
		return
	}
	if err = st.Validate(); err != nil {
		return
	}
	ops = &LinearOperatorSet{asm: asm, structure: st}
	return
}

func (ops *LinearOperatorSet) Structure() types.BlockStructure { return ops.structure }

func (ops *LinearOperatorSet) Assembler() Assembler { return ops.asm }

// Residual returns F(w) with the Dirichlet rows replaced by w - g
func (ops *LinearOperatorSet) Residual(w []float64) (r []float64, err error) {
	defer ops.timed(time.Now())
	if len(w) != ops.structure.Size() {
		return nil, types.NewAssemblyError("residual", "state has length %d, expected %d",
			len(w), ops.structure.Size())
	}
	if r, err = ops.asm.AssembleResidual(w); err != nil {
		return nil, err
	}
	if len(r) != ops.structure.Size() {
		return nil, types.NewAssemblyError("residual", "assembled residual has length %d, expected %d",
			len(r), ops.structure.Size())
	}
	ops.asm.ApplyBCs(nil, r, w)
	return
}

// Build assembles the Jacobian blocks and the PCD operators at w
func (ops *LinearOperatorSet) Build(w []float64, nu float64, variant types.PCDVariant,
	mode types.NonlinearType) (sys types.BlockSystem, pc types.PCDOperators, err error) {
	if !(nu > 0) {
		err = types.NewAssemblyError("Fp", "viscosity must be positive, have %g", nu)
		return
	}
	if sys, err = ops.buildJacobian(w, mode); err != nil {
		return
	}
	if pc, err = ops.buildPCD(w, nu, variant); err != nil {
		return
	}
	return
}

// BuildLagged rebuilds the Jacobian only and keeps the PCD operators of an earlier Build. The PCD
// operators are assembled at w when none exist yet, changed reports that case.
func (ops *LinearOperatorSet) BuildLagged(w []float64, nu float64, variant types.PCDVariant,
	mode types.NonlinearType) (sys types.BlockSystem, pc types.PCDOperators, changed bool, err error) {
	if !ops.havePCD || ops.PCD.Nu != nu || ops.PCD.Variant != variant {
		sys, pc, err = ops.Build(w, nu, variant, mode)
		changed = err == nil
		return
	}
	if sys, err = ops.buildJacobian(w, mode); err != nil {
		return
	}
	pc = ops.PCD
	return
}

// ResetLag forgets the PCD operators kept for BuildLagged, the next BuildLagged assembles them anew
func (ops *LinearOperatorSet) ResetLag() { ops.havePCD = false }

func (ops *LinearOperatorSet) buildJacobian(w []float64, mode types.NonlinearType) (sys types.BlockSystem, err error) {
	defer ops.timed(time.Now())
	if sys, err = ops.asm.AssembleJacobian(w, mode); err != nil {
		return
	}
	ops.asm.ApplyBCs(&sys, nil, w)
	if err = sys.Validate(); err != nil {
		return
	}
	if st := sys.Structure(); st != ops.structure {
		err = types.NewAssemblyError("Jacobian", "block structure %d + %d does not match %d + %d",
			st.NU, st.NP, ops.structure.NU, ops.structure.NP)
		return
	}
	ops.System = sys
	ops.JacobianBuilds++
	return
}

func (ops *LinearOperatorSet) buildPCD(w []float64, nu float64, variant types.PCDVariant) (pc types.PCDOperators, err error) {
	defer ops.timed(time.Now())
	var forms types.PCDForms
	if forms, err = ops.asm.AssemblePCDOperators(w, variant); err != nil {
		return
	}
	if forms.Kp.IsEmpty() {
		err = types.NewAssemblyError("Kp", "pressure convection matrix is missing")
		return
	}
	if variant == types.BRM2 && forms.Rp.IsEmpty() {
		err = types.NewAssemblyError("Rp", "inflow correction is required by %v", variant)
		return
	}
	if pc, err = CombinePCDForms(forms, nu, variant); err != nil {
		return
	}
	if r, _ := pc.Mp.Dims(); r != ops.structure.NP {
		err = types.NewAssemblyError("Mp", "order %d does not match %d pressure dofs", r, ops.structure.NP)
		return
	}
	ops.PCD = pc
	ops.havePCD = true
	ops.PCDBuilds++
	return
}

// CombinePCDForms forms Fp = nu*Ap + Kp (- Rp for BRM2) and imposes the artificial pressure Dirichlet
// condition: identity rows and columns on Ap, identity rows on Fp
func CombinePCDForms(forms types.PCDForms, nu float64, variant types.PCDVariant) (pc types.PCDOperators, err error) {
	var (
		Fp utils.CSR
	)
	if forms.Ap.IsEmpty() || forms.Kp.IsEmpty() {
		err = types.NewAssemblyError("Fp", "Ap and Kp are required to form the convection-diffusion operator")
		return
	}
	Fp = forms.Ap.Scale(nu).AddScaled(1, forms.Kp)
	if variant == types.BRM2 {
		Fp = Fp.AddScaled(-1, forms.Rp)
	}
	pc = types.PCDOperators{
		Ap:      forms.Ap.Clone().ZeroRowsColumns(forms.BCDofs, 1).SetName("Ap"),
		Mp:      forms.Mp.SetName("Mp"),
		Fp:      Fp.ZeroRows(forms.BCDofs, 1).SetName("Fp"),
		Kp:      forms.Kp.SetName("Kp"),
		Nu:      nu,
		BCDofs:  forms.BCDofs,
		Variant: variant,
	}
	if err = pc.Validate(); err != nil {
		err = fmt.Errorf("%v PCD operators: %w", variant, err)
	}
	return
}

func (ops *LinearOperatorSet) timed(start time.Time) {
	ops.AssemblyTime += time.Since(start)
}
