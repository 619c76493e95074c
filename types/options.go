package types

import (
	"fmt"
	"strings"
)

// NonlinearType selects the linearization of the convective term
type NonlinearType uint8

const (
	Newton NonlinearType = iota
	Picard
)

var NonlinearNameMap = map[string]NonlinearType{
	"newton": Newton,
	"picard": Picard,
	"oseen":  Picard,
}

func (nt NonlinearType) String() string {
	switch nt {
	case Newton:
		return "Newton"
	case Picard:
		return "Picard"
	}
	return fmt.Sprintf("NonlinearType(%d)", int(nt))
}

func NewNonlinearType(label string) (nt NonlinearType, err error) {
	var ok bool
	if nt, ok = NonlinearNameMap[strings.ToLower(strings.TrimSpace(label))]; !ok {
		err = fmt.Errorf("unknown nonlinear solver type \"%s\", choose one of newton, picard", label)
	}
	return
}

/*
PCDVariant selects where the artificial pressure boundary condition of the PCD operators is placed

	BRM1: Dirichlet condition on the inflow boundary, Fp = nu*Ap + Kp
	BRM2: Dirichlet condition on the outflow boundary with a Robin correction on the inflow,
	      Fp = nu*Ap + Kp - Rp, where Rp = int (u.n) p q ds. ESW names the same construction.
*/
type PCDVariant uint8

const (
	BRM1 PCDVariant = iota
	BRM2
)

var PCDVariantNameMap = map[string]PCDVariant{
	"brm1": BRM1,
	"a":    BRM1,
	"brm2": BRM2,
	"esw":  BRM2,
	"b":    BRM2,
}

func (pv PCDVariant) String() string {
	switch pv {
	case BRM1:
		return "BRM1"
	case BRM2:
		return "BRM2"
	}
	return fmt.Sprintf("PCDVariant(%d)", int(pv))
}

func NewPCDVariant(label string) (pv PCDVariant, err error) {
	var ok bool
	if pv, ok = PCDVariantNameMap[strings.ToLower(strings.TrimSpace(label))]; !ok {
		err = fmt.Errorf("unknown PCD strategy \"%s\", choose one of BRM1, BRM2, ESW", label)
	}
	return
}

// SolveMode selects exact (factorization) or inexact (fixed work iteration) sub-solves
type SolveMode uint8

const (
	Direct SolveMode = iota
	Iterative
)

var SolveModeNameMap = map[string]SolveMode{
	"direct":    Direct,
	"lu":        Direct,
	"iterative": Iterative,
	"inexact":   Iterative,
}

func (sm SolveMode) String() string {
	switch sm {
	case Direct:
		return "direct"
	case Iterative:
		return "iterative"
	}
	return fmt.Sprintf("SolveMode(%d)", int(sm))
}

func NewSolveMode(label string) (sm SolveMode, err error) {
	var ok bool
	if sm, ok = SolveModeNameMap[strings.ToLower(strings.TrimSpace(label))]; !ok {
		err = fmt.Errorf("unknown solve mode \"%s\", choose one of direct, iterative", label)
	}
	return
}

// ConvergenceCriterion selects the quantity tested by the nonlinear convergence check
type ConvergenceCriterion uint8

const (
	ResidualCriterion ConvergenceCriterion = iota
	IncrementalCriterion
)

var CriterionNameMap = map[string]ConvergenceCriterion{
	"residual":    ResidualCriterion,
	"incremental": IncrementalCriterion,
}

func (cc ConvergenceCriterion) String() string {
	switch cc {
	case ResidualCriterion:
		return "residual"
	case IncrementalCriterion:
		return "incremental"
	}
	return fmt.Sprintf("ConvergenceCriterion(%d)", int(cc))
}

func NewConvergenceCriterion(label string) (cc ConvergenceCriterion, err error) {
	var ok bool
	if cc, ok = CriterionNameMap[strings.ToLower(strings.TrimSpace(label))]; !ok {
		err = fmt.Errorf("unknown convergence criterion \"%s\", choose one of residual, incremental", label)
	}
	return
}
