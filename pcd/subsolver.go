package pcd

import (
	"fmt"

	"github.com/notargets/gopcd/types"
	"github.com/notargets/gopcd/utils"
)

// SubSolverConfig selects how the blocks of the field split preconditioner are inverted
type SubSolverConfig struct {
	Mode          types.SolveMode
	Sweeps        int        // Richardson sweeps for Ap (or Auu when used for the velocity block)
	MpIterations  int        // Chebyshev iterations for Mp
	MpEigenBounds [2]float64 // spectrum bounds of D^-1 Mp
}

func DefaultSubSolverConfig() SubSolverConfig {
	return SubSolverConfig{
		Mode:          types.Direct,
		Sweeps:        2,
		MpIterations:  5,
		MpEigenBounds: [2]float64{0.5, 2.0},
	}
}

// DefaultVelocitySubSolverConfig is the velocity block setting: one Gauss-Seidel preconditioned
// Richardson sweep when iterative
func DefaultVelocitySubSolverConfig() SubSolverConfig {
	cfg := DefaultSubSolverConfig()
	cfg.Sweeps = 1
	return cfg
}

func (cfg SubSolverConfig) Validate() error {
	switch {
	case cfg.Mode != types.Direct && cfg.Mode != types.Iterative:
		return fmt.Errorf("unknown solve mode %v", cfg.Mode)
	case cfg.Mode == types.Iterative && cfg.Sweeps < 1:
		return fmt.Errorf("iterative sub-solve needs at least one sweep, have %d", cfg.Sweeps)
	case cfg.Mode == types.Iterative && cfg.MpIterations < 1:
		return fmt.Errorf("iterative mass matrix solve needs at least one iteration, have %d", cfg.MpIterations)
	case cfg.Mode == types.Iterative && !(cfg.MpEigenBounds[0] > 0 && cfg.MpEigenBounds[1] > cfg.MpEigenBounds[0]):
		return fmt.Errorf("invalid eigenvalue bounds %v", cfg.MpEigenBounds)
	}
	return nil
}

// SubSolver approximates dst = A^-1 b for one operator
type SubSolver interface {
	SolveTo(dst, b []float64) error
	// Exact is true for direct factorizations, the action is then a fixed linear map
	Exact() bool
	Operator() string
}

// PreconditionerSubsolvers are the handles bound to the pressure Laplacian and mass matrix
type PreconditionerSubsolvers struct {
	Ap, Mp SubSolver
}

type luSolver struct {
	name string
	lu   *utils.BandLU
}

func (s *luSolver) SolveTo(dst, b []float64) error { s.lu.SolveTo(dst, b); return nil }
func (s *luSolver) Exact() bool                    { return true }
func (s *luSolver) Operator() string               { return s.name }

type choleskySolver struct {
	name string
	ch   *utils.BandCholesky
}

func (s *choleskySolver) SolveTo(dst, b []float64) error {
	if err := s.ch.SolveTo(dst, b); err != nil {
		return &types.FactorizationError{Operator: s.name, Err: err}
	}
	return nil
}
func (s *choleskySolver) Exact() bool      { return true }
func (s *choleskySolver) Operator() string { return s.name }

type sweepSolver struct {
	name  string
	solve func(x, b []float64)
}

func (s *sweepSolver) SolveTo(dst, b []float64) error { s.solve(dst, b); return nil }
func (s *sweepSolver) Exact() bool                    { return false }
func (s *sweepSolver) Operator() string               { return s.name }

// NewVelocitySolver inverts the (nonsymmetric) velocity block: banded LU with partial pivoting or
// Gauss-Seidel preconditioned Richardson sweeps
func NewVelocitySolver(Auu utils.CSR, cfg SubSolverConfig) (SubSolver, error) {
	const name = "Auu"
	if cfg.Mode == types.Iterative {
		sm, err := utils.NewSmoother(Auu)
		if err != nil {
			return nil, &types.FactorizationError{Operator: name, Err: err}
		}
		rs := utils.NewRichardson(Auu, cfg.Sweeps, func(z, r []float64) {
			clear(z)
			sm.GaussSeidel(z, r, false)
		})
		return &sweepSolver{name: name, solve: rs.SolveTo}, nil
	}
	lu, err := utils.NewBandLU(Auu)
	if err != nil {
		return nil, &types.FactorizationError{Operator: name, Err: err}
	}
	return &luSolver{name: name, lu: lu}, nil
}

// newLaplaceSolver inverts Ap: banded Cholesky or symmetric Gauss-Seidel Richardson sweeps
func newLaplaceSolver(Ap utils.CSR, cfg SubSolverConfig) (SubSolver, error) {
	const name = "Ap"
	if cfg.Mode == types.Iterative {
		sm, err := utils.NewSmoother(Ap)
		if err != nil {
			return nil, &types.FactorizationError{Operator: name, Err: err}
		}
		rs := utils.NewRichardson(Ap, cfg.Sweeps, sm.SymmetricGaussSeidel)
		return &sweepSolver{name: name, solve: rs.SolveTo}, nil
	}
	ch, err := utils.NewBandCholesky(Ap)
	if err != nil {
		return nil, &types.FactorizationError{Operator: name, Err: err}
	}
	return &choleskySolver{name: name, ch: ch}, nil
}

// newMassSolver inverts Mp: banded Cholesky or Jacobi preconditioned Chebyshev
func newMassSolver(Mp utils.CSR, cfg SubSolverConfig) (SubSolver, error) {
	const name = "Mp"
	if cfg.Mode == types.Iterative {
		ch, err := utils.NewChebyshev(Mp, cfg.MpIterations, cfg.MpEigenBounds[0], cfg.MpEigenBounds[1])
		if err != nil {
			return nil, &types.FactorizationError{Operator: name, Err: err}
		}
		return &sweepSolver{name: name, solve: ch.SolveTo}, nil
	}
	ch, err := utils.NewBandCholesky(Mp)
	if err != nil {
		return nil, &types.FactorizationError{Operator: name, Err: err}
	}
	return &choleskySolver{name: name, ch: ch}, nil
}
