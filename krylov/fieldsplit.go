package krylov

import (
	"fmt"
	"time"

	"github.com/notargets/gopcd/pcd"
	"github.com/notargets/gopcd/types"
	"github.com/notargets/gopcd/utils"
	jww "github.com/spf13/jwalterweatherman"
)

type FieldSplitConfig struct {
	RelativeTolerance     float64
	AbsoluteTolerance     float64
	MaxIterations         int
	Restart               int
	ErrorOnNonconvergence bool
	NonzeroInitialGuess   bool
	Monitor               bool
	Velocity              pcd.SubSolverConfig
}

func DefaultFieldSplitConfig() FieldSplitConfig {
	return FieldSplitConfig{
		RelativeTolerance: 1.e-6,
		AbsoluteTolerance: 1.e-50,
		MaxIterations:     100,
		Restart:           150,
		Velocity:          pcd.DefaultVelocitySubSolverConfig(),
	}
}

func (cfg FieldSplitConfig) Validate() error {
	switch {
	case !(cfg.RelativeTolerance > 0 || cfg.AbsoluteTolerance > 0):
		return fmt.Errorf("linear solver needs a positive relative or absolute tolerance")
	case cfg.MaxIterations < 1:
		return fmt.Errorf("linear solver needs at least one iteration, have %d", cfg.MaxIterations)
	case cfg.Restart < 1:
		return fmt.Errorf("GMRES restart must be positive, have %d", cfg.Restart)
	}
	if err := cfg.Velocity.Validate(); err != nil {
		return fmt.Errorf("velocity sub-solver: %w", err)
	}
	return nil
}

/*
FieldSplitSolver solves the linearized saddle point system with GMRES right preconditioned by the
upper block triangular field split

	P = [ Auu Aup ]      P^-1 r:  zp = S^-1 rp (PCD),  zu = Auu^-1 (ru - Aup zp)
	    [  0   S  ]
*/
type FieldSplitSolver struct {
	cfg      FieldSplitConfig
	sys      types.BlockSystem
	st       types.BlockStructure
	pc       *pcd.PCDPreconditioner
	velocity pcd.SubSolver
	auu      utils.CSR
	tmpU     []float64

	Solves, Iterations     int
	VelocityFactorizations int
	SolveTime              time.Duration
}

func NewFieldSplitSolver(cfg FieldSplitConfig) (fs *FieldSplitSolver, err error) {
	if err = cfg.Validate(); err != nil {
		return
	}
	fs = &FieldSplitSolver{cfg: cfg}
	return
}

func (fs *FieldSplitSolver) Config() FieldSplitConfig { return fs.cfg }

// SetOperators binds the block system and the Schur complement preconditioner. The velocity block is
// refactorized unless Auu is unchanged since the last call.
func (fs *FieldSplitSolver) SetOperators(sys types.BlockSystem, pc *pcd.PCDPreconditioner) (err error) {
	if fs.velocity != nil && fs.auu.Equal(sys.Auu) {
		return fs.ReuseVelocitySolver(sys, pc)
	}
	if err = fs.bind(sys, pc); err != nil {
		return
	}
	var vs pcd.SubSolver
	if vs, err = pcd.NewVelocitySolver(sys.Auu, fs.cfg.Velocity); err != nil {
		fs.velocity, fs.auu = nil, utils.CSR{}
		return
	}
	fs.velocity = vs
	fs.auu = sys.Auu
	fs.VelocityFactorizations++
	return
}

// ReuseVelocitySolver binds new operators but keeps the current velocity sub-solver
func (fs *FieldSplitSolver) ReuseVelocitySolver(sys types.BlockSystem, pc *pcd.PCDPreconditioner) (err error) {
	if fs.velocity == nil {
		return fmt.Errorf("no velocity sub-solver to reuse, call SetOperators first")
	}
	if r, _ := sys.Auu.Dims(); r != fs.st.NU {
		return types.NewAssemblyError("Auu", "order %d does not match the bound velocity solver %d", r, fs.st.NU)
	}
	return fs.bind(sys, pc)
}

func (fs *FieldSplitSolver) bind(sys types.BlockSystem, pc *pcd.PCDPreconditioner) (err error) {
	if err = sys.Validate(); err != nil {
		return
	}
	if pc == nil {
		return fmt.Errorf("field split solver needs a Schur complement preconditioner")
	}
	st := sys.Structure()
	if np, _ := pc.Operators().Mp.Dims(); np != st.NP {
		return types.NewAssemblyError("PCD", "operators of order %d do not match %d pressure dofs", np, st.NP)
	}
	fs.sys, fs.st, fs.pc = sys, st, pc
	if len(fs.tmpU) != st.NU {
		fs.tmpU = make([]float64, st.NU)
	}
	return
}

// Method is FGMRES when any sub-solve is inexact, GMRES otherwise
func (fs *FieldSplitSolver) Method() string {
	if fs.flexible() {
		return "FGMRES"
	}
	return "GMRES"
}

func (fs *FieldSplitSolver) flexible() bool {
	return fs.velocity == nil || fs.pc == nil || !fs.velocity.Exact() || !fs.pc.Exact()
}

func (fs *FieldSplitSolver) precondition(z, r []float64) (err error) {
	var (
		ru, rp = fs.st.Split(r)
		zu, zp = fs.st.Split(z)
	)
	if err = fs.pc.Apply(zp, rp); err != nil {
		return
	}
	copy(fs.tmpU, ru)
	fs.sys.Aup.MulVecAddTo(fs.tmpU, -1, zp, 1)
	return fs.velocity.SolveTo(zu, fs.tmpU)
}

// Solve solves the bound system for the right hand side b, x holds the initial guess when
// NonzeroInitialGuess is set
func (fs *FieldSplitSolver) Solve(b, x []float64) (res Result, err error) {
	if fs.velocity == nil || fs.pc == nil {
		return res, fmt.Errorf("field split solver has no operators, call SetOperators first")
	}
	if len(b) != fs.st.Size() || len(x) != fs.st.Size() {
		panic(fmt.Errorf("field split solve: system of order %d, len(b) = %d, len(x) = %d",
			fs.st.Size(), len(b), len(x)))
	}
	start := time.Now()
	defer func() { fs.SolveTime += time.Since(start) }()
	if !fs.cfg.NonzeroInitialGuess {
		clear(x)
	}
	g := GMRES{
		Restart:           fs.cfg.Restart,
		Flexible:          fs.flexible(),
		RelativeTolerance: fs.cfg.RelativeTolerance,
		AbsoluteTolerance: fs.cfg.AbsoluteTolerance,
		MaxIterations:     fs.cfg.MaxIterations,
	}
	if fs.cfg.Monitor {
		g.Monitor = func(it int, rnorm float64) {
			jww.DEBUG.Printf("%4d %s residual norm %12.6e\n", it, fs.Method(), rnorm)
		}
	}
	res, err = g.Solve(fs.sys.MulVec, fs.precondition, b, x)
	fs.Solves++
	fs.Iterations += res.Iterations
	if err != nil {
		return
	}
	if !res.Converged {
		jww.WARN.Printf("%s did not converge in %d iterations, residual %8.5e (relative %8.5e)\n",
			fs.Method(), res.Iterations, res.ResidualNorm, res.RelativeResidual)
		if fs.cfg.ErrorOnNonconvergence {
			err = &types.LinearNonConvergence{
				Iterations:       res.Iterations,
				ResidualNorm:     res.ResidualNorm,
				RelativeResidual: res.RelativeResidual,
			}
		}
	}
	return
}
