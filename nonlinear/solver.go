package nonlinear

import (
	"fmt"
	"math"
	"time"

	"github.com/notargets/gopcd/krylov"
	"github.com/notargets/gopcd/pcd"
	"github.com/notargets/gopcd/types"
	"github.com/notargets/gopcd/utils"
	jww "github.com/spf13/jwalterweatherman"
	"go.uber.org/multierr"
)

type State uint8

const (
	Initializing State = iota
	Iterating
	Converged
	Diverged
	MaxIterationsReached
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "Initializing"
	case Iterating:
		return "Iterating"
	case Converged:
		return "Converged"
	case Diverged:
		return "Diverged"
	case MaxIterationsReached:
		return "MaxIterationsReached"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// SolverState is owned by the nonlinear solver and exposed as a copy
type SolverState struct {
	Iteration                 int
	ResidualNorm, InitialNorm float64
	State                     State
	History                   []float64
}

type Config struct {
	Type                  types.NonlinearType
	PCDVariant            types.PCDVariant
	RelativeTolerance     float64
	AbsoluteTolerance     float64
	MaxIterations         int
	Relaxation            float64
	LineSearch            bool
	LagPCD                bool // keep the first PCD operators through a Picard iteration
	ErrorOnNonconvergence bool
	Criterion             types.ConvergenceCriterion
	Report                bool
	PCD                   pcd.SubSolverConfig
}

func DefaultConfig() Config {
	return Config{
		Type:              types.Newton,
		PCDVariant:        types.BRM1,
		RelativeTolerance: 1.e-5,
		AbsoluteTolerance: 1.e-10,
		MaxIterations:     25,
		Relaxation:        1.0,
		Criterion:         types.ResidualCriterion,
		Report:            true,
		PCD:               pcd.DefaultSubSolverConfig(),
	}
}

func (cfg Config) Validate() (err error) {
	if !(cfg.RelativeTolerance > 0 || cfg.AbsoluteTolerance > 0) {
		err = multierr.Append(err, fmt.Errorf("need a positive relative or absolute tolerance"))
	}
	if cfg.MaxIterations < 0 {
		err = multierr.Append(err, fmt.Errorf("maximum iterations must not be negative, have %d", cfg.MaxIterations))
	}
	if !(cfg.Relaxation > 0 && cfg.Relaxation <= 1) {
		err = multierr.Append(err, fmt.Errorf("relaxation parameter must lie in (0,1], have %g", cfg.Relaxation))
	}
	if pcdErr := cfg.PCD.Validate(); pcdErr != nil {
		err = multierr.Append(err, fmt.Errorf("PCD sub-solver: %w", pcdErr))
	}
	return
}

// Summary reports a nonlinear solve
type Summary struct {
	NonlinearIterations     int
	Converged               bool
	KrylovIterations        int
	LinearSolves            int
	AssemblyTime, SolveTime time.Duration
	State                   State
	ResidualHistory         []float64
}

/*
NonlinearSolver drives Newton or Picard iterations on F(w) = 0. Each correction solves J dw = -F with
the field split solver it borrows, preconditioned by PCD operators built at the current iterate.
*/
type NonlinearSolver struct {
	cfg              Config
	ops              *pcd.LinearOperatorSet
	linear           *krylov.FieldSplitSolver
	pc               *pcd.PCDPreconditioner
	state            SolverState
	krylovIterations int
	linearSolves     int
}

func NewNonlinearSolver(ops *pcd.LinearOperatorSet, linear *krylov.FieldSplitSolver, cfg Config) (ns *NonlinearSolver, err error) {
	if ops == nil || linear == nil {
		return nil, fmt.Errorf("nonlinear solver needs an operator set and a linear solver")
	}
	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	ns = &NonlinearSolver{cfg: cfg, ops: ops, linear: linear}
	return
}

// State returns a copy of the iteration state
func (ns *NonlinearSolver) State() (st SolverState) {
	st = ns.state
	st.History = append([]float64{}, ns.state.History...)
	return
}

// KrylovIterations is the total of outer Krylov iterations of the last Solve
func (ns *NonlinearSolver) KrylovIterations() int { return ns.krylovIterations }

func (ns *NonlinearSolver) Config() Config { return ns.cfg }

// Solve iterates from w, which holds the final iterate on return, converged or not
func (ns *NonlinearSolver) Solve(w []float64) (sum Summary, err error) {
	var (
		cfg        = ns.cfg
		n          = ns.ops.Structure().Size()
		nu         = ns.ops.Assembler().Viscosity()
		label      = cfg.Type.String()
		asmStart   = ns.ops.AssemblyTime
		solveStart = ns.linear.SolveTime
		dw         = make([]float64, n)
		wTrial     []float64
		it         int
	)
	var rnorm, r0, dnorm, dnorm0 float64
	if len(w) != n {
		return sum, types.NewAssemblyError("state", "iterate has length %d, expected %d", len(w), n)
	}
	ns.state = SolverState{State: Initializing}
	ns.krylovIterations, ns.linearSolves = 0, 0
	// Lagged PCD operators belong to the first iterate of this solve
	ns.ops.ResetLag()
	if cfg.LineSearch {
		wTrial = make([]float64, n)
	}
	finish := func(s State, e error) (Summary, error) {
		ns.state.State = s
		sum = Summary{
			NonlinearIterations: it,
			Converged:           s == Converged,
			KrylovIterations:    ns.krylovIterations,
			LinearSolves:        ns.linearSolves,
			AssemblyTime:        ns.ops.AssemblyTime - asmStart,
			SolveTime:           ns.linear.SolveTime - solveStart,
			State:               s,
			ResidualHistory:     append([]float64{}, ns.state.History...),
		}
		if e != nil && s == Diverged {
			jww.ERROR.Printf("%s solver aborted at iteration %d: %v\n", label, it, e)
			e = &types.SolveError{Iteration: it, ResidualNorm: rnorm, InitialNorm: r0, Err: e}
		}
		return sum, e
	}

	for it = 0; ; it++ {
		r, rerr := ns.ops.Residual(w)
		if rerr != nil {
			return finish(Diverged, rerr)
		}
		rnorm = utils.Norm2(r)
		if math.IsNaN(rnorm) || math.IsInf(rnorm, 0) {
			return finish(Diverged, fmt.Errorf("residual norm is %v", rnorm))
		}
		if it == 0 {
			r0 = rnorm
			ns.state.InitialNorm = r0
			ns.state.State = Iterating
		}
		ns.state.Iteration = it
		ns.state.ResidualNorm = rnorm
		ns.state.History = append(ns.state.History, rnorm)

		var (
			rel       = relative(rnorm, r0)
			converged bool
		)
		switch cfg.Criterion {
		case types.IncrementalCriterion:
			if it > 0 {
				converged = relative(dnorm, dnorm0) < cfg.RelativeTolerance || dnorm < cfg.AbsoluteTolerance
				ns.report(label, it, dnorm, relative(dnorm, dnorm0), "dw")
			} else {
				converged = rnorm < cfg.AbsoluteTolerance
				ns.report(label, it, rnorm, rel, "r")
			}
		default:
			converged = rel < cfg.RelativeTolerance || rnorm < cfg.AbsoluteTolerance
			ns.report(label, it, rnorm, rel, "r")
		}
		if converged {
			if cfg.Report {
				jww.INFO.Printf("%s solver finished in %d iterations and %d linear solver iterations.\n",
					label, it, ns.krylovIterations)
			}
			return finish(Converged, nil)
		}
		if it >= cfg.MaxIterations {
			jww.WARN.Printf("%s solver did not converge in %d iterations, residual %8.5e (initial %8.5e)\n",
				label, it, rnorm, r0)
			var e error
			if cfg.ErrorOnNonconvergence {
				e = &types.NonlinearNonConvergence{Iterations: it, ResidualNorm: rnorm, InitialNorm: r0}
			}
			return finish(MaxIterationsReached, e)
		}

		if err = ns.linearize(w, nu); err != nil {
			return finish(Diverged, err)
		}
		for i := range r {
			r[i] = -r[i]
		}
		res, lerr := ns.linear.Solve(r, dw)
		ns.krylovIterations += res.Iterations
		ns.linearSolves++
		if lerr != nil {
			return finish(Diverged, lerr)
		}

		omega := cfg.Relaxation
		if cfg.LineSearch {
			if omega, err = ns.lineSearch(w, dw, wTrial, omega, rnorm); err != nil {
				return finish(Diverged, err)
			}
		}
		utils.Axpy(omega, dw, w)
		dnorm = omega * utils.Norm2(dw)
		if it == 0 {
			dnorm0 = dnorm
		}
	}
}

// linearize builds the block system and PCD operators at w and binds them to the linear solver
func (ns *NonlinearSolver) linearize(w []float64, nu float64) (err error) {
	var (
		cfg     = ns.cfg
		sys     types.BlockSystem
		pcdOps  types.PCDOperators
		changed = true
	)
	if cfg.LagPCD && cfg.Type == types.Picard {
		sys, pcdOps, changed, err = ns.ops.BuildLagged(w, nu, cfg.PCDVariant, cfg.Type)
	} else {
		sys, pcdOps, err = ns.ops.Build(w, nu, cfg.PCDVariant, cfg.Type)
	}
	if err != nil {
		return
	}
	switch {
	case ns.pc == nil:
		if ns.pc, err = pcd.NewPCDPreconditioner(pcdOps, cfg.PCD); err != nil {
			return
		}
	case changed:
		if err = ns.pc.Update(pcdOps); err != nil {
			return
		}
	}
	return ns.linear.SetOperators(sys, ns.pc)
}

// lineSearch halves the step from omega until the residual norm decreases
func (ns *NonlinearSolver) lineSearch(w, dw, wTrial []float64, omega, rnorm float64) (float64, error) {
	const maxHalvings = 8
	for k := 0; k < maxHalvings; k++ {
		copy(wTrial, w)
		utils.Axpy(omega, dw, wTrial)
		r, err := ns.ops.Residual(wTrial)
		if err != nil {
			return omega, err
		}
		if trial := utils.Norm2(r); trial < rnorm {
			return omega, nil
		}
		omega *= 0.5
	}
	jww.WARN.Printf("line search found no decrease, taking step %g\n", omega)
	return omega, nil
}

func (ns *NonlinearSolver) report(label string, it int, abs, rel float64, name string) {
	if !ns.cfg.Report {
		return
	}
	jww.INFO.Printf("%s iteration %d: %s (abs) = %.3e (tol = %.3e) %s (rel) = %.3e (tol = %.3e)\n",
		label, it, name, abs, ns.cfg.AbsoluteTolerance, name, rel, ns.cfg.RelativeTolerance)
}

func relative(x, x0 float64) float64 {
	if x0 == 0 {
		return 0
	}
	return x / x0
}
