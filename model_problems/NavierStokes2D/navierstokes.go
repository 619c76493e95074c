package NavierStokes2D

import (
	"fmt"
	"time"

	"github.com/notargets/gopcd/fem"
	"github.com/notargets/gopcd/krylov"
	"github.com/notargets/gopcd/nonlinear"
	"github.com/notargets/gopcd/pcd"
	"github.com/notargets/gopcd/types"
	"github.com/notargets/gopcd/utils"
	jww "github.com/spf13/jwalterweatherman"
)

// Settings configures the nonlinear and the linear solver of a run
type Settings struct {
	Nonlinear nonlinear.Config
	Linear    krylov.FieldSplitConfig
}

func DefaultSettings() Settings {
	return Settings{
		Nonlinear: nonlinear.DefaultConfig(),
		Linear:    krylov.DefaultFieldSplitConfig(),
	}
}

// Label names the solver combination, e.g. "Picard BRM2 direct"
func (s Settings) Label() string {
	mode := s.Nonlinear.PCD.Mode.String()
	if s.Linear.Velocity.Mode != s.Nonlinear.PCD.Mode {
		mode = s.Linear.Velocity.Mode.String() + "/" + mode
	}
	return fmt.Sprintf("%s %s %s", s.Nonlinear.Type, s.Nonlinear.PCDVariant, mode)
}

/*
NavierStokes couples a Case to the solver stack

	fem.Assembler -> pcd.LinearOperatorSet -> krylov.FieldSplitSolver -> nonlinear.NonlinearSolver

W holds the mixed iterate [u; p], initialized with the Dirichlet values and zero elsewhere.
*/
type NavierStokes struct {
	Case        *Case
	Settings    Settings
	Asm         *fem.Assembler
	Ops         *pcd.LinearOperatorSet
	Linear      *krylov.FieldSplitSolver
	Solver      *nonlinear.NonlinearSolver
	W           []float64
	PrepareTime time.Duration
}

func NewNavierStokes(c *Case, s Settings, verbose bool) (ns *NavierStokes, err error) {
	start := time.Now()
	ns = &NavierStokes{Case: c, Settings: s}
	if ns.Asm, err = fem.NewAssembler(c.Problem); err != nil {
		return nil, err
	}
	if ns.Ops, err = pcd.NewLinearOperatorSet(ns.Asm); err != nil {
		return nil, err
	}
	if ns.Linear, err = krylov.NewFieldSplitSolver(s.Linear); err != nil {
		return nil, err
	}
	if ns.Solver, err = nonlinear.NewNonlinearSolver(ns.Ops, ns.Linear, s.Nonlinear); err != nil {
		return nil, err
	}
	st := ns.Ops.Structure()
	ns.W = make([]float64, st.Size())
	ns.Asm.SetBoundaryValues(ns.W)
	ns.PrepareTime = time.Since(start)
	if verbose {
		fmt.Printf("Navier-Stokes Equations in 2 Dimensions, %s problem\n", c.Name)
		fmt.Printf("Reynolds number: Re = %g\n", c.Problem.Reynolds())
		fmt.Printf("Taylor-Hood P2/P1, %d elements, ndofs = %d (ndofs_u = %d, ndofs_p = %d)\n",
			c.Problem.Mesh.NumElements(), st.Size(), st.NU, st.NP)
		fmt.Printf("Solver: %s, outer Krylov method %s\n", s.Label(), ns.Method())
	}
	return
}

// Method is the outer Krylov method the field split solver will use with the configured sub-solves
func (ns *NavierStokes) Method() string {
	if ns.Settings.Linear.Velocity.Mode == types.Direct && ns.Settings.Nonlinear.PCD.Mode == types.Direct {
		return "GMRES"
	}
	return "FGMRES"
}

// Report is the outcome of a single run
type Report struct {
	Name                  string
	Label                 string
	Level                 int
	NDofs, NDofsU, NDofsP int
	Reynolds              float64
	Summary               nonlinear.Summary
	PrepareTime           time.Duration
	SolveTime             time.Duration
	ErrorU, ErrorP        float64 // against the analytic solution, when there is one
	Divergence            float64
	MemUsage              string
}

// Solve runs the nonlinear solver from the current iterate. The report is filled in on failure too.
func (ns *NavierStokes) Solve() (rep Report, err error) {
	st := ns.Ops.Structure()
	rep = Report{
		Name:        ns.Case.Name,
		Label:       ns.Settings.Label(),
		Level:       ns.Case.Level,
		NDofs:       st.Size(),
		NDofsU:      st.NU,
		NDofsP:      st.NP,
		Reynolds:    ns.Case.Problem.Reynolds(),
		PrepareTime: ns.PrepareTime,
	}
	start := time.Now()
	rep.Summary, err = ns.Solver.Solve(ns.W)
	rep.SolveTime = time.Since(start)
	rep.MemUsage = utils.GetMemUsage()
	if err != nil {
		jww.ERROR.Printf("%s level %d: %v\n", ns.Case.Name, ns.Case.Level, err)
		return
	}
	if ns.Case.Exact != nil {
		rep.ErrorU, rep.ErrorP = ns.Asm.ErrorL2(ns.W, ns.Case.Exact)
	}
	rep.Divergence = ns.Asm.DivergenceL2(ns.W)
	return
}

func (rep Report) Print() {
	var (
		sum = rep.Summary
	)
	fmt.Printf("%s [%s] level %d, Re = %g\n", rep.Name, rep.Label, rep.Level, rep.Reynolds)
	fmt.Printf("ndofs = %d, ndofs_u = %d, ndofs_p = %d\n", rep.NDofs, rep.NDofsU, rep.NDofsP)
	fmt.Printf("Converged = %v (%s) in %d nonlinear iterations, %d Krylov iterations over %d linear solves\n",
		sum.Converged, sum.State, sum.NonlinearIterations, sum.KrylovIterations, sum.LinearSolves)
	fmt.Printf("Prepare %v, Solve %v (assembly %v, linear solves %v)\n",
		rep.PrepareTime, rep.SolveTime, sum.AssemblyTime, sum.SolveTime)
	if rep.ErrorU != 0 || rep.ErrorP != 0 {
		fmt.Printf("L2 error: velocity %8.5e, pressure %8.5e\n", rep.ErrorU, rep.ErrorP)
	}
	fmt.Printf("||div u||_L2 = %8.5e\n", rep.Divergence)
	fmt.Printf("%s\n", rep.MemUsage)
}
