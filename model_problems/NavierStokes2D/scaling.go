package NavierStokes2D

import (
	"fmt"
	"time"

	jww "github.com/spf13/jwalterweatherman"
)

// ScalingCase is one solver combination of a refinement study
type ScalingCase struct {
	Alpha    float64
	Settings Settings
}

func (sc ScalingCase) Label() string {
	return fmt.Sprintf("%s alpha=%g", sc.Settings.Label(), sc.Alpha)
}

// ScalingStudy runs the backward facing step over a sequence of refinement levels
type ScalingStudy struct {
	Levels  []int
	Stretch float64
	Nu      float64
	Cases   []ScalingCase
	Verbose bool
	// Measure, when set, wraps every nonlinear solve, e.g. to read hardware counters around it
	Measure func(label string, level int, solve func() error) error
}

// ScalingResult is the outcome of one case over all levels, in the order of Levels
type ScalingResult struct {
	Case    ScalingCase
	Reports []Report
}

func (sr ScalingResult) KrylovIterations() (its []int) {
	for _, rep := range sr.Reports {
		its = append(its, rep.Summary.KrylovIterations)
	}
	return
}

// Run solves every case on every level. A failed solve ends its case, the other cases continue and the
// first error is returned with all results gathered so far.
func (ss *ScalingStudy) Run() (results []ScalingResult, err error) {
	if len(ss.Levels) == 0 || len(ss.Cases) == 0 {
		return nil, fmt.Errorf("scaling study needs at least one level and one case")
	}
	if !(ss.Nu > 0) {
		return nil, fmt.Errorf("viscosity must be positive, have %g", ss.Nu)
	}
	for _, sc := range ss.Cases {
		res := ScalingResult{Case: sc}
		for _, level := range ss.Levels {
			rep, solveErr := ss.runLevel(sc, level)
			res.Reports = append(res.Reports, rep)
			if solveErr != nil {
				jww.ERROR.Printf("%s, level %d failed: %v\n", sc.Label(), level, solveErr)
				if err == nil {
					err = fmt.Errorf("%s, level %d: %w", sc.Label(), level, solveErr)
				}
				break
			}
			jww.INFO.Printf("%d %s %d %d %d %d %v\n", level, sc.Label(), rep.NDofs, rep.NDofsU, rep.NDofsP,
				rep.Summary.KrylovIterations, rep.SolveTime)
		}
		results = append(results, res)
	}
	return
}

func (ss *ScalingStudy) runLevel(sc ScalingCase, level int) (rep Report, err error) {
	start := time.Now()
	var ns *NavierStokes
	if ns, err = NewNavierStokes(StepProblem(level, ss.Stretch, ss.Nu, sc.Alpha), sc.Settings, ss.Verbose); err != nil {
		return
	}
	ns.PrepareTime = time.Since(start)
	solve := func() (e error) {
		rep, e = ns.Solve()
		return
	}
	if ss.Measure != nil {
		err = ss.Measure(sc.Label(), level, solve)
	} else {
		err = solve()
	}
	return
}

// PrintTable writes one line per level and case, the columns of the refinement study
func PrintTable(results []ScalingResult) {
	fmt.Printf("%5s %-36s %8s %8s %8s %6s %6s %12s %12s\n",
		"level", "case", "ndofs", "ndofs_u", "ndofs_p", "its", "krylov", "t_prepare", "t_solve")
	for _, res := range results {
		for _, rep := range res.Reports {
			fmt.Printf("%5d %-36s %8d %8d %8d %6d %6d %12.4f %12.4f\n",
				rep.Level, res.Case.Label(), rep.NDofs, rep.NDofsU, rep.NDofsP,
				rep.Summary.NonlinearIterations, rep.Summary.KrylovIterations,
				rep.PrepareTime.Seconds(), rep.SolveTime.Seconds())
		}
	}
}
