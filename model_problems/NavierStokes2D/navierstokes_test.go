package NavierStokes2D

import (
	"bytes"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/notargets/gopcd/geometry2D"
	"github.com/notargets/gopcd/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietSettings() (s Settings) {
	s = DefaultSettings()
	s.Nonlinear.Report = false
	return
}

func TestProblems(t *testing.T) {
	{ // Test the parabolic profile spans the inflow boundary
		tm := geometry2D.NewStepMesh(0, 1)
		fn, err := ParabolicInflow(tm, geometry2D.MarkerInflow)
		require.NoError(t, err)
		u, v := fn(-1, 0.5)
		assert.InDelta(t, 1., u, 1.e-12)
		assert.Equal(t, 0., v)
		u, _ = fn(-1, 0)
		assert.InDelta(t, 0., u, 1.e-12)
		_, err = ParabolicInflow(tm, 7)
		assert.Error(t, err)
	}
	{ // Test a mesh problem needs every boundary edge marked
		tm := geometry2D.NewRectangleMesh(0, 1, 0, 1, 2, 2)
		_, err := MeshProblem("square", tm, 0.1, 1)
		assert.Error(t, err)
		tm.MarkBoundary(channelMarkers(0, 1))
		c, err := MeshProblem("square", tm, 0.1, 1)
		require.NoError(t, err)
		u, _ := c.Problem.VelocityBCs[geometry2D.MarkerInflow](0, 0.5)
		assert.InDelta(t, 1., u, 1.e-12)
		assert.InDelta(t, 20., c.Problem.Reynolds(), 1.e-12)
	}
	{ // Test the manufactured forcing balances the exact solution at a point
		var (
			nu   = 0.3
			c    = ManufacturedProblem(2, nu, 1)
			x, y = 0.3, 0.7
		)
		fx, fy := c.Problem.Force(x, y)
		// -nu Lap(u) + (u.grad)u + grad(p) with u = (y^3, x^3), p = x^2 - y^2
		assert.InDelta(t, -nu*6*y+x*x*x*3*y*y+2*x, fx, 1.e-14)
		assert.InDelta(t, -nu*6*x+y*y*y*3*x*x-2*y, fy, 1.e-14)
		tx, ty := c.Problem.Traction[geometry2D.MarkerOutflow](1, y)
		assert.InDelta(t, -(1 - y*y), tx, 1.e-14)
		assert.InDelta(t, 3*nu, ty, 1.e-14)
	}
	{ // Test the driver reproduces Poiseuille flow and reports the dimensions
		ns, err := NewNavierStokes(ChannelProblem(4, 2, 0.1, 1), quietSettings(), false)
		require.NoError(t, err)
		assert.Equal(t, "GMRES", ns.Method())
		rep, err := ns.Solve()
		require.NoError(t, err)
		assert.True(t, rep.Summary.Converged)
		assert.Equal(t, 90, rep.NDofsU)
		assert.Equal(t, 15, rep.NDofsP)
		assert.Equal(t, 105, rep.NDofs)
		assert.InDelta(t, 20., rep.Reynolds, 1.e-12)
		assert.Less(t, rep.ErrorU, 1.e-4)
		assert.Less(t, rep.ErrorP, 1.e-4)
		assert.Less(t, rep.Divergence, 1.e-4)
		assert.Equal(t, "Newton BRM1 direct", rep.Label)
		rep.Print()
	}
	{ // Test invalid settings are refused when the stack is built
		s := quietSettings()
		s.Linear.Restart = 0
		_, err := NewNavierStokes(ChannelProblem(2, 2, 0.1, 1), s, false)
		assert.Error(t, err)
		_, err = NewNavierStokes(ChannelProblem(2, 2, -1, 1), quietSettings(), false)
		var ae *types.AssemblyError
		assert.True(t, errors.As(err, &ae))
	}
	{ // Test labels of mixed sub-solve modes
		s := quietSettings()
		s.Nonlinear.Type = types.Picard
		s.Nonlinear.PCDVariant = types.BRM2
		s.Nonlinear.PCD.Mode = types.Iterative
		assert.Equal(t, "Picard BRM2 direct/iterative", s.Label())
		ns, err := NewNavierStokes(ChannelProblem(2, 2, 0.1, 1), s, false)
		require.NoError(t, err)
		assert.Equal(t, "FGMRES", ns.Method())
	}
}

func TestConvergenceOrder(t *testing.T) {
	var (
		nu = 0.5
	)
	studies := make([]*ConvergenceStudy, 0, 2)
	for _, nl := range []types.NonlinearType{types.Newton, types.Picard} {
		cs := NewConvergenceStudy(nl.String())
		for _, nx := range []int{4, 8} {
			s := quietSettings()
			s.Nonlinear.Type = nl
			s.Nonlinear.RelativeTolerance = 1.e-10
			s.Nonlinear.AbsoluteTolerance = 1.e-12
			s.Linear.RelativeTolerance = 1.e-10
			s.Linear.MaxIterations = 300
			ns, err := NewNavierStokes(ManufacturedProblem(nx, nu, 1), s, false)
			require.NoError(t, err)
			rep, err := ns.Solve()
			require.NoError(t, err)
			require.True(t, rep.Summary.Converged, nl.String())
			cs.Add(nx, rep)
		}
		// P2 velocity converges at third order, P1 pressure at second order in L2
		orderU, orderP := cs.Orders()
		require.Len(t, orderU, 1)
		assert.Greater(t, orderU[0], 2., nl.String())
		assert.Greater(t, orderP[0], math.Log2(2.5), nl.String())
		studies = append(studies, cs)
	}
	{ // Test studies survive a trip through CSV
		var buf bytes.Buffer
		require.NoError(t, WriteConvergenceCSV(&buf, studies...))
		read, err := ReadConvergenceCSV(&buf)
		require.NoError(t, err)
		require.Len(t, read, 2)
		assert.Equal(t, studies[0].Title, read[0].Title)
		assert.Equal(t, studies[1].Points, read[1].Points)
		_, err = ReadConvergenceCSV(strings.NewReader("title,n,ndofs,errorU,errorP\nnewton,four,10,1,1\n"))
		assert.Error(t, err)
	}
	{ // Test the convective form does not change the divergence free solution
		s := quietSettings()
		s.Nonlinear.RelativeTolerance = 1.e-10
		s.Linear.RelativeTolerance = 1.e-10
		s.Linear.MaxIterations = 300
		var errs [2]float64
		for i, alpha := range []float64{1, 0.5} {
			ns, err := NewNavierStokes(ManufacturedProblem(4, nu, alpha), s, false)
			require.NoError(t, err)
			rep, err := ns.Solve()
			require.NoError(t, err)
			assert.True(t, rep.Summary.Converged)
			errs[i] = rep.ErrorU
		}
		assert.InDelta(t, errs[0], errs[1], 0.5*errs[0])
	}
}

func TestNewtonPicard(t *testing.T) {
	var (
		nu  = 0.05
		its = make(map[types.NonlinearType]int)
	)
	for _, nl := range []types.NonlinearType{types.Newton, types.Picard} {
		s := quietSettings()
		s.Nonlinear.Type = nl
		ns, err := NewNavierStokes(StepProblem(0, 1, nu, 1), s, false)
		require.NoError(t, err)
		rep, err := ns.Solve()
		require.NoError(t, err)
		require.True(t, rep.Summary.Converged, nl.String())
		its[nl] = rep.Summary.NonlinearIterations
	}
	assert.Less(t, its[types.Newton], its[types.Picard])
}

func TestStepScenario(t *testing.T) {
	if testing.Short() {
		t.Skip("refinement study of the backward facing step")
	}
	s := quietSettings()
	s.Nonlinear.Type = types.Picard
	s.Nonlinear.PCDVariant = types.BRM2
	ss := &ScalingStudy{
		Levels:  []int{0, 1},
		Stretch: 1,
		Nu:      0.02,
		Cases:   []ScalingCase{{Alpha: 1, Settings: s}},
	}
	results, err := ss.Run()
	require.NoError(t, err)
	require.Len(t, results, 1)
	require.Len(t, results[0].Reports, 2)
	for _, rep := range results[0].Reports {
		assert.True(t, rep.Summary.Converged)
		assert.LessOrEqual(t, rep.Summary.NonlinearIterations, 10)
	}
	its := results[0].KrylovIterations()
	assert.LessOrEqual(t, float64(its[1]), 1.5*float64(its[0])+5)
	assert.Greater(t, results[0].Reports[1].NDofs, 3*results[0].Reports[0].NDofs)
	PrintTable(results)
}

func TestNonconvergence(t *testing.T) {
	var (
		nu = 0.05
	)
	{ // Test a failing linear solve aborts the run with context
		s := quietSettings()
		s.Linear.MaxIterations = 2
		s.Linear.RelativeTolerance = 1.e-12
		s.Linear.ErrorOnNonconvergence = true
		ns, err := NewNavierStokes(StepProblem(0, 1, nu, 1), s, false)
		require.NoError(t, err)
		rep, err := ns.Solve()
		var (
			se  *types.SolveError
			lnc *types.LinearNonConvergence
		)
		require.True(t, errors.As(err, &se))
		assert.True(t, errors.As(err, &lnc))
		assert.Equal(t, 0, se.Iteration)
		assert.False(t, rep.Summary.Converged)
		assert.Equal(t, "Diverged", rep.Summary.State.String())
	}
	{ // Test an exhausted nonlinear budget still leaves a usable iterate
		s := quietSettings()
		s.Nonlinear.MaxIterations = 1
		s.Nonlinear.RelativeTolerance = 1.e-14
		ns, err := NewNavierStokes(StepProblem(0, 1, nu, 1), s, false)
		require.NoError(t, err)
		rep, err := ns.Solve()
		require.NoError(t, err)
		assert.False(t, rep.Summary.Converged)
		assert.Equal(t, 1, rep.Summary.NonlinearIterations)
		for _, w := range ns.W {
			require.False(t, math.IsNaN(w))
		}
		h := rep.Summary.ResidualHistory
		assert.Less(t, h[len(h)-1], h[0])
	}
}

func TestScalingStudy(t *testing.T) {
	{ // Test a study runs every case and measures every solve
		var measured []int
		s := quietSettings()
		ss := &ScalingStudy{
			Levels:  []int{0},
			Stretch: 1,
			Nu:      0.1,
			Cases:   []ScalingCase{{Alpha: 1, Settings: s}, {Alpha: 0.5, Settings: s}},
			Measure: func(label string, level int, solve func() error) error {
				measured = append(measured, level)
				return solve()
			},
		}
		results, err := ss.Run()
		require.NoError(t, err)
		require.Len(t, results, 2)
		assert.Equal(t, []int{0, 0}, measured)
		for _, res := range results {
			require.Len(t, res.Reports, 1)
			assert.True(t, res.Reports[0].Summary.Converged)
			assert.Greater(t, res.Reports[0].PrepareTime, time.Duration(0))
		}
		assert.Equal(t, "Newton BRM1 direct alpha=0.5", results[1].Case.Label())
	}
	{ // Test failures are reported and end their case
		s := quietSettings()
		s.Linear.MaxIterations = 1
		s.Linear.RelativeTolerance = 1.e-12
		s.Linear.ErrorOnNonconvergence = true
		ss := &ScalingStudy{Levels: []int{0, 1}, Stretch: 1, Nu: 0.1, Cases: []ScalingCase{{Alpha: 1, Settings: s}}}
		results, err := ss.Run()
		assert.Error(t, err)
		require.Len(t, results, 1)
		assert.Len(t, results[0].Reports, 1)
	}
	{ // Test an empty study is refused
		_, err := (&ScalingStudy{Nu: 0.1}).Run()
		assert.Error(t, err)
		_, err = (&ScalingStudy{Levels: []int{0}, Cases: []ScalingCase{{Alpha: 1, Settings: quietSettings()}}}).Run()
		assert.Error(t, err)
	}
	{ // Test the scaling figures are written
		var (
			dir     = t.TempDir()
			file    = filepath.Join(dir, "scaling.png")
			results = []ScalingResult{{
				Case: ScalingCase{Alpha: 1, Settings: quietSettings()},
				Reports: []Report{
					{NDofs: 1000, SolveTime: time.Second},
					{NDofs: 4000, SolveTime: 3 * time.Second},
				},
			}}
		)
		results[0].Reports[0].Summary.KrylovIterations = 40
		results[0].Reports[1].Summary.KrylovIterations = 44
		require.NoError(t, PlotScaling(results, file))
		for _, f := range []string{file, filepath.Join(dir, "scaling_time.png")} {
			info, err := os.Stat(f)
			require.NoError(t, err)
			assert.Greater(t, info.Size(), int64(0))
		}
		assert.Error(t, PlotScaling(results, filepath.Join(dir, "noext")))
		assert.Error(t, PlotScaling(nil, file))
	}
}
