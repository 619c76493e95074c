package NavierStokes2D

import (
	"fmt"
	"math"

	"github.com/notargets/gopcd/fem"
	"github.com/notargets/gopcd/geometry2D"
)

// Case is a boundary value problem together with its analytic solution, when one is known
type Case struct {
	Name    string
	Level   int
	Problem *fem.Problem
	Exact   fem.MixedField
}

func noSlip(x, y float64) (float64, float64) { return 0, 0 }

// ParabolicInflow is the profile 4 s (1-s) in the direction normal to the inflow, s running from 0 to 1
// across the extent in y of the edges carrying marker
func ParabolicInflow(tm *geometry2D.TriMesh, marker int) (fn fem.VectorField, err error) {
	var (
		ymin, ymax = math.Inf(1), math.Inf(-1)
		found      bool
	)
	for _, be := range tm.BEdges {
		if be.Marker != marker {
			continue
		}
		found = true
		for _, v := range be.V {
			ymin, ymax = math.Min(ymin, tm.VY[v]), math.Max(ymax, tm.VY[v])
		}
	}
	if !found || !(ymax > ymin) {
		return nil, fmt.Errorf("no inflow profile on marker %d", marker)
	}
	fn = func(x, y float64) (float64, float64) {
		s := (y - ymin) / (ymax - ymin)
		return 4 * s * (1 - s), 0
	}
	return
}

// StepProblem is the flow over the backward facing step [-1,5]x[-1,1] \ [-1,0]x[-1,0] with the parabolic
// profile 4y(1-y) entering at x = -1, no-slip walls and a do-nothing outlet at x = 5
func StepProblem(level int, stretch, nu, alpha float64) (c *Case) {
	c = &Case{
		Name:  "step",
		Level: level,
		Problem: &fem.Problem{
			Mesh:  geometry2D.NewStepMesh(level, stretch),
			Nu:    nu,
			Alpha: alpha,
			VelocityBCs: map[int]fem.VectorField{
				geometry2D.MarkerWall: noSlip,
				geometry2D.MarkerInflow: func(x, y float64) (float64, float64) {
					return 4 * y * (1 - y), 0
				},
			},
			InflowMarker:  geometry2D.MarkerInflow,
			OutflowMarker: geometry2D.MarkerOutflow,
		},
	}
	return
}

func channelMarkers(x0, x1 float64) func(x, y float64) int {
	return func(x, y float64) int {
		switch {
		case math.Abs(x-x0) < 1.e-12:
			return geometry2D.MarkerInflow
		case math.Abs(x-x1) < 1.e-12:
			return geometry2D.MarkerOutflow
		}
		return geometry2D.MarkerWall
	}
}

// ChannelProblem is Poiseuille flow in [0,2]x[0,1], which P2/P1 elements reproduce exactly
func ChannelProblem(nx, ny int, nu, alpha float64) (c *Case) {
	tm := geometry2D.NewRectangleMesh(0, 2, 0, 1, nx, ny)
	tm.MarkBoundary(channelMarkers(0, 2))
	c = &Case{
		Name: "channel",
		Problem: &fem.Problem{
			Mesh:  tm,
			Nu:    nu,
			Alpha: alpha,
			VelocityBCs: map[int]fem.VectorField{
				geometry2D.MarkerWall: noSlip,
				geometry2D.MarkerInflow: func(x, y float64) (float64, float64) {
					return 4 * y * (1 - y), 0
				},
			},
			InflowMarker:  geometry2D.MarkerInflow,
			OutflowMarker: geometry2D.MarkerOutflow,
		},
		Exact: func(x, y float64) (u, v, p float64) {
			return 4 * y * (1 - y), 0, 8 * nu * (2 - x)
		},
	}
	return
}

/*
ManufacturedProblem solves on the unit square for

	u = (y^3, x^3),  p = x^2 - y^2

with the exact velocity imposed on x = 0, y = 0 and y = 1 and the exact traction nu du/dn - p n on x = 1.
The velocity is divergence free, so the forcing does not depend on alpha.
*/
func ManufacturedProblem(nx int, nu, alpha float64) (c *Case) {
	tm := geometry2D.NewRectangleMesh(0, 1, 0, 1, nx, nx)
	tm.MarkBoundary(channelMarkers(0, 1))
	exactU := func(x, y float64) (float64, float64) { return y * y * y, x * x * x }
	c = &Case{
		Name: "manufactured",
		Problem: &fem.Problem{
			Mesh:  tm,
			Nu:    nu,
			Alpha: alpha,
			Force: func(x, y float64) (float64, float64) {
				return -6*nu*y + 3*x*x*x*y*y + 2*x, -6*nu*x + 3*x*x*y*y*y - 2*y
			},
			VelocityBCs: map[int]fem.VectorField{
				geometry2D.MarkerWall:   exactU,
				geometry2D.MarkerInflow: exactU,
			},
			Traction: map[int]fem.VectorField{
				geometry2D.MarkerOutflow: func(x, y float64) (float64, float64) {
					return -(x*x - y*y), 3 * nu * x * x
				},
			},
			InflowMarker:  geometry2D.MarkerInflow,
			OutflowMarker: geometry2D.MarkerOutflow,
		},
		Exact: func(x, y float64) (u, v, p float64) {
			return y * y * y, x * x * x, x*x - y*y
		},
	}
	return
}

// MeshProblem poses the inflow/outflow problem on a marked mesh read from a file, the inflow profile is
// parabolic across the inflow boundary
func MeshProblem(name string, tm *geometry2D.TriMesh, nu, alpha float64) (c *Case, err error) {
	if n := tm.Unmarked(); n != 0 {
		return nil, fmt.Errorf("mesh has %d boundary edges without a marker", n)
	}
	var inflow fem.VectorField
	if inflow, err = ParabolicInflow(tm, geometry2D.MarkerInflow); err != nil {
		return
	}
	c = &Case{
		Name: name,
		Problem: &fem.Problem{
			Mesh:  tm,
			Nu:    nu,
			Alpha: alpha,
			VelocityBCs: map[int]fem.VectorField{
				geometry2D.MarkerWall:   noSlip,
				geometry2D.MarkerInflow: inflow,
			},
			InflowMarker:  geometry2D.MarkerInflow,
			OutflowMarker: geometry2D.MarkerOutflow,
		},
	}
	return
}
