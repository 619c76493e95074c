package fem

import (
	"fmt"
	"sort"

	"github.com/notargets/gopcd/geometry2D"
	"go.uber.org/multierr"
)

// VectorField is a velocity-like field in the plane
type VectorField func(x, y float64) (fx, fy float64)

/*
Problem is a steady Navier-Stokes boundary value problem

	-nu Lap(u) + (u.grad)u + (1-Alpha) u div(u) + grad(p) = f,   div(u) = 0

Alpha = 1 is the convective form, Alpha = 0 the divergence form div(u (x) u). Velocity is prescribed on
the markers of VelocityBCs, the traction nu du/dn - p n on the markers of Traction. Boundaries listed in
neither carry the do-nothing condition. InflowMarker and OutflowMarker place the artificial pressure
condition of the PCD operators.
*/
type Problem struct {
	Mesh                        *geometry2D.TriMesh
	Nu                          float64
	Alpha                       float64
	Force                       VectorField
	VelocityBCs                 map[int]VectorField
	Traction                    map[int]VectorField
	InflowMarker, OutflowMarker int
}

func (pr *Problem) Validate() (err error) {
	if pr.Mesh == nil {
		return fmt.Errorf("problem has no mesh")
	}
	if !(pr.Nu > 0) {
		err = multierr.Append(err, fmt.Errorf("viscosity must be positive, have %g", pr.Nu))
	}
	if pr.Alpha < 0 || pr.Alpha > 1 {
		err = multierr.Append(err, fmt.Errorf("convective form parameter alpha must lie in [0,1], have %g", pr.Alpha))
	}
	present := make(map[int]bool)
	for _, be := range pr.Mesh.BEdges {
		present[be.Marker] = true
	}
	for _, m := range []int{pr.InflowMarker, pr.OutflowMarker} {
		if !present[m] {
			err = multierr.Append(err, fmt.Errorf("no boundary edges carry marker %d", m))
		}
	}
	for m := range pr.Traction {
		if _, ok := pr.VelocityBCs[m]; ok {
			err = multierr.Append(err, fmt.Errorf("marker %d has both a velocity and a traction condition", m))
		}
	}
	return
}

// dirichletMarkers are applied in increasing order, later markers win at shared nodes
func (pr *Problem) dirichletMarkers() (markers []int) {
	for m := range pr.VelocityBCs {
		markers = append(markers, m)
	}
	sort.Ints(markers)
	return
}

// Reynolds is the Reynolds number 2/nu based on the unit peak inflow velocity and the channel height
func (pr *Problem) Reynolds() float64 { return 2. / pr.Nu }
