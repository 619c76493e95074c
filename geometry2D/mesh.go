package geometry2D

import (
	"fmt"
	"math"
	"sort"

	"github.com/notargets/gopcd/types"
)

// Boundary markers of the channel problems
const (
	MarkerWall    = 0
	MarkerInflow  = 1
	MarkerOutflow = 2
	MarkerNone    = -1
)

// BoundaryEdge is a triangle edge on the domain boundary. Edge LocalEdge of element K runs from
// EToV[K][LocalEdge] to EToV[K][(LocalEdge+1)%3], with the domain on its left.
type BoundaryEdge struct {
	V         [2]int
	K         int
	LocalEdge int
	Marker    int
}

// TriMesh is a conforming triangulation with counter clockwise elements
type TriMesh struct {
	VX, VY []float64
	EToV   [][3]int
	BEdges []BoundaryEdge
}

// NewTriMesh orients every element counter clockwise and collects the boundary edges, all unmarked
func NewTriMesh(VX, VY []float64, EToV [][3]int) (tm *TriMesh, err error) {
	if len(VX) != len(VY) {
		return nil, fmt.Errorf("coordinate arrays differ in length: %d, %d", len(VX), len(VY))
	}
	tm = &TriMesh{VX: VX, VY: VY, EToV: EToV}
	for k, tri := range tm.EToV {
		for _, v := range tri {
			if v < 0 || v >= len(VX) {
				return nil, fmt.Errorf("element %d references vertex %d, mesh has %d vertices", k, v, len(VX))
			}
		}
		area := tm.signedArea(k)
		switch {
		case area == 0:
			return nil, fmt.Errorf("element %d is degenerate", k)
		case area < 0:
			tm.EToV[k][1], tm.EToV[k][2] = tm.EToV[k][2], tm.EToV[k][1]
		}
	}
	tm.findBoundary()
	return
}

func (tm *TriMesh) signedArea(k int) float64 {
	var (
		tri    = tm.EToV[k]
		x0, y0 = tm.VX[tri[0]], tm.VY[tri[0]]
		x1, y1 = tm.VX[tri[1]], tm.VY[tri[1]]
		x2, y2 = tm.VX[tri[2]], tm.VY[tri[2]]
	)
	return 0.5 * ((x1-x0)*(y2-y0) - (x2-x0)*(y1-y0))
}

func (tm *TriMesh) findBoundary() {
	type owner struct{ k, le, count int }
	edges := make(map[types.EdgeKey]*owner, 3*len(tm.EToV)/2)
	for k, tri := range tm.EToV {
		for le := 0; le < 3; le++ {
			key := types.NewEdgeKey([2]int{tri[le], tri[(le+1)%3]})
			if o, ok := edges[key]; ok {
				o.count++
				continue
			}
			edges[key] = &owner{k: k, le: le, count: 1}
		}
	}
	tm.BEdges = tm.BEdges[:0]
	for _, o := range edges {
		if o.count != 1 {
			continue
		}
		tri := tm.EToV[o.k]
		tm.BEdges = append(tm.BEdges, BoundaryEdge{
			V:         [2]int{tri[o.le], tri[(o.le+1)%3]},
			K:         o.k,
			LocalEdge: o.le,
			Marker:    MarkerNone,
		})
	}
	sort.Slice(tm.BEdges, func(i, j int) bool {
		if tm.BEdges[i].K != tm.BEdges[j].K {
			return tm.BEdges[i].K < tm.BEdges[j].K
		}
		return tm.BEdges[i].LocalEdge < tm.BEdges[j].LocalEdge
	})
}

func (tm *TriMesh) NumVertices() int { return len(tm.VX) }
func (tm *TriMesh) NumElements() int { return len(tm.EToV) }

// MarkBoundary assigns markers from the edge midpoint, markerFn returns MarkerNone to leave an edge alone
func (tm *TriMesh) MarkBoundary(markerFn func(x, y float64) int) {
	for i := range tm.BEdges {
		be := &tm.BEdges[i]
		xm := 0.5 * (tm.VX[be.V[0]] + tm.VX[be.V[1]])
		ym := 0.5 * (tm.VY[be.V[0]] + tm.VY[be.V[1]])
		if m := markerFn(xm, ym); m != MarkerNone {
			be.Marker = m
		}
	}
}

// Unmarked returns the number of boundary edges without a marker
func (tm *TriMesh) Unmarked() (count int) {
	for _, be := range tm.BEdges {
		if be.Marker == MarkerNone {
			count++
		}
	}
	return
}

// EdgeNormal returns the outward unit normal and the length of a boundary edge
func (tm *TriMesh) EdgeNormal(be BoundaryEdge) (nx, ny, length float64) {
	dx := tm.VX[be.V[1]] - tm.VX[be.V[0]]
	dy := tm.VY[be.V[1]] - tm.VY[be.V[0]]
	length = math.Hypot(dx, dy)
	nx, ny = dy/length, -dx/length
	return
}

// Area is the total area of the mesh
func (tm *TriMesh) Area() (area float64) {
	for k := range tm.EToV {
		area += tm.signedArea(k)
	}
	return
}

// MaxEdgeLength is the mesh size h
func (tm *TriMesh) MaxEdgeLength() (h float64) {
	for _, tri := range tm.EToV {
		for le := 0; le < 3; le++ {
			a, b := tri[le], tri[(le+1)%3]
			h = math.Max(h, math.Hypot(tm.VX[b]-tm.VX[a], tm.VY[b]-tm.VY[a]))
		}
	}
	return
}

// Refine splits every triangle into four by joining its edge midpoints, boundary markers are inherited
func (tm *TriMesh) Refine() (fine *TriMesh) {
	var (
		nv   = len(tm.VX)
		mids = make(map[types.EdgeKey]int, 3*len(tm.EToV)/2)
		VX   = append(make([]float64, 0, 4*nv), tm.VX...)
		VY   = append(make([]float64, 0, 4*nv), tm.VY...)
	)
	midpoint := func(a, b int) int {
		key := types.NewEdgeKey([2]int{a, b})
		if m, ok := mids[key]; ok {
			return m
		}
		m := len(VX)
		VX = append(VX, 0.5*(tm.VX[a]+tm.VX[b]))
		VY = append(VY, 0.5*(tm.VY[a]+tm.VY[b]))
		mids[key] = m
		return m
	}
	EToV := make([][3]int, 0, 4*len(tm.EToV))
	for _, tri := range tm.EToV {
		v0, v1, v2 := tri[0], tri[1], tri[2]
		m01, m12, m20 := midpoint(v0, v1), midpoint(v1, v2), midpoint(v2, v0)
		EToV = append(EToV,
			[3]int{v0, m01, m20},
			[3]int{m01, v1, m12},
			[3]int{m20, m12, v2},
			[3]int{m01, m12, m20},
		)
	}
	fine = &TriMesh{VX: VX, VY: VY, EToV: EToV}
	fine.findBoundary()
	markers := make(map[types.EdgeKey]int, 2*len(tm.BEdges))
	for _, be := range tm.BEdges {
		m := mids[types.NewEdgeKey(be.V)]
		markers[types.NewEdgeKey([2]int{be.V[0], m})] = be.Marker
		markers[types.NewEdgeKey([2]int{m, be.V[1]})] = be.Marker
	}
	for i := range fine.BEdges {
		if m, ok := markers[types.NewEdgeKey(fine.BEdges[i].V)]; ok {
			fine.BEdges[i].Marker = m
		}
	}
	return
}

// NewRectangleMesh triangulates [x0,x1]x[y0,y1] with nx*ny cells, each cut along its rising diagonal
func NewRectangleMesh(x0, x1, y0, y1 float64, nx, ny int) (tm *TriMesh) {
	return newCartesianMesh(x0, x1, y0, y1, nx, ny, nil)
}

// newCartesianMesh builds a cell structured mesh, cells for which skip returns true are left out
func newCartesianMesh(x0, x1, y0, y1 float64, nx, ny int, skip func(xc, yc float64) bool) (tm *TriMesh) {
	var (
		dx, dy = (x1 - x0) / float64(nx), (y1 - y0) / float64(ny)
		vertID = make([]int, (nx+1)*(ny+1))
		VX, VY []float64
		EToV   [][3]int
		err    error
	)
	if nx < 1 || ny < 1 {
		panic(fmt.Errorf("need at least one cell in each direction, have %d x %d", nx, ny))
	}
	used := func(i, j int) bool {
		return skip == nil || !skip(x0+(float64(i)+0.5)*dx, y0+(float64(j)+0.5)*dy)
	}
	for i := range vertID {
		vertID[i] = -1
	}
	vert := func(i, j int) int {
		n := i + j*(nx+1)
		if vertID[n] < 0 {
			vertID[n] = len(VX)
			VX = append(VX, x0+float64(i)*dx)
			VY = append(VY, y0+float64(j)*dy)
		}
		return vertID[n]
	}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			if !used(i, j) {
				continue
			}
			a, b, c, d := vert(i, j), vert(i+1, j), vert(i+1, j+1), vert(i, j+1)
			EToV = append(EToV, [3]int{a, b, c}, [3]int{a, c, d})
		}
	}
	if tm, err = NewTriMesh(VX, VY, EToV); err != nil {
		panic(err)
	}
	return
}

// NewStepMesh returns the backward facing step [-1,5]x[-1,1] \ [-1,0]x[-1,0] with walls (0), the inlet
// x = -1 (1) and the outlet x = 5 (2). Level 0 has h = 1/4, each level is one uniform refinement.
// A stretch other than 1 clusters the vertices toward the step corner.
func NewStepMesh(level int, stretch float64) (tm *TriMesh) {
	if level < 0 {
		panic(fmt.Errorf("refinement level must be non negative, have %d", level))
	}
	tm = newCartesianMesh(-1, 5, -1, 1, 24, 8, func(xc, yc float64) bool {
		return xc < 0 && yc < 0
	})
	tm.MarkBoundary(StepMarkers)
	for l := 0; l < level; l++ {
		tm = tm.Refine()
	}
	if stretch != 1 {
		tm.StretchStep(stretch)
	}
	return
}

// StepMarkers classifies a boundary point of the step domain
func StepMarkers(x, y float64) int {
	const tol = 1.e-10
	switch {
	case math.Abs(x+1) < tol:
		return MarkerInflow
	case math.Abs(x-5) < tol:
		return MarkerOutflow
	}
	return MarkerWall
}

// StretchStep applies y -> sign(y)|y|^s and x -> -|x|^s (x <= 0), 5(x/5)^s (x > 0)
func (tm *TriMesh) StretchStep(s float64) {
	for i := range tm.VX {
		x, y := tm.VX[i], tm.VY[i]
		tm.VY[i] = math.Copysign(math.Pow(math.Abs(y), s), y)
		if x <= 0 {
			tm.VX[i] = -math.Pow(math.Abs(x), s)
		} else {
			tm.VX[i] = 5 * math.Pow(0.2*x, s)
		}
	}
}
