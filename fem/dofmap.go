package fem

import (
	"github.com/notargets/gopcd/geometry2D"
	"github.com/notargets/gopcd/types"
)

/*
DofMap numbers the Taylor-Hood unknowns of a triangle mesh. P2 nodes are the mesh vertices followed
by the edge midpoints. A mixed vector is laid out as

	[u_x(node 0), u_y(node 0), u_x(node 1), ... | p(vertex 0), p(vertex 1), ...]

so velocity dof 2*node+c belongs to component c and pressure dof i to vertex i.
*/
type DofMap struct {
	Mesh         *geometry2D.TriMesh
	NVerts       int
	NNodes       int
	NodeX, NodeY []float64
	ElemNodes    [][NpP2]int
	NU, NP       int
}

func NewDofMap(tm *geometry2D.TriMesh) (dm *DofMap) {
	var (
		nv    = tm.NumVertices()
		edges = make(map[types.EdgeKey]int, 3*tm.NumElements()/2)
	)
	dm = &DofMap{
		Mesh:      tm,
		NVerts:    nv,
		NodeX:     append([]float64{}, tm.VX...),
		NodeY:     append([]float64{}, tm.VY...),
		ElemNodes: make([][NpP2]int, tm.NumElements()),
	}
	for k, tri := range tm.EToV {
		for i := 0; i < 3; i++ {
			dm.ElemNodes[k][i] = tri[i]
		}
		for e, vv := range edgeNodes {
			a, b := tri[vv[0]], tri[vv[1]]
			key := types.NewEdgeKey([2]int{a, b})
			node, ok := edges[key]
			if !ok {
				node = len(dm.NodeX)
				edges[key] = node
				dm.NodeX = append(dm.NodeX, 0.5*(tm.VX[a]+tm.VX[b]))
				dm.NodeY = append(dm.NodeY, 0.5*(tm.VY[a]+tm.VY[b]))
			}
			dm.ElemNodes[k][3+e] = node
		}
	}
	dm.NNodes = len(dm.NodeX)
	dm.NU = 2 * dm.NNodes
	dm.NP = nv
	return
}

func (dm *DofMap) Structure() types.BlockStructure {
	return types.BlockStructure{NU: dm.NU, NP: dm.NP}
}

func VelocityDof(node, comp int) int { return 2*node + comp }

// Element returns the geometry of element k
func (dm *DofMap) Element(k int) Element {
	var (
		tri  = dm.Mesh.EToV[k]
		x, y [3]float64
	)
	for i := 0; i < 3; i++ {
		x[i], y[i] = dm.Mesh.VX[tri[i]], dm.Mesh.VY[tri[i]]
	}
	return NewElement(x, y)
}

// BoundaryNodes returns the P2 nodes lying on a boundary edge: its two vertices and its midpoint
func (dm *DofMap) BoundaryNodes(be geometry2D.BoundaryEdge) [3]int {
	nodes := dm.ElemNodes[be.K]
	return [3]int{nodes[be.LocalEdge], nodes[(be.LocalEdge+1)%3], nodes[3+be.LocalEdge]}
}
