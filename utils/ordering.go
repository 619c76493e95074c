package utils

import (
	"sort"

	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/traverse"
)

// RCM returns a reverse Cuthill-McKee style permutation of the symmetrized sparsity graph of A,
// perm[new] = old. Each connected component is rooted at a pseudo-peripheral vertex, vertices are
// numbered level by level (ascending degree inside a level) and the whole order is reversed.
func RCM(A CSR) (perm []int) {
	var (
		n, _  = A.Dims()
		g     = simple.NewUndirectedGraph()
		level = make([]int, n)
		done  = make([]bool, n)
	)
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
	}
	A.DoNonZero(func(i, j int, v float64) {
		if i < j {
			g.SetEdge(simple.Edge{F: simple.Node(i), T: simple.Node(j)})
		} else if j < i {
			g.SetEdge(simple.Edge{F: simple.Node(j), T: simple.Node(i)})
		}
	})
	degree := func(i int) int { return g.From(int64(i)).Len() }

	perm = make([]int, 0, n)
	for seed := 0; seed < n; seed++ {
		if done[seed] {
			continue
		}
		root := pseudoPeripheral(g, seed, degree)
		var component []int
		bf := traverse.BreadthFirst{}
		bf.Walk(g, simple.Node(root), func(nd graph.Node, d int) bool {
			id := int(nd.ID())
			level[id] = d
			done[id] = true
			component = append(component, id)
			return false
		})
		sort.SliceStable(component, func(a, b int) bool {
			ia, ib := component[a], component[b]
			if level[ia] != level[ib] {
				return level[ia] < level[ib]
			}
			if da, db := degree(ia), degree(ib); da != db {
				return da < db
			}
			return ia < ib
		})
		perm = append(perm, component...)
	}
	for i, j := 0, len(perm)-1; i < j; i, j = i+1, j-1 {
		perm[i], perm[j] = perm[j], perm[i]
	}
	return
}

// pseudoPeripheral walks from start to a vertex of (locally) maximal eccentricity
func pseudoPeripheral(g *simple.UndirectedGraph, start int, degree func(int) int) (root int) {
	var (
		bestDepth = -1
	)
	root = start
	for try := 0; try < 8; try++ {
		var (
			last      []int
			lastDepth int
		)
		bf := traverse.BreadthFirst{}
		bf.Walk(g, simple.Node(root), func(nd graph.Node, d int) bool {
			if d > lastDepth {
				lastDepth = d
				last = last[:0]
			}
			if d == lastDepth {
				last = append(last, int(nd.ID()))
			}
			return false
		})
		if lastDepth <= bestDepth {
			return
		}
		bestDepth = lastDepth
		next := last[0]
		for _, id := range last[1:] {
			if degree(id) < degree(next) || (degree(id) == degree(next) && id < next) {
				next = id
			}
		}
		if next == root {
			return
		}
		root = next
	}
	return
}

// InversePermutation returns iperm with iperm[perm[i]] = i
func InversePermutation(perm []int) (iperm []int) {
	iperm = make([]int, len(perm))
	for i, p := range perm {
		iperm[p] = i
	}
	return
}

// Bandwidth returns the lower and upper bandwidth of A after the symmetric permutation perm
func Bandwidth(A CSR, perm []int) (kl, ku int) {
	var (
		iperm []int
	)
	if perm != nil {
		iperm = InversePermutation(perm)
	}
	A.DoNonZero(func(i, j int, v float64) {
		if iperm != nil {
			i, j = iperm[i], iperm[j]
		}
		if i > j {
			kl = max(kl, i-j)
		} else {
			ku = max(ku, j-i)
		}
	})
	return
}
