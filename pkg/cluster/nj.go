package cluster

import (
	"fmt"
)

// Node is one vertex of the similarity tree. Leaves carry assembly names,
// internal nodes only children. Length is the branch to the parent in
// dissimilarity units, zero for the root.
type Node struct {
	Name     string
	Length   float64
	Children []*Node
}

// IsLeaf reports whether the node has no children.
func (nd *Node) IsLeaf() bool {
	return len(nd.Children) == 0
}

// NJTree builds an unrooted neighbor-joining tree from a dissimilarity
// matrix. The result is anchored at a final three-way junction as usual
// for the algorithm. Degenerate batches do not fail: two assemblies give
// the single connecting edge with its length split evenly, one assembly a
// single named node. The algorithm can emit small negative branch
// lengths, those are clamped to zero.
func NJTree(names []string, d [][]float64) (*Node, error) {

	n := len(names)
	if n == 0 {
		return nil, fmt.Errorf("cluster: no assemblies for a tree")
	}
	if len(d) != n {
		return nil, fmt.Errorf("cluster: %d names for a %d-row matrix", n, len(d))
	}

	if n == 1 {
		return &Node{Name: names[0]}, nil
	}
	if n == 2 {
		half := clamp(d[0][1] / 2)
		return &Node{Children: []*Node{
			{Name: names[0], Length: half},
			{Name: names[1], Length: half},
		}}, nil
	}

	// Active working set, rebuilt on every join
	nodes := make([]*Node, n)
	for i, name := range names {
		nodes[i] = &Node{Name: name}
	}
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = append([]float64(nil), d[i]...)
	}

	for len(nodes) > 3 {
		m := len(nodes)

		rowSums := make([]float64, m)
		for i := 0; i < m; i++ {
			for k := 0; k < m; k++ {
				rowSums[i] += dist[i][k]
			}
		}

		// Minimize Q, first hit wins on ties
		bi, bj := -1, -1
		bestQ := 0.0
		for i := 0; i < m; i++ {
			for j := i + 1; j < m; j++ {
				q := float64(m-2)*dist[i][j] - rowSums[i] - rowSums[j]
				if bi < 0 || q < bestQ {
					bi, bj, bestQ = i, j, q
				}
			}
		}

		li := dist[bi][bj]/2 + (rowSums[bi]-rowSums[bj])/(2*float64(m-2))
		lj := dist[bi][bj] - li
		joined := &Node{Children: []*Node{
			withLength(nodes[bi], clamp(li)),
			withLength(nodes[bj], clamp(lj)),
		}}

		// Distances from the joined node to everything still active
		joinedDist := make([]float64, 0, m-2)
		for k := 0; k < m; k++ {
			if k == bi || k == bj {
				continue
			}
			joinedDist = append(joinedDist, (dist[bi][k]+dist[bj][k]-dist[bi][bj])/2)
		}

		nextNodes := make([]*Node, 0, m-1)
		nextDist := make([][]float64, 0, m-1)
		for k := 0; k < m; k++ {
			if k == bi || k == bj {
				continue
			}
			row := make([]float64, 0, m-1)
			for l := 0; l < m; l++ {
				if l == bi || l == bj {
					continue
				}
				row = append(row, dist[k][l])
			}
			nextNodes = append(nextNodes, nodes[k])
			nextDist = append(nextDist, row)
		}
		nextNodes = append(nextNodes, joined)
		for k := range nextDist {
			nextDist[k] = append(nextDist[k], joinedDist[k])
		}
		nextDist = append(nextDist, append(joinedDist, 0))

		nodes, dist = nextNodes, nextDist
	}

	// Terminal three-way junction
	l0 := clamp((dist[0][1] + dist[0][2] - dist[1][2]) / 2)
	l1 := clamp((dist[0][1] + dist[1][2] - dist[0][2]) / 2)
	l2 := clamp((dist[0][2] + dist[1][2] - dist[0][1]) / 2)

	return &Node{Children: []*Node{
		withLength(nodes[0], l0),
		withLength(nodes[1], l1),
		withLength(nodes[2], l2),
	}}, nil
}

func withLength(nd *Node, l float64) *Node {
	nd.Length = l
	return nd
}

func clamp(l float64) float64 {
	if l < 0 {
		return 0
	}
	return l
}
