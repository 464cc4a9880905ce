// Package cluster orders assemblies by hierarchical clustering and builds
// the neighbor-joining tree, both over one dissimilarity matrix.
package cluster

// LeafOrder runs average linkage agglomerative clustering and returns the
// dendrogram's leaf permutation, used to order heatmap rows so similar
// assemblies sit next to each other. Ties pick the lowest index pair, so
// the order is deterministic for a given matrix.
func LeafOrder(d [][]float64) []int {

	n := len(d)
	if n == 0 {
		return nil
	}
	if n == 1 {
		return []int{0}
	}

	// Working copies, one slot per active cluster
	dist := make([][]float64, n)
	leaves := make([][]int, n)
	size := make([]int, n)
	active := make([]bool, n)
	for i := range dist {
		dist[i] = append([]float64(nil), d[i]...)
		leaves[i] = []int{i}
		size[i] = 1
		active[i] = true
	}

	for merges := 0; merges < n-1; merges++ {
		// Closest active pair, first hit wins on ties
		bi, bj := -1, -1
		best := 0.0
		for i := 0; i < n; i++ {
			if !active[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if !active[j] {
					continue
				}
				if bi < 0 || dist[i][j] < best {
					bi, bj, best = i, j, dist[i][j]
				}
			}
		}

		// Merge bj into bi, distances become the size-weighted average
		for k := 0; k < n; k++ {
			if !active[k] || k == bi || k == bj {
				continue
			}
			avg := (float64(size[bi])*dist[bi][k] + float64(size[bj])*dist[bj][k]) /
				float64(size[bi]+size[bj])
			dist[bi][k], dist[k][bi] = avg, avg
		}
		leaves[bi] = append(leaves[bi], leaves[bj]...)
		size[bi] += size[bj]
		active[bj] = false
	}

	for i := 0; i < n; i++ {
		if active[i] {
			return leaves[i]
		}
	}
	return nil
}
