// Package simmatrix turns directed pairwise observations into the
// complete symmetric identity matrix downstream clustering needs.
package simmatrix

import (
	"fmt"

	"github.com/meadm/GenomeCheck/pkg/fastani"
)

const (
	// SelfIdentity pins the diagonal.
	SelfIdentity = 100.0
	// ImputedIdentity is the sentinel for unmeasurable pairs.
	ImputedIdentity = 0.0
)

// Matrix is a finite, symmetric assembly-by-assembly identity matrix with
// the diagonal at exactly 100. Entries no observation covered are filled
// with the sentinel minimum and flagged, so a zero never silently means
// "measured and fully dissimilar". Rows and columns share one index
// order, the flat backing keeps both triangles in step.
type Matrix struct {
	names    []string
	index    map[string]int
	identity []float64
	imputed  []bool
}

// Build symmetrizes directed observations. When both directions of a pair
// exist their arithmetic mean is used, a single direction is taken as is,
// a pair without any observation gets the sentinel plus the imputed flag.
// Feeding an already symmetric, complete observation set back in
// reproduces the same matrix.
func Build(names []string, obs []fastani.Observation) (*Matrix, error) {

	n := len(names)
	if n == 0 {
		return nil, fmt.Errorf("simmatrix: no assemblies")
	}

	m := &Matrix{
		names:    append([]string(nil), names...),
		index:    make(map[string]int, n),
		identity: make([]float64, n*n),
		imputed:  make([]bool, n*n),
	}
	for i, name := range names {
		if _, dup := m.index[name]; dup {
			return nil, fmt.Errorf("simmatrix: duplicate assembly name %q", name)
		}
		m.index[name] = i
	}

	val := make([]float64, n*n)
	seen := make([]bool, n*n)
	for _, o := range obs {
		qi, ok := m.index[o.Query]
		if !ok {
			return nil, fmt.Errorf("simmatrix: observation for unknown assembly %q", o.Query)
		}
		ri, ok := m.index[o.Ref]
		if !ok {
			return nil, fmt.Errorf("simmatrix: observation for unknown assembly %q", o.Ref)
		}
		if qi == ri {
			continue
		}
		val[qi*n+ri] = o.Identity
		seen[qi*n+ri] = true
	}

	for i := 0; i < n; i++ {
		m.identity[i*n+i] = SelfIdentity
		for j := i + 1; j < n; j++ {
			ij, ji := i*n+j, j*n+i
			var id float64
			switch {
			case seen[ij] && seen[ji]:
				id = (val[ij] + val[ji]) / 2
			case seen[ij]:
				id = val[ij]
			case seen[ji]:
				id = val[ji]
			default:
				id = ImputedIdentity
				m.imputed[ij], m.imputed[ji] = true, true
			}
			m.identity[ij], m.identity[ji] = id, id
		}
	}

	return m, nil
}

// Len is the number of assemblies.
func (m *Matrix) Len() int {
	return len(m.names)
}

// Names returns the assembly names in index order.
func (m *Matrix) Names() []string {
	return m.names
}

// Index resolves an assembly name to its matrix index.
func (m *Matrix) Index(name string) (int, bool) {
	i, ok := m.index[name]
	return i, ok
}

// At returns the identity between two indexes.
func (m *Matrix) At(i, j int) float64 {
	return m.identity[i*len(m.names)+j]
}

// Imputed reports whether the entry was gap-filled instead of measured.
func (m *Matrix) Imputed(i, j int) bool {
	return m.imputed[i*len(m.names)+j]
}

// Dissimilarity converts to the distance form used by clustering,
// SelfIdentity minus identity, so the diagonal comes out zero.
func (m *Matrix) Dissimilarity() [][]float64 {
	n := len(m.names)
	out := make([][]float64, n)
	for i := range out {
		row := make([]float64, n)
		for j := range row {
			row[j] = SelfIdentity - m.identity[i*n+j]
		}
		out[i] = row
	}
	return out
}

// LowConfidence lists assemblies whose every off-diagonal entry was
// imputed, meaning not a single comparison against them succeeded. They
// still participate in clustering but their placement carries no signal.
func (m *Matrix) LowConfidence() []string {
	n := len(m.names)
	if n < 2 {
		return nil
	}

	var out []string
	for i := 0; i < n; i++ {
		all := true
		for j := 0; j < n && all; j++ {
			if j != i && !m.imputed[i*n+j] {
				all = false
			}
		}
		if all {
			out = append(out, m.names[i])
		}
	}
	return out
}
