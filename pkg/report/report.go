// Package report writes batch outcomes as plain files: a per-assembly
// TSV table, the identity matrix and the Newick tree. Everything goes
// through an io.Writer so callers choose the destination.
package report

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/meadm/GenomeCheck/pkg/busco"
	"github.com/meadm/GenomeCheck/pkg/pipeline"
	"github.com/meadm/GenomeCheck/pkg/simmatrix"
)

var statsColumns = []string{
	"Assembly",
	"Total length",
	"Num contigs",
	"N50",
	"L90",
	"GC (%)",
}

var buscoColumns = []string{
	"Complete (%)",
	"Single (%)",
	"Duplicated (%)",
	"Fragmented (%)",
	"Missing (%)",
	"BUSCO status",
}

// WriteStatsTable writes one TSV row per parsed assembly. The BUSCO
// columns appear only when the batch carries completeness scores.
// Assemblies that failed to parse are left out, their rejection is
// already on the batch record.
func WriteStatsTable(w io.Writer, res *pipeline.BatchResult) error {

	bw := bufio.NewWriter(w)

	withBusco := false
	for _, a := range res.Assemblies {
		if a.Completeness != nil {
			withBusco = true
			break
		}
	}

	cols := statsColumns
	if withBusco {
		cols = append(append([]string{}, statsColumns...), buscoColumns...)
	}
	fmt.Fprintln(bw, strings.Join(cols, "\t"))

	for _, a := range res.Assemblies {
		if a.Stats == nil {
			continue
		}

		fields := []string{
			a.Name,
			strconv.Itoa(a.Stats.TotalLength),
			strconv.Itoa(a.Stats.NumContigs),
			strconv.Itoa(a.Stats.N50),
			strconv.Itoa(a.Stats.L90),
			strconv.FormatFloat(a.Stats.GCPercent, 'f', 2, 64),
		}
		if withBusco {
			fields = append(fields, buscoFields(a.Completeness)...)
		}
		fmt.Fprintln(bw, strings.Join(fields, "\t"))
	}

	return bw.Flush()
}

func buscoFields(s *busco.Score) []string {

	if s == nil {
		return []string{"-", "-", "-", "-", "-", "-"}
	}
	if s.Status != busco.StatusOK {
		return []string{"-", "-", "-", "-", "-", string(s.Status)}
	}

	pct := func(f float64) string {
		return strconv.FormatFloat(100*f, 'f', 2, 64)
	}
	return []string{
		pct(s.Complete()),
		pct(s.CompleteSingle),
		pct(s.CompleteDuplicated),
		pct(s.Fragmented),
		pct(s.Missing),
		string(s.Status),
	}
}

// WriteMatrix writes the identity matrix as TSV with one header row and
// one labeled row per assembly. Rows and columns follow order, which is
// usually the dendrogram leaf order; an empty order falls back to the
// matrix's own index order. Imputed entries carry a * suffix so a
// sentinel zero never reads as a measured zero.
func WriteMatrix(w io.Writer, m *simmatrix.Matrix, order []string) error {

	if len(order) == 0 {
		order = m.Names()
	}

	idx := make([]int, len(order))
	for k, name := range order {
		i, ok := m.Index(name)
		if !ok {
			return fmt.Errorf("report: assembly %q is not in the matrix", name)
		}
		idx[k] = i
	}

	bw := bufio.NewWriter(w)
	fmt.Fprintln(bw, "Assembly\t"+strings.Join(order, "\t"))

	for _, i := range idx {
		fields := make([]string, 0, len(idx)+1)
		fields = append(fields, m.Names()[i])
		for _, j := range idx {
			cell := strconv.FormatFloat(m.At(i, j), 'f', 2, 64)
			if m.Imputed(i, j) {
				cell += "*"
			}
			fields = append(fields, cell)
		}
		fmt.Fprintln(bw, strings.Join(fields, "\t"))
	}

	return bw.Flush()
}

// WriteNewick writes the serialized tree with a trailing newline.
func WriteNewick(w io.Writer, tree string) error {
	_, err := fmt.Fprintln(w, tree)
	return err
}
