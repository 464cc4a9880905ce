package genome

import (
	"sort"
)

// StatsResult holds the contiguity and composition metrics of one assembly.
// Computed once, never mutated.
type StatsResult struct {
	TotalLength    int
	NumContigs     int
	N50            int
	L90            int
	GCPercent      float64
	LongestContig  int
	ShortestContig int
}

// ComputeStats derives the metrics of a parsed record.
//
// N50 is the contig length at which the cumulative sum over descending
// lengths first reaches half of the total. L90 is the number of contigs
// needed to reach 90% of the total. Both use exact integer thresholds, no
// float rounding. GC% counts G+C over unambiguous A/C/G/T only, an
// assembly without a single unambiguous base cannot be scored.
func ComputeStats(rec *AssemblyRecord) (*StatsResult, error) {
	if len(rec.Contigs) == 0 {
		return nil, &ParseError{Assembly: rec.Name, Msg: "no contigs to score"}
	}

	lengths := make([]int, len(rec.Contigs))
	var total, gc, scored int
	for i, c := range rec.Contigs {
		lengths[i] = c.Length
		total += c.Length
		gc += c.GC
		scored += c.GC + c.AT
	}

	if scored == 0 {
		return nil, &ParseError{Assembly: rec.Name, Msg: "no unambiguous bases, GC undefined"}
	}

	// Equal lengths keep their input order.
	sort.SliceStable(lengths, func(i, j int) bool { return lengths[i] > lengths[j] })

	res := &StatsResult{
		TotalLength:    total,
		NumContigs:     len(lengths),
		GCPercent:      100 * float64(gc) / float64(scored),
		LongestContig:  lengths[0],
		ShortestContig: lengths[len(lengths)-1],
	}

	var cum int
	for i, l := range lengths {
		cum += l
		if res.N50 == 0 && 2*cum >= total {
			res.N50 = l
		}
		if res.L90 == 0 && 10*cum >= 9*total {
			res.L90 = i + 1
		}
		if res.N50 != 0 && res.L90 != 0 {
			break
		}
	}

	return res, nil
}
