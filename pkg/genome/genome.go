package genome

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/biogo/biogo/alphabet"
	"github.com/biogo/biogo/io/seqio"
	"github.com/biogo/biogo/io/seqio/fasta"
	"github.com/biogo/biogo/seq/linear"
)

// ParseError marks a FASTA stream that cannot be turned into an assembly.
// Fatal for the one assembly only, the batch keeps going.
type ParseError struct {
	Assembly string
	Msg      string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.Assembly, e.Msg)
}

// Contig is a single sequence of an assembly with its base composition.
// Length counts every base including ambiguous and unknown ones.
type Contig struct {
	ID        string
	Length    int
	GC        int // unambiguous G / C
	AT        int // unambiguous A / T
	Ambiguous int // IUPAC ambiguity codes (N, R, Y, ...)
	Other     int // anything outside the IUPAC nucleotide set
}

// AssemblyRecord is one parsed assembly. Built once by ReadAssembly and not
// mutated afterwards.
type AssemblyRecord struct {
	Name        string
	Contigs     []Contig
	TotalLength int
}

// ReadAssembly parses one multi-FASTA stream into an AssemblyRecord.
// Headers start a new contig, sequence lines accumulate until the next
// header or end of input. An input without a single contig is an error.
func ReadAssembly(name string, r io.Reader) (*AssemblyRecord, error) {

	tmpl := linear.NewSeq("", nil, alphabet.DNA)
	sc := seqio.NewScanner(fasta.NewReader(r, tmpl))

	rec := &AssemblyRecord{Name: name}

	for sc.Next() {
		s := sc.Seq().(*linear.Seq)
		contig, err := buildContig(name, s.Name(), s.Seq)
		if err != nil {
			return nil, err
		}
		rec.Contigs = append(rec.Contigs, contig)
		rec.TotalLength += contig.Length
	}

	if err := sc.Error(); err != nil {
		return nil, &ParseError{Assembly: name, Msg: err.Error()}
	}

	if len(rec.Contigs) == 0 {
		return nil, &ParseError{Assembly: name, Msg: "no contigs found"}
	}

	return rec, nil
}

func buildContig(assembly, id string, letters alphabet.Letters) (Contig, error) {
	c := Contig{ID: id}

	for _, l := range letters {
		switch classifyBase(byte(l)) {
		case baseGC:
			c.GC++
		case baseAT:
			c.AT++
		case baseAmbiguous:
			c.Ambiguous++
		case baseOther:
			c.Other++
		}
	}

	c.Length = c.GC + c.AT + c.Ambiguous + c.Other
	if c.Length == 0 {
		return Contig{}, &ParseError{Assembly: assembly, Msg: fmt.Sprintf("contig %q has no sequence", id)}
	}

	return c, nil
}

type baseClass int

const (
	baseGC baseClass = iota
	baseAT
	baseAmbiguous
	baseOther
	baseSkip
)

// classifyBase buckets one base for composition counting. Only unambiguous
// A/C/G/T enter the GC denominator, see ComputeStats.
func classifyBase(b byte) baseClass {
	switch b {
	case 'G', 'g', 'C', 'c':
		return baseGC
	case 'A', 'a', 'T', 't':
		return baseAT
	case 'U', 'u', 'R', 'r', 'Y', 'y', 'S', 's', 'W', 'w', 'K', 'k',
		'M', 'm', 'B', 'b', 'D', 'd', 'H', 'h', 'V', 'v', 'N', 'n':
		return baseAmbiguous
	case ' ', '\t', '\r', '\n':
		return baseSkip
	default:
		return baseOther
	}
}

// NameFromFile derives a display name from a FASTA filename,
// "genomes/E_coli.fasta" -> "E_coli".
func NameFromFile(p string) string {
	base := filepath.Base(p)
	if i := strings.LastIndex(base, "."); i > 0 {
		base = base[:i]
	}
	return base
}

// UniqueNames disambiguates duplicate names in input order by suffixing
// -2, -3, ... so every assembly of a batch has a distinct key.
func UniqueNames(names []string) []string {
	taken := make(map[string]bool, len(names))
	out := make([]string, len(names))

	for i, n := range names {
		name := n
		for k := 2; taken[name]; k++ {
			name = fmt.Sprintf("%s-%d", n, k)
		}
		taken[name] = true
		out[i] = name
	}

	return out
}
