package fastani

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Observation is one directed comparison from the tool's output. A pair
// without a row is unmeasurable, never a zero.
type Observation struct {
	Query            string
	Ref              string
	Identity         float64
	AlignedFragments int
	TotalFragments   int
}

// ParseError marks an output row that does not match the expected schema.
type ParseError struct {
	Line int
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("fastani output line %d: %s", e.Line, e.Msg)
}

// ParseOutput reads the tab separated output. Rows are
// query, reference, identity, aligned fragments, total fragments. Paths
// are mapped back to assembly names through byPath, a path the batch never
// submitted is a schema violation.
func ParseOutput(r io.Reader, byPath map[string]string) ([]Observation, error) {

	var obs []Observation

	sc := bufio.NewScanner(r)
	lineno := 0
	for sc.Scan() {
		lineno++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}

		fields := strings.Split(line, "\t")
		if len(fields) != 5 {
			return nil, &ParseError{Line: lineno, Msg: fmt.Sprintf("got %d fields, want 5", len(fields))}
		}

		query, ok := byPath[fields[0]]
		if !ok {
			return nil, &ParseError{Line: lineno, Msg: fmt.Sprintf("unknown query path %q", fields[0])}
		}
		ref, ok := byPath[fields[1]]
		if !ok {
			return nil, &ParseError{Line: lineno, Msg: fmt.Sprintf("unknown reference path %q", fields[1])}
		}

		identity, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			return nil, &ParseError{Line: lineno, Msg: fmt.Sprintf("bad identity %q", fields[2])}
		}
		if identity < 0 || identity > 100 {
			return nil, &ParseError{Line: lineno, Msg: fmt.Sprintf("identity %v out of range", identity)}
		}

		aligned, err := strconv.Atoi(fields[3])
		if err != nil {
			return nil, &ParseError{Line: lineno, Msg: fmt.Sprintf("bad aligned fragment count %q", fields[3])}
		}
		total, err := strconv.Atoi(fields[4])
		if err != nil {
			return nil, &ParseError{Line: lineno, Msg: fmt.Sprintf("bad total fragment count %q", fields[4])}
		}

		// The self row carries no information, the diagonal is owned by
		// the matrix builder.
		if query == ref {
			continue
		}

		obs = append(obs, Observation{
			Query:            query,
			Ref:              ref,
			Identity:         identity,
			AlignedFragments: aligned,
			TotalFragments:   total,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	return obs, nil
}
