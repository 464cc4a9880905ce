package busco

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// ParseError marks a short summary that does not match the expected
// schema.
type ParseError struct {
	Path string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("busco summary %s: %s", e.Path, e.Msg)
}

// Summary holds the marker counts of one BUSCO short summary.
type Summary struct {
	Single     int
	Duplicated int
	Fragmented int
	Missing    int
	Total      int
}

// LoadSummary locates the short summary inside a run directory and parses
// it. Newer tool versions name the file short_summary.specific.<lineage>.txt,
// older ones plain short_summary.txt.
func LoadSummary(runDir, lineage string) (*Summary, error) {

	candidates := []string{
		filepath.Join(runDir, "short_summary.txt"),
		filepath.Join(runDir, fmt.Sprintf("short_summary.specific.%s.txt", lineage)),
	}
	if globbed, err := filepath.Glob(filepath.Join(runDir, "short_summary*.txt")); err == nil {
		sort.Strings(globbed)
		candidates = append(candidates, globbed...)
	}

	for _, p := range candidates {
		f, err := os.Open(p)
		if err != nil {
			continue
		}
		sum, perr := ParseSummary(f)
		f.Close()
		if perr != nil {
			return nil, &ParseError{Path: p, Msg: perr.Error()}
		}
		return sum, nil
	}

	return nil, &ParseError{Path: runDir, Msg: "no short summary found"}
}

// ParseSummary reads the count lines of a short summary. Every field is
// required and the four classes must add up to the total, anything else is
// a schema mismatch.
func ParseSummary(r io.Reader) (*Summary, error) {

	var sum Summary
	found := make(map[string]bool)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		count, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}

		label := strings.ToLower(strings.Join(fields[1:], " "))
		switch {
		case strings.Contains(label, "single-copy"):
			sum.Single = count
			found["single"] = true
		case strings.Contains(label, "duplicated"):
			sum.Duplicated = count
			found["duplicated"] = true
		case strings.Contains(label, "fragmented"):
			sum.Fragmented = count
			found["fragmented"] = true
		case strings.Contains(label, "missing"):
			sum.Missing = count
			found["missing"] = true
		case strings.Contains(label, "total"):
			sum.Total = count
			found["total"] = true
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}

	for _, key := range []string{"single", "duplicated", "fragmented", "missing", "total"} {
		if !found[key] {
			return nil, fmt.Errorf("missing %s count", key)
		}
	}
	if sum.Total <= 0 {
		return nil, fmt.Errorf("total marker count is %d", sum.Total)
	}
	if got := sum.Single + sum.Duplicated + sum.Fragmented + sum.Missing; got != sum.Total {
		return nil, fmt.Errorf("counts sum to %d, total says %d", got, sum.Total)
	}

	return &sum, nil
}
