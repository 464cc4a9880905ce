// Package busco wraps the BUSCO completeness tool. One invocation per
// assembly, results come back as marker fractions against the chosen
// lineage dataset.
package busco

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/meadm/GenomeCheck/pkg/toolrun"
)

// Status of one completeness run.
type Status string

const (
	StatusOK          Status = "ok"
	StatusFailed      Status = "failed"
	StatusTimedOut    Status = "timed_out"
	StatusUnavailable Status = "tool_unavailable"
)

// Score is the completeness result of one assembly. The four fractions sum
// to 1.0 up to rounding when Status is ok.
type Score struct {
	Lineage            string
	CompleteSingle     float64
	CompleteDuplicated float64
	Fragmented         float64
	Missing            float64
	TotalMarkers       int
	Status             Status
	Detail             string
}

// Complete is the combined single-copy plus duplicated fraction.
func (s *Score) Complete() float64 {
	return s.CompleteSingle + s.CompleteDuplicated
}

func (s *Score) fill(sum *Summary) {
	n := float64(sum.Total)
	s.CompleteSingle = float64(sum.Single) / n
	s.CompleteDuplicated = float64(sum.Duplicated) / n
	s.Fragmented = float64(sum.Fragmented) / n
	s.Missing = float64(sum.Missing) / n
	s.TotalMarkers = sum.Total
}

// Target is one assembly to assess. Dir is the per-assembly output
// directory inside the batch workspace, the tool writes its run folder
// below it.
type Target struct {
	Name  string
	Fasta string
	Dir   string
}

// Assessor drives BUSCO runs through the shared Runner.
type Assessor struct {
	Runner  *toolrun.Runner
	Binary  string // defaults to "busco"
	Lineage string
	CPUs    int
	Timeout time.Duration
}

func (a *Assessor) binary() string {
	if a.Binary != "" {
		return a.Binary
	}
	return "busco"
}

// Check resolves the binary once per batch so a missing install surfaces
// as a single tool-unavailable signal instead of one failure per assembly.
func (a *Assessor) Check() error {
	return toolrun.LookPath(a.binary())
}

func runName(name string) string {
	return "busco_" + name
}

func (a *Assessor) command(t Target) toolrun.Command {
	cpus := a.CPUs
	if cpus < 1 {
		cpus = 1
	}

	return toolrun.Command{
		Name: a.binary(),
		Args: []string{
			"-i", t.Fasta,
			"-o", runName(t.Name),
			"-m", "genome",
			"-l", a.Lineage,
			"-c", strconv.Itoa(cpus),
			"--out_path", t.Dir,
		},
		Dir:     t.Dir,
		Timeout: a.Timeout,
	}
}

// AssessAll runs the tool for every target on a bounded pool and parses
// each run's short summary. The returned slice is aligned with targets.
// An unknown lineage or a missing binary aborts before any invocation.
func (a *Assessor) AssessAll(ctx context.Context, targets []Target, limit int) ([]Score, error) {

	if !KnownLineage(a.Lineage) {
		return nil, fmt.Errorf("unknown BUSCO lineage %q", a.Lineage)
	}
	if err := a.Check(); err != nil {
		return nil, err
	}

	units := make([]toolrun.Unit, len(targets))
	for i, t := range targets {
		units[i] = toolrun.Unit{ID: t.Name, Cmd: a.command(t)}
	}

	results := a.Runner.RunAll(ctx, units, limit)

	scores := make([]Score, len(targets))
	for i, res := range results {
		scores[i] = a.scoreResult(targets[i], res)
	}

	return scores, nil
}

func (a *Assessor) scoreResult(t Target, res toolrun.Result) Score {

	score := Score{Lineage: a.Lineage}

	switch {
	case res.Err == nil:
		sum, err := LoadSummary(filepath.Join(t.Dir, runName(t.Name)), a.Lineage)
		if err != nil {
			score.Status = StatusFailed
			score.Detail = err.Error()
			return score
		}
		score.fill(sum)
		score.Status = StatusOK
	case errors.Is(res.Err, toolrun.ErrTimeout):
		score.Status = StatusTimedOut
		score.Detail = res.Err.Error()
	case errors.Is(res.Err, toolrun.ErrToolUnavailable):
		score.Status = StatusUnavailable
		score.Detail = res.Err.Error()
	default:
		score.Status = StatusFailed
		score.Detail = res.Err.Error()
	}

	return score
}
