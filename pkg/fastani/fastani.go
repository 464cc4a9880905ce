// Package fastani wraps the fastANI pairwise identity tool. The whole
// batch is compared in a single all-vs-all invocation, the tool
// parallelizes internally over the CPU hint.
package fastani

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/meadm/GenomeCheck/pkg/toolrun"
)

const defaultBinary = "fastANI"

// Comparer drives fastANI through the shared Runner.
type Comparer struct {
	Runner  *toolrun.Runner
	Binary  string // defaults to fastANI
	CPUs    int
	Timeout time.Duration
}

func (c *Comparer) binary() string {
	if c.Binary != "" {
		return c.Binary
	}
	return defaultBinary
}

// Check resolves the binary, wrapping a miss as the single
// tool-unavailable signal for the whole stage.
func (c *Comparer) Check() error {
	return toolrun.LookPath(c.binary())
}

// CompareAll compares every assembly against every other in one
// invocation. names and paths run in parallel, workDir takes the list
// file and the raw tool output. Output rows come back keyed by assembly
// name, self comparisons are dropped and missing rows stay missing since
// an unmeasurable pair is not a zero. Fewer than two assemblies produce
// no observations without invoking the tool.
func (c *Comparer) CompareAll(ctx context.Context, names, paths []string, workDir string) ([]Observation, error) {

	if len(names) != len(paths) {
		return nil, fmt.Errorf("fastani: %d names for %d paths", len(names), len(paths))
	}
	if len(names) < 2 {
		return nil, nil
	}

	// One list serves as both query and reference side
	listFile := filepath.Join(workDir, "genome_list.txt")
	outFile := filepath.Join(workDir, "fastani_out.tsv")

	if err := os.WriteFile(listFile, []byte(strings.Join(paths, "\n")+"\n"), 0644); err != nil {
		return nil, fmt.Errorf("fastani: write genome list: %w", err)
	}

	cpus := c.CPUs
	if cpus < 1 {
		cpus = 1
	}

	res := c.Runner.Run(ctx, toolrun.Unit{
		ID: "fastani",
		Cmd: toolrun.Command{
			Name:    c.binary(),
			Args:    []string{"--ql", listFile, "--rl", listFile, "-o", outFile, "-t", strconv.Itoa(cpus)},
			Dir:     workDir,
			Timeout: c.Timeout,
		},
	})
	if res.Err != nil {
		return nil, res.Err
	}

	byPath := make(map[string]string, len(names))
	for i, p := range paths {
		byPath[p] = names[i]
	}

	f, err := os.Open(outFile)
	if err != nil {
		return nil, fmt.Errorf("fastani: open output: %w", err)
	}
	defer f.Close()

	return ParseOutput(f, byPath)
}
