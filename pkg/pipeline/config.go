package pipeline

import (
	"fmt"
	"runtime"
	"time"

	"github.com/meadm/GenomeCheck/pkg/busco"
	"github.com/meadm/GenomeCheck/pkg/toolrun"
)

// ConfigurationError reports a batch setting the stages cannot run with.
type ConfigurationError struct {
	Field string
	Msg   string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Msg)
}

// Config selects the stages of a batch and how the external tools run.
// The zero value runs the sequence statistics stage only.
type Config struct {
	// RunCompleteness enables the completeness stage. Lineage must name
	// a known BUSCO lineage dataset when it is set.
	RunCompleteness bool
	Lineage         string

	// RunPairwise enables the pairwise identity stage together with the
	// similarity matrix and the trees built from it.
	RunPairwise bool

	// CPUs is the thread count handed to each tool invocation. Zero
	// means all available cores.
	CPUs int

	// Parallel caps how many tool invocations run at once. Zero means
	// one at a time.
	Parallel int

	// BuscoBinary and FastANIBinary override the tool names resolved on
	// PATH, for tests and for installs outside it.
	BuscoBinary   string
	FastANIBinary string

	BuscoTimeout   time.Duration
	FastANITimeout time.Duration

	// WorkRoot is where batch workspaces are created. Empty means the
	// system temp directory.
	WorkRoot string

	// KeepWorkspace leaves the batch workspace on disk for inspection
	// instead of removing it once the result is assembled.
	KeepWorkspace bool

	// Progress receives the start and finish event of every tool run, on
	// top of the orchestrator's own logging. Optional.
	Progress func(toolrun.Event)
}

// Validate rejects settings before any workspace or tool run exists.
func (c *Config) Validate() error {

	if c.CPUs < 0 {
		return &ConfigurationError{Field: "cpus", Msg: fmt.Sprintf("must not be negative, got %d", c.CPUs)}
	}
	if c.Parallel < 0 {
		return &ConfigurationError{Field: "parallel", Msg: fmt.Sprintf("must not be negative, got %d", c.Parallel)}
	}
	if c.BuscoTimeout < 0 {
		return &ConfigurationError{Field: "busco_timeout", Msg: "must not be negative"}
	}
	if c.FastANITimeout < 0 {
		return &ConfigurationError{Field: "fastani_timeout", Msg: "must not be negative"}
	}
	if c.RunCompleteness && !busco.KnownLineage(c.Lineage) {
		return &ConfigurationError{Field: "lineage", Msg: fmt.Sprintf("unknown lineage %q", c.Lineage)}
	}

	return nil
}

func (c *Config) cpus() int {
	if c.CPUs > 0 {
		return c.CPUs
	}
	return runtime.NumCPU()
}

func (c *Config) parallel() int {
	if c.Parallel > 0 {
		return c.Parallel
	}
	return 1
}
