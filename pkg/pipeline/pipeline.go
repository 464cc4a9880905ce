// Package pipeline runs the assembly QC stages over one batch of FASTA
// files: sequence statistics, completeness against a BUSCO lineage and
// pairwise identity with the similarity matrix and trees built from it.
// Stages fail independently, one broken tool never takes the whole batch
// down with it.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/meadm/GenomeCheck/logger"
	"github.com/meadm/GenomeCheck/pkg/busco"
	"github.com/meadm/GenomeCheck/pkg/cluster"
	"github.com/meadm/GenomeCheck/pkg/fastani"
	"github.com/meadm/GenomeCheck/pkg/genome"
	"github.com/meadm/GenomeCheck/pkg/simmatrix"
	"github.com/meadm/GenomeCheck/pkg/toolrun"
)

// StageStatus describes the outcome of one batch stage.
type StageStatus string

const (
	StageCompleted     StageStatus = "completed"
	StageFailed        StageStatus = "failed"
	StageSkipped       StageStatus = "skipped"
	StageNotApplicable StageStatus = "not_applicable"
	StageCanceled      StageStatus = "canceled"
)

// StageReport is the outcome of one stage.
type StageReport struct {
	Status  StageStatus
	Detail  string
	Elapsed time.Duration
}

// Input is one assembly file to run through a batch.
type Input struct {
	Name string
	Path string
}

// AssemblyResult collects what the batch produced for one assembly.
// Stats is nil when the file failed to parse, Error holds the reason and
// the assembly is excluded from the tool stages.
type AssemblyResult struct {
	Name string
	Path string

	Stats *genome.StatsResult
	Error string

	Completeness *busco.Score
}

// BatchResult is the durable outcome of one batch. Nothing in it
// references workspace files, the workspace is gone by the time Run
// returns unless the batch kept it.
type BatchResult struct {
	ID        string
	Workspace string // retained workspace path, empty unless kept

	Assemblies []AssemblyResult

	StatsStage        StageReport
	CompletenessStage StageReport
	PairwiseStage     StageReport

	Identity      *simmatrix.Matrix
	LeafOrder     []string
	TreeNewick    string
	LowConfidence []string

	StartedAt  time.Time
	FinishedAt time.Time
}

// Orchestrator runs batches with one Config. Tool runs of all batches
// share a single Runner so progress reporting stays in one place.
type Orchestrator struct {
	cfg    Config
	runner *toolrun.Runner

	// Jobs tracks batch lifecycles for callers that poll.
	Jobs *BatchJobManager
}

// NewOrchestrator validates the configuration once up front.
func NewOrchestrator(cfg Config) (*Orchestrator, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	progress := logToolEvent
	if cfg.Progress != nil {
		hook := cfg.Progress
		progress = func(ev toolrun.Event) {
			logToolEvent(ev)
			hook(ev)
		}
	}

	return &Orchestrator{
		cfg:    cfg,
		runner: &toolrun.Runner{Progress: progress},
		Jobs:   NewBatchJobManager(),
	}, nil
}

func logToolEvent(ev toolrun.Event) {
	switch {
	case ev.Phase == toolrun.PhaseStarted:
		logger.Debug("Tool run started", zap.String("unit", ev.UnitID))
	case ev.Err != nil:
		logger.Warn("Tool run failed", zap.String("unit", ev.UnitID),
			zap.Duration("elapsed", ev.Elapsed), zap.String("error", ev.Err.Error()))
	default:
		logger.Debug("Tool run finished", zap.String("unit", ev.UnitID),
			zap.Duration("elapsed", ev.Elapsed))
	}
}

// Run executes the configured stages over the batch. Cancellation is
// honored between tool invocations, never mid-run, and fails the batch
// with the stage it interrupted marked canceled. Stage failures do not
// fail the batch, they land in the stage reports. Run fails only when no
// assembly in the batch parses, when the workspace cannot be created or
// on cancellation, and even then the partial result is returned.
func (o *Orchestrator) Run(ctx context.Context, inputs []Input) (*BatchResult, error) {

	if len(inputs) == 0 {
		return nil, fmt.Errorf("pipeline: empty batch")
	}

	job := o.Jobs.NewJob(len(inputs))
	o.Jobs.SetRunning(job.ID)

	res := &BatchResult{
		ID:                job.ID,
		StartedAt:         time.Now(),
		StatsStage:        StageReport{Status: StageSkipped},
		CompletenessStage: StageReport{Status: StageSkipped},
		PairwiseStage:     StageReport{Status: StageSkipped},
	}

	ws, err := newWorkspace(o.cfg.WorkRoot, job.ID, o.cfg.KeepWorkspace)
	if err != nil {
		o.Jobs.FailJob(job.ID, err)
		return nil, err
	}
	defer ws.cleanup()

	if o.cfg.KeepWorkspace {
		res.Workspace = ws.root
	}

	// Colliding input names get numeric suffixes so every result row,
	// matrix axis and tree leaf stays unambiguous.
	names := make([]string, len(inputs))
	for i, in := range inputs {
		names[i] = in.Name
	}
	names = genome.UniqueNames(names)

	res.Assemblies = make([]AssemblyResult, len(inputs))
	for i, in := range inputs {
		res.Assemblies[i] = AssemblyResult{Name: names[i], Path: in.Path}
	}

	logger.Info("Batch started", zap.String("batch", job.ID), zap.Int("assemblies", len(inputs)))

	for _, stage := range []func(context.Context, *workspace, *BatchResult) error{
		o.runStats,
		o.runCompleteness,
		o.runPairwise,
	} {
		if err := stage(ctx, ws, res); err != nil {
			res.FinishedAt = time.Now()
			o.Jobs.FailJob(job.ID, err)
			return res, err
		}
	}

	res.FinishedAt = time.Now()
	o.Jobs.CompleteJob(job.ID)
	logger.Info("Batch finished", zap.String("batch", job.ID),
		zap.Duration("elapsed", res.FinishedAt.Sub(res.StartedAt)))
	return res, nil
}

// runStats parses every input and computes its metrics. A file that does
// not parse is recorded and skipped, the stage only fails when nothing in
// the batch parses.
func (o *Orchestrator) runStats(ctx context.Context, _ *workspace, res *BatchResult) error {

	start := time.Now()

	parsed := 0
	for i := range res.Assemblies {
		if err := ctx.Err(); err != nil {
			res.StatsStage = StageReport{Status: StageCanceled, Detail: err.Error(), Elapsed: time.Since(start)}
			return fmt.Errorf("statistics stage: %w", err)
		}

		a := &res.Assemblies[i]
		stats, err := assemblyStats(a.Name, a.Path)
		if err != nil {
			a.Error = err.Error()
			logger.Warn("Assembly rejected", zap.String("assembly", a.Name), zap.String("error", err.Error()))
			continue
		}
		a.Stats = stats
		parsed++
	}

	if parsed == 0 {
		res.StatsStage = StageReport{Status: StageFailed, Detail: "no assembly in the batch parsed", Elapsed: time.Since(start)}
		return fmt.Errorf("statistics stage: no assembly in the batch parsed")
	}

	res.StatsStage = StageReport{
		Status:  StageCompleted,
		Detail:  fmt.Sprintf("%d of %d assemblies parsed", parsed, len(res.Assemblies)),
		Elapsed: time.Since(start),
	}
	return nil
}

func assemblyStats(name, path string) (*genome.StatsResult, error) {

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rec, err := genome.ReadAssembly(name, f)
	if err != nil {
		return nil, err
	}
	return genome.ComputeStats(rec)
}

// runCompleteness assesses every parsed assembly with BUSCO. A missing
// binary or an unusable lineage fails the stage once, per-assembly
// failures stay inside the individual scores.
func (o *Orchestrator) runCompleteness(ctx context.Context, ws *workspace, res *BatchResult) error {

	if !o.cfg.RunCompleteness {
		res.CompletenessStage = StageReport{Status: StageSkipped, Detail: "stage disabled"}
		return nil
	}

	start := time.Now()

	if err := ctx.Err(); err != nil {
		res.CompletenessStage = StageReport{Status: StageCanceled, Detail: err.Error()}
		return fmt.Errorf("completeness stage: %w", err)
	}

	var targets []busco.Target
	var idx []int
	for i := range res.Assemblies {
		if res.Assemblies[i].Stats == nil {
			continue
		}
		targets = append(targets, busco.Target{
			Name:  res.Assemblies[i].Name,
			Fasta: res.Assemblies[i].Path,
			Dir:   ws.buscoDir(),
		})
		idx = append(idx, i)
	}

	assessor := &busco.Assessor{
		Runner:  o.runner,
		Binary:  o.cfg.BuscoBinary,
		Lineage: o.cfg.Lineage,
		CPUs:    o.cfg.cpus(),
		Timeout: o.cfg.BuscoTimeout,
	}

	scores, err := assessor.AssessAll(ctx, targets, o.cfg.parallel())
	if err != nil {
		res.CompletenessStage = StageReport{Status: StageFailed, Detail: err.Error(), Elapsed: time.Since(start)}
		logger.Warn("Completeness stage failed", zap.String("error", err.Error()))
		return nil
	}

	failed := 0
	for k := range scores {
		res.Assemblies[idx[k]].Completeness = &scores[k]
		if scores[k].Status != busco.StatusOK {
			failed++
		}
	}

	if err := ctx.Err(); err != nil {
		res.CompletenessStage = StageReport{Status: StageCanceled, Detail: err.Error(), Elapsed: time.Since(start)}
		return fmt.Errorf("completeness stage: %w", err)
	}

	detail := fmt.Sprintf("%d assemblies assessed", len(scores))
	if failed > 0 {
		detail = fmt.Sprintf("%d of %d runs failed", failed, len(scores))
	}
	res.CompletenessStage = StageReport{Status: StageCompleted, Detail: detail, Elapsed: time.Since(start)}
	return nil
}

// runPairwise compares all parsed assemblies in one tool invocation and
// derives the identity matrix, the dendrogram leaf order and the NJ tree.
func (o *Orchestrator) runPairwise(ctx context.Context, ws *workspace, res *BatchResult) error {

	if !o.cfg.RunPairwise {
		res.PairwiseStage = StageReport{Status: StageSkipped, Detail: "stage disabled"}
		return nil
	}

	start := time.Now()

	if err := ctx.Err(); err != nil {
		res.PairwiseStage = StageReport{Status: StageCanceled, Detail: err.Error()}
		return fmt.Errorf("pairwise stage: %w", err)
	}

	var names, paths []string
	for i := range res.Assemblies {
		if res.Assemblies[i].Stats == nil {
			continue
		}
		names = append(names, res.Assemblies[i].Name)
		paths = append(paths, res.Assemblies[i].Path)
	}

	if len(names) < 2 {
		res.PairwiseStage = StageReport{
			Status: StageNotApplicable,
			Detail: "only one parsed assembly, pairwise needs two",
		}
		return nil
	}

	comparer := &fastani.Comparer{
		Runner:  o.runner,
		Binary:  o.cfg.FastANIBinary,
		CPUs:    o.cfg.cpus(),
		Timeout: o.cfg.FastANITimeout,
	}

	obs, err := comparer.CompareAll(ctx, names, paths, ws.fastaniDir())
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			res.PairwiseStage = StageReport{Status: StageCanceled, Detail: err.Error(), Elapsed: time.Since(start)}
			return fmt.Errorf("pairwise stage: %w", cerr)
		}
		res.PairwiseStage = StageReport{Status: StageFailed, Detail: err.Error(), Elapsed: time.Since(start)}
		logger.Warn("Pairwise stage failed", zap.String("error", err.Error()))
		return nil
	}

	m, err := simmatrix.Build(names, obs)
	if err != nil {
		res.PairwiseStage = StageReport{Status: StageFailed, Detail: err.Error(), Elapsed: time.Since(start)}
		return nil
	}

	res.Identity = m
	res.LowConfidence = m.LowConfidence()
	if len(res.LowConfidence) > 0 {
		logger.Warn("Low confidence matrix rows", zap.Strings("assemblies", res.LowConfidence))
	}

	d := m.Dissimilarity()

	order := cluster.LeafOrder(d)
	res.LeafOrder = make([]string, len(order))
	for k, i := range order {
		res.LeafOrder[k] = m.Names()[i]
	}

	root, err := cluster.NJTree(m.Names(), d)
	if err != nil {
		res.PairwiseStage = StageReport{Status: StageFailed, Detail: err.Error(), Elapsed: time.Since(start)}
		return nil
	}
	res.TreeNewick = cluster.Newick(root)

	res.PairwiseStage = StageReport{
		Status:  StageCompleted,
		Detail:  fmt.Sprintf("%d assemblies compared", len(names)),
		Elapsed: time.Since(start),
	}
	return nil
}
