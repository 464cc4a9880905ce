package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap/zapcore"

	"github.com/meadm/GenomeCheck/logger"
	"github.com/meadm/GenomeCheck/pkg/busco"
	"github.com/meadm/GenomeCheck/pkg/genome"
	"github.com/meadm/GenomeCheck/pkg/toolrun"
)

func TestMain(m *testing.M) {
	if err := logger.InitLogger(zapcore.ErrorLevel); err != nil {
		panic(err)
	}
	os.Exit(m.Run())
}

const goodFasta = ">c1\nATGCATGCAT\n>c2\nGGGCC\n"

var goodStats = &genome.StatsResult{
	TotalLength:    15,
	NumContigs:     2,
	N50:            10,
	L90:            2,
	GCPercent:      60.0,
	LongestContig:  10,
	ShortestContig: 5,
}

const badFasta = ">c1\n\n>c2\nACGT\n"

func writeFasta(t *testing.T, dir, file, content string) string {
	t.Helper()

	path := filepath.Join(dir, file)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

// fakeTools puts stand-in busco and fastANI scripts on PATH. The busco
// stand-in writes a fixed short summary into its run directory, the
// fastANI stand-in emits one row per ordered pair of its input list.
func fakeTools(t *testing.T) {
	t.Helper()

	dir := t.TempDir()

	buscoScript := `#!/bin/sh
while [ $# -gt 0 ]; do
  case "$1" in
    -o) NAME="$2"; shift 2;;
    --out_path) OUT="$2"; shift 2;;
    *) shift;;
  esac
done
mkdir -p "$OUT/$NAME"
cat > "$OUT/$NAME/short_summary.txt" <<'SUMMARY'
	118	Complete and single-copy BUSCOs (S)
	2	Complete and duplicated BUSCOs (D)
	1	Fragmented BUSCOs (F)
	3	Missing BUSCOs (M)
	124	Total BUSCO groups searched
SUMMARY
`
	fastaniScript := `#!/bin/sh
while [ $# -gt 0 ]; do
  case "$1" in
    --ql) QL="$2"; shift 2;;
    -o) OUT="$2"; shift 2;;
    *) shift;;
  esac
done
: > "$OUT"
while read -r q; do
  while read -r r; do
    [ "$q" = "$r" ] && continue
    printf '%s\t%s\t92.5\t100\t120\n' "$q" "$r" >> "$OUT"
  done < "$QL"
done < "$QL"
`
	if err := os.WriteFile(filepath.Join(dir, "busco"), []byte(buscoScript), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "fastANI"), []byte(fastaniScript), 0755); err != nil {
		t.Fatal(err)
	}
	t.Setenv("PATH", dir+string(os.PathListSeparator)+os.Getenv("PATH"))
}

func TestRunStatsOnly(t *testing.T) {

	in := t.TempDir()
	workRoot := t.TempDir()
	inputs := []Input{
		{Name: "good1", Path: writeFasta(t, in, "good1.fasta", goodFasta)},
		{Name: "good2", Path: writeFasta(t, in, "good2.fasta", goodFasta)},
		{Name: "broken", Path: writeFasta(t, in, "broken.fasta", badFasta)},
	}

	o, err := NewOrchestrator(Config{WorkRoot: workRoot})
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}

	res, err := o.Run(context.Background(), inputs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.StatsStage.Status != StageCompleted {
		t.Errorf("StatsStage = %+v, want completed", res.StatsStage)
	}
	if res.StatsStage.Detail != "2 of 3 assemblies parsed" {
		t.Errorf("StatsStage.Detail = %q", res.StatsStage.Detail)
	}
	if res.CompletenessStage.Status != StageSkipped || res.PairwiseStage.Status != StageSkipped {
		t.Errorf("disabled stages not skipped: %+v / %+v", res.CompletenessStage, res.PairwiseStage)
	}

	if diff := cmp.Diff(goodStats, res.Assemblies[0].Stats); diff != "" {
		t.Errorf("good1 stats mismatch:\n%s", diff)
	}
	if res.Assemblies[2].Stats != nil || res.Assemblies[2].Error == "" {
		t.Errorf("broken assembly not rejected: %+v", res.Assemblies[2])
	}

	// Workspace is gone once the result is in hand
	if res.Workspace != "" {
		t.Errorf("Workspace = %q, want empty when not kept", res.Workspace)
	}
	if _, err := os.Stat(filepath.Join(workRoot, "genomecheck-"+res.ID)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("workspace still on disk: %v", err)
	}

	job, ok := o.Jobs.GetJob(res.ID)
	if !ok || job.Status != BatchJobCompleted {
		t.Errorf("job state = %+v, want completed", job)
	}
}

func TestRunAllStages(t *testing.T) {

	fakeTools(t)

	in := t.TempDir()
	inputs := []Input{
		{Name: "asm1", Path: writeFasta(t, in, "asm1.fasta", goodFasta)},
		{Name: "asm2", Path: writeFasta(t, in, "asm2.fasta", goodFasta)},
		{Name: "asm3", Path: writeFasta(t, in, "asm3.fasta", goodFasta)},
	}

	var mu sync.Mutex
	phases := map[toolrun.Phase]int{}

	o, err := NewOrchestrator(Config{
		RunCompleteness: true,
		Lineage:         "bacteria_odb10",
		RunPairwise:     true,
		CPUs:            2,
		Parallel:        2,
		WorkRoot:        t.TempDir(),
		Progress: func(ev toolrun.Event) {
			mu.Lock()
			phases[ev.Phase]++
			mu.Unlock()
		},
	})
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}

	res, err := o.Run(context.Background(), inputs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, st := range []StageReport{res.StatsStage, res.CompletenessStage, res.PairwiseStage} {
		if st.Status != StageCompleted {
			t.Errorf("stage = %+v, want completed", st)
		}
	}

	// Three busco runs plus one fastANI run
	if phases[toolrun.PhaseStarted] != 4 || phases[toolrun.PhaseFinished] != 4 {
		t.Errorf("progress events = %v, want 4 started and 4 finished", phases)
	}

	for i, a := range res.Assemblies {
		if a.Completeness == nil || a.Completeness.Status != busco.StatusOK {
			t.Errorf("Assemblies[%d].Completeness = %+v, want ok", i, a.Completeness)
			continue
		}
		if a.Completeness.TotalMarkers != 124 {
			t.Errorf("Assemblies[%d].TotalMarkers = %d, want 124", i, a.Completeness.TotalMarkers)
		}
	}

	m := res.Identity
	if m == nil || m.Len() != 3 {
		t.Fatalf("Identity = %v, want a 3x3 matrix", m)
	}
	for i := 0; i < 3; i++ {
		if m.At(i, i) != 100.0 {
			t.Errorf("diagonal At(%d,%d) = %v, want 100", i, i, m.At(i, i))
		}
	}
	if got := m.At(0, 1); got != 92.5 {
		t.Errorf("At(0,1) = %v, want 92.5", got)
	}
	if len(res.LowConfidence) != 0 {
		t.Errorf("LowConfidence = %v, want none", res.LowConfidence)
	}

	if len(res.LeafOrder) != 3 {
		t.Errorf("LeafOrder = %v, want 3 names", res.LeafOrder)
	}
	if !strings.HasSuffix(res.TreeNewick, ";") || !strings.Contains(res.TreeNewick, "asm1") {
		t.Errorf("TreeNewick = %q", res.TreeNewick)
	}
}

func TestRunNothingParses(t *testing.T) {

	in := t.TempDir()
	inputs := []Input{{Name: "broken", Path: writeFasta(t, in, "broken.fasta", badFasta)}}

	o, err := NewOrchestrator(Config{WorkRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}

	res, err := o.Run(context.Background(), inputs)
	if err == nil {
		t.Fatal("expected an error when nothing parses")
	}
	if res == nil || res.StatsStage.Status != StageFailed {
		t.Fatalf("StatsStage = %+v, want failed", res)
	}

	job, _ := o.Jobs.GetJob(res.ID)
	if job.Status != BatchJobFailed {
		t.Errorf("job status = %s, want failed", job.Status)
	}
}

func TestRunToolUnavailable(t *testing.T) {

	in := t.TempDir()
	inputs := []Input{{Name: "asm1", Path: writeFasta(t, in, "asm1.fasta", goodFasta)}}

	o, err := NewOrchestrator(Config{
		RunCompleteness: true,
		Lineage:         "bacteria_odb10",
		BuscoBinary:     "busco-not-installed-anywhere",
		WorkRoot:        t.TempDir(),
	})
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}

	res, err := o.Run(context.Background(), inputs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// One batch-level signal, the batch itself carries on
	if res.CompletenessStage.Status != StageFailed {
		t.Errorf("CompletenessStage = %+v, want failed", res.CompletenessStage)
	}
	if res.StatsStage.Status != StageCompleted {
		t.Errorf("StatsStage = %+v, want completed", res.StatsStage)
	}
	if res.Assemblies[0].Completeness != nil {
		t.Errorf("no score expected without a tool, got %+v", res.Assemblies[0].Completeness)
	}
}

func TestRunPairwiseNotApplicable(t *testing.T) {

	in := t.TempDir()
	inputs := []Input{{Name: "only", Path: writeFasta(t, in, "only.fasta", goodFasta)}}

	// No stand-in on PATH: a single assembly must not reach the tool
	o, err := NewOrchestrator(Config{
		RunPairwise:   true,
		FastANIBinary: "fastani-not-installed-anywhere",
		WorkRoot:      t.TempDir(),
	})
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}

	res, err := o.Run(context.Background(), inputs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.PairwiseStage.Status != StageNotApplicable {
		t.Errorf("PairwiseStage = %+v, want not_applicable", res.PairwiseStage)
	}
	if res.Identity != nil || res.TreeNewick != "" {
		t.Errorf("pairwise outputs produced without a comparison: %+v", res)
	}
}

func TestRunCancellation(t *testing.T) {

	in := t.TempDir()
	workRoot := t.TempDir()
	inputs := []Input{{Name: "asm1", Path: writeFasta(t, in, "asm1.fasta", goodFasta)}}

	o, err := NewOrchestrator(Config{WorkRoot: workRoot})
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	res, err := o.Run(ctx, inputs)
	if err == nil {
		t.Fatal("expected a cancellation error")
	}
	if res.StatsStage.Status != StageCanceled {
		t.Errorf("StatsStage = %+v, want canceled", res.StatsStage)
	}
	if res.CompletenessStage.Status != StageSkipped || res.PairwiseStage.Status != StageSkipped {
		t.Errorf("later stages = %+v / %+v, want skipped", res.CompletenessStage, res.PairwiseStage)
	}

	// Cleanup still ran
	if _, err := os.Stat(filepath.Join(workRoot, "genomecheck-"+res.ID)); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("workspace still on disk: %v", err)
	}

	job, _ := o.Jobs.GetJob(res.ID)
	if job.Status != BatchJobFailed {
		t.Errorf("job status = %s, want failed", job.Status)
	}
}

func TestRunKeepsWorkspace(t *testing.T) {

	in := t.TempDir()
	workRoot := t.TempDir()
	inputs := []Input{{Name: "asm1", Path: writeFasta(t, in, "asm1.fasta", goodFasta)}}

	o, err := NewOrchestrator(Config{WorkRoot: workRoot, KeepWorkspace: true})
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}

	res, err := o.Run(context.Background(), inputs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if res.Workspace == "" {
		t.Fatal("Workspace path missing from a kept batch")
	}
	if _, err := os.Stat(res.Workspace); err != nil {
		t.Errorf("kept workspace not on disk: %v", err)
	}
}

func TestRunDeduplicatesNames(t *testing.T) {

	in1, in2 := t.TempDir(), t.TempDir()
	inputs := []Input{
		{Name: "asm", Path: writeFasta(t, in1, "asm.fasta", goodFasta)},
		{Name: "asm", Path: writeFasta(t, in2, "asm.fasta", goodFasta)},
	}

	o, err := NewOrchestrator(Config{WorkRoot: t.TempDir()})
	if err != nil {
		t.Fatalf("NewOrchestrator failed: %v", err)
	}

	res, err := o.Run(context.Background(), inputs)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	got := []string{res.Assemblies[0].Name, res.Assemblies[1].Name}
	want := []string{"asm", "asm-2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("names mismatch:\n%s", diff)
	}
}

func TestNewOrchestratorRejectsConfig(t *testing.T) {

	tests := []struct {
		name string
		cfg  Config
	}{
		{"NegativeCPUs", Config{CPUs: -1}},
		{"NegativeParallel", Config{Parallel: -2}},
		{"UnknownLineage", Config{RunCompleteness: true, Lineage: "klingon_odb10"}},
		{"MissingLineage", Config{RunCompleteness: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewOrchestrator(tt.cfg)
			if err == nil {
				t.Fatal("expected a configuration error")
			}
			var cerr *ConfigurationError
			if !errors.As(err, &cerr) {
				t.Errorf("expected ConfigurationError, got %T: %v", err, err)
			}
		})
	}
}

func TestScanInputs(t *testing.T) {

	dir := t.TempDir()
	for _, f := range []string{"b.fa", "a.fasta", "c.fna", "notes.txt"} {
		writeFasta(t, dir, f, goodFasta)
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.fasta"), 0755); err != nil {
		t.Fatal(err)
	}

	inputs, err := ScanInputs(dir)
	if err != nil {
		t.Fatalf("ScanInputs failed: %v", err)
	}

	var names []string
	for _, in := range inputs {
		names = append(names, in.Name)
	}
	if diff := cmp.Diff([]string{"a", "b", "c"}, names); diff != "" {
		t.Errorf("names mismatch:\n%s", diff)
	}

	if _, err := ScanInputs(filepath.Join(dir, "no-such-dir")); err == nil {
		t.Error("expected an error for a missing directory")
	}
}
