package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/meadm/GenomeCheck/internal/util"
	"github.com/meadm/GenomeCheck/logger"
	"github.com/meadm/GenomeCheck/pkg/busco"
	"github.com/meadm/GenomeCheck/pkg/pipeline"
	"github.com/meadm/GenomeCheck/pkg/report"
	"github.com/meadm/GenomeCheck/pkg/resultdb"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	_ "modernc.org/sqlite"
)

func main() {

	VERSION := "0.1.0"

	in := flag.String("in", "", "directory of assembly FASTA files (.fasta/.fa/.fna)")
	out := flag.String("out", ".", "directory for the report files")
	profilePath := flag.String("profile", "", "YAML profile with batch settings")
	runBusco := flag.Bool("busco", false, "run the BUSCO completeness stage")
	lineage := flag.String("lineage", "", "BUSCO lineage dataset, see -lineages")
	listLineages := flag.Bool("lineages", false, "print the known BUSCO lineages and exit")
	runANI := flag.Bool("ani", false, "run pairwise identity, matrix and trees")
	cpus := flag.Int("cpus", 0, "threads per tool invocation, 0 means all cores")
	parallel := flag.Int("parallel", 1, "concurrent tool invocations")
	buscoTimeout := flag.Duration("busco-timeout", time.Hour, "per-assembly BUSCO time limit")
	aniTimeout := flag.Duration("ani-timeout", time.Hour, "fastANI time limit")
	keep := flag.Bool("keep", false, "keep the batch workspace on disk")
	workRoot := flag.String("work", "", "workspace root, empty means the system temp directory")
	dbPath := flag.String("db", "", "SQLite batch history file, empty disables history")
	history := flag.Bool("history", false, "print the stored batch history and exit")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	// Establish logger
	LOG_LEVEL := zapcore.InfoLevel
	if *debug {
		LOG_LEVEL = zapcore.DebugLevel
	}
	if err := logger.InitLogger(LOG_LEVEL); err != nil {
		panic(err)
	}

	defer logger.Sync() // Make sure that the buffered is flushed.

	// Try load env
	dotenvErr := godotenv.Load()

	if dotenvErr != nil {
		logger.Debug("No .env found, using local environment")
	}

	if *listLineages {
		for _, l := range busco.Lineages() {
			fmt.Println(l)
		}
		return
	}

	set := map[string]bool{}
	flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if *profilePath != "" {
		if !util.FileExists(*profilePath) {
			logger.Fatal("Profile not found", zap.String("path", *profilePath))
		}
		prof, err := LoadProfile(*profilePath)
		if err != nil {
			logger.Fatal("Cannot load profile", zap.String("error", err.Error()))
		}
		applyProfile(prof, set,
			in, out, runBusco, lineage, runANI, cpus, parallel,
			buscoTimeout, aniTimeout, keep, workRoot, dbPath)
	}

	if *dbPath == "" {
		*dbPath = os.Getenv("GENOMECHECK_DB")
	}
	if *in == "" {
		*in = os.Getenv("GENOMECHECK_DATA")
	}

	logger.Info("Start:", zap.String("Version", VERSION))

	if *history {
		printHistory(*dbPath)
		return
	}

	if *in == "" {
		flag.Usage()
		logger.Fatal("No input directory (-in)")
	}

	inputs, err := pipeline.ScanInputs(*in)
	if err != nil {
		logger.Fatal("Cannot scan input directory", zap.String("error", err.Error()))
	}
	if len(inputs) == 0 {
		logger.Fatal("No FASTA files in input directory", zap.String("dir", *in))
	}

	orch, err := pipeline.NewOrchestrator(pipeline.Config{
		RunCompleteness: *runBusco,
		Lineage:         *lineage,
		RunPairwise:     *runANI,
		CPUs:            *cpus,
		Parallel:        *parallel,
		BuscoBinary:     os.Getenv("GENOMECHECK_BUSCO"),
		FastANIBinary:   os.Getenv("GENOMECHECK_FASTANI"),
		BuscoTimeout:    *buscoTimeout,
		FastANITimeout:  *aniTimeout,
		WorkRoot:        *workRoot,
		KeepWorkspace:   *keep,
	})
	if err != nil {
		logger.Fatal("Bad configuration", zap.String("error", err.Error()))
	}

	// Interrupts cancel between tool invocations, not mid-run.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := orch.Run(ctx, inputs)
	if err != nil {
		logger.Error("Batch failed", zap.String("error", err.Error()))
		logger.Sync()
		os.Exit(1)
	}

	if err := writeReports(*out, res); err != nil {
		logger.Error("Cannot write reports", zap.String("error", err.Error()))
		logger.Sync()
		os.Exit(1)
	}

	if *dbPath != "" {
		saveHistory(*dbPath, res)
	}

	if err := report.WriteSummary(os.Stdout, res); err != nil {
		logger.Error("Cannot write summary", zap.String("error", err.Error()))
	}
}

// applyProfile fills in every setting the user did not pass explicitly.
func applyProfile(p *Profile, set map[string]bool,
	in, out *string, runBusco *bool, lineage *string, runANI *bool,
	cpus, parallel *int, buscoTimeout, aniTimeout *time.Duration,
	keep *bool, workRoot, dbPath *string) {

	if !set["in"] && p.Input != "" {
		*in = p.Input
	}
	if !set["out"] && p.Output != "" {
		*out = p.Output
	}
	if !set["busco"] {
		*runBusco = p.Busco
	}
	if !set["lineage"] && p.Lineage != "" {
		*lineage = p.Lineage
	}
	if !set["ani"] {
		*runANI = p.ANI
	}
	if !set["cpus"] && p.CPUs != 0 {
		*cpus = p.CPUs
	}
	if !set["parallel"] && p.Parallel != 0 {
		*parallel = p.Parallel
	}
	if !set["keep"] {
		*keep = p.KeepWorkspace
	}
	if !set["work"] && p.WorkRoot != "" {
		*workRoot = p.WorkRoot
	}
	if !set["db"] && p.DB != "" {
		*dbPath = p.DB
	}

	if !set["busco-timeout"] {
		if d, err := parseTimeout(p.BuscoTimeout, "busco_timeout"); err != nil {
			logger.Fatal("Bad profile", zap.String("error", err.Error()))
		} else if d > 0 {
			*buscoTimeout = d
		}
	}
	if !set["ani-timeout"] {
		if d, err := parseTimeout(p.ANITimeout, "ani_timeout"); err != nil {
			logger.Fatal("Bad profile", zap.String("error", err.Error()))
		} else if d > 0 {
			*aniTimeout = d
		}
	}
}

func writeReports(outDir string, res *pipeline.BatchResult) error {

	if err := os.MkdirAll(outDir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	statsPath := filepath.Join(outDir, "assembly_stats.tsv")
	f, err := os.Create(statsPath)
	if err != nil {
		return err
	}
	if err := report.WriteStatsTable(f, res); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Info("Wrote stats table", zap.String("path", statsPath))

	if res.Identity == nil {
		return nil
	}

	matrixPath := filepath.Join(outDir, "identity_matrix.tsv")
	mf, err := os.Create(matrixPath)
	if err != nil {
		return err
	}
	if err := report.WriteMatrix(mf, res.Identity, res.LeafOrder); err != nil {
		mf.Close()
		return err
	}
	if err := mf.Close(); err != nil {
		return err
	}
	logger.Info("Wrote identity matrix", zap.String("path", matrixPath))

	treePath := filepath.Join(outDir, "tree.nwk")
	tf, err := os.Create(treePath)
	if err != nil {
		return err
	}
	if err := report.WriteNewick(tf, res.TreeNewick); err != nil {
		tf.Close()
		return err
	}
	if err := tf.Close(); err != nil {
		return err
	}
	logger.Info("Wrote tree", zap.String("path", treePath))

	heatmapPath := filepath.Join(outDir, "identity_heatmap.html")
	hf, err := os.Create(heatmapPath)
	if err != nil {
		return err
	}
	if err := report.WriteHeatmap(hf, res); err != nil {
		hf.Close()
		return err
	}
	if err := hf.Close(); err != nil {
		return err
	}
	logger.Info("Wrote heatmap", zap.String("path", heatmapPath))

	return nil
}

func openHistory(path string) (*resultdb.ResultDB, *sql.DB, error) {

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, nil, err
	}

	r := resultdb.NewResultDB(db)
	if err := r.Init(context.Background()); err != nil {
		db.Close()
		return nil, nil, err
	}
	return r, db, nil
}

func saveHistory(path string, res *pipeline.BatchResult) {

	r, db, err := openHistory(path)
	if err != nil {
		logger.Error("Cannot open history database", zap.String("path", path), zap.String("error", err.Error()))
		return
	}
	defer db.Close()

	if err := r.SaveBatch(context.Background(), res); err != nil {
		logger.Error("Cannot save batch", zap.String("error", err.Error()))
		return
	}
	logger.Info("Batch saved", zap.String("db", path), zap.String("batch", res.ID))
}

func printHistory(path string) {

	if path == "" {
		logger.Fatal("No history database configured (-db or GENOMECHECK_DB)")
	}

	r, db, err := openHistory(path)
	if err != nil {
		logger.Fatal("Cannot open history database", zap.String("path", path), zap.String("error", err.Error()))
	}
	defer db.Close()

	list, err := r.ListBatches(context.Background())
	if err != nil {
		logger.Fatal("Cannot list batches", zap.String("error", err.Error()))
	}

	for _, b := range list {
		fmt.Printf("%s  %s  assemblies=%d  stats=%s  completeness=%s  pairwise=%s\n",
			b.ID, b.StartedAt.Format("2006-01-02 15:04"), b.Assemblies,
			b.Stats, b.Completeness, b.Pairwise)
	}
	if len(list) == 0 {
		fmt.Println("no stored batches")
	}
}
