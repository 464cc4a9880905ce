package resultdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/meadm/GenomeCheck/pkg/busco"
	"github.com/meadm/GenomeCheck/pkg/genome"
	"github.com/meadm/GenomeCheck/pkg/pipeline"
)

var ErrBatchNotFound = errors.New("batch not found")

// BatchSummary is one line of batch history.
type BatchSummary struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	Assemblies int

	Stats        pipeline.StageStatus
	Completeness pipeline.StageStatus
	Pairwise     pipeline.StageStatus
}

// AssemblyRow is the stored per-assembly outcome. Stats is nil when the
// file never parsed, Busco is nil when the stage did not produce a score.
type AssemblyRow struct {
	Name       string
	Path       string
	ParseError string
	Stats      *genome.StatsResult
	Busco      *busco.Score
}

// PairRow is one stored matrix cell from the upper triangle.
type PairRow struct {
	Query    string
	Ref      string
	Identity float64
	Imputed  bool
}

// BatchRecord is a stored batch read back from the tables.
type BatchRecord struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time

	StatsStage        pipeline.StageReport
	CompletenessStage pipeline.StageReport
	PairwiseStage     pipeline.StageReport

	Assemblies []AssemblyRow
	Pairwise   []PairRow

	TreeNewick    string
	LeafOrder     []string
	LowConfidence []string
}

// GetBatch loads one stored batch with its assembly and pair rows.
func (r *ResultDB) GetBatch(ctx context.Context, batchID string) (*BatchRecord, error) {

	const batchQuery = `
		SELECT started_at, finished_at,
			stats_status, stats_detail, stats_elapsed,
			completeness_status, completeness_detail, completeness_elapsed,
			pairwise_status, pairwise_detail, pairwise_elapsed,
			tree_newick, leaf_order, low_confidence
		FROM batches WHERE batch_id = ?;
	`

	rec := &BatchRecord{ID: batchID}
	var started, finished, leafOrder, lowConf string
	var statsStatus, compStatus, pairStatus string
	var statsElapsed, compElapsed, pairElapsed int64

	row := r.sql.QueryRowContext(ctx, batchQuery, batchID)
	err := row.Scan(&started, &finished,
		&statsStatus, &rec.StatsStage.Detail, &statsElapsed,
		&compStatus, &rec.CompletenessStage.Detail, &compElapsed,
		&pairStatus, &rec.PairwiseStage.Detail, &pairElapsed,
		&rec.TreeNewick, &leafOrder, &lowConf)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("batch %s: %w", batchID, ErrBatchNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("load batch %s: %w", batchID, err)
	}

	rec.StatsStage.Status = pipeline.StageStatus(statsStatus)
	rec.StatsStage.Elapsed = time.Duration(statsElapsed)
	rec.CompletenessStage.Status = pipeline.StageStatus(compStatus)
	rec.CompletenessStage.Elapsed = time.Duration(compElapsed)
	rec.PairwiseStage.Status = pipeline.StageStatus(pairStatus)
	rec.PairwiseStage.Elapsed = time.Duration(pairElapsed)

	if rec.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("batch %s started_at: %w", batchID, err)
	}
	if rec.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return nil, fmt.Errorf("batch %s finished_at: %w", batchID, err)
	}
	if err := json.Unmarshal([]byte(leafOrder), &rec.LeafOrder); err != nil {
		return nil, fmt.Errorf("batch %s leaf_order: %w", batchID, err)
	}
	if err := json.Unmarshal([]byte(lowConf), &rec.LowConfidence); err != nil {
		return nil, fmt.Errorf("batch %s low_confidence: %w", batchID, err)
	}

	if rec.Assemblies, err = r.assemblyRows(ctx, batchID); err != nil {
		return nil, err
	}
	if rec.Pairwise, err = r.pairRows(ctx, batchID); err != nil {
		return nil, err
	}

	return rec, nil
}

func (r *ResultDB) assemblyRows(ctx context.Context, batchID string) ([]AssemblyRow, error) {

	const query = `
		SELECT name, path, parse_error,
			total_length, num_contigs, n50, l90, gc_percent, longest_contig, shortest_contig,
			busco_status, busco_lineage, busco_single, busco_duplicated,
			busco_fragmented, busco_missing, busco_total, busco_detail
		FROM assembly_results WHERE batch_id = ? ORDER BY name;
	`

	rows, err := r.sql.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("load assemblies of %s: %w", batchID, err)
	}
	defer rows.Close()

	var out []AssemblyRow
	for rows.Next() {
		var a AssemblyRow
		var totalLength, numContigs, n50, l90, longest, shortest, buscoTotal sql.NullInt64
		var gcPercent, single, dup, frag, missing sql.NullFloat64
		var buscoStatus, buscoLineage, buscoDetail sql.NullString

		if err := rows.Scan(&a.Name, &a.Path, &a.ParseError,
			&totalLength, &numContigs, &n50, &l90, &gcPercent, &longest, &shortest,
			&buscoStatus, &buscoLineage, &single, &dup,
			&frag, &missing, &buscoTotal, &buscoDetail); err != nil {
			return nil, fmt.Errorf("scan assembly row: %w", err)
		}

		if totalLength.Valid {
			a.Stats = &genome.StatsResult{
				TotalLength:    int(totalLength.Int64),
				NumContigs:     int(numContigs.Int64),
				N50:            int(n50.Int64),
				L90:            int(l90.Int64),
				GCPercent:      gcPercent.Float64,
				LongestContig:  int(longest.Int64),
				ShortestContig: int(shortest.Int64),
			}
		}
		if buscoStatus.Valid {
			a.Busco = &busco.Score{
				Status:             busco.Status(buscoStatus.String),
				Lineage:            buscoLineage.String,
				CompleteSingle:     single.Float64,
				CompleteDuplicated: dup.Float64,
				Fragmented:         frag.Float64,
				Missing:            missing.Float64,
				TotalMarkers:       int(buscoTotal.Int64),
				Detail:             buscoDetail.String,
			}
		}

		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *ResultDB) pairRows(ctx context.Context, batchID string) ([]PairRow, error) {

	const query = `
		SELECT query_name, ref_name, identity, imputed
		FROM pairwise_identity WHERE batch_id = ? ORDER BY query_name, ref_name;
	`

	rows, err := r.sql.QueryContext(ctx, query, batchID)
	if err != nil {
		return nil, fmt.Errorf("load pairs of %s: %w", batchID, err)
	}
	defer rows.Close()

	var out []PairRow
	for rows.Next() {
		var p PairRow
		if err := rows.Scan(&p.Query, &p.Ref, &p.Identity, &p.Imputed); err != nil {
			return nil, fmt.Errorf("scan pair row: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListBatches returns batch history, newest first.
func (r *ResultDB) ListBatches(ctx context.Context) ([]BatchSummary, error) {

	const query = `
		SELECT b.batch_id, b.started_at, b.finished_at,
			b.stats_status, b.completeness_status, b.pairwise_status,
			(SELECT COUNT(*) FROM assembly_results a WHERE a.batch_id = b.batch_id)
		FROM batches b ORDER BY b.started_at DESC;
	`

	rows, err := r.sql.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var out []BatchSummary
	for rows.Next() {
		var s BatchSummary
		var started, finished, stats, comp, pair string
		if err := rows.Scan(&s.ID, &started, &finished, &stats, &comp, &pair, &s.Assemblies); err != nil {
			return nil, fmt.Errorf("scan batch summary: %w", err)
		}
		s.Stats = pipeline.StageStatus(stats)
		s.Completeness = pipeline.StageStatus(comp)
		s.Pairwise = pipeline.StageStatus(pair)
		if s.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
			return nil, fmt.Errorf("batch %s started_at: %w", s.ID, err)
		}
		if s.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
			return nil, fmt.Errorf("batch %s finished_at: %w", s.ID, err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
