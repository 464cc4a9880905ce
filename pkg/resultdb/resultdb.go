// Package resultdb persists finished batches into SQLite so earlier runs
// stay inspectable. Storage is flat rows, not a serialized result object,
// which keeps the tables usable from plain SQL.
package resultdb

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/meadm/GenomeCheck/logger"
	"github.com/meadm/GenomeCheck/pkg/pipeline"
)

type ResultDB struct {
	sql *sql.DB
}

func NewResultDB(db *sql.DB) *ResultDB {
	return &ResultDB{sql: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS batches (
	batch_id            TEXT PRIMARY KEY,
	started_at          TEXT NOT NULL,
	finished_at         TEXT NOT NULL,
	stats_status        TEXT NOT NULL,
	stats_detail        TEXT NOT NULL,
	stats_elapsed       INTEGER NOT NULL,
	completeness_status TEXT NOT NULL,
	completeness_detail TEXT NOT NULL,
	completeness_elapsed INTEGER NOT NULL,
	pairwise_status     TEXT NOT NULL,
	pairwise_detail     TEXT NOT NULL,
	pairwise_elapsed    INTEGER NOT NULL,
	tree_newick         TEXT NOT NULL,
	leaf_order          TEXT NOT NULL,
	low_confidence      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS assembly_results (
	batch_id        TEXT NOT NULL,
	name            TEXT NOT NULL,
	path            TEXT NOT NULL,
	parse_error     TEXT NOT NULL,
	total_length    INTEGER,
	num_contigs     INTEGER,
	n50             INTEGER,
	l90             INTEGER,
	gc_percent      REAL,
	longest_contig  INTEGER,
	shortest_contig INTEGER,
	busco_status    TEXT,
	busco_lineage   TEXT,
	busco_single    REAL,
	busco_duplicated REAL,
	busco_fragmented REAL,
	busco_missing   REAL,
	busco_total     INTEGER,
	busco_detail    TEXT,
	PRIMARY KEY (batch_id, name)
);

CREATE TABLE IF NOT EXISTS pairwise_identity (
	batch_id   TEXT NOT NULL,
	query_name TEXT NOT NULL,
	ref_name   TEXT NOT NULL,
	identity   REAL NOT NULL,
	imputed    INTEGER NOT NULL,
	PRIMARY KEY (batch_id, query_name, ref_name)
);
`

// Init creates the tables when they do not exist yet.
func (r *ResultDB) Init(ctx context.Context) error {
	if _, err := r.sql.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init result db: %w", err)
	}
	return nil
}

// SaveBatch writes one finished batch in a single transaction. The
// identity matrix goes in as its upper triangle, the diagonal is constant
// and the matrix symmetric.
func (r *ResultDB) SaveBatch(ctx context.Context, res *pipeline.BatchResult) error {

	conn, connErr := r.sql.Conn(ctx)
	if connErr != nil {
		return fmt.Errorf("fail to get a connection %w", connErr)
	}
	defer conn.Close()

	tx, txErr := conn.BeginTx(ctx, nil)
	if txErr != nil {
		return fmt.Errorf("fail to begin tx %w", txErr)
	}
	defer tx.Rollback()

	leafOrder, err := json.Marshal(res.LeafOrder)
	if err != nil {
		return fmt.Errorf("encode leaf order: %w", err)
	}
	lowConf, err := json.Marshal(res.LowConfidence)
	if err != nil {
		return fmt.Errorf("encode low confidence list: %w", err)
	}

	const insertBatch = `
		INSERT INTO batches (
			batch_id, started_at, finished_at,
			stats_status, stats_detail, stats_elapsed,
			completeness_status, completeness_detail, completeness_elapsed,
			pairwise_status, pairwise_detail, pairwise_elapsed,
			tree_newick, leaf_order, low_confidence
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`
	if _, err := tx.ExecContext(ctx, insertBatch,
		res.ID,
		res.StartedAt.Format(time.RFC3339Nano),
		res.FinishedAt.Format(time.RFC3339Nano),
		string(res.StatsStage.Status), res.StatsStage.Detail, int64(res.StatsStage.Elapsed),
		string(res.CompletenessStage.Status), res.CompletenessStage.Detail, int64(res.CompletenessStage.Elapsed),
		string(res.PairwiseStage.Status), res.PairwiseStage.Detail, int64(res.PairwiseStage.Elapsed),
		res.TreeNewick, string(leafOrder), string(lowConf),
	); err != nil {
		return fmt.Errorf("insert batch %s: %w", res.ID, err)
	}

	const insertAssembly = `
		INSERT INTO assembly_results (
			batch_id, name, path, parse_error,
			total_length, num_contigs, n50, l90, gc_percent, longest_contig, shortest_contig,
			busco_status, busco_lineage, busco_single, busco_duplicated,
			busco_fragmented, busco_missing, busco_total, busco_detail
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
	`
	for _, a := range res.Assemblies {
		args := []interface{}{res.ID, a.Name, a.Path, a.Error}

		if a.Stats != nil {
			args = append(args, a.Stats.TotalLength, a.Stats.NumContigs, a.Stats.N50,
				a.Stats.L90, a.Stats.GCPercent, a.Stats.LongestContig, a.Stats.ShortestContig)
		} else {
			args = append(args, nil, nil, nil, nil, nil, nil, nil)
		}

		if a.Completeness != nil {
			c := a.Completeness
			args = append(args, string(c.Status), c.Lineage, c.CompleteSingle,
				c.CompleteDuplicated, c.Fragmented, c.Missing, c.TotalMarkers, c.Detail)
		} else {
			args = append(args, nil, nil, nil, nil, nil, nil, nil, nil)
		}

		if _, err := tx.ExecContext(ctx, insertAssembly, args...); err != nil {
			return fmt.Errorf("insert assembly %s: %w", a.Name, err)
		}
	}

	if m := res.Identity; m != nil {
		const insertPair = `
			INSERT INTO pairwise_identity (batch_id, query_name, ref_name, identity, imputed)
			VALUES (?, ?, ?, ?, ?);
		`
		names := m.Names()
		for i := 0; i < m.Len(); i++ {
			for j := i + 1; j < m.Len(); j++ {
				if _, err := tx.ExecContext(ctx, insertPair,
					res.ID, names[i], names[j], m.At(i, j), m.Imputed(i, j)); err != nil {
					return fmt.Errorf("insert pair %s/%s: %w", names[i], names[j], err)
				}
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit batch %s: %w", res.ID, err)
	}

	logger.Debug("Batch saved")
	return nil
}
