package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/vareng/annotator/internal/annotation/model"
)

// PostgresStore is the relational annotation cache: two tables
// (variant-level, transcript-level), upserted transactionally per batch.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL-backed annotation store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// GetAnnotation returns the stored annotation for variantKey, or nil if the
// variant has never been successfully annotated. A nil result with a nil
// error is a cache miss, not an error.
func (s *PostgresStore) GetAnnotation(ctx context.Context, variantKey string) (*model.Annotation, error) {
	record, err := s.getRecord(ctx, variantKey)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}

	transcripts, err := s.getTranscripts(ctx, variantKey)
	if err != nil {
		return nil, err
	}

	return &model.Annotation{Record: *record, Transcripts: transcripts}, nil
}

func (s *PostgresStore) getRecord(ctx context.Context, variantKey string) (*model.Record, error) {
	const query = `
		SELECT variant_key, gene, cadd_score, ml_score, most_severe_consequence,
		       allele_frequency, max_pop_allele_freq, omim_id, clinical_significance
		FROM variant_annotations
		WHERE variant_key = $1
	`

	var r model.Record
	err := s.pool.QueryRow(ctx, query, variantKey).Scan(
		&r.VariantKey,
		&r.Gene,
		&r.CADDScore,
		&r.MLScore,
		&r.MostSevereConseq,
		&r.AlleleFrequency,
		&r.MaxPopAlleleFreq,
		&r.OMIMID,
		&r.ClinicalSignificance,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get annotation record: %w", err)
	}
	return &r, nil
}

func (s *PostgresStore) getTranscripts(ctx context.Context, variantKey string) ([]model.Transcript, error) {
	const query = `
		SELECT variant_key, transcript_id, polyphen, protein_notation, revel,
		       splice_ai_delta, mane, loftee_class, impact, gerp, cdna_notation, consequences
		FROM transcript_annotations
		WHERE variant_key = $1
		ORDER BY id ASC
	`

	rows, err := s.pool.Query(ctx, query, variantKey)
	if err != nil {
		return nil, fmt.Errorf("failed to query transcripts: %w", err)
	}
	defer rows.Close()

	var transcripts []model.Transcript
	for rows.Next() {
		var t model.Transcript
		var consequencesJoined string
		if err := rows.Scan(
			&t.VariantKey,
			&t.TranscriptID,
			&t.PolyPhen,
			&t.ProteinNotation,
			&t.Revel,
			&t.SpliceAIDelta,
			&t.MANE,
			&t.LOFTEEClass,
			&t.Impact,
			&t.GERP,
			&t.CDNANotation,
			&consequencesJoined,
		); err != nil {
			return nil, fmt.Errorf("failed to scan transcript: %w", err)
		}
		if consequencesJoined != "" {
			t.Consequences = strings.Split(consequencesJoined, ",")
		}
		transcripts = append(transcripts, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transcripts: %w", err)
	}

	return transcripts, nil
}

// WriteBatch persists a set of annotations in a single transaction: for
// each variant, prior transcript rows are deleted, the variant-level row is
// upserted, and the new transcript rows are inserted. All variants in
// annotations either all commit together or none do (spec §4.2 step 5);
// callers are responsible for excluding variants that failed to parse
// before calling WriteBatch — those are marked failed without a write.
func (s *PostgresStore) WriteBatch(ctx context.Context, annotations []model.Annotation) error {
	if len(annotations) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const deleteQuery = `DELETE FROM transcript_annotations WHERE variant_key = $1`
	const upsertQuery = `
		INSERT INTO variant_annotations (
			variant_key, gene, cadd_score, ml_score, most_severe_consequence,
			allele_frequency, max_pop_allele_freq, omim_id, clinical_significance
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (variant_key) DO UPDATE SET
			gene = EXCLUDED.gene,
			cadd_score = EXCLUDED.cadd_score,
			ml_score = EXCLUDED.ml_score,
			most_severe_consequence = EXCLUDED.most_severe_consequence,
			allele_frequency = EXCLUDED.allele_frequency,
			max_pop_allele_freq = EXCLUDED.max_pop_allele_freq,
			omim_id = EXCLUDED.omim_id,
			clinical_significance = EXCLUDED.clinical_significance
	`

	var transcriptRows [][]any
	for _, a := range annotations {
		r := a.Record
		if _, err := tx.Exec(ctx, deleteQuery, r.VariantKey); err != nil {
			return fmt.Errorf("failed to clear transcripts for %s: %w", r.VariantKey, err)
		}
		if _, err := tx.Exec(ctx, upsertQuery,
			r.VariantKey, r.Gene, r.CADDScore, r.MLScore, r.MostSevereConseq,
			r.AlleleFrequency, r.MaxPopAlleleFreq, r.OMIMID, r.ClinicalSignificance,
		); err != nil {
			return fmt.Errorf("failed to upsert variant %s: %w", r.VariantKey, err)
		}

		for _, t := range a.Transcripts {
			transcriptRows = append(transcriptRows, []any{
				t.VariantKey, t.TranscriptID, t.PolyPhen, t.ProteinNotation, t.Revel,
				t.SpliceAIDelta, t.MANE, t.LOFTEEClass, t.Impact, t.GERP, t.CDNANotation,
				strings.Join(t.Consequences, ","),
			})
		}
	}

	if len(transcriptRows) > 0 {
		_, err := tx.CopyFrom(
			ctx,
			pgx.Identifier{"transcript_annotations"},
			[]string{
				"variant_key", "transcript_id", "polyphen", "protein_notation", "revel",
				"splice_ai_delta", "mane", "loftee_class", "impact", "gerp", "cdna_notation",
				"consequences",
			},
			pgx.CopyFromRows(transcriptRows),
		)
		if err != nil {
			return fmt.Errorf("failed to bulk-insert transcripts: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit batch: %w", err)
	}

	return nil
}

// Statistics aggregates counts used by the /statistics endpoint (spec §6).
type Statistics struct {
	TotalRecords         int64
	RecordsWithMLScore   int64
	ConsequenceHistogram map[string]int64
}

// Statistics computes total record count, the number of records with a
// non-null ML score, and a histogram of most-severe-consequence values.
func (s *PostgresStore) Statistics(ctx context.Context) (Statistics, error) {
	stats := Statistics{ConsequenceHistogram: make(map[string]int64)}

	row := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM variant_annotations`)
	if err := row.Scan(&stats.TotalRecords); err != nil {
		return Statistics{}, fmt.Errorf("failed to count records: %w", err)
	}

	row = s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM variant_annotations WHERE ml_score IS NOT NULL`)
	if err := row.Scan(&stats.RecordsWithMLScore); err != nil {
		return Statistics{}, fmt.Errorf("failed to count scored records: %w", err)
	}

	rows, err := s.pool.Query(ctx, `
		SELECT most_severe_consequence, COUNT(*)
		FROM variant_annotations
		GROUP BY most_severe_consequence
	`)
	if err != nil {
		return Statistics{}, fmt.Errorf("failed to build consequence histogram: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var consequence string
		var count int64
		if err := rows.Scan(&consequence, &count); err != nil {
			return Statistics{}, fmt.Errorf("failed to scan histogram row: %w", err)
		}
		stats.ConsequenceHistogram[consequence] = count
	}
	if err := rows.Err(); err != nil {
		return Statistics{}, fmt.Errorf("error iterating histogram: %w", err)
	}

	return stats, nil
}
