package repository

import "context"

// schemaDDL creates both annotation tables idempotently. No migration
// framework is used — the teacher ships no migrations either, and this DDL
// is small and stable enough that CREATE TABLE IF NOT EXISTS is sufficient
// (spec §6: "schema must be created idempotently on startup; no destructive
// migration").
const schemaDDL = `
CREATE TABLE IF NOT EXISTS variant_annotations (
	variant_key            VARCHAR(128) PRIMARY KEY,
	gene                   VARCHAR(64)  NOT NULL DEFAULT '',
	cadd_score             DOUBLE PRECISION,
	ml_score               DOUBLE PRECISION,
	most_severe_consequence VARCHAR(128) NOT NULL DEFAULT '',
	allele_frequency       DOUBLE PRECISION,
	max_pop_allele_freq    DOUBLE PRECISION,
	omim_id                VARCHAR(64),
	clinical_significance  VARCHAR(255)
);

CREATE TABLE IF NOT EXISTS transcript_annotations (
	id               BIGSERIAL PRIMARY KEY,
	variant_key      VARCHAR(128) NOT NULL REFERENCES variant_annotations(variant_key) ON DELETE CASCADE,
	transcript_id    VARCHAR(64)  NOT NULL,
	polyphen         DOUBLE PRECISION,
	protein_notation TEXT,
	revel            DOUBLE PRECISION,
	splice_ai_delta  DOUBLE PRECISION,
	mane             BOOLEAN NOT NULL DEFAULT FALSE,
	loftee_class     VARCHAR(32),
	impact           VARCHAR(16) NOT NULL DEFAULT 'MODIFIER',
	gerp             DOUBLE PRECISION,
	cdna_notation    TEXT,
	consequences     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_transcript_annotations_variant_key
	ON transcript_annotations (variant_key);
CREATE INDEX IF NOT EXISTS idx_transcript_annotations_transcript_id
	ON transcript_annotations (transcript_id);
`

// EnsureSchema creates the two annotation tables if they do not already
// exist. Safe to call on every startup.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaDDL)
	return err
}
