// Package model defines the flat, nullable-field record types persisted by
// the annotation cache store. Unlike the duck-typed generic annotation
// wrapper in the original system, provenance is carried by the field name
// itself rather than by per-field metadata — there is exactly one shape for
// a variant-level record and one for a transcript-level record.
package model

// Record is the variant-level annotation: exactly one row per variant_key.
// Its presence in the store implies the variant has been annotated
// successfully at least once.
type Record struct {
	VariantKey string

	Gene                 string
	CADDScore            *float64
	MLScore              *float64
	MostSevereConseq     string
	AlleleFrequency      *float64
	MaxPopAlleleFreq     *float64
	OMIMID               *string
	ClinicalSignificance *string
}

// Transcript is one transcript-level annotation row. Zero or more rows
// exist per variant_key; when a variant is re-annotated, all prior rows for
// that variant_key are replaced atomically with the new set.
type Transcript struct {
	VariantKey string

	TranscriptID    string
	PolyPhen        *float64
	ProteinNotation *string // HGVS.p — stored unbounded, see SPEC_FULL.md §3
	Revel           *float64
	SpliceAIDelta   *float64
	MANE            bool
	LOFTEEClass     *string
	Impact          string // HIGH | MODERATE | LOW | MODIFIER
	GERP            *float64
	CDNANotation    *string // HGVS.c — stored unbounded, see SPEC_FULL.md §3
	Consequences    []string
}

// Annotation bundles a variant-level record with its transcripts — the unit
// the parser produces per variant and the store persists per variant.
type Annotation struct {
	Record      Record
	Transcripts []Transcript
}

// FeatureVector is the fixed nine-dimensional input to the ML scorer,
// extracted from a Record and its canonical Transcript (§4.6).
type FeatureVector struct {
	Consequence      string
	Impact           string
	AlleleFrequency  *float64
	MaxPopAlleleFreq *float64
	SpliceAIDelta    *float64
	GERP             *float64
	LOFTEEClass      *string
	PolyPhen         *float64
	CADDScore        *float64
}
