package api

import (
	"github.com/vareng/annotator/internal/annotation/model"
	"github.com/vareng/annotator/internal/annotation/repository"
)

// SubmitRequest is the request body for POST /submit.
type SubmitRequest struct {
	Chrom string `json:"chrom"`
	Pos   int    `json:"pos"`
	Ref   string `json:"ref"`
	Alt   string `json:"alt"`
}

// SubmitResponse is the response body for POST /submit.
type SubmitResponse struct {
	State      string          `json:"state"`
	VariantKey string          `json:"variant_key"`
	Record     *RecordResponse `json:"record,omitempty"`
}

// PollResponse is the response body for GET /poll/{variant_key}.
type PollResponse struct {
	State    string          `json:"state"`
	Record   *RecordResponse `json:"record,omitempty"`
	Attempts int             `json:"attempts,omitempty"`
}

// RecordResponse is the JSON-facing shape of a variant-level annotation.
type RecordResponse struct {
	VariantKey           string   `json:"variant_key"`
	Gene                 string   `json:"gene"`
	CADDScore            *float64 `json:"cadd_score,omitempty"`
	MLScore              *float64 `json:"ml_score,omitempty"`
	MostSevereConseq     string   `json:"most_severe_consequence"`
	AlleleFrequency      *float64 `json:"allele_frequency,omitempty"`
	MaxPopAlleleFreq     *float64 `json:"max_pop_allele_freq,omitempty"`
	OMIMID               *string  `json:"omim_id,omitempty"`
	ClinicalSignificance *string  `json:"clinical_significance,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// StatisticsResponse is the response body for GET /statistics.
type StatisticsResponse struct {
	TotalRecords         int64            `json:"total_records"`
	RecordsWithMLScore   int64            `json:"records_with_ml_score"`
	ConsequenceHistogram map[string]int64 `json:"consequence_histogram"`
	Queued               int              `json:"queued"`
	Processing           int              `json:"processing"`
	RetryAvailable       int              `json:"retry_available"`
}

func toRecordResponse(r model.Record) *RecordResponse {
	return &RecordResponse{
		VariantKey:           r.VariantKey,
		Gene:                 r.Gene,
		CADDScore:            r.CADDScore,
		MLScore:              r.MLScore,
		MostSevereConseq:     r.MostSevereConseq,
		AlleleFrequency:      r.AlleleFrequency,
		MaxPopAlleleFreq:     r.MaxPopAlleleFreq,
		OMIMID:               r.OMIMID,
		ClinicalSignificance: r.ClinicalSignificance,
	}
}

func toStatisticsResponse(stats repository.Statistics, queued, processing, retryAvailable int) StatisticsResponse {
	return StatisticsResponse{
		TotalRecords:         stats.TotalRecords,
		RecordsWithMLScore:   stats.RecordsWithMLScore,
		ConsequenceHistogram: stats.ConsequenceHistogram,
		Queued:               queued,
		Processing:           processing,
		RetryAvailable:       retryAvailable,
	}
}
